// internal/render/render.go
package render

import (
	"regexp"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
)

var placeholderRe = regexp.MustCompile(`\{\{([A-Za-z0-9_]+)\}\}`)

// Render substitutes {{key}} placeholders in pattern with values from ctx.
// Every referenced key must be present in ctx (callers supply defaults, empty
// string included); a missing key returns a RenderError. Context keys the
// pattern never references are ignored. No escaping is applied; the result is
// an opaque text blob.
func Render(pattern string, ctx map[string]string) (string, error) {
	var missing string
	out := placeholderRe.ReplaceAllStringFunc(pattern, func(m string) string {
		key := m[2 : len(m)-2]
		val, ok := ctx[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return m
		}
		return val
	})
	if missing != "" {
		return "", appErrors.NewRender(missing)
	}
	return out, nil
}

// Variables returns the distinct placeholder keys referenced by pattern, in
// order of first appearance.
func Variables(pattern string) []string {
	seen := map[string]bool{}
	var vars []string
	for _, m := range placeholderRe.FindAllStringSubmatch(pattern, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			vars = append(vars, m[1])
		}
	}
	return vars
}

// Subject and Body of a template rendered against one context.
type Rendered struct {
	Subject string
	Body    string
}

// Message renders both patterns of a template. The first missing key aborts.
// Output is the substituted pattern verbatim; no normalization.
func Message(subjectPattern, bodyPattern string, ctx map[string]string) (*Rendered, error) {
	subject, err := Render(subjectPattern, ctx)
	if err != nil {
		return nil, err
	}
	body, err := Render(bodyPattern, ctx)
	if err != nil {
		return nil, err
	}
	return &Rendered{Subject: subject, Body: body}, nil
}
