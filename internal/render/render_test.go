package render

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
)

func TestRenderSubstitutesAllPlaceholders(t *testing.T) {
	out, err := Render("Hola {{nombre}}, tu código es {{codigo}}", map[string]string{
		"nombre": "Ana",
		"codigo": "123",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hola Ana, tu código es 123", out)
}

func TestRenderMissingKeyFails(t *testing.T) {
	_, err := Render("Hola {{nombre}}, tu código es {{codigo}}", map[string]string{
		"nombre": "Ana",
	})
	require.Error(t, err)
	assert.True(t, appErrors.IsRender(err))
	assert.Contains(t, err.Error(), "codigo")
}

func TestRenderIgnoresUnreferencedKeys(t *testing.T) {
	out, err := Render("Hola {{nombre}}", map[string]string{
		"nombre": "Ana",
		"extra":  "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "Hola Ana", out)
}

func TestRenderEmptyValueIsValid(t *testing.T) {
	out, err := Render("Hola {{nombre}}", map[string]string{"nombre": ""})
	require.NoError(t, err)
	assert.Equal(t, "Hola ", out)
}

func TestRenderNoPlaceholders(t *testing.T) {
	out, err := Render("sin variables", nil)
	require.NoError(t, err)
	assert.Equal(t, "sin variables", out)
}

func TestVariables(t *testing.T) {
	vars := Variables("{{a}} y {{b}} y {{a}} otra vez")
	assert.Equal(t, []string{"a", "b"}, vars)
}

func TestMessagePreservesPatternVerbatim(t *testing.T) {
	msg, err := Message("  Aviso: {{nombre}} ", "{{nombre}}\n", map[string]string{"nombre": "Ana"})
	require.NoError(t, err)
	assert.Equal(t, "  Aviso: Ana ", msg.Subject)
	assert.Equal(t, "Ana\n", msg.Body)
}

func TestMessageRendersSubjectAndBody(t *testing.T) {
	msg, err := Message("Aviso para {{nombre}}", "Hola {{nombre}}, quedan {{dias}} días", map[string]string{
		"nombre": "Ana",
		"dias":   "3",
	})
	require.NoError(t, err)
	assert.Equal(t, "Aviso para Ana", msg.Subject)
	assert.Equal(t, "Hola Ana, quedan 3 días", msg.Body)
}
