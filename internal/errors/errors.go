// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// ValidationError rejects a bad enqueue spec synchronously; no job is created.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func NewValidation(format string, args ...any) error {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// TemplateNotFoundError is job-fatal: the job goes terminal with no retry.
type TemplateNotFoundError struct {
	Slug string
}

func (e *TemplateNotFoundError) Error() string {
	return fmt.Sprintf("template %q not found", e.Slug)
}

func NewTemplateNotFound(slug string) error {
	return &TemplateNotFoundError{Slug: slug}
}

func IsTemplateNotFound(err error) bool {
	var te *TemplateNotFoundError
	return errors.As(err, &te)
}

// RenderError fires when a template references a context key that was not
// supplied. Stricter than substituting empty text: the recipient never sees a
// half-rendered message.
type RenderError struct {
	Key string
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render failed: context key %q missing", e.Key)
}

func NewRender(key string) error {
	return &RenderError{Key: key}
}

func IsRender(err error) bool {
	var re *RenderError
	return errors.As(err, &re)
}

// TransportError is recipient-fatal only; siblings keep going.
type TransportError struct {
	Reason string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("transport: %s", e.Reason)
}

func (e *TransportError) Unwrap() error { return e.Err }

func NewTransport(reason string, err error) error {
	return &TransportError{Reason: reason, Err: err}
}

// StateError marks an illegal ledger transition. Callers log it and move on;
// the stored state is untouched.
type StateError struct {
	From string
	To   string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s", e.From, e.To)
}

func NewState(from, to string) error {
	return &StateError{From: from, To: to}
}

func IsState(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// StoreError wraps a durable-store failure. A sweep hitting one aborts its
// current run; the next scheduled run self-heals because every decision is
// idempotency-keyed.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

func NewStore(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}
