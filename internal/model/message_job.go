package model

import "time"

// Job statuses. A job is a pure aggregate over its recipients: sent iff all
// recipients sent, error iff at least one recipient errored.
const (
	JobQueued     = "queued"
	JobProcessing = "processing"
	JobSent       = "sent"
	JobError      = "error"
)

// MessageJob is one durable request to deliver a rendered message to one or
// more recipients. Jobs are never deleted; they are the audit trail.
type MessageJob struct {
	ID             int               `db:"id" json:"id"`
	EntityID       *int              `db:"entity_id" json:"entity_id,omitempty"`
	TemplateSlug   string            `db:"template_slug" json:"template_slug"`
	Channel        string            `db:"channel" json:"channel"`
	Context        map[string]string `db:"context" json:"context"`
	Status         string            `db:"status" json:"status"`
	IdempotencyKey *string           `db:"idempotency_key" json:"idempotency_key,omitempty"`
	ScheduledFor   *time.Time        `db:"scheduled_for" json:"scheduled_for,omitempty"`
	ErrorMsg       string            `db:"error_msg" json:"error_msg,omitempty"`
	CreatedAt      time.Time         `db:"created_at" json:"created_at"`
}
