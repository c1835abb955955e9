package model

// Recipient statuses. Transitions are monotonic: pending may move to sent or
// error, terminal states never move again.
const (
	RecipientPending = "pending"
	RecipientSent    = "sent"
	RecipientError   = "error"
)

// MessageRecipient is one destination address within a job, tracked
// independently so a broadcast can partially succeed.
type MessageRecipient struct {
	ID                int    `db:"id" json:"id"`
	JobID             int    `db:"job_id" json:"job_id"`
	ToAddress         string `db:"to_address" json:"to_address"`
	RenderedSubject   string `db:"rendered_subject" json:"rendered_subject,omitempty"`
	RenderedBody      string `db:"rendered_body" json:"rendered_body,omitempty"`
	ProviderMessageID string `db:"provider_message_id" json:"provider_message_id,omitempty"`
	Status            string `db:"status" json:"status"`
	ErrorMsg          string `db:"error_msg" json:"error_msg,omitempty"`
}

// Terminal reports whether the recipient reached a final state.
func (r *MessageRecipient) Terminal() bool {
	return r.Status == RecipientSent || r.Status == RecipientError
}
