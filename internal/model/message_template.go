package model

import "time"

// Channels a template (and its jobs) can be delivered over.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// MessageTemplate is a slug-keyed message pattern. Variables lists the context
// keys the patterns reference; enqueue validates the supplied context against
// it so renders never fail on a missing key for declared templates.
type MessageTemplate struct {
	ID             int       `db:"id" json:"id"`
	Slug           string    `db:"slug" json:"slug"`
	SubjectPattern string    `db:"subject_pattern" json:"subject_pattern"`
	BodyPattern    string    `db:"body_pattern" json:"body_pattern"`
	Channel        string    `db:"channel" json:"channel"`
	Variables      []string  `db:"variables" json:"variables"`
	Active         bool      `db:"active" json:"active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
