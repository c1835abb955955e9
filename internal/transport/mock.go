// internal/transport/mock.go
package transport

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
)

// MockSender records sends in memory and rejects addresses listed in Reject.
// Used by tests and as the development transport.
type MockSender struct {
	mu     sync.Mutex
	Reject map[string]bool
	Sent   []MockDelivery
}

type MockDelivery struct {
	To      string
	Subject string
	Body    string
}

var _ Sender = (*MockSender)(nil)

func NewMockSender() *MockSender {
	return &MockSender{Reject: map[string]bool{}}
}

func (m *MockSender) Send(_ context.Context, to, subject, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Reject[strings.ToLower(to)] {
		return "", appErrors.NewTransport("address rejected by provider", nil)
	}
	m.Sent = append(m.Sent, MockDelivery{To: to, Subject: subject, Body: body})
	return uuid.NewString(), nil
}

// Deliveries returns a copy of everything sent so far.
func (m *MockSender) Deliveries() []MockDelivery {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockDelivery, len(m.Sent))
	copy(out, m.Sent)
	return out
}
