// internal/transport/email.go
package transport

import (
	"context"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/ramonsune/custodia-360-sub009/internal/config"
	appErrors "github.com/ramonsune/custodia-360-sub009/internal/errors"
)

// EmailSender delivers over SMTP via gomail. The body is sent as text/html
// verbatim; rendering already produced the final text.
type EmailSender struct {
	dialer        *gomail.Dialer
	senderAddress string
	senderName    string
}

var _ Sender = (*EmailSender)(nil)

func NewEmailSender(cfg config.Config) *EmailSender {
	return &EmailSender{
		dialer:        gomail.NewDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword),
		senderAddress: cfg.SenderAddress,
		senderName:    cfg.SenderName,
	}
}

// Send dials and sends one message. The context bounds the whole attempt;
// gomail has no context support, so the dial runs in a goroutine and the
// caller's deadline turns into a TransportError.
func (s *EmailSender) Send(ctx context.Context, to, subject, body string) (string, error) {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", s.senderAddress, s.senderName)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", body)

	done := make(chan error, 1)
	go func() {
		done <- s.dialer.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		return "", appErrors.NewTransport("send timed out", ctx.Err())
	case err := <-done:
		if err != nil {
			return "", appErrors.NewTransport("smtp send failed", err)
		}
	}
	// SMTP exposes no provider id; synthesize one for the ledger.
	return uuid.NewString(), nil
}
