// Package mailer sends the account emails: address verification and password restoration.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"

	"github.com/wneessen/go-mail"
)

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers over implicit TLS with PLAIN auth.
type SMTPSender struct {
	from   string
	client *mail.Client
}

func NewSMTPSender(host string, port int, username, password, from string) (*SMTPSender, error) {
	if host == "" {
		return nil, errors.New("smtp host is empty")
	}
	if from == "" {
		from = username
	}
	client, err := mail.NewClient(host,
		mail.WithPort(port),
		mail.WithSSL(),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(username),
		mail.WithPassword(password),
	)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{from: from, client: client}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m, err := build(s.from, msg)
	if err != nil {
		return err
	}
	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	return nil
}

func build(from string, msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := m.To(msg.To); err != nil {
		return nil, fmt.Errorf("invalid recipient %q: %w", msg.To, err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return m, nil
}

// LogSender writes messages to the log instead of sending them. Used when SMTP is not configured.
// The body carries live tokens, so it is logged only with ShowBody.
type LogSender struct {
	ShowBody bool
}

func (s LogSender) Send(_ context.Context, msg Message) error {
	if !s.ShowBody {
		log.Printf("Mail to %s: %s (body not logged)", msg.To, msg.Subject)
		return nil
	}
	log.Printf("Mail to %s: %s\n%s", msg.To, msg.Subject, msg.HTML)
	return nil
}

func link(baseURL, path string, params url.Values) string {
	return baseURL + path + "?" + params.Encode()
}

// VerificationLink points at auth-service's GET /verify.
func VerificationLink(baseURL, email, token string) string {
	return link(baseURL, "/verify", url.Values{"email": {email}, "verificationToken": {token}})
}

// RestorationLink carries the restoration token the client posts back to /restore.
func RestorationLink(baseURL, email, token string) string {
	return link(baseURL, "/restore", url.Values{"email": {email}, "restorationToken": {token}})
}

func VerificationMessage(baseURL, email, token string) Message {
	href := VerificationLink(baseURL, email, token)
	return Message{
		To:      email,
		Subject: "Verify your email",
		HTML:    fmt.Sprintf(`<p>Confirm your address to start using Organism:</p><p><a href="%s">%s</a></p>`, href, href),
	}
}

func RestorationMessage(baseURL, email, token string) Message {
	href := RestorationLink(baseURL, email, token)
	return Message{
		To:      email,
		Subject: "Restore your password",
		HTML:    fmt.Sprintf(`<p>Someone asked to reset your Organism password. If it was you, follow the link:</p><p><a href="%s">%s</a></p>`, href, href),
	}
}
