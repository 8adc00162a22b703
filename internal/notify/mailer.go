// Package notify turns booking events into guest emails and booking log
// lines.  It runs in the notifier worker, never on the booking path.
package notify

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/wneessen/go-mail"

	"github.com/iliyamo/hotel-reservation/internal/config"
)

// Message is an outgoing HTML email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends through an SMTP relay.  STARTTLS is used when the relay
// offers it and PLAIN auth when credentials are configured.
type SMTPMailer struct {
	client   *mail.Client
	from     string
	fromName string
	// send delivers a built message; swapped out in tests.
	send func(ctx context.Context, m *mail.Msg) error
}

// NewSMTPMailer returns a nil mailer and no error when no SMTP host is
// configured.
func NewSMTPMailer(cfg config.MailConfig) (*SMTPMailer, error) {
	if cfg.Host == "" {
		return nil, nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(timeout),
		mail.WithDialContextFunc(dialContext(timeout)),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}
	m := &SMTPMailer{client: c, from: cfg.From, fromName: cfg.FromName}
	m.send = func(ctx context.Context, msg *mail.Msg) error {
		return c.DialAndSendWithContext(ctx, msg)
	}
	return m, nil
}

// Send builds the message and delivers it.  The whole SMTP session, not just
// the dial, is bounded by ctx.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out, err := m.build(msg)
	if err != nil {
		return err
	}
	if err := m.send(ctx, out); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) (*mail.Msg, error) {
	out := mail.NewMsg()
	if err := out.FromFormat(m.fromName, m.from); err != nil {
		return nil, fmt.Errorf("sender %q: %w", m.from, err)
	}
	if err := out.To(msg.To); err != nil {
		return nil, fmt.Errorf("recipient %q: %w", msg.To, err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, msg.HTML)
	return out, nil
}

// dialContext pins the connection deadline to the dial context, which
// go-mail derives from the caller's ctx and the client timeout.  A relay
// that accepts and then goes silent cannot stall the worker past it.
func dialContext(fallback time.Duration) mail.DialContextFunc {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		var d net.Dialer
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		deadline, ok := ctx.Deadline()
		if !ok {
			deadline = time.Now().Add(fallback)
		}
		if err := conn.SetDeadline(deadline); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return conn, nil
	}
}
