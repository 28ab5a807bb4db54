package notify

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("workshop-monitor/notify")

type SmtpConfig struct {
	Host     string
	Port     int
	StartTLS bool
	Username string
	Password string
	From     string
	// To is every recipient, each one gets a separate message.
	To []string
}

type SMTP struct {
	config SmtpConfig
}

func NewSMTP(config SmtpConfig) SMTP {
	if config.Port == 0 {
		config.Port = 587
	}
	return SMTP{config: config}
}

func (s SMTP) addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

var dialer = net.Dialer{Timeout: time.Second * 30}

func (s SMTP) deliver(ctx context.Context, mail *email.Email, auth smtp.Auth) error {
	if s.config.StartTLS {
		return mail.SendWithStartTLS(s.addr(), auth, &tls.Config{ServerName: s.config.Host})
	}
	return s.deliverPlain(ctx, mail, auth)
}

// deliverPlain talks to the server without ever upgrading the connection, even when the
// server advertises STARTTLS.
func (s SMTP) deliverPlain(ctx context.Context, mail *email.Email, auth smtp.Auth) error {
	raw, err := mail.Bytes()
	if err != nil {
		return err
	}

	conn, err := dialer.DialContext(ctx, "tcp", s.addr())
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, s.config.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if auth != nil {
		if ok, _ := c.Extension("AUTH"); !ok {
			return errors.New("smtp: server doesn't support AUTH")
		}
		err = c.Auth(auth)
		if err != nil {
			return err
		}
	}
	err = c.Mail(mail.From)
	if err != nil {
		return err
	}
	for _, to := range mail.To {
		err = c.Rcpt(to)
		if err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	_, err = w.Write(raw)
	if err != nil {
		return err
	}
	err = w.Close()
	if err != nil {
		return err
	}
	return c.Quit()
}

func (s SMTP) sendOne(ctx context.Context, to, subject, body string) error {
	_, span := tracer.Start(ctx, "SMTP.sendOne")
	defer span.End()

	mail := email.NewEmail()
	mail.From = s.config.From
	mail.To = []string{to}
	mail.Subject = subject
	mail.Text = []byte(body)

	err := s.deliver(ctx, mail, smtp.PlainAuth("", s.config.Username, s.config.Password, s.config.Host))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		slog.DebugContext(ctx, "smtp server does not support auth, retrying without it", "host", s.config.Host)
		err = s.deliver(ctx, mail, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}

// Send delivers the message to every recipient. A failed recipient does not stop the
// others, all failures are returned together.
func (s SMTP) Send(ctx context.Context, subject, body string) error {
	ctx, span := tracer.Start(ctx, "SMTP.Send")
	span.SetAttributes(attribute.Int("recipients", len(s.config.To)))
	defer span.End()

	if len(s.config.To) == 0 {
		return fmt.Errorf("%w: no recipients", ErrNotifyFailed)
	}

	var errs []error
	for _, to := range s.config.To {
		to = strings.TrimSpace(to)
		if to == "" {
			continue
		}
		err := s.sendOne(ctx, to, subject, body)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", to, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrNotifyFailed, errors.Join(errs...))
	}
	return nil
}
