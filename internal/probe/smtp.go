package probe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/cortexui/dashboard/pkg/logger"
)

const (
	smtpSubject = "CortexUI | SMTP Testnachricht"
	smtpBody    = "Die SMTP-Verbindung war erfolgreich."
)

// ErrNoTLS is returned when a remote server offers neither implicit TLS nor
// STARTTLS, so credentials cannot be sent.
var ErrNoTLS = errors.New("Server bietet kein TLS an")

// SMTPRequest is the body of POST /setup/test-smtp.
type SMTPRequest struct {
	Host     string `json:"host"`
	Port     Port   `json:"port"`
	User     string `json:"user"`
	Pass     string `json:"pass"`
	From     string `json:"from"`
	FromName string `json:"fromName"`
	To       string `json:"to"`
}

func (r SMTPRequest) Validate() error {
	if missing(r.Host, r.User, r.Pass) || r.Port <= 0 {
		return fmt.Errorf("%w: host, port, user and pass are required", ErrMissingFields)
	}
	return nil
}

func (r SMTPRequest) sender() string {
	if r.From != "" {
		return r.From
	}
	return r.User
}

func (r SMTPRequest) recipient() string {
	if r.To != "" {
		return r.To
	}
	return r.sender()
}

// SMTP sends a test message through the given server.
type SMTP struct {
	Timeout time.Duration
	// TLSConfig overrides the TLS settings, mainly for tests.
	TLSConfig *tls.Config
}

func NewSMTP() *SMTP {
	return &SMTP{Timeout: 15 * time.Second}
}

// ImplicitTLS reports whether port expects TLS from the first byte.
func ImplicitTLS(port int) bool {
	return port == 465
}

func (s *SMTP) tlsConfig(host string) *tls.Config {
	if s.TLSConfig != nil {
		cfg := s.TLSConfig.Clone()
		if cfg.ServerName == "" {
			cfg.ServerName = host
		}
		return cfg
	}
	return &tls.Config{ServerName: host}
}

// Send delivers the test message. Port 465 uses implicit TLS; other ports
// upgrade with STARTTLS when the server offers it.
func (s *SMTP) Send(ctx context.Context, r SMTPRequest) error {
	if err := r.Validate(); err != nil {
		return err
	}

	addr := net.JoinHostPort(r.Host, strconv.Itoa(int(r.Port)))
	deadline := time.Now().Add(s.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	var conn net.Conn
	var err error
	dialer := &net.Dialer{Deadline: deadline}
	if ImplicitTLS(int(r.Port)) {
		tlsDialer := &tls.Dialer{NetDialer: dialer, Config: s.tlsConfig(r.Host)}
		conn, err = tlsDialer.DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(deadline)

	client, err := smtp.NewClient(conn, r.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	encrypted := ImplicitTLS(int(r.Port))
	if !encrypted {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(s.tlsConfig(r.Host)); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
			encrypted = true
		}
	}
	if !plainAuthAllowed(r.Host, encrypted) {
		return fmt.Errorf("%s: %w", addr, ErrNoTLS)
	}

	if err := client.Auth(smtp.PlainAuth("", r.User, r.Pass, r.Host)); err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	if err := client.Mail(r.sender()); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(r.recipient()); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write([]byte(buildMessage(r))); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("send message: %w", err)
	}

	logger.Infof("[SMTP] Test message sent via %s to %s", addr, r.recipient())
	return client.Quit()
}

// plainAuthAllowed mirrors the rule of smtp.PlainAuth: credentials only go
// over TLS or to the local host.
func plainAuthAllowed(host string, encrypted bool) bool {
	if encrypted {
		return true
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}

func buildMessage(r SMTPRequest) string {
	fromName := r.FromName
	if fromName == "" {
		fromName = "CortexUI"
	}

	headers := [][2]string{
		{"From", (&mail.Address{Name: fromName, Address: r.sender()}).String()},
		{"To", r.recipient()},
		{"Subject", smtpSubject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	}

	var message strings.Builder
	for _, h := range headers {
		message.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	message.WriteString("\r\n")
	message.WriteString(smtpBody + "\r\n")
	return message.String()
}
