package alert

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/bimmerbailey/logwarden/internal/anomaly"
	"github.com/bimmerbailey/logwarden/internal/config"
)

const defaultSMTPPort = 587

// Email sends one message per finding over SMTP.
type Email struct {
	cfg       config.EmailConfig
	addr      string
	tlsConfig *tls.Config
	now       func() time.Time
}

// NewEmail validates cfg and returns an email sink.
func NewEmail(cfg config.EmailConfig) (*Email, error) {
	if cfg.SMTPServer == "" {
		return nil, errors.New("email: smtp_server is required")
	}
	if cfg.FromAddr == "" || len(cfg.ToAddrs) == 0 {
		return nil, errors.New("email: from_addr and to_addrs are required")
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = defaultSMTPPort
	}
	return &Email{
		cfg:       cfg,
		addr:      net.JoinHostPort(cfg.SMTPServer, strconv.Itoa(port)),
		tlsConfig: &tls.Config{ServerName: cfg.SMTPServer},
		now:       time.Now,
	}, nil
}

// SendAlert delivers f to every recipient in one SMTP transaction.
func (e *Email) SendAlert(ctx context.Context, f anomaly.Finding) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", e.addr)
	if err != nil {
		return fmt.Errorf("email: dial %s: %w", e.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, e.cfg.SMTPServer)
	if err != nil {
		conn.Close()
		return fmt.Errorf("email: %w", err)
	}
	defer c.Close()

	if e.cfg.UseTLS {
		if err := c.StartTLS(e.tlsConfig); err != nil {
			return fmt.Errorf("email: starttls: %w", err)
		}
	}
	if e.cfg.Username != "" {
		auth := smtp.PlainAuth("", e.cfg.Username, e.cfg.Password, e.cfg.SMTPServer)
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("email: auth: %w", err)
		}
	}
	if err := c.Mail(e.cfg.FromAddr); err != nil {
		return fmt.Errorf("email: mail from: %w", err)
	}
	for _, to := range e.cfg.ToAddrs {
		if err := c.Rcpt(to); err != nil {
			return fmt.Errorf("email: rcpt %s: %w", to, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("email: data: %w", err)
	}
	if _, err := w.Write(e.message(f)); err != nil {
		w.Close()
		return fmt.Errorf("email: write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("email: %w", err)
	}
	return c.Quit()
}

// Subject returns the subject line used for f.
func Subject(f anomaly.Finding) string {
	return fmt.Sprintf("[%s] Anomaly detected - %s", strings.ToUpper(string(f.Severity)), f.Rule)
}

func (e *Email) message(f anomaly.Finding) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", e.cfg.FromAddr)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(e.cfg.ToAddrs, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject(f))
	fmt.Fprintf(&b, "Date: %s\r\n", e.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	fmt.Fprintf(&b, "Severity: %s\r\n", f.Severity)
	fmt.Fprintf(&b, "Rule: %s\r\n", f.Rule)
	fmt.Fprintf(&b, "Time: %s\r\n", f.Time.Format("2006-01-02 15:04:05"))
	if src := f.Source(); src != "" {
		fmt.Fprintf(&b, "Source: %s\r\n", src)
	}
	fmt.Fprintf(&b, "\r\nDetails:\r\n%s\r\n", f.DetailsText())
	return []byte(b.String())
}
