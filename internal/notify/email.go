package notify

import (
	"context"
	"fmt"
	"html"
	"net/smtp"
	"strings"
)

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends alert emails as multipart plain text + HTML.
type SMTPSender struct {
	cfg SMTPConfig

	// sendMail is smtp.SendMail; replaced in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, sendMail: smtp.SendMail}
}

func (s *SMTPSender) Send(ctx context.Context, d Delivery) error {
	if len(d.Recipients) == 0 {
		return fmt.Errorf("email delivery has no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.sendMail(addr, auth, s.cfg.From, d.Recipients, s.buildMessage(d)); err != nil {
		return fmt.Errorf("sending email: %w", err)
	}
	return nil
}

const mimeBoundary = "sentinel-alert-boundary"

func (s *SMTPSender) buildMessage(d Delivery) []byte {
	subject := fmt.Sprintf("[Sentinel] %s", d.Title)

	var plain strings.Builder
	fmt.Fprintf(&plain, "%s\r\n\r\nProfile: %s\r\nSeverity: %s\r\n\r\n%s\r\n", d.Title, d.ProfileName, d.Severity, d.Description)
	if d.Link != "" {
		fmt.Fprintf(&plain, "\r\nView alert: %s\r\n", d.Link)
	}

	var body strings.Builder
	fmt.Fprintf(&body, "<h2>%s</h2><p><strong>Profile:</strong> %s<br><strong>Severity:</strong> %s</p><p>%s</p>",
		html.EscapeString(d.Title), html.EscapeString(d.ProfileName), html.EscapeString(string(d.Severity)),
		strings.ReplaceAll(html.EscapeString(d.Description), "\n", "<br>"))
	if d.Link != "" {
		fmt.Fprintf(&body, `<p><a href="%s">View alert</a></p>`, html.EscapeString(d.Link))
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", strings.Join(d.Recipients, ", "))
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&msg, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", mimeBoundary)

	fmt.Fprintf(&msg, "--%s\r\n", mimeBoundary)
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(plain.String())
	msg.WriteString("\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", mimeBoundary)
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(body.String())
	msg.WriteString("\r\n")

	fmt.Fprintf(&msg, "--%s--\r\n", mimeBoundary)
	return []byte(msg.String())
}
