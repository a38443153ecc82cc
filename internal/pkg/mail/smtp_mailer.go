package mail

import (
	"fmt"
	"log"
	"net/smtp"
	"strings"

	"github.com/hangarlinks/hangarlinks/internal/pkg/env"
)

// Mailer sends a single HTML message.
type Mailer interface {
	Send(to, subject, body string) error
}

// SMTPMailer sends emails via SMTP
type SMTPMailer struct {
	Host     string
	Port     string
	Username string
	Password string
	Sender   string

	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPMailer reads SMTP_* settings from the environment.
func NewSMTPMailer() *SMTPMailer {
	m := &SMTPMailer{
		Host:     env.GetEnv("SMTP_HOST", ""),
		Port:     env.GetEnv("SMTP_PORT", "587"),
		Username: env.GetEnv("SMTP_USERNAME", ""),
		Password: env.GetEnv("SMTP_PASSWORD", ""),
		Sender:   env.GetEnv("SMTP_SENDER", ""),
		send:     smtp.SendMail,
	}
	if m.Sender == "" {
		m.Sender = "no-reply@hangarlinks.local"
		log.Printf("SMTP_SENDER not set, using default sender: %s", m.Sender)
	}
	return m
}

// Configured reports whether an SMTP host is set.
func (m *SMTPMailer) Configured() bool {
	return m.Host != ""
}

// Send delivers the message. Without SMTP_HOST the message is only logged.
func (m *SMTPMailer) Send(to, subject, body string) error {
	if !m.Configured() {
		log.Printf("SMTP not configured, dropping mail to %s: %s", to, subject)
		return nil
	}

	var auth smtp.Auth
	if m.Username != "" && m.Password != "" {
		auth = smtp.PlainAuth("", m.Username, m.Password, m.Host)
	}
	addr := fmt.Sprintf("%s:%s", m.Host, m.Port)

	err := m.send(addr, auth, m.Sender, []string{to}, buildMessage(m.Sender, to, subject, body))
	if err != nil {
		log.Printf("SMTP send error: %v", err)
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	log.Printf("Email sent to %s via %s", to, addr)
	return nil
}

func buildMessage(from, to, subject, body string) []byte {
	// Header injection guard.
	subject = strings.NewReplacer("\r", " ", "\n", " ").Replace(subject)
	return []byte(
		fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n", from, to, subject) +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/html; charset=UTF-8\r\n\r\n" +
			body,
	)
}
