package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"time"
)

// SMTPConfig captures the settings for the outbound mail relay.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
	SiteName string
}

// SMTPSender delivers notifications as plain-text email over SMTP.
type SMTPSender struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTPSender builds a sender for the given relay.
func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg, send: smtp.SendMail}
}

func (s *SMTPSender) SendOTP(_ context.Context, email, code string, expiry time.Time) error {
	subject := "Your OTP code for Login"
	body := fmt.Sprintf(
		"Your one-time passcode is %s.\r\n\r\nIt expires at %s. If you did not attempt to log in to %s, please contact support immediately.\r\n",
		code, expiry.UTC().Format(time.RFC1123), s.cfg.SiteName,
	)
	return s.mail(email, subject, body)
}

func (s *SMTPSender) SendAccountLocked(_ context.Context, email string, lockoutMinutes int) error {
	subject := "Your account has been locked"
	body := fmt.Sprintf(
		"Your %s account has been locked after repeated failed login attempts.\r\n\r\nYou can try again in %d minutes.\r\n",
		s.cfg.SiteName, lockoutMinutes,
	)
	return s.mail(email, subject, body)
}

func (s *SMTPSender) mail(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s", s.cfg.From, to, subject, body)

	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	if err := s.send(addr, auth, s.cfg.From, []string{to}, []byte(msg)); err != nil {
		return fmt.Errorf("send mail to %s: %w", to, err)
	}
	return nil
}
