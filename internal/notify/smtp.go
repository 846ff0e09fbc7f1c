package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"net/url"
	"strings"

	"github.com/safar/agrimarket/internal/config"
)

var emailTemplates = template.Must(template.New("activation").Parse(`<!DOCTYPE html>
<html lang="fr">
<body>
  <h2>Activez votre compte</h2>
  <p>Bonjour,</p>
  <p>Votre code d'activation est :</p>
  <p style="font-size:2rem;font-weight:600;letter-spacing:2px">{{.Code}}</p>
  {{if .Link}}<p><a href="{{.Link}}">Activer mon compte</a></p>{{end}}
  <p>Ce code expire dans {{.ValidFor}}.</p>
</body>
</html>`))

func init() {
	template.Must(emailTemplates.New("password_reset").Parse(`<!DOCTYPE html>
<html lang="en">
<body>
  <h2>Password Reset Request</h2>
  <p>Hello,</p>
  <p>We received a request to reset your password. Your OTP code is:</p>
  <p style="font-size:2rem;font-weight:600;letter-spacing:2px">{{.Code}}</p>
  <p>This code will expire in {{.ValidFor}}.</p>
  <p>If you did not request this, you can safely ignore this email.</p>
</body>
</html>`))
}

var subjects = map[Kind]string{
	KindActivation:    "Activez votre compte",
	KindPasswordReset: "Password Reset Request",
}

type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPNotifier mails codes through a plain SMTP relay.
type SMTPNotifier struct {
	cfg  config.SMTPConfig
	send sendFunc
}

func NewSMTPNotifier(cfg config.SMTPConfig) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail}
}

type emailData struct {
	Code     string
	Link     string
	ValidFor string
}

func (n *SMTPNotifier) activationLink(msg Message) string {
	if n.cfg.FrontendURL == "" {
		return ""
	}
	q := url.Values{}
	q.Set("otp_code", msg.Code)
	q.Set("email", msg.Destination)
	return n.cfg.FrontendURL + "/active-email?" + q.Encode()
}

func formatValidity(msg Message) string {
	if msg.ValidFor <= 0 {
		return "3h"
	}
	s := msg.ValidFor.String()
	if strings.HasSuffix(s, "m0s") {
		s = strings.TrimSuffix(s, "0s")
	}
	if strings.HasSuffix(s, "h0m") {
		s = strings.TrimSuffix(s, "0m")
	}
	return s
}

func (n *SMTPNotifier) render(msg Message) (string, []byte, error) {
	subject, ok := subjects[msg.Kind]
	if !ok {
		return "", nil, fmt.Errorf("unknown message kind %q", msg.Kind)
	}

	data := emailData{Code: msg.Code, ValidFor: formatValidity(msg)}
	if msg.Kind == KindActivation {
		data.Link = n.activationLink(msg)
	}

	var body bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&body, string(msg.Kind), data); err != nil {
		return "", nil, fmt.Errorf("render %s email: %w", msg.Kind, err)
	}

	return subject, body.Bytes(), nil
}

func (n *SMTPNotifier) SendCode(ctx context.Context, msg Message) error {
	if msg.Channel != ChannelEmail {
		return fmt.Errorf("%w: %s", ErrNotImplemented, msg.Channel)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	subject, body, err := n.render(msg)
	if err != nil {
		return err
	}

	var raw bytes.Buffer
	raw.WriteString("From: " + n.cfg.From + "\r\n")
	raw.WriteString("To: " + msg.Destination + "\r\n")
	raw.WriteString("Subject: " + subject + "\r\n")
	raw.WriteString("MIME-Version: 1.0\r\nContent-Type: text/html; charset=utf-8\r\n\r\n")
	raw.Write(body)

	var auth smtp.Auth
	if n.cfg.Username != "" {
		auth = smtp.PlainAuth("", n.cfg.Username, n.cfg.Password, n.cfg.Host)
	}

	addr := net.JoinHostPort(n.cfg.Host, n.cfg.Port)
	if err := n.send(addr, auth, n.cfg.From, []string{msg.Destination}, raw.Bytes()); err != nil {
		return fmt.Errorf("send %s email: %w", msg.Kind, err)
	}

	return nil
}
