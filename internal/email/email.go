// Package email renders and delivers transactional email.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"log/slog"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
)

// Message is a rendered email with an HTML body and a plaintext alternative.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// PasswordResetSubject is the subject of the reset email.
const PasswordResetSubject = "Password reset instructions (valid for 10 minutes)"

var passwordResetTemplate = template.Must(template.New("password-reset").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hi {{.Name}},</p>
<p>Forgot your password? Send a PATCH request to <a href="{{.URL}}">{{.URL}}</a> with your new <code>password</code> and <code>passwordConfirm</code>.</p>
<p>If you didn't forget your password, please ignore this email.</p>
</body>
</html>`))

// Mailer renders templates and hands them to a Sender.
type Mailer struct {
	sender Sender
	logger *slog.Logger
}

// NewMailer creates a mailer.
func NewMailer(sender Sender, logger *slog.Logger) *Mailer {
	return &Mailer{sender: sender, logger: logger}
}

// SendPasswordReset emails the reset URL to a user.
func (m *Mailer) SendPasswordReset(ctx context.Context, to, name, resetURL string) error {
	msg, err := render(passwordResetTemplate, to, PasswordResetSubject, map[string]string{
		"Name": name,
		"URL":  resetURL,
	})
	if err != nil {
		return err
	}

	if err := m.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send password reset email: %w", err)
	}
	if m.logger != nil {
		m.logger.Info("password reset email sent", "to", to)
	}
	return nil
}

func render(tmpl *template.Template, to, subject string, data any) (Message, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}

	text, err := htmltomarkdown.ConvertString(buf.String())
	if err != nil {
		return Message{}, fmt.Errorf("convert %s to text: %w", tmpl.Name(), err)
	}

	return Message{To: to, Subject: subject, HTML: buf.String(), Text: text}, nil
}
