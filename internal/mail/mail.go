// Package mail composes and delivers the account emails (confirmation and
// password reset).  Delivery is pluggable: SMTP, the RabbitMQ queue, or the
// application log.
package mail

import (
	"context"
	"fmt"
	"html"
	"net/url"

	"go.uber.org/zap"
)

// Message is a single outgoing HTML email.
type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer writes messages to the log instead of sending them.  It is
// the default transport in development.
type LogMailer struct{ Log *zap.Logger }

func (m LogMailer) Send(_ context.Context, msg Message) error {
	m.Log.Info("mail (log transport)",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.String("html", msg.HTML),
	)
	return nil
}

// Composer builds account emails that link back to the frontend.
type Composer struct {
	PublicURL string // e.g. http://localhost:4200
}

func (c Composer) link(path, token string) string {
	return fmt.Sprintf("%s/%s?token=%s", c.PublicURL, path, url.QueryEscape(token))
}

// Confirmation is sent after registration or when an administrator creates
// an unconfirmed account.
func (c Composer) Confirmation(to, token string, byAdmin bool) Message {
	intro := "Thanks for registering."
	if byAdmin {
		intro = "Your account has been created by an administrator."
	}
	link := html.EscapeString(c.link("confirm-email", token))
	return Message{
		To:      to,
		Subject: "Confirm your email address",
		HTML: fmt.Sprintf(`<p>Hello,</p>
<p>%s</p>
<p>Please confirm your email by clicking the link below:</p>
<p><a href="%s">Confirm Email</a></p>
<p>This link expires in 24 hours.</p>`, intro, link),
	}
}

// PasswordReset carries a one hour reset link.
func (c Composer) PasswordReset(to, token string) Message {
	link := html.EscapeString(c.link("reset-password", token))
	return Message{
		To:      to,
		Subject: "Reset your password",
		HTML: fmt.Sprintf(`<p>Hello,</p>
<p>We received a request to reset your password.</p>
<p><a href="%s">Reset Password</a></p>
<p>This link expires in 1 hour. If you did not ask for it, ignore this email.</p>`, link),
	}
}
