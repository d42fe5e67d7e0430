// Package queue moves outgoing mail through RabbitMQ: the HTTP server
// publishes, a worker consumes and delivers over SMTP.
package queue

import (
	"time"

	"github.com/danielolaru91/AuthSystem/internal/mail"
)

// MailRequestedEvent is published for every account email.  It carries the
// fully rendered message so the worker needs no database access.
type MailRequestedEvent struct {
	To          string    `json:"to"`
	Subject     string    `json:"subject"`
	HTML        string    `json:"html"`
	RequestedAt time.Time `json:"requested_at"`
}

func eventFor(m mail.Message, at time.Time) MailRequestedEvent {
	return MailRequestedEvent{To: m.To, Subject: m.Subject, HTML: m.HTML, RequestedAt: at.UTC()}
}

func (ev MailRequestedEvent) message() mail.Message {
	return mail.Message{To: ev.To, Subject: ev.Subject, HTML: ev.HTML}
}
