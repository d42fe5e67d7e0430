package testutil

import (
	"context"
	"net/url"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/danielolaru91/AuthSystem/internal/mail"
)

// RecordingMailer keeps every message it is asked to send.
type RecordingMailer struct {
	mu   sync.Mutex
	msgs []mail.Message
	Err  error
}

func (m *RecordingMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return m.Err
}

// Messages returns a copy of the recorded messages.
func (m *RecordingMailer) Messages() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.msgs...)
}

// Last returns the most recent message and fails the test when none was sent.
func (m *RecordingMailer) Last(t *testing.T) mail.Message {
	t.Helper()
	msgs := m.Messages()
	require.NotEmpty(t, msgs, "no mail sent")
	return msgs[len(msgs)-1]
}

var tokenParam = regexp.MustCompile(`token=([^"&<\s]+)`)

// TokenFromMail extracts the raw token from a confirmation or reset link.
func TokenFromMail(t *testing.T, msg mail.Message) string {
	t.Helper()
	m := tokenParam.FindStringSubmatch(msg.HTML)
	require.Len(t, m, 2, "no token link in %q", msg.HTML)
	tok, err := url.QueryUnescape(m[1])
	require.NoError(t, err)
	return tok
}
