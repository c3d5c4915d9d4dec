package mailer

import (
	"bytes"
	"context"
	"log"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationLink(t *testing.T) {
	got := VerificationLink("http://localhost:8080", "a+b@example.com", "tok-1")
	assert.Equal(t, "http://localhost:8080/verify?email=a%2Bb%40example.com&verificationToken=tok-1", got)
}

func TestRestorationLink(t *testing.T) {
	got := RestorationLink("https://organism.example", "user@example.com", "tok-2")
	assert.Equal(t, "https://organism.example/restore?email=user%40example.com&restorationToken=tok-2", got)
}

func TestMessages(t *testing.T) {
	v := VerificationMessage("http://x", "user@example.com", "abc")
	assert.Equal(t, "user@example.com", v.To)
	assert.Equal(t, "Verify your email", v.Subject)
	assert.Contains(t, v.HTML, `href="http://x/verify?email=user%40example.com&verificationToken=abc"`)

	r := RestorationMessage("http://x", "user@example.com", "def")
	assert.Equal(t, "Restore your password", r.Subject)
	assert.Contains(t, r.HTML, "restorationToken=def")
}

func TestBuild(t *testing.T) {
	m, err := build("noreply@organism.example", VerificationMessage("http://x", "user@example.com", "abc"))
	require.NoError(t, err)
	assert.NotNil(t, m)

	_, err = build("not an address", Message{To: "user@example.com"})
	assert.Error(t, err)

	_, err = build("noreply@organism.example", Message{To: "broken"})
	assert.Error(t, err)
}

func TestNewSMTPSender(t *testing.T) {
	_, err := NewSMTPSender("", 465, "u", "p", "")
	assert.Error(t, err)

	s, err := NewSMTPSender("smtp.example.com", 465, "robot@example.com", "secret", "")
	require.NoError(t, err)
	assert.Equal(t, "robot@example.com", s.from)
}

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	log.SetOutput(buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })
	return buf
}

func TestLogSender_HidesBody(t *testing.T) {
	buf := captureLog(t)
	msg := VerificationMessage("http://x", "user@example.com", "secret-token")

	require.NoError(t, LogSender{}.Send(context.Background(), msg))
	assert.Contains(t, buf.String(), "Mail to user@example.com: Verify your email")
	assert.NotContains(t, buf.String(), "secret-token")
}

func TestLogSender_ShowBody(t *testing.T) {
	buf := captureLog(t)
	msg := RestorationMessage("http://x", "user@example.com", "secret-token")

	require.NoError(t, LogSender{ShowBody: true}.Send(context.Background(), msg))
	assert.Contains(t, buf.String(), "restorationToken=secret-token")
}
