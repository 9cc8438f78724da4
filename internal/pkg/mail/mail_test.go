package mail

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gomail "github.com/wneessen/go-mail"
)

func captureSender(cfg Config) (*Sender, *[]*gomail.Msg) {
	var sent []*gomail.Msg
	s := New(cfg).WithTransport(func(_ context.Context, _ Config, msg *gomail.Msg) error {
		sent = append(sent, msg)
		return nil
	})
	return s, &sent
}

func TestDisabledSenderDropsMail(t *testing.T) {
	s, sent := captureSender(Config{Enable: false, Host: "smtp.example.com", From: "forms@example.com"})
	require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@example.com"}, Subject: "x"}))
	assert.Empty(t, *sent)

	s, sent = captureSender(Config{Enable: true, From: "forms@example.com"})
	require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@example.com"}}))
	assert.Empty(t, *sent)
}

func TestSendBuildsMessage(t *testing.T) {
	s, sent := captureSender(Config{Enable: true, Host: "smtp.example.com", Port: 587, From: "forms@example.com"})
	err := s.Send(context.Background(), Message{To: []string{"a@example.com", "b@example.com"}, Subject: "Hello", HTML: "<p>hi</p>"})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	assert.Equal(t, []string{"Hello"}, (*sent)[0].GetGenHeader(gomail.HeaderSubject))
}

func TestSendRejectsBadAddress(t *testing.T) {
	s, sent := captureSender(Config{Enable: true, Host: "smtp.example.com", From: "forms@example.com"})
	err := s.Send(context.Background(), Message{To: []string{"not an address"}})
	assert.Error(t, err)
	assert.Empty(t, *sent)
}

func TestSendReturnsTransportError(t *testing.T) {
	boom := errors.New("dial failed")
	s := New(Config{Enable: true, Host: "smtp.example.com", From: "forms@example.com"}).
		WithTransport(func(context.Context, Config, *gomail.Msg) error { return boom })
	err := s.Send(context.Background(), Message{To: []string{"a@example.com"}})
	assert.ErrorIs(t, err, boom)
}

func TestSendSubmissionNotify(t *testing.T) {
	s, sent := captureSender(Config{Enable: true, Host: "smtp.example.com", From: "forms@example.com"})
	err := s.SendSubmissionNotify(context.Background(), []string{"owner@example.com"}, SubmissionNotifyData{
		FormTitle:   "Contact",
		SubmittedAt: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		Rows:        []SubmissionRow{{Label: "Name", Value: "<b>Ada</b>"}},
		AdminURL:    "https://forms.example.com/admin",
	})
	require.NoError(t, err)
	require.Len(t, *sent, 1)

	assert.Equal(t, []string{"[Contact] New submission"}, (*sent)[0].GetGenHeader(gomail.HeaderSubject))
}

func TestRenderSubmissionNotifyEscapesValues(t *testing.T) {
	body, err := renderSubmissionNotify(SubmissionNotifyData{
		FormTitle:   "Contact",
		SubmittedAt: time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC),
		Rows:        []SubmissionRow{{Label: "Name", Value: "<b>Ada</b>"}},
		AdminURL:    "https://forms.example.com/admin",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "2024-05-01 10:30 UTC")
	assert.Contains(t, body, "&lt;b&gt;Ada&lt;/b&gt;")
	assert.Contains(t, body, `href="https://forms.example.com/admin"`)
	assert.NotContains(t, body, "<b>Ada</b>")
}
