package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

// Config holds SMTP settings.
type Config struct {
	Enable bool
	Host   string
	Port   int
	User   string
	Pass   string
	From   string
}

// Message is a single email to send.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Transport delivers a built message. Tests swap it to capture mail.
type Transport func(ctx context.Context, cfg Config, msg *gomail.Msg) error

// Sender sends emails over SMTP.
type Sender struct {
	cfg       Config
	transport Transport
}

func New(cfg Config) *Sender {
	return &Sender{cfg: cfg, transport: dialAndSend}
}

// WithTransport replaces the SMTP transport.
func (s *Sender) WithTransport(t Transport) *Sender {
	s.transport = t
	return s
}

// Enabled reports whether mail delivery is configured.
func (s *Sender) Enabled() bool {
	return s != nil && s.cfg.Enable && strings.TrimSpace(s.cfg.Host) != ""
}

// Send dispatches an email. A disabled sender drops the message.
func (s *Sender) Send(ctx context.Context, m Message) error {
	if !s.Enabled() {
		return nil
	}
	if len(m.To) == 0 {
		return nil
	}
	msg := gomail.NewMsg()
	if err := msg.From(s.cfg.From); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := msg.To(m.To...); err != nil {
		return fmt.Errorf("mail to: %w", err)
	}
	msg.Subject(m.Subject)
	msg.SetBodyString(gomail.TypeTextHTML, m.HTML)
	msg.SetCharset(gomail.CharsetUTF8)
	return s.transport(ctx, s.cfg, msg)
}

func dialAndSend(ctx context.Context, cfg Config, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(15 * time.Second),
	}
	if cfg.User != "" {
		opts = append(opts,
			gomail.WithUsername(cfg.User),
			gomail.WithPassword(cfg.Pass),
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		)
	}
	if cfg.Port == 465 {
		opts = append(opts, gomail.WithSSL())
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	c, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("mail client: %w", err)
	}
	return c.DialAndSendWithContext(ctx, msg)
}

// SubmissionNotifyData feeds the new-submission template.
type SubmissionNotifyData struct {
	FormTitle   string
	SubmittedAt time.Time
	Rows        []SubmissionRow
	AdminURL    string
}

// SubmissionRow is one label/value pair in the notification table.
type SubmissionRow struct {
	Label string
	Value string
}

const submissionNotifyTpl = `<div style="font-family:-apple-system,Segoe UI,Helvetica,Arial,sans-serif;color:#222;max-width:640px">
<h2 style="margin:0 0 12px">New submission: {{ .FormTitle }}</h2>
<p style="color:#666;margin:0 0 16px">Received {{ .SubmittedAt.Format "2006-01-02 15:04 MST" }}</p>
<table style="border-collapse:collapse;width:100%">
{{- range .Rows }}
<tr><th style="text-align:left;padding:6px 8px;border-bottom:1px solid #eee;width:35%">{{ .Label }}</th><td style="padding:6px 8px;border-bottom:1px solid #eee">{{ .Value }}</td></tr>
{{- end }}
</table>
{{- if .AdminURL }}
<p style="margin-top:16px"><a href="{{ .AdminURL }}">View all submissions</a></p>
{{- end }}
</div>`

var submissionNotify = template.Must(template.New("submission").Parse(submissionNotifyTpl))

// SendSubmissionNotify tells the form owners about a new submission.
func (s *Sender) SendSubmissionNotify(ctx context.Context, to []string, data SubmissionNotifyData) error {
	if data.SubmittedAt.IsZero() {
		data.SubmittedAt = time.Now()
	}
	title := strings.TrimSpace(data.FormTitle)
	if title == "" {
		title = "Untitled form"
		data.FormTitle = title
	}
	html, err := renderSubmissionNotify(data)
	if err != nil {
		return err
	}
	return s.Send(ctx, Message{
		To:      to,
		Subject: fmt.Sprintf("[%s] New submission", title),
		HTML:    html,
	})
}

func renderSubmissionNotify(data SubmissionNotifyData) (string, error) {
	var buf bytes.Buffer
	if err := submissionNotify.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
