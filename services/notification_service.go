package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"

	"go.uber.org/zap"

	"manuscript-workflow-api/models"
)

// Message is one outbound notification.
type Message struct {
	Recipients []string
	Subject    string
	HTMLBody   string
}

// Dispatcher delivers a message. A returned error means nothing was delivered.
// Retries, if any, belong to the implementation.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}

// MailSender is the SMTP capability provided by config.Mailer.
type MailSender interface {
	SendMail(to []string, subject, html string) error
}

// MailDispatcher sends notices over SMTP.
type MailDispatcher struct {
	sender MailSender
}

func NewMailDispatcher(sender MailSender) *MailDispatcher {
	return &MailDispatcher{sender: sender}
}

func (d *MailDispatcher) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(msg.Recipients) == 0 {
		return errors.New("no recipients")
	}
	return d.sender.SendMail(msg.Recipients, msg.Subject, msg.HTMLBody)
}

// LogDispatcher only logs notices. Used when SMTP_DISABLED is set.
type LogDispatcher struct {
	logger *zap.Logger
}

func NewLogDispatcher(logger *zap.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(_ context.Context, msg Message) error {
	d.logger.Info("notification (smtp disabled)",
		zap.Strings("recipients", msg.Recipients),
		zap.String("subject", msg.Subject),
	)
	return nil
}

type noticeKind string

const (
	noticeRevision    noticeKind = "revision_requested"
	noticeRejection   noticeKind = "rejected"
	noticePublication noticeKind = "published"
)

type noticeTemplate struct {
	subject string
	body    *template.Template
}

var noticeTemplates = map[noticeKind]noticeTemplate{
	noticeRevision: {
		subject: "Manuscript Needs Revision",
		body: template.Must(template.New("revision").Parse(
			`<p>Hello {{.Author}} <br/> Your manuscript entitled {{.Title}} ({{.FileCode}}) needs revision.` +
				`{{if .Comment}} <br/>Comment: {{.Comment}}{{end}}</p>`)),
	},
	noticeRejection: {
		subject: "Manuscript Update: Rejected",
		body: template.Must(template.New("rejection").Parse(
			`<p>Hello {{.Author}} <br/> We regret to inform you that your manuscript entitled {{.Title}} ({{.FileCode}}) was not accepted.` +
				`{{if .Reason}} <br/>Reason: {{.Reason}}{{end}}{{if .Comment}} <br/>Comment: {{.Comment}}{{end}}</p>`)),
	},
	noticePublication: {
		subject: "Manuscript Update: Published",
		body: template.Must(template.New("publication").Parse(
			`<p>Hello {{.Author}} <br/>Your manuscript entitled {{.Title}} is now Published` +
				`{{if .Issue}} in {{.Issue}}{{end}}{{if .Volume}}, {{.Volume}}{{end}}.</p>`)),
	},
}

type noticeData struct {
	Author   string
	Title    string
	FileCode string
	Comment  string
	Reason   string
	Issue    string
	Volume   string
}

// renderNotice builds the author-facing message for kind from the post-transition record.
func renderNotice(kind noticeKind, m *models.Manuscript) (Message, error) {
	tmpl, ok := noticeTemplates[kind]
	if !ok {
		return Message{}, fmt.Errorf("no template for notice %q", kind)
	}

	data := noticeData{
		Author:   m.PrimaryAuthor(),
		Title:    m.Title,
		FileCode: m.FileCode,
	}
	switch kind {
	case noticeRevision:
		data.Comment = deref(m.RevisionComment)
	case noticeRejection:
		data.Reason = deref(m.RejectReason)
		data.Comment = deref(m.RejectComment)
	case noticePublication:
		if m.IssueNumber != nil {
			data.Issue = "Issue " + string(*m.IssueNumber)
			if *m.IssueNumber == models.IssueSpecial {
				data.Issue = "the Special Issue " + deref(m.IssueName)
			}
		}
		data.Volume = deref(m.VolumeName)
	}

	var buf bytes.Buffer
	if err := tmpl.body.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render %s notice: %w", kind, err)
	}
	return Message{
		Recipients: []string{m.AuthorEmail},
		Subject:    tmpl.subject,
		HTMLBody:   buf.String(),
	}, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
