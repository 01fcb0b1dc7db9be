package emailsvc

import (
	"fmt"
	"net/http"
	"net/mail"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/thinkquality/thinkquality/core"
)

// maxInFlight bounds the concurrent calls to the sendgrid API.
const maxInFlight = 8

type sendgridMailer struct {
	client   *sendgrid.Client
	from     *sgmail.Email
	prefix   string
	category string
	logger   core.Logger
	inFlight chan struct{}
}

var _ core.EmailService = (*sendgridMailer)(nil)

func NewSendgridService(conf *core.Config, logger core.Logger) *sendgridMailer {
	return &sendgridMailer{
		client:   sendgrid.NewSendClient(conf.SendgridApiKey),
		from:     sgmail.NewEmail(conf.DefaultFromEmail.Name, conf.DefaultFromEmail.Address),
		prefix:   "[" + conf.AppName + "] ",
		category: strings.ToLower(conf.AppName),
		logger:   logger,
		inFlight: make(chan struct{}, maxInFlight),
	}
}

// SendMessages renders and sends every message in the background.
// Failures are logged, never returned.
func (svc *sendgridMailer) SendMessages(messages ...*core.EmailMessage) {
	for _, msg := range messages {
		go svc.deliver(msg)
	}
}

func (svc *sendgridMailer) deliver(msg *core.EmailMessage) {
	svc.inFlight <- struct{}{}
	defer func() { <-svc.inFlight }()

	if err := msg.Render(); err != nil {
		svc.logger.Error("rendering email", err, map[string]interface{}{"template": msg.TemplateName})
		return
	}
	if !msg.HasRecipients() || !(msg.HasContent() || msg.HasAttachments()) {
		return
	}

	res, err := svc.client.Send(svc.payload(*msg))
	switch {
	case err != nil:
		svc.logger.Error("sending email", err, map[string]interface{}{"subject": msg.Subject})
	case res.StatusCode >= http.StatusBadRequest:
		svc.logger.Error(fmt.Sprintf("sending email: status %d", res.StatusCode), map[string]interface{}{
			"subject": msg.Subject,
			"body":    res.Body,
		})
	}
}

// payload maps msg to a sendgrid v3 mail. The API rejects an address listed twice
// in a personalization, so each address is kept in the first of to, cc and bcc it shows up in.
func (svc *sendgridMailer) payload(msg core.EmailMessage) *sgmail.SGMailV3 {
	seen := make(map[string]bool)
	emails := func(addrs []mail.Address) []*sgmail.Email {
		var out []*sgmail.Email
		for _, addr := range addrs {
			key := strings.ToLower(strings.TrimSpace(addr.Address))
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, sgmail.NewEmail(addr.Name, addr.Address))
		}
		return out
	}

	p := sgmail.NewPersonalization()
	p.Subject = svc.prefix + msg.Subject
	p.AddTos(emails(msg.To)...)
	p.AddCCs(emails(msg.Cc)...)
	p.AddBCCs(emails(msg.Bcc)...)

	m := sgmail.NewV3Mail()
	m.SetFrom(svc.from)
	m.AddPersonalizations(p)
	m.AddCategories(svc.category)
	if msg.TemplateName != "" {
		m.AddCategories(msg.TemplateName)
	}

	m.AddContent(sgmail.NewContent("text/plain", msg.TextContent))
	if msg.HTMLContent != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTMLContent))
	}

	for _, at := range msg.Attachments {
		if at.Content == nil {
			continue
		}
		m.AddAttachment(&sgmail.Attachment{
			Content:     at.Content.String(),
			Type:        at.ContentType,
			Filename:    at.Filename,
			Disposition: "attachment",
		})
	}
	return m
}
