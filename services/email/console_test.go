package emailsvc

import (
	"bytes"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thinkquality/thinkquality/core"
)

func TestConsoleService_SendMessages(t *testing.T) {
	svc := NewConsoleServiceMock()
	var out bytes.Buffer
	svc.out = &out

	msg := &core.EmailMessage{
		To:      []mail.Address{{Name: "Jane", Address: "jane@example.com"}},
		Subject: "Hello",
		BodyStr: "plain body",
	}
	require.NoError(t, msg.Attach(strings.NewReader("a,b\n1,2\n"), "report.csv", "text/csv"))
	svc.SendMessages(msg)

	sent := svc.Outbox.Messages()
	require.Len(t, sent, 1)
	assert.Equal(t, "plain body", sent[0].TextContent)

	body := out.String()
	assert.Contains(t, body, `Subject: [`+core.Conf.AppName+`] Hello`)
	assert.Contains(t, body, `To: "Jane" <jane@example.com>`)
	assert.Contains(t, body, "multipart/mixed")
	assert.Contains(t, body, "attachment; filename=report.csv")
}

func TestConsoleService_SkipsMessagesWithoutRecipients(t *testing.T) {
	svc := NewConsoleServiceMock()
	svc.SendMessages(&core.EmailMessage{Subject: "Nobody", BodyStr: "body"})
	assert.Empty(t, svc.Outbox.Messages())
}

func TestOutbox_Find(t *testing.T) {
	o := new(Outbox)
	o.add(core.EmailMessage{TemplateName: "welcome"})
	o.add(core.EmailMessage{TemplateName: "password_reset"})
	o.add(core.EmailMessage{TemplateName: "welcome"})

	assert.Len(t, o.Find("welcome"), 2)
	assert.Len(t, o.Find("jobcard_assigned"), 0)

	o.Reset()
	assert.Empty(t, o.Messages())
}
