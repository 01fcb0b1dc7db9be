package logsvc

import (
	"bytes"
	"log"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/thinkquality/thinkquality/core"
)

type actor struct{}

func (actor) Person() core.Person {
	return core.Person{ID: "42", Name: "Jane", Email: "jane@example.com"}
}

func TestRollbarLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewRollbarLogger(log.New(&buf, "", 0), &core.Config{Env: "TEST", TestMode: true})

	args := logger.prepare("boom", []interface{}{errors.New("failed"), actor{}, map[string]interface{}{"id": 1}})
	assert.Len(t, args, 3, "the person is not forwarded as an extra")
	assert.Equal(t, "boom", args[0])

	logger.Error("boom", errors.New("failed"), actor{})
	out := buf.String()
	assert.Contains(t, out, "ERROR: boom")
	assert.Contains(t, out, "failed")
	assert.Contains(t, out, "person: jane@example.com")
}
