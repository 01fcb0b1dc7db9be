// Package emailsvc holds the core.EmailService implementations.
package emailsvc

import "github.com/thinkquality/thinkquality/core"

// New returns the sendgrid service when an API key is configured, the console service otherwise.
func New(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.SendgridApiKey != "" && !conf.TestMode {
		return NewSendgridService(conf, logger)
	}
	return NewConsoleService(logger)
}
