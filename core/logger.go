package core

// Logger is any service that can log app messages.
// Args may contain errors, extra data maps and the acting user.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}

// Person is the identity attached to logged errors.
type Person struct {
	ID    string
	Name  string
	Email string
}
