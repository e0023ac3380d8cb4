package core

// Logger is any service the app can log to.
//
// args may carry an error, a map[string]interface{} of extra context
// and/or an identity.Identity to attach to the report.
type Logger interface {
	Enable(enabled bool)
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Fatal(msg string, args ...interface{})
}
