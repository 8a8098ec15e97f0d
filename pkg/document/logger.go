package document

// LogField is one key/value pair attached to a log message.
// Named apart from the schema Field it sits next to.
type LogField struct {
	Key   string
	Value any
}

// Logger receives the model's structured log output.
// Adapters live under logger/ (zerolog, zap).
type Logger interface {
	Debug(msg string, fields ...LogField)
	Info(msg string, fields ...LogField)
	Warn(msg string, fields ...LogField)
	Error(msg string, fields ...LogField)
}

// NoopLogger discards everything
type NoopLogger struct{}

func (n *NoopLogger) Debug(string, ...LogField) {}
func (n *NoopLogger) Info(string, ...LogField)  {}
func (n *NoopLogger) Warn(string, ...LogField)  {}
func (n *NoopLogger) Error(string, ...LogField) {}
