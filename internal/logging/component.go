package logging

import "strings"

// Logger is a component-scoped view of the package-level logger.
// The zero value logs without a component tag.
type Logger struct {
	prefix string
}

// For returns a logger whose lines are tagged with the given component name.
func For(component string) *Logger {
	component = strings.TrimSpace(component)
	if component == "" {
		return &Logger{}
	}
	return &Logger{prefix: "[" + component + "] "}
}

// Component returns the component tag, without brackets.
func (l *Logger) Component() string {
	return strings.TrimSuffix(strings.TrimPrefix(l.prefix, "["), "] ")
}

// Debug logs a debug message for the component.
func (l *Logger) Debug(format string, args ...interface{}) {
	Debug(l.prefix+format, args...)
}

// Info logs an info message for the component.
func (l *Logger) Info(format string, args ...interface{}) {
	Info(l.prefix+format, args...)
}

// Warn logs a warning for the component.
func (l *Logger) Warn(format string, args ...interface{}) {
	Warn(l.prefix+format, args...)
}

// Error logs an error for the component.
func (l *Logger) Error(format string, args ...interface{}) {
	Error(l.prefix+format, args...)
}
