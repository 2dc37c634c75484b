package receiver

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"
)

// Logger records every decoded send attempt for debugging.
// Implementations must be safe for concurrent use.
type Logger interface {
	LogAttempt(a Attempt)
}

// NopLogger discards everything. It is the default when -debug is not given.
type NopLogger struct{}

// LogAttempt is a no-op.
func (NopLogger) LogAttempt(Attempt) {}

// logEntry is the JSON structure written by FileLogger.
type logEntry struct {
	Timestamp      string `json:"ts"`
	Outcome        string `json:"outcome"`
	ResponseTimeMs int    `json:"response_ms"`
	Code           string `json:"code,omitempty"`
	Message        string `json:"message,omitempty"`
}

// FileLogger writes one JSON object per line to an io.Writer.
type FileLogger struct {
	w   io.Writer
	now func() time.Time
	mu  sync.Mutex
}

func NewFileLogger(w io.Writer) *FileLogger {
	return &FileLogger{w: w, now: time.Now}
}

// LogAttempt writes a JSON line for a decoded send attempt. A zero attempt
// timestamp is replaced with the time of logging.
func (l *FileLogger) LogAttempt(a Attempt) {
	ts := a.Timestamp
	if ts.IsZero() {
		ts = l.now()
	}

	l.write(logEntry{
		Timestamp:      ts.UTC().Format(time.RFC3339Nano),
		Outcome:        a.Outcome,
		ResponseTimeMs: a.ResponseTimeMs,
		Code:           a.Code,
		Message:        a.Message,
	})
}

// Serialisation errors are dropped so debugging never disrupts the receiver.
func (l *FileLogger) write(entry logEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintf(l.w, "%s\n", data)
}
