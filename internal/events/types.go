package events

import "time"

// Kind classifies a send attempt.
type Kind string

const (
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Well-known error codes reported by email transports. Any other string is
// accepted and treated opaquely.
const (
	CodeQuotaExceeded = "QUOTA_EXCEEDED"
	CodeInvalidEmail  = "INVALID_EMAIL"
	CodeAPIError      = "API_ERROR"
	CodeNetworkError  = "NETWORK_ERROR"
)

// SendError is the failure reported by an email transport.
type SendError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Event is one recorded send attempt.
type Event struct {
	Kind           Kind       `json:"type"`
	Timestamp      time.Time  `json:"timestamp"`
	ResponseTimeMs int        `json:"responseTime"`
	Error          *SendError `json:"error,omitempty"` // set only when Kind == KindError
}

// IsError reports whether the event is a failure carrying the given code.
// An empty code matches any failure.
func (e Event) IsError(code string) bool {
	if e.Kind != KindError || e.Error == nil {
		return false
	}
	return code == "" || e.Error.Code == code
}
