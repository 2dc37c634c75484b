// Package receiver accepts the web application's send telemetry over OTLP.
//
// The application exports one OTLP log record per email send attempt. Both
// the gRPC LogsService and the OTLP/HTTP /v1/logs endpoint decode those
// records into success and failure reports for the monitor.
package receiver

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/nixlim/mailwatch/internal/monitor"

	collogspb "go.opentelemetry.io/proto/otlp/collector/logs/v1"
	commonpb "go.opentelemetry.io/proto/otlp/common/v1"
	logspb "go.opentelemetry.io/proto/otlp/logs/v1"
)

// SendEventName is the event name carried by send-attempt log records.
const SendEventName = "email.send"

const (
	attrEventName    = "event.name"
	attrOutcome      = "email.outcome"
	attrResponseTime = "email.response_time_ms"
	attrErrorCode    = "error.code"
	attrErrorMessage = "error.message"

	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Recorder receives decoded send attempts. *monitor.Monitor satisfies it.
type Recorder interface {
	RecordSuccess(responseTimeMs int)
	RecordFailure(err monitor.SendError, responseTimeMs int)
}

// Attempt is one decoded send-attempt record.
type Attempt struct {
	Outcome        string
	ResponseTimeMs int
	Code           string
	Message        string
	Timestamp      time.Time
}

// Option configures a receiver.
type Option func(*options)

type options struct {
	logger zerolog.Logger
	debug  Logger
}

// WithLogger sets the operational logger.
func WithLogger(l zerolog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDebugLogger records every decoded attempt to the given Logger.
func WithDebugLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.debug = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zerolog.Nop(), debug: NopLogger{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// exportResult counts what one export request contained.
type exportResult struct {
	accepted int
	rejected int
	ignored  int
}

// processLogs feeds every send-attempt record in req to rec. Records with
// another event name are ignored. Send records with an unknown outcome are
// rejected.
func processLogs(req *collogspb.ExportLogsServiceRequest, rec Recorder, debug Logger) exportResult {
	var res exportResult
	for _, rl := range req.GetResourceLogs() {
		for _, sl := range rl.GetScopeLogs() {
			for _, lr := range sl.GetLogRecords() {
				attempt, ok, valid := decodeAttempt(lr)
				switch {
				case !ok:
					res.ignored++
					continue
				case !valid:
					res.rejected++
					continue
				}

				debug.LogAttempt(attempt)
				if attempt.Outcome == outcomeSuccess {
					rec.RecordSuccess(attempt.ResponseTimeMs)
				} else {
					rec.RecordFailure(monitor.SendError{
						Message: attempt.Message,
						Code:    attempt.Code,
					}, attempt.ResponseTimeMs)
				}
				res.accepted++
			}
		}
	}
	return res
}

// logResult reports what an export request did not turn into send attempts.
func logResult(log zerolog.Logger, res exportResult) {
	if res.rejected > 0 {
		log.Warn().Int("rejected", res.rejected).Msg("rejected email.send records without a valid outcome")
	}
	if res.ignored > 0 {
		log.Debug().Int("ignored", res.ignored).Int("accepted", res.accepted).Msg("ignored non-email log records")
	}
}

// decodeAttempt extracts a send attempt from a log record. ok is false when
// the record is not a send event; valid is false when it is one but carries
// no recognisable outcome.
func decodeAttempt(lr *logspb.LogRecord) (attempt Attempt, ok, valid bool) {
	attrs := attributeMap(lr.GetAttributes())

	name := lr.GetEventName()
	if name == "" {
		name = stringValue(attrs[attrEventName])
	}
	if name != SendEventName {
		return Attempt{}, false, false
	}

	attempt = Attempt{
		Outcome:        strings.ToLower(stringValue(attrs[attrOutcome])),
		ResponseTimeMs: intValue(attrs[attrResponseTime]),
		Code:           stringValue(attrs[attrErrorCode]),
		Message:        stringValue(attrs[attrErrorMessage]),
	}
	if ts := lr.GetTimeUnixNano(); ts > 0 {
		attempt.Timestamp = time.Unix(0, int64(ts)).UTC()
	} else if ts := lr.GetObservedTimeUnixNano(); ts > 0 {
		attempt.Timestamp = time.Unix(0, int64(ts)).UTC()
	}

	switch attempt.Outcome {
	case outcomeSuccess, outcomeError:
		return attempt, true, true
	default:
		return attempt, true, false
	}
}

func attributeMap(kvs []*commonpb.KeyValue) map[string]*commonpb.AnyValue {
	m := make(map[string]*commonpb.AnyValue, len(kvs))
	for _, kv := range kvs {
		m[kv.GetKey()] = kv.GetValue()
	}
	return m
}

func stringValue(v *commonpb.AnyValue) string {
	if v == nil {
		return ""
	}
	switch val := v.GetValue().(type) {
	case *commonpb.AnyValue_StringValue:
		return val.StringValue
	case *commonpb.AnyValue_IntValue:
		return strconv.FormatInt(val.IntValue, 10)
	case *commonpb.AnyValue_DoubleValue:
		return strconv.FormatFloat(val.DoubleValue, 'f', -1, 64)
	case *commonpb.AnyValue_BoolValue:
		return strconv.FormatBool(val.BoolValue)
	default:
		return ""
	}
}

// intValue reads a latency attribute. Anything that does not parse as a
// number counts as 0.
func intValue(v *commonpb.AnyValue) int {
	if v == nil {
		return 0
	}
	switch val := v.GetValue().(type) {
	case *commonpb.AnyValue_IntValue:
		return int(val.IntValue)
	case *commonpb.AnyValue_DoubleValue:
		return roundMs(val.DoubleValue)
	case *commonpb.AnyValue_StringValue:
		s := strings.TrimSpace(val.StringValue)
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return roundMs(f)
		}
		return 0
	default:
		return 0
	}
}

func roundMs(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(f))
}

func partialSuccess(res exportResult) *collogspb.ExportLogsPartialSuccess {
	if res.rejected == 0 {
		return nil
	}
	return &collogspb.ExportLogsPartialSuccess{
		RejectedLogRecords: int64(res.rejected),
		ErrorMessage:       "email.send records need email.outcome success or error",
	}
}
