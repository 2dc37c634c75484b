package mailer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/textproto"
	"strings"

	"github.com/samber/oops"

	"github.com/nixlim/mailwatch/internal/events"
)

// Monitor error codes carried by transport errors.
const (
	CodeQuotaExceeded = events.CodeQuotaExceeded
	CodeInvalidEmail  = events.CodeInvalidEmail
	CodeAPIError      = events.CodeAPIError
	CodeNetworkError  = events.CodeNetworkError
)

// CodeOf returns the monitor error code of err. Errors without a code are
// classified as NETWORK_ERROR when they come from the network and API_ERROR
// otherwise. A nil error has no code.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}

	if oopsErr, ok := oops.AsOops(err); ok {
		switch code := oopsErr.Code().(type) {
		case string:
			if code != "" {
				return code
			}
		case nil:
		default:
			return fmt.Sprint(code)
		}
	}

	if isNetworkError(err) {
		return CodeNetworkError
	}
	return CodeAPIError
}

func isNetworkError(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// replyError codes an SMTP server reply. Replies mentioning a quota or rate
// limit become QUOTA_EXCEEDED whatever stage they arrive at; other rejections
// get fallback.
func replyError(err error, fallback, stage string) error {
	var tpErr *textproto.Error
	if errors.As(err, &tpErr) {
		msg := strings.ToLower(tpErr.Msg)
		if strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit") {
			return oops.Code(CodeQuotaExceeded).Wrapf(err, "%s", stage)
		}
		return oops.Code(fallback).Wrapf(err, "%s", stage)
	}
	if isNetworkError(err) {
		return oops.Code(CodeNetworkError).Wrapf(err, "%s", stage)
	}
	return oops.Code(fallback).Wrapf(err, "%s", stage)
}
