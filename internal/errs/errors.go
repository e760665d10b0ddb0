package errs

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Kind classifies a failure for retry decisions and record write-back.
type Kind string

const (
	KindNotFound            Kind = "not_found"             // referenced entity missing, no retry
	KindValidation          Kind = "validation"            // bad input or non-transient API rejection, no retry
	KindTransient           Kind = "transient"             // lock/queue/API unavailable, retry with backoff
	KindNotConnected        Kind = "not_connected"         // no QuickBooks connection row for the realm
	KindMissingRefreshToken Kind = "missing_refresh_token" // connection row has no usable refresh token
)

// StatusCode maps a kind onto its HTTP-equivalent status.
func (k Kind) StatusCode() int {
	switch k {
	case KindNotFound:
		return 404
	case KindTransient:
		return 503
	default:
		return 400
	}
}

// Retryable reports whether the task runner should re-enqueue on this kind.
func (k Kind) Retryable() bool {
	return k == KindTransient
}

// Error is a classified domain failure. Payload carries any structured data
// worth surfacing on the billing record's status detail.
type Error struct {
	Kind    Kind
	Message string
	Payload map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Detail renders the record-facing detail string: status code, message, payload.
func (e *Error) Detail() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d: %s", e.Kind.StatusCode(), e.Error())
	if len(e.Payload) > 0 {
		fmt.Fprintf(&b, " | data=%v", e.Payload)
	}
	return b.String()
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func Transient(format string, args ...any) *Error {
	return &Error{Kind: KindTransient, Message: fmt.Sprintf(format, args...)}
}

func NotConnected(realmID string) *Error {
	return &Error{Kind: KindNotConnected, Message: fmt.Sprintf("QuickBooks is not connected for realm %s", realmID)}
}

func MissingRefreshToken(realmID string) *Error {
	return &Error{Kind: KindMissingRefreshToken, Message: fmt.Sprintf("connection for realm %s has no refresh token", realmID)}
}

// Wrap attaches a cause while keeping the kind and message.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the kind from err, or empty string for unclassified errors.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// DetailOf renders the record-facing detail for any error. Unclassified
// errors get a bare message with a 500 marker.
func DetailOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Detail()
	}
	return fmt.Sprintf("500: %v", err)
}

// statusPattern matches the "... error NNN:" prefix every HTTP client in this
// module embeds in its failure messages. Only the prefix is inspected; the
// echoed response body after the colon may contain arbitrary numbers (amounts,
// account IDs) that must not influence classification.
var statusPattern = regexp.MustCompile(`error (\d{3}):`)

// transport-level signatures that never carry an HTTP status
var transportMarkers = []string{
	"timeout", "deadline exceeded", "connection refused",
}

// ClassifyAPIError buckets a ledger-API failure: rate limits, 5xx and network
// timeouts are retryable, everything else is treated as a rejection of the
// request itself.
func ClassifyAPIError(err error) *Error {
	msg := err.Error()
	if m := statusPattern.FindStringSubmatch(msg); m != nil {
		code, _ := strconv.Atoi(m[1])
		if code == 429 || code >= 500 {
			return Wrap(KindTransient, err, "QuickBooks API temporarily unavailable")
		}
		return Wrap(KindValidation, err, "QuickBooks API rejected the request")
	}
	for _, marker := range transportMarkers {
		if strings.Contains(msg, marker) {
			return Wrap(KindTransient, err, "QuickBooks API unreachable")
		}
	}
	return Wrap(KindValidation, err, "QuickBooks API rejected the request")
}
