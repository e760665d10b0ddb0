package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindStatusCode(t *testing.T) {
	assert.Equal(t, 404, KindNotFound.StatusCode())
	assert.Equal(t, 503, KindTransient.StatusCode())
	assert.Equal(t, 400, KindValidation.StatusCode())
	assert.Equal(t, 400, KindNotConnected.StatusCode())
	assert.Equal(t, 400, KindMissingRefreshToken.StatusCode())
}

func TestKindRetryable(t *testing.T) {
	assert.True(t, KindTransient.Retryable())
	assert.False(t, KindValidation.Retryable())
	assert.False(t, KindNotFound.Retryable())
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindValidation, KindOf(Validation("bad")))
	assert.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.Equal(t, Kind(""), KindOf(nil))

	// kind survives further wrapping
	wrapped := fmt.Errorf("outer: %w", Transient("inner"))
	assert.Equal(t, KindTransient, KindOf(wrapped))
}

func TestErrorDetail(t *testing.T) {
	e := NotFound("vendor %s not found", "H-77")
	assert.Equal(t, "404: vendor H-77 not found", e.Detail())

	e.Payload = map[string]any{"hauler": "H-77"}
	assert.Contains(t, e.Detail(), "| data=")
	assert.Contains(t, e.Detail(), "H-77")
}

func TestDetailOf_Unclassified(t *testing.T) {
	assert.Equal(t, "500: boom", DetailOf(errors.New("boom")))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("socket closed")
	e := Wrap(KindTransient, cause, "refresh failed")
	assert.ErrorIs(t, e, cause)
	assert.Contains(t, e.Error(), "refresh failed")
	assert.Contains(t, e.Error(), "socket closed")
}

func TestClassifyAPIError(t *testing.T) {
	transient := []string{
		"QuickBooks API error 429: Too Many Requests",
		"QuickBooks API error 500: internal error",
		"QuickBooks API error 502: bad gateway",
		"QuickBooks API error 503: maintenance",
		"QuickBooks API error 504: upstream timeout",
		"token endpoint error 503: upstream down",
		"dial tcp: connection refused",
		"context deadline exceeded",
		"net/http: request timeout",
	}
	for _, msg := range transient {
		assert.Equal(t, KindTransient, ClassifyAPIError(errors.New(msg)).Kind, msg)
	}

	validation := []string{
		"QuickBooks API error 400: Fault ValidationFault",
		"QuickBooks API error 403: forbidden",
		"something else entirely",
	}
	for _, msg := range validation {
		assert.Equal(t, KindValidation, ClassifyAPIError(errors.New(msg)).Kind, msg)
	}
}

// Classification keys on the status prefix alone. QBO validation faults echo
// the submitted payload, so the body routinely contains amounts and account
// IDs whose digits look like 5xx or 429 codes.
func TestClassifyAPIError_IgnoresNumbersInBody(t *testing.T) {
	validation := []string{
		"QuickBooks API error 400: Fault: Invalid account reference 1150040001 for amount 1500.00",
		"QuickBooks API error 400: DocNumber B-429 already assigned",
		"QuickBooks API error 403: realm 5021504 is not authorized",
	}
	for _, msg := range validation {
		assert.Equal(t, KindValidation, ClassifyAPIError(errors.New(msg)).Kind, msg)
	}

	// and the other direction: a 5xx whose body mentions a 400
	got := ClassifyAPIError(errors.New("QuickBooks API error 503: retry after 400ms"))
	assert.Equal(t, KindTransient, got.Kind)
}
