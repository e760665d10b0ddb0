package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseBillDate(t *testing.T) {
	got, err := ParseBillDate("2025-03-10")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), got)

	_, err = ParseBillDate("03/10/2025")
	assert.Error(t, err)

	_, err = ParseBillDate("")
	assert.Error(t, err)
}

func TestParseDueDate(t *testing.T) {
	got, err := ParseDueDate("03/15/2025")
	assert.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC), got)

	// surrounding whitespace from spreadsheet exports
	got, err = ParseDueDate(" 12/01/2025 ")
	assert.NoError(t, err)
	assert.Equal(t, time.December, got.Month())
}

func TestParseDueDate_RejectsDayMonthSwap(t *testing.T) {
	_, err := ParseDueDate("15/03/2025")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "want mm/dd/yyyy")
}

func TestParseDueDate_RejectsOtherFormats(t *testing.T) {
	for _, v := range []string{"2025-03-15", "3/15/25", "March 15, 2025", ""} {
		_, err := ParseDueDate(v)
		assert.Error(t, err, "input %q", v)
	}
}
