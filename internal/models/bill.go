package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// BillStatus tracks a billing record through its workflow. The record store is
// the source of truth for these values; this service only moves records from
// StatusSendToQB to StatusInQB or StatusIssueQB.
type BillStatus string

const (
	StatusDone        BillStatus = "Done"
	StatusLeave       BillStatus = "Leave"
	StatusSendToQB    BillStatus = "Send bill to QB"
	StatusIssueQB     BillStatus = "Issue sending to QB"
	StatusInQB        BillStatus = "Bill in QB"
	StatusSendToSF    BillStatus = "Send invoice to SF"
	StatusIssueSF     BillStatus = "Issue sending to SF"
	StatusInvoiceInSF BillStatus = "Invoice in SF"
)

// ServiceType drives the expense-account mapping.
type ServiceType string

const (
	ServiceTrash          ServiceType = "Trash"
	ServiceRollOff        ServiceType = "Roll off (move to tempo or monthly)"
	ServiceRollOffMonthly ServiceType = "Roll off - Monthly"
	ServiceRollOffTemp    ServiceType = "Roll off - Temp"
	ServiceCompactor      ServiceType = "Compactor"
	ServiceRecycling      ServiceType = "Recycling"
	ServiceMisc           ServiceType = "Misc"
)

// Bill is the subset of the external billing record this service reads. Linked
// entities come back flattened by the record-store client.
type Bill struct {
	ID              string          `json:"id"`
	BillNumber      string          `json:"bill_number"`
	Status          BillStatus      `json:"status"`
	StatusDetail    string          `json:"status_detail"`
	PDFLink         string          `json:"pdf_link"`
	BillDate        string          `json:"bill_date"`
	Due             string          `json:"due"`
	Amount          decimal.Decimal `json:"bill_amount"`
	HaulerNumber    string          `json:"hauler_number"`
	CustomerAccount string          `json:"customer_account"`
	ServiceType     string          `json:"service_type"`
	ServiceAccount  string          `json:"service_account"`
	Terms           int             `json:"terms"`
}

// BillSchema is the validated, fully-typed form a bill must reach before any
// QuickBooks call is made.
type BillSchema struct {
	BillNumber      string          `validate:"required,max=50"`
	Status          BillStatus      `validate:"required"`
	PDFLink         string          `validate:"required,url"`
	BillDate        time.Time       `validate:"required"`
	Due             time.Time       `validate:"required"`
	HaulerNumber    string          `validate:"required"`
	CustomerAccount string          `validate:"required,max=50"`
	ServiceType     ServiceType     `validate:"required"`
	ServiceAccount  string          `validate:"max=50"`
	Amount          decimal.Decimal `validate:"required"`
	Terms           int             `validate:"gte=0"`
}

// ParseBillDate accepts the record store's ISO date format.
func ParseBillDate(v string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid bill date %q: %w", v, err)
	}
	return t, nil
}

// ParseDueDate accepts the record store's mm/dd/yyyy due field. time.Parse
// rejects out-of-range components, so a day/month swap like "15/03/2025"
// fails instead of silently producing a wrong date.
func ParseDueDate(v string) (time.Time, error) {
	t, err := time.Parse("01/02/2006", strings.TrimSpace(v))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid due date %q, want mm/dd/yyyy: %w", v, err)
	}
	return t, nil
}
