package records

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"github.com/billrelay/backend/internal/errs"
	"github.com/billrelay/backend/internal/models"
)

const defaultAPIBase = "https://api.airtable.com/v0"

// Client reads and writes billing records in the Airtable base the document
// pipeline populates. Linked entities are consumed through lookup fields, so
// one fetch returns everything the sync needs.
type Client struct {
	apiBase string
	token   string
	baseID  string
	table   string
	http    *http.Client
}

func NewClient(apiBase, token, baseID, table string) *Client {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &Client{
		apiBase: apiBase,
		token:   token,
		baseID:  baseID,
		table:   table,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// record is the raw Airtable envelope.
type record struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// FetchBill loads one billing record by its record ID.
func (c *Client) FetchBill(ctx context.Context, id string) (*models.Bill, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/%s",
		c.apiBase, url.PathEscape(c.baseID), url.PathEscape(c.table), url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("error building record request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, err, "record store unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, err, "error reading record response")
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, errs.NotFound("bill %s not found in record store", id)
	}
	if resp.StatusCode >= 400 {
		return nil, classifyRecordError(resp.StatusCode, body)
	}

	var rec record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("error decoding record %s: %w", id, err)
	}

	return mapRecord(&rec), nil
}

// SaveStatus updates the status pair on a record in a single PATCH.
func (c *Client) SaveStatus(ctx context.Context, id string, status models.BillStatus, detail string) error {
	payload := map[string]any{
		"fields": map[string]any{
			"Status":        string(status),
			"Status detail": detail,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error encoding status update: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s/%s",
		c.apiBase, url.PathEscape(c.baseID), url.PathEscape(c.table), url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error building status request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Wrap(errs.KindTransient, err, "record store unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return classifyRecordError(resp.StatusCode, respBody)
	}
	return nil
}

func classifyRecordError(status int, body []byte) error {
	err := fmt.Errorf("record store error %d: %s", status, string(body))
	if status == http.StatusTooManyRequests || status >= 500 {
		return errs.Wrap(errs.KindTransient, err, "record store temporarily unavailable")
	}
	return errs.Wrap(errs.KindValidation, err, "record store rejected the request")
}

// mapRecord flattens the Airtable field shapes (lookups come back as arrays)
// onto the bill model.
func mapRecord(rec *record) *models.Bill {
	f := rec.Fields
	return &models.Bill{
		ID:              rec.ID,
		BillNumber:      str(f["Bill #"]),
		Status:          models.BillStatus(str(f["Status"])),
		StatusDetail:    str(f["Status detail"]),
		PDFLink:         str(f["PDF Link"]),
		BillDate:        str(f["Bill date"]),
		Due:             str(f["Due"]),
		Amount:          dec(f["Bill amount"]),
		HaulerNumber:    firstStr(f["Hauler Number 🔎"]),
		CustomerAccount: firstStr(f["Account Number 🔎"]),
		ServiceType:     firstStr(f["Service Type 🔎"]),
		ServiceAccount:  firstStr(f["Service Account 🔎"]),
		Terms:           intOf(f["Terms"]),
	}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

// firstStr unwraps single-element lookup arrays; plain strings pass through.
func firstStr(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []any:
		if len(t) > 0 {
			return str(t[0])
		}
	}
	return ""
}

func dec(v any) decimal.Decimal {
	switch t := v.(type) {
	case float64:
		return decimal.NewFromFloat(t)
	case string:
		if d, err := decimal.NewFromString(t); err == nil {
			return d
		}
	}
	return decimal.Zero
}

func intOf(v any) int {
	if f, ok := v.(float64); ok {
		return int(f)
	}
	return 0
}
