package qbo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	sandboxAPIBase    = "https://sandbox-quickbooks.api.intuit.com"
	productionAPIBase = "https://quickbooks.api.intuit.com"
)

// TokenSource supplies a currently-valid access token for a realm. Implemented
// by the token lifecycle manager.
type TokenSource interface {
	AccessToken(ctx context.Context, realmID string) (string, error)
}

// Client is the QuickBooks API surface the sync engine consumes.
type Client interface {
	FindVendor(ctx context.Context, realmID, vendorID string) ([]Vendor, error)
	FindCustomersByDisplayName(ctx context.Context, realmID, fragment string) ([]Customer, error)
	GetAccount(ctx context.Context, realmID, accountID string) (*Account, error)
	FindDepartments(ctx context.Context, realmID, nameFragment string) ([]Department, error)
	FindBillByDocNumber(ctx context.Context, realmID, docNumber string) (*Bill, error)
	CreateBill(ctx context.Context, realmID string, bill *Bill) (*Bill, error)
}

// HTTPClient talks to the QuickBooks v3 REST API.
type HTTPClient struct {
	apiBase      string
	minorVersion string
	tokens       TokenSource
	http         *http.Client
}

func NewHTTPClient(environment, minorVersion string, tokens TokenSource) *HTTPClient {
	base := sandboxAPIBase
	if environment == "production" {
		base = productionAPIBase
	}
	return &HTTPClient{
		apiBase:      base,
		minorVersion: minorVersion,
		tokens:       tokens,
		http:         &http.Client{Timeout: 30 * time.Second},
	}
}

// EscapeQuery doubles single quotes so user data cannot break out of a
// QuickBooks query string literal.
func EscapeQuery(v string) string {
	return strings.ReplaceAll(v, "'", "''")
}

// queryResponse is the envelope QuickBooks wraps query results in.
type queryResponse struct {
	QueryResponse struct {
		Vendor     []Vendor     `json:"Vendor"`
		Customer   []Customer   `json:"Customer"`
		Account    []Account    `json:"Account"`
		Department []Department `json:"Department"`
		Bill       []Bill       `json:"Bill"`
	} `json:"QueryResponse"`
}

func (c *HTTPClient) FindVendor(ctx context.Context, realmID, vendorID string) ([]Vendor, error) {
	q := fmt.Sprintf("SELECT * FROM Vendor WHERE Id = '%s'", EscapeQuery(vendorID))
	var out queryResponse
	if err := c.query(ctx, realmID, q, &out); err != nil {
		return nil, err
	}
	return out.QueryResponse.Vendor, nil
}

func (c *HTTPClient) FindCustomersByDisplayName(ctx context.Context, realmID, fragment string) ([]Customer, error) {
	q := fmt.Sprintf("SELECT * FROM Customer WHERE DisplayName LIKE '%%%s%%'", EscapeQuery(fragment))
	var out queryResponse
	if err := c.query(ctx, realmID, q, &out); err != nil {
		return nil, err
	}
	return out.QueryResponse.Customer, nil
}

func (c *HTTPClient) GetAccount(ctx context.Context, realmID, accountID string) (*Account, error) {
	q := fmt.Sprintf("SELECT * FROM Account WHERE Id = '%s'", EscapeQuery(accountID))
	var out queryResponse
	if err := c.query(ctx, realmID, q, &out); err != nil {
		return nil, err
	}
	if len(out.QueryResponse.Account) == 0 {
		return nil, nil
	}
	return &out.QueryResponse.Account[0], nil
}

func (c *HTTPClient) FindDepartments(ctx context.Context, realmID, nameFragment string) ([]Department, error) {
	q := fmt.Sprintf("SELECT * FROM Department WHERE Name LIKE '%%%s%%'", EscapeQuery(nameFragment))
	var out queryResponse
	if err := c.query(ctx, realmID, q, &out); err != nil {
		return nil, err
	}
	return out.QueryResponse.Department, nil
}

func (c *HTTPClient) FindBillByDocNumber(ctx context.Context, realmID, docNumber string) (*Bill, error) {
	q := fmt.Sprintf("SELECT * FROM Bill WHERE DocNumber = '%s'", EscapeQuery(docNumber))
	var out queryResponse
	if err := c.query(ctx, realmID, q, &out); err != nil {
		return nil, err
	}
	if len(out.QueryResponse.Bill) == 0 {
		return nil, nil
	}
	return &out.QueryResponse.Bill[0], nil
}

func (c *HTTPClient) CreateBill(ctx context.Context, realmID string, bill *Bill) (*Bill, error) {
	body, err := json.Marshal(bill)
	if err != nil {
		return nil, fmt.Errorf("error encoding bill: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/bill?minorversion=%s",
		c.apiBase, url.PathEscape(realmID), c.minorVersion)

	respBody, err := c.do(ctx, http.MethodPost, realmID, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var out struct {
		Bill Bill `json:"Bill"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("error decoding bill response: %w", err)
	}
	return &out.Bill, nil
}

func (c *HTTPClient) query(ctx context.Context, realmID, q string, out any) error {
	endpoint := fmt.Sprintf("%s/v3/company/%s/query?query=%s&minorversion=%s",
		c.apiBase, url.PathEscape(realmID), url.QueryEscape(q), c.minorVersion)

	body, err := c.do(ctx, http.MethodGet, realmID, endpoint, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("error decoding query response: %w", err)
	}
	return nil
}

// do performs one authenticated request. Failures embed the HTTP status code
// in the message so the error classifier can spot transient signatures.
func (c *HTTPClient) do(ctx context.Context, method, realmID, endpoint string, body io.Reader) ([]byte, error) {
	accessToken, err := c.tokens.AccessToken(ctx, realmID)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("error building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("QuickBooks request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading QuickBooks response: %w", err)
	}

	if resp.StatusCode >= 400 {
		log.Printf("[QBO] %s %s -> %d", method, endpoint, resp.StatusCode)
		return nil, fmt.Errorf("QuickBooks API error %d: %s", resp.StatusCode, truncate(string(respBody), 500))
	}

	return respBody, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
