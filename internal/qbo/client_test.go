package qbo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type staticTokenSource string

func (s staticTokenSource) AccessToken(ctx context.Context, realmID string) (string, error) {
	return string(s), nil
}

func newTestClient(srv *httptest.Server) *HTTPClient {
	return &HTTPClient{
		apiBase:      srv.URL,
		minorVersion: "70",
		tokens:       staticTokenSource("test-token"),
		http:         &http.Client{Timeout: 5 * time.Second},
	}
}

func TestEscapeQuery(t *testing.T) {
	assert.Equal(t, "A-1042", EscapeQuery("A-1042"))
	assert.Equal(t, "O''Brien Hauling", EscapeQuery("O'Brien Hauling"))
	assert.Equal(t, "'' OR ''1''=''1", EscapeQuery("' OR '1'='1"))
}

func TestHTTPClient_FindVendor(t *testing.T) {
	var gotQuery, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]any{
			"QueryResponse": map[string]any{
				"Vendor": []map[string]any{{"Id": "V1", "DisplayName": "H-77", "Active": true}},
			},
		})
	}))
	defer srv.Close()

	vendors, err := newTestClient(srv).FindVendor(context.Background(), "realm1", "H-77")
	assert.NoError(t, err)
	if assert.Len(t, vendors, 1) {
		assert.Equal(t, "V1", vendors[0].ID)
	}
	assert.Equal(t, "SELECT * FROM Vendor WHERE Id = 'H-77'", gotQuery)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestHTTPClient_FindCustomers_EscapesQuote(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("query")
		json.NewEncoder(w).Encode(map[string]any{"QueryResponse": map[string]any{}})
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FindCustomersByDisplayName(context.Background(), "realm1", "O'Brien")
	assert.NoError(t, err)
	assert.Equal(t, "SELECT * FROM Customer WHERE DisplayName LIKE '%O''Brien%'", gotQuery)
}

func TestHTTPClient_GetAccount_EmptyResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"QueryResponse": map[string]any{}})
	}))
	defer srv.Close()

	account, err := newTestClient(srv).GetAccount(context.Background(), "realm1", "1150040001")
	assert.NoError(t, err)
	assert.Nil(t, account)
}

func TestHTTPClient_FindBillByDocNumber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"QueryResponse": map[string]any{
				"Bill": []map[string]any{{"Id": "QB9", "DocNumber": "B-1042"}},
			},
		})
	}))
	defer srv.Close()

	bill, err := newTestClient(srv).FindBillByDocNumber(context.Background(), "realm1", "B-1042")
	assert.NoError(t, err)
	if assert.NotNil(t, bill) {
		assert.Equal(t, "QB9", bill.ID)
	}
}

func TestHTTPClient_CreateBill(t *testing.T) {
	var gotPath string
	var gotBody Bill
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"Bill": map[string]any{"Id": "QB9", "DocNumber": gotBody.DocNumber},
		})
	}))
	defer srv.Close()

	payload := &Bill{
		DocNumber: "B-1042",
		VendorRef: Ref{Value: "V1"},
		TxnDate:   "2025-03-10",
		DueDate:   "2025-03-25",
		Line: []Line{{
			DetailType: "AccountBasedExpenseLineDetail",
			Amount:     125.50,
			Detail:     ExpenseDetail{AccountRef: Ref{Value: "A1"}},
		}},
	}

	created, err := newTestClient(srv).CreateBill(context.Background(), "realm1", payload)
	assert.NoError(t, err)
	assert.Equal(t, "QB9", created.ID)
	assert.Equal(t, "/v3/company/realm1/bill", gotPath)
	assert.Equal(t, "B-1042", gotBody.DocNumber)
}

func TestHTTPClient_ErrorEmbedsStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"Fault":{"type":"ValidationFault"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).FindVendor(context.Background(), "realm1", "H-77")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestAuthClient_AuthorizationURL(t *testing.T) {
	a := NewAuthClient("client-id", "client-secret", "https://svc.example.com/qbo/callback")
	raw := a.AuthorizationURL(ScopeAccounting, "state123")

	u, err := url.Parse(raw)
	assert.NoError(t, err)
	assert.Equal(t, "appcenter.intuit.com", u.Host)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, ScopeAccounting, q.Get("scope"))
	assert.Equal(t, "https://svc.example.com/qbo/callback", q.Get("redirect_uri"))
	assert.Equal(t, "state123", q.Get("state"))
}
