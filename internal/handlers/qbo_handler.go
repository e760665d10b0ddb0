package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/billrelay/backend/internal/qbo"
	"github.com/billrelay/backend/internal/token"
)

type QBOHandler struct {
	manager     *token.Manager
	environment string
}

func NewQBOHandler(manager *token.Manager, environment string) *QBOHandler {
	return &QBOHandler{manager: manager, environment: environment}
}

// Connect starts the OAuth flow
// @Summary Connect QuickBooks
// @Description Redirects to Intuit's consent page for the accounting scope
// @Tags qbo
// @Success 302 {string} string "Redirect to Intuit"
// @Router /qbo/connect [get]
func (h *QBOHandler) Connect(w http.ResponseWriter, r *http.Request) {
	authURL := h.manager.AuthorizationURL(qbo.ScopeAccounting, r.URL.Query().Get("state"))
	http.Redirect(w, r, authURL, http.StatusFound)
}

// Callback completes the OAuth flow
// @Summary OAuth callback
// @Description Exchanges the authorization code and persists the connection for the realm
// @Tags qbo
// @Produce json
// @Param code query string true "Authorization code"
// @Param realmId query string true "QuickBooks realm (company) ID"
// @Success 200 {object} object{message=string,realm=string}
// @Failure 400 {object} ErrorResponse
// @Router /qbo/callback [get]
func (h *QBOHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	realmID := r.URL.Query().Get("realmId")
	if code == "" || realmID == "" {
		SendErrorResponse(w, "code and realmId are required", http.StatusBadRequest, nil)
		return
	}

	err := h.manager.Connect(r.Context(), code, realmID, h.environment, qbo.ScopeAccounting)
	if err != nil {
		log.Printf("[QBO] Connect failed for realm %s: %v", realmID, err)
		SendErrorResponse(w, "QuickBooks connection failed", http.StatusBadRequest, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "QuickBooks Online connected successfully.",
		"realm":   realmID,
	})
}
