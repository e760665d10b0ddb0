package handlers

import (
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/billrelay/backend/internal/queue"
)

type WebhookHandler struct {
	queue     *queue.Queue
	validator *ValidationHelper
}

func NewWebhookHandler(q *queue.Queue) *WebhookHandler {
	return &WebhookHandler{
		queue:     q,
		validator: NewValidationHelper(),
	}
}

// WebhookRequest is the notification body from the record store automation.
// @Description Webhook notification carrying the billing record to sync
type WebhookRequest struct {
	ID      string `json:"id" validate:"required" example:"recA1B2C3D4E5F6"` // Billing record ID
	RealmID string `json:"realm_id,omitempty" example:"4620816365213760"`   // Optional QuickBooks realm override
}

// Receive accepts a billing-record notification and enqueues a sync job
// @Summary Receive billing record webhook
// @Description Accepts a notification, enqueues a sync job, responds immediately. Sync outcome is reported on the record itself.
// @Tags bills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body WebhookRequest true "Webhook notification"
// @Success 202 {object} object{message=string,job=string}
// @Failure 400 {object} ErrorResponse
// @Failure 503 {object} ErrorResponse
// @Router /bills/webhook [post]
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	var req WebhookRequest
	if err := dec.Decode(&req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		SendErrorResponse(w, "Request body must only contain a single JSON object", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	job := queue.Job{BillID: req.ID, RealmID: req.RealmID}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		log.Printf("[WEBHOOK] Failed to enqueue bill %s: %v", req.ID, err)
		SendErrorResponse(w, "Queue backend unavailable", http.StatusServiceUnavailable, nil)
		return
	}

	log.Printf("[WEBHOOK] Enqueued sync for bill %s", req.ID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"message": "Webhook received", "bill_id": req.ID})
}
