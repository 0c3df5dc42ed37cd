package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"kaluma-be/internal/donation"
	"kaluma-be/internal/fault"
	"kaluma-be/internal/logger"

	"go.uber.org/zap"
)

// Handler exposes the donation flow over HTTP: order creation for the
// frontend, the two gateway-facing reconciliation endpoints, and receipt
// lookup.
type Handler struct {
	Svc            donation.Service
	ReceiptBaseURL string
}

func New(svc donation.Service, receiptBaseURL string) *Handler {
	return &Handler{
		Svc:            svc,
		ReceiptBaseURL: strings.TrimRight(receiptBaseURL, "/"),
	}
}

// CreateOrder handles POST /api/donations.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var donor donation.DonorInfo
	if err := json.NewDecoder(r.Body).Decode(&donor); err != nil {
		writeError(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	result, err := h.Svc.CreateOrder(r.Context(), donor)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":            true,
		"redirect_url":       result.RedirectURL,
		"order_tracking_id":  result.OrderTrackingID,
		"merchant_reference": result.MerchantReference,
	})
}

// ipnPayload is what Pesapal posts when the IPN is registered as POST; the
// GET variant carries the same fields as query parameters.
type ipnPayload struct {
	OrderTrackingID        string `json:"OrderTrackingId"`
	OrderMerchantReference string `json:"OrderMerchantReference"`
}

// IPN handles GET/POST /api/payments/ipn, the asynchronous delivery path.
func (h *Handler) IPN(w http.ResponseWriter, r *http.Request) {
	trackingID := r.URL.Query().Get("OrderTrackingId")
	merchantRef := r.URL.Query().Get("OrderMerchantReference")

	if trackingID == "" && r.Method == http.MethodPost {
		var payload ipnPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err == nil {
			trackingID = payload.OrderTrackingID
			merchantRef = payload.OrderMerchantReference
		}
		defer r.Body.Close()
	}

	if trackingID == "" {
		writeError(w, "missing OrderTrackingId", http.StatusBadRequest)
		return
	}

	t, err := h.Svc.Reconcile(r.Context(), trackingID, merchantRef)
	if err != nil {
		// Non-2xx makes the gateway redeliver, which is what a failed
		// commit needs.
		h.writeFault(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": "IPN processed successfully",
		"status":  t.StatusDescription,
	})
}

// Return handles GET /api/payments/return, the synchronous delivery path:
// reconcile, then send the payer to the receipt page.
func (h *Handler) Return(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	trackingID := q.Get("OrderTrackingId")
	if trackingID == "" {
		trackingID = q.Get("orderTrackingId")
	}
	merchantRef := q.Get("OrderMerchantReference")
	if merchantRef == "" {
		merchantRef = q.Get("merchantReference")
	}

	if trackingID == "" {
		writeError(w, "missing OrderTrackingId", http.StatusBadRequest)
		return
	}

	t, err := h.Svc.Reconcile(r.Context(), trackingID, merchantRef)
	if err != nil {
		h.writeFault(w, r, err)
		return
	}

	receiptID := t.MerchantReference
	if receiptID == "" {
		receiptID = trackingID
	}
	http.Redirect(w, r, h.ReceiptBaseURL+"/"+receiptID, http.StatusFound)
}

// Receipt handles GET /api/receipt/{id}, where id is a merchant reference
// or a tracking id.
func (h *Handler) Receipt(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/receipt/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, "missing receipt id", http.StatusBadRequest)
		return
	}

	t, err := h.Svc.Receipt(r.Context(), id)
	if errors.Is(err, donation.ErrNotFound) {
		writeError(w, "receipt not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.writeFault(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, t)
}

func (h *Handler) writeFault(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromCtx(r.Context())

	kind, ok := fault.KindOf(err)
	if !ok {
		log.Error("request failed", zap.Error(err))
		writeError(w, "an unexpected error occurred", http.StatusInternalServerError)
		return
	}

	switch kind {
	case fault.Validation:
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "missing required fields",
			"message": "Please provide all required information",
			"fields":  fault.FieldsOf(err),
		})
	case fault.Auth, fault.Upstream:
		log.Error("gateway call failed", zap.Error(err))
		writeError(w, "payment gateway request failed", http.StatusBadGateway)
	case fault.Store:
		log.Error("record store write failed", zap.Error(err))
		writeError(w, "failed to record transaction", http.StatusInternalServerError)
	default:
		log.Error("request failed", zap.Error(err))
		writeError(w, "an unexpected error occurred", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, message string, code int) {
	writeJSON(w, code, map[string]string{"error": message})
}
