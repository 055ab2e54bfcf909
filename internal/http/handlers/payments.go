package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/rentfolio/propsync/internal/buildium"
	"github.com/rentfolio/propsync/internal/observability/metrics"
	"github.com/rentfolio/propsync/internal/payments"
	"github.com/rentfolio/propsync/pkg/logging"
)

type paymentSubmitter interface {
	SubmitLeasePayment(ctx context.Context, orgID string, buildiumLeaseID int64, idempotencyKey string, req buildium.LeasePaymentRequest) (*payments.Result, error)
}

// PaymentsHandler serves outbound lease payment submission.
type PaymentsHandler struct {
	service paymentSubmitter
	metrics *metrics.WebhookMetrics
	logger  *logging.Logger
}

func NewPaymentsHandler(service paymentSubmitter, m *metrics.WebhookMetrics, logger *logging.Logger) *PaymentsHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &PaymentsHandler{service: service, metrics: m, logger: logger}
}

type submitPaymentRequest struct {
	OrgID         string                 `json:"org_id"`
	Date          string                 `json:"date"`
	Amount        float64                `json:"amount"`
	PaymentMethod string                 `json:"payment_method"`
	Memo          string                 `json:"memo,omitempty"`
	Lines         []buildium.PaymentLine `json:"lines,omitempty"`
}

// Submit handles POST /api/leases/{leaseID}/payments. The Idempotency-Key
// header makes retried submissions safe; without it every call creates a
// fresh payment.
func (h *PaymentsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	leaseID, err := strconv.ParseInt(chi.URLParam(r, "leaseID"), 10, 64)
	if err != nil || leaseID <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid lease id")
		return
	}

	var req submitPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "Amount must be positive")
		return
	}
	if req.PaymentMethod == "" {
		writeError(w, http.StatusBadRequest, "Missing payment_method")
		return
	}

	result, err := h.service.SubmitLeasePayment(r.Context(), req.OrgID, leaseID,
		r.Header.Get("Idempotency-Key"), buildium.LeasePaymentRequest{
			Date:          req.Date,
			Amount:        req.Amount,
			PaymentMethod: req.PaymentMethod,
			Memo:          req.Memo,
			Lines:         req.Lines,
		})
	if err != nil {
		h.metrics.ObservePaymentIntent("error")
		h.logger.Error("lease payment submission failed", "lease_id", leaseID, "error", err)
		writeError(w, http.StatusBadGateway, "Payment submission failed")
		return
	}

	if result.Reused {
		h.metrics.ObservePaymentIntent("reused")
		writeJSON(w, http.StatusOK, result)
		return
	}
	h.metrics.ObservePaymentIntent("submitted")
	writeJSON(w, http.StatusCreated, result)
}
