package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rentfolio/propsync/internal/observability/metrics"
	"github.com/rentfolio/propsync/internal/webhook"
	"github.com/rentfolio/propsync/pkg/logging"
)

// maxWebhookBody caps inbound payloads. Buildium batches stay well under
// this.
const maxWebhookBody = 1 << 20

type signatureVerifier interface {
	Verify(ctx context.Context, header http.Header, body []byte) webhook.VerifyResult
}

type pipelineRunner interface {
	Run(ctx context.Context, body []byte, signature string) (*webhook.Response, error)
	RunScoped(ctx context.Context, body []byte, signature string, kind webhook.EventKind) (*webhook.Response, error)
}

// BuildiumWebhookHandler terminates the inbound webhook endpoint:
// authenticate the delivery, then hand the raw body to the pipeline.
type BuildiumWebhookHandler struct {
	verifier signatureVerifier
	pipeline pipelineRunner
	metrics  *metrics.WebhookMetrics
	logger   *logging.Logger
}

func NewBuildiumWebhookHandler(verifier signatureVerifier, pipeline pipelineRunner, m *metrics.WebhookMetrics, logger *logging.Logger) *BuildiumWebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &BuildiumWebhookHandler{verifier: verifier, pipeline: pipeline, metrics: m, logger: logger}
}

// Handle processes POST /webhooks/buildium.
func (h *BuildiumWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, body []byte, signature string) (*webhook.Response, error) {
		return h.pipeline.Run(ctx, body, signature)
	})
}

// HandleLeaseTransactions processes POST /webhooks/buildium/lease-transactions,
// a dedicated endpoint that only acts on lease transaction events.
func (h *BuildiumWebhookHandler) HandleLeaseTransactions(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, func(ctx context.Context, body []byte, signature string) (*webhook.Response, error) {
		return h.pipeline.RunScoped(ctx, body, signature, webhook.KindLeaseTransaction)
	})
}

func (h *BuildiumWebhookHandler) serve(w http.ResponseWriter, r *http.Request, run func(context.Context, []byte, string) (*webhook.Response, error)) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}

	verify := h.verifier.Verify(r.Context(), r.Header, body)
	if !verify.OK {
		h.metrics.ObserveSignature(string(verify.Reason))
		h.logger.Warn("webhook signature rejected", "reason", verify.Reason)
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error":  "Invalid signature",
			"reason": string(verify.Reason),
		})
		return
	}
	if verify.Skipped {
		h.metrics.ObserveSignature("skipped")
	} else {
		h.metrics.ObserveSignature("valid")
	}

	resp, err := run(r.Context(), body, verify.Signature)
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrInvalidJSON):
			writeError(w, http.StatusBadRequest, "Invalid JSON payload")
		case errors.Is(err, webhook.ErrNoEvents):
			writeError(w, http.StatusBadRequest, "No events found in payload")
		default:
			h.logger.Error("webhook pipeline failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
