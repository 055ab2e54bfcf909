package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rentfolio/propsync/pkg/logging"
)

// Notifier raises operator alerts. Implementations must be best-effort:
// an unreachable alerting backend never fails the request that triggered
// the alert.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Event is one alert. CustomDetails is marshalled as-is into the
// provider payload.
type Event struct {
	Summary       string
	Severity      string
	Source        string
	CustomDetails map[string]any
}

// PagerDutySink delivers alerts through the PagerDuty Events v2 API.
type PagerDutySink struct {
	routingKey string
	eventsURL  string
	client     *http.Client
	logger     *logging.Logger
}

// NewPagerDutySink returns nil when no routing key is configured, which
// NotifierOrNoop turns into a no-op.
func NewPagerDutySink(routingKey, eventsURL string, logger *logging.Logger) *PagerDutySink {
	if routingKey == "" {
		return nil
	}
	if eventsURL == "" {
		eventsURL = "https://events.pagerduty.com/v2/enqueue"
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PagerDutySink{
		routingKey: routingKey,
		eventsURL:  eventsURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

func (s *PagerDutySink) Notify(ctx context.Context, event Event) {
	if event.Severity == "" {
		event.Severity = "warning"
	}
	if event.Source == "" {
		event.Source = "propsync"
	}

	body, err := json.Marshal(map[string]any{
		"routing_key":  s.routingKey,
		"event_action": "trigger",
		"payload": map[string]any{
			"summary":        event.Summary,
			"severity":       event.Severity,
			"source":         event.Source,
			"custom_details": event.CustomDetails,
		},
	})
	if err != nil {
		s.logger.Error("pagerduty payload marshal failed", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.eventsURL, bytes.NewReader(body))
	if err != nil {
		s.logger.Error("pagerduty request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("pagerduty event delivery failed", "summary", event.Summary, "error", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.logger.Warn("pagerduty event rejected",
			"summary", event.Summary,
			"status", fmt.Sprintf("%d", resp.StatusCode),
			"body", string(snippet))
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, event Event) {}

// NotifierOrNoop lifts an optional sink into a Notifier that is always
// safe to call.
func NotifierOrNoop(sink *PagerDutySink) Notifier {
	if sink == nil {
		return noopNotifier{}
	}
	return sink
}
