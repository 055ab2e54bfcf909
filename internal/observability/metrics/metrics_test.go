package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func findMetric(t *testing.T, families []*dto.MetricFamily, name string) *dto.MetricFamily {
	t.Helper()
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	t.Fatalf("metric family %s not registered", name)
	return nil
}

func TestWebhookMetricsRegisterAndCount(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewWebhookMetrics(reg)

	m.ObserveEvent("PropertyCreated", "processed")
	m.ObserveEvent("PropertyCreated", "processed")
	m.ObserveSignature("invalid-signature")
	m.ObserveProcessing("PropertyCreated", 0.05)
	m.ObserveRetry()
	m.SetBacklog(7)
	m.ObserveLedgerUpsert("lease_transaction", "ok")
	m.ObservePaymentIntent("reused")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	events := findMetric(t, families, "propsync_webhook_events_total")
	if got := events.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Fatalf("expected 2 processed events, got %v", got)
	}

	backlog := findMetric(t, families, "propsync_webhook_backlog")
	if got := backlog.GetMetric()[0].GetGauge().GetValue(); got != 7 {
		t.Fatalf("expected backlog gauge 7, got %v", got)
	}

	latency := findMetric(t, families, "propsync_webhook_processing_seconds")
	if got := latency.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
		t.Fatalf("expected one latency sample, got %v", got)
	}
}

func TestWebhookMetricsNilSafe(t *testing.T) {
	var m *WebhookMetrics
	m.ObserveEvent("event", "outcome")
	m.ObserveSignature("ok")
	m.ObserveProcessing("event", 0.1)
	m.ObserveRetry()
	m.SetBacklog(0)
	m.ObserveLedgerUpsert("kind", "ok")
	m.ObservePaymentIntent("submitted")
}
