package metrics

import "github.com/prometheus/client_golang/prometheus"

// WebhookMetrics exposes counters/histograms for the ingestion pipeline.
type WebhookMetrics struct {
	eventsTotal    *prometheus.CounterVec
	signatureTotal *prometheus.CounterVec
	processingTime *prometheus.HistogramVec
	retryTotal     prometheus.Counter
	backlogGauge   prometheus.Gauge
	ledgerUpserts  *prometheus.CounterVec
	paymentIntents *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	m := &WebhookMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propsync",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Webhook events by event type and outcome",
		}, []string{"event_type", "outcome"}),
		signatureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propsync",
			Subsystem: "webhook",
			Name:      "signature_verifications_total",
			Help:      "Signature verification results by reason",
		}, []string{"result"}),
		processingTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "propsync",
			Subsystem: "webhook",
			Name:      "processing_seconds",
			Help:      "Per-event processing latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		retryTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "propsync",
			Subsystem: "webhook",
			Name:      "retries_total",
			Help:      "Handler retry attempts after transient failures",
		}),
		backlogGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "propsync",
			Subsystem: "webhook",
			Name:      "backlog",
			Help:      "Stored events not yet processed",
		}),
		ledgerUpserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propsync",
			Subsystem: "ledger",
			Name:      "upserts_total",
			Help:      "Ledger transaction upserts by kind and outcome",
		}, []string{"kind", "outcome"}),
		paymentIntents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "propsync",
			Subsystem: "payments",
			Name:      "intents_total",
			Help:      "Payment intent resolutions by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.signatureTotal, m.processingTime,
		m.retryTotal, m.backlogGauge, m.ledgerUpserts, m.paymentIntents)
	return m
}

func (m *WebhookMetrics) ObserveEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(eventType, outcome).Inc()
}

func (m *WebhookMetrics) ObserveSignature(result string) {
	if m == nil {
		return
	}
	m.signatureTotal.WithLabelValues(result).Inc()
}

func (m *WebhookMetrics) ObserveProcessing(eventType string, seconds float64) {
	if m == nil {
		return
	}
	m.processingTime.WithLabelValues(eventType).Observe(seconds)
}

func (m *WebhookMetrics) ObserveRetry() {
	if m == nil {
		return
	}
	m.retryTotal.Inc()
}

func (m *WebhookMetrics) SetBacklog(pending int64) {
	if m == nil {
		return
	}
	m.backlogGauge.Set(float64(pending))
}

func (m *WebhookMetrics) ObserveLedgerUpsert(kind, outcome string) {
	if m == nil {
		return
	}
	m.ledgerUpserts.WithLabelValues(kind, outcome).Inc()
}

func (m *WebhookMetrics) ObservePaymentIntent(outcome string) {
	if m == nil {
		return
	}
	m.paymentIntents.WithLabelValues(outcome).Inc()
}
