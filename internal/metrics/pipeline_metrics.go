package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PipelineMetrics содержит метрики цепочки checkout → fulfillment.
type PipelineMetrics struct {
	checkoutStarted   prometheus.Counter
	checkoutCompleted prometheus.Counter
	checkoutFailed    prometheus.Counter
	checkoutDuration  prometheus.Histogram

	paymentsSettled *prometheus.CounterVec

	fulfillmentProcessed prometheus.Counter
	fulfillmentFailures  prometheus.Counter

	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
}

// NewPipelineMetrics создаёт метрики с регистрацией в default registerer.
func NewPipelineMetrics() *PipelineMetrics {
	return newPipelineMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newPipelineMetricsWithRegisterer(registerer prometheus.Registerer) *PipelineMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &PipelineMetrics{
		checkoutStarted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_started_total",
			Help: "Total number of checkout attempts",
		}),
		checkoutCompleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_completed_total",
			Help: "Total number of checkouts that produced an order and a payment",
		}),
		checkoutFailed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_checkout_failed_total",
			Help: "Total number of failed checkout attempts",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "shop_checkout_duration_seconds",
			Help:    "Duration of checkout operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		paymentsSettled: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "shop_payments_settled_total",
			Help: "Total number of settled payments by outcome",
		}, []string{"outcome"}),
		fulfillmentProcessed: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_fulfillment_processed_total",
			Help: "Total number of successfully processed fulfillment events",
		}),
		fulfillmentFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_fulfillment_failures_total",
			Help: "Total number of fulfillment processing failures",
		}),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_timeline_events_total",
			Help: "Total number of timeline events recorded",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "shop_outbox_events_total",
			Help: "Total number of events enqueued to the outbox",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordCheckoutStarted увеличивает счётчик попыток checkout.
func (m *PipelineMetrics) RecordCheckoutStarted() {
	m.checkoutStarted.Inc()
}

// RecordCheckoutCompleted увеличивает счётчик успешных checkout.
func (m *PipelineMetrics) RecordCheckoutCompleted() {
	m.checkoutCompleted.Inc()
}

// RecordCheckoutFailed увеличивает счётчик неудачных checkout.
func (m *PipelineMetrics) RecordCheckoutFailed() {
	m.checkoutFailed.Inc()
}

// RecordCheckoutDuration записывает длительность checkout.
func (m *PipelineMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordPaymentSettled увеличивает счётчик расчётов по итогу ("success"/"failed").
func (m *PipelineMetrics) RecordPaymentSettled(outcome string) {
	m.paymentsSettled.WithLabelValues(outcome).Inc()
}

// RecordFulfillmentProcessed увеличивает счётчик обработанных событий fulfillment.
func (m *PipelineMetrics) RecordFulfillmentProcessed() {
	m.fulfillmentProcessed.Inc()
}

// RecordFulfillmentFailure увеличивает счётчик ошибок fulfillment.
func (m *PipelineMetrics) RecordFulfillmentFailure() {
	m.fulfillmentFailures.Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *PipelineMetrics) RecordTimelineEvent() {
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик поставленных в outbox событий.
func (m *PipelineMetrics) RecordOutboxEvent() {
	m.outboxEvents.Inc()
}
