package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewPipelineMetrics(t *testing.T) {
	metrics := NewPipelineMetrics()

	if metrics == nil {
		t.Fatal("NewPipelineMetrics should not return nil")
	}
	if metrics.checkoutStarted == nil {
		t.Error("checkoutStarted counter should not be nil")
	}
	if metrics.checkoutCompleted == nil {
		t.Error("checkoutCompleted counter should not be nil")
	}
	if metrics.checkoutFailed == nil {
		t.Error("checkoutFailed counter should not be nil")
	}
	if metrics.checkoutDuration == nil {
		t.Error("checkoutDuration histogram should not be nil")
	}
	if metrics.paymentsSettled == nil {
		t.Error("paymentsSettled counter vec should not be nil")
	}
	if metrics.fulfillmentProcessed == nil {
		t.Error("fulfillmentProcessed counter should not be nil")
	}
	if metrics.fulfillmentFailures == nil {
		t.Error("fulfillmentFailures counter should not be nil")
	}
	if metrics.timelineEvents == nil {
		t.Error("timelineEvents counter should not be nil")
	}
	if metrics.outboxEvents == nil {
		t.Error("outboxEvents counter should not be nil")
	}
}

func TestNewPipelineMetricsReRegister(t *testing.T) {
	reg := prometheus.NewRegistry()

	first := newPipelineMetricsWithRegisterer(reg)
	second := newPipelineMetricsWithRegisterer(reg)

	// Повторная регистрация переиспользует существующие коллекторы.
	first.RecordCheckoutStarted()
	second.RecordCheckoutStarted()

	metric := &dto.Metric{}
	if err := first.checkoutStarted.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}
	if metric.Counter.GetValue() != 2.0 {
		t.Errorf("expected shared counter value 2.0, got %f", metric.Counter.GetValue())
	}
}

func TestRecordCheckoutCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newPipelineMetricsWithRegisterer(reg)

	metrics.RecordCheckoutStarted()
	metrics.RecordCheckoutStarted()
	metrics.RecordCheckoutCompleted()
	metrics.RecordCheckoutFailed()

	tests := []struct {
		name    string
		counter prometheus.Counter
		want    float64
	}{
		{"started", metrics.checkoutStarted, 2.0},
		{"completed", metrics.checkoutCompleted, 1.0},
		{"failed", metrics.checkoutFailed, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metric := &dto.Metric{}
			if err := tt.counter.Write(metric); err != nil {
				t.Fatalf("failed to write metric: %v", err)
			}
			if metric.Counter.GetValue() != tt.want {
				t.Errorf("expected %f, got %f", tt.want, metric.Counter.GetValue())
			}
		})
	}
}

func TestRecordCheckoutDuration(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newPipelineMetricsWithRegisterer(reg)

	metrics.RecordCheckoutDuration(100 * time.Millisecond)
	metrics.RecordCheckoutDuration(500 * time.Millisecond)
	metrics.RecordCheckoutDuration(1 * time.Second)

	metric := &dto.Metric{}
	if err := metrics.checkoutDuration.Write(metric); err != nil {
		t.Fatalf("failed to write metric: %v", err)
	}

	if metric.Histogram.GetSampleCount() != 3 {
		t.Errorf("expected 3 samples, got %d", metric.Histogram.GetSampleCount())
	}
	sum := metric.Histogram.GetSampleSum()
	if sum < 1.5 || sum > 1.7 {
		t.Errorf("expected sum around 1.6, got %f", sum)
	}
}

func TestRecordPaymentSettled(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newPipelineMetricsWithRegisterer(reg)

	metrics.RecordPaymentSettled("success")
	metrics.RecordPaymentSettled("success")
	metrics.RecordPaymentSettled("failed")

	successMetric := &dto.Metric{}
	if err := metrics.paymentsSettled.WithLabelValues("success").Write(successMetric); err != nil {
		t.Fatalf("failed to write success metric: %v", err)
	}
	if successMetric.Counter.GetValue() != 2.0 {
		t.Errorf("expected 2 successful settlements, got %f", successMetric.Counter.GetValue())
	}

	failedMetric := &dto.Metric{}
	if err := metrics.paymentsSettled.WithLabelValues("failed").Write(failedMetric); err != nil {
		t.Fatalf("failed to write failed metric: %v", err)
	}
	if failedMetric.Counter.GetValue() != 1.0 {
		t.Errorf("expected 1 failed settlement, got %f", failedMetric.Counter.GetValue())
	}
}

func TestRecordFulfillmentCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := newPipelineMetricsWithRegisterer(reg)

	metrics.RecordFulfillmentProcessed()
	metrics.RecordFulfillmentProcessed()
	metrics.RecordFulfillmentFailure()
	metrics.RecordTimelineEvent()
	metrics.RecordOutboxEvent()
	metrics.RecordOutboxEvent()
	metrics.RecordOutboxEvent()

	checks := []struct {
		name    string
		counter prometheus.Counter
		want    float64
	}{
		{"processed", metrics.fulfillmentProcessed, 2.0},
		{"failures", metrics.fulfillmentFailures, 1.0},
		{"timeline", metrics.timelineEvents, 1.0},
		{"outbox", metrics.outboxEvents, 3.0},
	}

	for _, tt := range checks {
		t.Run(tt.name, func(t *testing.T) {
			metric := &dto.Metric{}
			if err := tt.counter.Write(metric); err != nil {
				t.Fatalf("failed to write metric: %v", err)
			}
			if metric.Counter.GetValue() != tt.want {
				t.Errorf("expected %f, got %f", tt.want, metric.Counter.GetValue())
			}
		})
	}
}
