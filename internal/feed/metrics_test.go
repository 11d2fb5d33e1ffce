package feed

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gatherMetric(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestMetrics_RegisterAndRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	m.IncRankCalls(SurfaceHome, StatusSuccess)
	m.IncRankCalls(SurfaceHome, StatusSuccess)
	m.IncRankCalls(SurfaceExplore, StatusPartial)
	m.ObserveRankDuration(SurfaceHome, 0.042)
	m.ObservePoolSize(SurfaceHome, 120)
	m.IncFallback(SurfaceHome)
	m.AddSuppressed(SurfaceSearch, 3)

	calls := gatherMetric(t, reg, MetricRankCallsTotal)
	if calls == nil {
		t.Fatalf("metric %s not registered", MetricRankCallsTotal)
	}
	var homeSuccess float64
	for _, metric := range calls.GetMetric() {
		labels := map[string]string{}
		for _, l := range metric.GetLabel() {
			labels[l.GetName()] = l.GetValue()
		}
		if labels["surface"] == SurfaceHome && labels["status"] == StatusSuccess {
			homeSuccess = metric.GetCounter().GetValue()
		}
	}
	if homeSuccess != 2 {
		t.Errorf("home success calls = %v, want 2", homeSuccess)
	}

	duration := gatherMetric(t, reg, MetricRankDuration)
	if duration == nil {
		t.Fatalf("metric %s not registered", MetricRankDuration)
	}
	if got := duration.GetMetric()[0].GetHistogram().GetSampleCount(); got != 1 {
		t.Errorf("duration sample count = %d, want 1", got)
	}

	suppressed := gatherMetric(t, reg, MetricSuppressedPostsTotal)
	if suppressed == nil {
		t.Fatalf("metric %s not registered", MetricSuppressedPostsTotal)
	}
	if got := suppressed.GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Errorf("suppressed total = %v, want 3", got)
	}
}

func TestMetrics_NilReceiverIsNoop(t *testing.T) {
	var m *Metrics

	// None of these may panic on a nil receiver.
	m.IncRankCalls(SurfaceHome, StatusSuccess)
	m.ObserveRankDuration(SurfaceHome, 0.1)
	m.ObservePoolSize(SurfaceHome, 10)
	m.IncFallback(SurfaceHome)
	m.AddSuppressed(SurfaceHome, 1)
}

func TestMetrics_DuplicateRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics()
	if err := m.Register(reg); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := NewMetrics().Register(reg); err == nil {
		t.Fatal("second Register() expected duplicate registration error")
	}
}
