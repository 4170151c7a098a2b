package core

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"samplecore/pkg/domain"
)

func TestExpvarRecorderAggregates(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	ctx := context.Background()

	rec.Observe(ctx, "create", true, 20*time.Millisecond)
	rec.Observe(ctx, "create", true, 30*time.Millisecond)
	rec.Observe(ctx, "create", false, 5*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second) // unnamed operations are dropped

	snap := rec.Snapshot()
	if got := snap.Results["create"]["success"]; got != 2 {
		t.Fatalf("expected 2 successes, got %d", got)
	}
	if got := snap.Results["create"]["error"]; got != 1 {
		t.Fatalf("expected 1 error, got %d", got)
	}
	if got := snap.DurationsMS["create"]; got != 55 {
		t.Fatalf("expected 55ms total, got %v", got)
	}
	if rec.Name() == "" {
		t.Fatal("generated export name must not be empty")
	}
}

func TestPrometheusRecorderRegistersAndCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg)
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	rec.Observe(context.Background(), "update", true, 10*time.Millisecond)
	rec.Observe(context.Background(), "update", false, 10*time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := map[string]bool{}
	for _, mf := range families {
		found[mf.GetName()] = true
	}
	for _, want := range []string{"samplecore_operation_duration_seconds", "samplecore_operation_results_total"} {
		if !found[want] {
			t.Fatalf("metric family %q not registered, got %v", want, found)
		}
	}

	// Double registration against the same registry must fail loudly.
	if _, err := NewPrometheusMetricsRecorder(reg); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestServiceReportsOperationOutcomes(t *testing.T) {
	rec := NewExpvarMetricsRecorder("")
	svc, _ := newTestService(t, WithMetrics(rec))
	ctx := context.Background()

	mustCreateSample(t, svc, "m_sample", nil)
	if _, err := svc.Create(ctx, domain.KindSample, domain.Fields{}); err == nil {
		t.Fatal("expected validation failure")
	}

	snap := rec.Snapshot()
	if got := snap.Results["create"]["success"]; got != 1 {
		t.Fatalf("expected 1 create success, got %d", got)
	}
	if got := snap.Results["create"]["error"]; got != 1 {
		t.Fatalf("expected 1 create error, got %d", got)
	}
}
