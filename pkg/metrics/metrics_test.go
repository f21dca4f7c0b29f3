package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(WithRegistry(reg), WithNamespace("test"))

	r.Toggle("follow", "on", "success")
	r.Toggle("follow", "on", "success")
	r.Toggle("like", "off", "error")
	r.Rollback("like")
	r.ReadMarks(3)
	r.ReadMarkFailure()
	r.VisibilityTrigger()

	if got := testutil.ToFloat64(r.togglesTotal.WithLabelValues("follow", "on", "success")); got != 2 {
		t.Errorf("toggles follow/on/success = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.togglesTotal.WithLabelValues("like", "off", "error")); got != 1 {
		t.Errorf("toggles like/off/error = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.rollbacksTotal.WithLabelValues("like")); got != 1 {
		t.Errorf("rollbacks like = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.readMarksTotal); got != 3 {
		t.Errorf("read marks = %v, want 3", got)
	}
	if got := testutil.ToFloat64(r.readMarkFailures); got != 1 {
		t.Errorf("read mark failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(r.visibilityTriggers); got != 1 {
		t.Errorf("visibility triggers = %v, want 1", got)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.Toggle("follow", "on", "success")
	r.Rollback("follow")
	r.ReadMarks(1)
	r.ReadMarkFailure()
	r.VisibilityTrigger()
}
