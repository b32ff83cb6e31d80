package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestExpvarMetricsRecorder(t *testing.T) {
	rec := NewExpvarMetricsRecorder("formulacore_test_expvar")
	ctx := context.Background()
	rec.Observe(ctx, "normalize_lipid", true, 2*time.Millisecond)
	rec.Observe(ctx, "normalize_lipid", false, 3*time.Millisecond)
	rec.Observe(ctx, "", true, time.Second)

	snap := rec.Snapshot()
	st := snap.Operations["normalize_lipid"]
	if st.Success != 1 || st.Error != 1 || st.DurationMS != 5 {
		t.Fatalf("unexpected stats %+v", st)
	}
	if len(snap.Operations) != 1 {
		t.Fatalf("empty operation should be ignored: %+v", snap.Operations)
	}
	published := expvar.Get(rec.Name())
	if published == nil || !strings.Contains(published.String(), "normalize_lipid") {
		t.Fatalf("expvar export missing: %v", published)
	}
	if other := NewExpvarMetricsRecorder(""); other.Name() == rec.Name() || other.Name() == "" {
		t.Fatalf("expected unique generated name, got %q", other.Name())
	}
}

func TestPrometheusMetricsRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewPrometheusMetricsRecorder(reg, "")
	if err != nil {
		t.Fatalf("new recorder: %v", err)
	}
	ctx := context.Background()
	rec.Observe(ctx, "record_lipid", true, time.Millisecond)
	rec.Observe(ctx, "record_lipid", true, time.Millisecond)
	rec.Observe(ctx, "record_lipid", false, time.Millisecond)

	if got := testutil.ToFloat64(rec.total.WithLabelValues("record_lipid", "success")); got != 2 {
		t.Fatalf("expected 2 successes, got %v", got)
	}
	if got := testutil.ToFloat64(rec.total.WithLabelValues("record_lipid", "error")); got != 1 {
		t.Fatalf("expected 1 error, got %v", got)
	}
	if n := testutil.CollectAndCount(rec.duration, "formulacore_service_operation_duration_seconds"); n != 1 {
		t.Fatalf("expected one histogram series, got %d", n)
	}
	if _, err := NewPrometheusMetricsRecorder(reg, ""); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
	if _, err := NewPrometheusMetricsRecorder(nil, "other"); err != nil {
		t.Fatalf("unregistered recorder: %v", err)
	}
}

func TestJSONTraceTracer(t *testing.T) {
	var buf bytes.Buffer
	tracer := NewJSONTracer(&buf)
	_, span := tracer.Start(context.Background(), "get_lipid")
	span.End(errors.New("lipid l1 not found"))
	span.End(nil)

	entries := tracer.Entries()
	if len(entries) != 1 {
		t.Fatalf("span must end once, got %d entries", len(entries))
	}
	if entries[0].Status != "error" || entries[0].Error == "" {
		t.Fatalf("unexpected entry %+v", entries[0])
	}
	var decoded JSONTraceEntry
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &decoded); err != nil {
		t.Fatalf("decode trace line: %v", err)
	}
	if decoded.Operation != "get_lipid" {
		t.Fatalf("unexpected decoded entry %+v", decoded)
	}
}

func TestNoopImplementations(t *testing.T) {
	var l Logger = noopLogger{}
	l.Debug("x")
	l.Info("x", "k", 1)
	l.Warn("x")
	l.Error("x")
	noopMetricsRecorder{}.Observe(context.Background(), "op", true, 0)
	ctx, span := noopTracer{}.Start(context.Background(), "op")
	if ctx == nil {
		t.Fatalf("expected context")
	}
	span.End(nil)
}
