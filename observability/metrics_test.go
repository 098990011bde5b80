package observability

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRequest(t *testing.T) {
	before := testutil.ToFloat64(rpcRequests.WithLabelValues("getEnabled", "true"))
	RecordRequest("getEnabled", true)
	RecordRequest("getEnabled", true)

	if got := testutil.ToFloat64(rpcRequests.WithLabelValues("getEnabled", "true")); got != before+2 {
		t.Fatalf("expected %v requests, got %v", before+2, got)
	}
}

func TestRecordFrame(t *testing.T) {
	before := testutil.ToFloat64(frames.WithLabelValues(DirectionIn))
	RecordFrame(DirectionIn)

	if got := testutil.ToFloat64(frames.WithLabelValues(DirectionIn)); got != before+1 {
		t.Fatalf("expected %v frames, got %v", before+1, got)
	}
}

func TestConnectionGauge(t *testing.T) {
	before := testutil.ToFloat64(subscribers)
	ConnectionOpened()
	ConnectionOpened()
	ConnectionClosed()

	if got := testutil.ToFloat64(subscribers); got != before+1 {
		t.Fatalf("expected %v connections, got %v", before+1, got)
	}
}
