package metric

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestFeedLoad(t *testing.T) {
	okBefore := testutil.ToFloat64(feedLoads.WithLabelValues("ok"))
	errBefore := testutil.ToFloat64(feedLoads.WithLabelValues("error"))

	FeedLoad(10*time.Millisecond, nil)
	FeedLoad(10*time.Millisecond, errors.New("boom"))
	FeedLoad(10*time.Millisecond, nil)

	if got := testutil.ToFloat64(feedLoads.WithLabelValues("ok")) - okBefore; got != 2 {
		t.Fatalf("ok loads=%v; want 2", got)
	}
	if got := testutil.ToFloat64(feedLoads.WithLabelValues("error")) - errBefore; got != 1 {
		t.Fatalf("error loads=%v; want 1", got)
	}
}

func TestIndexBuilt(t *testing.T) {
	IndexBuilt(12, 5)
	if got := testutil.ToFloat64(indexEvents); got != 12 {
		t.Fatalf("events=%v", got)
	}
	if got := testutil.ToFloat64(indexDays); got != 5 {
		t.Fatalf("days=%v", got)
	}
}

func TestRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequests.WithLabelValues("/health", "200"))
	Request("/health", 200, time.Millisecond)
	if got := testutil.ToFloat64(httpRequests.WithLabelValues("/health", "200")) - before; got != 1 {
		t.Fatalf("requests=%v", got)
	}
}
