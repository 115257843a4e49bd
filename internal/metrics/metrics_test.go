package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	first := edgesTotal
	Init()
	if edgesTotal != first {
		t.Fatal("Init() replaced collectors on second call")
	}
}

func TestObserveEdges(t *testing.T) {
	Init()
	before := testutil.ToFloat64(edgesTotal.WithLabelValues("outbound"))
	ObserveEdges("outbound", 3)
	ObserveEdges("outbound", 0)
	if got := testutil.ToFloat64(edgesTotal.WithLabelValues("outbound")) - before; got != 3 {
		t.Errorf("expected 3 outbound edges, got %f", got)
	}
}

func TestObservePostprocess(t *testing.T) {
	Init()
	before := testutil.ToFloat64(postprocessRecordsTotal.WithLabelValues("skipped"))
	changes := testutil.ToFloat64(clickDepthChangesTotal)

	ObservePostprocessRecord("skipped")
	ObserveClickDepthChange()
	ObservePostprocessRun(250 * time.Millisecond)

	if got := testutil.ToFloat64(postprocessRecordsTotal.WithLabelValues("skipped")) - before; got != 1 {
		t.Errorf("expected 1 skipped record, got %f", got)
	}
	if got := testutil.ToFloat64(clickDepthChangesTotal) - changes; got != 1 {
		t.Errorf("expected 1 click depth change, got %f", got)
	}
	if n := testutil.CollectAndCount(postprocessDurationSeconds); n != 1 {
		t.Errorf("expected duration histogram to be collected, got %d", n)
	}
}

func TestObservePage(t *testing.T) {
	Init()
	before := testutil.ToFloat64(pagesTotal.WithLabelValues("example.com", "success"))
	ObservePage("https://Example.com/a", "success")
	if got := testutil.ToFloat64(pagesTotal.WithLabelValues("example.com", "success")) - before; got != 1 {
		t.Errorf("expected page counter to increase by 1, got %f", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
