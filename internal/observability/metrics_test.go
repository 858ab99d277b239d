package observability

import (
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func TestServeHTTP(t *testing.T) {
	m := NewMetrics(testLogger)
	m.PagesFetched.Add(3)
	m.DatasetSize.Store(42)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body := rec.Body.String()

	for _, want := range []string{
		"nutrigoat_pages_fetched_total 3",
		"# TYPE nutrigoat_dataset_records gauge",
		"nutrigoat_dataset_records 42",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("missing %q in:\n%s", want, body)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("content type = %q", ct)
	}
}

func TestSnapshot(t *testing.T) {
	m := NewMetrics(testLogger)
	m.RecordsExtracted.Add(5)
	m.ProductsSkipped.Add(2)

	snap := m.Snapshot()
	if snap["records_extracted"] != 5 || snap["products_skipped"] != 2 {
		t.Errorf("snapshot = %v", snap)
	}
}
