package report

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestSlogReporterLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	r := NewSlogReporter(logger)

	r.Report(Event{Kind: KindSkipped, URL: "https://shop.example/a", Message: "no block"})
	r.Report(Event{Kind: KindFallback, URL: "https://shop.example/a"})
	r.Report(Event{Kind: KindMerged, Product: "Granola", Count: 1, Total: 3})

	out := buf.String()
	if !strings.Contains(out, "level=WARN") || !strings.Contains(out, `msg="no block"`) {
		t.Errorf("skip not logged as warning:\n%s", out)
	}
	if strings.Contains(out, "kind=fallback") {
		t.Errorf("fallback logged above debug:\n%s", out)
	}
	if !strings.Contains(out, "msg=merged") || !strings.Contains(out, "product=Granola") || !strings.Contains(out, "total=3") {
		t.Errorf("merge event missing attributes:\n%s", out)
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := &Collector{}
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			kind := KindProgress
			if i%2 == 0 {
				kind = KindMerged
			}
			c.Report(Event{Kind: kind, Count: i})
		}(i)
	}
	wg.Wait()

	if n := len(c.Events()); n != 20 {
		t.Fatalf("events = %d, want 20", n)
	}
	if c.Count(KindMerged) != 10 || c.Count(KindProgress) != 10 {
		t.Errorf("merged=%d progress=%d", c.Count(KindMerged), c.Count(KindProgress))
	}
}

func TestFuncAndDiscard(t *testing.T) {
	var got []Kind
	var r Reporter = Func(func(e Event) { got = append(got, e.Kind) })
	r.Report(Event{Kind: KindPage})
	Discard.Report(Event{Kind: KindPage})
	if len(got) != 1 || got[0] != KindPage {
		t.Errorf("got = %v", got)
	}
}
