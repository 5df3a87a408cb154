package timeline

import (
	"testing"
	"time"

	"github.com/xela07ax/threatwatch/internal/domain"
)

func fixedNow(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func event(ts time.Time, score int) domain.ThreatEvent {
	return domain.ThreatEvent{Timestamp: ts, RiskScore: score}
}

func TestTimeline_ZoneCorrectBucketing(t *testing.T) {
	plus2 := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, 5, 1, 10, 40, 0, 0, time.UTC) // 12:40 местного

	agg := NewAggregator(plus2, fixedNow(now))
	tl := agg.Timeline([]domain.ThreatEvent{
		event(time.Date(2024, 5, 1, 9, 15, 0, 0, time.UTC), 5),
	}, 6)

	for _, b := range tl {
		switch b.Label {
		case "11:00":
			if b.Count != 1 {
				t.Errorf("expected event in 11:00 local bucket, got %d", b.Count)
			}
		default:
			if b.Count != 0 {
				t.Errorf("unexpected count %d in bucket %s", b.Count, b.Label)
			}
		}
	}
}

func TestTimeline_Shape(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 40, 0, 0, time.UTC)
	agg := NewAggregator(time.UTC, fixedNow(now))

	tl := agg.Timeline(nil, 3)
	want := []string{"08:00", "09:00", "10:00"}
	if len(tl) != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), len(tl))
	}
	for i, label := range want {
		if tl[i].Label != label {
			t.Errorf("bucket %d: expected %s, got %s", i, label, tl[i].Label)
		}
		if i > 0 && tl[i].Key-tl[i-1].Key != 3600 {
			t.Errorf("expected contiguous hourly keys, got %d -> %d", tl[i-1].Key, tl[i].Key)
		}
	}

	if got := agg.Timeline(nil, 0); len(got) != 0 {
		t.Errorf("expected empty timeline for zero window, got %d", len(got))
	}
}

func TestTimeline_Conservation(t *testing.T) {
	loc := time.FixedZone("UTC+5:30", 5*60*60+30*60)
	now := time.Date(2024, 5, 1, 10, 40, 0, 0, time.UTC)
	agg := NewAggregator(loc, fixedNow(now))

	const hours = 24
	tl := agg.Timeline(nil, hours)
	oldest := tl[0].Start

	var events []domain.ThreatEvent
	for ts := oldest; !ts.After(now); ts = ts.Add(17 * time.Minute) {
		events = append(events, event(ts, 1))
	}

	tl = agg.Timeline(events, hours)
	if tl.Total() != len(events) {
		t.Errorf("expected %d events across buckets, got %d", len(events), tl.Total())
	}
}

func TestTimeline_DropsOutOfWindow(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 40, 0, 0, time.UTC)
	agg := NewAggregator(time.UTC, fixedNow(now))

	tl := agg.Timeline([]domain.ThreatEvent{
		event(now.Add(5*time.Minute), 1),   // Будущее, рассинхрон часов
		event(now.Add(-5*time.Hour), 1),    // Старше окна
		event(time.Time{}, 1),              // Без времени
		event(now.Add(-10*time.Minute), 1), // Единственное годное
	}, 3)

	if tl.Total() != 1 {
		t.Errorf("expected only in-window event counted, got %d", tl.Total())
	}
}

func TestTimeline_RepeatedHourOnFallBack(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}

	// 27 октября 2024 в 03:00 CEST часы переводятся на 02:00 CET
	now := time.Date(2024, 10, 27, 1, 30, 0, 0, time.UTC) // 02:30 CET
	agg := NewAggregator(paris, fixedNow(now))

	tl := agg.Timeline([]domain.ThreatEvent{
		event(time.Date(2024, 10, 27, 0, 30, 0, 0, time.UTC), 1), // 02:30 CEST
		event(time.Date(2024, 10, 27, 1, 15, 0, 0, time.UTC), 1), // 02:15 CET
	}, 3)

	if len(tl) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(tl))
	}
	if tl[1].Label != "02:00" || tl[2].Label != "02:00" {
		t.Errorf("expected two distinct 02:00 buckets, got %s and %s", tl[1].Label, tl[2].Label)
	}
	if tl[1].Count != 1 || tl[2].Count != 1 {
		t.Errorf("expected one event per repeated hour, got %d and %d", tl[1].Count, tl[2].Count)
	}
}

func TestTrend_SplitsByTier(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 40, 0, 0, time.UTC)
	agg := NewAggregator(time.UTC, fixedNow(now))

	ts := now.Add(-20 * time.Minute)
	trend := agg.Trend([]domain.ThreatEvent{
		event(ts, 0), event(ts, 3),
		event(ts, 4), event(ts, 6),
		event(ts, 7), event(ts, 8),
		event(ts, 9), event(ts, 10),
	}, 12)

	if len(trend) != 12 {
		t.Fatalf("expected 12 trend buckets, got %d", len(trend))
	}

	cur := trend[len(trend)-1]
	if cur.Low != 2 || cur.Medium != 2 || cur.High != 2 || cur.Critical != 2 {
		t.Errorf("unexpected tier split %+v", cur)
	}
	if cur.Total() != 8 {
		t.Errorf("expected total 8, got %d", cur.Total())
	}
}
