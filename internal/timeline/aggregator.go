// Package timeline раскладывает события по часовым корзинам в зоне отображения.
//
// Внутри корзина адресуется целым ключом: unix-секундами начала локального часа.
// Строковая метка "15:04" формируется только для отображения и в сравнениях не участвует.
package timeline

import (
	"time"

	"github.com/xela07ax/threatwatch/internal/domain"
)

type Bucket struct {
	Key   int64     `json:"key"`
	Start time.Time `json:"start"`
	Label string    `json:"label"`
	Count int       `json:"count"`
}

// Timeline: корзины от самой старой к текущему часу.
type Timeline []Bucket

func (t Timeline) Total() int {
	n := 0
	for _, b := range t {
		n += b.Count
	}
	return n
}

// TrendBucket: часовая корзина с разбивкой по уровням риска.
type TrendBucket struct {
	Key      int64     `json:"key"`
	Start    time.Time `json:"start"`
	Label    string    `json:"label"`
	Low      int       `json:"low"`
	Medium   int       `json:"medium"`
	High     int       `json:"high"`
	Critical int       `json:"critical"`
}

func (b TrendBucket) Total() int {
	return b.Low + b.Medium + b.High + b.Critical
}

type Aggregator struct {
	loc *time.Location
	now func() time.Time
}

func NewAggregator(loc *time.Location, now func() time.Time) *Aggregator {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &Aggregator{loc: loc, now: now}
}

func (a *Aggregator) Location() *time.Location {
	return a.loc
}

// Timeline считает события по часам за последние hours часов, включая текущий.
// События вне корзин (будущее из-за рассинхрона часов, старше окна) молча отбрасываются.
func (a *Aggregator) Timeline(events []domain.ThreatEvent, hours int) Timeline {
	now := a.now()
	starts := a.window(now, hours)

	out := make(Timeline, len(starts))
	index := make(map[int64]int, len(starts))
	for i, s := range starts {
		out[i] = Bucket{Key: s.Unix(), Start: s, Label: a.label(s)}
		index[s.Unix()] = i
	}

	for _, ev := range events {
		if i, ok := a.locate(ev.Timestamp, now, index); ok {
			out[i].Count++
		}
	}
	return out
}

// Trend: то же окно, но каждая корзина разбита на четыре уровня риска.
func (a *Aggregator) Trend(events []domain.ThreatEvent, hours int) []TrendBucket {
	now := a.now()
	starts := a.window(now, hours)

	out := make([]TrendBucket, len(starts))
	index := make(map[int64]int, len(starts))
	for i, s := range starts {
		out[i] = TrendBucket{Key: s.Unix(), Start: s, Label: a.label(s)}
		index[s.Unix()] = i
	}

	for _, ev := range events {
		i, ok := a.locate(ev.Timestamp, now, index)
		if !ok {
			continue
		}
		switch domain.TierOf(ev.RiskScore) {
		case domain.TierLow:
			out[i].Low++
		case domain.TierMedium:
			out[i].Medium++
		case domain.TierHigh:
			out[i].High++
		default:
			out[i].Critical++
		}
	}
	return out
}

func (a *Aggregator) locate(ts, now time.Time, index map[int64]int) (int, bool) {
	if ts.IsZero() || ts.After(now) {
		return 0, false
	}
	i, ok := index[a.hourStart(ts).Unix()]
	return i, ok
}

// window возвращает начала hours последовательных локальных часов, старые первыми.
func (a *Aggregator) window(now time.Time, hours int) []time.Time {
	if hours <= 0 {
		return nil
	}

	starts := make([]time.Time, hours)
	cur := a.hourStart(now)
	for i := hours - 1; i >= 0; i-- {
		starts[i] = cur
		cur = a.hourStart(cur.Add(-time.Nanosecond))
	}
	return starts
}

// hourStart: абсолютный момент начала локального часа, в который попадает t.
// Считается от смещения внутри часа, поэтому работает для получасовых зон
// и для повторяющегося часа при переводе стрелок.
func (a *Aggregator) hourStart(t time.Time) time.Time {
	local := t.In(a.loc)
	into := time.Duration(local.Minute())*time.Minute +
		time.Duration(local.Second())*time.Second +
		time.Duration(local.Nanosecond())
	return local.Add(-into)
}

func (a *Aggregator) label(start time.Time) string {
	return start.In(a.loc).Format("15:04")
}
