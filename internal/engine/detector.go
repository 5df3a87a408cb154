package engine

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xela07ax/threatwatch/internal/domain"
)

// Detector выделяет новые критические события по приросту общего счетчика.
//
// Работает только при строгом порядке newest-first без переупорядочивания
// и без дрейфа пагинации между циклами. При уменьшении счетчика тревог нет.
type Detector struct {
	mu        sync.Mutex
	threshold int
	previous  int
	now       func() time.Time
}

func NewDetector(threshold int) *Detector {
	if threshold <= 0 {
		threshold = domain.CriticalThreshold
	}
	return &Detector{threshold: threshold, now: time.Now}
}

// Observe вызывается один раз на опубликованный цикл.
// Первый цикл после старта или Reset только запоминает счетчик.
func (d *Detector) Observe(currentCount int, newestFirst []domain.ThreatEvent) []domain.Alert {
	d.mu.Lock()
	defer d.mu.Unlock()

	prev := d.previous
	d.previous = currentCount

	delta := currentCount - prev
	if prev == 0 || delta <= 0 {
		return nil
	}

	fresh := newestFirst[:min(delta, len(newestFirst))]

	var alerts []domain.Alert
	raisedAt := d.now().UTC()
	for _, ev := range fresh {
		if ev.RiskScore < d.threshold {
			continue
		}
		alerts = append(alerts, domain.Alert{
			ID:       uuid.NewString(),
			Event:    ev,
			Tier:     domain.TierOf(ev.RiskScore),
			RaisedAt: raisedAt,
		})
	}
	return alerts
}

// Reset делает следующий цикл холодным стартом.
func (d *Detector) Reset() {
	d.mu.Lock()
	d.previous = 0
	d.mu.Unlock()
}

func (d *Detector) Previous() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.previous
}
