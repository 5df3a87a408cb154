package publish

import (
	"github.com/xela07ax/threatwatch/internal/domain"
	"github.com/xela07ax/threatwatch/internal/engine"
	"github.com/xela07ax/threatwatch/internal/timeline"
)

// Fanout раздает каждое событие всем приемникам по порядку.
type Fanout []engine.Publisher

func (f Fanout) PublishSnapshot(snap domain.Snapshot) {
	for _, p := range f {
		p.PublishSnapshot(snap)
	}
}

func (f Fanout) PublishAlert(alert domain.Alert) {
	for _, p := range f {
		p.PublishAlert(alert)
	}
}

func (f Fanout) PublishConnectivity(status domain.ConnectivityStatus) {
	for _, p := range f {
		p.PublishConnectivity(status)
	}
}

func (f Fanout) PublishBuckets(tl timeline.Timeline, trend []timeline.TrendBucket) {
	for _, p := range f {
		p.PublishBuckets(tl, trend)
	}
}

func (f Fanout) PublishNotice(n domain.Notice) {
	for _, p := range f {
		p.PublishNotice(n)
	}
}
