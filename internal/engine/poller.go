package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/xela07ax/threatwatch/internal/domain"
	"github.com/xela07ax/threatwatch/internal/infra"
	"github.com/xela07ax/threatwatch/internal/timeline"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrStaleCycle   = errors.New("cycle superseded by a newer one")
	ErrInvalidRange = errors.New("range must be between 1 and the configured maximum of hours")
)

const (
	cycleFull  = "full"
	cycleRange = "range"

	noticeTTL = 5 * time.Second

	// DefaultMaxRangeHours: верхняя граница окна, если в конфиге не задана
	DefaultMaxRangeHours = 720
)

// Publisher: граница с потребителями (виджеты, другие инстансы). Реализации не блокируются.
type Publisher interface {
	PublishSnapshot(snap domain.Snapshot)
	PublishAlert(alert domain.Alert)
	PublishConnectivity(status domain.ConnectivityStatus)
	PublishBuckets(tl timeline.Timeline, trend []timeline.TrendBucket)
	PublishNotice(n domain.Notice)
}

// SourceAPI: запросы, из которых собирается один цикл.
type SourceAPI interface {
	GetStats(ctx context.Context, hours int) (domain.StatsSnapshot, error)
	GetThreats(ctx context.Context, f domain.ThreatFilter) (domain.ThreatPage, error)
	GetAttackers(ctx context.Context, f domain.AttackerFilter) ([]domain.AttackerProfile, error)
}

// Poller: оркестратор опроса. Цикл собирает три запроса параллельно
// и публикует результат целиком либо не публикует ничего.
type Poller struct {
	api      SourceAPI
	detector *Detector
	agg      *timeline.Aggregator
	pub      Publisher
	resume   <-chan struct{}
	metrics  *Metrics
	logger   *zap.Logger

	interval         time.Duration
	threatsPerPage   int
	attackersPerPage int
	trendHours       int
	maxRangeHours    int

	cycleMu sync.Mutex    // Один цикл за раз
	seq     atomic.Uint64 // Номер последнего начатого цикла

	mu        sync.RWMutex
	hours     int
	published uint64 // Номер последнего опубликованного цикла
	latest    domain.Snapshot
	hasLatest bool
	tl        timeline.Timeline
	trend     []timeline.TrendBucket

	pendingRange atomic.Int64
	rangeReq     chan struct{}
	refreshReq   chan struct{}
}

func NewPoller(cfg infra.PollerConfig, api SourceAPI, detector *Detector, agg *timeline.Aggregator, pub Publisher, resume <-chan struct{}, metrics *Metrics, logger *zap.Logger) *Poller {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	maxRange := cfg.MaxRangeHours
	if maxRange <= 0 {
		maxRange = DefaultMaxRangeHours
	}
	return &Poller{
		api:              api,
		detector:         detector,
		agg:              agg,
		pub:              pub,
		resume:           resume,
		metrics:          metrics,
		logger:           logger.Named("poller"),
		interval:         cfg.Interval,
		threatsPerPage:   cfg.ThreatsPerPage,
		attackersPerPage: cfg.AttackersPerPage,
		trendHours:       cfg.TrendHours,
		maxRangeHours:    maxRange,
		hours:            cfg.StatsHours,
		rangeReq:         make(chan struct{}, 1),
		refreshReq:       make(chan struct{}, 1),
	}
}

// Run крутит цикл опроса до отмены контекста. Ни один сбой не останавливает таймер.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("poller started",
		zap.Duration("interval", p.interval),
		zap.Int("hours", p.Hours()))

	p.RunCycle(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("poller stopped")
			return
		case <-ticker.C:
			p.RunCycle(ctx)
		case <-p.resume:
			p.logger.Info("connectivity restored, refreshing immediately")
			p.RunCycle(ctx)
		case <-p.refreshReq:
			p.RunCycle(ctx)
		case <-p.rangeReq:
			p.RefreshRange(ctx, int(p.pendingRange.Load()))
		}
	}
}

// RequestRange асинхронно запрашивает смену окна статистики.
// Повторные запросы до обработки схлопываются, побеждает последний.
func (p *Poller) RequestRange(hours int) error {
	if err := p.checkRange(hours); err != nil {
		return err
	}
	p.pendingRange.Store(int64(hours))
	select {
	case p.rangeReq <- struct{}{}:
	default:
	}
	return nil
}

// MaxRangeHours: самое большое окно, которое примут RequestRange и RefreshRange.
func (p *Poller) MaxRangeHours() int {
	return p.maxRangeHours
}

func (p *Poller) checkRange(hours int) error {
	if hours <= 0 || hours > p.maxRangeHours {
		return fmt.Errorf("%w: got %d, max %d", ErrInvalidRange, hours, p.maxRangeHours)
	}
	return nil
}

// RequestRefresh асинхронно запрашивает полный цикл вне расписания.
func (p *Poller) RequestRefresh() {
	select {
	case p.refreshReq <- struct{}{}:
	default:
	}
}

// RunCycle выполняет полный цикл: статистика, лента и атакующие.
func (p *Poller) RunCycle(ctx context.Context) error {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()
	return p.fullCycle(ctx)
}

// RefreshRange перезапрашивает только статистику за новое окно и переиздает срез.
// Новое окно сохраняется для следующих циклов, даже если запрос не удался.
func (p *Poller) RefreshRange(ctx context.Context, hours int) error {
	if err := p.checkRange(hours); err != nil {
		return err
	}

	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	p.mu.Lock()
	p.hours = hours
	has := p.hasLatest
	p.mu.Unlock()

	// Переиздавать нечего, собираем срез целиком
	if !has {
		return p.fullCycle(ctx)
	}
	return p.rangeCycle(ctx, hours)
}

// settleResume сбрасывает сигнал resume, пришедший от запросов самого цикла:
// свежий срез уже опубликован.
func (p *Poller) settleResume() {
	select {
	case <-p.resume:
	default:
	}
}

func (p *Poller) Latest() (domain.Snapshot, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.latest, p.hasLatest
}

func (p *Poller) Buckets() (timeline.Timeline, []timeline.TrendBucket) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tl, p.trend
}

func (p *Poller) Hours() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.hours
}

func (p *Poller) fullCycle(ctx context.Context) error {
	id := p.seq.Add(1)
	start := time.Now()
	hours := p.Hours()

	var (
		stats     domain.StatsSnapshot
		page      domain.ThreatPage
		attackers []domain.AttackerProfile
	)

	// Без WithContext: сбой одного запроса не отменяет остальные, ждем все
	var g errgroup.Group
	g.Go(func() error {
		var err error
		if stats, err = p.api.GetStats(ctx, hours); err != nil {
			return fmt.Errorf("stats: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if page, err = p.api.GetThreats(ctx, domain.ThreatFilter{Page: 1, PerPage: p.threatsPerPage}); err != nil {
			return fmt.Errorf("threats: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if attackers, err = p.api.GetAttackers(ctx, domain.AttackerFilter{Page: 1, PerPage: p.attackersPerPage}); err != nil {
			return fmt.Errorf("attackers: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return p.abort(ctx, id, cycleFull, start, err)
	}

	snap := domain.Snapshot{
		Cycle:       id,
		Stats:       stats,
		Threats:     page.Threats,
		ThreatTotal: page.Count(),
		Attackers:   attackers,
		FetchedAt:   time.Now().UTC(),
	}
	tl := p.agg.Timeline(snap.Threats, hours)
	trend := p.agg.Trend(snap.Threats, p.trendHours)

	if !p.commit(snap, tl, trend) {
		return p.stale(id, cycleFull, start)
	}
	p.settleResume()

	// Детектор видит только опубликованные циклы
	alerts := p.detector.Observe(snap.ThreatTotal, snap.Threats)

	p.pub.PublishSnapshot(snap)
	p.pub.PublishBuckets(tl, trend)
	for _, a := range alerts {
		p.metrics.AlertRaised()
		p.logger.Warn("critical threat detected",
			zap.String("alert_id", a.ID),
			zap.Int64("threat_id", a.Event.ID),
			zap.Int("risk_score", a.Event.RiskScore),
			zap.String("attacker_ip", a.Event.AttackerIP))
		p.pub.PublishAlert(a)
	}

	p.metrics.CycleFinished(cycleFull, "published", time.Since(start))
	p.logger.Debug("cycle published",
		zap.Uint64("cycle", id),
		zap.Int("threats", len(snap.Threats)),
		zap.Int("total", snap.ThreatTotal),
		zap.Int("alerts", len(alerts)))
	return nil
}

func (p *Poller) rangeCycle(ctx context.Context, hours int) error {
	id := p.seq.Add(1)
	start := time.Now()

	stats, err := p.api.GetStats(ctx, hours)
	if err != nil {
		return p.abort(ctx, id, cycleRange, start, fmt.Errorf("stats: %w", err))
	}

	prev, _ := p.Latest()
	snap := prev.WithStats(stats)
	snap.Cycle = id

	tl := p.agg.Timeline(snap.Threats, hours)
	_, trend := p.Buckets()

	if !p.commit(snap, tl, trend) {
		return p.stale(id, cycleRange, start)
	}

	p.pub.PublishSnapshot(snap)
	p.pub.PublishBuckets(tl, trend)

	p.metrics.CycleFinished(cycleRange, "published", time.Since(start))
	p.logger.Info("range changed", zap.Int("hours", hours), zap.Uint64("cycle", id))
	return nil
}

// commit атомарно подменяет срез и корзины. Цикл старше опубликованного отбрасывается.
func (p *Poller) commit(snap domain.Snapshot, tl timeline.Timeline, trend []timeline.TrendBucket) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if snap.Cycle <= p.published {
		return false
	}
	p.published = snap.Cycle
	p.latest = snap
	p.hasLatest = true
	p.tl = tl
	p.trend = trend
	return true
}

func (p *Poller) abort(ctx context.Context, id uint64, kind string, start time.Time, err error) error {
	p.metrics.CycleFinished(kind, "failed", time.Since(start))

	// Остановка сервиса: не сбой цикла
	if ctx.Err() != nil {
		return err
	}

	p.logger.Warn("cycle aborted",
		zap.Uint64("cycle", id),
		zap.String("kind", kind),
		zap.Error(err))
	p.pub.PublishNotice(domain.Notice{
		Level:        domain.NoticeError,
		Title:        "Update failed",
		Message:      err.Error(),
		DismissAfter: noticeTTL,
	})
	return err
}

func (p *Poller) stale(id uint64, kind string, start time.Time) error {
	p.metrics.CycleFinished(kind, "stale", time.Since(start))
	p.logger.Debug("stale cycle dropped", zap.Uint64("cycle", id), zap.String("kind", kind))
	return ErrStaleCycle
}
