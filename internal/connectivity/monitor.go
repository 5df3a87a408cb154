package connectivity

import (
	"sync"
	"time"

	"github.com/xela07ax/threatwatch/internal/domain"
	"go.uber.org/zap"
)

// Observer получает переходы состояния связи. Вызывается только на границе.
type Observer interface {
	PublishConnectivity(status domain.ConnectivityStatus)
}

type Recorder interface {
	ConnectivityTransition(to domain.ConnectivityState)
}

// Monitor: двухпозиционный автомат {ONLINE, OFFLINE}, начальное состояние ONLINE.
// Серия одинаковых исходов дает не больше одного уведомления.
type Monitor struct {
	mu        sync.Mutex
	status    domain.ConnectivityStatus
	observers []Observer
	resume    chan struct{}
	metrics   Recorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewMonitor(metrics Recorder, logger *zap.Logger) *Monitor {
	m := &Monitor{
		resume:  make(chan struct{}, 1),
		metrics: metrics,
		logger:  logger.Named("monitor"),
		now:     time.Now,
	}
	m.status = domain.ConnectivityStatus{State: domain.StateOnline, ChangedAt: m.now().UTC()}
	return m
}

// Subscribe регистрирует наблюдателя. Наблюдатель не должен блокироваться.
func (m *Monitor) Subscribe(o Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, o)
	m.mu.Unlock()
}

func (m *Monitor) Status() domain.ConnectivityStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Resume сигналит о восстановлении связи. Сигналы схлопываются: буфер на один.
func (m *Monitor) Resume() <-chan struct{} {
	return m.resume
}

func (m *Monitor) ReportSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.State == domain.StateOnline {
		return
	}

	m.transition(domain.StateOnline, "")
	m.logger.Info("source is back online")

	select {
	case m.resume <- struct{}{}:
	default:
	}
}

func (m *Monitor) ReportFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.State == domain.StateOffline {
		return
	}

	reason := ""
	if err != nil {
		reason = err.Error()
	}
	m.transition(domain.StateOffline, reason)
	m.logger.Warn("source went offline", zap.Error(err))
}

// transition вызывается под m.mu, поэтому порядок уведомлений совпадает с порядком переходов.
func (m *Monitor) transition(to domain.ConnectivityState, reason string) {
	m.status = domain.ConnectivityStatus{
		State:     to,
		ChangedAt: m.now().UTC(),
		Reason:    reason,
	}

	if m.metrics != nil {
		m.metrics.ConnectivityTransition(to)
	}
	for _, o := range m.observers {
		o.PublishConnectivity(m.status)
	}
}
