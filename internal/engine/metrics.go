package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/xela07ax/threatwatch/internal/domain"
)

type Metrics struct {
	// Latency: сколько занял запрос к источнику, с исходом (ok, network, http_status, decode, canceled)
	FetchDuration *prometheus.HistogramVec

	// Cache: hit / miss / expired
	CacheLookups *prometheus.CounterVec

	// Errors: классификация отказов
	FetchErrors *prometheus.CounterVec

	// Saturation: состояние связи (1 - online, 0 - offline)
	Online      prometheus.Gauge
	Transitions *prometheus.CounterVec

	// Циклы опроса: kind=full|range, result=published|failed|stale
	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram

	Alerts prometheus.Counter

	// Подключенные WebSocket клиенты
	WSClients prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	// Null Object Pattern - Если рег не передан, используем локальный, который никуда не подключен
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		FetchDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "threatwatch_fetch_duration_seconds",
			Help:    "Histogram of remote API request latencies.",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"endpoint", "outcome"}),

		CacheLookups: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "threatwatch_cache_lookups_total",
			Help: "Response cache lookups by result.",
		}, []string{"result"}),

		FetchErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "threatwatch_fetch_errors_total",
			Help: "Total number of remote API errors by type.",
		}, []string{"type"}), // типы: network, http_status, decode

		Online: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "threatwatch_connectivity_online",
			Help: "Current connectivity to the threat source (1=online, 0=offline).",
		}),

		Transitions: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "threatwatch_connectivity_transitions_total",
			Help: "Connectivity state transitions by target state.",
		}, []string{"to"}),

		Cycles: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "threatwatch_cycles_total",
			Help: "Polling cycles by kind and result.",
		}, []string{"kind", "result"}),

		CycleDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "threatwatch_cycle_duration_seconds",
			Help:    "Duration of a polling cycle from start to publication or abort.",
			Buckets: prometheus.DefBuckets,
		}),

		Alerts: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "threatwatch_alerts_total",
			Help: "Total number of critical new-event alerts raised.",
		}),

		WSClients: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "threatwatch_ws_clients",
			Help: "Currently connected WebSocket clients.",
		}),
	}

	m.Online.Set(1) // Стартуем в ONLINE
	return m
}

func (m *Metrics) ObserveFetch(endpoint, outcome string, d time.Duration) {
	m.FetchDuration.WithLabelValues(endpoint, outcome).Observe(d.Seconds())
}

func (m *Metrics) CacheLookup(result string) {
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) FetchError(kind string) {
	m.FetchErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) ConnectivityTransition(to domain.ConnectivityState) {
	if to == domain.StateOnline {
		m.Online.Set(1)
	} else {
		m.Online.Set(0)
	}
	m.Transitions.WithLabelValues(string(to)).Inc()
}

func (m *Metrics) CycleFinished(kind, result string, d time.Duration) {
	m.Cycles.WithLabelValues(kind, result).Inc()
	m.CycleDuration.Observe(d.Seconds())
}

func (m *Metrics) AlertRaised() {
	m.Alerts.Inc()
}

func (m *Metrics) ClientsChanged(n int) {
	m.WSClients.Set(float64(n))
}
