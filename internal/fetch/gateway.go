package fetch

/*
Fetch Gateway: единая точка обращения к удаленному API сенсоров.

- Каждый запрос ограничен собственным таймаутом. Новый цикл не отменяет старые запросы,
  худший случай перекрытия ограничен этим таймаутом.
- TTL кэш по сигнатуре запроса: повтор в пределах TTL не тратит сетевой вызов.
- Внутренних ретраев нет. Каждая ошибка один раз уходит наблюдателю и возвращается вызывающему.
- Только транспортные сбои (NetworkError) роняют связь. HTTP-статусы и битый JSON: нет.
*/

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"github.com/xela07ax/threatwatch/internal/infra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ConnectivityReporter получает исходы сетевых вызовов. Реализуется connectivity.Monitor.
type ConnectivityReporter interface {
	ReportSuccess()
	ReportFailure(err error)
}

// ErrorObserver получает каждую ошибку ровно один раз.
type ErrorObserver interface {
	ReportError(endpoint string, err error)
}

// Recorder: то, что шлюзу нужно от метрик.
type Recorder interface {
	ObserveFetch(endpoint, outcome string, d time.Duration)
	CacheLookup(result string)
}

type Gateway struct {
	baseURL  *url.URL
	timeout  time.Duration
	client   *http.Client
	cache    *Cache
	limiter  *rate.Limiter
	cb       *gobreaker.CircuitBreaker
	reporter ConnectivityReporter
	observer ErrorObserver
	metrics  Recorder
	logger   *zap.Logger
}

func NewGateway(cfg infra.SourceConfig, reporter ConnectivityReporter, observer ErrorObserver, metrics Recorder, logger *zap.Logger) (*Gateway, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid source base url: %w", err)
	}

	g := &Gateway{
		baseURL:  base,
		timeout:  cfg.Timeout,
		client:   &http.Client{},
		cache:    NewCache(cfg.CacheTTL, time.Now),
		reporter: reporter,
		observer: observer,
		metrics:  metrics,
		logger:   logger.Named("gateway"),
	}

	if g.reporter == nil {
		g.reporter = nopReporter{}
	}

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	if cfg.BreakerFailures > 0 {
		g.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "threat-source",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout, // Через сколько CB попробует "закрыться"
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= cfg.BreakerFailures
			},
			// Ответ с любым HTTP-статусом: источник жив, предохранитель не трогаем
			IsSuccessful: func(err error) bool {
				return err == nil || !IsNetwork(err)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				g.logger.Info("circuit breaker state changed",
					zap.String("from", from.String()),
					zap.String("to", to.String()))
			},
		})
	}

	return g, nil
}

// Get выполняет GET. При useCache свежая запись кэша возвращается без сетевого вызова.
func (g *Gateway) Get(ctx context.Context, endpoint string, params url.Values, useCache bool) ([]byte, error) {
	key := cacheKey(endpoint, params)

	if useCache {
		payload, result := g.cache.Lookup(key)
		g.recordLookup(result)
		if result == LookupHit {
			return payload, nil
		}
	}

	payload, err := g.do(ctx, http.MethodGet, endpoint, params, nil)
	if err != nil {
		return nil, err
	}

	if useCache {
		g.cache.Store(key, payload)
	}
	g.reporter.ReportSuccess()
	return payload, nil
}

// Post выполняет POST с JSON телом. Ответы POST не кэшируются.
func (g *Gateway) Post(ctx context.Context, endpoint string, body any) ([]byte, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	payload, err := g.do(ctx, http.MethodPost, endpoint, nil, data)
	if err != nil {
		return nil, err
	}

	g.reporter.ReportSuccess()
	return payload, nil
}

// Invalidate удаляет запись кэша для запроса. Клиент вызывает его, когда ответ
// оказался валидным JSON, но не прошел разбор в доменные типы.
func (g *Gateway) Invalidate(endpoint string, params url.Values) {
	g.cache.Delete(cacheKey(endpoint, params))
}

// ClearCache сбрасывает все записи кэша.
func (g *Gateway) ClearCache() {
	g.cache.Clear()
	g.logger.Debug("cache cleared")
}

func (g *Gateway) do(ctx context.Context, method, endpoint string, params url.Values, body []byte) ([]byte, error) {
	start := time.Now()

	payload, err := g.execute(ctx, method, endpoint, params, body)

	outcome := "ok"
	if err != nil {
		outcome = Kind(err)
		if outcome == "" {
			outcome = "canceled"
		}
	}
	if g.metrics != nil {
		g.metrics.ObserveFetch(endpointLabel(endpoint), outcome, time.Since(start))
	}

	if err != nil {
		g.fail(endpoint, err)
		return nil, err
	}
	return payload, nil
}

func (g *Gateway) execute(ctx context.Context, method, endpoint string, params url.Values, body []byte) ([]byte, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &NetworkError{Endpoint: endpoint, Cause: fmt.Errorf("rate limit: %w", err)}
		}
	}

	if g.cb == nil {
		return g.roundTrip(ctx, method, endpoint, params, body)
	}

	res, err := g.cb.Execute(func() (interface{}, error) {
		return g.roundTrip(ctx, method, endpoint, params, body)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &NetworkError{Endpoint: endpoint, Cause: err}
		}
		return nil, err
	}
	return res.([]byte), nil
}

func (g *Gateway) roundTrip(ctx context.Context, method, endpoint string, params url.Values, body []byte) ([]byte, error) {
	// Свой таймаут на каждый запрос, независимо от контекста цикла
	tCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(tCtx, method, g.buildURL(endpoint, params), reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		// Отмена со стороны вызывающего (shutdown): не сетевой сбой
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Endpoint: endpoint, Cause: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &NetworkError{Endpoint: endpoint, Cause: fmt.Errorf("read body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	// В кэш попадает только валидный JSON
	if !json.Valid(payload) {
		return nil, &DecodeError{Endpoint: endpoint, Cause: errors.New("response is not valid JSON")}
	}

	return payload, nil
}

// fail раскладывает ошибку по таксономии и сообщает о ней ровно один раз.
func (g *Gateway) fail(endpoint string, err error) {
	if Kind(err) == "" {
		// Отмена контекста вызывающим или ошибка сборки запроса: не сбой источника
		g.logger.Debug("request aborted", zap.String("endpoint", endpoint), zap.Error(err))
		return
	}

	if IsNetwork(err) {
		g.reporter.ReportFailure(err)
	}
	if g.observer != nil {
		g.observer.ReportError(endpoint, err)
	}
}

type nopReporter struct{}

func (nopReporter) ReportSuccess()      {}
func (nopReporter) ReportFailure(error) {}

func (g *Gateway) recordLookup(result LookupResult) {
	if g.metrics != nil {
		g.metrics.CacheLookup(string(result))
	}
}

func (g *Gateway) buildURL(endpoint string, params url.Values) string {
	u := *g.baseURL
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + strings.TrimPrefix(endpoint, "/")
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}
	return u.String()
}

// endpointLabel схлопывает числовые сегменты пути, чтобы не раздувать кардинальность метрик.
func endpointLabel(endpoint string) string {
	parts := strings.Split(endpoint, "/")
	for i, p := range parts {
		if p == "" {
			continue
		}
		if _, err := strconv.ParseInt(p, 10, 64); err == nil {
			parts[i] = ":id"
		}
	}
	return strings.Join(parts, "/")
}
