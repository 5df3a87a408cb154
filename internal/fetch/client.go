package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/xela07ax/threatwatch/internal/domain"
)

// Пути удаленного API
const (
	EndpointHealth    = "/health"
	EndpointStats     = "/api/stats"
	EndpointThreats   = "/api/threats"
	EndpointAttackers = "/api/attackers"
	EndpointTestAlert = "/api/alerts/test"

	// ExportPageSize: размер страницы для выгрузки ленты.
	ExportPageSize = 1000
)

// Fetcher: то, что клиенту нужно от шлюза.
type Fetcher interface {
	Get(ctx context.Context, endpoint string, params url.Values, useCache bool) ([]byte, error)
	Post(ctx context.Context, endpoint string, body any) ([]byte, error)
	Invalidate(endpoint string, params url.Values)
}

// Client: типизированные операции удаленного API поверх Gateway.
type Client struct {
	gw       Fetcher
	observer ErrorObserver
}

func NewClient(gw Fetcher, observer ErrorObserver) *Client {
	return &Client{gw: gw, observer: observer}
}

// GetStats возвращает агрегированную статистику за окно hours.
func (c *Client) GetStats(ctx context.Context, hours int) (domain.StatsSnapshot, error) {
	params := url.Values{}
	params.Set("hours", strconv.Itoa(hours))

	var dto statsDTO
	if err := c.getJSON(ctx, EndpointStats, params, true, &dto); err != nil {
		return domain.StatsSnapshot{}, err
	}
	return dto.toDomain(hours), nil
}

// GetThreats возвращает страницу ленты, новые события первыми.
func (c *Client) GetThreats(ctx context.Context, f domain.ThreatFilter) (domain.ThreatPage, error) {
	params := threatParams(f)

	var dto threatPageDTO
	if err := c.getJSON(ctx, EndpointThreats, params, true, &dto); err != nil {
		return domain.ThreatPage{}, err
	}

	threats := make([]domain.ThreatEvent, 0, len(dto.Threats))
	for _, t := range dto.Threats {
		ev, err := t.toDomain()
		if err != nil {
			return domain.ThreatPage{}, c.decodeFailed(EndpointThreats, params, err)
		}
		threats = append(threats, ev)
	}

	return domain.ThreatPage{
		Threats:    threats,
		Total:      dto.Total,
		Page:       dto.Page,
		PerPage:    dto.PerPage,
		TotalPages: dto.TotalPages,
	}, nil
}

// GetThreat возвращает одно событие по идентификатору.
func (c *Client) GetThreat(ctx context.Context, id int64) (domain.ThreatEvent, error) {
	endpoint := fmt.Sprintf("%s/%d", EndpointThreats, id)

	var dto threatDTO
	if err := c.getJSON(ctx, endpoint, nil, true, &dto); err != nil {
		return domain.ThreatEvent{}, err
	}

	ev, err := dto.toDomain()
	if err != nil {
		return domain.ThreatEvent{}, c.decodeFailed(endpoint, nil, err)
	}
	return ev, nil
}

// GetAttackers возвращает страницу профилей атакующих.
func (c *Client) GetAttackers(ctx context.Context, f domain.AttackerFilter) ([]domain.AttackerProfile, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(max(f.Page, 1)))
	if f.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(f.PerPage))
	}
	if f.RiskLevel != "" {
		params.Set("risk_level", f.RiskLevel)
	}

	var dto attackerPageDTO
	if err := c.getJSON(ctx, EndpointAttackers, params, true, &dto); err != nil {
		return nil, err
	}

	attackers := make([]domain.AttackerProfile, 0, len(dto.Attackers))
	for _, a := range dto.Attackers {
		attackers = append(attackers, a.toDomain())
	}
	return attackers, nil
}

// ExportThreats выгружает крупную страницу ленты для экспорта.
func (c *Client) ExportThreats(ctx context.Context, f domain.ThreatFilter) ([]domain.ThreatEvent, error) {
	f.PerPage = ExportPageSize
	page, err := c.GetThreats(ctx, f)
	if err != nil {
		return nil, err
	}
	return page.Threats, nil
}

// SendTestAlert отправляет тестовую тревогу на источник.
func (c *Client) SendTestAlert(ctx context.Context, message string) (Ack, error) {
	payload, err := c.gw.Post(ctx, EndpointTestAlert, map[string]string{"message": message})
	if err != nil {
		return Ack{}, err
	}

	var ack Ack
	if err := json.Unmarshal(payload, &ack); err != nil {
		return Ack{}, c.decodeFailed(EndpointTestAlert, nil, err)
	}
	return ack, nil
}

// CheckHealth проверяет здоровье источника в обход кэша.
func (c *Client) CheckHealth(ctx context.Context) (bool, error) {
	var dto healthDTO
	if err := c.getJSON(ctx, EndpointHealth, nil, false, &dto); err != nil {
		return false, err
	}
	return dto.Status == "healthy", nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, useCache bool, v any) error {
	payload, err := c.gw.Get(ctx, endpoint, params, useCache)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return c.decodeFailed(endpoint, params, err)
	}
	return nil
}

// decodeFailed выкидывает ответ из кэша, оборачивает ошибку разбора в DecodeError
// и сообщает о ней наблюдателю. Следующий запрос снова пойдет в сеть.
func (c *Client) decodeFailed(endpoint string, params url.Values, cause error) error {
	c.gw.Invalidate(endpoint, params)
	err := &DecodeError{Endpoint: endpoint, Cause: cause}
	if c.observer != nil {
		c.observer.ReportError(endpoint, err)
	}
	return err
}

func threatParams(f domain.ThreatFilter) url.Values {
	params := url.Values{}
	params.Set("page", strconv.Itoa(max(f.Page, 1)))
	if f.PerPage > 0 {
		params.Set("per_page", strconv.Itoa(f.PerPage))
	}

	optional := map[string]string{
		"service":     f.Service,
		"attack_type": f.AttackType,
		"attacker_ip": f.AttackerIP,
		"start_date":  f.StartDate,
		"end_date":    f.EndDate,
	}
	for k, v := range optional {
		if v != "" {
			params.Set(k, v)
		}
	}
	return params
}
