package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/xela07ax/threatwatch/internal/domain"
	"github.com/xela07ax/threatwatch/internal/fetch"
)

// SourceAPI: прямые обращения к удаленному API по запросу пользователя.
type SourceAPI interface {
	GetThreat(ctx context.Context, id int64) (domain.ThreatEvent, error)
	SendTestAlert(ctx context.Context, message string) (fetch.Ack, error)
}

type CacheCleaner interface {
	ClearCache()
}

type SourceHandler struct {
	api   SourceAPI
	cache CacheCleaner
}

func NewSourceHandler(api SourceAPI, cache CacheCleaner) *SourceHandler {
	return &SourceHandler{api: api, cache: cache}
}

func (h *SourceHandler) GetThreat(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid threat id")
		return
	}

	ev, err := h.api.GetThreat(r.Context(), id)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

type testAlertRequest struct {
	Message string `json:"message"`
}

func (h *SourceHandler) SendTestAlert(w http.ResponseWriter, r *http.Request) {
	var req testAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		req.Message = "Test alert from threatwatch"
	}

	ack, err := h.api.SendTestAlert(r.Context(), req.Message)
	if err != nil {
		writeSourceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (h *SourceHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.cache.ClearCache()
	w.WriteHeader(http.StatusNoContent)
}

// writeSourceError переводит таксономию ошибок шлюза в ответ клиенту.
func writeSourceError(w http.ResponseWriter, err error) {
	var statusErr *fetch.HTTPStatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.Status == http.StatusNotFound:
		writeError(w, http.StatusNotFound, "threat not found")
	case fetch.IsNetwork(err):
		writeError(w, http.StatusServiceUnavailable, "threat source unreachable")
	default:
		writeError(w, http.StatusBadGateway, err.Error())
	}
}
