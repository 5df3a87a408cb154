package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/xela07ax/threatwatch/internal/domain"
	"github.com/xela07ax/threatwatch/internal/engine"
	"github.com/xela07ax/threatwatch/internal/timeline"
)

// DashboardView Описываем, что нам нужно от оркестратора
type DashboardView interface {
	Latest() (domain.Snapshot, bool)
	Buckets() (timeline.Timeline, []timeline.TrendBucket)
	Hours() int
	RequestRange(hours int) error
	RequestRefresh()
}

type StatusSource interface {
	Status() domain.ConnectivityStatus
}

type DashboardHandler struct {
	view   DashboardView
	status StatusSource
}

func NewDashboardHandler(view DashboardView, status StatusSource) *DashboardHandler {
	return &DashboardHandler{view: view, status: status}
}

func (h *DashboardHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.view.Latest()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "no snapshot published yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

type bucketsResponse struct {
	Hours    int                    `json:"hours"`
	Timeline timeline.Timeline      `json:"timeline"`
	Trend    []timeline.TrendBucket `json:"trend"`
}

func (h *DashboardHandler) GetBuckets(w http.ResponseWriter, r *http.Request) {
	tl, trend := h.view.Buckets()
	writeJSON(w, http.StatusOK, bucketsResponse{Hours: h.view.Hours(), Timeline: tl, Trend: trend})
}

func (h *DashboardHandler) GetConnectivity(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status.Status())
}

type rangeRequest struct {
	Hours int `json:"hours"`
}

// ChangeRange принимает запрос асинхронно: новый срез придет через WebSocket.
func (h *DashboardHandler) ChangeRange(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.view.RequestRange(req.Hours); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrInvalidRange) {
			status = http.StatusBadRequest
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, req)
}

func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.view.RequestRefresh()
	w.WriteHeader(http.StatusAccepted)
}
