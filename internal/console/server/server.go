package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xela07ax/threatwatch/internal/console/handler"
	"go.uber.org/zap"
)

type ConsoleServer struct {
	router *chi.Mux
	logger *zap.Logger

	// Обработчики
	dashHandler   *handler.DashboardHandler // /api/v1/snapshot, /buckets, /range, /refresh
	sourceHandler *handler.SourceHandler    // /api/v1/threats/{id}, /alerts/test, /cache/clear
	ws            http.Handler              // /ws (WebSocket hub)
}

// NewConsoleServer инициализирует API для виджетов дашборда
func NewConsoleServer(
	logger *zap.Logger,
	dashH *handler.DashboardHandler,
	sourceH *handler.SourceHandler,
	ws http.Handler,
) *ConsoleServer {
	s := &ConsoleServer{
		router:        chi.NewRouter(),
		logger:        logger.Named("console-api"),
		dashHandler:   dashH,
		sourceHandler: sourceH,
		ws:            ws,
	}

	s.routes()
	return s
}

func (s *ConsoleServer) routes() {
	r := s.router

	// --- 1. Глобальные инфраструктурные Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(TracingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	// WebSocket без логгера запросов: соединение живет долго
	r.Handle("/ws", s.ws)

	// --- 2. API для виджетов ---
	r.Group(func(r chi.Router) {
		r.Use(RequestLogger(s.logger))

		r.Route("/api/v1", func(r chi.Router) {
			// Опубликованное состояние
			r.Get("/snapshot", s.dashHandler.GetSnapshot)
			r.Get("/buckets", s.dashHandler.GetBuckets)
			r.Get("/connectivity", s.dashHandler.GetConnectivity)

			// Управление циклами опроса
			r.Post("/range", s.dashHandler.ChangeRange)
			r.Post("/refresh", s.dashHandler.Refresh)

			// Прямые обращения к источнику
			r.Get("/threats/{id}", s.sourceHandler.GetThreat)
			r.Post("/alerts/test", s.sourceHandler.SendTestAlert)
			r.Post("/cache/clear", s.sourceHandler.ClearCache)
		})
	})
}

// ServeHTTP позволяет использовать ConsoleServer как стандартный http.Handler
func (s *ConsoleServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
