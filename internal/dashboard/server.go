package dashboard

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/nithinbasa/SmartGrid/internal/auth"
	"github.com/nithinbasa/SmartGrid/internal/control"
	"github.com/nithinbasa/SmartGrid/internal/logger"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/nithinbasa/SmartGrid/internal/storage"
	"github.com/nithinbasa/SmartGrid/internal/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// AlertHistory reads alerts kept across restarts.
type AlertHistory interface {
	RecentAlerts(ctx context.Context, n int) ([]monitor.Alert, error)
}

// Deps are the components the dashboard reads from and drives.
type Deps struct {
	Engine     *monitor.Engine
	Buffer     *storage.ReadingBuffer
	Controller *control.Controller
	Auth       *auth.Manager
	Hub        *websocket.Hub
	History    AlertHistory
	Logger     logger.Logger

	SourceName string
	AlertLimit int
	Location   *time.Location
}

type Server struct {
	Deps
	startedAt time.Time
	now       func() time.Time
}

func NewServer(deps Deps) *Server {
	if deps.AlertLimit <= 0 {
		deps.AlertLimit = 10
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	return &Server{
		Deps:      deps,
		startedAt: time.Now(),
		now:       time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/login", s.handleLogin)

		r.Get("/readings/current", s.handleCurrentReading)
		r.Get("/readings/history", s.handleHistory)

		r.Get("/alerts", s.handleAlerts)
		r.Get("/alerts/history", s.handleAlertHistory)
		r.Get("/controls/loads", s.handleGetLoads)

		r.Route("/export", func(r chi.Router) {
			r.Get("/readings.csv", s.handleExportReadingsCSV)
			r.Get("/readings.xlsx", s.handleExportReadingsXLSX)
			r.Get("/alerts.txt", s.handleExportAlertsText)
			r.Get("/alerts.pdf", s.handleExportAlertsPDF)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.Auth.Middleware)
			r.Post("/alerts/{id}/ack", s.handleAcknowledge)
			r.Patch("/controls/loads", s.handleUpdateLoads)
		})
	})

	return r
}
