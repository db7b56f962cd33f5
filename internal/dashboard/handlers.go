package dashboard

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nithinbasa/SmartGrid/internal/control"
	"github.com/nithinbasa/SmartGrid/internal/errors"
	"github.com/nithinbasa/SmartGrid/internal/export"
	"github.com/nithinbasa/SmartGrid/internal/monitor"
	"github.com/nithinbasa/SmartGrid/internal/source"
	"github.com/nithinbasa/SmartGrid/internal/websocket"
)

const (
	maxBodyBytes     = 1 << 16
	maxHistoryAlerts = 1000
)

type statusResponse struct {
	Source         string                  `json:"source"`
	Demo           bool                    `json:"demo"`
	Uptime         string                  `json:"uptime"`
	Cooldown       string                  `json:"cooldown"`
	Thresholds     monitor.ThresholdConfig `json:"thresholds"`
	Alerts         int                     `json:"alerts"`
	Unacknowledged int                     `json:"unacknowledged"`
	Latest         *monitor.SensorReading  `json:"latest"`
	Loads          control.LoadState       `json:"loads"`
	AuthEnabled    bool                    `json:"authEnabled"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Source:         s.SourceName,
		Demo:           s.SourceName == source.NameSimulated,
		Uptime:         s.now().Sub(s.startedAt).Round(time.Second).String(),
		Cooldown:       s.Engine.Cooldown().String(),
		Thresholds:     s.Engine.Thresholds(),
		Alerts:         s.Engine.Len(),
		Unacknowledged: s.Engine.Unacknowledged(),
		Loads:          s.Controller.State(),
		AuthEnabled:    s.Auth.Enabled(),
	}
	if latest, ok := s.Buffer.Latest(); ok {
		resp.Latest = &latest
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCurrentReading(w http.ResponseWriter, _ *http.Request) {
	latest, ok := s.Buffer.Latest()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, latest)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	n, err := intParam(r, "n", 0)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Buffer.Recent(n))
}

func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", s.AlertLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.Alerts(limit))
}

// handleAlertHistory serves persisted alerts, including those from before
// the last restart. limit=0 returns up to maxHistoryAlerts.
func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		s.writeError(w, errors.New().WithMessage(errors.ErrUnavailable, "alert history is not configured"))
		return
	}

	limit, err := intParam(r, "limit", s.AlertLimit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if limit == 0 || limit > maxHistoryAlerts {
		limit = maxHistoryAlerts
	}

	alerts, err := s.History.RecentAlerts(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if alerts == nil {
		alerts = []monitor.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	alert, err := s.Engine.Acknowledge(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleGetLoads(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Controller.State())
}

func (s *Server) handleUpdateLoads(w http.ResponseWriter, r *http.Request) {
	var update control.LoadUpdate
	if err := decodeBody(w, r, &update); err != nil {
		s.writeError(w, err)
		return
	}

	change, err := s.Controller.Update(update)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, change)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	token, expires, err := s.Auth.Login(req.Username, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expires})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	s.Hub.ServeWS(w, r,
		websocket.Message{Type: websocket.TypeHistory, Payload: s.Buffer.All()},
		websocket.Message{Type: websocket.TypeLoads, Payload: s.Controller.State()},
	)
}

func (s *Server) handleExportReadingsCSV(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := export.ReadingsCSV(&buf, s.Buffer.All()); err != nil {
		s.writeError(w, err)
		return
	}
	s.attachment(w, "text/csv", s.exportName("power-data", "csv"), buf.Bytes())
}

func (s *Server) handleExportReadingsXLSX(w http.ResponseWriter, _ *http.Request) {
	data, err := export.ReadingsXLSX(s.Buffer.All())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.attachment(w, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		s.exportName("power-data", "xlsx"), data)
}

func (s *Server) handleExportAlertsText(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	if err := export.AlertsText(&buf, s.Engine.Alerts(0), s.Location); err != nil {
		s.writeError(w, err)
		return
	}
	s.attachment(w, "text/plain; charset=utf-8", s.exportName("alerts", "txt"), buf.Bytes())
}

func (s *Server) handleExportAlertsPDF(w http.ResponseWriter, _ *http.Request) {
	data, err := export.AlertsPDF(s.Engine.Alerts(0), s.now(), s.Location)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.attachment(w, "application/pdf", s.exportName("alerts", "pdf"), data)
}

func (s *Server) exportName(prefix, ext string) string {
	return prefix + "-" + s.now().In(s.Location).Format("2006-01-02") + "." + ext
}

func (s *Server) attachment(w http.ResponseWriter, contentType, filename string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New().WithMessage(errors.ErrInvalidArgument, name+" must be a non-negative integer")
	}
	return n, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New().Wrap(errors.ErrInvalidArgument, err)
	}
	return nil
}
