package render

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tripviz/internal/source"
	"tripviz/internal/view"
)

// Viewer is the part of *view.View the HTTP surface needs.
type Viewer interface {
	Frame() *view.Frame
	Dismiss(id int64) bool
	SetAutoRefresh(enabled bool) bool
	Refresh() bool
}

// Backend executes user actions against the ride-matching service.
type Backend interface {
	RegisterRider(ctx context.Context, r source.RiderRegistration) (source.Ack, error)
	RegisterDriver(ctx context.Context, d source.DriverRegistration) (source.Ack, error)
	RequestPickup(ctx context.Context, p source.PickupRequest) (source.Ack, error)
	StartTrip(ctx context.Context, tripID string) (source.Ack, error)
	CompleteTrip(ctx context.Context, tripID string) (source.Ack, error)
}

type ActionMetrics interface {
	ActionObserve(action string, err error)
}

type Server struct {
	view    Viewer
	backend Backend
	metrics ActionMetrics
	origins []string
	newID   func() string
}

func NewServer(v Viewer, b Backend, origins []string, m ActionMetrics) *Server {
	return &Server{view: v, backend: b, metrics: m, origins: origins, newID: newID}
}

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.health)

	r.Get("/api/view", s.getView)
	r.Put("/api/view/auto-refresh", s.setAutoRefresh)
	r.Post("/api/view/refresh", s.refresh)
	r.Get("/api/notifications", s.listNotifications)
	r.Delete("/api/notifications/{id}", s.dismissNotification)

	r.Get("/gtfs-rt/vehicle_positions.pb", s.vehiclePositions)

	r.Post("/api/riders/register", s.registerRider)
	r.Post("/api/drivers/register", s.registerDriver)
	r.Post("/api/riders/request-pickup", s.requestPickup)
	r.Post("/api/trips/{tripID}/start", s.startTrip)
	r.Post("/api/trips/{tripID}/complete", s.completeTrip)

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	f := s.view.Frame()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":              "ok",
		"timestamp":           time.Now().UTC(),
		"stations_updated_at": f.StationsAt,
		"trips_updated_at":    f.TripsAt,
	})
}

func (s *Server) getView(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Styled(s.view.Frame()))
}

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.view.Frame().Notifications)
}

func (s *Server) dismissNotification(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid notification id")
		return
	}
	if !s.view.Dismiss(id) {
		writeError(w, http.StatusNotFound, "notification not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) setAutoRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Enabled == nil {
		writeError(w, http.StatusBadRequest, `body must be {"enabled": true|false}`)
		return
	}
	if !s.view.SetAutoRefresh(*body.Enabled) {
		writeError(w, http.StatusServiceUnavailable, "view is not running")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"auto_refresh": *body.Enabled})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	if !s.view.Refresh() {
		writeError(w, http.StatusServiceUnavailable, "view is not running")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]bool{"ok": true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{OK: false, Error: msg})
}
