package render

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"tripviz/internal/source"
)

func newID() string { return uuid.NewString() }

func (s *Server) registerRider(w http.ResponseWriter, r *http.Request) {
	var req source.RiderRegistration
	if !decode(w, r, &req) {
		return
	}
	if req.RiderID == "" {
		req.RiderID = "rider-" + s.newID()
	}
	ack, err := s.backend.RegisterRider(r.Context(), req)
	if ack.RiderID == "" {
		ack.RiderID = req.RiderID
	}
	s.respond(w, "register_rider", ack, err, false)
}

func (s *Server) registerDriver(w http.ResponseWriter, r *http.Request) {
	var req source.DriverRegistration
	if !decode(w, r, &req) {
		return
	}
	if req.DriverID == "" {
		req.DriverID = "drv-" + s.newID()
	}
	ack, err := s.backend.RegisterDriver(r.Context(), req)
	if ack.DriverID == "" {
		ack.DriverID = req.DriverID
	}
	s.respond(w, "register_driver", ack, err, false)
}

func (s *Server) requestPickup(w http.ResponseWriter, r *http.Request) {
	var req source.PickupRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RiderID == "" || req.StationID == "" || req.Destination == "" {
		writeError(w, http.StatusBadRequest, "rider_id, station_id and destination are required")
		return
	}
	ack, err := s.backend.RequestPickup(r.Context(), req)
	s.respond(w, "request_pickup", ack, err, true)
}

func (s *Server) startTrip(w http.ResponseWriter, r *http.Request) {
	ack, err := s.backend.StartTrip(r.Context(), chi.URLParam(r, "tripID"))
	s.respond(w, "start_trip", ack, err, true)
}

func (s *Server) completeTrip(w http.ResponseWriter, r *http.Request) {
	ack, err := s.backend.CompleteTrip(r.Context(), chi.URLParam(r, "tripID"))
	s.respond(w, "complete_trip", ack, err, true)
}

// respond writes the backend's acknowledgement, or a 502 carrying its error.
// Successful trip-changing actions trigger an immediate trips refresh.
func (s *Server) respond(w http.ResponseWriter, action string, ack source.Ack, err error, refresh bool) {
	if s.metrics != nil {
		s.metrics.ActionObserve(action, err)
	}
	if err != nil {
		log.Printf("%s failed: %v", action, err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	if refresh && !s.view.Refresh() {
		log.Printf("%s: view not running, refresh skipped", action)
	}
	writeJSON(w, http.StatusOK, ack)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}
