package model

import "time"

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Valid reports whether s is one of the known trip states.
func (s Status) Valid() bool { return s.Live() || s == StatusCompleted }

// Live reports whether a trip in this status is drawn on the map.
func (s Status) Live() bool { return s == StatusScheduled || s == StatusActive }

type Station struct {
	StationID string  `json:"station_id"`
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
}

type Trip struct {
	TripID        string   `json:"trip_id"`
	DriverID      string   `json:"driver_id"`
	RiderIDs      []string `json:"rider_ids"`
	OriginStation string   `json:"origin_station"`
	Destination   string   `json:"destination"`
	Status        Status   `json:"status"`
	StartTime     *int64   `json:"start_time"` // epoch milliseconds
	EndTime       *int64   `json:"end_time"`   // epoch milliseconds
	SeatsReserved *int     `json:"seats_reserved"`
}

// Ended returns the trip end time and whether the backend reported one.
func (t Trip) Ended() (time.Time, bool) {
	if t.EndTime == nil {
		return time.Time{}, false
	}
	return time.UnixMilli(*t.EndTime), true
}

type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Add returns p shifted by d scaled by f.
func (p LatLng) Add(d LatLng, f float64) LatLng {
	return LatLng{Lat: p.Lat + d.Lat*f, Lng: p.Lng + d.Lng*f}
}

func (p LatLng) Sub(q LatLng) LatLng { return LatLng{Lat: p.Lat - q.Lat, Lng: p.Lng - q.Lng} }

func (s Station) Position() LatLng { return LatLng{Lat: s.Lat, Lng: s.Lng} }

// FindStation returns the index of the station with the given id, or -1.
func FindStation(stations []Station, id string) int {
	for i, s := range stations {
		if s.StationID == id {
			return i
		}
	}
	return -1
}
