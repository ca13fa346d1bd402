package source

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"tripviz/internal/model"
)

// Source supplies the station and trip lists the dashboard draws.
type Source interface {
	Stations(ctx context.Context) ([]model.Station, error)
	Trips(ctx context.Context) ([]model.Trip, error)
}

// Client talks to the ride-matching REST backend.
type Client struct {
	base   *url.URL
	client *http.Client
}

func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse backend url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend url %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{base: u, client: &http.Client{Timeout: timeout}}, nil
}

// wireStation keeps coordinates as pointers so a missing lat/lng is not
// mistaken for (0,0).
type wireStation struct {
	StationID string   `json:"station_id"`
	Name      string   `json:"name"`
	Lat       *float64 `json:"lat"`
	Lng       *float64 `json:"lng"`
}

func (c *Client) Stations(ctx context.Context) ([]model.Station, error) {
	var body struct {
		Stations *[]wireStation `json:"stations"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/stations", nil, &body); err != nil {
		return nil, err
	}
	if body.Stations == nil {
		return nil, fmt.Errorf("stations: %w: missing \"stations\"", ErrMalformed)
	}
	stations := make([]model.Station, 0, len(*body.Stations))
	for i, s := range *body.Stations {
		switch {
		case s.StationID == "":
			return nil, fmt.Errorf("stations[%d]: %w: missing station_id", i, ErrMalformed)
		case s.Lat == nil || s.Lng == nil:
			return nil, fmt.Errorf("stations[%d] %s: %w: missing lat/lng", i, s.StationID, ErrMalformed)
		}
		stations = append(stations, model.Station{StationID: s.StationID, Name: s.Name, Lat: *s.Lat, Lng: *s.Lng})
	}
	return stations, nil
}

func (c *Client) Trips(ctx context.Context) ([]model.Trip, error) {
	var body struct {
		Trips *[]model.Trip `json:"trips"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/trips", nil, &body); err != nil {
		return nil, err
	}
	if body.Trips == nil {
		return nil, fmt.Errorf("trips: %w: missing \"trips\"", ErrMalformed)
	}
	for i, t := range *body.Trips {
		if err := validateTrip(t); err != nil {
			return nil, fmt.Errorf("trips[%d]: %w: %v", i, ErrMalformed, err)
		}
	}
	return *body.Trips, nil
}

func validateTrip(t model.Trip) error {
	switch {
	case t.TripID == "":
		return errors.New("missing trip_id")
	case t.DriverID == "":
		return fmt.Errorf("trip %s: missing driver_id", t.TripID)
	case t.OriginStation == "":
		return fmt.Errorf("trip %s: missing origin_station", t.TripID)
	case !t.Status.Valid():
		return fmt.Errorf("trip %s: unknown status %q", t.TripID, t.Status)
	}
	return nil
}

type RiderRegistration struct {
	RiderID string `json:"rider_id"`
	Name    string `json:"name"`
	Phone   string `json:"phone"`
}

type DriverRegistration struct {
	DriverID  string `json:"driver_id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	VehicleNo string `json:"vehicle_no"`
}

type PickupRequest struct {
	RiderID     string `json:"rider_id"`
	StationID   string `json:"station_id"`
	Destination string `json:"destination"`
}

// Ack is the backend's acknowledgement of an action. Fields the backend
// leaves out stay zero.
type Ack struct {
	OK        *bool  `json:"ok,omitempty"`
	RiderID   string `json:"rider_id,omitempty"`
	DriverID  string `json:"driver_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Status    string `json:"status,omitempty"`
	Error     string `json:"error,omitempty"`
}

func (c *Client) RegisterRider(ctx context.Context, r RiderRegistration) (Ack, error) {
	return c.action(ctx, "/api/riders/register", r)
}

func (c *Client) RegisterDriver(ctx context.Context, d DriverRegistration) (Ack, error) {
	return c.action(ctx, "/api/drivers/register", d)
}

// RequestPickup asks for a ride and returns the backend's request id.
func (c *Client) RequestPickup(ctx context.Context, p PickupRequest) (Ack, error) {
	ack, err := c.action(ctx, "/api/riders/request-pickup", p)
	if err != nil {
		return ack, err
	}
	if ack.RequestID == "" {
		return ack, fmt.Errorf("request pickup: %w: missing request_id", ErrMalformed)
	}
	return ack, nil
}

func (c *Client) StartTrip(ctx context.Context, tripID string) (Ack, error) {
	return c.tripTransition(ctx, tripID, "start")
}

func (c *Client) CompleteTrip(ctx context.Context, tripID string) (Ack, error) {
	return c.tripTransition(ctx, tripID, "complete")
}

func (c *Client) tripTransition(ctx context.Context, tripID, verb string) (Ack, error) {
	if tripID == "" {
		return Ack{}, fmt.Errorf("%s trip: empty trip id", verb)
	}
	ack, err := c.action(ctx, "/api/trips/"+url.PathEscape(tripID)+"/"+verb, nil)
	if err != nil {
		return ack, err
	}
	if ack.OK == nil {
		return ack, fmt.Errorf("%s trip %s: %w: missing ok", verb, tripID, ErrMalformed)
	}
	return ack, nil
}

func (c *Client) action(ctx context.Context, path string, payload any) (Ack, error) {
	var ack Ack
	if err := c.do(ctx, http.MethodPost, path, payload, &ack); err != nil {
		return Ack{}, err
	}
	if ack.OK != nil && !*ack.OK {
		msg := ack.Error
		if msg == "" {
			msg = "ok=false"
		}
		return ack, fmt.Errorf("%s: %w: %s", path, ErrRejected, msg)
	}
	return ack, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	u := c.base.JoinPath(path)
	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	if err := check(resp); err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrMalformed, err)
	}
	return nil
}

func decodeBytes(b []byte, out any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, out)
}
