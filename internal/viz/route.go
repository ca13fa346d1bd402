package viz

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"strings"

	"github.com/bluele/gcache"

	"tripviz/internal/model"
)

// maxFollowingStations is how many stations after the origin a multi-station route visits.
const maxFollowingStations = 3

// offsetFractions are the waypoints of a synthetic route, as fractions of the destination offset.
var offsetFractions = []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0}

var destinationOffsets = map[string]model.LatLng{
	"Downtown": {Lat: 0.008, Lng: 0.008},
	"Airport":  {Lat: -0.01, Lng: 0.015},
	"Mall":     {Lat: 0.006, Lng: -0.006},
}

var defaultOffset = model.LatLng{Lat: 0.005, Lng: 0.005}

// DestinationOffset maps a free-form destination label to a fixed displacement from the origin.
// Unknown labels get a small positive offset.
func DestinationOffset(label string) model.LatLng {
	if off, ok := destinationOffsets[label]; ok {
		return off
	}
	return defaultOffset
}

// Path is a resolved trip geometry.
type Path struct {
	Origin model.Station
	// Following holds the stations visited after the origin; empty for synthetic routes.
	Following []model.Station
	Points    []model.LatLng
	// Delta is the displacement a vehicle covers between progress 0 and 1.
	Delta model.LatLng
}

// Next returns the first station after the origin, if the path has one.
func (p Path) Next() (model.Station, bool) {
	if len(p.Following) == 0 {
		return model.Station{}, false
	}
	return p.Following[0], true
}

// RouteStrategy resolves a trip into a path. It returns false when the trip
// cannot be placed on the map.
type RouteStrategy interface {
	Resolve(trip model.Trip, stations []model.Station) (Path, bool)
}

// StationOrder uses the backend's station ordering as adjacency: a trip
// continues through the stations listed after its origin. When the origin is
// the last station the route falls back to an offset derived from the
// destination label.
type StationOrder struct{}

func (StationOrder) Resolve(trip model.Trip, stations []model.Station) (Path, bool) {
	idx := model.FindStation(stations, trip.OriginStation)
	if idx < 0 {
		return Path{}, false
	}
	origin := stations[idx]
	path := Path{Origin: origin}

	if idx < len(stations)-1 {
		end := min(idx+1+maxFollowingStations, len(stations))
		path.Following = append([]model.Station(nil), stations[idx+1:end]...)
		path.Points = make([]model.LatLng, 0, len(path.Following)+1)
		path.Points = append(path.Points, origin.Position())
		for _, s := range path.Following {
			path.Points = append(path.Points, s.Position())
		}
		path.Delta = path.Following[0].Position().Sub(origin.Position())
		return path, true
	}

	off := DestinationOffset(trip.Destination)
	path.Delta = off
	path.Points = make([]model.LatLng, len(offsetFractions))
	for i, f := range offsetFractions {
		path.Points[i] = origin.Position().Add(off, f)
	}
	return path, true
}

// Route is a drawable polyline for one trip.
type Route struct {
	TripID     string         `json:"trip_id"`
	DriverID   string         `json:"driver_id"`
	Status     model.Status   `json:"status"`
	Points     []model.LatLng `json:"points"`
	StationIDs []string       `json:"station_ids,omitempty"`
	Synthetic  bool           `json:"synthetic"`
}

type cachedRoute struct {
	points     []model.LatLng
	stationIDs []string
}

// Synthesizer derives routes for live trips and caches them per station set.
type Synthesizer struct {
	strategy RouteStrategy
	cache    gcache.Cache
}

func NewSynthesizer(strategy RouteStrategy, cacheSize int) *Synthesizer {
	if strategy == nil {
		strategy = StationOrder{}
	}
	if cacheSize <= 0 {
		cacheSize = 1024
	}
	return &Synthesizer{
		strategy: strategy,
		cache:    gcache.New(cacheSize).LRU().Build(),
	}
}

// Routes returns one route per scheduled or active trip whose origin resolves,
// in trip-list order. Completed trips never yield a route, cached or not.
func (s *Synthesizer) Routes(trips []model.Trip, stations []model.Station) []Route {
	fp := fingerprint(stations)
	routes := make([]Route, 0, len(trips))
	for _, t := range trips {
		if !t.Status.Live() {
			continue
		}
		cr, ok := s.lookup(t, stations, fp)
		if !ok {
			continue
		}
		routes = append(routes, Route{
			TripID:     t.TripID,
			DriverID:   t.DriverID,
			Status:     t.Status,
			Points:     append([]model.LatLng(nil), cr.points...),
			StationIDs: append([]string(nil), cr.stationIDs...),
			Synthetic:  len(cr.stationIDs) == 0,
		})
	}
	return routes
}

func (s *Synthesizer) lookup(t model.Trip, stations []model.Station, fp uint64) (cachedRoute, bool) {
	key := routeKey(t, fp)
	if v, err := s.cache.Get(key); err == nil {
		cr := v.(cachedRoute)
		return cr, len(cr.points) >= 2
	}
	path, ok := s.strategy.Resolve(t, stations)
	if !ok || len(path.Points) < 2 {
		return cachedRoute{}, false
	}
	cr := cachedRoute{points: path.Points}
	for _, st := range path.Following {
		cr.stationIDs = append(cr.stationIDs, st.StationID)
	}
	_ = s.cache.Set(key, cr)
	return cr, true
}

func routeKey(t model.Trip, fp uint64) string {
	var b strings.Builder
	b.WriteString(t.TripID)
	b.WriteByte(0)
	b.WriteString(t.OriginStation)
	b.WriteByte(0)
	b.WriteString(t.Destination)
	b.WriteByte(0)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], fp)
	b.Write(buf[:])
	return b.String()
}

// fingerprint identifies a station list by ids, coordinates and order.
func fingerprint(stations []model.Station) uint64 {
	h := fnv.New64a()
	var buf [8]byte
	for _, s := range stations {
		h.Write([]byte(s.StationID))
		h.Write([]byte{0})
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(s.Lat))
		h.Write(buf[:])
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(s.Lng))
		h.Write(buf[:])
	}
	return h.Sum64()
}
