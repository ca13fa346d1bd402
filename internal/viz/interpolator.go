package viz

import (
	"math"

	"github.com/mmcloughlin/geohash"

	"tripviz/internal/model"
)

// DefaultStep is the progress an active trip gains per interpolation tick.
const DefaultStep = 0.05

const geohashPrecision = 7

type progressKey struct {
	tripID   string
	driverID string
}

// DriverPosition is the displayed location of a driver's vehicle.
type DriverPosition struct {
	DriverID      string       `json:"driver_id"`
	TripID        string       `json:"trip_id"`
	Status        model.Status `json:"status"`
	Progress      float64      `json:"progress"`
	Lat           float64      `json:"lat"`
	Lng           float64      `json:"lng"`
	NextStationID string       `json:"next_station,omitempty"`
	Geohash       string       `json:"geohash"`
}

// Interpolator animates vehicles along their synthesized paths. It owns the
// per-trip progress state; it is not safe for concurrent use and is meant to
// be driven by a single owner.
type Interpolator struct {
	strategy RouteStrategy
	step     float64
	progress map[progressKey]float64
}

func NewInterpolator(strategy RouteStrategy, step float64) *Interpolator {
	if strategy == nil {
		strategy = StationOrder{}
	}
	if step <= 0 {
		step = DefaultStep
	}
	return &Interpolator{
		strategy: strategy,
		step:     step,
		progress: make(map[progressKey]float64),
	}
}

// Observe places drivers for the current trip set without advancing any
// progress. Scheduled trips are reset to the origin.
func (ip *Interpolator) Observe(trips []model.Trip, stations []model.Station) []DriverPosition {
	return ip.update(trips, stations, false)
}

// Tick advances every active trip by one step, capped at 1, and returns the
// resulting positions.
func (ip *Interpolator) Tick(trips []model.Trip, stations []model.Station) []DriverPosition {
	return ip.update(trips, stations, true)
}

// Progress reports the stored progress for a trip/driver pair.
func (ip *Interpolator) Progress(tripID, driverID string) (float64, bool) {
	p, ok := ip.progress[progressKey{tripID, driverID}]
	return p, ok
}

func (ip *Interpolator) update(trips []model.Trip, stations []model.Station, advance bool) []DriverPosition {
	ip.prune(trips)

	positions := make([]DriverPosition, 0, len(trips))
	placed := make(map[string]bool, len(trips))
	for _, t := range trips {
		if !t.Status.Live() {
			continue
		}
		path, ok := ip.strategy.Resolve(t, stations)
		if !ok {
			continue
		}

		key := progressKey{t.TripID, t.DriverID}
		p := ip.progress[key]
		switch t.Status {
		case model.StatusScheduled:
			p = 0
		case model.StatusActive:
			if advance {
				p = math.Min(1, p+ip.step)
			}
		}
		ip.progress[key] = p

		// The same driver on two live trips keeps the first one in list order.
		if placed[t.DriverID] {
			continue
		}
		placed[t.DriverID] = true

		at := path.Origin.Position().Add(path.Delta, p)
		pos := DriverPosition{
			DriverID: t.DriverID,
			TripID:   t.TripID,
			Status:   t.Status,
			Progress: p,
			Lat:      at.Lat,
			Lng:      at.Lng,
			Geohash:  geohash.EncodeWithPrecision(at.Lat, at.Lng, geohashPrecision),
		}
		if next, ok := path.Next(); ok {
			pos.NextStationID = next.StationID
		}
		positions = append(positions, pos)
	}
	return positions
}

// prune drops progress for trips no longer present in the held set. Trips that
// are still listed keep their value, which freezes completed trips in place.
func (ip *Interpolator) prune(trips []model.Trip) {
	present := make(map[string]struct{}, len(trips))
	for _, t := range trips {
		present[t.TripID] = struct{}{}
	}
	for k := range ip.progress {
		if _, ok := present[k.tripID]; !ok {
			delete(ip.progress, k)
		}
	}
}
