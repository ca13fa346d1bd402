package viz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripviz/internal/model"
)

func TestInterpolatorActiveProgress(t *testing.T) {
	stations := stationsN(2)
	trips := []model.Trip{{TripID: "T1", DriverID: "D1", OriginStation: "S1", Status: model.StatusActive}}
	ip := NewInterpolator(nil, 0)

	last := 0.0
	for n := 1; n <= 25; n++ {
		pos := ip.Tick(trips, stations)
		require.Len(t, pos, 1)
		want := min(1.0, 0.05*float64(n))
		assert.InDelta(t, want, pos[0].Progress, 1e-9, "tick %d", n)
		assert.GreaterOrEqual(t, pos[0].Progress, last)
		assert.LessOrEqual(t, pos[0].Progress, 1.0)
		last = pos[0].Progress
	}
	assert.Equal(t, 1.0, last)
}

func TestInterpolatorLifecycle(t *testing.T) {
	stations := stationsN(2)
	trip := model.Trip{TripID: "T1", DriverID: "D1", OriginStation: "S1", Status: model.StatusScheduled}
	ip := NewInterpolator(nil, 0)

	pos := ip.Tick([]model.Trip{trip}, stations)
	require.Len(t, pos, 1)
	assert.Equal(t, 0.0, pos[0].Progress)
	assert.Equal(t, 1.0, pos[0].Lat)

	trip.Status = model.StatusActive
	for i := 0; i < 4; i++ {
		ip.Tick([]model.Trip{trip}, stations)
	}
	p, ok := ip.Progress("T1", "D1")
	require.True(t, ok)
	assert.InDelta(t, 0.2, p, 1e-9)

	trip.Status = model.StatusCompleted
	for i := 0; i < 3; i++ {
		assert.Empty(t, ip.Tick([]model.Trip{trip}, stations))
	}
	p, ok = ip.Progress("T1", "D1")
	require.True(t, ok)
	assert.InDelta(t, 0.2, p, 1e-9)

	// Seen as scheduled again: back to the origin.
	trip.Status = model.StatusScheduled
	ip.Observe([]model.Trip{trip}, stations)
	p, _ = ip.Progress("T1", "D1")
	assert.Equal(t, 0.0, p)
}

func TestInterpolatorObserveDoesNotAdvance(t *testing.T) {
	stations := stationsN(2)
	trips := []model.Trip{{TripID: "T1", DriverID: "D1", OriginStation: "S1", Status: model.StatusActive}}
	ip := NewInterpolator(nil, 0)

	ip.Tick(trips, stations)
	for i := 0; i < 5; i++ {
		pos := ip.Observe(trips, stations)
		require.Len(t, pos, 1)
		assert.InDelta(t, 0.05, pos[0].Progress, 1e-9)
	}
}

func TestInterpolatorSyntheticPosition(t *testing.T) {
	stations := []model.Station{{StationID: "S1", Lat: 12.9, Lng: 77.6}}
	trip := model.Trip{TripID: "T1", DriverID: "D1", OriginStation: "S1", Destination: "Airport", Status: model.StatusActive}
	ip := NewInterpolator(nil, 0)

	var pos []DriverPosition
	for i := 0; i < 8; i++ {
		pos = ip.Tick([]model.Trip{trip}, stations)
	}
	require.Len(t, pos, 1)
	assert.InDelta(t, 0.4, pos[0].Progress, 1e-9)
	assert.InDelta(t, 12.9-0.01*0.4, pos[0].Lat, 1e-9)
	assert.InDelta(t, 77.6+0.015*0.4, pos[0].Lng, 1e-9)
	assert.Empty(t, pos[0].NextStationID)
	assert.Len(t, pos[0].Geohash, 7)
}

func TestInterpolatorNextStationPosition(t *testing.T) {
	stations := stationsN(3)
	trip := model.Trip{TripID: "T1", DriverID: "D1", OriginStation: "S2", Status: model.StatusActive}
	ip := NewInterpolator(nil, 0.25)

	ip.Tick([]model.Trip{trip}, stations)
	pos := ip.Tick([]model.Trip{trip}, stations)
	require.Len(t, pos, 1)
	assert.Equal(t, "S3", pos[0].NextStationID)
	assert.InDelta(t, 2.5, pos[0].Lat, 1e-9)
	assert.InDelta(t, 2.5, pos[0].Lng, 1e-9)
}

func TestInterpolatorOmitsUnresolvedOrigin(t *testing.T) {
	trips := []model.Trip{
		{TripID: "T1", DriverID: "D1", OriginStation: "missing", Status: model.StatusActive},
		{TripID: "T2", DriverID: "D2", OriginStation: "S1", Status: model.StatusActive},
	}
	ip := NewInterpolator(nil, 0)

	pos := ip.Tick(trips, stationsN(2))
	require.Len(t, pos, 1)
	assert.Equal(t, "D2", pos[0].DriverID)
	_, ok := ip.Progress("T1", "D1")
	assert.False(t, ok)
}

func TestInterpolatorSameDriverFirstTripWins(t *testing.T) {
	trips := []model.Trip{
		{TripID: "T2", DriverID: "D1", OriginStation: "S2", Status: model.StatusActive},
		{TripID: "T1", DriverID: "D1", OriginStation: "S1", Status: model.StatusScheduled},
	}
	ip := NewInterpolator(nil, 0)

	pos := ip.Tick(trips, stationsN(3))
	require.Len(t, pos, 1)
	assert.Equal(t, "T2", pos[0].TripID)

	// Both trips still track their own progress.
	_, ok := ip.Progress("T1", "D1")
	assert.True(t, ok)
}

func TestInterpolatorPrunesVanishedTrips(t *testing.T) {
	stations := stationsN(2)
	ip := NewInterpolator(nil, 0)
	ip.Tick([]model.Trip{{TripID: "T1", DriverID: "D1", OriginStation: "S1", Status: model.StatusActive}}, stations)

	ip.Tick(nil, stations)
	_, ok := ip.Progress("T1", "D1")
	assert.False(t, ok)
}
