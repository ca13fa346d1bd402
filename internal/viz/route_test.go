package viz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tripviz/internal/model"
)

func stationsN(n int) []model.Station {
	out := make([]model.Station, n)
	for i := range out {
		out[i] = model.Station{
			StationID: "S" + string(rune('1'+i)),
			Name:      "Station " + string(rune('1'+i)),
			Lat:       float64(i + 1),
			Lng:       float64(i + 1),
		}
	}
	return out
}

func TestStationOrderMultiStation(t *testing.T) {
	stations := stationsN(2)
	trip := model.Trip{TripID: "T1", DriverID: "D1", OriginStation: "S1", Destination: "Downtown", Status: model.StatusScheduled}

	path, ok := StationOrder{}.Resolve(trip, stations)
	require.True(t, ok)
	assert.Equal(t, []model.LatLng{{Lat: 1, Lng: 1}, {Lat: 2, Lng: 2}}, path.Points)

	next, ok := path.Next()
	require.True(t, ok)
	assert.Equal(t, "S2", next.StationID)

	// Multi-station takes precedence over the destination table.
	trip.Destination = "Nowhere in particular"
	other, ok := StationOrder{}.Resolve(trip, stations)
	require.True(t, ok)
	assert.Equal(t, path.Points, other.Points)
}

func TestStationOrderCapsFollowingStations(t *testing.T) {
	stations := stationsN(6)
	trip := model.Trip{TripID: "T1", OriginStation: "S2", Status: model.StatusActive}

	path, ok := StationOrder{}.Resolve(trip, stations)
	require.True(t, ok)
	require.Len(t, path.Points, 4)
	assert.Equal(t, model.LatLng{Lat: 2, Lng: 2}, path.Points[0])
	assert.Equal(t, model.LatLng{Lat: 5, Lng: 5}, path.Points[3])
	assert.Equal(t, model.LatLng{Lat: 1, Lng: 1}, path.Delta)
}

func TestStationOrderSyntheticRoute(t *testing.T) {
	tests := []struct {
		destination string
		offset      model.LatLng
	}{
		{"Downtown", model.LatLng{Lat: 0.008, Lng: 0.008}},
		{"Airport", model.LatLng{Lat: -0.01, Lng: 0.015}},
		{"Mall", model.LatLng{Lat: 0.006, Lng: -0.006}},
		{"Somewhere", model.LatLng{Lat: 0.005, Lng: 0.005}},
		{"", model.LatLng{Lat: 0.005, Lng: 0.005}},
	}
	stations := stationsN(3)
	for _, tc := range tests {
		t.Run(tc.destination, func(t *testing.T) {
			trip := model.Trip{TripID: "T1", OriginStation: "S3", Destination: tc.destination, Status: model.StatusActive}
			path, ok := StationOrder{}.Resolve(trip, stations)
			require.True(t, ok)
			require.Len(t, path.Points, 6)
			assert.Empty(t, path.Following)
			assert.Equal(t, tc.offset, path.Delta)
			for i, f := range []float64{0, 0.2, 0.4, 0.6, 0.8, 1.0} {
				assert.InDelta(t, 3+tc.offset.Lat*f, path.Points[i].Lat, 1e-12)
				assert.InDelta(t, 3+tc.offset.Lng*f, path.Points[i].Lng, 1e-12)
			}
		})
	}
}

func TestStationOrderUnknownOrigin(t *testing.T) {
	_, ok := StationOrder{}.Resolve(model.Trip{TripID: "T1", OriginStation: "S9"}, stationsN(2))
	assert.False(t, ok)

	_, ok = StationOrder{}.Resolve(model.Trip{TripID: "T1", OriginStation: "S1"}, nil)
	assert.False(t, ok)
}

func TestSynthesizerRoutes(t *testing.T) {
	stations := stationsN(3)
	trips := []model.Trip{
		{TripID: "T1", DriverID: "D1", OriginStation: "S1", Status: model.StatusActive},
		{TripID: "T2", DriverID: "D2", OriginStation: "S9", Status: model.StatusActive},
		{TripID: "T3", DriverID: "D3", OriginStation: "S2", Status: model.StatusCompleted},
		{TripID: "T4", DriverID: "D4", OriginStation: "S3", Destination: "Mall", Status: model.StatusScheduled},
	}
	s := NewSynthesizer(nil, 0)

	routes := s.Routes(trips, stations)
	require.Len(t, routes, 2)
	assert.Equal(t, "T1", routes[0].TripID)
	assert.Equal(t, []string{"S2", "S3"}, routes[0].StationIDs)
	assert.False(t, routes[0].Synthetic)
	assert.Equal(t, "T4", routes[1].TripID)
	assert.True(t, routes[1].Synthetic)

	again := s.Routes(trips, stations)
	assert.Equal(t, routes, again)
}

func TestSynthesizerSkipsCompletedEvenWhenCached(t *testing.T) {
	stations := stationsN(2)
	trip := model.Trip{TripID: "T1", DriverID: "D1", OriginStation: "S1", Status: model.StatusActive}
	s := NewSynthesizer(nil, 8)

	require.Len(t, s.Routes([]model.Trip{trip}, stations), 1)

	trip.Status = model.StatusCompleted
	assert.Empty(t, s.Routes([]model.Trip{trip}, stations))
}

func TestSynthesizerRecomputesWhenStationsChange(t *testing.T) {
	stations := stationsN(2)
	trip := model.Trip{TripID: "T1", DriverID: "D1", OriginStation: "S1", Status: model.StatusActive}
	s := NewSynthesizer(nil, 8)

	before := s.Routes([]model.Trip{trip}, stations)
	require.Len(t, before, 1)

	moved := append([]model.Station(nil), stations...)
	moved[1].Lat = 7
	after := s.Routes([]model.Trip{trip}, moved)
	require.Len(t, after, 1)
	assert.Equal(t, 7.0, after[0].Points[1].Lat)
	assert.NotEqual(t, before[0].Points, after[0].Points)
}

type fixedStrategy struct{ path Path }

func (f fixedStrategy) Resolve(model.Trip, []model.Station) (Path, bool) { return f.path, true }

func TestSynthesizerDropsShortRoutes(t *testing.T) {
	s := NewSynthesizer(fixedStrategy{Path{Points: []model.LatLng{{Lat: 1, Lng: 1}}}}, 8)
	trip := model.Trip{TripID: "T1", OriginStation: "S1", Status: model.StatusActive}
	assert.Empty(t, s.Routes([]model.Trip{trip}, stationsN(1)))
}
