package render

import (
	"log"
	"net/http"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/proto"

	"tripviz/internal/model"
	"tripviz/internal/view"
)

// VehicleFeed renders the frame's driver positions as a full-dataset
// GTFS-Realtime VehiclePositions feed.
func VehicleFeed(f *view.Frame) *gtfs.FeedMessage {
	ts := ptr(uint64(f.UpdatedAt.Unix()))
	g := &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: ptr("2.0"),
			Incrementality:      ptr(gtfs.FeedHeader_FULL_DATASET),
			Timestamp:           ts,
		},
	}

	g.Entity = make([]*gtfs.FeedEntity, 0, len(f.Drivers))
	for _, d := range f.Drivers {
		v := &gtfs.VehiclePosition{
			Trip:    &gtfs.TripDescriptor{TripId: ptr(d.TripID)},
			Vehicle: &gtfs.VehicleDescriptor{Id: ptr(d.DriverID)},
			Position: &gtfs.Position{
				Latitude:  ptr(float32(d.Lat)),
				Longitude: ptr(float32(d.Lng)),
			},
			Timestamp: ts,
		}
		if d.NextStationID != "" {
			v.StopId = ptr(d.NextStationID)
		}
		if d.Status == model.StatusActive {
			v.CurrentStatus = ptr(gtfs.VehiclePosition_IN_TRANSIT_TO)
		} else {
			v.CurrentStatus = ptr(gtfs.VehiclePosition_STOPPED_AT)
		}
		g.Entity = append(g.Entity, &gtfs.FeedEntity{Id: ptr(d.DriverID), Vehicle: v})
	}
	return g
}

func (s *Server) vehiclePositions(w http.ResponseWriter, r *http.Request) {
	feed := VehicleFeed(s.view.Frame())

	var data []byte
	var err error
	if r.URL.Query().Get("format") == "text" {
		data, err = prototext.Marshal(feed)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	} else {
		data, err = proto.Marshal(feed)
		w.Header().Set("Content-Type", "application/x-protobuf")
	}
	if err != nil {
		log.Printf("vehicle feed marshal: %v", err)
		writeError(w, http.StatusInternalServerError, "feed encoding failed")
		return
	}
	_, _ = w.Write(data)
}

func ptr[T any](v T) *T { return &v }
