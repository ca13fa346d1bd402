package publisher

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"tripviz/internal/notify"
	"tripviz/internal/viz"
)

type NATSPublisher struct {
	nc          *nats.Conn
	prefix      string
	logSubjects bool
	metrics     PublisherMetrics
}

type PublisherMetrics interface {
	NATSPublishedInc()
	NATSPublishErrInc()
	PublishObserve(d time.Duration)
	NATSSetConnected(connected bool)
}

func NewNATSPublisher(url, prefix string, logSubjects bool, m PublisherMetrics) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("tripviz"),
		nats.DisconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(true)
			}
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			if m != nil {
				m.NATSSetConnected(false)
			}
			log.Printf("nats closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	if m != nil {
		m.NATSSetConnected(true)
	}
	return &NATSPublisher{nc: nc, prefix: subjectToken(prefix), logSubjects: logSubjects, metrics: m}, nil
}

// Conn exposes the underlying connection for subscribers sharing it.
func (p *NATSPublisher) Conn() *nats.Conn { return p.nc }

func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		p.nc.Close()
	}
}

type PositionMessage struct {
	DriverID    string    `json:"driverId"`
	TripID      string    `json:"tripId"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	Progress    float64   `json:"progress"`
	NextStation string    `json:"nextStation,omitempty"`
	Geohash     string    `json:"geohash"`
}

type NotificationMessage struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	TripID    string    `json:"tripId"`
	DriverID  string    `json:"driverId"`
	Message   string    `json:"message"`
	Details   string    `json:"details"`
}

// PublishPositions sends one message per driver on <prefix>.drivers.<driver>.
func (p *NATSPublisher) PublishPositions(at time.Time, positions []viz.DriverPosition) {
	for _, pos := range positions {
		msg := PositionMessage{
			DriverID:    pos.DriverID,
			TripID:      pos.TripID,
			Status:      string(pos.Status),
			Timestamp:   at,
			Lat:         pos.Lat,
			Lon:         pos.Lng,
			Progress:    pos.Progress,
			NextStation: pos.NextStationID,
			Geohash:     pos.Geohash,
		}
		if err := p.publish(DriverSubject(p.prefix, pos.DriverID), msg); err != nil {
			log.Printf("publish error for driver %s: %v", pos.DriverID, err)
		}
	}
}

// PublishNotification sends n on <prefix>.notifications.
func (p *NATSPublisher) PublishNotification(n notify.Notification) {
	msg := NotificationMessage{
		ID:        n.ID,
		Type:      string(n.Type),
		Timestamp: n.Timestamp,
		TripID:    n.Trip.TripID,
		DriverID:  n.Trip.DriverID,
		Message:   n.Message,
		Details:   n.Details,
	}
	if err := p.publish(p.prefix+".notifications", msg); err != nil {
		log.Printf("publish error for notification %d: %v", n.ID, err)
	}
}

func (p *NATSPublisher) publish(subject string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if p.logSubjects {
		log.Printf("nats publish subject=%s", subject)
	}
	start := time.Now()
	err = p.nc.Publish(subject, b)
	if p.metrics != nil {
		p.metrics.PublishObserve(time.Since(start))
		if err != nil {
			p.metrics.NATSPublishErrInc()
		} else {
			p.metrics.NATSPublishedInc()
		}
	}
	return err
}

func DriverSubject(prefix, driverID string) string {
	return fmt.Sprintf("%s.drivers.%s", prefix, subjectToken(driverID))
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
