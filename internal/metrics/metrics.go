package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	VisibleDrivers       prometheus.Gauge
	VisibleRoutes        prometheus.Gauge
	VisibleNotifications prometheus.Gauge

	Fetches       *prometheus.CounterVec // kind label: stations|trips
	FetchErrors   *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	Notifications *prometheus.CounterVec // type label: match|completed
	Actions       *prometheus.CounterVec // action, result labels

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	TickDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	PollInterval prometheus.Gauge // seconds
	TickInterval prometheus.Gauge // seconds
}

func NewCollector(pollInterval, tickInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		VisibleDrivers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripviz_visible_drivers",
			Help: "Number of driver markers in the current frame.",
		}),
		VisibleRoutes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripviz_visible_routes",
			Help: "Number of trip routes in the current frame.",
		}),
		VisibleNotifications: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripviz_visible_notifications",
			Help: "Number of notifications currently shown.",
		}),
		Fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripviz_fetches_total",
			Help: "Backend fetches issued.",
		}, []string{"kind"}),
		FetchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripviz_fetch_errors_total",
			Help: "Backend fetches that failed.",
		}, []string{"kind"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tripviz_fetch_duration_seconds",
			Help:    "Duration of backend fetches.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"kind"}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripviz_notifications_total",
			Help: "Notifications created.",
		}, []string{"type"}),
		Actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tripviz_actions_total",
			Help: "User actions forwarded to the backend.",
		}, []string{"action", "result"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripviz_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripviz_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripviz_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripviz_tick_duration_seconds",
			Help:    "Duration of interpolation tick computations.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripviz_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		PollInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripviz_poll_interval_seconds",
			Help: "Backend poll interval in seconds.",
		}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tripviz_tick_interval_seconds",
			Help: "Interpolation tick interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.VisibleDrivers, c.VisibleRoutes, c.VisibleNotifications,
		c.Fetches, c.FetchErrors, c.FetchDuration,
		c.Notifications, c.Actions,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.TickDuration, c.PublishDuration,
		c.PollInterval, c.TickInterval,
	)

	c.PollInterval.Set(pollInterval.Seconds())
	c.TickInterval.Set(tickInterval.Seconds())

	return c
}

func (c *Collector) FetchObserve(kind string, d time.Duration, err error) {
	c.Fetches.WithLabelValues(kind).Inc()
	c.FetchDuration.WithLabelValues(kind).Observe(d.Seconds())
	if err != nil {
		c.FetchErrors.WithLabelValues(kind).Inc()
	}
}

func (c *Collector) TickObserve(d time.Duration) { c.TickDuration.Observe(d.Seconds()) }

func (c *Collector) SetVisible(drivers, routes, notifications int) {
	c.VisibleDrivers.Set(float64(drivers))
	c.VisibleRoutes.Set(float64(routes))
	c.VisibleNotifications.Set(float64(notifications))
}

func (c *Collector) NotificationInc(kind string) { c.Notifications.WithLabelValues(kind).Inc() }

func (c *Collector) ActionObserve(action string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.Actions.WithLabelValues(action, result).Inc()
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
