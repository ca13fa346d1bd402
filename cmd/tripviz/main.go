package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"tripviz/internal/config"
	"tripviz/internal/db"
	"tripviz/internal/fetch"
	"tripviz/internal/metrics"
	"tripviz/internal/notify"
	"tripviz/internal/publisher"
	"tripviz/internal/render"
	"tripviz/internal/schedule"
	"tripviz/internal/source"
	"tripviz/internal/view"
	"tripviz/internal/viz"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Actions always go to the backend; reads may come from Postgres instead.
	client, err := source.NewClient(cfg.BackendURL, cfg.RequestTimeout)
	if err != nil {
		log.Fatalf("backend client error: %v", err)
	}
	var src source.Source = client
	if cfg.DataSource == config.SourcePostgres {
		dsn := cfg.DatabaseURL
		if cfg.DatabaseName != "" {
			dsn, err = db.WithDBName(dsn, cfg.DatabaseName)
			if err != nil {
				log.Fatalf("compose DSN: %v", err)
			}
		}
		sqlDB, err := db.Open(dsn)
		if err != nil {
			log.Fatalf("db open error: %v", err)
		}
		defer sqlDB.Close()
		if err := db.Ping(ctx, sqlDB); err != nil {
			log.Fatalf("db ping error: %v", err)
		}
		src = db.NewSource(sqlDB, cfg.TripLimit)
		log.Printf("reading stations and trips from postgres")
	} else {
		log.Printf("reading stations and trips from %s", cfg.BackendURL)
	}

	// Metrics setup
	var (
		mcol         *metrics.Collector
		fetchMetrics fetch.FetchMetrics
		viewMetrics  view.Metrics
		actMetrics   render.ActionMetrics
	)
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.PollInterval, cfg.TickInterval)
		fetchMetrics, viewMetrics, actMetrics = mcol, mcol, mcol
		srv := mcol.Serve(cfg.MetricsAddr)
		defer shutdown(srv)
	}

	// Optional NATS stream of positions and notifications
	var pub view.Publisher
	poll := schedule.Trigger(schedule.Every(cfg.PollInterval))
	if cfg.NATSURL != "" {
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer np.Close()
		pub = np
		if cfg.RefreshSubject != "" {
			poll = schedule.Merge(poll, schedule.NATSTrigger{Conn: np.Conn(), Subject: cfg.RefreshSubject})
			log.Printf("refreshing on %s", cfg.RefreshSubject)
		}
	}

	v := view.New(
		fetch.NewFetcher(src, cfg.RequestTimeout, cfg.CompletedWindow, fetchMetrics),
		viz.NewSynthesizer(viz.StationOrder{}, 0),
		viz.NewInterpolator(viz.StationOrder{}, viz.DefaultStep),
		notify.NewEngine(cfg.NotificationTTL, notify.DefaultCapacity, time.Now),
		pub,
		viewMetrics,
		view.Options{
			Poll:          poll,
			TickInterval:  cfg.TickInterval,
			SweepInterval: cfg.SweepInterval,
			AutoRefresh:   cfg.AutoRefresh,
		},
	)
	v.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           render.NewServer(v, client, cfg.CORSOrigins, actMetrics).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("http server error: %v", err)
			cancel()
		}
	}()
	log.Printf("http listening on %s", cfg.HTTPAddr)

	// Block until context cancelled
	<-ctx.Done()
	shutdown(srv)
	v.Stop()
	log.Println("shutdown complete")
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
