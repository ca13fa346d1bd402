package view

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"tripviz/internal/fetch"
	"tripviz/internal/model"
	"tripviz/internal/notify"
	"tripviz/internal/schedule"
	"tripviz/internal/viz"
)

// Frame is an immutable snapshot of everything the map draws.
type Frame struct {
	Stations      []model.Station       `json:"stations"`
	Trips         []model.Trip          `json:"trips"`
	Routes        []viz.Route           `json:"routes"`
	Drivers       []viz.DriverPosition  `json:"drivers"`
	Notifications []notify.Notification `json:"notifications"`
	Center        *model.LatLng         `json:"center,omitempty"`
	AutoRefresh   bool                  `json:"auto_refresh"`
	StationsAt    time.Time             `json:"stations_updated_at,omitzero"`
	TripsAt       time.Time             `json:"trips_updated_at,omitzero"`
	UpdatedAt     time.Time             `json:"updated_at"`
}

// Publisher receives positions and notifications as they are produced.
type Publisher interface {
	PublishPositions(at time.Time, positions []viz.DriverPosition)
	PublishNotification(n notify.Notification)
}

type Metrics interface {
	TickObserve(d time.Duration)
	SetVisible(drivers, routes, notifications int)
	NotificationInc(kind string)
}

type Options struct {
	Poll          schedule.Trigger
	TickInterval  time.Duration
	SweepInterval time.Duration
	AutoRefresh   bool
}

// View owns the dashboard state. A single goroutine started by Start applies
// fetch results, interpolation ticks, notification sweeps and commands in
// turn, so none of the state below is shared.
type View struct {
	fetcher *fetch.Fetcher
	synth   *viz.Synthesizer
	interp  *viz.Interpolator
	notes   *notify.Engine
	pub     Publisher
	metrics Metrics
	opts    Options
	now     func() time.Time

	stations    []model.Station
	trips       []model.Trip
	routes      []viz.Route
	drivers     []viz.DriverPosition
	center      *model.LatLng
	autoRefresh bool
	stationsAt  time.Time
	tripsAt     time.Time

	frame atomic.Pointer[Frame]

	cmds    chan func()
	done    chan struct{}
	results chan fetch.Result
	loopCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(fetcher *fetch.Fetcher, synth *viz.Synthesizer, interp *viz.Interpolator, notes *notify.Engine, pub Publisher, metrics Metrics, opts Options) *View {
	v := &View{
		fetcher:     fetcher,
		synth:       synth,
		interp:      interp,
		notes:       notes,
		pub:         pub,
		metrics:     metrics,
		opts:        opts,
		now:         time.Now,
		autoRefresh: opts.AutoRefresh,
		cmds:        make(chan func()),
		results:     make(chan fetch.Result),
	}
	notes.OnNotify(v.onNotification)
	v.publishFrame()
	return v
}

// Frame returns the latest published snapshot. Safe for concurrent use.
func (v *View) Frame() *Frame { return v.frame.Load() }

// Start runs the poll, interpolation and sweep loops until ctx is cancelled
// or Stop is called. A first poll is issued immediately.
func (v *View) Start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	v.loopCtx = ctx
	v.cancel = cancel
	v.done = make(chan struct{})

	poll := v.opts.Poll.Start(ctx)
	tick := schedule.Every(v.opts.TickInterval).Start(ctx)
	sweep := schedule.Every(v.opts.SweepInterval).Start(ctx)

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer close(v.done)
		v.fetcher.Poll(ctx, v.results)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-poll:
				if !ok {
					return
				}
				if v.autoRefresh {
					v.fetcher.Poll(ctx, v.results)
				}
			case _, ok := <-tick:
				if !ok {
					return
				}
				v.onTick()
			case now, ok := <-sweep:
				if !ok {
					return
				}
				v.onSweep(now)
			case r := <-v.results:
				v.apply(r)
			case cmd := <-v.cmds:
				cmd()
			}
		}
	}()
}

// Stop cancels every loop and waits for them and any in-flight fetches.
func (v *View) Stop() {
	if v.cancel != nil {
		v.cancel()
	}
	v.wg.Wait()
	v.fetcher.Wait()
}

// Dismiss removes a visible notification. It reports false when the
// notification is unknown or the view is not running.
func (v *View) Dismiss(id int64) bool {
	var ok bool
	ran := v.do(func() {
		ok = v.notes.Dismiss(id)
		if ok {
			v.publishFrame()
		}
	})
	return ran && ok
}

// SetAutoRefresh pauses or resumes scheduled polling. Interpolation and
// sweeping keep running.
func (v *View) SetAutoRefresh(enabled bool) bool {
	return v.do(func() {
		v.autoRefresh = enabled
		v.publishFrame()
		log.Printf("auto refresh set to %t", enabled)
	})
}

// Refresh issues an immediate poll regardless of the auto-refresh setting.
func (v *View) Refresh() bool {
	return v.do(func() { v.fetcher.Poll(v.loopCtx, v.results) })
}

// do runs fn on the loop goroutine and waits for it.
func (v *View) do(fn func()) bool {
	if v.done == nil {
		return false
	}
	finished := make(chan struct{})
	select {
	case v.cmds <- func() { fn(); close(finished) }:
	case <-v.done:
		return false
	}
	<-finished
	return true
}

func (v *View) apply(r fetch.Result) {
	if r.Err != nil {
		// Keep showing the last good data; the next poll retries.
		return
	}
	switch r.Kind {
	case fetch.KindStations:
		v.stations = r.Stations
		v.stationsAt = r.At
		if v.center == nil && len(r.Stations) > 0 {
			c := r.Stations[0].Position()
			v.center = &c
		}
	case fetch.KindTrips:
		v.trips = r.Trips
		v.tripsAt = r.At
		v.notes.Observe(v.trips)
	}
	v.routes = v.synth.Routes(v.trips, v.stations)
	v.drivers = v.interp.Observe(v.trips, v.stations)
	v.publishFrame()
}

func (v *View) onTick() {
	start := time.Now()
	v.drivers = v.interp.Tick(v.trips, v.stations)
	if v.pub != nil && len(v.drivers) > 0 {
		v.pub.PublishPositions(v.now(), v.drivers)
	}
	v.publishFrame()
	if v.metrics != nil {
		v.metrics.TickObserve(time.Since(start))
	}
}

func (v *View) onSweep(now time.Time) {
	if v.notes.Sweep(now) > 0 {
		v.publishFrame()
	}
}

// onNotification runs on the loop goroutine from within notes.Observe.
func (v *View) onNotification(n notify.Notification) {
	if n.Type == notify.TypeMatch {
		if idx := model.FindStation(v.stations, n.Trip.OriginStation); idx >= 0 {
			c := v.stations[idx].Position()
			v.center = &c
		}
	}
	if v.metrics != nil {
		v.metrics.NotificationInc(string(n.Type))
	}
	if v.pub != nil {
		v.pub.PublishNotification(n)
	}
	log.Printf("notification %d (%s): %s", n.ID, n.Type, n.Message)
}

func (v *View) publishFrame() {
	f := &Frame{
		Stations:      v.stations,
		Trips:         v.trips,
		Routes:        v.routes,
		Drivers:       v.drivers,
		Notifications: v.notes.Visible(),
		AutoRefresh:   v.autoRefresh,
		StationsAt:    v.stationsAt,
		TripsAt:       v.tripsAt,
		UpdatedAt:     v.now(),
	}
	if v.center != nil {
		c := *v.center
		f.Center = &c
	}
	if f.Stations == nil {
		f.Stations = []model.Station{}
	}
	if f.Trips == nil {
		f.Trips = []model.Trip{}
	}
	if f.Routes == nil {
		f.Routes = []viz.Route{}
	}
	if f.Drivers == nil {
		f.Drivers = []viz.DriverPosition{}
	}
	if f.Notifications == nil {
		f.Notifications = []notify.Notification{}
	}
	v.frame.Store(f)
	if v.metrics != nil {
		v.metrics.SetVisible(len(f.Drivers), len(f.Routes), len(f.Notifications))
	}
}
