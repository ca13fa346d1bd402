package fetch

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"tripviz/internal/model"
	"tripviz/internal/source"
)

type Kind string

const (
	KindStations Kind = "stations"
	KindTrips    Kind = "trips"
)

// DefaultCompletedWindow is how long a completed trip stays on display.
const DefaultCompletedWindow = time.Hour

// Result is the outcome of one fetch. On error the lists are nil and the
// consumer is expected to keep what it already has.
type Result struct {
	Kind     Kind
	Stations []model.Station
	Trips    []model.Trip
	Err      error
	At       time.Time
}

type FetchMetrics interface {
	FetchObserve(kind string, d time.Duration, err error)
}

// Fetcher issues the station and trip fetches of one poll independently of
// each other.
type Fetcher struct {
	src     source.Source
	timeout time.Duration
	window  time.Duration
	metrics FetchMetrics
	now     func() time.Time

	wg sync.WaitGroup
}

func NewFetcher(src source.Source, timeout, completedWindow time.Duration, metrics FetchMetrics) *Fetcher {
	if completedWindow <= 0 {
		completedWindow = DefaultCompletedWindow
	}
	return &Fetcher{
		src:     src,
		timeout: timeout,
		window:  completedWindow,
		metrics: metrics,
		now:     time.Now,
	}
}

// Poll starts both fetches and returns immediately. Each result is sent on
// out unless ctx is done first, in which case it is dropped.
func (f *Fetcher) Poll(ctx context.Context, out chan<- Result) {
	for _, k := range []Kind{KindStations, KindTrips} {
		k := k
		f.wg.Add(1)
		go func() {
			defer f.wg.Done()
			r := f.Fetch(ctx, k)
			select {
			case out <- r:
			case <-ctx.Done():
			}
		}()
	}
}

// Wait blocks until every fetch started by Poll has finished.
func (f *Fetcher) Wait() { f.wg.Wait() }

// Fetch runs a single fetch synchronously. Trip lists come back filtered and
// sorted for display.
func (f *Fetcher) Fetch(ctx context.Context, k Kind) Result {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	start := time.Now()
	r := Result{Kind: k}
	switch k {
	case KindStations:
		r.Stations, r.Err = f.src.Stations(ctx)
	case KindTrips:
		var trips []model.Trip
		trips, r.Err = f.src.Trips(ctx)
		if r.Err == nil {
			r.Trips = FilterTrips(trips, f.now(), f.window)
		}
	}
	r.At = f.now()
	if f.metrics != nil {
		f.metrics.FetchObserve(string(k), time.Since(start), r.Err)
	}
	// Errors after teardown are expected and not worth logging.
	if r.Err != nil && !errors.Is(ctx.Err(), context.Canceled) {
		log.Printf("fetch %s error: %v", k, r.Err)
	}
	return r
}

// FilterTrips keeps trips that are not completed, plus completed trips whose
// end_time lies within window of now, ordered newest start_time first. Trips
// without a start_time sort last.
func FilterTrips(trips []model.Trip, now time.Time, window time.Duration) []model.Trip {
	cutoff := now.Add(-window)
	out := make([]model.Trip, 0, len(trips))
	for _, t := range trips {
		if t.Status != model.StatusCompleted {
			out = append(out, t)
			continue
		}
		if ended, ok := t.Ended(); ok && ended.After(cutoff) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return startMillis(out[i]) > startMillis(out[j])
	})
	return out
}

func startMillis(t model.Trip) int64 {
	if t.StartTime == nil {
		return 0
	}
	return *t.StartTime
}
