package schedule

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// Trigger produces the moments at which periodic work should run. The
// returned channel is closed once ctx is done.
type Trigger interface {
	Start(ctx context.Context) <-chan time.Time
}

// Every fires on a fixed interval.
type Every time.Duration

func (e Every) Start(ctx context.Context) <-chan time.Time {
	out := make(chan time.Time)
	go func() {
		defer close(out)
		if e <= 0 {
			<-ctx.Done()
			return
		}
		ticker := time.NewTicker(time.Duration(e))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				select {
				case out <- now:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// NATSTrigger fires whenever a message arrives on Subject. Bursts collapse
// into a single pending fire.
type NATSTrigger struct {
	Conn    *nats.Conn
	Subject string
}

func (n NATSTrigger) Start(ctx context.Context) <-chan time.Time {
	out := make(chan time.Time)
	// The handler may still run after Unsubscribe, so it only ever touches
	// pending, which is never closed.
	pending := make(chan time.Time, 1)
	sub, err := n.Conn.Subscribe(n.Subject, func(*nats.Msg) {
		select {
		case pending <- time.Now():
		default:
		}
	})
	if err != nil {
		log.Printf("nats subscribe %s error: %v", n.Subject, err)
	}
	go func() {
		defer close(out)
		defer func() {
			if sub != nil {
				_ = sub.Unsubscribe()
			}
		}()
		for {
			select {
			case <-ctx.Done():
				return
			case at := <-pending:
				select {
				case out <- at:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Merge fires whenever any of the given triggers fires.
func Merge(triggers ...Trigger) Trigger { return merged(triggers) }

type merged []Trigger

func (m merged) Start(ctx context.Context) <-chan time.Time {
	out := make(chan time.Time)
	var wg sync.WaitGroup
	for _, t := range m {
		in := t.Start(ctx)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for at := range in {
				select {
				case out <- at:
				case <-ctx.Done():
				}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
