package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"github.com/acim-association/members-dashboard/internal/api/metrics"
	"github.com/acim-association/members-dashboard/internal/core/ports"
)

const (
	defaultWorkers = 8
	channelBuffer  = 256
)

// Dispatcher is the authentication-state stream. Events are routed to a
// fixed set of workers using consistent hashing on the session id, so the
// events of one session reach listeners in publish order.
type Dispatcher struct {
	workers []chan ports.AuthEvent
	log     zerolog.Logger

	done     chan struct{}
	stopOnce sync.Once

	mu        sync.RWMutex
	listeners map[uint64]ports.AuthStateListener
	nextID    uint64
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan ports.AuthEvent, numWorkers),
		log:       log.With().Str("component", "auth_stream").Logger(),
		done:      make(chan struct{}),
		listeners: make(map[uint64]ports.AuthStateListener),
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.AuthEvent, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// events published afterwards are dropped.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
	go func() {
		<-ctx.Done()
		d.stopOnce.Do(func() { close(d.done) })
	}()
}

// Publish sends an event to the worker responsible for its session.
// The call is non-blocking up to channelBuffer capacity.
func (d *Dispatcher) Publish(event ports.AuthEvent) {
	idx := d.shardIndex(event.SessionID)
	select {
	case <-d.done:
		d.log.Warn().Str("session_id", event.SessionID).Msg("auth stream stopped, dropping event")
	case d.workers[idx] <- event:
		metrics.AuthStreamQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	}
}

// Subscribe registers listener for every event published from now on.
func (d *Dispatcher) Subscribe(listener ports.AuthStateListener) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = listener
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.listeners, id)
			d.mu.Unlock()
		})
	}
}

// shardIndex maps a session id deterministically to a worker index.
func (d *Dispatcher) shardIndex(sessionID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sessionID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.AuthEvent) {
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-ch:
			if !ok {
				return
			}
			metrics.AuthStreamQueueDepth.WithLabelValues(label).Set(float64(len(ch)))
			d.deliver(id, event)
		}
	}
}

func (d *Dispatcher) deliver(worker int, event ports.AuthEvent) {
	d.mu.RLock()
	listeners := make([]ports.AuthStateListener, 0, len(d.listeners))
	for _, l := range d.listeners {
		listeners = append(listeners, l)
	}
	d.mu.RUnlock()

	for _, l := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					d.log.Error().
						Interface("panic", r).
						Str("session_id", event.SessionID).
						Int("worker_id", worker).
						Msg("auth listener panicked")
				}
			}()
			l(event)
		}()
	}
}
