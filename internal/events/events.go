// Package events delivers run progress to observers without blocking the run.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/StockGoat/internal/types"
)

// Event names.
const (
	ScrapingProgress     = "scraping_progress"
	DistributorCompleted = "distributor_completed"
	ScrapingError        = "scraping_error"
	ScrapingCompleted    = "scraping_completed"
)

// DistributorResult is the payload of DistributorCompleted.
type DistributorResult struct {
	Distributor     string `json:"distributor"`
	ProductsFound   int    `json:"products_found"`
	ProductsUpdated int    `json:"products_updated"`
	ProductsNew     int    `json:"products_new"`
}

// DistributorFailure is the payload of ScrapingError.
type DistributorFailure struct {
	Distributor string `json:"distributor"`
	Error       string `json:"error"`
}

// RunTotals is the payload of ScrapingCompleted.
type RunTotals struct {
	TotalProducts int `json:"total_products"`
	TotalUpdated  int `json:"total_updated"`
	TotalNew      int `json:"total_new"`
}

// Progress is the payload of ScrapingProgress.
type Progress = types.RunStatus

// Event is one emitted notification.
type Event struct {
	Name      string    `json:"event"`
	Payload   any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink accepts events. Emit must never block the caller.
type Sink interface {
	Emit(name string, payload any)
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Emit(string, any) {}

const defaultBuffer = 64

// Bus fans events out to observers. Each observer has its own buffered queue and
// goroutine; when a queue is full the event is dropped for that observer only.
type Bus struct {
	mu        sync.RWMutex
	observers map[int]*observer
	nextID    int
	buffer    int
	dropped   atomic.Int64
	closed    bool
	logger    *slog.Logger
}

type observer struct {
	name string
	ch   chan Event
	done chan struct{}
}

// NewBus creates an event bus. buffer <= 0 uses the default queue size.
func NewBus(buffer int, logger *slog.Logger) *Bus {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	return &Bus{
		observers: make(map[int]*observer),
		buffer:    buffer,
		logger:    logger.With("component", "event_bus"),
	}
}

// Subscribe registers fn to receive every event emitted after the call. The returned
// function unsubscribes and waits for fn to finish its queue.
func (b *Bus) Subscribe(name string, fn func(Event)) (unsubscribe func()) {
	o := &observer{
		name: name,
		ch:   make(chan Event, b.buffer),
		done: make(chan struct{}),
	}

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return func() {}
	}
	id := b.nextID
	b.nextID++
	b.observers[id] = o
	b.mu.Unlock()

	go func() {
		defer close(o.done)
		for ev := range o.ch {
			b.deliver(o, fn, ev)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			_, ok := b.observers[id]
			delete(b.observers, id)
			b.mu.Unlock()
			if ok {
				close(o.ch)
			}
			<-o.done
		})
	}
}

func (b *Bus) deliver(o *observer, fn func(Event), ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("observer panicked", "observer", o.name, "event", ev.Name, "panic", r)
		}
	}()
	fn(ev)
}

// Emit implements Sink.
func (b *Bus) Emit(name string, payload any) {
	ev := Event{Name: name, Payload: payload, Timestamp: time.Now()}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, o := range b.observers {
		select {
		case o.ch <- ev:
		default:
			b.dropped.Add(1)
			b.logger.Warn("observer queue full, event dropped", "observer", o.name, "event", name)
		}
	}
}

// Dropped returns how many deliveries were dropped because a queue was full.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close stops accepting events and waits for every observer to drain.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	observers := b.observers
	b.observers = make(map[int]*observer)
	b.mu.Unlock()

	for _, o := range observers {
		close(o.ch)
		<-o.done
	}
}
