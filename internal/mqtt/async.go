package mqtt

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"kiln_controller/internal/logger"
	"kiln_controller/internal/models"
)

// DefaultQueueSize bounds the messages waiting for the broker.
const DefaultQueueSize = 64

// closeTimeout bounds how long Close waits for queued messages.
const closeTimeout = 5 * time.Second

// ErrQueueFull is returned when a message is dropped because the queue is full.
var ErrQueueFull = errors.New("mqtt: publish queue full")

// ErrQueueClosed is returned for publishes after Close.
var ErrQueueClosed = errors.New("mqtt: publish queue closed")

type queued struct {
	event  *models.KilnEvent
	status *models.RunSnapshot
	flush  chan struct{}
}

// AsyncPublisher hands messages to a single goroutine that owns the inner
// publisher. PublishEvent and PublishStatus never block.
type AsyncPublisher struct {
	inner Publisher
	log   *logger.Logger
	queue chan queued
	done  chan struct{}

	mu      sync.RWMutex // guards closed and sends on queue
	closed  bool
	dropped atomic.Int64
}

// NewAsync starts the drain goroutine. size < 1 takes DefaultQueueSize.
func NewAsync(inner Publisher, size int, log *logger.Logger) *AsyncPublisher {
	if size < 1 {
		size = DefaultQueueSize
	}
	if log == nil {
		log = logger.Nop()
	}
	a := &AsyncPublisher{
		inner: inner,
		log:   log,
		queue: make(chan queued, size),
		done:  make(chan struct{}),
	}
	go a.drain()
	return a
}

func (a *AsyncPublisher) drain() {
	defer close(a.done)
	for m := range a.queue {
		switch {
		case m.flush != nil:
			close(m.flush)
		case m.event != nil:
			if err := a.inner.PublishEvent(*m.event); err != nil {
				a.log.Warnw("mqtt_event_failed", "type", m.event.Type, "error", err)
			}
		case m.status != nil:
			if err := a.inner.PublishStatus(*m.status); err != nil {
				a.log.Warnw("mqtt_status_failed", "error", err)
			}
		}
	}
}

func (a *AsyncPublisher) offer(m queued) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrQueueClosed
	}
	select {
	case a.queue <- m:
		return nil
	default:
		a.dropped.Add(1)
		return ErrQueueFull
	}
}

func (a *AsyncPublisher) PublishEvent(ev models.KilnEvent) error {
	return a.offer(queued{event: &ev})
}

func (a *AsyncPublisher) PublishStatus(s models.RunSnapshot) error {
	return a.offer(queued{status: &s})
}

// Dropped is the number of messages rejected because the queue was full.
func (a *AsyncPublisher) Dropped() int { return int(a.dropped.Load()) }

// Flush blocks until everything queued before the call has been handed to
// the inner publisher.
func (a *AsyncPublisher) Flush() {
	ch := make(chan struct{})
	a.mu.RLock()
	if a.closed {
		a.mu.RUnlock()
		<-a.done
		return
	}
	a.queue <- queued{flush: ch}
	a.mu.RUnlock()
	<-ch
}

// Close stops accepting messages, waits up to closeTimeout for the queue to
// drain and closes the inner publisher. Calling it again is a no-op.
func (a *AsyncPublisher) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.queue)
	a.mu.Unlock()

	select {
	case <-a.done:
	case <-time.After(closeTimeout):
		a.log.Warnw("mqtt_queue_close_timeout", "pending", len(a.queue))
	}
	return a.inner.Close()
}
