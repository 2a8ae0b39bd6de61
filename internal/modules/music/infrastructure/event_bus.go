// Package infrastructure provides the Discord-facing adapters of the
// music module: the voice transport, the media fetcher and resolver,
// the control-surface notifier, and the in-process event bus.
package infrastructure

import (
	"context"
	"log/slog"
	"sync"

	"github.com/evgpopov/muza/internal/modules/music/application/ports"
	"github.com/evgpopov/muza/internal/modules/music/domain"
)

// DefaultEventBufferSize is the default buffer size for event channels.
const DefaultEventBufferSize = 100

var (
	_ ports.EventPublisher  = (*ChannelEventBus)(nil)
	_ ports.EventSubscriber = (*ChannelEventBus)(nil)
)

// ChannelEventBus is a channel-based event bus for async event
// handling. It implements both EventPublisher and EventSubscriber.
// Publishing never blocks: when a buffer is full the event is dropped
// with a warning.
type ChannelEventBus struct {
	trackEnqueued   chan domain.TrackEnqueuedEvent
	playbackStarted chan domain.PlaybackStartedEvent
	statusChanged   chan domain.PlaybackStatusChangedEvent
	trackFailed     chan domain.TrackFailedEvent
	sessionClosed   chan domain.SessionClosedEvent

	trackEnqueuedHandlers   []func(context.Context, domain.TrackEnqueuedEvent)
	playbackStartedHandlers []func(context.Context, domain.PlaybackStartedEvent)
	statusChangedHandlers   []func(context.Context, domain.PlaybackStatusChangedEvent)
	trackFailedHandlers     []func(context.Context, domain.TrackFailedEvent)
	sessionClosedHandlers   []func(context.Context, domain.SessionClosedEvent)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	closed bool
	mu     sync.RWMutex
}

// NewChannelEventBus creates a ChannelEventBus with the given buffer
// size per event type.
func NewChannelEventBus(bufferSize int) *ChannelEventBus {
	if bufferSize <= 0 {
		bufferSize = DefaultEventBufferSize
	}

	ctx, cancel := context.WithCancel(context.Background())

	bus := &ChannelEventBus{
		trackEnqueued:   make(chan domain.TrackEnqueuedEvent, bufferSize),
		playbackStarted: make(chan domain.PlaybackStartedEvent, bufferSize),
		statusChanged:   make(chan domain.PlaybackStatusChangedEvent, bufferSize),
		trackFailed:     make(chan domain.TrackFailedEvent, bufferSize),
		sessionClosed:   make(chan domain.SessionClosedEvent, bufferSize),
		ctx:             ctx,
		cancel:          cancel,
	}

	bus.wg.Add(5)
	go dispatch(bus, bus.trackEnqueued, func() []func(context.Context, domain.TrackEnqueuedEvent) {
		return bus.trackEnqueuedHandlers
	})
	go dispatch(bus, bus.playbackStarted, func() []func(context.Context, domain.PlaybackStartedEvent) {
		return bus.playbackStartedHandlers
	})
	go dispatch(bus, bus.statusChanged, func() []func(context.Context, domain.PlaybackStatusChangedEvent) {
		return bus.statusChangedHandlers
	})
	go dispatch(bus, bus.trackFailed, func() []func(context.Context, domain.TrackFailedEvent) {
		return bus.trackFailedHandlers
	})
	go dispatch(bus, bus.sessionClosed, func() []func(context.Context, domain.SessionClosedEvent) {
		return bus.sessionClosedHandlers
	})

	return bus
}

// dispatch drains one event channel, invoking the registered handlers
// in subscription order. handlers is read under the bus lock so that
// late subscriptions are picked up.
func dispatch[E any](b *ChannelEventBus, events <-chan E, handlers func() []func(context.Context, E)) {
	defer b.wg.Done()
	for event := range events {
		b.mu.RLock()
		hs := handlers()
		b.mu.RUnlock()
		for _, handler := range hs {
			handler(b.ctx, event)
		}
	}
}

// publish performs a non-blocking send to events, dropping the event
// when the buffer is full or the bus is closed.
func publish[E any](b *ChannelEventBus, events chan<- E, eventType string) func(E) {
	return func(event E) {
		b.mu.RLock()
		defer b.mu.RUnlock()

		if b.closed {
			slog.Warn("attempted to publish to closed event bus", "type", eventType)
			return
		}

		select {
		case events <- event:
		default:
			slog.Warn("event buffer full, dropping event", "type", eventType)
		}
	}
}

func (b *ChannelEventBus) PublishTrackEnqueued(event domain.TrackEnqueuedEvent) {
	publish(b, b.trackEnqueued, "TrackEnqueued")(event)
}

func (b *ChannelEventBus) PublishPlaybackStarted(event domain.PlaybackStartedEvent) {
	publish(b, b.playbackStarted, "PlaybackStarted")(event)
}

func (b *ChannelEventBus) PublishPlaybackStatusChanged(event domain.PlaybackStatusChangedEvent) {
	publish(b, b.statusChanged, "PlaybackStatusChanged")(event)
}

func (b *ChannelEventBus) PublishTrackFailed(event domain.TrackFailedEvent) {
	publish(b, b.trackFailed, "TrackFailed")(event)
}

func (b *ChannelEventBus) PublishSessionClosed(event domain.SessionClosedEvent) {
	publish(b, b.sessionClosed, "SessionClosed")(event)
}

// OnTrackEnqueued registers a handler for TrackEnqueuedEvent.
func (b *ChannelEventBus) OnTrackEnqueued(handler func(context.Context, domain.TrackEnqueuedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trackEnqueuedHandlers = append(b.trackEnqueuedHandlers, handler)
}

// OnPlaybackStarted registers a handler for PlaybackStartedEvent.
func (b *ChannelEventBus) OnPlaybackStarted(handler func(context.Context, domain.PlaybackStartedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playbackStartedHandlers = append(b.playbackStartedHandlers, handler)
}

// OnPlaybackStatusChanged registers a handler for PlaybackStatusChangedEvent.
func (b *ChannelEventBus) OnPlaybackStatusChanged(handler func(context.Context, domain.PlaybackStatusChangedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.statusChangedHandlers = append(b.statusChangedHandlers, handler)
}

// OnTrackFailed registers a handler for TrackFailedEvent.
func (b *ChannelEventBus) OnTrackFailed(handler func(context.Context, domain.TrackFailedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trackFailedHandlers = append(b.trackFailedHandlers, handler)
}

// OnSessionClosed registers a handler for SessionClosedEvent.
func (b *ChannelEventBus) OnSessionClosed(handler func(context.Context, domain.SessionClosedEvent)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessionClosedHandlers = append(b.sessionClosedHandlers, handler)
}

// Close stops accepting publishes, lets the dispatchers drain every
// event already buffered, and only then cancels the handler context.
// Teardown notifications published right before Close are therefore
// still delivered.
func (b *ChannelEventBus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.trackEnqueued)
	close(b.playbackStarted)
	close(b.statusChanged)
	close(b.trackFailed)
	close(b.sessionClosed)

	b.wg.Wait()
	b.cancel()
}
