// Package ports defines the interfaces through which the music module's
// application core talks to external collaborators: the track resolver,
// the media fetcher, the voice transport, and the control surface.
package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/evgpopov/muza/internal/modules/music/domain"
)

// ErrNoMatch is returned by a Resolver when a query cannot be resolved
// to a playable track.
var ErrNoMatch = errors.New("no playable track matched the query")

// Resolver turns a user query (URL or free text) into a playable track.
type Resolver interface {
	Resolve(ctx context.Context, query string) (*domain.Track, error)
}

// StreamFetcher performs a single attempt at obtaining a live byte
// stream for a track. Retry policy is the caller's concern.
type StreamFetcher interface {
	Fetch(ctx context.Context, track *domain.Track) (io.ReadCloser, error)
}

// PlayOptions carries per-playback parameters for the transport.
type PlayOptions struct {
	// Volume is a linear gain factor; 1.0 is unity.
	Volume float64
}

// Player controls one in-flight playback on a Connection.
type Player interface {
	// Pause suspends frame delivery without releasing the stream.
	Pause() error

	// Resume continues frame delivery after a Pause.
	Resume() error

	// Stop aborts playback. Safe to call more than once.
	Stop()

	// Done delivers exactly one terminal result: nil when the stream
	// finished naturally, non-nil on a player fault. A Stop also
	// completes Done.
	Done() <-chan error
}

// Connection is an established transport link to a voice channel.
type Connection interface {
	// Play consumes the stream and delivers it to the channel. The
	// returned Player controls this playback; starting a new playback
	// requires a new Play call. Ownership of the stream passes to the
	// connection, which closes it when playback ends.
	Play(ctx context.Context, stream io.ReadCloser, opts PlayOptions) (Player, error)

	// Close tears the connection down. Safe to call more than once.
	Close() error
}

// Transport establishes voice connections. Connect blocks until the
// connection is ready or ctx expires.
type Transport interface {
	Connect(ctx context.Context, guildID, channelID snowflake.ID) (Connection, error)
}

// VoiceStateProvider reports which voice channel a user currently
// occupies within a guild.
type VoiceStateProvider interface {
	VoiceChannelOf(guildID, userID snowflake.ID) (snowflake.ID, bool)
}

// Notifier renders the control surface: status messages and their
// attached playback controls.
type Notifier interface {
	// SendNowPlaying renders a now-playing message with playback
	// controls and returns a reference for later edit/delete.
	SendNowPlaying(ctx context.Context, channelID snowflake.ID, track domain.Track, paused bool) (domain.MessageRef, error)

	// UpdateNowPlaying edits an existing now-playing message in place,
	// e.g. to flip the paused status line.
	UpdateNowPlaying(ctx context.Context, ref domain.MessageRef, track domain.Track, paused bool) error

	// SendNotice sends a plain informational message.
	SendNotice(ctx context.Context, channelID snowflake.ID, text string) error

	// SendTransientNotice sends a message that is deleted best-effort
	// after ttl.
	SendTransientNotice(ctx context.Context, channelID snowflake.ID, text string, ttl time.Duration) error

	// DeleteMessage deletes a previously rendered message.
	DeleteMessage(ctx context.Context, ref domain.MessageRef) error
}

// EventPublisher publishes playback lifecycle events.
type EventPublisher interface {
	PublishTrackEnqueued(event domain.TrackEnqueuedEvent)
	PublishPlaybackStarted(event domain.PlaybackStartedEvent)
	PublishPlaybackStatusChanged(event domain.PlaybackStatusChangedEvent)
	PublishTrackFailed(event domain.TrackFailedEvent)
	PublishSessionClosed(event domain.SessionClosedEvent)
}

// EventSubscriber registers handlers for playback lifecycle events.
type EventSubscriber interface {
	OnTrackEnqueued(handler func(context.Context, domain.TrackEnqueuedEvent))
	OnPlaybackStarted(handler func(context.Context, domain.PlaybackStartedEvent))
	OnPlaybackStatusChanged(handler func(context.Context, domain.PlaybackStatusChangedEvent))
	OnTrackFailed(handler func(context.Context, domain.TrackFailedEvent))
	OnSessionClosed(handler func(context.Context, domain.SessionClosedEvent))
}
