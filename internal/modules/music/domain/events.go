package domain

import "github.com/disgoorg/snowflake/v2"

// MessageRef identifies a rendered control-surface message. Both IDs are
// needed for deletion since the message may live in a different channel
// than the session's current notification channel.
type MessageRef struct {
	ChannelID snowflake.ID
	MessageID snowflake.ID
}

// CloseReason describes why a session was torn down.
type CloseReason int

const (
	// CloseDrained means the queue was exhausted.
	CloseDrained CloseReason = iota

	// CloseStopped means a user issued an explicit stop.
	CloseStopped

	// CloseConnectFailed means the transport connection never became ready.
	CloseConnectFailed

	// CloseIdle means the session sat paused past the idle window.
	CloseIdle

	// CloseShutdown means the process is exiting.
	CloseShutdown
)

// String returns a human-readable name for the close reason.
func (r CloseReason) String() string {
	switch r {
	case CloseDrained:
		return "drained"
	case CloseStopped:
		return "stopped"
	case CloseConnectFailed:
		return "connect_failed"
	case CloseIdle:
		return "idle"
	case CloseShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// TrackEnqueuedEvent is published when a track is added to an existing
// session's queue.
type TrackEnqueuedEvent struct {
	GuildID       snowflake.ID
	TextChannelID snowflake.ID
	Track         Track

	// Position is the track's 1-based place in the queue, the playing
	// track included.
	Position int
}

// PlaybackStartedEvent is published when a track starts playing.
type PlaybackStartedEvent struct {
	GuildID       snowflake.ID
	TextChannelID snowflake.ID
	Track         Track

	// QueuedBehind is the number of tracks waiting after this one.
	QueuedBehind int
}

// PlaybackStatusChangedEvent is published when playback is paused or resumed.
type PlaybackStatusChangedEvent struct {
	GuildID snowflake.ID
	Paused  bool
}

// TrackFailedEvent is published when a track is dropped because its
// stream could not be acquired or started.
type TrackFailedEvent struct {
	GuildID       snowflake.ID
	TextChannelID snowflake.ID
	Track         Track
}

// SessionClosedEvent is published after a session has released its
// transport resources and been removed from the registry. ControlMessage
// carries the last rendered control-surface message, if any, so it can be
// deleted best-effort.
type SessionClosedEvent struct {
	GuildID        snowflake.ID
	TextChannelID  snowflake.ID
	Reason         CloseReason
	ControlMessage *MessageRef
}
