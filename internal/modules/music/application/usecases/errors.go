package usecases

import "errors"

var (
	// ErrNothingPlaying indicates no session exists for the guild.
	ErrNothingPlaying = errors.New("nothing is playing in this guild")

	// ErrAlreadyPaused indicates a pause request on an already paused
	// session.
	ErrAlreadyPaused = errors.New("playback is already paused")

	// ErrNotPaused indicates a resume request on a session that is not
	// paused.
	ErrNotPaused = errors.New("playback is not paused")

	// ErrStreamUnavailable indicates stream acquisition exhausted its
	// attempt budget without obtaining a stream.
	ErrStreamUnavailable = errors.New("stream unavailable after retries")

	// ErrConnectFailed indicates the voice connection could not be
	// established.
	ErrConnectFailed = errors.New("failed to join the voice channel")

	// ErrSessionClosed indicates an operation raced with session
	// teardown.
	ErrSessionClosed = errors.New("session is closed")
)
