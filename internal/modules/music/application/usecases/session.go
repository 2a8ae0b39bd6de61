package usecases

import (
	"context"
	"sync"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/evgpopov/muza/internal/modules/music/application/ports"
	"github.com/evgpopov/muza/internal/modules/music/domain"
)

// Session is the per-guild playback unit: the queue, the lifecycle
// state, the live voice connection, and the player for the current
// track. All mutable fields are guarded by mu.
//
// generation is bumped every time the logical "current track" changes
// (pop, skip, stop, teardown). Goroutines that act on behalf of a
// particular track capture the generation under the lock and bail out
// if it has moved on by the time they re-acquire it. This is what
// keeps a racing skip and a natural track end from popping the queue
// twice.
type Session struct {
	GuildID        snowflake.ID
	VoiceChannelID snowflake.ID
	TextChannelID  snowflake.ID

	mu         sync.Mutex
	queue      domain.Queue
	state      domain.SessionState
	generation uint64
	conn       ports.Connection
	player     ports.Player
	controlMsg *domain.MessageRef
	idleTimer  *time.Timer
	closed     bool

	// ctx is cancelled on teardown; pending acquisition retries select
	// on it.
	ctx    context.Context
	cancel context.CancelFunc
}

func newSession(guildID, voiceChannelID, textChannelID snowflake.ID, initial domain.Track) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		GuildID:        guildID,
		VoiceChannelID: voiceChannelID,
		TextChannelID:  textChannelID,
		queue:          domain.NewQueue(),
		state:          domain.StateConnecting,
		ctx:            ctx,
		cancel:         cancel,
	}
	s.queue.Append(initial)
	return s
}

// State reports the current lifecycle state.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CurrentTrack returns the track at the head of the queue, if any.
func (s *Session) CurrentTrack() (domain.Track, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	head := s.queue.Head()
	if head == nil {
		return domain.Track{}, false
	}
	return *head, true
}

// QueueLen reports the number of queued tracks, the current one
// included.
func (s *Session) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// QueuedTracks returns a snapshot of the queue.
func (s *Session) QueuedTracks() []domain.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.List()
}

// ControlMessage returns the reference to the current now-playing
// message, if one is rendered.
func (s *Session) ControlMessage() (domain.MessageRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controlMsg == nil {
		return domain.MessageRef{}, false
	}
	return *s.controlMsg, true
}

// SetControlMessage records the current now-playing message reference.
func (s *Session) SetControlMessage(ref domain.MessageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.controlMsg = &ref
}

// TakeControlMessage returns the current now-playing reference and
// clears it, so that exactly one owner deletes the message.
func (s *Session) TakeControlMessage() (domain.MessageRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.controlMsg == nil {
		return domain.MessageRef{}, false
	}
	ref := *s.controlMsg
	s.controlMsg = nil
	return ref, true
}

// armIdleTimer schedules fn after d, cancelling any previously armed
// timer. A non-positive d disables the timer. Callers must hold mu.
func (s *Session) armIdleTimer(d time.Duration, fn func()) {
	s.stopIdleTimer()
	if d <= 0 {
		return
	}
	s.idleTimer = time.AfterFunc(d, fn)
}

// stopIdleTimer cancels a pending idle timer. Callers must hold mu.
func (s *Session) stopIdleTimer() {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
		s.idleTimer = nil
	}
}
