package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/sync/errgroup"

	"github.com/evgpopov/muza/internal/modules/music/application/ports"
	"github.com/evgpopov/muza/internal/modules/music/domain"
)

const defaultConnectTimeout = 30 * time.Second

// PlaybackService drives per-guild playback sessions: it enqueues
// resolved tracks, establishes voice connections, walks the queue, and
// enforces the lifecycle state machine.
type PlaybackService struct {
	registry  *SessionRegistry
	acquirer  *StreamAcquirer
	transport ports.Transport
	publisher ports.EventPublisher

	connectTimeout time.Duration
	idleTimeout    time.Duration
	volume         float64
	logger         *slog.Logger
}

// PlaybackServiceParams collects the collaborators and tuning knobs of
// a PlaybackService.
type PlaybackServiceParams struct {
	Registry  *SessionRegistry
	Acquirer  *StreamAcquirer
	Transport ports.Transport
	Publisher ports.EventPublisher

	// ConnectTimeout bounds voice connection establishment.
	ConnectTimeout time.Duration

	// IdleTimeout tears a paused session down after this long without
	// a resume. Zero disables the timeout.
	IdleTimeout time.Duration

	// Volume is the linear gain applied to every playback; zero means
	// unity.
	Volume float64

	Logger *slog.Logger
}

func NewPlaybackService(params PlaybackServiceParams) *PlaybackService {
	if params.ConnectTimeout <= 0 {
		params.ConnectTimeout = defaultConnectTimeout
	}
	if params.Volume <= 0 {
		params.Volume = 1.0
	}
	if params.Logger == nil {
		params.Logger = slog.Default()
	}
	return &PlaybackService{
		registry:       params.Registry,
		acquirer:       params.Acquirer,
		transport:      params.Transport,
		publisher:      params.Publisher,
		connectTimeout: params.ConnectTimeout,
		idleTimeout:    params.IdleTimeout,
		volume:         params.Volume,
		logger:         params.Logger,
	}
}

// Play enqueues track for the guild. When no session exists it creates
// one, joins voiceChannelID, and starts playback of track; otherwise
// the track is appended behind the existing queue and playback is left
// untouched.
func (p *PlaybackService) Play(ctx context.Context, guildID, voiceChannelID, textChannelID snowflake.ID, track domain.Track) error {
	if !track.IsValid() {
		return fmt.Errorf("track is missing a display name or playable URI")
	}
	sess, created := p.registry.GetOrCreate(guildID, voiceChannelID, textChannelID, track)
	if !created {
		sess.mu.Lock()
		if sess.closed {
			sess.mu.Unlock()
			return ErrSessionClosed
		}
		sess.queue.Append(track)
		position := sess.queue.Len()
		sess.mu.Unlock()

		p.publisher.PublishTrackEnqueued(domain.TrackEnqueuedEvent{
			GuildID:       guildID,
			TextChannelID: textChannelID,
			Track:         track,
			Position:      position,
		})
		return nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, p.connectTimeout)
	defer cancel()
	conn, err := p.transport.Connect(connectCtx, guildID, voiceChannelID)
	if err != nil {
		p.logger.Error("voice connect failed", "guild_id", guildID, "channel_id", voiceChannelID, "error", err)
		p.closeSession(sess, domain.CloseConnectFailed)
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}

	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		conn.Close()
		return ErrSessionClosed
	}
	sess.conn = conn
	gen := sess.generation
	sess.mu.Unlock()

	p.advance(sess, gen)
	return nil
}

// Pause suspends the guild's current playback.
func (p *PlaybackService) Pause(guildID snowflake.ID) error {
	sess, ok := p.registry.Get(guildID)
	if !ok {
		return ErrNothingPlaying
	}

	sess.mu.Lock()
	if sess.closed || sess.player == nil {
		sess.mu.Unlock()
		return ErrNothingPlaying
	}
	if sess.state == domain.StatePaused {
		sess.mu.Unlock()
		return ErrAlreadyPaused
	}
	if !sess.state.CanTransition(domain.StatePaused) {
		sess.mu.Unlock()
		return ErrNothingPlaying
	}
	player := sess.player
	sess.state = domain.StatePaused
	sess.armIdleTimer(p.idleTimeout, func() { p.onIdleTimeout(sess) })
	sess.mu.Unlock()

	if err := player.Pause(); err != nil {
		return err
	}
	p.publisher.PublishPlaybackStatusChanged(domain.PlaybackStatusChangedEvent{
		GuildID: guildID,
		Paused:  true,
	})
	return nil
}

// Resume continues the guild's paused playback.
func (p *PlaybackService) Resume(guildID snowflake.ID) error {
	sess, ok := p.registry.Get(guildID)
	if !ok {
		return ErrNothingPlaying
	}

	sess.mu.Lock()
	if sess.closed || sess.player == nil {
		sess.mu.Unlock()
		return ErrNothingPlaying
	}
	if sess.state != domain.StatePaused {
		sess.mu.Unlock()
		return ErrNotPaused
	}
	player := sess.player
	sess.state = domain.StateActive
	sess.stopIdleTimer()
	sess.mu.Unlock()

	if err := player.Resume(); err != nil {
		return err
	}
	p.publisher.PublishPlaybackStatusChanged(domain.PlaybackStatusChangedEvent{
		GuildID: guildID,
		Paused:  false,
	})
	return nil
}

// TogglePause flips between playing and paused. paused reports the
// resulting status.
func (p *PlaybackService) TogglePause(guildID snowflake.ID) (paused bool, err error) {
	sess, ok := p.registry.Get(guildID)
	if !ok {
		return false, ErrNothingPlaying
	}
	if sess.State() == domain.StatePaused {
		return false, p.Resume(guildID)
	}
	return true, p.Pause(guildID)
}

// Skip drops the current track and starts the next one; when the queue
// empties, the session is closed as drained.
func (p *PlaybackService) Skip(guildID snowflake.ID) error {
	sess, ok := p.registry.Get(guildID)
	if !ok {
		return ErrNothingPlaying
	}

	sess.mu.Lock()
	if sess.closed || sess.player == nil {
		sess.mu.Unlock()
		return ErrNothingPlaying
	}
	sess.generation++
	gen := sess.generation
	sess.queue.Pop()
	player := sess.player
	sess.player = nil
	sess.stopIdleTimer()
	empty := sess.queue.IsEmpty()
	sess.mu.Unlock()

	player.Stop()

	if empty {
		p.closeSession(sess, domain.CloseDrained)
		return nil
	}
	go p.advance(sess, gen)
	return nil
}

// Stop aborts playback, clears the queue, and closes the session.
func (p *PlaybackService) Stop(guildID snowflake.ID) error {
	sess, ok := p.registry.Get(guildID)
	if !ok {
		return ErrNothingPlaying
	}
	p.closeSession(sess, domain.CloseStopped)
	return nil
}

// Shutdown closes every live session. It is used at process exit so
// that control messages are cleaned up and voice connections released.
func (p *PlaybackService) Shutdown(ctx context.Context) error {
	group, _ := errgroup.WithContext(ctx)
	for _, sess := range p.registry.All() {
		group.Go(func() error {
			p.closeSession(sess, domain.CloseShutdown)
			return nil
		})
	}
	return group.Wait()
}

// advance starts playback of the queue head. The caller supplies the
// generation it observed; if the session has moved on since, the call
// is a no-op. Stream acquisition happens without the session lock held
// so that control operations stay responsive during retries.
func (p *PlaybackService) advance(sess *Session, gen uint64) {
	for {
		sess.mu.Lock()
		if sess.closed || sess.generation != gen {
			sess.mu.Unlock()
			return
		}
		head := sess.queue.Head()
		if head == nil {
			sess.mu.Unlock()
			p.closeSession(sess, domain.CloseDrained)
			return
		}
		track := *head
		conn := sess.conn
		acquireCtx := sess.ctx
		sess.mu.Unlock()

		stream, err := p.acquirer.Acquire(acquireCtx, track)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			p.logger.Error("track unplayable, dropping",
				"guild_id", sess.GuildID, "track", track.DisplayName, "error", err)
			p.publisher.PublishTrackFailed(domain.TrackFailedEvent{
				GuildID:       sess.GuildID,
				TextChannelID: sess.TextChannelID,
				Track:         track,
			})

			sess.mu.Lock()
			if sess.closed || sess.generation != gen {
				sess.mu.Unlock()
				return
			}
			sess.generation++
			gen = sess.generation
			sess.queue.Pop()
			sess.mu.Unlock()
			continue
		}

		player, err := conn.Play(acquireCtx, stream, ports.PlayOptions{Volume: p.volume})
		if err != nil {
			stream.Close()
			p.logger.Error("playback start failed",
				"guild_id", sess.GuildID, "track", track.DisplayName, "error", err)
			p.publisher.PublishTrackFailed(domain.TrackFailedEvent{
				GuildID:       sess.GuildID,
				TextChannelID: sess.TextChannelID,
				Track:         track,
			})

			sess.mu.Lock()
			if sess.closed || sess.generation != gen {
				sess.mu.Unlock()
				return
			}
			sess.generation++
			gen = sess.generation
			sess.queue.Pop()
			sess.mu.Unlock()
			continue
		}

		sess.mu.Lock()
		if sess.closed || sess.generation != gen {
			sess.mu.Unlock()
			player.Stop()
			return
		}
		sess.player = player
		sess.state = domain.StateActive
		sess.stopIdleTimer()
		queued := sess.queue.Len() - 1
		sess.mu.Unlock()

		p.publisher.PublishPlaybackStarted(domain.PlaybackStartedEvent{
			GuildID:       sess.GuildID,
			TextChannelID: sess.TextChannelID,
			Track:         track,
			QueuedBehind:  queued,
		})

		go p.watch(sess, gen, player)
		return
	}
}

// watch waits for the player's terminal result and advances the queue.
// A result belonging to a superseded generation is ignored: the skip
// or stop that superseded it has already accounted for the track.
func (p *PlaybackService) watch(sess *Session, gen uint64, player ports.Player) {
	err := <-player.Done()

	sess.mu.Lock()
	if sess.closed || sess.generation != gen {
		sess.mu.Unlock()
		return
	}
	if err != nil {
		p.logger.Warn("player ended with fault, treating track as finished",
			"guild_id", sess.GuildID, "error", err)
	}
	sess.generation++
	gen = sess.generation
	sess.queue.Pop()
	sess.player = nil
	empty := sess.queue.IsEmpty()
	sess.mu.Unlock()

	if empty {
		p.closeSession(sess, domain.CloseDrained)
		return
	}
	p.advance(sess, gen)
}

// onIdleTimeout fires when a session stays paused past the idle
// timeout.
func (p *PlaybackService) onIdleTimeout(sess *Session) {
	sess.mu.Lock()
	stillPaused := !sess.closed && sess.state == domain.StatePaused
	sess.mu.Unlock()
	if !stillPaused {
		return
	}
	p.logger.Info("closing idle session", "guild_id", sess.GuildID)
	p.closeSession(sess, domain.CloseIdle)
}

// closeSession tears a session down exactly once: it invalidates
// in-flight work, stops the player, closes the connection, removes the
// session from the registry, and publishes the terminal event.
//
// A drained close is re-validated under the lock. The caller decided
// to drain after releasing the lock, so a concurrent Play may have
// appended a track in the meantime; that enqueue was acknowledged and
// must not be discarded, so the session plays on instead of closing.
func (p *PlaybackService) closeSession(sess *Session, reason domain.CloseReason) {
	sess.mu.Lock()
	if sess.closed {
		sess.mu.Unlock()
		return
	}
	if reason == domain.CloseDrained && !sess.queue.IsEmpty() {
		sess.generation++
		gen := sess.generation
		sess.mu.Unlock()
		go p.advance(sess, gen)
		return
	}
	sess.closed = true
	sess.generation++
	sess.queue.Clear()
	sess.state = domain.StateDraining
	player := sess.player
	sess.player = nil
	conn := sess.conn
	sess.conn = nil
	controlMsg := sess.controlMsg
	sess.controlMsg = nil
	sess.stopIdleTimer()
	sess.mu.Unlock()

	sess.cancel()
	if player != nil {
		player.Stop()
	}
	if conn != nil {
		if err := conn.Close(); err != nil {
			p.logger.Warn("voice connection close failed", "guild_id", sess.GuildID, "error", err)
		}
	}
	p.registry.Remove(sess.GuildID)

	sess.mu.Lock()
	sess.state = domain.StateEmpty
	sess.mu.Unlock()

	p.publisher.PublishSessionClosed(domain.SessionClosedEvent{
		GuildID:        sess.GuildID,
		TextChannelID:  sess.TextChannelID,
		Reason:         reason,
		ControlMessage: controlMsg,
	})
}
