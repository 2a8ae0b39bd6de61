// Package application coordinates the music module's use cases with the
// control surface rendered in text channels.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/evgpopov/muza/internal/modules/music/application/ports"
	"github.com/evgpopov/muza/internal/modules/music/application/usecases"
	"github.com/evgpopov/muza/internal/modules/music/domain"
)

const defaultTransientTTL = 10 * time.Second

// ControlSurfaceSync keeps each session's text-channel control surface
// in step with playback: it replaces the now-playing message when a new
// track starts, edits the status line on pause and resume, and cleans
// the message up when the session closes. All rendering is best-effort;
// a failed message edit never disturbs playback.
type ControlSurfaceSync struct {
	registry     *usecases.SessionRegistry
	notifier     ports.Notifier
	transientTTL time.Duration
	logger       *slog.Logger
}

func NewControlSurfaceSync(registry *usecases.SessionRegistry, notifier ports.Notifier, logger *slog.Logger) *ControlSurfaceSync {
	if logger == nil {
		logger = slog.Default()
	}
	return &ControlSurfaceSync{
		registry:     registry,
		notifier:     notifier,
		transientTTL: defaultTransientTTL,
		logger:       logger,
	}
}

// Register subscribes the sync to playback lifecycle events.
func (c *ControlSurfaceSync) Register(sub ports.EventSubscriber) {
	sub.OnTrackEnqueued(c.handleTrackEnqueued)
	sub.OnPlaybackStarted(c.handlePlaybackStarted)
	sub.OnPlaybackStatusChanged(c.handlePlaybackStatusChanged)
	sub.OnTrackFailed(c.handleTrackFailed)
	sub.OnSessionClosed(c.handleSessionClosed)
}

func (c *ControlSurfaceSync) handleTrackEnqueued(ctx context.Context, event domain.TrackEnqueuedEvent) {
	text := fmt.Sprintf("Added to queue: **%s** (position %d)", event.Track.DisplayName, event.Position)
	if err := c.notifier.SendTransientNotice(ctx, event.TextChannelID, text, c.transientTTL); err != nil {
		c.logger.Warn("enqueue notice failed", "guild_id", event.GuildID, "error", err)
	}
}

func (c *ControlSurfaceSync) handlePlaybackStarted(ctx context.Context, event domain.PlaybackStartedEvent) {
	sess, ok := c.registry.Get(event.GuildID)
	if !ok {
		return
	}
	// One control message per session: the previous track's message is
	// removed before the new one is rendered.
	if old, ok := sess.TakeControlMessage(); ok {
		if err := c.notifier.DeleteMessage(ctx, old); err != nil {
			c.logger.Warn("stale control message delete failed", "guild_id", event.GuildID, "error", err)
		}
	}
	ref, err := c.notifier.SendNowPlaying(ctx, event.TextChannelID, event.Track, false)
	if err != nil {
		c.logger.Warn("now-playing render failed", "guild_id", event.GuildID, "error", err)
		return
	}
	sess.SetControlMessage(ref)
}

func (c *ControlSurfaceSync) handlePlaybackStatusChanged(ctx context.Context, event domain.PlaybackStatusChangedEvent) {
	sess, ok := c.registry.Get(event.GuildID)
	if !ok {
		return
	}
	ref, ok := sess.ControlMessage()
	if !ok {
		return
	}
	track, ok := sess.CurrentTrack()
	if !ok {
		return
	}
	if err := c.notifier.UpdateNowPlaying(ctx, ref, track, event.Paused); err != nil {
		c.logger.Warn("now-playing update failed", "guild_id", event.GuildID, "error", err)
	}
}

func (c *ControlSurfaceSync) handleTrackFailed(ctx context.Context, event domain.TrackFailedEvent) {
	text := fmt.Sprintf("Could not play **%s**, skipping it.", event.Track.DisplayName)
	if err := c.notifier.SendNotice(ctx, event.TextChannelID, text); err != nil {
		c.logger.Warn("failure notice failed", "guild_id", event.GuildID, "error", err)
	}
}

func (c *ControlSurfaceSync) handleSessionClosed(ctx context.Context, event domain.SessionClosedEvent) {
	if event.ControlMessage != nil {
		if err := c.notifier.DeleteMessage(ctx, *event.ControlMessage); err != nil {
			c.logger.Warn("control message cleanup failed", "guild_id", event.GuildID, "error", err)
		}
	}

	var text string
	switch event.Reason {
	case domain.CloseDrained:
		text = "Queue finished, leaving the voice channel."
	case domain.CloseIdle:
		text = "Left the voice channel after sitting paused for a while."
	default:
		// Stops and failures are acknowledged at the command site;
		// shutdown sends nothing.
		return
	}
	if err := c.notifier.SendTransientNotice(ctx, event.TextChannelID, text, c.transientTTL); err != nil {
		c.logger.Warn("close notice failed", "guild_id", event.GuildID, "error", err)
	}
}
