// Package music provides multi-tenant audio playback: per-guild queues,
// a play/pause/skip/stop lifecycle, and a text-channel control surface.
package music

import (
	"context"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/evgpopov/muza/internal/bot"
	"github.com/evgpopov/muza/internal/modules/music/application"
	"github.com/evgpopov/muza/internal/modules/music/application/usecases"
	"github.com/evgpopov/muza/internal/modules/music/infrastructure"
	"github.com/evgpopov/muza/internal/modules/music/presentation"
)

const shutdownTimeout = 10 * time.Second

func init() {
	bot.Register(&MusicModule{})
}

// Compile-time interface checks.
var (
	_ bot.Module             = (*MusicModule)(nil)
	_ bot.ConfigurableModule = (*MusicModule)(nil)
)

// MusicModule provides music playback commands.
type MusicModule struct {
	config   *Config
	handlers *presentation.Handlers
	playback *usecases.PlaybackService
	eventBus *infrastructure.ChannelEventBus
}

// Name returns the module name.
func (m *MusicModule) Name() string {
	return "music"
}

// LoadConfig loads module-specific configuration from environment variables.
func (m *MusicModule) LoadConfig() error {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return err
	}
	m.config = cfg
	return nil
}

// Init wires the module: infrastructure adapters, the playback engine,
// the control surface sync, and the command handlers.
func (m *MusicModule) Init(deps bot.ModuleDependencies) error {
	logger := slog.Default().With("module", m.Name())

	m.eventBus = infrastructure.NewChannelEventBus(infrastructure.DefaultEventBufferSize)

	registry := usecases.NewSessionRegistry()
	transport := infrastructure.NewDiscordTransport(deps.Session, logger)
	fetcher := infrastructure.NewMediaFetcher(logger)
	voiceState := infrastructure.NewDiscordVoiceStateProvider(deps.Session)
	notifier := infrastructure.NewDiscordNotifier(deps.Session, logger)
	resolver := infrastructure.NewTrackResolver(context.Background(), infrastructure.TrackResolverConfig{
		SpotifyClientID:     m.config.SpotifyClientID,
		SpotifyClientSecret: m.config.SpotifyClientSecret,
	}, logger)

	acquirer := usecases.NewStreamAcquirer(fetcher, m.config.StreamAttempts, m.config.StreamRetryDelay, logger)
	m.playback = usecases.NewPlaybackService(usecases.PlaybackServiceParams{
		Registry:       registry,
		Acquirer:       acquirer,
		Transport:      transport,
		Publisher:      m.eventBus,
		ConnectTimeout: m.config.ConnectTimeout,
		IdleTimeout:    m.config.IdleTimeout,
		Volume:         m.config.Volume,
		Logger:         logger,
	})

	controlSync := application.NewControlSurfaceSync(registry, notifier, logger)
	controlSync.Register(m.eventBus)

	m.handlers = presentation.NewHandlers(m.playback, registry, resolver, voiceState, deps.Config.CommandPrefix)
	return nil
}

// MessageCommands returns the text command handlers for this module.
func (m *MusicModule) MessageCommands() map[string]bot.MessageCommandHandler {
	return map[string]bot.MessageCommandHandler{
		"play":   m.handlers.HandlePlay,
		"skip":   m.handlers.HandleSkip,
		"pause":  m.handlers.HandlePause,
		"resume": m.handlers.HandleResume,
		"queue":  m.handlers.HandleQueue,
		"stop":   m.handlers.HandleStop,
		"help":   m.handlers.HandleHelp,
	}
}

// ComponentHandlers returns the button handlers for this module.
func (m *MusicModule) ComponentHandlers() map[string]bot.ComponentHandler {
	return map[string]bot.ComponentHandler{
		infrastructure.ComponentPauseResume: m.handlers.HandlePauseResumeButton,
		infrastructure.ComponentSkip:        m.handlers.HandleSkipButton,
		infrastructure.ComponentStop:        m.handlers.HandleStopButton,
	}
}

// EventHandlers returns the event handlers for this module.
func (m *MusicModule) EventHandlers() []bot.EventHandler {
	return nil
}

// Shutdown drains every live session, then closes the event bus so the
// teardown notifications still go out.
func (m *MusicModule) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var err error
	if m.playback != nil {
		err = m.playback.Shutdown(ctx)
	}
	if m.eventBus != nil {
		m.eventBus.Close()
	}
	return err
}
