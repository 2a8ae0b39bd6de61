package infrastructure

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"
	"github.com/jonas747/dca"

	"github.com/evgpopov/muza/internal/modules/music/application/ports"
)

const (
	// opusFrameDuration is the wall-clock length of one Opus frame.
	opusFrameDuration = 20 * time.Millisecond

	// frameSendTimeout bounds a single OpusSend delivery; a gateway
	// that stops draining the channel otherwise wedges the loop.
	frameSendTimeout = 1 * time.Second
)

var _ ports.Transport = (*DiscordTransport)(nil)

// DiscordTransport establishes Discord voice connections through an
// active gateway session.
type DiscordTransport struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func NewDiscordTransport(session *discordgo.Session, logger *slog.Logger) *DiscordTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscordTransport{session: session, logger: logger}
}

// Connect joins the voice channel, honoring ctx while the gateway
// handshake is in flight. A join that completes after ctx expires is
// disconnected so no orphan connection lingers.
func (t *DiscordTransport) Connect(ctx context.Context, guildID, channelID snowflake.ID) (ports.Connection, error) {
	type joinResult struct {
		vc  *discordgo.VoiceConnection
		err error
	}
	results := make(chan joinResult, 1)
	go func() {
		vc, err := t.session.ChannelVoiceJoin(guildID.String(), channelID.String(), false, true)
		results <- joinResult{vc: vc, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-results; r.err == nil && r.vc != nil {
				if err := r.vc.Disconnect(); err != nil {
					t.logger.Warn("orphan voice connection disconnect failed", "guild_id", guildID, "error", err)
				}
			}
		}()
		return nil, ctx.Err()
	case r := <-results:
		if r.err != nil {
			return nil, fmt.Errorf("joining voice channel %s: %w", channelID, r.err)
		}
		return &voiceConnection{vc: r.vc, logger: t.logger}, nil
	}
}

type voiceConnection struct {
	vc     *discordgo.VoiceConnection
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Play encodes the stream to Opus and starts the frame delivery loop.
func (c *voiceConnection) Play(_ context.Context, stream io.ReadCloser, opts ports.PlayOptions) (ports.Player, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		stream.Close()
		return nil, fmt.Errorf("voice connection is closed")
	}
	c.mu.Unlock()

	options := *dca.StdEncodeOptions
	options.RawOutput = true
	options.Bitrate = 128
	options.Application = dca.AudioApplicationAudio
	volume := opts.Volume
	if volume <= 0 {
		volume = 1.0
	}
	options.Volume = int(256 * volume)

	enc, err := dca.EncodeMem(stream, &options)
	if err != nil {
		stream.Close()
		return nil, fmt.Errorf("starting opus encoder: %w", err)
	}

	player := &dcaPlayer{
		vc:     c.vc,
		enc:    enc,
		stream: stream,
		stop:   make(chan struct{}),
		done:   make(chan error, 1),
		logger: c.logger,
	}
	go player.run()
	return player, nil
}

func (c *voiceConnection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()
	return c.vc.Disconnect()
}

var _ ports.Player = (*dcaPlayer)(nil)

// dcaPlayer pulls Opus frames off the dca encoder and hands them to
// the voice gateway. Pausing withholds frames without touching the
// encoder, so resume picks up where the stream left off.
type dcaPlayer struct {
	vc     *discordgo.VoiceConnection
	enc    *dca.EncodeSession
	stream io.ReadCloser
	logger *slog.Logger

	mu     sync.Mutex
	paused bool

	stop     chan struct{}
	stopOnce sync.Once
	done     chan error
	doneOnce sync.Once
}

func (p *dcaPlayer) run() {
	defer func() {
		p.enc.Cleanup()
		p.stream.Close()
		if err := p.vc.Speaking(false); err != nil {
			p.logger.Debug("clearing speaking state failed", "error", err)
		}
	}()

	if err := p.vc.Speaking(true); err != nil {
		p.finish(fmt.Errorf("setting speaking state: %w", err))
		return
	}

	for {
		select {
		case <-p.stop:
			p.finish(nil)
			return
		default:
		}

		if p.isPaused() {
			time.Sleep(opusFrameDuration)
			continue
		}

		frame, err := p.enc.OpusFrame()
		if err != nil {
			if err == io.EOF {
				p.finish(nil)
			} else {
				p.finish(fmt.Errorf("reading opus frame: %w", err))
			}
			return
		}

		select {
		case p.vc.OpusSend <- frame:
		case <-p.stop:
			p.finish(nil)
			return
		case <-time.After(frameSendTimeout):
			p.finish(fmt.Errorf("timed out delivering opus frame"))
			return
		}
	}
}

func (p *dcaPlayer) Pause() error {
	p.mu.Lock()
	p.paused = true
	p.mu.Unlock()
	return p.vc.Speaking(false)
}

func (p *dcaPlayer) Resume() error {
	p.mu.Lock()
	p.paused = false
	p.mu.Unlock()
	return p.vc.Speaking(true)
}

func (p *dcaPlayer) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *dcaPlayer) Done() <-chan error {
	return p.done
}

func (p *dcaPlayer) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *dcaPlayer) finish(err error) {
	p.doneOnce.Do(func() {
		p.done <- err
		close(p.done)
	})
}
