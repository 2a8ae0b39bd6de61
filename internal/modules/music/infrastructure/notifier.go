package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/evgpopov/muza/internal/modules/music/application/ports"
	"github.com/evgpopov/muza/internal/modules/music/domain"
)

// Embed colors.
const (
	colorGreen  = 0x2ECC71
	colorYellow = 0xF1C40F
)

// Component custom IDs routed back to the music module's button
// handlers.
const (
	ComponentPauseResume = "music_pause_resume"
	ComponentSkip        = "music_skip"
	ComponentStop        = "music_stop"
)

var _ ports.Notifier = (*DiscordNotifier)(nil)

// DiscordNotifier renders the control surface as Discord embeds with
// playback control buttons.
type DiscordNotifier struct {
	session *discordgo.Session
	logger  *slog.Logger
}

func NewDiscordNotifier(session *discordgo.Session, logger *slog.Logger) *DiscordNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscordNotifier{session: session, logger: logger}
}

// SendNowPlaying sends the now-playing embed with pause, skip, and
// stop buttons and returns a reference to the created message.
func (n *DiscordNotifier) SendNowPlaying(_ context.Context, channelID snowflake.ID, track domain.Track, paused bool) (domain.MessageRef, error) {
	msg, err := n.session.ChannelMessageSendComplex(channelID.String(), &discordgo.MessageSend{
		Embeds:     []*discordgo.MessageEmbed{nowPlayingEmbed(track, paused)},
		Components: controlComponents(paused),
	})
	if err != nil {
		return domain.MessageRef{}, fmt.Errorf("sending now-playing message: %w", err)
	}
	messageID, err := snowflake.Parse(msg.ID)
	if err != nil {
		return domain.MessageRef{}, err
	}
	return domain.MessageRef{ChannelID: channelID, MessageID: messageID}, nil
}

// UpdateNowPlaying edits the now-playing message in place, flipping
// the status line and the pause button label.
func (n *DiscordNotifier) UpdateNowPlaying(_ context.Context, ref domain.MessageRef, track domain.Track, paused bool) error {
	embeds := []*discordgo.MessageEmbed{nowPlayingEmbed(track, paused)}
	components := controlComponents(paused)
	_, err := n.session.ChannelMessageEditComplex(&discordgo.MessageEdit{
		Channel:    ref.ChannelID.String(),
		ID:         ref.MessageID.String(),
		Embeds:     &embeds,
		Components: &components,
	})
	if err != nil {
		return fmt.Errorf("editing now-playing message: %w", err)
	}
	return nil
}

// SendNotice sends a plain informational embed.
func (n *DiscordNotifier) SendNotice(_ context.Context, channelID snowflake.ID, text string) error {
	_, err := n.session.ChannelMessageSendEmbed(channelID.String(), &discordgo.MessageEmbed{
		Description: text,
	})
	return err
}

// SendTransientNotice sends an embed that is deleted best-effort after
// ttl.
func (n *DiscordNotifier) SendTransientNotice(_ context.Context, channelID snowflake.ID, text string, ttl time.Duration) error {
	msg, err := n.session.ChannelMessageSendEmbed(channelID.String(), &discordgo.MessageEmbed{
		Description: text,
	})
	if err != nil {
		return err
	}
	if ttl <= 0 {
		return nil
	}
	time.AfterFunc(ttl, func() {
		if err := n.session.ChannelMessageDelete(channelID.String(), msg.ID); err != nil {
			n.logger.Debug("transient notice cleanup failed", "channel_id", channelID, "error", err)
		}
	})
	return nil
}

// DeleteMessage deletes a previously rendered message.
func (n *DiscordNotifier) DeleteMessage(_ context.Context, ref domain.MessageRef) error {
	return n.session.ChannelMessageDelete(ref.ChannelID.String(), ref.MessageID.String())
}

func nowPlayingEmbed(track domain.Track, paused bool) *discordgo.MessageEmbed {
	status := "Playing"
	color := colorGreen
	if paused {
		status = "Paused"
		color = colorYellow
	}
	embed := &discordgo.MessageEmbed{
		Author: &discordgo.MessageEmbedAuthor{
			Name: "Now Playing",
		},
		Title: track.DisplayName,
		Color: color,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:   "Status",
				Value:  status,
				Inline: true,
			},
		},
	}
	if track.Source == domain.SourceStandard {
		embed.URL = track.PlayableURI
	}
	return embed
}

func controlComponents(paused bool) []discordgo.MessageComponent {
	pauseLabel := "Pause"
	if paused {
		pauseLabel = "Resume"
	}
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    pauseLabel,
					Style:    discordgo.PrimaryButton,
					CustomID: ComponentPauseResume,
				},
				discordgo.Button{
					Label:    "Skip",
					Style:    discordgo.SecondaryButton,
					CustomID: ComponentSkip,
				},
				discordgo.Button{
					Label:    "Stop",
					Style:    discordgo.DangerButton,
					CustomID: ComponentStop,
				},
			},
		},
	}
}
