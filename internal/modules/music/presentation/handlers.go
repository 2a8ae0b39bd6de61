// Package presentation translates Discord messages and interactions
// into music module use case calls.
package presentation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/evgpopov/muza/internal/modules/music/application/ports"
	"github.com/evgpopov/muza/internal/modules/music/application/usecases"
)

// Embed colors.
const (
	colorSuccess = 0x08c404
	colorError   = 0xE74C3C
	colorInfo    = 0x3498DB
)

const maxQueuePreview = 10

// Handlers holds the music module's command handlers.
type Handlers struct {
	playback   *usecases.PlaybackService
	registry   *usecases.SessionRegistry
	resolver   ports.Resolver
	voiceState ports.VoiceStateProvider
	prefix     string
}

func NewHandlers(
	playback *usecases.PlaybackService,
	registry *usecases.SessionRegistry,
	resolver ports.Resolver,
	voiceState ports.VoiceStateProvider,
	prefix string,
) *Handlers {
	return &Handlers{
		playback:   playback,
		registry:   registry,
		resolver:   resolver,
		voiceState: voiceState,
		prefix:     prefix,
	}
}

// HandlePlay handles the play command: it resolves the query to a
// track and enqueues it in the invoker's voice channel. Feedback for
// successful playback comes through the control surface, so the
// handler itself replies only on errors.
func (h *Handlers) HandlePlay(s *discordgo.Session, m *discordgo.MessageCreate, args []string) error {
	guildID, err := snowflake.Parse(m.GuildID)
	if err != nil {
		return replyError(s, m.ChannelID, "Invalid guild")
	}
	userID, err := snowflake.Parse(m.Author.ID)
	if err != nil {
		return replyError(s, m.ChannelID, "Invalid user")
	}
	textChannelID, err := snowflake.Parse(m.ChannelID)
	if err != nil {
		return replyError(s, m.ChannelID, "Invalid channel")
	}

	query := strings.TrimSpace(strings.Join(args, " "))
	if query == "" {
		return replyError(s, m.ChannelID,
			fmt.Sprintf("Tell me what to play, e.g. `%splay never gonna give you up`.", h.prefix))
	}

	voiceChannelID, ok := h.voiceState.VoiceChannelOf(guildID, userID)
	if !ok {
		return replyError(s, m.ChannelID, "You need to be in a voice channel to play music.")
	}

	ctx := context.Background()
	track, err := h.resolver.Resolve(ctx, query)
	if err != nil {
		if errors.Is(err, ports.ErrNoMatch) {
			return replyError(s, m.ChannelID, fmt.Sprintf("No results found for `%s`.", query))
		}
		return replyError(s, m.ChannelID, "Could not resolve that query, try again in a moment.")
	}

	if err := h.playback.Play(ctx, guildID, voiceChannelID, textChannelID, *track); err != nil {
		if errors.Is(err, usecases.ErrConnectFailed) {
			return replyError(s, m.ChannelID, "Could not join your voice channel.")
		}
		return replyError(s, m.ChannelID, "Could not start playback.")
	}
	return nil
}

// requireVoice parses the guild and checks the invoker is in a voice
// channel. Control commands mutate the session only for users who are
// actually listening.
func (h *Handlers) requireVoice(s *discordgo.Session, m *discordgo.MessageCreate) (snowflake.ID, bool) {
	guildID, err := snowflake.Parse(m.GuildID)
	if err != nil {
		replyError(s, m.ChannelID, "Invalid guild")
		return 0, false
	}
	userID, err := snowflake.Parse(m.Author.ID)
	if err != nil {
		replyError(s, m.ChannelID, "Invalid user")
		return 0, false
	}
	if _, ok := h.voiceState.VoiceChannelOf(guildID, userID); !ok {
		replyError(s, m.ChannelID, "You need to be in a voice channel to control playback.")
		return 0, false
	}
	return guildID, true
}

// HandleSkip handles the skip command.
func (h *Handlers) HandleSkip(s *discordgo.Session, m *discordgo.MessageCreate, _ []string) error {
	guildID, ok := h.requireVoice(s, m)
	if !ok {
		return nil
	}
	if err := h.playback.Skip(guildID); err != nil {
		return replyError(s, m.ChannelID, playbackErrorText(err))
	}
	return replySuccess(s, m.ChannelID, "Track skipped.")
}

// HandlePause handles the pause command.
func (h *Handlers) HandlePause(s *discordgo.Session, m *discordgo.MessageCreate, _ []string) error {
	guildID, ok := h.requireVoice(s, m)
	if !ok {
		return nil
	}
	if err := h.playback.Pause(guildID); err != nil {
		return replyError(s, m.ChannelID, playbackErrorText(err))
	}
	return replySuccess(s, m.ChannelID, "Playback paused.")
}

// HandleResume handles the resume command.
func (h *Handlers) HandleResume(s *discordgo.Session, m *discordgo.MessageCreate, _ []string) error {
	guildID, ok := h.requireVoice(s, m)
	if !ok {
		return nil
	}
	if err := h.playback.Resume(guildID); err != nil {
		return replyError(s, m.ChannelID, playbackErrorText(err))
	}
	return replySuccess(s, m.ChannelID, "Playback resumed.")
}

// HandleStop handles the stop command.
func (h *Handlers) HandleStop(s *discordgo.Session, m *discordgo.MessageCreate, _ []string) error {
	guildID, ok := h.requireVoice(s, m)
	if !ok {
		return nil
	}
	if err := h.playback.Stop(guildID); err != nil {
		return replyError(s, m.ChannelID, playbackErrorText(err))
	}
	return replySuccess(s, m.ChannelID, "Playback stopped and queue cleared.")
}

// HandleQueue handles the queue command.
func (h *Handlers) HandleQueue(s *discordgo.Session, m *discordgo.MessageCreate, _ []string) error {
	guildID, err := snowflake.Parse(m.GuildID)
	if err != nil {
		return replyError(s, m.ChannelID, "Invalid guild")
	}
	sess, ok := h.registry.Get(guildID)
	if !ok {
		return replyError(s, m.ChannelID, "Nothing is playing.")
	}

	tracks := sess.QueuedTracks()
	if len(tracks) == 0 {
		return replyError(s, m.ChannelID, "Nothing is playing.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "**Now playing:** %s\n", tracks[0].DisplayName)
	upcoming := tracks[1:]
	if len(upcoming) == 0 {
		b.WriteString("The queue is empty.")
	} else {
		for i, track := range upcoming {
			if i == maxQueuePreview {
				fmt.Fprintf(&b, "… and %d more", len(upcoming)-maxQueuePreview)
				break
			}
			fmt.Fprintf(&b, "%d. %s\n", i+1, track.DisplayName)
		}
	}

	_, err = s.ChannelMessageSendEmbed(m.ChannelID, &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: b.String(),
		Color:       colorInfo,
	})
	return err
}

// HandleHelp handles the help command. It also serves messages that
// are a bare command prefix.
func (h *Handlers) HandleHelp(s *discordgo.Session, m *discordgo.MessageCreate, _ []string) error {
	commands := commandList(h.prefix)
	fields := make([]*discordgo.MessageEmbedField, 0, len(commands))
	for _, cmd := range commands {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  cmd.Usage,
			Value: cmd.Description,
		})
	}

	_, err := s.ChannelMessageSendEmbed(m.ChannelID, &discordgo.MessageEmbed{
		Title:       "Music commands",
		Description: "Play audio from YouTube, Spotify links, or direct stream URLs in your voice channel.",
		Color:       colorInfo,
		Fields:      fields,
	})
	return err
}

// playbackErrorText maps use case errors to user-facing replies.
func playbackErrorText(err error) string {
	switch {
	case errors.Is(err, usecases.ErrNothingPlaying):
		return "Nothing is playing."
	case errors.Is(err, usecases.ErrAlreadyPaused):
		return "Playback is already paused."
	case errors.Is(err, usecases.ErrNotPaused):
		return "Playback is not paused."
	default:
		return "Something went wrong."
	}
}

func replySuccess(s *discordgo.Session, channelID, text string) error {
	_, err := s.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Description: text,
		Color:       colorSuccess,
	})
	return err
}

func replyError(s *discordgo.Session, channelID, text string) error {
	_, err := s.ChannelMessageSendEmbed(channelID, &discordgo.MessageEmbed{
		Description: text,
		Color:       colorError,
	})
	return err
}
