package presentation

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/evgpopov/muza/internal/bot"
	"github.com/evgpopov/muza/internal/modules/music/application/usecases"
)

// HandlePauseResumeButton toggles playback from the now-playing
// message's pause button. The button label flips through the control
// surface edit, so the acknowledgment is ephemeral.
func (h *Handlers) HandlePauseResumeButton(_ *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return r.RespondEphemeral("Invalid guild")
	}
	paused, err := h.playback.TogglePause(guildID)
	if err != nil {
		return r.RespondEphemeral(playbackErrorText(err))
	}
	if paused {
		return r.RespondEphemeral("Playback paused.")
	}
	return r.RespondEphemeral("Playback resumed.")
}

// HandleSkipButton skips the current track from the now-playing
// message.
func (h *Handlers) HandleSkipButton(_ *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return r.RespondEphemeral("Invalid guild")
	}
	if err := h.playback.Skip(guildID); err != nil {
		return r.RespondEphemeral(playbackErrorText(err))
	}
	return r.RespondEphemeral("Track skipped.")
}

// HandleStopButton stops playback from the now-playing message.
func (h *Handlers) HandleStopButton(_ *discordgo.Session, i *discordgo.InteractionCreate, r bot.Responder) error {
	guildID, err := snowflake.Parse(i.GuildID)
	if err != nil {
		return r.RespondEphemeral("Invalid guild")
	}
	if err := h.playback.Stop(guildID); err != nil {
		if errors.Is(err, usecases.ErrNothingPlaying) {
			return r.RespondEphemeral("Nothing is playing.")
		}
		return r.RespondEphemeral("Something went wrong.")
	}
	return r.RespondEphemeral("Playback stopped and queue cleared.")
}
