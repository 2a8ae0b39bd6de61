package infrastructure

import (
	"github.com/bwmarrin/discordgo"
	"github.com/disgoorg/snowflake/v2"

	"github.com/evgpopov/muza/internal/modules/music/application/ports"
)

var _ ports.VoiceStateProvider = (*DiscordVoiceStateProvider)(nil)

// DiscordVoiceStateProvider reads voice states from the gateway
// session's state cache.
type DiscordVoiceStateProvider struct {
	session *discordgo.Session
}

func NewDiscordVoiceStateProvider(session *discordgo.Session) *DiscordVoiceStateProvider {
	return &DiscordVoiceStateProvider{session: session}
}

// VoiceChannelOf returns the voice channel the user currently occupies
// in the guild, reporting false when the user is not in voice.
func (v *DiscordVoiceStateProvider) VoiceChannelOf(guildID, userID snowflake.ID) (snowflake.ID, bool) {
	guild, err := v.session.State.Guild(guildID.String())
	if err != nil {
		return 0, false
	}
	for _, vs := range guild.VoiceStates {
		if vs.UserID == userID.String() && vs.ChannelID != "" {
			channelID, err := snowflake.Parse(vs.ChannelID)
			if err != nil {
				return 0, false
			}
			return channelID, true
		}
	}
	return 0, false
}
