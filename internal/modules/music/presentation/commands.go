package presentation

// commandInfo describes one text command for the help listing.
type commandInfo struct {
	Name        string
	Usage       string
	Description string
}

// commandList returns the music commands in help display order.
func commandList(prefix string) []commandInfo {
	return []commandInfo{
		{
			Name:        "play",
			Usage:       prefix + "play <url or search terms>",
			Description: "Play a track, or add it to the queue if something is already playing. Accepts YouTube links, Spotify track links, direct audio URLs, and free-text search.",
		},
		{
			Name:        "skip",
			Usage:       prefix + "skip",
			Description: "Skip the current track.",
		},
		{
			Name:        "pause",
			Usage:       prefix + "pause",
			Description: "Pause the current track.",
		},
		{
			Name:        "resume",
			Usage:       prefix + "resume",
			Description: "Resume a paused track.",
		},
		{
			Name:        "queue",
			Usage:       prefix + "queue",
			Description: "Show the tracks waiting in the queue.",
		},
		{
			Name:        "stop",
			Usage:       prefix + "stop",
			Description: "Stop playback, clear the queue, and leave the voice channel.",
		},
		{
			Name:        "help",
			Usage:       prefix + "help",
			Description: "Show this message.",
		},
	}
}
