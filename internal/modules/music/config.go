package music

import "time"

// Config holds the music module configuration.
type Config struct {
	// SpotifyClientID and SpotifyClientSecret enable resolving Spotify
	// track links. Leaving them unset disables Spotify support.
	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`

	// ConnectTimeout bounds how long a voice connection may take to
	// become ready.
	ConnectTimeout time.Duration `env:"MUZA_CONNECT_TIMEOUT" envDefault:"30s"`

	// IdleTimeout tears a paused session down after this long without
	// a resume. Zero disables the timeout.
	IdleTimeout time.Duration `env:"MUZA_IDLE_TIMEOUT" envDefault:"5m"`

	// StreamAttempts is the fetch attempt budget per track.
	StreamAttempts int `env:"MUZA_STREAM_ATTEMPTS" envDefault:"3"`

	// StreamRetryDelay is the pause between fetch attempts.
	StreamRetryDelay time.Duration `env:"MUZA_STREAM_RETRY_DELAY" envDefault:"2s"`

	// Volume is the linear playback gain; 1.0 is unity.
	Volume float64 `env:"MUZA_VOLUME" envDefault:"1.0"`
}
