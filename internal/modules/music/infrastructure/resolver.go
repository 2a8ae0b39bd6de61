package infrastructure

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/ppalone/ytsearch"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/time/rate"

	"github.com/evgpopov/muza/internal/modules/music/application/ports"
	"github.com/evgpopov/muza/internal/modules/music/domain"
)

var _ ports.Resolver = (*TrackResolver)(nil)

// directAudioExtensions are URL path suffixes treated as raw audio
// streams that can be fetched without yt-dlp.
var directAudioExtensions = map[string]bool{
	".mp3":  true,
	".m4a":  true,
	".aac":  true,
	".ogg":  true,
	".opus": true,
	".wav":  true,
	".flac": true,
	".webm": true,
}

// TrackResolver classifies user queries and resolves them to playable
// tracks: Spotify links are looked up and re-searched on YouTube,
// YouTube links have their title resolved, direct audio URLs pass
// through, and anything else becomes a YouTube search.
type TrackResolver struct {
	spotify *spotify.Client
	search  *ytsearch.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// TrackResolverConfig carries the optional Spotify credentials. When
// either is empty, Spotify links are rejected at resolve time.
type TrackResolverConfig struct {
	SpotifyClientID     string
	SpotifyClientSecret string
}

func NewTrackResolver(ctx context.Context, cfg TrackResolverConfig, logger *slog.Logger) *TrackResolver {
	if logger == nil {
		logger = slog.Default()
	}
	resolver := &TrackResolver{
		search:  ytsearch.NewClient(nil),
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
		logger:  logger,
	}
	if cfg.SpotifyClientID != "" && cfg.SpotifyClientSecret != "" {
		creds := &clientcredentials.Config{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			TokenURL:     spotifyauth.TokenURL,
		}
		resolver.spotify = spotify.New(creds.Client(ctx))
	}
	return resolver
}

func (r *TrackResolver) Resolve(ctx context.Context, query string) (*domain.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ports.ErrNoMatch
	}
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	switch {
	case spotifyTrackID(query) != "":
		return r.resolveSpotify(ctx, spotifyTrackID(query))
	case isDirectAudioURL(query):
		return directTrack(query), nil
	case isYouTubeURL(query):
		return r.resolveYouTube(ctx, query)
	default:
		return r.searchTop(ctx, query, "")
	}
}

// resolveSpotify looks the track up on Spotify for its name and artist,
// then finds a playable counterpart on YouTube.
func (r *TrackResolver) resolveSpotify(ctx context.Context, trackID string) (*domain.Track, error) {
	if r.spotify == nil {
		return nil, fmt.Errorf("spotify links require SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET")
	}
	full, err := r.spotify.GetTrack(ctx, spotify.ID(trackID))
	if err != nil {
		return nil, fmt.Errorf("looking up spotify track: %w", err)
	}

	artist := ""
	if len(full.Artists) > 0 {
		artist = full.Artists[0].Name
	}
	searchQuery := full.Name
	display := full.Name
	if artist != "" {
		searchQuery = full.Name + " " + artist
		display = artist + " - " + full.Name
	}
	return r.searchTop(ctx, searchQuery, display)
}

// resolveYouTube keeps the URL as the playable URI and asks yt-dlp for
// the title. A title lookup failure is not fatal; the URL itself is a
// serviceable display name.
func (r *TrackResolver) resolveYouTube(ctx context.Context, rawURL string) (*domain.Track, error) {
	display := rawURL
	result, err := ytdlp.New().
		Quiet().
		NoWarnings().
		SkipDownload().
		NoPlaylist().
		Print("%(title)s").
		Run(ctx, rawURL)
	if err != nil {
		r.logger.Warn("title lookup failed, using URL as display name", "url", rawURL, "error", err)
	} else if title := strings.TrimSpace(result.Stdout); title != "" {
		display = title
	}
	return &domain.Track{
		DisplayName: display,
		PlayableURI: rawURL,
		Source:      domain.SourceStandard,
	}, nil
}

// searchTop resolves a free-text query to the first YouTube search hit.
// display overrides the hit's title when non-empty.
func (r *TrackResolver) searchTop(ctx context.Context, query, display string) (*domain.Track, error) {
	result, err := r.search.Search(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("searching for %q: %w", query, err)
	}
	if len(result.Results) == 0 {
		return nil, fmt.Errorf("%w: %q", ports.ErrNoMatch, query)
	}
	hit := result.Results[0]
	if display == "" {
		display = hit.Title
	}
	return &domain.Track{
		DisplayName: display,
		PlayableURI: "https://www.youtube.com/watch?v=" + hit.VideoID,
		Source:      domain.SourceStandard,
	}, nil
}

// spotifyTrackID extracts the track ID from a Spotify track URL or
// spotify:track: URI, returning "" for anything else.
func spotifyTrackID(input string) string {
	if id, ok := strings.CutPrefix(input, "spotify:track:"); ok {
		return id
	}
	if !strings.Contains(input, "open.spotify.com") || !strings.Contains(input, "/track/") {
		return ""
	}
	parts := strings.Split(input, "/track/")
	id := strings.Split(parts[len(parts)-1], "?")[0]
	return strings.TrimRight(id, "/")
}

func isDirectAudioURL(input string) bool {
	u, err := url.Parse(input)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	return directAudioExtensions[strings.ToLower(path.Ext(u.Path))]
}

func isYouTubeURL(input string) bool {
	u, err := url.Parse(input)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	switch host {
	case "youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be":
		return true
	}
	return false
}

// directTrack builds a pass-through track for a raw audio URL, using
// the file name as the display name.
func directTrack(rawURL string) *domain.Track {
	display := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "/" && base != "." {
			display = base
		}
	}
	return &domain.Track{
		DisplayName: display,
		PlayableURI: rawURL,
		Source:      domain.SourceDirectStream,
	}
}
