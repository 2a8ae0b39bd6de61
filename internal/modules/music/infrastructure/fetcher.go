package infrastructure

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os/exec"
	"sync"
	"time"

	"github.com/lrstanley/go-ytdlp"

	"github.com/evgpopov/muza/internal/modules/music/application/ports"
	"github.com/evgpopov/muza/internal/modules/music/domain"
)

const directFetchTimeout = 30 * time.Second

var _ ports.StreamFetcher = (*MediaFetcher)(nil)

// MediaFetcher obtains audio byte streams: direct URLs are fetched
// over HTTP, everything else goes through yt-dlp piping bestaudio to
// stdout.
type MediaFetcher struct {
	client *http.Client
	logger *slog.Logger
}

func NewMediaFetcher(logger *slog.Logger) *MediaFetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &MediaFetcher{
		client: &http.Client{Timeout: 0},
		logger: logger,
	}
}

func (f *MediaFetcher) Fetch(ctx context.Context, track *domain.Track) (io.ReadCloser, error) {
	switch track.Source {
	case domain.SourceDirectStream:
		return f.fetchDirect(ctx, track.PlayableURI)
	default:
		return f.fetchMedia(ctx, track.PlayableURI)
	}
}

func (f *MediaFetcher) fetchDirect(ctx context.Context, uri string) (io.ReadCloser, error) {
	reqCtx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, uri, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("building stream request: %w", err)
	}
	// The timeout covers connection establishment and response headers
	// only. The request context must stay live while the body is read
	// for the length of the track, so the deadline is a timer that is
	// disarmed once headers arrive and the context is cancelled by
	// Close instead.
	connectTimer := time.AfterFunc(directFetchTimeout, cancel)
	resp, err := f.client.Do(req)
	connectTimer.Stop()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("fetching direct stream: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("direct stream returned status %d", resp.StatusCode)
	}
	return &directStream{body: resp.Body, cancel: cancel}, nil
}

// directStream keeps the request context alive until the body is
// closed.
type directStream struct {
	body   io.ReadCloser
	cancel context.CancelFunc
}

func (s *directStream) Read(p []byte) (int, error) {
	return s.body.Read(p)
}

func (s *directStream) Close() error {
	err := s.body.Close()
	s.cancel()
	return err
}

// fetchMedia spawns yt-dlp writing bestaudio to stdout and hands the
// pipe to the caller. Closing the returned stream kills the process.
func (f *MediaFetcher) fetchMedia(ctx context.Context, uri string) (io.ReadCloser, error) {
	cmd := ytdlp.New().
		Quiet().
		NoWarnings().
		Format("bestaudio[ext=webm]/bestaudio[ext=m4a]/bestaudio/best").
		Output("-").
		NoSimulate().
		NoPart().
		NoPlaylist().
		NoCheckCertificates().
		BuildCommand(ctx, uri)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("opening yt-dlp stdout: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting yt-dlp: %w", err)
	}
	f.logger.Debug("yt-dlp stream started", "pid", cmd.Process.Pid, "uri", uri)

	return &processStream{cmd: cmd, pipe: stdout, stderr: &stderr, logger: f.logger}, nil
}

// processStream wraps a child process's stdout; Close reaps the
// process so no yt-dlp instance outlives its playback.
type processStream struct {
	cmd    *exec.Cmd
	pipe   io.ReadCloser
	stderr *bytes.Buffer
	logger *slog.Logger

	closeOnce sync.Once
}

func (s *processStream) Read(p []byte) (int, error) {
	n, err := s.pipe.Read(p)
	if err != nil && err != io.EOF && s.stderr.Len() > 0 {
		s.logger.Warn("yt-dlp reported errors", "stderr", s.stderr.String())
	}
	return n, err
}

func (s *processStream) Close() error {
	s.closeOnce.Do(func() {
		s.pipe.Close()
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		s.cmd.Wait()
	})
	return nil
}
