package usecases

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/evgpopov/muza/internal/modules/music/application/ports"
	"github.com/evgpopov/muza/internal/modules/music/domain"
)

const (
	defaultStreamAttempts   = 3
	defaultStreamRetryDelay = 2 * time.Second
)

// StreamAcquirer wraps a StreamFetcher with a bounded retry policy.
// Standard tracks get up to maxAttempts fetches spaced retryDelay
// apart; direct streams get a single attempt, since re-fetching an
// arbitrary URL is as likely to fail again as to recover.
type StreamAcquirer struct {
	fetcher     ports.StreamFetcher
	maxAttempts int
	retryDelay  time.Duration
	logger      *slog.Logger
}

func NewStreamAcquirer(fetcher ports.StreamFetcher, maxAttempts int, retryDelay time.Duration, logger *slog.Logger) *StreamAcquirer {
	if maxAttempts < 1 {
		maxAttempts = defaultStreamAttempts
	}
	if retryDelay < 0 {
		retryDelay = defaultStreamRetryDelay
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamAcquirer{
		fetcher:     fetcher,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		logger:      logger,
	}
}

// Acquire obtains a live stream for track, retrying per policy. It
// returns ctx.Err() when the context is cancelled mid-retry, and an
// error wrapping ErrStreamUnavailable when the attempt budget is
// exhausted.
func (a *StreamAcquirer) Acquire(ctx context.Context, track domain.Track) (io.ReadCloser, error) {
	attempts := a.maxAttempts
	if track.Source == domain.SourceDirectStream {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(a.retryDelay):
			}
		}

		stream, err := a.fetcher.Fetch(ctx, &track)
		if err == nil && stream != nil {
			return stream, nil
		}
		if err == nil {
			err = fmt.Errorf("fetcher returned no stream")
		}
		lastErr = err
		a.logger.Warn("stream fetch attempt failed",
			"track", track.DisplayName,
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", ErrStreamUnavailable, track.DisplayName, lastErr)
}
