package usecases

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/evgpopov/muza/internal/modules/music/application/ports"
	"github.com/evgpopov/muza/internal/modules/music/domain"
)

func waitUntil(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached: %s", msg)
}

type fakeFetcher struct {
	mu        sync.Mutex
	calls     int
	fail      int // fail this many leading attempts
	failAll   bool
	failNames map[string]bool // fail every attempt for these tracks
	gate      chan struct{}   // when set, Fetch blocks until the gate closes
}

func (f *fakeFetcher) Fetch(_ context.Context, track *domain.Track) (io.ReadCloser, error) {
	f.mu.Lock()
	f.calls++
	fail := f.failAll || f.calls <= f.fail || f.failNames[track.DisplayName]
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if fail {
		return nil, errors.New("fetch failed")
	}
	return io.NopCloser(strings.NewReader(track.PlayableURI)), nil
}

func (f *fakeFetcher) setGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = gate
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePlayer struct {
	mu      sync.Mutex
	paused  bool
	stopped bool
	done    chan error
	once    sync.Once
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{done: make(chan error, 1)}
}

func (p *fakePlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = true
	return nil
}

func (p *fakePlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.paused = false
	return nil
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()
	p.finish(nil)
}

func (p *fakePlayer) Done() <-chan error { return p.done }

// finish simulates the end of the stream.
func (p *fakePlayer) finish(err error) {
	p.once.Do(func() {
		p.done <- err
		close(p.done)
	})
}

func (p *fakePlayer) isPaused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

type fakeConn struct {
	mu      sync.Mutex
	players []*fakePlayer
	closed  bool
	playErr error
}

func (c *fakeConn) Play(_ context.Context, stream io.ReadCloser, _ ports.PlayOptions) (ports.Player, error) {
	stream.Close()
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.playErr != nil {
		return nil, c.playErr
	}
	player := newFakePlayer()
	c.players = append(c.players, player)
	return player, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) playerAt(i int) *fakePlayer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i >= len(c.players) {
		return nil
	}
	return c.players[i]
}

func (c *fakeConn) playCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.players)
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

type fakeTransport struct {
	mu         sync.Mutex
	conns      []*fakeConn
	connectErr error
}

func (t *fakeTransport) Connect(_ context.Context, _, _ snowflake.ID) (ports.Connection, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connectErr != nil {
		return nil, t.connectErr
	}
	conn := &fakeConn{}
	t.conns = append(t.conns, conn)
	return conn, nil
}

func (t *fakeTransport) conn(i int) *fakeConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i >= len(t.conns) {
		return nil
	}
	return t.conns[i]
}

type fakePublisher struct {
	mu       sync.Mutex
	enqueued []domain.TrackEnqueuedEvent
	started  []domain.PlaybackStartedEvent
	status   []domain.PlaybackStatusChangedEvent
	failed   []domain.TrackFailedEvent
	closed   []domain.SessionClosedEvent
}

func (p *fakePublisher) PublishTrackEnqueued(e domain.TrackEnqueuedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enqueued = append(p.enqueued, e)
}

func (p *fakePublisher) PublishPlaybackStarted(e domain.PlaybackStartedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = append(p.started, e)
}

func (p *fakePublisher) PublishPlaybackStatusChanged(e domain.PlaybackStatusChangedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = append(p.status, e)
}

func (p *fakePublisher) PublishTrackFailed(e domain.TrackFailedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failed = append(p.failed, e)
}

func (p *fakePublisher) PublishSessionClosed(e domain.SessionClosedEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = append(p.closed, e)
}

func (p *fakePublisher) startedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.started)
}

func (p *fakePublisher) startedAt(i int) (domain.PlaybackStartedEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= len(p.started) {
		return domain.PlaybackStartedEvent{}, false
	}
	return p.started[i], true
}

func (p *fakePublisher) closedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.closed)
}

func (p *fakePublisher) closedAt(i int) (domain.SessionClosedEvent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= len(p.closed) {
		return domain.SessionClosedEvent{}, false
	}
	return p.closed[i], true
}

func (p *fakePublisher) failedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.failed)
}

func (p *fakePublisher) enqueuedCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.enqueued)
}

func (p *fakePublisher) statusCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.status)
}

func testTrack(name string) domain.Track {
	return domain.Track{
		DisplayName: name,
		PlayableURI: "https://example.com/" + name,
		Source:      domain.SourceStandard,
	}
}

type playbackFixture struct {
	service   *PlaybackService
	registry  *SessionRegistry
	transport *fakeTransport
	fetcher   *fakeFetcher
	publisher *fakePublisher
}

func newPlaybackFixture(t *testing.T) *playbackFixture {
	t.Helper()
	registry := NewSessionRegistry()
	transport := &fakeTransport{}
	fetcher := &fakeFetcher{}
	publisher := &fakePublisher{}
	service := NewPlaybackService(PlaybackServiceParams{
		Registry:  registry,
		Acquirer:  NewStreamAcquirer(fetcher, 3, time.Millisecond, nil),
		Transport: transport,
		Publisher: publisher,
	})
	return &playbackFixture{
		service:   service,
		registry:  registry,
		transport: transport,
		fetcher:   fetcher,
		publisher: publisher,
	}
}
