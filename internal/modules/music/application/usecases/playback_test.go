package usecases

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"

	"github.com/evgpopov/muza/internal/modules/music/domain"
)

const (
	testGuildID = snowflake.ID(100)
	testVoiceID = snowflake.ID(200)
	testTextID  = snowflake.ID(300)
)

func startPlayback(t *testing.T, f *playbackFixture, name string) {
	t.Helper()
	if err := f.service.Play(context.Background(), testGuildID, testVoiceID, testTextID, testTrack(name)); err != nil {
		t.Fatalf("Play(%q) error = %v", name, err)
	}
}

func TestPlaybackService_PlayStartsSession(t *testing.T) {
	f := newPlaybackFixture(t)
	startPlayback(t, f, "a")

	sess, ok := f.registry.Get(testGuildID)
	if !ok {
		t.Fatal("no session registered after Play")
	}
	if got := sess.State(); got != domain.StateActive {
		t.Errorf("State() = %v, want %v", got, domain.StateActive)
	}
	track, ok := sess.CurrentTrack()
	if !ok || track.DisplayName != "a" {
		t.Errorf("CurrentTrack() = %v, %v, want track a", track, ok)
	}
	if f.publisher.startedCount() != 1 {
		t.Errorf("started events = %d, want 1", f.publisher.startedCount())
	}
}

func TestPlaybackService_PlayAppendsToExistingSession(t *testing.T) {
	f := newPlaybackFixture(t)
	startPlayback(t, f, "a")
	startPlayback(t, f, "b")

	sess, _ := f.registry.Get(testGuildID)
	if got := sess.QueueLen(); got != 2 {
		t.Errorf("QueueLen() = %d, want 2", got)
	}
	if f.publisher.startedCount() != 1 {
		t.Errorf("started events = %d, want 1 (second track only queued)", f.publisher.startedCount())
	}
	if f.publisher.enqueuedCount() != 1 {
		t.Errorf("enqueued events = %d, want 1", f.publisher.enqueuedCount())
	}
	if f.transport.conn(0).playCount() != 1 {
		t.Errorf("Play calls on connection = %d, want 1", f.transport.conn(0).playCount())
	}
}

func TestPlaybackService_QueueWalksToCompletion(t *testing.T) {
	f := newPlaybackFixture(t)
	startPlayback(t, f, "a")
	startPlayback(t, f, "b")
	startPlayback(t, f, "c")

	conn := f.transport.conn(0)

	conn.playerAt(0).finish(nil)
	waitUntil(t, func() bool { return f.publisher.startedCount() == 2 }, "track b started")
	event, _ := f.publisher.startedAt(1)
	if event.Track.DisplayName != "b" {
		t.Errorf("second started track = %q, want b", event.Track.DisplayName)
	}

	conn.playerAt(1).finish(nil)
	waitUntil(t, func() bool { return f.publisher.startedCount() == 3 }, "track c started")

	conn.playerAt(2).finish(nil)
	waitUntil(t, func() bool { return f.publisher.closedCount() == 1 }, "session closed")

	closed, _ := f.publisher.closedAt(0)
	if closed.Reason != domain.CloseDrained {
		t.Errorf("close reason = %v, want %v", closed.Reason, domain.CloseDrained)
	}
	if !conn.isClosed() {
		t.Error("voice connection not closed after drain")
	}
	if _, ok := f.registry.Get(testGuildID); ok {
		t.Error("drained session still registered")
	}
}

func TestPlaybackService_SkipAdvances(t *testing.T) {
	f := newPlaybackFixture(t)
	startPlayback(t, f, "a")
	startPlayback(t, f, "b")

	if err := f.service.Skip(testGuildID); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	waitUntil(t, func() bool { return f.publisher.startedCount() == 2 }, "track b started")

	event, _ := f.publisher.startedAt(1)
	if event.Track.DisplayName != "b" {
		t.Errorf("started track after skip = %q, want b", event.Track.DisplayName)
	}
}

func TestPlaybackService_SkipLastTrackClosesSession(t *testing.T) {
	f := newPlaybackFixture(t)
	startPlayback(t, f, "a")

	if err := f.service.Skip(testGuildID); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	waitUntil(t, func() bool { return f.publisher.closedCount() == 1 }, "session closed")

	closed, _ := f.publisher.closedAt(0)
	if closed.Reason != domain.CloseDrained {
		t.Errorf("close reason = %v, want %v", closed.Reason, domain.CloseDrained)
	}
}

func TestPlaybackService_SkipRacingNaturalEndPopsOnce(t *testing.T) {
	f := newPlaybackFixture(t)
	startPlayback(t, f, "a")
	startPlayback(t, f, "b")
	startPlayback(t, f, "c")

	conn := f.transport.conn(0)
	first := conn.playerAt(0)

	// Skip pops track a and stops its player; the Stop completes the
	// player's Done channel, so the watcher observes a terminal result
	// for a track that skip already accounted for. The stale result
	// must not pop track b.
	if err := f.service.Skip(testGuildID); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	first.finish(nil)

	waitUntil(t, func() bool { return f.publisher.startedCount() == 2 }, "track b started")
	event, _ := f.publisher.startedAt(1)
	if event.Track.DisplayName != "b" {
		t.Errorf("started track after skip = %q, want b (stale terminal result double-popped)", event.Track.DisplayName)
	}

	sess, _ := f.registry.Get(testGuildID)
	waitUntil(t, func() bool { return sess.QueueLen() == 2 }, "queue settled at two tracks")
}

func TestPlaybackService_EnqueueDuringDrainKeepsSessionAlive(t *testing.T) {
	f := newPlaybackFixture(t)
	startPlayback(t, f, "a")

	sess, _ := f.registry.Get(testGuildID)

	// Reproduce the drain window: the terminal result for the last
	// track has been accounted for and the lock released, but a
	// concurrent Play appends track b before teardown runs. The
	// acknowledged enqueue must play instead of being discarded.
	sess.mu.Lock()
	sess.generation++
	sess.queue.Pop()
	sess.player = nil
	sess.queue.Append(testTrack("b"))
	sess.mu.Unlock()

	f.service.closeSession(sess, domain.CloseDrained)

	waitUntil(t, func() bool { return f.publisher.startedCount() == 2 }, "track b started")
	event, _ := f.publisher.startedAt(1)
	if event.Track.DisplayName != "b" {
		t.Errorf("started track = %q, want b", event.Track.DisplayName)
	}
	if f.publisher.closedCount() != 0 {
		t.Errorf("closed events = %d, want 0 (session must survive the late enqueue)", f.publisher.closedCount())
	}
	if _, ok := f.registry.Get(testGuildID); !ok {
		t.Error("session was removed from the registry")
	}
}

func TestPlaybackService_SkipKeepsStateActiveWhileAdvancing(t *testing.T) {
	f := newPlaybackFixture(t)
	startPlayback(t, f, "a")
	startPlayback(t, f, "b")

	sess, _ := f.registry.Get(testGuildID)

	// Hold the next acquisition open so the window between popping a
	// and starting b is observable. The session advances to the next
	// track without passing through the teardown state.
	gate := make(chan struct{})
	f.fetcher.setGate(gate)

	if err := f.service.Skip(testGuildID); err != nil {
		t.Fatalf("Skip() error = %v", err)
	}
	waitUntil(t, func() bool { return f.fetcher.callCount() == 2 }, "acquisition for track b in flight")

	if got := sess.State(); got == domain.StateDraining {
		t.Errorf("State() during advance = %v, want a playable state", got)
	}

	close(gate)
	waitUntil(t, func() bool { return f.publisher.startedCount() == 2 }, "track b started")
	if got := sess.State(); got != domain.StateActive {
		t.Errorf("State() after advance = %v, want %v", got, domain.StateActive)
	}
}

func TestPlaybackService_PauseAndResume(t *testing.T) {
	f := newPlaybackFixture(t)
	startPlayback(t, f, "a")

	if err := f.service.Pause(testGuildID); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	sess, _ := f.registry.Get(testGuildID)
	if sess.State() != domain.StatePaused {
		t.Errorf("State() = %v, want %v", sess.State(), domain.StatePaused)
	}
	if !f.transport.conn(0).playerAt(0).isPaused() {
		t.Error("player not paused")
	}
	if err := f.service.Pause(testGuildID); !errors.Is(err, ErrAlreadyPaused) {
		t.Errorf("second Pause() error = %v, want ErrAlreadyPaused", err)
	}

	if err := f.service.Resume(testGuildID); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}
	if sess.State() != domain.StateActive {
		t.Errorf("State() after resume = %v, want %v", sess.State(), domain.StateActive)
	}
	if err := f.service.Resume(testGuildID); !errors.Is(err, ErrNotPaused) {
		t.Errorf("second Resume() error = %v, want ErrNotPaused", err)
	}
	if f.publisher.statusCount() != 2 {
		t.Errorf("status events = %d, want 2", f.publisher.statusCount())
	}
}

func TestPlaybackService_TogglePause(t *testing.T) {
	f := newPlaybackFixture(t)
	startPlayback(t, f, "a")

	paused, err := f.service.TogglePause(testGuildID)
	if err != nil || !paused {
		t.Fatalf("TogglePause() = %v, %v, want true, nil", paused, err)
	}
	paused, err = f.service.TogglePause(testGuildID)
	if err != nil || paused {
		t.Fatalf("TogglePause() = %v, %v, want false, nil", paused, err)
	}
}

func TestPlaybackService_StopClosesSession(t *testing.T) {
	f := newPlaybackFixture(t)
	startPlayback(t, f, "a")
	startPlayback(t, f, "b")

	if err := f.service.Stop(testGuildID); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	closed, ok := f.publisher.closedAt(0)
	if !ok {
		t.Fatal("no closed event after Stop")
	}
	if closed.Reason != domain.CloseStopped {
		t.Errorf("close reason = %v, want %v", closed.Reason, domain.CloseStopped)
	}
	if !f.transport.conn(0).isClosed() {
		t.Error("voice connection not closed")
	}
	if err := f.service.Stop(testGuildID); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("second Stop() error = %v, want ErrNothingPlaying", err)
	}
}

func TestPlaybackService_OpsWithoutSession(t *testing.T) {
	f := newPlaybackFixture(t)
	if err := f.service.Pause(testGuildID); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("Pause() error = %v, want ErrNothingPlaying", err)
	}
	if err := f.service.Resume(testGuildID); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("Resume() error = %v, want ErrNothingPlaying", err)
	}
	if err := f.service.Skip(testGuildID); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("Skip() error = %v, want ErrNothingPlaying", err)
	}
	if err := f.service.Stop(testGuildID); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("Stop() error = %v, want ErrNothingPlaying", err)
	}
}

func TestPlaybackService_ConnectFailureClosesSession(t *testing.T) {
	f := newPlaybackFixture(t)
	f.transport.connectErr = errors.New("gateway timeout")

	err := f.service.Play(context.Background(), testGuildID, testVoiceID, testTextID, testTrack("a"))
	if !errors.Is(err, ErrConnectFailed) {
		t.Fatalf("Play() error = %v, want ErrConnectFailed", err)
	}
	if _, ok := f.registry.Get(testGuildID); ok {
		t.Error("failed session still registered")
	}
	closed, ok := f.publisher.closedAt(0)
	if !ok {
		t.Fatal("no closed event after connect failure")
	}
	if closed.Reason != domain.CloseConnectFailed {
		t.Errorf("close reason = %v, want %v", closed.Reason, domain.CloseConnectFailed)
	}
}

func TestPlaybackService_UnplayableTrackDroppedQueueContinues(t *testing.T) {
	f := newPlaybackFixture(t)
	// Track b exhausts its attempt budget; a and c fetch fine.
	f.fetcher.failNames = map[string]bool{"b": true}

	startPlayback(t, f, "a")
	startPlayback(t, f, "b")
	startPlayback(t, f, "c")

	conn := f.transport.conn(0)
	conn.playerAt(0).finish(nil)

	waitUntil(t, func() bool { return f.publisher.failedCount() == 1 }, "unplayable track reported")
	waitUntil(t, func() bool { return f.publisher.startedCount() == 2 }, "track c started")

	event, _ := f.publisher.startedAt(1)
	if event.Track.DisplayName != "c" {
		t.Errorf("started track after drop = %q, want c", event.Track.DisplayName)
	}
}

func TestPlaybackService_AllTracksUnplayableDrainsSession(t *testing.T) {
	f := newPlaybackFixture(t)
	f.fetcher.failAll = true

	err := f.service.Play(context.Background(), testGuildID, testVoiceID, testTextID, testTrack("a"))
	if err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	waitUntil(t, func() bool { return f.publisher.closedCount() == 1 }, "session closed")
	if f.publisher.failedCount() != 1 {
		t.Errorf("failed events = %d, want 1", f.publisher.failedCount())
	}
	closed, _ := f.publisher.closedAt(0)
	if closed.Reason != domain.CloseDrained {
		t.Errorf("close reason = %v, want %v", closed.Reason, domain.CloseDrained)
	}
}

func TestPlaybackService_StopAbortsPendingRetries(t *testing.T) {
	f := newPlaybackFixture(t)
	registry := NewSessionRegistry()
	fetcher := &fakeFetcher{failAll: true}
	f.service = NewPlaybackService(PlaybackServiceParams{
		Registry:  registry,
		Acquirer:  NewStreamAcquirer(fetcher, 3, time.Hour, nil),
		Transport: f.transport,
		Publisher: f.publisher,
	})
	f.registry = registry

	done := make(chan error, 1)
	go func() {
		done <- f.service.Play(context.Background(), testGuildID, testVoiceID, testTextID, testTrack("a"))
	}()

	waitUntil(t, func() bool { return fetcher.callCount() == 1 }, "first fetch attempt")
	waitUntil(t, func() bool {
		_, ok := registry.Get(testGuildID)
		return ok
	}, "session registered")

	if err := f.service.Stop(testGuildID); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Play() error = %v, want nil after stop aborted retries", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Play did not return after Stop cancelled the retry delay")
	}
}

func TestPlaybackService_IdleTimeoutClosesPausedSession(t *testing.T) {
	registry := NewSessionRegistry()
	transport := &fakeTransport{}
	fetcher := &fakeFetcher{}
	publisher := &fakePublisher{}
	service := NewPlaybackService(PlaybackServiceParams{
		Registry:    registry,
		Acquirer:    NewStreamAcquirer(fetcher, 3, time.Millisecond, nil),
		Transport:   transport,
		Publisher:   publisher,
		IdleTimeout: 20 * time.Millisecond,
	})

	if err := service.Play(context.Background(), testGuildID, testVoiceID, testTextID, testTrack("a")); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if err := service.Pause(testGuildID); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}

	waitUntil(t, func() bool { return publisher.closedCount() == 1 }, "idle session closed")
	closed, _ := publisher.closedAt(0)
	if closed.Reason != domain.CloseIdle {
		t.Errorf("close reason = %v, want %v", closed.Reason, domain.CloseIdle)
	}
}

func TestPlaybackService_ResumeDisarmsIdleTimeout(t *testing.T) {
	registry := NewSessionRegistry()
	transport := &fakeTransport{}
	fetcher := &fakeFetcher{}
	publisher := &fakePublisher{}
	service := NewPlaybackService(PlaybackServiceParams{
		Registry:    registry,
		Acquirer:    NewStreamAcquirer(fetcher, 3, time.Millisecond, nil),
		Transport:   transport,
		Publisher:   publisher,
		IdleTimeout: 30 * time.Millisecond,
	})

	if err := service.Play(context.Background(), testGuildID, testVoiceID, testTextID, testTrack("a")); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	if err := service.Pause(testGuildID); err != nil {
		t.Fatalf("Pause() error = %v", err)
	}
	if err := service.Resume(testGuildID); err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	time.Sleep(60 * time.Millisecond)
	if publisher.closedCount() != 0 {
		t.Error("resumed session was closed by the idle timeout")
	}
}

func TestPlaybackService_ShutdownClosesAllSessions(t *testing.T) {
	f := newPlaybackFixture(t)
	startPlayback(t, f, "a")

	otherGuild := snowflake.ID(999)
	if err := f.service.Play(context.Background(), otherGuild, testVoiceID, testTextID, testTrack("b")); err != nil {
		t.Fatalf("Play() error = %v", err)
	}

	if err := f.service.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if f.registry.Count() != 0 {
		t.Errorf("Count() after shutdown = %d, want 0", f.registry.Count())
	}
	if f.publisher.closedCount() != 2 {
		t.Errorf("closed events = %d, want 2", f.publisher.closedCount())
	}
	closed, _ := f.publisher.closedAt(0)
	if closed.Reason != domain.CloseShutdown {
		t.Errorf("close reason = %v, want %v", closed.Reason, domain.CloseShutdown)
	}
}
