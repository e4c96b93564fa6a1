package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/homesim-core/internal/home"
)

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recordingSink stores every batch it receives.
type recordingSink struct {
	mu      sync.Mutex
	batches map[string][][]home.Event
}

func newRecordingSink() *recordingSink {
	return &recordingSink{batches: make(map[string][][]home.Event)}
}

func (r *recordingSink) HandleEvents(_ context.Context, sessionID string, events []home.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches[sessionID] = append(r.batches[sessionID], events)
}

func (r *recordingSink) events(sessionID string) []home.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []home.Event
	for _, b := range r.batches[sessionID] {
		out = append(out, b...)
	}
	return out
}

func newTestManager(t *testing.T, cfg Config) (*Manager, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	cfg.Clock = clock.Now
	return NewManager(cfg), clock
}

func TestManager_CreateGetDelete(t *testing.T) {
	m, _ := newTestManager(t, Config{Seed: 1})
	ctx := context.Background()

	s, err := m.Create(ctx, "admin")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.ID() == "" || s.Owner() != "admin" {
		t.Errorf("session = %q/%q", s.ID(), s.Owner())
	}

	got, err := m.Get(s.ID())
	if err != nil || got != s {
		t.Fatalf("Get() = %v, %v", got, err)
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}

	var removed []string
	m.OnRemove(func(_ context.Context, id string) { removed = append(removed, id) })

	if err := m.Delete(ctx, s.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := m.Get(s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrSessionNotFound", err)
	}
	if err := m.Delete(ctx, s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Delete() error = %v, want ErrSessionNotFound", err)
	}
	if len(removed) != 1 || removed[0] != s.ID() {
		t.Errorf("OnRemove calls = %v", removed)
	}
}

func TestManager_MaxSessions(t *testing.T) {
	m, _ := newTestManager(t, Config{MaxSessions: 2})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := m.Create(ctx, "u"); err != nil {
			t.Fatalf("Create() #%d error = %v", i, err)
		}
	}
	if _, err := m.Create(ctx, "u"); !errors.Is(err, ErrTooManySessions) {
		t.Errorf("Create() error = %v, want ErrTooManySessions", err)
	}
	if st := m.Stats(); st.Sessions != 2 || st.MaxSessions != 2 || st.Created != 2 {
		t.Errorf("Stats() = %+v", st)
	}
}

func TestManager_CreateCancelledContext(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := m.Create(ctx, "u"); !errors.Is(err, context.Canceled) {
		t.Errorf("Create() error = %v, want context.Canceled", err)
	}
}

func TestManager_SessionsAreIsolated(t *testing.T) {
	m, _ := newTestManager(t, Config{Seed: 3})
	ctx := context.Background()
	a, _ := m.Create(ctx, "a")
	b, _ := m.Create(ctx, "b")

	err := m.Do(ctx, a.ID(), func(h *home.Home, _ home.Rand) error {
		return h.SetThermostat(25)
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	snapB, err := m.Snapshot(ctx, b.ID())
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snapB.Thermostat.Target != 22 {
		t.Errorf("session b thermostat = %d, want untouched 22", snapB.Thermostat.Target)
	}
}

func TestManager_DoDispatchesEvents(t *testing.T) {
	m, _ := newTestManager(t, Config{Seed: 5})
	sink := newRecordingSink()
	m.AddSink(sink)
	ctx := context.Background()
	s, _ := m.Create(ctx, "u")

	err := m.Do(ctx, s.ID(), func(h *home.Home, _ home.Rand) error {
		return h.SetThermostat(29)
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	events := sink.events(s.ID())
	if len(events) != 2 || events[0].Kind != home.EventActivity || events[1].Kind != home.EventAlert {
		t.Errorf("events = %+v, want activity then alert", events)
	}
}

func TestManager_DoReturnsHandlerError(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	sink := newRecordingSink()
	m.AddSink(sink)
	ctx := context.Background()
	s, _ := m.Create(ctx, "u")

	err := m.Do(ctx, s.ID(), func(h *home.Home, _ home.Rand) error {
		return h.SetFanSpeed(9)
	})
	if !errors.Is(err, home.ErrInvalidParameter) {
		t.Errorf("Do() error = %v, want ErrInvalidParameter", err)
	}
	if len(sink.events(s.ID())) != 0 {
		t.Error("rejected operation should dispatch nothing")
	}

	if err := m.Do(ctx, "missing", func(*home.Home, home.Rand) error { return nil }); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("Do() unknown session error = %v, want ErrSessionNotFound", err)
	}
}

func TestManager_SeededSessionsReplay(t *testing.T) {
	run := func() *home.Snapshot {
		m, _ := newTestManager(t, Config{Seed: 77})
		ctx := context.Background()
		s, _ := m.Create(ctx, "u")
		for i := 0; i < 50; i++ {
			if err := m.Tick(ctx, s.ID()); err != nil {
				t.Fatalf("Tick() error = %v", err)
			}
		}
		snap, _ := m.Snapshot(ctx, s.ID())
		return snap
	}

	a, b := run(), run()
	if a.Sensors != b.Sensors || a.Energy != b.Energy || a.Wifi != b.Wifi {
		t.Errorf("same seed diverged:\n%+v\n%+v", a, b)
	}
}

func TestManager_TickAllDoesNotRefreshActivity(t *testing.T) {
	m, clock := newTestManager(t, Config{Seed: 9, TTL: time.Minute})
	sink := newRecordingSink()
	m.AddSink(sink)
	ctx := context.Background()

	a, _ := m.Create(ctx, "a")
	b, _ := m.Create(ctx, "b")

	clock.Advance(30 * time.Second)
	if n := m.TickAll(ctx); n != 2 {
		t.Errorf("TickAll() = %d, want 2", n)
	}
	for _, id := range []string{a.ID(), b.ID()} {
		var ticks int
		for _, ev := range sink.events(id) {
			if ev.Kind == home.EventTick {
				ticks++
			}
		}
		if ticks != 1 {
			t.Errorf("session %s got %d tick events, want 1", id, ticks)
		}
	}

	// b is used, a only ticked.
	if _, err := m.Snapshot(ctx, b.ID()); err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	clock.Advance(45 * time.Second)
	m.TickAll(ctx)

	expired := m.ExpireIdle(ctx, clock.Now())
	if len(expired) != 1 || expired[0] != a.ID() {
		t.Errorf("ExpireIdle() = %v, want [%s]", expired, a.ID())
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestManager_PeekFuncDoesNotRefreshActivity(t *testing.T) {
	m, clock := newTestManager(t, Config{TTL: time.Minute})
	ctx := context.Background()
	s, _ := m.Create(ctx, "u")

	clock.Advance(50 * time.Second)
	var snap *home.Snapshot
	if err := m.PeekFunc(ctx, s.ID(), func(got *home.Snapshot) { snap = got }); err != nil {
		t.Fatalf("PeekFunc() error = %v", err)
	}
	if snap == nil || snap.Thermostat.Target == 0 {
		t.Error("PeekFunc() passed an empty snapshot")
	}

	clock.Advance(20 * time.Second)
	if expired := m.ExpireIdle(ctx, clock.Now()); len(expired) != 1 {
		t.Errorf("ExpireIdle() = %v, want the peeked session expired", expired)
	}
	called := false
	err := m.PeekFunc(ctx, s.ID(), func(*home.Snapshot) { called = true })
	if !errors.Is(err, ErrSessionNotFound) || called {
		t.Errorf("PeekFunc() after expiry: err = %v, called = %v", err, called)
	}
}

func TestManager_PeekFuncRunsBeforeRemovalCallbacks(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	ctx := context.Background()
	s, _ := m.Create(ctx, "u")

	var order []string
	m.OnRemove(func(context.Context, string) { order = append(order, "clear") })

	err := m.PeekFunc(ctx, s.ID(), func(*home.Snapshot) {
		if err := m.Delete(ctx, s.ID()); err != nil {
			t.Errorf("Delete() error = %v", err)
		}
		order = append(order, "publish")
	})
	if err != nil {
		t.Fatalf("PeekFunc() error = %v", err)
	}
	if len(order) != 2 || order[0] != "publish" || order[1] != "clear" {
		t.Errorf("order = %v, want [publish clear]", order)
	}
}

func TestManager_ExpireIdleDisabled(t *testing.T) {
	m, clock := newTestManager(t, Config{})
	ctx := context.Background()
	_, _ = m.Create(ctx, "u")

	clock.Advance(24 * time.Hour)
	if expired := m.ExpireIdle(ctx, clock.Now()); len(expired) != 0 {
		t.Errorf("ExpireIdle() with zero TTL = %v", expired)
	}
}

// journalSink mimics the audit journal: it stores a row per event and
// drops a session's rows when purged.
type journalSink struct {
	mu     sync.Mutex
	rows   map[string]int
	purges int
}

func newJournalSink(m *Manager) *journalSink {
	j := &journalSink{rows: make(map[string]int)}
	m.AddSink(j)
	m.OnRemove(func(_ context.Context, id string) {
		j.mu.Lock()
		defer j.mu.Unlock()
		delete(j.rows, id)
		j.purges++
	})
	return j
}

func (j *journalSink) HandleEvents(_ context.Context, id string, events []home.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rows[id] += len(events)
}

func (j *journalSink) state(id string) (rows, purges int) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.rows[id], j.purges
}

func TestManager_DeleteFromInsideDo(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	journal := newJournalSink(m)
	ctx := context.Background()
	s, _ := m.Create(ctx, "u")

	err := m.Do(ctx, s.ID(), func(h *home.Home, _ home.Rand) error {
		if err := h.ToggleLight(home.RoomLiving); err != nil {
			return err
		}
		return m.Delete(ctx, s.ID())
	})
	if err != nil {
		t.Fatalf("Do() error = %v", err)
	}

	if rows, purges := journal.state(s.ID()); rows != 0 || purges != 1 {
		t.Errorf("after delete: rows = %d, purges = %d, want 0 and 1", rows, purges)
	}
	if m.Count() != 0 {
		t.Errorf("Count() = %d, want 0", m.Count())
	}
}

func TestManager_DeleteWaitsForInFlightOperation(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	journal := newJournalSink(m)
	ctx := context.Background()
	s, _ := m.Create(ctx, "u")

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- m.Do(ctx, s.ID(), func(h *home.Home, rng home.Rand) error {
			close(started)
			<-release
			h.Tick(rng)
			return h.ToggleLight(home.RoomKitchen)
		})
	}()
	<-started

	if err := m.Delete(ctx, s.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, purges := journal.state(s.ID()); purges != 0 {
		t.Fatal("removal callbacks ran while an operation was in flight")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight Do() error = %v", err)
	}
	if rows, purges := journal.state(s.ID()); rows != 0 || purges != 1 {
		t.Errorf("after drain: rows = %d, purges = %d, want 0 and 1", rows, purges)
	}
}

func TestManager_ClosedSessionRejectsOperations(t *testing.T) {
	m, _ := newTestManager(t, Config{})
	journal := newJournalSink(m)
	ctx := context.Background()
	s, _ := m.Create(ctx, "u")

	if err := m.Delete(ctx, s.ID()); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	// A tick round that picked up the session before it was deleted.
	ran := false
	err := m.run(ctx, s, time.Time{}, func(h *home.Home, _ home.Rand) error {
		ran = true
		return h.ToggleLight(home.RoomLiving)
	})
	if !errors.Is(err, ErrSessionNotFound) || ran {
		t.Errorf("run() on closed session: err = %v, ran = %v", err, ran)
	}
	if rows, purges := journal.state(s.ID()); rows != 0 || purges != 1 {
		t.Errorf("rows = %d, purges = %d, want 0 and 1", rows, purges)
	}
	if err := m.Delete(ctx, s.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("second Delete() error = %v, want ErrSessionNotFound", err)
	}
}

func TestManager_ExpireIdleSkipsBusySession(t *testing.T) {
	m, clock := newTestManager(t, Config{TTL: time.Minute})
	ctx := context.Background()
	s, _ := m.Create(ctx, "u")
	clock.Advance(2 * time.Minute)

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		// Background readers do not refresh activity, so only the
		// in-flight check keeps the session alive here.
		done <- m.run(ctx, s, time.Time{}, func(*home.Home, home.Rand) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if expired := m.ExpireIdle(ctx, clock.Now()); len(expired) != 0 {
		t.Errorf("ExpireIdle() during operation = %v, want none", expired)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("run() error = %v", err)
	}

	expired := m.ExpireIdle(ctx, clock.Now())
	if len(expired) != 1 || expired[0] != s.ID() {
		t.Errorf("ExpireIdle() after operation = %v, want [%s]", expired, s.ID())
	}
}

func TestManager_ExpireIdleRechecksActivity(t *testing.T) {
	m, clock := newTestManager(t, Config{TTL: time.Minute})
	ctx := context.Background()
	s, _ := m.Create(ctx, "u")
	clock.Advance(2 * time.Minute)

	// The session looked idle when the sweep listed it, then a request
	// touched it before removal.
	if err := m.Tick(ctx, s.ID()); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}
	active := func(s *Session) bool { return !s.expirable(clock.Now(), time.Minute) }
	if err := m.remove(ctx, s.ID(), active); !errors.Is(err, errSessionKept) {
		t.Errorf("remove() of active session error = %v, want errSessionKept", err)
	}
	if m.Count() != 1 {
		t.Errorf("Count() = %d, want 1", m.Count())
	}
}

func TestManager_ConcurrentDo(t *testing.T) {
	m, _ := newTestManager(t, Config{Seed: 11})
	sink := newRecordingSink()
	m.AddSink(sink)
	ctx := context.Background()
	s, _ := m.Create(ctx, "u")

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				_ = m.Do(ctx, s.ID(), func(h *home.Home, _ home.Rand) error {
					return h.ToggleLight(home.RoomLiving)
				})
			}
		}()
	}
	wg.Wait()

	var activity int
	for _, ev := range sink.events(s.ID()) {
		if ev.Kind == home.EventActivity {
			activity++
		}
	}
	if activity != workers*perWorker {
		t.Errorf("dispatched %d activity events, want %d", activity, workers*perWorker)
	}

	snap, _ := m.Snapshot(ctx, s.ID())
	// An even number of toggles leaves the light as it started.
	if snap.Lights[home.RoomLiving] {
		t.Error("living light should be off after an even number of toggles")
	}
}

func TestSinkFunc(t *testing.T) {
	var got string
	var sink Sink = SinkFunc(func(_ context.Context, id string, _ []home.Event) { got = id })
	sink.HandleEvents(context.Background(), "abc", nil)
	if got != "abc" {
		t.Errorf("SinkFunc called with %q", got)
	}
}
