package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/homesim-core/internal/home"
)

// Logger defines the logging interface used by the Manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Sink receives the events a session produced. HandleEvents is called
// synchronously, once per operation, in production order per session. A
// sink must not call Manager.Do for the same session.
type Sink interface {
	HandleEvents(ctx context.Context, sessionID string, events []home.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, sessionID string, events []home.Event)

// HandleEvents calls f.
func (f SinkFunc) HandleEvents(ctx context.Context, sessionID string, events []home.Event) {
	f(ctx, sessionID, events)
}

// Config controls session creation and expiry.
type Config struct {
	// Seed seeds session n's source with (Seed, n). 0 seeds from the clock.
	Seed uint64

	// TTL is how long a session may go without a user operation before
	// ExpireIdle removes it. Ticks do not count as use.
	TTL time.Duration

	// MaxSessions caps live sessions. 0 means unlimited.
	MaxSessions int

	// Clock is the time source for sessions and their homes. Defaults to time.Now.
	Clock func() time.Time
}

// Stats summarises the manager state.
type Stats struct {
	Sessions    int    `json:"sessions"`
	MaxSessions int    `json:"max_sessions"`
	Created     uint64 `json:"created"`
}

// Manager owns the live sessions. All methods are safe for concurrent use;
// operations on one session are serialised, different sessions proceed in
// parallel.
type Manager struct {
	cfg Config

	mu       sync.RWMutex
	sessions map[string]*Session
	created  uint64

	sinks    []Sink
	onRemove []func(ctx context.Context, sessionID string)
	logger   Logger
}

// NewManager creates a manager with no sessions.
func NewManager(cfg Config) *Manager {
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Manager{
		cfg:      cfg,
		sessions: make(map[string]*Session),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// AddSink registers a sink for the events of every session. Register sinks
// before serving requests.
func (m *Manager) AddSink(s Sink) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sinks = append(m.sinks, s)
}

// OnRemove registers a callback run after a session is deleted or expires.
func (m *Manager) OnRemove(fn func(ctx context.Context, sessionID string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onRemove = append(m.onRemove, fn)
}

// Create starts a new session with a fresh home in its default state.
func (m *Manager) Create(ctx context.Context, owner string) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: limit %d", ErrTooManySessions, m.cfg.MaxSessions)
	}
	m.created++
	n := m.created

	now := m.cfg.Clock()
	s := &Session{
		id:         uuid.NewString(),
		owner:      owner,
		createdAt:  now,
		home:       home.New(home.WithClock(m.cfg.Clock)),
		rng:        m.newRand(n, now),
		lastActive: now,
	}
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.logger.Info("session created", "session_id", s.id, "owner", owner)
	return s, nil
}

func (m *Manager) newRand(n uint64, now time.Time) *rand.Rand {
	seed := m.cfg.Seed
	if seed == 0 {
		seed = uint64(now.UnixNano()) //nolint:gosec // simulation noise, not security
	}
	return rand.New(rand.NewPCG(seed, n))
}

// Get returns the session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return s, nil
}

// Delete removes a session and runs the OnRemove callbacks. If an
// operation on the session is in flight, the callbacks run when it
// finishes instead, so no event of the session reaches a sink after them.
// They get a context detached from ctx's cancellation.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.remove(ctx, id, nil)
}

// remove deletes id unless keep, evaluated under the manager lock, says
// otherwise.
func (m *Manager) remove(ctx context.Context, id string, keep func(*Session) bool) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if keep != nil && keep(s) {
		m.mu.Unlock()
		return errSessionKept
	}
	delete(m.sessions, id)
	callbacks := m.onRemove
	m.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	s.close(func() {
		for _, fn := range callbacks {
			fn(ctx, id)
		}
		m.logger.Info("session deleted", "session_id", id)
	})
	return nil
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Stats returns manager statistics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{Sessions: len(m.sessions), MaxSessions: m.cfg.MaxSessions, Created: m.created}
}

// Do runs fn on the session's home with exclusive access and marks the
// session active. Events fn causes are dispatched to the sinks before Do
// returns, whether or not fn failed. The error from fn is returned as is.
func (m *Manager) Do(ctx context.Context, id string, fn func(h *home.Home, rng home.Rand) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return m.run(ctx, s, m.cfg.Clock(), fn)
}

// Snapshot returns a deep copy of the session's state.
func (m *Manager) Snapshot(ctx context.Context, id string) (*home.Snapshot, error) {
	var snap *home.Snapshot
	err := m.Do(ctx, id, func(h *home.Home, _ home.Rand) error {
		snap = h.Snapshot()
		return nil
	})
	return snap, err
}

// PeekFunc calls fn with a snapshot of the session's state without marking
// it active. fn runs outside the session lock but before the session's
// removal callbacks, so nothing fn publishes can land after a concurrent
// Delete has cleaned up.
func (m *Manager) PeekFunc(ctx context.Context, id string, fn func(*home.Snapshot)) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	if !s.enter(time.Time{}) {
		return ErrSessionNotFound
	}
	defer s.leave()

	var snap *home.Snapshot
	err = m.run(ctx, s, time.Time{}, func(h *home.Home, _ home.Rand) error {
		snap = h.Snapshot()
		return nil
	})
	if err != nil {
		return err
	}
	fn(snap)
	return nil
}

// Tick advances one session, marking it active.
func (m *Manager) Tick(ctx context.Context, id string) error {
	return m.Do(ctx, id, func(h *home.Home, rng home.Rand) error {
		h.Tick(rng)
		return nil
	})
}

// TickAll advances every live session once without marking them active,
// and returns the number ticked. Sessions removed mid-round are skipped.
// It stops early if ctx is cancelled.
func (m *Manager) TickAll(ctx context.Context) int {
	ticked := 0
	for _, s := range m.snapshotSessions() {
		if ctx.Err() != nil {
			break
		}
		err := m.run(ctx, s, time.Time{}, func(h *home.Home, rng home.Rand) error {
			h.Tick(rng)
			return nil
		})
		if err == nil {
			ticked++
		}
	}
	return ticked
}

// ExpireIdle deletes sessions inactive for longer than the TTL and returns
// their ids. Idleness is re-checked at removal, and a session with an
// operation in flight is never expired. A zero TTL disables expiry.
func (m *Manager) ExpireIdle(ctx context.Context, now time.Time) []string {
	if m.cfg.TTL <= 0 {
		return nil
	}

	active := func(s *Session) bool { return !s.expirable(now, m.cfg.TTL) }

	var expired []string
	for _, s := range m.snapshotSessions() {
		if active(s) {
			continue
		}
		if err := m.remove(ctx, s.id, active); err == nil {
			expired = append(expired, s.id)
		}
	}
	if len(expired) > 0 {
		m.logger.Info("expired idle sessions", "count", len(expired))
	}
	return expired
}

func (m *Manager) snapshotSessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

func (m *Manager) run(ctx context.Context, s *Session, touch time.Time, fn func(*home.Home, home.Rand) error) error {
	m.mu.RLock()
	sinks := m.sinks
	m.mu.RUnlock()

	return s.run(touch, func(h *home.Home, rng home.Rand) error {
		err := fn(h, rng)
		if verr := h.Validate(); verr != nil {
			m.logger.Error("home invariant violated", "session_id", s.id, "error", verr)
		}
		return err
	}, func(events []home.Event) {
		for _, sink := range sinks {
			sink.HandleEvents(ctx, s.id, events)
		}
	})
}
