package session

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/nerrad567/homesim-core/internal/home"
)

// Session is one user's simulated home together with its random source.
//
// mu guards the home. emitMu is taken before mu is released and held while
// events are dispatched, so sinks see a session's events in the order they
// were produced.
//
// gateMu guards the lifecycle fields below it and is never held while
// another lock is acquired. Once closed is set no operation starts, and
// the removal callbacks run only after the last in-flight operation has
// dispatched its events.
type Session struct {
	id        string
	owner     string
	createdAt time.Time

	mu   sync.Mutex
	home *home.Home
	rng  *rand.Rand

	emitMu sync.Mutex

	gateMu     sync.Mutex
	lastActive time.Time
	inflight   int
	closed     bool
	onClosed   func()
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Owner returns the name the session was created for.
func (s *Session) Owner() string { return s.owner }

// enter registers an operation. It fails once the session is closed.
// A non-zero touch marks the session active.
func (s *Session) enter(touch time.Time) bool {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	if s.closed {
		return false
	}
	s.inflight++
	if !touch.IsZero() {
		s.lastActive = touch
	}
	return true
}

// leave ends an operation, running the removal callbacks if the session
// was closed while it was in flight and it is the last one out.
func (s *Session) leave() {
	s.gateMu.Lock()
	s.inflight--
	var finish func()
	if s.closed && s.inflight == 0 {
		finish, s.onClosed = s.onClosed, nil
	}
	s.gateMu.Unlock()

	if finish != nil {
		finish()
	}
}

// close stops new operations and arranges for finish to run once nothing
// is in flight: immediately when idle, otherwise from the last leave. It
// never waits, so it is safe to call from inside an operation or a sink.
func (s *Session) close(finish func()) {
	s.gateMu.Lock()
	s.closed = true
	if s.inflight > 0 {
		s.onClosed = finish
		s.gateMu.Unlock()
		return
	}
	s.gateMu.Unlock()
	finish()
}

func (s *Session) isClosed() bool {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	return s.closed
}

// expirable reports whether the session has been idle longer than ttl with
// nothing in flight.
func (s *Session) expirable(now time.Time, ttl time.Duration) bool {
	s.gateMu.Lock()
	defer s.gateMu.Unlock()
	return s.inflight == 0 && now.Sub(s.lastActive) > ttl
}

// run executes fn under the session lock, then hands the drained events to
// dispatch with emitMu held. A session closed before fn starts returns
// ErrSessionNotFound; one closed while fn runs keeps its state change but
// dispatches nothing.
func (s *Session) run(touch time.Time, fn func(*home.Home, home.Rand) error, dispatch func([]home.Event)) (err error) {
	if !s.enter(touch) {
		return ErrSessionNotFound
	}
	defer s.leave()

	s.mu.Lock()
	if s.isClosed() {
		s.mu.Unlock()
		return ErrSessionNotFound
	}
	err = fn(s.home, s.rng)
	events := s.home.TakeEvents()
	s.emitMu.Lock()
	s.mu.Unlock()

	defer s.emitMu.Unlock()
	if len(events) > 0 && !s.isClosed() {
		dispatch(events)
	}
	return err
}
