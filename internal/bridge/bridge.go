package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/nerrad567/homesim-core/internal/home"
	"github.com/nerrad567/homesim-core/internal/infrastructure/mqtt"
)

// stateQueueSize bounds the sessions waiting for a state publish.
const stateQueueSize = 64

// Broker is the subset of *mqtt.Client the bridge uses.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	Topics() mqtt.Topics
}

// Sessions is the subset of *session.Manager the bridge uses.
type Sessions interface {
	Do(ctx context.Context, id string, fn func(h *home.Home, rng home.Rand) error) error
	PeekFunc(ctx context.Context, id string, fn func(*home.Snapshot)) error
}

// Logger is the logging interface used by the bridge.
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

// Bridge mirrors sessions onto MQTT.
//
// As a session sink it publishes every activity entry and alert, and
// queues a retained state publish after each tick. Once started it also
// executes commands received on {prefix}/home/{session}/command and answers
// on the session's result topic.
type Bridge struct {
	broker   Broker
	sessions Sessions
	topics   mqtt.Topics
	qos      byte
	logger   Logger

	stateCh chan string
	queued  map[string]bool
	queueMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Bridge. qos applies to every publish and the command
// subscription.
func New(broker Broker, sessions Sessions, qos byte) *Bridge {
	return &Bridge{
		broker:   broker,
		sessions: sessions,
		topics:   broker.Topics(),
		qos:      qos,
		logger:   noopLogger{},
		stateCh:  make(chan string, stateQueueSize),
		queued:   make(map[string]bool),
	}
}

// SetLogger sets the logger.
func (b *Bridge) SetLogger(logger Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Start subscribes to the command topics of all sessions and starts the
// state publisher. It stops when ctx is cancelled or Stop is called.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done != nil {
		return ErrAlreadyStarted
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := b.broker.Subscribe(b.topics.AllHomeCommands(), b.qos, b.commandHandler(runCtx)); err != nil {
		cancel()
		return fmt.Errorf("subscribing to commands: %w", err)
	}

	b.cancel = cancel
	b.done = make(chan struct{})
	go b.publishStates(runCtx, b.done)

	b.logger.Info("MQTT bridge started", "commands", b.topics.AllHomeCommands())
	return nil
}

// Stop unsubscribes and waits for the state publisher to exit.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	if b.done == nil {
		b.mu.Unlock()
		return ErrNotStarted
	}
	cancel, done := b.cancel, b.done
	b.done = nil
	b.mu.Unlock()

	cancel()
	<-done

	if err := b.broker.Unsubscribe(b.topics.AllHomeCommands()); err != nil {
		return fmt.Errorf("unsubscribing from commands: %w", err)
	}
	return nil
}

// HandleEvents publishes activity and alert events and schedules a state
// publish when the batch contains a tick. Publish failures are logged.
func (b *Bridge) HandleEvents(_ context.Context, sessionID string, events []home.Event) {
	ticked := false
	for _, ev := range events {
		switch {
		case ev.Kind == home.EventActivity && ev.Activity != nil:
			b.publishJSON(b.topics.HomeActivity(sessionID), ev.Activity, false)
		case ev.Kind == home.EventAlert && ev.Alert != nil:
			b.publishJSON(b.topics.HomeAlert(sessionID), ev.Alert, false)
		case ev.Kind == home.EventTick:
			ticked = true
		}
	}
	if ticked {
		b.enqueueState(sessionID)
	}
}

// ClearSession removes the retained state of a deleted session.
func (b *Bridge) ClearSession(_ context.Context, sessionID string) {
	if err := b.broker.Publish(b.topics.HomeState(sessionID), nil, b.qos, true); err != nil {
		b.logger.Warn("clearing retained state failed", "session_id", sessionID, "error", err)
	}
}

// enqueueState queues sessionID unless it is already waiting. A full queue
// drops the request; the next tick queues it again.
func (b *Bridge) enqueueState(sessionID string) {
	b.queueMu.Lock()
	defer b.queueMu.Unlock()
	if b.queued[sessionID] {
		return
	}
	select {
	case b.stateCh <- sessionID:
		b.queued[sessionID] = true
	default:
		b.logger.Warn("state publish queue full", "session_id", sessionID)
	}
}

// publishStates runs outside the session lock because PeekFunc takes it.
func (b *Bridge) publishStates(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-b.stateCh:
			b.queueMu.Lock()
			delete(b.queued, id)
			b.queueMu.Unlock()
			b.publishState(ctx, id)
		}
	}
}

func (b *Bridge) publishState(ctx context.Context, sessionID string) {
	err := b.sessions.PeekFunc(ctx, sessionID, func(snap *home.Snapshot) {
		b.publishJSON(b.topics.HomeState(sessionID), snap, true)
	})
	if err != nil {
		b.logger.Debug("skipping state publish", "session_id", sessionID, "error", err)
	}
}

func (b *Bridge) publishJSON(topic string, v any, retained bool) {
	payload, err := json.Marshal(v)
	if err != nil {
		b.logger.Error("encoding MQTT payload failed", "topic", topic, "error", err)
		return
	}
	if err := b.broker.Publish(topic, payload, b.qos, retained); err != nil {
		b.logger.Warn("MQTT publish failed", "topic", topic, "error", err)
	}
}
