package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/homesim-core/internal/home"
	"github.com/nerrad567/homesim-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homesim-core/internal/session"
)

type published struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// mockBroker records publishes and keeps subscribed handlers so tests can
// deliver messages.
type mockBroker struct {
	mu           sync.Mutex
	published    []published
	handlers     map[string]mqtt.MessageHandler
	subscribeErr error
	publishErr   error
}

func newMockBroker() *mockBroker {
	return &mockBroker{handlers: make(map[string]mqtt.MessageHandler)}
}

func (m *mockBroker) Publish(topic string, payload []byte, qos byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	m.published = append(m.published, published{topic, payload, qos, retained})
	return nil
}

func (m *mockBroker) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subscribeErr != nil {
		return m.subscribeErr
	}
	m.handlers[topic] = handler
	return nil
}

func (m *mockBroker) Unsubscribe(topic string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.handlers, topic)
	return nil
}

func (m *mockBroker) Topics() mqtt.Topics { return mqtt.Topics{Prefix: "test"} }

func (m *mockBroker) handler(topic string) mqtt.MessageHandler {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handlers[topic]
}

func (m *mockBroker) on(topic string) []published {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []published
	for _, p := range m.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func setup(t *testing.T) (*Bridge, *mockBroker, *session.Manager, string) {
	t.Helper()
	broker := newMockBroker()
	manager := session.NewManager(session.Config{Seed: 1, MaxSessions: 10})
	b := New(broker, manager, 1)
	manager.AddSink(b)

	s, err := manager.Create(context.Background(), "tester")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	return b, broker, manager, s.ID()
}

func start(t *testing.T, b *Bridge) {
	t.Helper()
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() { _ = b.Stop() }) //nolint:errcheck // may already be stopped
}

func TestBridge_PublishesActivityAndAlerts(t *testing.T) {
	b, broker, manager, id := setup(t)
	topics := broker.Topics()

	err := manager.Do(context.Background(), id, func(h *home.Home, _ home.Rand) error {
		return h.SetThermostat(29)
	})
	if err != nil {
		t.Fatalf("SetThermostat error = %v", err)
	}

	activity := broker.on(topics.HomeActivity(id))
	if len(activity) == 0 {
		t.Fatal("no activity published")
	}
	var entry home.ActivityEntry
	if err := json.Unmarshal(activity[0].payload, &entry); err != nil {
		t.Fatalf("activity payload: %v", err)
	}
	if entry.Category != home.CategoryThermostat || activity[0].retained {
		t.Errorf("activity = %+v retained=%v", entry, activity[0].retained)
	}

	alerts := broker.on(topics.HomeAlert(id))
	if len(alerts) != 1 {
		t.Fatalf("published %d alerts, want 1", len(alerts))
	}
	var alert home.Alert
	if err := json.Unmarshal(alerts[0].payload, &alert); err != nil {
		t.Fatalf("alert payload: %v", err)
	}
	if alert.Kind != home.AlertThermostatHigh {
		t.Errorf("alert kind = %q", alert.Kind)
	}

	// Not started: ticks queue state but nothing publishes it yet.
	b.HandleEvents(context.Background(), id, []home.Event{{Kind: home.EventTick}})
	if n := len(broker.on(topics.HomeState(id))); n != 0 {
		t.Errorf("state published before Start: %d", n)
	}
}

func TestBridge_PublishesRetainedStateAfterTick(t *testing.T) {
	b, broker, manager, id := setup(t)
	start(t, b)

	if err := manager.Tick(context.Background(), id); err != nil {
		t.Fatalf("Tick() error = %v", err)
	}

	topic := broker.Topics().HomeState(id)
	waitFor(t, "state publish", func() bool { return len(broker.on(topic)) > 0 })

	state := broker.on(topic)[0]
	if !state.retained || state.qos != 1 {
		t.Errorf("state retained=%v qos=%d", state.retained, state.qos)
	}
	var snap home.Snapshot
	if err := json.Unmarshal(state.payload, &snap); err != nil {
		t.Fatalf("state payload: %v", err)
	}
	if snap.Thermostat.Target != 22 {
		t.Errorf("snapshot thermostat = %d, want 22", snap.Thermostat.Target)
	}
}

func TestBridge_Commands(t *testing.T) {
	tests := []struct {
		name      string
		session   func(id string) string
		payload   string
		wantOK    bool
		wantError string
	}{
		{"set thermostat", func(id string) string { return id }, `{"request_id":"r1","action":"set_thermostat","value":24}`, true, ""},
		{"toggle light", func(id string) string { return id }, `{"action":"toggle_light","target":"kitchen"}`, true, ""},
		{"invalid value", func(id string) string { return id }, `{"action":"set_thermostat","value":40}`, false, "invalid parameter"},
		{"unknown action", func(id string) string { return id }, `{"action":"open_pod_bay"}`, false, "unknown action"},
		{"bad json", func(id string) string { return id }, `{not json`, false, "invalid command"},
		{"missing action", func(id string) string { return id }, `{}`, false, "missing action"},
		{"unknown session", func(string) string { return "nope" }, `{"action":"tick"}`, false, "not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, broker, _, id := setup(t)
			start(t, b)
			topics := broker.Topics()

			handler := broker.handler(topics.AllHomeCommands())
			if handler == nil {
				t.Fatal("no command subscription")
			}

			target := tt.session(id)
			err := handler(topics.HomeCommand(target), []byte(tt.payload))
			if (err == nil) != tt.wantOK {
				t.Errorf("handler error = %v, wantOK %v", err, tt.wantOK)
			}

			results := broker.on(topics.CommandResult(target))
			if len(results) != 1 {
				t.Fatalf("published %d results, want 1", len(results))
			}
			var result CommandResult
			if err := json.Unmarshal(results[0].payload, &result); err != nil {
				t.Fatalf("result payload: %v", err)
			}
			if result.OK != tt.wantOK {
				t.Errorf("result = %+v", result)
			}
			if !strings.Contains(result.Error, tt.wantError) {
				t.Errorf("result error = %q, want it to contain %q", result.Error, tt.wantError)
			}
		})
	}
}

func TestBridge_CommandChangesState(t *testing.T) {
	b, broker, manager, id := setup(t)
	start(t, b)
	topics := broker.Topics()

	handler := broker.handler(topics.AllHomeCommands())
	if err := handler(topics.HomeCommand(id), []byte(`{"request_id":"7","action":"set_fan_speed","value":2}`)); err != nil {
		t.Fatalf("handler error = %v", err)
	}

	snap, err := manager.Snapshot(context.Background(), id)
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if snap.FanSpeed != home.FanSpeed(2) {
		t.Errorf("fan speed = %v, want 2", snap.FanSpeed)
	}

	var result CommandResult
	_ = json.Unmarshal(broker.on(topics.CommandResult(id))[0].payload, &result) //nolint:errcheck // checked below
	if result.RequestID != "7" || result.Action != home.ActionSetFanSpeed {
		t.Errorf("result = %+v", result)
	}
}

func TestBridge_CommandWrongTopic(t *testing.T) {
	b, broker, _, _ := setup(t)
	start(t, b)

	handler := broker.handler(broker.Topics().AllHomeCommands())
	if err := handler("test/home/x/state", []byte(`{"action":"tick"}`)); err == nil {
		t.Error("expected error for a non-command topic")
	}
}

func TestBridge_StartStop(t *testing.T) {
	broker := newMockBroker()
	b := New(broker, session.NewManager(session.Config{}), 0)

	if err := b.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop() before Start = %v, want ErrNotStarted", err)
	}
	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := b.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if broker.handler(broker.Topics().AllHomeCommands()) != nil {
		t.Error("Stop() should unsubscribe")
	}
	if err := b.Start(context.Background()); err != nil {
		t.Errorf("restart error = %v", err)
	}
	_ = b.Stop() //nolint:errcheck // test cleanup
}

func TestBridge_StartSubscribeFails(t *testing.T) {
	broker := newMockBroker()
	broker.subscribeErr = mqtt.ErrNotConnected
	b := New(broker, session.NewManager(session.Config{}), 1)

	if err := b.Start(context.Background()); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
	if err := b.Stop(); !errors.Is(err, ErrNotStarted) {
		t.Errorf("Stop() after failed Start = %v, want ErrNotStarted", err)
	}
}

func TestBridge_PublishFailureIsLogged(t *testing.T) {
	b, broker, manager, id := setup(t)
	broker.publishErr = mqtt.ErrNotConnected
	logger := &recordingLogger{}
	b.SetLogger(logger)

	err := manager.Do(context.Background(), id, func(h *home.Home, _ home.Rand) error {
		return h.ToggleLight(home.Room("kitchen"))
	})
	if err != nil {
		t.Fatalf("ToggleLight error = %v", err)
	}
	if logger.count() == 0 {
		t.Error("publish failure was not logged")
	}
}

func TestBridge_ClearSession(t *testing.T) {
	b, broker, manager, id := setup(t)
	manager.OnRemove(b.ClearSession)

	if err := manager.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	state := broker.on(broker.Topics().HomeState(id))
	if len(state) != 1 || len(state[0].payload) != 0 || !state[0].retained {
		t.Errorf("expected one empty retained state publish, got %+v", state)
	}
}

func TestBridge_StateQueueDedup(t *testing.T) {
	broker := newMockBroker()
	b := New(broker, session.NewManager(session.Config{}), 1)

	for i := 0; i < 3; i++ {
		b.HandleEvents(context.Background(), "s1", []home.Event{{Kind: home.EventTick}})
	}
	if n := len(b.stateCh); n != 1 {
		t.Errorf("queued %d state publishes, want 1", n)
	}

	for i := 0; i < stateQueueSize+5; i++ {
		b.enqueueState(strings.Repeat("x", i+1))
	}
	if n := len(b.stateCh); n != stateQueueSize {
		t.Errorf("queue length = %d, want %d", n, stateQueueSize)
	}
}

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		payload string
		want    CommandMessage
		wantErr bool
	}{
		{`{"action":"tick"}`, CommandMessage{Command: home.Command{Action: "tick"}}, false},
		{`{"request_id":"a","action":"set_door","target":"front","status":"open"}`,
			CommandMessage{RequestID: "a", Command: home.Command{Action: "set_door", Target: "front", Status: "open"}}, false},
		{`{"action":""}`, CommandMessage{}, true},
		{`[]`, CommandMessage{}, true},
		{``, CommandMessage{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.payload, func(t *testing.T) {
			got, err := DecodeCommand([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeCommand() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidCommand) {
				t.Errorf("error = %v, want ErrInvalidCommand", err)
			}
			if got != tt.want {
				t.Errorf("DecodeCommand() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

type recordingLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *recordingLogger) log(msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, msg)
}

func (l *recordingLogger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.log(msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.log(msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.log(msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.log(msg) }
