package home

import "time"

// EventKind identifies what an Event carries.
type EventKind string

// EventKind constants.
const (
	EventActivity EventKind = "activity"
	EventAlert    EventKind = "alert"
	EventTick     EventKind = "tick"
)

// Telemetry is the set of simulated readings published after a tick.
type Telemetry struct {
	Timestamp time.Time  `json:"timestamp"`
	Sensors   Sensors    `json:"sensors"`
	Energy    Energy     `json:"energy"`
	Wifi      WifiStatus `json:"wifi"`
}

// Event is a notification produced by a tick or an action handler.
// Exactly one of Activity, Alert or Telemetry is set, matching Kind.
type Event struct {
	Kind      EventKind      `json:"kind"`
	Activity  *ActivityEntry `json:"activity,omitempty"`
	Alert     *Alert         `json:"alert,omitempty"`
	Telemetry *Telemetry     `json:"telemetry,omitempty"`
}

// TakeEvents returns the events produced since the previous call and
// resets the buffer. Drivers call it after each tick or handler to fan the
// events out to transports; the Home itself performs no I/O.
func (h *Home) TakeEvents() []Event {
	events := h.pending
	h.pending = nil
	return events
}

// maxPendingEvents bounds the buffer when nobody drains it.
const maxPendingEvents = 64

func (h *Home) emit(ev Event) {
	if len(h.pending) >= maxPendingEvents {
		h.pending = h.pending[1:]
	}
	h.pending = append(h.pending, ev)
}
