// Package session keeps one simulated home per user session.
//
// The home package is single-threaded and performs no I/O. The Manager
// adds what a server needs around it: a lock per session, a seeded random
// source per session, idle expiry, and fan-out of the events each
// operation produces to registered sinks (WebSocket hub, MQTT bridge,
// journal, telemetry).
//
// Usage:
//
//	m := session.NewManager(session.Config{TTL: time.Hour, MaxSessions: 100})
//	m.AddSink(hub)
//	s, _ := m.Create(ctx, "admin")
//	err := m.Do(ctx, s.ID(), func(h *home.Home, _ home.Rand) error {
//	    return h.SetThermostat(24)
//	})
package session
