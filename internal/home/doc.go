// Package home is the state and event engine of one simulated home.
//
// A Home holds every entity of a single session (sensors, lights,
// thermostat, fan, security system, doors, cameras, irrigation zones, WiFi
// and energy counters) together with the active alerts and a bounded
// activity log. State changes in exactly two ways:
//
//   - Tick advances the simulated sensors, energy and WiFi link one step,
//     drawing from an injected random source.
//   - Action handlers (ToggleLight, SetThermostat, SetDoor, ...) apply one
//     user command and append one activity entry each.
//
// # Alerts
//
// Alerts are tagged with an AlertKind. While an alert of a kind is active a
// second one of the same kind is not added; ClearAlerts empties the list.
//
// # Usage
//
//	h := home.New()
//	rng := rand.New(rand.NewPCG(1, 2))
//
//	h.Tick(rng)
//	if err := h.SetDoor(home.DoorMain, home.DoorOpen); err != nil {
//	    return err
//	}
//	for _, ev := range h.TakeEvents() {
//	    // publish
//	}
//
// # Thread Safety
//
// A Home is not safe for concurrent use. Every call runs to completion
// without blocking; internal/session serialises access per session.
package home
