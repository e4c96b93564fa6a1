package home

import (
	"fmt"
	"time"
)

// Entity domains.
const (
	MinThermostat = 16
	MaxThermostat = 30

	MinIrrigationDuration  = 5
	MaxIrrigationDuration  = 60
	IrrigationDurationStep = 5

	MinHumidity = 30
	MaxHumidity = 70

	MinWifiSignal = 20
	MaxWifiSignal = 99
)

// Home is the state store for one simulated home.
//
// All mutation goes through the action handlers (actions.go) or Tick
// (tick.go). A Home is not safe for concurrent use; callers serialise access
// (see internal/session).
type Home struct {
	sensors    Sensors
	lights     map[Room]bool
	thermostat Thermostat
	fan        FanSpeed
	security   SecurityMode
	doors      map[DoorID]DoorStatus
	cameras    map[CameraID]bool
	irrigation map[ZoneID]IrrigationZone
	networks   []WifiNetwork
	wifi       WifiStatus
	energy     Energy
	alerts     AlertList
	log        ActivityLog
	lastUpdate time.Time

	now     func() time.Time
	pending []Event
}

// Option configures a Home at construction.
type Option func(*Home)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(h *Home) {
		if now != nil {
			h.now = now
		}
	}
}

// New creates a Home populated with the default state of a fresh session.
func New(opts ...Option) *Home {
	h := &Home{
		sensors: Sensors{Temperature: 21.5, Humidity: 42},
		lights: map[Room]bool{
			RoomLiving:  false,
			RoomKitchen: true,
			RoomBedroom: false,
		},
		thermostat: Thermostat{Target: 22},
		fan:        FanOff,
		security:   SecurityDisarmed,
		doors: map[DoorID]DoorStatus{
			DoorMain:   DoorClosed,
			DoorGarage: DoorClosed,
			DoorBack:   DoorClosed,
		},
		cameras: map[CameraID]bool{
			CameraFrontDoor: true,
			CameraBackyard:  true,
			CameraGarage:    false,
		},
		irrigation: map[ZoneID]IrrigationZone{
			ZoneFrontLawn:      {Schedule: "06:00", Duration: 15},
			ZoneBackGarden:     {Schedule: "07:30", Duration: 20},
			ZoneVegetablePatch: {Schedule: "18:00", Duration: 10},
		},
		networks: []WifiNetwork{
			{Name: "HomeNetwork", Signal: 85, Security: "WPA2", Connected: true},
			{Name: "HomeNetwork_5G", Signal: 72, Security: "WPA3"},
			{Name: "Guest_Network", Signal: 60, Security: "WPA2"},
			{Name: "Neighbor_WiFi", Signal: 35, Security: "WPA2"},
		},
		wifi:   WifiStatus{State: WifiConnected, Network: "HomeNetwork", Signal: 85},
		energy: Energy{Daily: 12.5, Weekly: 87.3, Monthly: 345.8},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.lastUpdate = h.now()
	return h
}

// Sensors returns the current sensor readings.
func (h *Home) Sensors() Sensors { return h.sensors }

// Light returns whether the light in room is on.
func (h *Home) Light(room Room) (bool, error) {
	on, ok := h.lights[room]
	if !ok {
		return false, fmt.Errorf("%w: room %q", ErrUnknownEntity, room)
	}
	return on, nil
}

// Thermostat returns the thermostat settings.
func (h *Home) Thermostat() Thermostat { return h.thermostat }

// FanSpeed returns the fan level.
func (h *Home) FanSpeed() FanSpeed { return h.fan }

// SecurityMode returns the security system mode.
func (h *Home) SecurityMode() SecurityMode { return h.security }

// Door returns the status of a door.
func (h *Home) Door(id DoorID) (DoorStatus, error) {
	status, ok := h.doors[id]
	if !ok {
		return "", fmt.Errorf("%w: door %q", ErrUnknownEntity, id)
	}
	return status, nil
}

// Camera returns whether a camera is on.
func (h *Home) Camera(id CameraID) (bool, error) {
	on, ok := h.cameras[id]
	if !ok {
		return false, fmt.Errorf("%w: camera %q", ErrUnknownEntity, id)
	}
	return on, nil
}

// IrrigationZone returns the state of an irrigation zone.
func (h *Home) IrrigationZone(id ZoneID) (IrrigationZone, error) {
	zone, ok := h.irrigation[id]
	if !ok {
		return IrrigationZone{}, fmt.Errorf("%w: irrigation zone %q", ErrUnknownEntity, id)
	}
	return zone, nil
}

// Networks returns a copy of the visible WiFi networks.
func (h *Home) Networks() []WifiNetwork {
	out := make([]WifiNetwork, len(h.networks))
	copy(out, h.networks)
	return out
}

// Wifi returns the current WiFi link status.
func (h *Home) Wifi() WifiStatus { return h.wifi }

// Energy returns the energy usage counters.
func (h *Home) Energy() Energy { return h.energy }

// Alerts returns a copy of the active alerts.
func (h *Home) Alerts() []Alert { return h.alerts.All() }

// Activity returns a copy of the activity log, newest first.
func (h *Home) Activity() []ActivityEntry { return h.log.Entries() }

// LastUpdate returns the time of the most recent tick.
func (h *Home) LastUpdate() time.Time { return h.lastUpdate }

// Snapshot returns a deep copy of the full state.
func (h *Home) Snapshot() *Snapshot {
	s := &Snapshot{
		Sensors:    h.sensors,
		Lights:     make(map[Room]bool, len(h.lights)),
		Thermostat: h.thermostat,
		FanSpeed:   h.fan,
		Security:   h.security,
		Doors:      make(map[DoorID]DoorStatus, len(h.doors)),
		Cameras:    make(map[CameraID]bool, len(h.cameras)),
		Irrigation: make(map[ZoneID]IrrigationZone, len(h.irrigation)),
		Networks:   h.Networks(),
		Wifi:       h.wifi,
		Energy:     h.energy,
		Alerts:     h.alerts.All(),
		Activity:   h.log.Entries(),
		LastUpdate: h.lastUpdate,
	}
	for k, v := range h.lights {
		s.Lights[k] = v
	}
	for k, v := range h.doors {
		s.Doors[k] = v
	}
	for k, v := range h.cameras {
		s.Cameras[k] = v
	}
	for k, v := range h.irrigation {
		s.Irrigation[k] = v
	}
	return s
}

// Validate checks every state invariant and returns ErrInvariantViolation
// describing the first one that does not hold.
func (h *Home) Validate() error {
	switch {
	case h.sensors.Humidity < MinHumidity || h.sensors.Humidity > MaxHumidity:
		return fmt.Errorf("%w: humidity %d outside [%d,%d]", ErrInvariantViolation, h.sensors.Humidity, MinHumidity, MaxHumidity)
	case h.thermostat.Target < MinThermostat || h.thermostat.Target > MaxThermostat:
		return fmt.Errorf("%w: thermostat %d outside [%d,%d]", ErrInvariantViolation, h.thermostat.Target, MinThermostat, MaxThermostat)
	case h.fan < FanOff || h.fan > FanMaxSpeed:
		return fmt.Errorf("%w: fan speed %d", ErrInvariantViolation, h.fan)
	case h.log.Len() > ActivityLogCapacity:
		return fmt.Errorf("%w: activity log holds %d entries", ErrInvariantViolation, h.log.Len())
	}
	for id, zone := range h.irrigation {
		if validDuration(zone.Duration) != nil {
			return fmt.Errorf("%w: zone %s duration %d", ErrInvariantViolation, id, zone.Duration)
		}
	}
	for _, n := range h.networks {
		if n.Signal < MinWifiSignal || n.Signal > MaxWifiSignal {
			return fmt.Errorf("%w: network %s signal %d", ErrInvariantViolation, n.Name, n.Signal)
		}
	}
	return checkConnected(h.networks, h.wifi)
}

// checkConnected verifies the per-network connected flags agree with the
// link status: exactly the status network when connected, none otherwise.
func checkConnected(networks []WifiNetwork, status WifiStatus) error {
	var connected []string
	for _, n := range networks {
		if n.Connected {
			connected = append(connected, n.Name)
		}
	}
	if status.State == WifiDisconnected {
		if len(connected) != 0 {
			return fmt.Errorf("%w: %d networks connected while disconnected", ErrInvariantViolation, len(connected))
		}
		return nil
	}
	if len(connected) != 1 || connected[0] != status.Network {
		return fmt.Errorf("%w: connected networks %v, status network %q", ErrInvariantViolation, connected, status.Network)
	}
	return nil
}

// record appends an activity entry and emits it.
func (h *Home) record(category Category, format string, args ...any) {
	entry := ActivityEntry{
		Message:   fmt.Sprintf(format, args...),
		Timestamp: h.now(),
		Category:  category,
	}
	h.log.Add(entry)
	h.emit(Event{Kind: EventActivity, Activity: &entry})
}

// raise adds an alert unless its kind is already active, emitting it when
// added. It reports whether the alert was added.
func (h *Home) raise(kind AlertKind, message string) bool {
	alert := Alert{Kind: kind, Message: message, RaisedAt: h.now()}
	if !h.alerts.Raise(alert) {
		return false
	}
	h.emit(Event{Kind: EventAlert, Alert: &alert})
	return true
}
