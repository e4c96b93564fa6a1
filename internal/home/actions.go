package home

import (
	"fmt"
	"strings"
	"time"
)

// Thresholds above which a setting raises an alert.
const (
	thermostatAlertAbove = 28
	wifiRefreshSwing     = 5
)

// scheduleLayout is the time-of-day format of irrigation schedules.
const scheduleLayout = "15:04"

// ToggleLight flips the light in room.
func (h *Home) ToggleLight(room Room) error {
	on, err := h.Light(room)
	if err != nil {
		return err
	}
	h.lights[room] = !on
	h.record(CategoryLight, "%s light turned %s", displayName(string(room)), onOff(!on))
	return nil
}

// SetThermostat sets the thermostat target. Targets above 28°C raise a
// thermostat_high alert unless one is already active.
func (h *Home) SetThermostat(target int) error {
	if target < MinThermostat || target > MaxThermostat {
		return fmt.Errorf("%w: thermostat target %d outside [%d,%d]", ErrInvalidParameter, target, MinThermostat, MaxThermostat)
	}
	old := h.thermostat.Target
	h.thermostat.Target = target
	h.record(CategoryThermostat, "Thermostat changed from %d°C to %d°C", old, target)

	if target > thermostatAlertAbove {
		h.raise(AlertThermostatHigh, fmt.Sprintf("Thermostat set very high: %d°C", target))
	}
	return nil
}

// SetFanSpeed sets the fan level.
func (h *Home) SetFanSpeed(speed FanSpeed) error {
	if speed < FanOff || speed > FanMaxSpeed {
		return fmt.Errorf("%w: fan speed %d outside [%d,%d]", ErrInvalidParameter, speed, FanOff, FanMaxSpeed)
	}
	old := h.fan
	h.fan = speed
	h.record(CategoryFan, "Fan speed changed from %s to %s", old, speed)
	return nil
}

// ToggleCamera flips a camera on or off.
func (h *Home) ToggleCamera(id CameraID) error {
	on, err := h.Camera(id)
	if err != nil {
		return err
	}
	h.cameras[id] = !on
	h.record(CategorySecurity, "%s camera turned %s", displayName(string(id)), onOff(!on))
	return nil
}

// SetSecuritySystem sets the security mode. Any mode may follow any other.
func (h *Home) SetSecuritySystem(mode SecurityMode) error {
	if !validSecurityMode(mode) {
		return fmt.Errorf("%w: security mode %q", ErrInvalidParameter, mode)
	}
	old := h.security
	h.security = mode
	h.record(CategorySecurity, "Security system changed from %s to %s", old, mode)
	return nil
}

// SetDoor sets a door's status. Opening a door while the security system is
// armed raises a door alert and logs it after the door entry.
func (h *Home) SetDoor(id DoorID, status DoorStatus) error {
	if _, err := h.Door(id); err != nil {
		return err
	}
	if status != DoorOpen && status != DoorClosed {
		return fmt.Errorf("%w: door status %q", ErrInvalidParameter, status)
	}
	h.doors[id] = status
	h.record(CategorySecurity, "%s door %s", displayName(string(id)), status)

	if status == DoorOpen && h.security != SecurityDisarmed {
		msg := fmt.Sprintf("Security alert: %s door opened while system armed!", id)
		h.raise(DoorAlertKind(id), msg)
		h.record(CategoryAlert, "%s", msg)
	}
	return nil
}

// ToggleIrrigation flips whether a zone is watering.
func (h *Home) ToggleIrrigation(id ZoneID) error {
	zone, err := h.IrrigationZone(id)
	if err != nil {
		return err
	}
	zone.Active = !zone.Active
	h.irrigation[id] = zone

	verb := "deactivated"
	if zone.Active {
		verb = "activated"
	}
	h.record(CategoryIrrigation, "%s irrigation zone %s", displayName(string(id)), verb)
	return nil
}

// UpdateIrrigationSchedule sets a zone's start time (HH:MM) and duration in
// minutes (5 to 60 in steps of 5).
func (h *Home) UpdateIrrigationSchedule(id ZoneID, at string, duration int) error {
	zone, err := h.IrrigationZone(id)
	if err != nil {
		return err
	}
	start, err := time.Parse(scheduleLayout, at)
	if err != nil {
		return fmt.Errorf("%w: schedule %q is not HH:MM", ErrInvalidParameter, at)
	}
	if err := validDuration(duration); err != nil {
		return err
	}
	zone.Schedule = start.Format(scheduleLayout)
	zone.Duration = duration
	h.irrigation[id] = zone
	h.record(CategoryIrrigation, "%s irrigation schedule updated", displayName(string(id)))
	return nil
}

// ConnectWifi joins the named network; every other network is marked
// disconnected.
func (h *Home) ConnectWifi(name string) error {
	idx := h.networkIndex(name)
	if idx < 0 {
		return fmt.Errorf("%w: network %q", ErrUnknownEntity, name)
	}

	networks := h.Networks()
	for i := range networks {
		networks[i].Connected = i == idx
	}
	status := WifiStatus{State: WifiConnected, Network: name, Signal: networks[idx].Signal}
	if err := checkConnected(networks, status); err != nil {
		return err
	}

	h.networks = networks
	h.wifi = status
	h.record(CategoryWifi, "Connected to WiFi network: %s", name)
	return nil
}

// RefreshWifi rescans the visible networks, moving each signal by up to 5
// in either direction.
func (h *Home) RefreshWifi(rng Rand) error {
	for i := range h.networks {
		delta := rng.IntN(2*wifiRefreshSwing+1) - wifiRefreshSwing
		h.networks[i].Signal = clamp(h.networks[i].Signal+delta, MinWifiSignal, MaxWifiSignal)
		if h.networks[i].Connected {
			h.wifi.Signal = h.networks[i].Signal
		}
	}
	h.record(CategoryWifi, "WiFi networks refreshed")
	return nil
}

// ClearAlerts removes every active alert.
func (h *Home) ClearAlerts() error {
	h.alerts.Clear()
	h.record(CategorySystem, "All alerts cleared")
	return nil
}

func validSecurityMode(mode SecurityMode) bool {
	for _, m := range AllSecurityModes() {
		if m == mode {
			return true
		}
	}
	return false
}

func validDuration(minutes int) error {
	if minutes < MinIrrigationDuration || minutes > MaxIrrigationDuration || minutes%IrrigationDurationStep != 0 {
		return fmt.Errorf("%w: duration %d not in [%d,%d] step %d", ErrInvalidParameter,
			minutes, MinIrrigationDuration, MaxIrrigationDuration, IrrigationDurationStep)
	}
	return nil
}

// displayName turns an identifier such as "front_door" into "Front door".
func displayName(id string) string {
	if id == "" {
		return id
	}
	s := strings.ReplaceAll(id, "_", " ")
	return strings.ToUpper(s[:1]) + s[1:]
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
