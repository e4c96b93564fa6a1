package home

import "fmt"

// Command actions accepted by Execute.
const (
	ActionTick                     = "tick"
	ActionToggleLight              = "toggle_light"
	ActionSetThermostat            = "set_thermostat"
	ActionSetFanSpeed              = "set_fan_speed"
	ActionToggleCamera             = "toggle_camera"
	ActionSetSecuritySystem        = "set_security_system"
	ActionSetDoor                  = "set_door"
	ActionToggleIrrigation         = "toggle_irrigation"
	ActionUpdateIrrigationSchedule = "update_irrigation_schedule"
	ActionConnectWifi              = "connect_wifi"
	ActionRefreshWifi              = "refresh_wifi"
	ActionClearAlerts              = "clear_alerts"
)

// Command is a serialisable request to run one action handler. Which
// fields are read depends on Action:
//
//	toggle_light                room in Target
//	set_thermostat              Value
//	set_fan_speed               Value
//	toggle_camera               camera in Target
//	set_security_system         Mode
//	set_door                    door in Target, Status
//	toggle_irrigation           zone in Target
//	update_irrigation_schedule  zone in Target, Time, Duration
//	connect_wifi                Name
//	tick, refresh_wifi, clear_alerts take no arguments
type Command struct {
	Action   string `json:"action"`
	Target   string `json:"target,omitempty"`
	Value    int    `json:"value,omitempty"`
	Status   string `json:"status,omitempty"`
	Mode     string `json:"mode,omitempty"`
	Time     string `json:"time,omitempty"`
	Duration int    `json:"duration,omitempty"`
	Name     string `json:"name,omitempty"`
}

// Execute runs the handler named by cmd.Action.
func (h *Home) Execute(cmd Command, rng Rand) error {
	switch cmd.Action {
	case ActionTick:
		h.Tick(rng)
		return nil
	case ActionToggleLight:
		return h.ToggleLight(Room(cmd.Target))
	case ActionSetThermostat:
		return h.SetThermostat(cmd.Value)
	case ActionSetFanSpeed:
		return h.SetFanSpeed(FanSpeed(cmd.Value))
	case ActionToggleCamera:
		return h.ToggleCamera(CameraID(cmd.Target))
	case ActionSetSecuritySystem:
		return h.SetSecuritySystem(SecurityMode(cmd.Mode))
	case ActionSetDoor:
		return h.SetDoor(DoorID(cmd.Target), DoorStatus(cmd.Status))
	case ActionToggleIrrigation:
		return h.ToggleIrrigation(ZoneID(cmd.Target))
	case ActionUpdateIrrigationSchedule:
		return h.UpdateIrrigationSchedule(ZoneID(cmd.Target), cmd.Time, cmd.Duration)
	case ActionConnectWifi:
		return h.ConnectWifi(cmd.Name)
	case ActionRefreshWifi:
		return h.RefreshWifi(rng)
	case ActionClearAlerts:
		return h.ClearAlerts()
	default:
		return fmt.Errorf("%w: unknown action %q", ErrInvalidParameter, cmd.Action)
	}
}
