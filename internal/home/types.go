package home

import (
	"strconv"
	"time"
)

// Room identifies a room with a controllable light.
type Room string

// Room constants.
const (
	RoomLiving  Room = "living"
	RoomKitchen Room = "kitchen"
	RoomBedroom Room = "bedroom"
)

// AllRooms returns all valid room values in display order.
func AllRooms() []Room {
	return []Room{RoomLiving, RoomKitchen, RoomBedroom}
}

// DoorID identifies a monitored door.
type DoorID string

// Door constants.
const (
	DoorMain   DoorID = "main"
	DoorGarage DoorID = "garage"
	DoorBack   DoorID = "back"
)

// AllDoors returns all valid door values in display order.
func AllDoors() []DoorID {
	return []DoorID{DoorMain, DoorGarage, DoorBack}
}

// DoorStatus is the open/closed state of a door.
type DoorStatus string

// DoorStatus constants.
const (
	DoorOpen   DoorStatus = "open"
	DoorClosed DoorStatus = "closed"
)

// CameraID identifies a security camera.
type CameraID string

// Camera constants.
const (
	CameraFrontDoor CameraID = "front_door"
	CameraBackyard  CameraID = "backyard"
	CameraGarage    CameraID = "garage"
)

// AllCameras returns all valid camera values in display order.
func AllCameras() []CameraID {
	return []CameraID{CameraFrontDoor, CameraBackyard, CameraGarage}
}

// ZoneID identifies an irrigation zone.
type ZoneID string

// Zone constants.
const (
	ZoneFrontLawn      ZoneID = "front_lawn"
	ZoneBackGarden     ZoneID = "back_garden"
	ZoneVegetablePatch ZoneID = "vegetable_patch"
)

// AllZones returns all valid irrigation zone values in display order.
func AllZones() []ZoneID {
	return []ZoneID{ZoneFrontLawn, ZoneBackGarden, ZoneVegetablePatch}
}

// SecurityMode is the arming state of the security system.
type SecurityMode string

// SecurityMode constants.
const (
	SecurityDisarmed  SecurityMode = "disarmed"
	SecurityArmedHome SecurityMode = "armed_home"
	SecurityArmedAway SecurityMode = "armed_away"
)

// AllSecurityModes returns all valid security modes.
func AllSecurityModes() []SecurityMode {
	return []SecurityMode{SecurityDisarmed, SecurityArmedHome, SecurityArmedAway}
}

// FanSpeed is the fan level, 0 meaning off.
type FanSpeed int

// Fan speed bounds.
const (
	FanOff      FanSpeed = 0
	FanMaxSpeed FanSpeed = 3
)

// String returns the display name used in activity messages.
func (f FanSpeed) String() string {
	if f == FanOff {
		return "Off"
	}
	return "Level " + strconv.Itoa(int(f))
}

// WifiState is the overall WiFi link state.
type WifiState string

// WifiState constants.
const (
	WifiConnected    WifiState = "connected"
	WifiDisconnected WifiState = "disconnected"
)

// Category classifies an activity entry for presentation.
type Category string

// Category constants.
const (
	CategoryInfo       Category = "info"
	CategoryLight      Category = "light"
	CategoryThermostat Category = "thermostat"
	CategoryFan        Category = "fan"
	CategoryMotion     Category = "motion"
	CategoryAlert      Category = "alert"
	CategorySystem     Category = "system"
	CategorySecurity   Category = "security"
	CategoryIrrigation Category = "irrigation"
	CategoryWifi       Category = "wifi"
)

// AllCategories returns all valid activity categories.
func AllCategories() []Category {
	return []Category{
		CategoryInfo, CategoryLight, CategoryThermostat, CategoryFan,
		CategoryMotion, CategoryAlert, CategorySystem, CategorySecurity,
		CategoryIrrigation, CategoryWifi,
	}
}

// AlertKind is the condition an alert represents. At most one alert of a
// given kind is active at any time.
type AlertKind string

// AlertKind constants.
const (
	AlertTemperatureHigh AlertKind = "temperature_high"
	AlertThermostatHigh  AlertKind = "thermostat_high"
	// Door alerts are tagged per door, see DoorAlertKind.
	alertDoorPrefix AlertKind = "door_opened_while_armed"
)

// DoorAlertKind returns the alert kind raised when the given door is opened
// while the system is armed.
func DoorAlertKind(id DoorID) AlertKind {
	return alertDoorPrefix + ":" + AlertKind(id)
}

// Sensors holds the simulated environmental readings.
type Sensors struct {
	Temperature float64 `json:"temperature"`
	Humidity    int     `json:"humidity"`
	Motion      bool    `json:"motion"`
}

// Thermostat holds the heating target.
type Thermostat struct {
	Target int `json:"target"`
}

// IrrigationZone holds the state and schedule of one zone.
type IrrigationZone struct {
	Active   bool   `json:"active"`
	Schedule string `json:"schedule"` // HH:MM
	Duration int    `json:"duration"` // minutes
}

// WifiNetwork is one visible network.
type WifiNetwork struct {
	Name      string `json:"name"`
	Signal    int    `json:"signal"`
	Security  string `json:"security"`
	Connected bool   `json:"connected"`
}

// WifiStatus is the current link.
type WifiStatus struct {
	State   WifiState `json:"status"`
	Network string    `json:"network"`
	Signal  int       `json:"signal"`
}

// Energy holds cumulative usage in kWh.
type Energy struct {
	Daily   float64 `json:"daily"`
	Weekly  float64 `json:"weekly"`
	Monthly float64 `json:"monthly"`
}

// Alert is an active warning condition.
type Alert struct {
	Kind     AlertKind `json:"kind"`
	Message  string    `json:"message"`
	RaisedAt time.Time `json:"raised_at"`
}

// ActivityEntry is one human-readable line of the activity log.
type ActivityEntry struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Category  Category  `json:"category"`
}

// Snapshot is an independent copy of the full home state.
// Modifying a Snapshot never affects the Home it was taken from.
type Snapshot struct {
	Sensors    Sensors                   `json:"sensors"`
	Lights     map[Room]bool             `json:"lights"`
	Thermostat Thermostat                `json:"thermostat"`
	FanSpeed   FanSpeed                  `json:"fan_speed"`
	Security   SecurityMode              `json:"security"`
	Doors      map[DoorID]DoorStatus     `json:"doors"`
	Cameras    map[CameraID]bool         `json:"cameras"`
	Irrigation map[ZoneID]IrrigationZone `json:"irrigation"`
	Networks   []WifiNetwork             `json:"networks"`
	Wifi       WifiStatus                `json:"wifi"`
	Energy     Energy                    `json:"energy"`
	Alerts     []Alert                   `json:"alerts"`
	Activity   []ActivityEntry           `json:"activity"`
	LastUpdate time.Time                 `json:"last_update"`
}
