package home

import (
	"math"
	"strconv"
)

// Rand is the random source consumed by Tick and RefreshWifi.
// *math/rand/v2.Rand satisfies it; tests substitute scripted sources.
type Rand interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// IntN returns a value in [0, n).
	IntN(n int) int
}

// Simulation constants.
const (
	temperatureSwing      = 0.8 // total width of the per-tick temperature delta
	humiditySwing         = 2.0
	motionProbability     = 0.1
	temperatureAlertAbove = 26.0
	energyDeltaMin        = -0.2
	energyDeltaWidth      = 0.5
	weeksPerDay           = 7
	monthsPerDay          = 30
	wifiDropProbability   = 0.02
	wifiRejoinProbability = 0.2
)

// Tick advances the simulated sensors, energy counters and WiFi link by one
// step. The rules run in a fixed order, so a seeded source replays the same
// sequence of states.
func (h *Home) Tick(rng Rand) {
	h.tickTemperature(rng)
	h.tickHumidity(rng)
	h.tickMotion(rng)
	h.checkTemperature()
	h.tickEnergy(rng)
	h.tickWifi(rng)

	h.lastUpdate = h.now()
	h.emit(Event{Kind: EventTick, Telemetry: &Telemetry{
		Timestamp: h.lastUpdate,
		Sensors:   h.sensors,
		Energy:    h.energy,
		Wifi:      h.wifi,
	}})
}

func (h *Home) tickTemperature(rng Rand) {
	delta := (rng.Float64() - 0.5) * temperatureSwing
	h.sensors.Temperature = round(h.sensors.Temperature+delta, 1)
}

func (h *Home) tickHumidity(rng Rand) {
	delta := (rng.Float64() - 0.5) * humiditySwing
	humidity := int(math.RoundToEven(float64(h.sensors.Humidity) + delta))
	h.sensors.Humidity = clamp(humidity, MinHumidity, MaxHumidity)
}

// tickMotion sets motion with a fixed probability. Only the false->true
// transition is logged; clearing is silent.
func (h *Home) tickMotion(rng Rand) {
	if rng.Float64() < motionProbability {
		if !h.sensors.Motion {
			h.sensors.Motion = true
			h.record(CategoryMotion, "Motion detected")
		}
		return
	}
	h.sensors.Motion = false
}

func (h *Home) checkTemperature() {
	if h.sensors.Temperature <= temperatureAlertAbove || h.alerts.Active(AlertTemperatureHigh) {
		return
	}
	msg := "Temperature above normal: " + strconv.FormatFloat(h.sensors.Temperature, 'f', 1, 64) + "°C"
	h.raise(AlertTemperatureHigh, msg)
	h.record(CategoryAlert, "%s", msg)
}

func (h *Home) tickEnergy(rng Rand) {
	delta := energyDeltaMin + rng.Float64()*energyDeltaWidth
	h.energy.Daily = round(h.energy.Daily+delta, 2)
	h.energy.Weekly = round(h.energy.Weekly+delta*weeksPerDay, 2)
	h.energy.Monthly = round(h.energy.Monthly+delta*monthsPerDay, 2)
}

func (h *Home) tickWifi(rng Rand) {
	if h.wifi.State == WifiConnected {
		h.wifi.Signal = clamp(h.wifi.Signal+rng.IntN(3)-1, MinWifiSignal, MaxWifiSignal)
		if i := h.networkIndex(h.wifi.Network); i >= 0 {
			h.networks[i].Signal = h.wifi.Signal
		}
		if rng.Float64() < wifiDropProbability {
			h.wifi.State = WifiDisconnected
			for i := range h.networks {
				h.networks[i].Connected = false
			}
			h.record(CategoryAlert, "WiFi connection lost")
		}
		return
	}

	if rng.Float64() < wifiRejoinProbability {
		i := h.networkIndex(h.wifi.Network)
		if i < 0 {
			return
		}
		h.networks[i].Connected = true
		h.wifi.State = WifiConnected
		h.wifi.Signal = h.networks[i].Signal
		h.record(CategoryWifi, "WiFi reconnected to %s", h.wifi.Network)
	}
}

func (h *Home) networkIndex(name string) int {
	for i := range h.networks {
		if h.networks[i].Name == name {
			return i
		}
	}
	return -1
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
