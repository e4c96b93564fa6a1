package home

// AlertList holds the currently active alerts in raise order.
//
// Deduplication is by AlertKind: while an alert of a kind is active, further
// alerts of that kind are dropped regardless of their message. Clear is the
// only way to remove alerts.
type AlertList struct {
	alerts []Alert
}

// Raise appends the alert unless one of the same kind is already active.
// It reports whether the alert was added.
func (a *AlertList) Raise(alert Alert) bool {
	if a.Active(alert.Kind) {
		return false
	}
	a.alerts = append(a.alerts, alert)
	return true
}

// Active reports whether an alert of the given kind is active.
func (a *AlertList) Active(kind AlertKind) bool {
	for i := range a.alerts {
		if a.alerts[i].Kind == kind {
			return true
		}
	}
	return false
}

// Clear removes every alert and returns how many were removed.
func (a *AlertList) Clear() int {
	n := len(a.alerts)
	a.alerts = nil
	return n
}

// All returns a copy of the active alerts.
func (a *AlertList) All() []Alert {
	out := make([]Alert, len(a.alerts))
	copy(out, a.alerts)
	return out
}

// Len returns the number of active alerts.
func (a *AlertList) Len() int {
	return len(a.alerts)
}
