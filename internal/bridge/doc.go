// Package bridge connects the session manager to an MQTT broker.
//
// Outbound, a Bridge is a session sink: activity entries and alerts are
// published as they happen and the full snapshot is published retained
// after each tick. Inbound, JSON commands on {prefix}/home/{session}/command
// are executed against that session and answered on .../result.
//
//	b := bridge.New(mqttClient, manager, 1)
//	manager.AddSink(b)
//	manager.OnRemove(b.ClearSession)
//	if err := b.Start(ctx); err != nil {
//	    return err
//	}
//	defer b.Stop()
package bridge
