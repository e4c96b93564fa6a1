// Package mqtt provides MQTT client connectivity for the home simulator.
//
// This package manages:
//   - Connection to a broker with auto-reconnect
//   - Message publishing with QoS validation and a payload size cap
//   - Topic subscriptions, restored after every reconnect
//   - Last Will and Testament (LWT) for offline detection
//
// The simulator uses MQTT as an optional outbound feed: activity entries,
// alerts and the retained per-session state are published under a
// configurable prefix, and commands for a session are accepted on its
// command topic. See Topics for the layout.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllHomeCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        sessionID, _, _ := client.Topics().ParseHomeTopic(topic)
//	        return handle(sessionID, payload)
//	    })
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) for any broker outside localhost
//   - Anyone who can publish to {prefix}/home/+/command can drive any session
package mqtt
