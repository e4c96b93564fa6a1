package bridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/homesim-core/internal/home"
	"github.com/nerrad567/homesim-core/internal/infrastructure/mqtt"
)

// CommandMessage is the payload accepted on a session's command topic.
//
//	{"request_id":"42","action":"set_thermostat","value":24}
type CommandMessage struct {
	RequestID string `json:"request_id,omitempty"`
	home.Command
}

// CommandResult is published on the session's result topic for every
// command received, successful or not.
type CommandResult struct {
	RequestID string `json:"request_id,omitempty"`
	Action    string `json:"action"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
}

// DecodeCommand parses a command payload.
func DecodeCommand(payload []byte) (CommandMessage, error) {
	var msg CommandMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return CommandMessage{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	if msg.Action == "" {
		return CommandMessage{}, fmt.Errorf("%w: missing action", ErrInvalidCommand)
	}
	return msg, nil
}

func (b *Bridge) commandHandler(ctx context.Context) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		sessionID, leaf, ok := b.topics.ParseHomeTopic(topic)
		if !ok || leaf != mqtt.LeafCommand {
			return fmt.Errorf("unexpected command topic %q", topic)
		}
		result := b.execute(ctx, sessionID, payload)
		b.publishJSON(b.topics.CommandResult(sessionID), result, false)
		if !result.OK {
			return fmt.Errorf("command %q for session %s: %s", result.Action, sessionID, result.Error)
		}
		return nil
	}
}

// execute runs one command payload against a session.
func (b *Bridge) execute(ctx context.Context, sessionID string, payload []byte) CommandResult {
	msg, err := DecodeCommand(payload)
	if err != nil {
		return CommandResult{OK: false, Error: err.Error()}
	}

	result := CommandResult{RequestID: msg.RequestID, Action: msg.Action}
	err = b.sessions.Do(ctx, sessionID, func(h *home.Home, rng home.Rand) error {
		return h.Execute(msg.Command, rng)
	})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	b.logger.Debug("MQTT command executed", "session_id", sessionID, "action", msg.Action)
	result.OK = true
	return result
}
