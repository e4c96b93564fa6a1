package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of every homesim topic when the config
// leaves mqtt.topic_prefix empty.
const DefaultTopicPrefix = "homesim"

// Home topic leaves.
const (
	LeafActivity = "activity"
	LeafAlert    = "alert"
	LeafState    = "state"
	LeafCommand  = "command"
	LeafResult   = "result"
)

// Topics builds topic strings under a configurable prefix.
//
// Topic layout:
//
//	{prefix}/system/status            retained online/offline status
//	{prefix}/home/{session}/activity  one message per activity entry
//	{prefix}/home/{session}/alert     one message per raised alert
//	{prefix}/home/{session}/state     retained snapshot after each tick
//	{prefix}/home/{session}/command   inbound commands
//	{prefix}/home/{session}/result    outcome of each inbound command
//
// Example:
//
//	t := mqtt.Topics{Prefix: "homesim"}
//	t.HomeState("8c1f...")  // "homesim/home/8c1f.../state"
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return strings.TrimSuffix(t.Prefix, "/")
}

// SystemStatus returns the topic for the service's online/offline status.
func (t Topics) SystemStatus() string {
	return fmt.Sprintf("%s/system/status", t.prefix())
}

// Home returns the topic for one leaf of a session's home.
func (t Topics) Home(sessionID, leaf string) string {
	return fmt.Sprintf("%s/home/%s/%s", t.prefix(), sessionID, leaf)
}

// HomeActivity returns the activity topic for a session.
func (t Topics) HomeActivity(sessionID string) string {
	return t.Home(sessionID, LeafActivity)
}

// HomeAlert returns the alert topic for a session.
func (t Topics) HomeAlert(sessionID string) string {
	return t.Home(sessionID, LeafAlert)
}

// HomeState returns the retained state topic for a session.
func (t Topics) HomeState(sessionID string) string {
	return t.Home(sessionID, LeafState)
}

// HomeCommand returns the command topic for a session.
func (t Topics) HomeCommand(sessionID string) string {
	return t.Home(sessionID, LeafCommand)
}

// CommandResult returns the topic acknowledging commands for a session.
func (t Topics) CommandResult(sessionID string) string {
	return t.Home(sessionID, LeafResult)
}

// AllHomeCommands returns a wildcard matching the command topic of every session.
func (t Topics) AllHomeCommands() string {
	return t.Home("+", LeafCommand)
}

// AllHomeTopics returns a wildcard matching everything published for homes.
func (t Topics) AllHomeTopics() string {
	return fmt.Sprintf("%s/home/#", t.prefix())
}

// ParseHomeTopic extracts the session id and leaf from a home topic.
// It returns ok=false for topics outside {prefix}/home/{session}/{leaf}.
func (t Topics) ParseHomeTopic(topic string) (sessionID, leaf string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix()+"/home/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	if strings.ContainsAny(parts[0], "+#") {
		return "", "", false
	}
	return parts[0], parts[1], true
}
