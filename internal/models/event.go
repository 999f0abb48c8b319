package models

import "time"

// Event is an audit record of something the manager did to an instance.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`  // e.g. "server.create", "properties.update"
	Level     string    `json:"level"` // "info", "warn" or "error"
	Message   string    `json:"message"`
	ServerID  *string   `json:"serverId,omitempty"` // nil for manager-wide events
	CreatedAt time.Time `json:"createdAt"`
}
