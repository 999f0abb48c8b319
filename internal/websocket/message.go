package websocket

import (
	"encoding/json"

	"github.com/isdelr/ender-local/internal/models"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action   string      `json:"action"`
	ServerID string      `json:"serverId,omitempty"`
	Payload  interface{} `json:"payload"`
}

// NewErrorMessage encodes an error reply for a single client.
func NewErrorMessage(text string) []byte {
	data, _ := json.Marshal(Message{Action: "error", Payload: map[string]string{"message": text}})
	return data
}

// serverIDOf extracts the instance a payload is about, "" for global ones.
func serverIDOf(payload interface{}) string {
	switch p := payload.(type) {
	case models.Server:
		return p.ID
	case *models.Server:
		return p.ID
	case map[string]string:
		return p["id"]
	case map[string]interface{}:
		id, _ := p["id"].(string)
		return id
	}
	return ""
}
