package websocket

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// broadcastBuffer bounds queued messages before Publish starts dropping.
const broadcastBuffer = 256

type envelope struct {
	serverID string
	data     []byte
}

// Hub maintains the set of active clients and broadcasts messages to them.
// Clients with an empty ServerID receive everything; the others receive
// global messages and those about their server.
type Hub struct {
	// Registered clients.
	clients map[*Client]bool

	// Outbound messages.
	broadcast chan envelope

	register   chan *Client
	unregister chan *Client

	// Closed when Run returns.
	done chan struct{}

	// A map of server IDs to a set of clients subscribed to it.
	subscriptions map[string]map[*Client]bool
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		broadcast:     make(chan envelope, broadcastBuffer),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		done:          make(chan struct{}),
		clients:       make(map[*Client]bool),
		subscriptions: make(map[string]map[*Client]bool),
	}
}

// Run processes hub traffic until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = true
			if client.ServerID != "" {
				h.addSubscription(client, client.ServerID)
			}
			log.Info().Int("total_clients", len(h.clients)).Str("server_id", client.ServerID).Msg("Client connected")
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
				log.Info().Int("total_clients", len(h.clients)).Msg("Client disconnected")
			}
		case msg := <-h.broadcast:
			if msg.serverID == "" {
				for client := range h.clients {
					h.deliver(client, msg.data)
				}
				continue
			}
			for client := range h.clients {
				if client.ServerID == "" {
					h.deliver(client, msg.data)
				}
			}
			for client := range h.subscriptions[msg.serverID] {
				h.deliver(client, msg.data)
			}
		}
	}
}

// Register adds client. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes client and closes its Send channel.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// deliver drops clients whose send buffer is full.
func (h *Hub) deliver(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		h.drop(client)
	}
}

// Publish queues a message for connected clients. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Publish(action string, payload interface{}) {
	serverID := serverIDOf(payload)
	data, err := json.Marshal(Message{Action: action, ServerID: serverID, Payload: payload})
	if err != nil {
		log.Error().Err(err).Str("action", action).Msg("Failed to encode websocket message")
		return
	}
	select {
	case h.broadcast <- envelope{serverID: serverID, data: data}:
	default:
		log.Warn().Str("action", action).Msg("Websocket broadcast queue full, dropping message")
	}
}

func (h *Hub) drop(client *Client) {
	delete(h.clients, client)
	client.close()
	h.removeSubscription(client)
}

func (h *Hub) addSubscription(client *Client, serverID string) {
	if h.subscriptions[serverID] == nil {
		h.subscriptions[serverID] = make(map[*Client]bool)
	}
	h.subscriptions[serverID][client] = true
}

func (h *Hub) removeSubscription(client *Client) {
	for serverID, subs := range h.subscriptions {
		if _, ok := subs[client]; ok {
			delete(subs, client)
			if len(subs) == 0 {
				delete(h.subscriptions, serverID)
			}
		}
	}
}
