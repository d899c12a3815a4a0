package websocket

import (
	"encoding/json"
	"sync"
)

// SettlementUpdate is pushed to a member when one of their settlements
// changes status. Amount is a formatted decimal string.
type SettlementUpdate struct {
	SettlementID string `json:"settlement_id"`
	TeamID       string `json:"team_id"`
	Status       string `json:"status"`
	Amount       string `json:"amount"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// BroadcastSettlement delivers best-effort: a slow client's full buffer
// drops the message rather than blocking the committing request.
func (h *Hub) BroadcastSettlement(userID string, update SettlementUpdate) {
	payload, _ := json.Marshal(update)
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}
