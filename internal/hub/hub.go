// Package hub fans queue events out to realtime subscribers. Events for a
// single shop are sequenced and delivered in publish order; there is no
// ordering across shops. Slow subscribers lose their oldest undelivered
// events rather than blocking publishers.
package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"
)

type EventType string

const (
	EventTicketCreated       EventType = "ticket.created"
	EventTicketUpdated       EventType = "ticket.updated"
	EventTicketStatusChanged EventType = "ticket.status.changed"
	EventTicketDeleted       EventType = "ticket.deleted"
	EventMetricsUpdated      EventType = "metrics.updated"
	EventBarberStatusChanged EventType = "barber.status.changed"
	EventQueueCleared        EventType = "queue.cleared"
	EventError               EventType = "error"
)

type Event struct {
	Type      EventType   `json:"type"`
	ShopID    string      `json:"shop_id"`
	Seq       uint64      `json:"seq"`
	Payload   interface{} `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
}

// SendBuffer is the per-client outbound queue depth. When it fills, the
// oldest queued event is dropped so the publisher never blocks.
const SendBuffer = 64

type Client struct {
	ID   string
	Send chan []byte

	subscribed bool
	shopID     string
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	seq     map[string]uint64
}

func New() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		seq:     make(map[string]uint64),
	}
}

func NewClient(id string) *Client {
	return &Client{ID: id, Send: make(chan []byte, SendBuffer)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

// Subscribe points the client at one shop's stream. An empty shopID
// subscribes to every shop, which in-process consumers use. A registered
// client receives nothing until it subscribes.
func (h *Hub) Subscribe(client *Client, shopID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.subscribed = true
	client.shopID = shopID
}

func (h *Hub) Unsubscribe(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.subscribed = false
	client.shopID = ""
}

// Publish stamps the event with the shop's next sequence number and hands
// it to every matching subscriber. Mutations for one shop are serialized
// upstream, so per-shop sequence numbers come out in delivery order.
func (h *Hub) Publish(event Event) {
	h.mu.Lock()
	h.seq[event.ShopID]++
	event.Seq = h.seq[event.ShopID]
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		h.mu.Unlock()
		log.Printf("hub marshal error shop=%s type=%s: %v", event.ShopID, event.Type, err)
		return
	}
	for _, client := range h.clients {
		if !client.subscribed {
			continue
		}
		if client.shopID != "" && client.shopID != event.ShopID {
			continue
		}
		deliver(client, payload)
	}
	h.mu.Unlock()
}

func deliver(client *Client, payload []byte) {
	select {
	case client.Send <- payload:
		return
	default:
	}
	// Buffer full: drop the oldest event, then retry once.
	select {
	case <-client.Send:
	default:
	}
	select {
	case client.Send <- payload:
	default:
		log.Printf("hub drop event for client %s", client.ID)
	}
}
