// Package notify turns queue events into customer notifications. A worker
// consumes the hub's event stream and tells the customer at the head of the
// line that their turn is coming up, and a ticket's owner when service
// starts. Delivery failures are logged and never fed back into the queue.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/hub"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/store"
)

type Worker struct {
	store    store.Store
	provider Provider
	client   *hub.Client

	// notified remembers the last head-of-line ticket per shop so a
	// customer hears "you're next" once, not on every queue change.
	notified map[string]int64
}

func NewWorker(st store.Store, provider Provider, h *hub.Hub) *Worker {
	client := hub.NewClient("notify-worker")
	h.Register(client)
	h.Subscribe(client, "")
	return &Worker{
		store:    st,
		provider: provider,
		client:   client,
		notified: make(map[string]int64),
	}
}

// Run consumes events until ctx is cancelled. It is meant to run in its own
// goroutine next to the HTTP server.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-w.client.Send:
			if !ok {
				return
			}
			var event hub.Event
			if err := json.Unmarshal(raw, &event); err != nil {
				log.Printf("notify decode error: %v", err)
				continue
			}
			if err := w.process(ctx, event); err != nil {
				log.Printf("notify process error shop=%s type=%s: %v", event.ShopID, event.Type, err)
			}
		}
	}
}

func (w *Worker) process(ctx context.Context, event hub.Event) error {
	switch event.Type {
	case hub.EventTicketStatusChanged:
		ticket, ok := decodeTicket(event.Payload)
		if ok && ticket.Status == models.StatusInProgress {
			w.deliver(ctx, ticket, renderYourTurn(ticket))
		}
		return w.notifyHead(ctx, event.ShopID)
	case hub.EventTicketCreated, hub.EventTicketDeleted, hub.EventQueueCleared:
		return w.notifyHead(ctx, event.ShopID)
	default:
		return nil
	}
}

// notifyHead looks up the current head of the waiting line and notifies it
// when it changed since the last event.
func (w *Worker) notifyHead(ctx context.Context, shopID string) error {
	waiting, err := w.store.ListWaitingTickets(ctx, shopID)
	if err != nil {
		return err
	}
	if len(waiting) == 0 {
		delete(w.notified, shopID)
		return nil
	}

	head := waiting[0]
	for _, t := range waiting[1:] {
		if t.Position < head.Position {
			head = t
		}
	}
	if w.notified[shopID] == head.TicketID {
		return nil
	}
	w.notified[shopID] = head.TicketID
	w.deliver(ctx, head, renderYouAreNext(head))
	return nil
}

func (w *Worker) deliver(ctx context.Context, ticket models.Ticket, message string) {
	recipient := strings.TrimSpace(ticket.CustomerPhone)
	if recipient == "" {
		return
	}
	if err := w.provider.Send(ctx, message, recipient); err != nil {
		log.Printf("notify send error shop=%s ticket=%d: %v", ticket.ShopID, ticket.TicketID, err)
	}
}

func decodeTicket(payload interface{}) (models.Ticket, bool) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return models.Ticket{}, false
	}
	var ticket models.Ticket
	if err := json.Unmarshal(raw, &ticket); err != nil {
		return models.Ticket{}, false
	}
	if ticket.TicketID == 0 {
		return models.Ticket{}, false
	}
	return ticket, true
}

func renderYouAreNext(ticket models.Ticket) string {
	return strings.ReplaceAll("{name}, você é o próximo da fila!", "{name}", ticket.CustomerName)
}

func renderYourTurn(ticket models.Ticket) string {
	return strings.ReplaceAll("{name}, é a sua vez!", "{name}", ticket.CustomerName)
}
