package store

import (
	"context"
	"time"

	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"
)

// Store is the persistence collaborator for the queue core. Implementations
// must make InsertTicket/UpdateTicket/NextPosition atomic per call; cross-call
// serialization per shop is the queue service's responsibility.
type Store interface {
	GetShop(ctx context.Context, shopID string) (models.Shop, error)
	GetShopBySlug(ctx context.Context, slug string) (models.Shop, error)
	UpdateShopSettings(ctx context.Context, shopID string, settings models.ShopSettings) error

	GetService(ctx context.Context, shopID, serviceID string) (models.Service, error)

	GetTicket(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error)
	// ListActiveTickets returns pending, waiting, and in-progress tickets in
	// creation order.
	ListActiveTickets(ctx context.Context, shopID string) ([]models.Ticket, error)
	// ListWaitingTickets returns waiting tickets in position order.
	ListWaitingTickets(ctx context.Context, shopID string) ([]models.Ticket, error)
	InsertTicket(ctx context.Context, ticket models.Ticket) (models.Ticket, error)
	UpdateTicket(ctx context.Context, ticket models.Ticket) (models.Ticket, error)
	DeleteTickets(ctx context.Context, shopID string) (int, error)

	// NextPosition advances the shop's arrival counter and returns the new
	// value. The counter never moves backwards, including across queue drains.
	NextPosition(ctx context.Context, shopID string) (int, error)

	ListBarbers(ctx context.Context, shopID string) ([]models.Barber, error)
	GetBarber(ctx context.Context, shopID, barberID string) (models.Barber, error)
	SetBarberPresence(ctx context.Context, shopID, barberID string, present bool) (models.Barber, error)

	// AverageServiceDuration reports the rolling mean service time of recent
	// completed tickets for the service; ok is false when there is no history.
	AverageServiceDuration(ctx context.Context, shopID, serviceID string) (time.Duration, bool, error)

	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, shopID string, ticketID int64) ([]AuditEntry, error)

	// PreferredMatchCounts reports how many active-or-done tickets requested a
	// preferred barber and how many were served by that barber.
	PreferredMatchCounts(ctx context.Context, shopID string) (requested, fulfilled int, err error)
}

type AuditEntry struct {
	AuditID    string        `json:"audit_id"`
	ShopID     string        `json:"shop_id"`
	TicketID   int64         `json:"ticket_id"`
	FromStatus models.Status `json:"from_status"`
	ToStatus   models.Status `json:"to_status"`
	Actor      models.Actor  `json:"actor"`
	Reason     string        `json:"reason,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
