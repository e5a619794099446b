// Package queue implements the scheduling core: deterministic position
// assignment, the ticket lifecycle, barber assignment, and ordered event
// emission. Every mutation for a shop runs inside that shop's critical
// section; readers take bounded snapshot reads and never contend with
// writers beyond the store call itself.
package queue

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/hub"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/shopstatus"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/store"
)

type Service struct {
	store       store.Store
	hub         *hub.Hub
	locks       *lockRegistry
	lockTimeout time.Duration
	now         func() time.Time
}

type Options struct {
	// LockTimeout bounds how long a mutation waits for the shop's critical
	// section before failing with ErrBusy. Zero means wait until ctx is done.
	LockTimeout time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

func New(st store.Store, h *hub.Hub, options Options) *Service {
	now := options.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		store:       st,
		hub:         h,
		locks:       newLockRegistry(),
		lockTimeout: options.LockTimeout,
		now:         now,
	}
}

type CheckInInput struct {
	ShopID            string
	ServiceID         string
	CustomerName      string
	CustomerPhone     string
	ClientID          string
	DeviceID          string
	PreferredBarberID string
}

type BookingInput struct {
	ShopID            string
	ServiceID         string
	CustomerName      string
	CustomerPhone     string
	ClientID          string
	DeviceID          string
	PreferredBarberID string
	ScheduledTime     time.Time
}

type CancelInput struct {
	ShopID   string
	TicketID int64
	Actor    models.Actor
	Reason   string
}

// CheckIn joins a walk-in to the shop's line. When the customer already
// holds an active ticket and duplicates are disallowed, the existing
// ticket is returned with created=false instead of an error.
func (s *Service) CheckIn(ctx context.Context, input CheckInInput) (models.Ticket, bool, error) {
	release, err := s.locks.acquire(ctx, input.ShopID, s.lockTimeout)
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer release()

	shop, err := s.store.GetShop(ctx, input.ShopID)
	if err != nil {
		return models.Ticket{}, false, err
	}

	now := s.now()
	if resolution := shopstatus.Resolve(shop, now); !resolution.IsOpen {
		return models.Ticket{}, false, ErrShopClosed
	}

	if _, err := s.store.GetService(ctx, shop.ShopID, input.ServiceID); err != nil {
		return models.Ticket{}, false, err
	}

	active, err := s.store.ListActiveTickets(ctx, shop.ShopID)
	if err != nil {
		return models.Ticket{}, false, err
	}

	if existing, ok := findActiveConflict(shop.Settings, active, input.CustomerName, input.DeviceID); ok {
		decorated, err := s.snapshotTicket(ctx, shop, existing)
		if err != nil {
			return existing, false, nil
		}
		return decorated, false, nil
	}

	if shop.Settings.MaxQueueSize > 0 && len(active) >= shop.Settings.MaxQueueSize {
		return models.Ticket{}, false, ErrQueueFull
	}

	position, err := s.store.NextPosition(ctx, shop.ShopID)
	if err != nil {
		return models.Ticket{}, false, err
	}

	ticket := models.Ticket{
		ShopID:            shop.ShopID,
		Type:              models.TypeWalkIn,
		Status:            transitionTarget(ActionCheckIn),
		Position:          position,
		ServiceID:         input.ServiceID,
		PreferredBarberID: optional(input.PreferredBarberID),
		CustomerName:      strings.TrimSpace(input.CustomerName),
		CustomerPhone:     input.CustomerPhone,
		ClientID:          optional(input.ClientID),
		DeviceID:          input.DeviceID,
		CreatedAt:         now,
		CheckInTime:       &now,
	}

	ticket, err = s.store.InsertTicket(ctx, ticket)
	if err != nil {
		return models.Ticket{}, false, err
	}

	if err := s.audit(ctx, ticket, "", models.StatusWaiting, models.ActorCustomer, ""); err != nil {
		return models.Ticket{}, false, err
	}

	decorated, err := s.snapshotTicket(ctx, shop, ticket)
	if err != nil {
		decorated = ticket
	}
	s.publishTicket(hub.EventTicketCreated, decorated, now)
	s.publishMetrics(ctx, shop, now)

	return decorated, true, nil
}

// BookAppointment creates a pending ticket for a future visit. The ticket
// enters the waiting line only at check-in.
func (s *Service) BookAppointment(ctx context.Context, input BookingInput) (models.Ticket, bool, error) {
	release, err := s.locks.acquire(ctx, input.ShopID, s.lockTimeout)
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer release()

	shop, err := s.store.GetShop(ctx, input.ShopID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if _, err := s.store.GetService(ctx, shop.ShopID, input.ServiceID); err != nil {
		return models.Ticket{}, false, err
	}

	active, err := s.store.ListActiveTickets(ctx, shop.ShopID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if existing, ok := findActiveConflict(shop.Settings, active, input.CustomerName, input.DeviceID); ok {
		return existing, false, nil
	}

	now := s.now()
	scheduled := input.ScheduledTime
	ticket := models.Ticket{
		ShopID:            shop.ShopID,
		Type:              models.TypeAppointment,
		Status:            models.StatusPending,
		ServiceID:         input.ServiceID,
		PreferredBarberID: optional(input.PreferredBarberID),
		CustomerName:      strings.TrimSpace(input.CustomerName),
		CustomerPhone:     input.CustomerPhone,
		ClientID:          optional(input.ClientID),
		DeviceID:          input.DeviceID,
		CreatedAt:         now,
		ScheduledTime:     &scheduled,
	}

	ticket, err = s.store.InsertTicket(ctx, ticket)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if err := s.audit(ctx, ticket, "", models.StatusPending, models.ActorCustomer, ""); err != nil {
		return models.Ticket{}, false, err
	}

	// A pending ticket is outside the waiting set, so queue composition is
	// unchanged and no metrics event follows.
	s.publishTicket(hub.EventTicketCreated, ticket, now)

	return ticket, true, nil
}

// CheckInAppointment moves a booked ticket into the waiting line at the
// tail of the current positions.
func (s *Service) CheckInAppointment(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
	release, err := s.locks.acquire(ctx, shopID, s.lockTimeout)
	if err != nil {
		return models.Ticket{}, err
	}
	defer release()

	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return models.Ticket{}, err
	}
	now := s.now()
	if resolution := shopstatus.Resolve(shop, now); !resolution.IsOpen {
		return models.Ticket{}, ErrShopClosed
	}

	ticket, err := s.store.GetTicket(ctx, shopID, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !ValidTransition(ActionCheckIn, ticket.Status) {
		return models.Ticket{}, ErrInvalidTransition
	}

	position, err := s.store.NextPosition(ctx, shopID)
	if err != nil {
		return models.Ticket{}, err
	}

	from := ticket.Status
	ticket.Status = transitionTarget(ActionCheckIn)
	ticket.Position = position
	ticket.CheckInTime = &now

	ticket, err = s.store.UpdateTicket(ctx, ticket)
	if err != nil {
		return models.Ticket{}, err
	}
	if err := s.audit(ctx, ticket, from, ticket.Status, models.ActorCustomer, ""); err != nil {
		return models.Ticket{}, err
	}

	decorated, derr := s.snapshotTicket(ctx, shop, ticket)
	if derr != nil {
		decorated = ticket
	}
	s.publishTicket(hub.EventTicketStatusChanged, decorated, now)
	s.publishMetrics(ctx, shop, now)

	return decorated, nil
}

// AssignBarber starts service for a waiting ticket. The barber must belong
// to the shop and be active and present; the core never picks a barber on
// its own, not even the preferred one.
func (s *Service) AssignBarber(ctx context.Context, shopID string, ticketID int64, barberID string) (models.Ticket, error) {
	release, err := s.locks.acquire(ctx, shopID, s.lockTimeout)
	if err != nil {
		return models.Ticket{}, err
	}
	defer release()

	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return models.Ticket{}, err
	}
	ticket, err := s.store.GetTicket(ctx, shopID, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !ValidTransition(ActionAssignBarber, ticket.Status) {
		return models.Ticket{}, ErrInvalidTransition
	}

	barber, err := s.store.GetBarber(ctx, shopID, barberID)
	if err != nil {
		if errors.Is(err, store.ErrBarberNotFound) {
			return models.Ticket{}, ErrBarberUnavailable
		}
		return models.Ticket{}, err
	}
	if !barber.Available() {
		return models.Ticket{}, ErrBarberUnavailable
	}

	now := s.now()
	from := ticket.Status
	ticket.Status = transitionTarget(ActionAssignBarber)
	ticket.BarberID = &barber.BarberID
	ticket.BarberAssignedAt = &now
	ticket.StartedAt = &now
	// Position freezes at its last waiting value for display; the ticket is
	// out of the re-sequencing set from here on.

	ticket, err = s.store.UpdateTicket(ctx, ticket)
	if err != nil {
		return models.Ticket{}, err
	}
	if err := s.audit(ctx, ticket, from, ticket.Status, models.ActorStaff, ""); err != nil {
		return models.Ticket{}, err
	}

	s.publishTicket(hub.EventTicketStatusChanged, ticket, now)
	s.publishMetrics(ctx, shop, now)

	return ticket, nil
}

// UnassignBarber returns an in-progress ticket to the waiting line. The
// ticket re-enters at the tail as a fresh wait; its historical position is
// never restored.
func (s *Service) UnassignBarber(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
	release, err := s.locks.acquire(ctx, shopID, s.lockTimeout)
	if err != nil {
		return models.Ticket{}, err
	}
	defer release()

	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return models.Ticket{}, err
	}
	ticket, err := s.store.GetTicket(ctx, shopID, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !ValidTransition(ActionUnassignBarber, ticket.Status) {
		return models.Ticket{}, ErrInvalidTransition
	}

	position, err := s.store.NextPosition(ctx, shopID)
	if err != nil {
		return models.Ticket{}, err
	}

	now := s.now()
	from := ticket.Status
	ticket.Status = transitionTarget(ActionUnassignBarber)
	ticket.Position = position
	ticket.BarberID = nil
	ticket.BarberAssignedAt = nil
	ticket.StartedAt = nil

	ticket, err = s.store.UpdateTicket(ctx, ticket)
	if err != nil {
		return models.Ticket{}, err
	}
	if err := s.audit(ctx, ticket, from, ticket.Status, models.ActorStaff, "barber unassigned"); err != nil {
		return models.Ticket{}, err
	}

	decorated, derr := s.snapshotTicket(ctx, shop, ticket)
	if derr != nil {
		decorated = ticket
	}
	s.publishTicket(hub.EventTicketStatusChanged, decorated, now)
	s.publishMetrics(ctx, shop, now)

	return decorated, nil
}

// Complete finishes service for an in-progress ticket.
func (s *Service) Complete(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
	release, err := s.locks.acquire(ctx, shopID, s.lockTimeout)
	if err != nil {
		return models.Ticket{}, err
	}
	defer release()

	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return models.Ticket{}, err
	}
	ticket, err := s.store.GetTicket(ctx, shopID, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !ValidTransition(ActionComplete, ticket.Status) {
		return models.Ticket{}, ErrInvalidTransition
	}

	now := s.now()
	from := ticket.Status
	ticket.Status = transitionTarget(ActionComplete)
	ticket.CompletedAt = &now

	ticket, err = s.store.UpdateTicket(ctx, ticket)
	if err != nil {
		return models.Ticket{}, err
	}
	if err := s.audit(ctx, ticket, from, ticket.Status, models.ActorStaff, ""); err != nil {
		return models.Ticket{}, err
	}

	s.publishTicket(hub.EventTicketStatusChanged, ticket, now)
	s.publishMetrics(ctx, shop, now)

	return ticket, nil
}

// Cancel drops a ticket out of the lifecycle. Customers may cancel pending
// and waiting tickets; cancelling one already being served requires staff
// unless the shop allows it.
func (s *Service) Cancel(ctx context.Context, input CancelInput) (models.Ticket, error) {
	release, err := s.locks.acquire(ctx, input.ShopID, s.lockTimeout)
	if err != nil {
		return models.Ticket{}, err
	}
	defer release()

	shop, err := s.store.GetShop(ctx, input.ShopID)
	if err != nil {
		return models.Ticket{}, err
	}
	ticket, err := s.store.GetTicket(ctx, input.ShopID, input.TicketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !ValidTransition(ActionCancel, ticket.Status) {
		return models.Ticket{}, ErrInvalidTransition
	}
	if ticket.Status == models.StatusInProgress &&
		input.Actor == models.ActorCustomer &&
		!shop.Settings.AllowCustomerCancelInProgress {
		return models.Ticket{}, ErrInvalidTransition
	}

	now := s.now()
	from := ticket.Status
	ticket.Status = transitionTarget(ActionCancel)
	ticket.CancelledAt = &now
	ticket.CancelReason = input.Reason
	ticket.CancelledBy = input.Actor

	ticket, err = s.store.UpdateTicket(ctx, ticket)
	if err != nil {
		return models.Ticket{}, err
	}
	if err := s.audit(ctx, ticket, from, ticket.Status, input.Actor, input.Reason); err != nil {
		return models.Ticket{}, err
	}

	s.publishTicket(hub.EventTicketStatusChanged, ticket, now)
	if from == models.StatusWaiting || from == models.StatusInProgress {
		s.publishMetrics(ctx, shop, now)
	}

	return ticket, nil
}

// MarkNoShow cancels a pending appointment whose scheduled time passed the
// grace window. Marking is always an explicit staff action.
func (s *Service) MarkNoShow(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
	release, err := s.locks.acquire(ctx, shopID, s.lockTimeout)
	if err != nil {
		return models.Ticket{}, err
	}
	defer release()

	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return models.Ticket{}, err
	}
	ticket, err := s.store.GetTicket(ctx, shopID, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	if !noShowEligible(ticket, shop.Settings.NoShowGrace, s.now()) {
		return models.Ticket{}, ErrNoShowNotEligible
	}

	now := s.now()
	from := ticket.Status
	ticket.Status = transitionTarget(ActionCancel)
	ticket.CancelledAt = &now
	ticket.CancelReason = "no_show"
	ticket.CancelledBy = models.ActorStaff

	ticket, err = s.store.UpdateTicket(ctx, ticket)
	if err != nil {
		return models.Ticket{}, err
	}
	if err := s.audit(ctx, ticket, from, ticket.Status, models.ActorStaff, "no_show"); err != nil {
		return models.Ticket{}, err
	}

	s.publishTicket(hub.EventTicketStatusChanged, ticket, now)

	return ticket, nil
}

func noShowEligible(ticket models.Ticket, grace time.Duration, now time.Time) bool {
	if ticket.Status != models.StatusPending || ticket.ScheduledTime == nil {
		return false
	}
	return now.Sub(*ticket.ScheduledTime) > grace
}

// ClearQueue deletes every ticket for the shop. Administrative only; the
// normal lifecycle never destroys tickets.
func (s *Service) ClearQueue(ctx context.Context, shopID string) (int, error) {
	release, err := s.locks.acquire(ctx, shopID, s.lockTimeout)
	if err != nil {
		return 0, err
	}
	defer release()

	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return 0, err
	}

	deleted, err := s.store.DeleteTickets(ctx, shopID)
	if err != nil {
		return 0, err
	}

	now := s.now()
	s.hub.Publish(hub.Event{
		Type:      hub.EventQueueCleared,
		ShopID:    shopID,
		Payload:   map[string]int{"deleted": deleted},
		CreatedAt: now,
	})
	s.publishMetrics(ctx, shop, now)

	return deleted, nil
}

// SetBarberPresence toggles a barber's on-shift flag. Presence is part of
// the shop's shared state, so it moves through the same critical section.
func (s *Service) SetBarberPresence(ctx context.Context, shopID, barberID string, present bool) (models.Barber, error) {
	release, err := s.locks.acquire(ctx, shopID, s.lockTimeout)
	if err != nil {
		return models.Barber{}, err
	}
	defer release()

	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return models.Barber{}, err
	}

	barber, err := s.store.SetBarberPresence(ctx, shopID, barberID, present)
	if err != nil {
		return models.Barber{}, err
	}

	now := s.now()
	s.hub.Publish(hub.Event{
		Type:      hub.EventBarberStatusChanged,
		ShopID:    shopID,
		Payload:   barber,
		CreatedAt: now,
	})
	s.publishMetrics(ctx, shop, now)

	return barber, nil
}

// SetOverride installs a temporary open/closed override on the shop.
func (s *Service) SetOverride(ctx context.Context, shopID string, override models.Override) error {
	release, err := s.locks.acquire(ctx, shopID, s.lockTimeout)
	if err != nil {
		return err
	}
	defer release()

	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return err
	}
	shop.Settings.Override = &override
	return s.store.UpdateShopSettings(ctx, shopID, shop.Settings)
}

// ClearOverride removes an override regardless of expiry.
func (s *Service) ClearOverride(ctx context.Context, shopID string) error {
	release, err := s.locks.acquire(ctx, shopID, s.lockTimeout)
	if err != nil {
		return err
	}
	defer release()

	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return err
	}
	shop.Settings.Override = nil
	return s.store.UpdateShopSettings(ctx, shopID, shop.Settings)
}

// Queue returns the waiting line in position order with ranks and wait
// estimates filled in.
func (s *Service) Queue(ctx context.Context, shopID string) ([]models.Ticket, error) {
	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return nil, err
	}
	waiting, inProgress, barbers, err := s.loadQueueState(ctx, shopID)
	if err != nil {
		return nil, err
	}
	activeBarbers := 0
	for _, b := range barbers {
		if b.Available() {
			activeBarbers++
		}
	}
	out := make([]models.Ticket, 0, len(waiting))
	for _, t := range waiting {
		out = append(out, s.decorate(ctx, shop, t, waiting, inProgress, activeBarbers))
	}
	sortByPosition(out)
	return out, nil
}

// Ticket returns one ticket with derived read-side fields.
func (s *Service) Ticket(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return models.Ticket{}, err
	}
	ticket, err := s.store.GetTicket(ctx, shopID, ticketID)
	if err != nil {
		return models.Ticket{}, err
	}
	return s.snapshotTicket(ctx, shop, ticket)
}

// Metrics recomputes the aggregate counters from current state.
func (s *Service) Metrics(ctx context.Context, shopID string) (models.QueueMetrics, error) {
	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return models.QueueMetrics{}, err
	}
	tickets, err := s.store.ListActiveTickets(ctx, shopID)
	if err != nil {
		return models.QueueMetrics{}, err
	}
	barbers, err := s.store.ListBarbers(ctx, shopID)
	if err != nil {
		return models.QueueMetrics{}, err
	}
	return s.computeMetrics(ctx, shop, tickets, barbers), nil
}

// Status resolves the shop's open/closed state at the current instant.
func (s *Service) Status(ctx context.Context, shopID string) (shopstatus.Resolution, error) {
	shop, err := s.store.GetShop(ctx, shopID)
	if err != nil {
		return shopstatus.Resolution{}, err
	}
	return shopstatus.Resolve(shop, s.now()), nil
}

// Shop resolves a shop by id, falling back to slug so public pages can use
// the friendly URL form.
func (s *Service) Shop(ctx context.Context, key string) (models.Shop, error) {
	shop, err := s.store.GetShop(ctx, key)
	if err == nil {
		return shop, nil
	}
	if !errors.Is(err, store.ErrShopNotFound) {
		return models.Shop{}, err
	}
	return s.store.GetShopBySlug(ctx, key)
}

// Audit lists a ticket's transition history.
func (s *Service) Audit(ctx context.Context, shopID string, ticketID int64) ([]store.AuditEntry, error) {
	if _, err := s.store.GetTicket(ctx, shopID, ticketID); err != nil {
		return nil, err
	}
	return s.store.ListAudit(ctx, shopID, ticketID)
}

// findActiveConflict applies the shop's dedup policy against the active
// set. Identity is the device id when device deduplication is on and the
// check-in carries one, otherwise the customer name, case-insensitively.
func findActiveConflict(settings models.ShopSettings, active []models.Ticket, customerName, deviceID string) (models.Ticket, bool) {
	if settings.DeviceDeduplication && deviceID != "" {
		for _, t := range active {
			if t.DeviceID == deviceID {
				return t, true
			}
		}
		return models.Ticket{}, false
	}
	if settings.AllowDuplicateNames {
		return models.Ticket{}, false
	}
	name := strings.ToLower(strings.TrimSpace(customerName))
	if name == "" {
		return models.Ticket{}, false
	}
	for _, t := range active {
		if strings.ToLower(strings.TrimSpace(t.CustomerName)) == name {
			return t, true
		}
	}
	return models.Ticket{}, false
}

func (s *Service) loadQueueState(ctx context.Context, shopID string) (waiting, inProgress []models.Ticket, barbers []models.Barber, err error) {
	tickets, err := s.store.ListActiveTickets(ctx, shopID)
	if err != nil {
		return nil, nil, nil, err
	}
	for _, t := range tickets {
		switch t.Status {
		case models.StatusWaiting:
			waiting = append(waiting, t)
		case models.StatusInProgress:
			inProgress = append(inProgress, t)
		}
	}
	barbers, err = s.store.ListBarbers(ctx, shopID)
	if err != nil {
		return nil, nil, nil, err
	}
	return waiting, inProgress, barbers, nil
}

func sortByPosition(tickets []models.Ticket) {
	sort.Slice(tickets, func(i, j int) bool { return tickets[i].Position < tickets[j].Position })
}

func (s *Service) snapshotTicket(ctx context.Context, shop models.Shop, ticket models.Ticket) (models.Ticket, error) {
	waiting, inProgress, barbers, err := s.loadQueueState(ctx, shop.ShopID)
	if err != nil {
		return models.Ticket{}, err
	}
	activeBarbers := 0
	for _, b := range barbers {
		if b.Available() {
			activeBarbers++
		}
	}
	return s.decorate(ctx, shop, ticket, waiting, inProgress, activeBarbers), nil
}

func (s *Service) audit(ctx context.Context, ticket models.Ticket, from, to models.Status, actor models.Actor, reason string) error {
	return s.store.AppendAudit(ctx, store.AuditEntry{
		AuditID:    uuid.NewString(),
		ShopID:     ticket.ShopID,
		TicketID:   ticket.TicketID,
		FromStatus: from,
		ToStatus:   to,
		Actor:      actor,
		Reason:     reason,
		CreatedAt:  s.now(),
	})
}

// publishTicket emits the primary event for a mutation. Callers emit the
// metrics event afterwards when queue composition changed, in that order,
// while still inside the shop's critical section so subscribers see a
// coherent sequence.
func (s *Service) publishTicket(eventType hub.EventType, ticket models.Ticket, now time.Time) {
	s.hub.Publish(hub.Event{
		Type:      eventType,
		ShopID:    ticket.ShopID,
		Payload:   ticket,
		CreatedAt: now,
	})
}

func (s *Service) publishMetrics(ctx context.Context, shop models.Shop, now time.Time) {
	tickets, err := s.store.ListActiveTickets(ctx, shop.ShopID)
	if err != nil {
		s.hub.Publish(hub.Event{Type: hub.EventError, ShopID: shop.ShopID, Payload: err.Error(), CreatedAt: now})
		return
	}
	barbers, err := s.store.ListBarbers(ctx, shop.ShopID)
	if err != nil {
		s.hub.Publish(hub.Event{Type: hub.EventError, ShopID: shop.ShopID, Payload: err.Error(), CreatedAt: now})
		return
	}
	s.hub.Publish(hub.Event{
		Type:      hub.EventMetricsUpdated,
		ShopID:    shop.ShopID,
		Payload:   s.computeMetrics(ctx, shop, tickets, barbers),
		CreatedAt: now,
	})
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
