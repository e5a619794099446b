// Package memory is an in-process store.Store used by tests and by local
// development runs without a database. All operations are atomic under a
// single mutex; per-shop serialization across calls is still the queue
// service's job.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"
	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/store"
)

// rollingWindow is how many recent completions feed the per-service
// average duration.
const rollingWindow = 10

type Store struct {
	mu        sync.Mutex
	shops     map[string]models.Shop
	services  map[string]map[string]models.Service
	barbers   map[string]map[string]models.Barber
	tickets   map[string]map[int64]models.Ticket
	audits    map[string][]store.AuditEntry
	nextID    map[string]int64
	positions map[string]int
}

func New() *Store {
	return &Store{
		shops:     make(map[string]models.Shop),
		services:  make(map[string]map[string]models.Service),
		barbers:   make(map[string]map[string]models.Barber),
		tickets:   make(map[string]map[int64]models.Ticket),
		audits:    make(map[string][]store.AuditEntry),
		nextID:    make(map[string]int64),
		positions: make(map[string]int),
	}
}

// Seed helpers, used by tests and the dev fixture path.

func (s *Store) PutShop(shop models.Shop) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shops[shop.ShopID] = shop
}

func (s *Store) PutService(service models.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.services[service.ShopID] == nil {
		s.services[service.ShopID] = make(map[string]models.Service)
	}
	s.services[service.ShopID][service.ServiceID] = service
}

func (s *Store) PutBarber(barber models.Barber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.barbers[barber.ShopID] == nil {
		s.barbers[barber.ShopID] = make(map[string]models.Barber)
	}
	s.barbers[barber.ShopID][barber.BarberID] = barber
}

func (s *Store) GetShop(ctx context.Context, shopID string) (models.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	shop, ok := s.shops[shopID]
	if !ok {
		return models.Shop{}, store.ErrShopNotFound
	}
	return shop, nil
}

func (s *Store) GetShopBySlug(ctx context.Context, slug string) (models.Shop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, shop := range s.shops {
		if shop.Slug == slug {
			return shop, nil
		}
	}
	return models.Shop{}, store.ErrShopNotFound
}

func (s *Store) UpdateShopSettings(ctx context.Context, shopID string, settings models.ShopSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	shop, ok := s.shops[shopID]
	if !ok {
		return store.ErrShopNotFound
	}
	shop.Settings = settings
	s.shops[shopID] = shop
	return nil
}

func (s *Store) GetService(ctx context.Context, shopID, serviceID string) (models.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	service, ok := s.services[shopID][serviceID]
	if !ok {
		return models.Service{}, store.ErrServiceNotFound
	}
	return service, nil
}

func (s *Store) GetTicket(ctx context.Context, shopID string, ticketID int64) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ticket, ok := s.tickets[shopID][ticketID]
	if !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	return ticket, nil
}

func (s *Store) ListActiveTickets(ctx context.Context, shopID string) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Ticket
	for _, t := range s.tickets[shopID] {
		if t.Status.Active() {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TicketID < out[j].TicketID })
	return out, nil
}

func (s *Store) ListWaitingTickets(ctx context.Context, shopID string) ([]models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Ticket
	for _, t := range s.tickets[shopID] {
		if t.Status == models.StatusWaiting {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

func (s *Store) InsertTicket(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shops[ticket.ShopID]; !ok {
		return models.Ticket{}, store.ErrShopNotFound
	}
	s.nextID[ticket.ShopID]++
	ticket.TicketID = s.nextID[ticket.ShopID]
	if s.tickets[ticket.ShopID] == nil {
		s.tickets[ticket.ShopID] = make(map[int64]models.Ticket)
	}
	s.tickets[ticket.ShopID][ticket.TicketID] = ticket
	return ticket, nil
}

func (s *Store) UpdateTicket(ctx context.Context, ticket models.Ticket) (models.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tickets[ticket.ShopID][ticket.TicketID]; !ok {
		return models.Ticket{}, store.ErrTicketNotFound
	}
	s.tickets[ticket.ShopID][ticket.TicketID] = ticket
	return ticket, nil
}

func (s *Store) DeleteTickets(ctx context.Context, shopID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := 0
	for id, t := range s.tickets[shopID] {
		if t.Status.Active() {
			delete(s.tickets[shopID], id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *Store) NextPosition(ctx context.Context, shopID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[shopID]++
	return s.positions[shopID], nil
}

func (s *Store) ListBarbers(ctx context.Context, shopID string) ([]models.Barber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Barber
	for _, b := range s.barbers[shopID] {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BarberID < out[j].BarberID })
	return out, nil
}

func (s *Store) GetBarber(ctx context.Context, shopID, barberID string) (models.Barber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	barber, ok := s.barbers[shopID][barberID]
	if !ok {
		return models.Barber{}, store.ErrBarberNotFound
	}
	return barber, nil
}

func (s *Store) SetBarberPresence(ctx context.Context, shopID, barberID string, present bool) (models.Barber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	barber, ok := s.barbers[shopID][barberID]
	if !ok {
		return models.Barber{}, store.ErrBarberNotFound
	}
	barber.IsPresent = present
	s.barbers[shopID][barberID] = barber
	return barber, nil
}

func (s *Store) AverageServiceDuration(ctx context.Context, shopID, serviceID string) (time.Duration, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var completed []models.Ticket
	for _, t := range s.tickets[shopID] {
		if t.Status == models.StatusCompleted && t.ServiceID == serviceID && t.StartedAt != nil && t.CompletedAt != nil {
			completed = append(completed, t)
		}
	}
	if len(completed) == 0 {
		return 0, false, nil
	}
	sort.Slice(completed, func(i, j int) bool { return completed[i].CompletedAt.After(*completed[j].CompletedAt) })
	if len(completed) > rollingWindow {
		completed = completed[:rollingWindow]
	}
	var total time.Duration
	for _, t := range completed {
		total += t.CompletedAt.Sub(*t.StartedAt)
	}
	return total / time.Duration(len(completed)), true, nil
}

func (s *Store) AppendAudit(ctx context.Context, entry store.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits[entry.ShopID] = append(s.audits[entry.ShopID], entry)
	return nil
}

func (s *Store) ListAudit(ctx context.Context, shopID string, ticketID int64) ([]store.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []store.AuditEntry
	for _, entry := range s.audits[shopID] {
		if entry.TicketID == ticketID {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (s *Store) PreferredMatchCounts(ctx context.Context, shopID string) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	requested, fulfilled := 0, 0
	for _, t := range s.tickets[shopID] {
		if t.PreferredBarberID == nil {
			continue
		}
		requested++
		if t.BarberID != nil && *t.BarberID == *t.PreferredBarberID {
			fulfilled++
		}
	}
	return requested, fulfilled, nil
}
