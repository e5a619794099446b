package queue

import (
	"context"
	"time"

	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"
)

// serviceDuration picks the duration used for a ticket's wait estimate.
// The blend is deterministic per service id: the rolling average of recent
// completed tickets for that service wins when history exists, otherwise
// the shop's default applies. Preferred-barber hints never affect it.
func (s *Service) serviceDuration(ctx context.Context, shop models.Shop, serviceID string) time.Duration {
	if serviceID != "" {
		if avg, ok, err := s.store.AverageServiceDuration(ctx, shop.ShopID, serviceID); err == nil && ok && avg > 0 {
			return avg
		}
	}
	if shop.Settings.DefaultServiceDuration > 0 {
		return shop.Settings.DefaultServiceDuration
	}
	return 30 * time.Minute
}

// estimateWaitMinutes is the wait heuristic:
//
//	ceil(waitingAhead / barbers) * duration + ceil(remainingInProgress / barbers)
//
// waitingAhead counts waiting tickets with a smaller position; each ticket
// currently being served contributes only its remaining service time. Zero
// present barbers estimate as one so an empty shift never yields an
// infinite wait.
func estimateWaitMinutes(waitingAhead, activeBarbers int, duration, remainingInProgress time.Duration) int {
	if activeBarbers < 1 {
		activeBarbers = 1
	}
	minutes := 0
	if waitingAhead > 0 {
		rounds := (waitingAhead + activeBarbers - 1) / activeBarbers
		minutes = rounds * ceilMinutes(duration)
	}
	if remainingInProgress > 0 {
		minutes += (ceilMinutes(remainingInProgress) + activeBarbers - 1) / activeBarbers
	}
	return minutes
}

// ceilMinutes rounds a duration up to whole minutes so short services
// still contribute to the estimate instead of truncating to zero.
func ceilMinutes(d time.Duration) int {
	return int((d + time.Minute - 1) / time.Minute)
}

// remainingInProgress sums how much service time the in-progress tickets
// still hold, clamped to [0, duration] per ticket.
func (s *Service) remainingInProgress(ctx context.Context, shop models.Shop, inProgress []models.Ticket, now time.Time) time.Duration {
	var total time.Duration
	for _, t := range inProgress {
		duration := s.serviceDuration(ctx, shop, t.ServiceID)
		remaining := duration
		if t.StartedAt != nil {
			remaining -= now.Sub(*t.StartedAt)
		}
		if remaining < 0 {
			remaining = 0
		}
		total += remaining
	}
	return total
}

func waitingAheadOf(position int, waiting []models.Ticket) int {
	ahead := 0
	for _, t := range waiting {
		if t.Position < position {
			ahead++
		}
	}
	return ahead
}

// decorate fills the derived read-side fields: rank among waiting tickets
// and the wait estimate. Position itself stays an internal arrival marker.
func (s *Service) decorate(ctx context.Context, shop models.Shop, ticket models.Ticket, waiting, inProgress []models.Ticket, activeBarbers int) models.Ticket {
	if ticket.Status != models.StatusWaiting {
		ticket.Rank = 0
		ticket.EstimatedWaitMinutes = 0
		return ticket
	}
	rank := 1
	for _, other := range waiting {
		if other.TicketID != ticket.TicketID && other.Position < ticket.Position {
			rank++
		}
	}
	ticket.Rank = rank
	duration := s.serviceDuration(ctx, shop, ticket.ServiceID)
	remaining := s.remainingInProgress(ctx, shop, inProgress, s.now())
	ticket.EstimatedWaitMinutes = estimateWaitMinutes(waitingAheadOf(ticket.Position, waiting), activeBarbers, duration, remaining)
	return ticket
}
