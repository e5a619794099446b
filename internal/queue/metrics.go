package queue

import (
	"context"

	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"
)

// computeMetrics derives the aggregate counters from the authoritative
// ticket and barber sets. Nothing here is cached; callers recompute after
// every mutation that touches queue composition.
func (s *Service) computeMetrics(ctx context.Context, shop models.Shop, tickets []models.Ticket, barbers []models.Barber) models.QueueMetrics {
	metrics := models.QueueMetrics{ShopID: shop.ShopID}

	for _, b := range barbers {
		if b.Available() {
			metrics.ActiveBarbers++
		}
	}

	var waiting, inProgress []models.Ticket
	for _, t := range tickets {
		switch t.Status {
		case models.StatusWaiting:
			waiting = append(waiting, t)
		case models.StatusInProgress:
			inProgress = append(inProgress, t)
		}
	}
	metrics.QueueLength = len(waiting)
	metrics.TicketsInProgress = len(inProgress)

	if len(waiting) > 0 {
		now := s.now()
		remaining := s.remainingInProgress(ctx, shop, inProgress, now)
		total := 0
		for _, t := range waiting {
			duration := s.serviceDuration(ctx, shop, t.ServiceID)
			total += estimateWaitMinutes(waitingAheadOf(t.Position, waiting), metrics.ActiveBarbers, duration, remaining)
		}
		metrics.AverageWaitMinutes = total / len(waiting)
	}

	if requested, fulfilled, err := s.store.PreferredMatchCounts(ctx, shop.ShopID); err == nil {
		metrics.PreferredRequested = requested
		metrics.PreferredFulfilled = fulfilled
	}

	return metrics
}
