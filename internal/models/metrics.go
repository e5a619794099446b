package models

// QueueMetrics is derived from the authoritative ticket and barber sets;
// it is never stored.
type QueueMetrics struct {
	ShopID             string `json:"shop_id"`
	QueueLength        int    `json:"queue_length"`
	TicketsInProgress  int    `json:"tickets_in_progress"`
	AverageWaitMinutes int    `json:"average_wait_minutes"`
	ActiveBarbers      int    `json:"active_barbers"`

	// Preferred-barber fulfillment, for reporting only.
	PreferredRequested int `json:"preferred_requested"`
	PreferredFulfilled int `json:"preferred_fulfilled"`
}
