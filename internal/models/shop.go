package models

import "time"

type Shop struct {
	ShopID   string       `json:"shop_id"`
	Slug     string       `json:"slug"`
	Name     string       `json:"name"`
	Settings ShopSettings `json:"settings"`
}

type ShopSettings struct {
	MaxQueueSize                  int           `json:"max_queue_size"`
	DefaultServiceDuration        time.Duration `json:"default_service_duration"`
	AllowDuplicateNames           bool          `json:"allow_duplicate_names"`
	DeviceDeduplication           bool          `json:"device_deduplication"`
	AllowCustomerCancelInProgress bool          `json:"allow_customer_cancel_in_progress"`
	AllowQueueBeforeOpen          bool          `json:"allow_queue_before_open"`
	CheckInHoursBeforeOpen        int           `json:"check_in_hours_before_open"`
	NoShowGrace                   time.Duration `json:"no_show_grace"`
	Timezone                      string        `json:"timezone"`

	// Hours holds one entry per weekday; a missing weekday means closed
	// that day.
	Hours map[time.Weekday]DayHours `json:"hours"`

	Override *Override `json:"override,omitempty"`
}

// DayHours are minutes-of-day offsets in the shop's timezone. LunchStart
// and LunchEnd are zero when no lunch break is configured.
type DayHours struct {
	Open       int `json:"open"`
	Close      int `json:"close"`
	LunchStart int `json:"lunch_start,omitempty"`
	LunchEnd   int `json:"lunch_end,omitempty"`
}

func (h DayHours) HasLunch() bool {
	return h.LunchEnd > h.LunchStart
}

// Override is a staff-set open/closed flag that supersedes computed hours
// until it expires. Expired overrides are ignored, not cleared, by readers.
type Override struct {
	IsOpen bool      `json:"is_open"`
	Until  time.Time `json:"until"`
	Reason string    `json:"reason,omitempty"`
}

func (o *Override) ActiveAt(now time.Time) bool {
	return o != nil && now.Before(o.Until)
}

// Location resolves the shop's timezone, falling back to UTC when the
// configured name is absent or unknown.
func (s ShopSettings) Location() *time.Location {
	if s.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type Service struct {
	ServiceID string        `json:"service_id"`
	ShopID    string        `json:"shop_id"`
	Name      string        `json:"name"`
	Duration  time.Duration `json:"duration"`
	Active    bool          `json:"active"`
}
