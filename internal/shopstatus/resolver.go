// Package shopstatus decides whether a shop is accepting check-ins at a
// given instant. Resolution is a pure function of the shop's settings and
// the supplied wall-clock time; callers inject "now" so behavior is
// reproducible in tests.
package shopstatus

import (
	"time"

	"github.com/DebonairSM/eu-to-na-fila-sub002/internal/models"
)

type Period string

const (
	PeriodOpen       Period = "open"
	PeriodBeforeOpen Period = "before_open"
	PeriodLunch      Period = "lunch"
	PeriodAfterClose Period = "after_close"
	PeriodClosedDay  Period = "closed_day"
	PeriodOverride   Period = "override"
)

type Resolution struct {
	IsOpen         bool       `json:"is_open"`
	IsInLunch      bool       `json:"is_in_lunch"`
	NextOpenTime   *time.Time `json:"next_open_time,omitempty"`
	Period         Period     `json:"period"`
	Overridden     bool       `json:"overridden"`
	OverrideReason string     `json:"override_reason,omitempty"`
}

// Resolve evaluates the shop's override, operating hours, and lunch window
// in the shop's timezone. An expired override is ignored; clearing it is
// the caller's concern. A shop with no configured hours is always open.
func Resolve(shop models.Shop, now time.Time) Resolution {
	settings := shop.Settings

	if settings.Override.ActiveAt(now) {
		return Resolution{
			IsOpen:         settings.Override.IsOpen,
			Period:         PeriodOverride,
			Overridden:     true,
			OverrideReason: settings.Override.Reason,
		}
	}

	if len(settings.Hours) == 0 {
		return Resolution{IsOpen: true, Period: PeriodOpen}
	}

	local := now.In(settings.Location())
	hours, ok := settings.Hours[local.Weekday()]
	if !ok {
		return Resolution{
			Period:       PeriodClosedDay,
			NextOpenTime: nextOpen(settings, local),
		}
	}

	minute := local.Hour()*60 + local.Minute()

	if minute < hours.Open {
		open := atMinute(local, hours.Open)
		if settings.AllowQueueBeforeOpen && settings.CheckInHoursBeforeOpen > 0 {
			window := time.Duration(settings.CheckInHoursBeforeOpen) * time.Hour
			if open.Sub(local) <= window {
				return Resolution{IsOpen: true, Period: PeriodBeforeOpen}
			}
		}
		return Resolution{Period: PeriodBeforeOpen, NextOpenTime: &open}
	}

	if minute >= hours.Close {
		return Resolution{
			Period:       PeriodAfterClose,
			NextOpenTime: nextOpen(settings, local),
		}
	}

	if hours.HasLunch() && minute >= hours.LunchStart && minute < hours.LunchEnd {
		end := atMinute(local, hours.LunchEnd)
		return Resolution{
			IsInLunch:    true,
			Period:       PeriodLunch,
			NextOpenTime: &end,
		}
	}

	return Resolution{IsOpen: true, Period: PeriodOpen}
}

// nextOpen scans forward up to seven days for the next configured opening.
func nextOpen(settings models.ShopSettings, local time.Time) *time.Time {
	for i := 1; i <= 7; i++ {
		day := local.AddDate(0, 0, i)
		if hours, ok := settings.Hours[day.Weekday()]; ok {
			open := atMinute(day, hours.Open)
			return &open
		}
	}
	return nil
}

func atMinute(day time.Time, minute int) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), minute/60, minute%60, 0, 0, day.Location())
}
