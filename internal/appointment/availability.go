package appointment

import (
	"fmt"
	"time"
)

// Slot is one bookable interval on a therapist's calendar, in the
// therapist-local day the caller asked about. StartsAt is the corresponding
// UTC instant a booking request should carry.
type Slot struct {
	StartTime string    `json:"start_time"` // "15:04" therapist-local
	EndTime   string    `json:"end_time"`
	StartsAt  time.Time `json:"starts_at"`
}

// FreeSlots expands the recurring windows matching date's day-of-week into
// slotLength-sized slots, then removes those overlapping a blocked slot and
// those whose exact start is already taken by a non-terminal appointment.
// A date with nothing open yields an empty (non-nil) list.
//
// Occupancy is an exact start-instant match, not an interval-overlap check,
// mirroring the conflict rule used at booking time.
func FreeSlots(windows []AvailabilityWindow, blocked []BlockedSlot, booked []Appointment, date time.Time, loc *time.Location, slotLength time.Duration) []Slot {
	slotMins := int(slotLength / time.Minute)
	if slotMins <= 0 {
		slotMins = 60
	}

	taken := make(map[int64]bool, len(booked))
	for _, a := range booked {
		if a.Status == StatusPending || a.Status == StatusConfirmed {
			taken[a.ScheduledAt.Unix()] = true
		}
	}

	year, month, day := date.Date()

	slots := []Slot{}
	for _, w := range windows {
		if !w.Active {
			continue
		}
		for start := w.StartMinute; start+slotMins <= w.EndMinute; start += slotMins {
			startsAt := time.Date(year, month, day, 0, start, 0, 0, loc)
			endsAt := startsAt.Add(time.Duration(slotMins) * time.Minute)

			if overlapsBlocked(blocked, startsAt, endsAt) {
				continue
			}
			if taken[startsAt.Unix()] {
				continue
			}

			slots = append(slots, Slot{
				StartTime: clock(start),
				EndTime:   clock(start + slotMins),
				StartsAt:  startsAt.UTC(),
			})
		}
	}

	return slots
}

func overlapsBlocked(blocked []BlockedSlot, startsAt, endsAt time.Time) bool {
	for _, b := range blocked {
		if startsAt.Before(b.EndsAt) && b.StartsAt.Before(endsAt) {
			return true
		}
	}
	return false
}

func clock(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}
