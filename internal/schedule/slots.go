// Package schedule implements the half-hour-aligned time-slot algebra and the
// per-agent weekly working-hours store that availability computation builds on.
package schedule

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Weekday follows the widget convention: 1=Sunday … 7=Saturday.
type Weekday int

// TimeSlot is a half-open range [StartTime, EndTime) of fractional hours
// within one day, always aligned to 0.5 increments.
type TimeSlot struct {
	StartTime float64 `json:"startTime"`
	EndTime   float64 `json:"endTime"`
	Booked    bool    `json:"booked,omitempty"`
}

var (
	ErrStartAfterEnd = errors.New("ERR_INVALID_TIME_RANGE_START_HIGHER_THAN_END")
	ErrStartEqualEnd = errors.New("ERR_INVALID_TIME_RANGE_START_EQUAL_TO_END")
	ErrOutOfBounds   = errors.New("ERR_INVALID_TIME_RANGE_OUT_OF_BOUNDS")
	ErrNotHalfHour   = errors.New("ERR_INVALID_TIME_RANGE_NOT_INCREMENTS_OF_HALF")
	ErrUnderOneHour  = errors.New("ERR_INVALID_TIME_RANGE_LESS_THAN_ONE_HOUR")
	ErrSlotsOverlap  = errors.New("ERR_WORKING_TIMESLOTS_OVERLAPPING")
	ErrDayNotFound   = errors.New("ERR_WORKING_DAY_NOT_FOUND")
	ErrBadWeekday    = errors.New("ERR_INVALID_WEEKDAY")
)

// WeekdayOf maps a calendar date onto the 1=Sunday … 7=Saturday convention.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(int(t.Weekday()) + 1)
}

// ValidateSlot checks a single working or booking range. Every violation is a
// distinct rejectable condition so callers can surface a machine-readable code.
func ValidateSlot(start, end float64) error {
	if start > end {
		return ErrStartAfterEnd
	}
	if start == end {
		return ErrStartEqualEnd
	}
	if start < 0 || start > 24 || end < 0 || end > 24 {
		return ErrOutOfBounds
	}
	if !isHalfIncrement(start) || !isHalfIncrement(end) {
		return ErrNotHalfHour
	}
	if end-start < 1 {
		return ErrUnderOneHour
	}
	return nil
}

func isHalfIncrement(hour float64) bool {
	return math.Mod(hour, 0.5) == 0
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect. Touching ranges
// (e1 == s2) do not overlap.
func Overlaps(s1, e1, s2, e2 float64) bool {
	return s1 < e2 && e1 > s2
}

// Merge folds a slot list into a minimal disjoint cover, sorted by start.
// Adjacent (touching) ranges are coalesced. The input is not mutated.
func Merge(slots []TimeSlot) []TimeSlot {
	if len(slots) == 0 {
		return nil
	}

	sorted := make([]TimeSlot, len(slots))
	copy(sorted, slots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StartTime < sorted[j].StartTime })

	merged := []TimeSlot{sorted[0]}
	for _, current := range sorted[1:] {
		last := &merged[len(merged)-1]
		if current.StartTime <= last.EndTime {
			if current.EndTime > last.EndTime {
				last.EndTime = current.EndTime
			}
		} else {
			merged = append(merged, current)
		}
	}
	return merged
}

// Subtract removes [startHour, startHour+duration) from every slot, splitting
// ranges at the boundary instead of dropping the whole containing slot.
func Subtract(slots []TimeSlot, startHour, duration float64) []TimeSlot {
	endHour := startHour + duration
	var out []TimeSlot

	for _, slot := range slots {
		if slot.EndTime <= startHour || slot.StartTime >= endHour {
			out = append(out, slot)
			continue
		}
		if slot.StartTime < startHour {
			out = append(out, TimeSlot{StartTime: slot.StartTime, EndTime: startHour})
		}
		if slot.EndTime > endHour {
			out = append(out, TimeSlot{StartTime: endHour, EndTime: slot.EndTime})
		}
	}
	return out
}

// HourlySplit slices merged ranges into unit-hour slots. When the start and
// end fractional parts disagree by a half-hour, the half-hour is trimmed from
// whichever edge carries the .5 remainder so the range splits cleanly; the
// partial edge is discarded rather than emitted as a sub-hour slot.
func HourlySplit(slots []TimeSlot) []TimeSlot {
	var out []TimeSlot
	for _, slot := range slots {
		start, end := slot.StartTime, slot.EndTime
		startHalf := math.Mod(start, 1)
		endHalf := math.Mod(end, 1)

		if startHalf != endHalf {
			if startHalf == 0.5 {
				end -= 0.5
			} else {
				start += 0.5
			}
		}

		for hour := start; hour < end; hour++ {
			out = append(out, TimeSlot{StartTime: hour, EndTime: hour + 1})
		}
	}
	return out
}

// NormalizeDate zero-pads the day and month of a dd-mm-yyyy date string.
func NormalizeDate(date string) string {
	parts := strings.Split(date, "-")
	if len(parts) != 3 {
		return date
	}
	if len(parts[0]) == 1 {
		parts[0] = "0" + parts[0]
	}
	if len(parts[1]) == 1 {
		parts[1] = "0" + parts[1]
	}
	return strings.Join(parts, "-")
}

// ParseDate parses a dd-mm-yyyy date string.
func ParseDate(date string) (time.Time, error) {
	t, err := time.Parse("02-01-2006", NormalizeDate(date))
	if err != nil {
		return time.Time{}, fmt.Errorf("schedule: parse date %q: %w", date, err)
	}
	return t, nil
}

// FormatDate renders a calendar date in the dd-mm-yyyy widget form.
func FormatDate(t time.Time) string {
	return t.Format("02-01-2006")
}
