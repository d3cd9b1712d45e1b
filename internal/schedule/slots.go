package schedule

import (
	"iter"
	"slices"
	"time"
)

// Slots yields start times every slotMinutes from window.Start while the whole slot fits
// inside the window. Candidates whose slot overlaps brk are skipped. The sequence is
// chronological and can be ranged over any number of times.
func Slots(window Interval, slotMinutes int, brk *Interval) iter.Seq[time.Time] {
	step := time.Duration(slotMinutes) * time.Minute
	return func(yield func(time.Time) bool) {
		if step <= 0 {
			return
		}
		for cur := window.Start; !cur.Add(step).After(window.End); cur = cur.Add(step) {
			if brk != nil && Overlaps(Span(cur, step), *brk) {
				continue
			}
			if !yield(cur) {
				return
			}
		}
	}
}

// GenerateSlots collects Slots into a slice.
func GenerateSlots(window Interval, slotMinutes int, brk *Interval) []time.Time {
	return slices.Collect(Slots(window, slotMinutes, brk))
}

// DaySlots generates the candidate slots of a resolved day. A closed day has none.
func DaySlots(day Day, slotMinutes int) []time.Time {
	if !day.IsOpen {
		return nil
	}
	var brk *Interval
	if b, ok := day.Break(); ok {
		brk = &b
	}
	return GenerateSlots(day.Window(), slotMinutes, brk)
}
