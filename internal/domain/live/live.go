// Package live decides which events are currently running.
package live

import (
	"slices"
	"time"

	"github.com/okian/liveboard/internal/domain/model"
)

// Select returns the sorted, de-duplicated ids of events live at now.
func Select(events []model.Event, now time.Time) []string {
	ids := make([]string, 0, len(events))
	for _, e := range events {
		if e.ID != "" && e.LiveAt(now) {
			ids = append(ids, e.ID)
		}
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

// Equal reports whether two selections contain the same ids. Both must be sorted.
func Equal(a, b []string) bool {
	return slices.Equal(a, b)
}
