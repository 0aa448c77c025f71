// Package annotate compares consecutive snapshots of an entity and marks
// entries that are new or moved, then lets those marks fade after a fixed
// presentation window.
package annotate

import "github.com/okian/liveboard/internal/domain/model"

// Annotate decorates current with movement relative to previous. Entries are
// matched by ID, not by position. Entries only present in previous are not
// reported.
func Annotate(current, previous []model.RankedResult) []model.AnnotatedResult {
	out := make([]model.AnnotatedResult, len(current))
	if len(current) == 0 {
		return out
	}

	before := make(map[string]int, len(previous))
	for _, r := range previous {
		before[r.ID] = r.RankPosition
	}

	for i, r := range current {
		a := model.AnnotatedResult{RankedResult: r}
		pos, seen := before[r.ID]
		if !seen {
			a.IsNew = true
		} else {
			p := pos
			a.PreviousPosition = &p
			a.Delta = pos - r.RankPosition
			a.MovingUp = a.Delta > 0
			a.MovingDown = a.Delta < 0
		}
		out[i] = a
	}
	return out
}

// Neutral returns the same entries with every transient flag cleared.
func Neutral(results []model.AnnotatedResult) []model.AnnotatedResult {
	out := make([]model.AnnotatedResult, len(results))
	for i, a := range results {
		out[i] = model.AnnotatedResult{RankedResult: a.RankedResult}
	}
	return out
}

// Plain wraps results without any flags.
func Plain(results []model.RankedResult) []model.AnnotatedResult {
	out := make([]model.AnnotatedResult, len(results))
	for i, r := range results {
		out[i] = model.AnnotatedResult{RankedResult: r}
	}
	return out
}
