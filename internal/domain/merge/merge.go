// Package merge combines per-stage ranked results into one entity snapshot.
package merge

import (
	"cmp"
	"slices"

	"github.com/okian/liveboard/internal/domain/model"
)

// DefaultCap is the number of results kept in a snapshot.
const DefaultCap = 5

// StageResults holds one stage's results in the order stages were listed.
type StageResults struct {
	Stage   model.Stage
	Results []model.RankedResult
}

type ranked struct {
	result     model.RankedResult
	stageIndex int
}

// Merge concatenates the stage results, stamps each with its stage, sorts by
// rank position and keeps the first limit entries.
//
// Equal positions from different stages are ordered by the stage's index in
// stages, then by result ID, so the output does not depend on fetch completion
// order. limit <= 0 yields an empty snapshot.
func Merge(stages []StageResults, limit int) []model.RankedResult {
	if limit <= 0 {
		return []model.RankedResult{}
	}

	total := 0
	for _, s := range stages {
		total += len(s.Results)
	}
	all := make([]ranked, 0, total)
	for i, s := range stages {
		for _, r := range s.Results {
			r.StageID = s.Stage.ID
			r.StageName = s.Stage.Name
			all = append(all, ranked{result: r, stageIndex: i})
		}
	}

	slices.SortStableFunc(all, func(a, b ranked) int {
		if c := cmp.Compare(a.result.RankPosition, b.result.RankPosition); c != 0 {
			return c
		}
		if c := cmp.Compare(a.stageIndex, b.stageIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.result.ID, b.result.ID)
	})

	n := min(limit, len(all))
	out := make([]model.RankedResult, n)
	for i := range n {
		out[i] = all[i].result
	}
	return out
}
