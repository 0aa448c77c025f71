package model

// RankedResult is one participant's placing in a stage.
type RankedResult struct {
	ID           string `json:"id"` // stable across polls for the same participant and stage
	RankPosition int    `json:"rank_position"`
	Participant  string `json:"participant"`
	BibNumber    string `json:"bib_number,omitempty"`
	StageID      string `json:"stage_id,omitempty"`
	StageName    string `json:"stage_name,omitempty"`
}

// AnnotatedResult decorates a RankedResult with movement relative to the
// previous snapshot of the same entity. The flags are transient and decay to
// neutral after the presentation window.
type AnnotatedResult struct {
	RankedResult

	IsNew            bool `json:"is_new"`
	PreviousPosition *int `json:"previous_position,omitempty"`
	// Delta is previous minus current position; positive means the entry climbed.
	Delta      int  `json:"delta"`
	MovingUp   bool `json:"moving_up"`
	MovingDown bool `json:"moving_down"`
}

// Magnitude returns how many places the entry moved.
func (a AnnotatedResult) Magnitude() int {
	if a.Delta < 0 {
		return -a.Delta
	}
	return a.Delta
}

// Neutral reports whether no transient flag is set.
func (a AnnotatedResult) Neutral() bool {
	return !a.IsNew && a.PreviousPosition == nil && !a.MovingUp && !a.MovingDown && a.Delta == 0
}
