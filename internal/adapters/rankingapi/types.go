package rankingapi

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/okian/liveboard/internal/domain/model"
)

// APIEvent is an event as returned by GET /events.
type APIEvent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// APIStage is a stage as returned by GET /events/{id}/stages.
type APIStage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// APIRanking is a ranked entry as returned by GET /stages/{id}/rankings.
type APIRanking struct {
	ID           string  `json:"id"`
	RankPosition int     `json:"rank_position"`
	Participant  string  `json:"participant"`
	BibNumber    bibText `json:"bib_number"`
}

// bibText accepts bib numbers sent either as JSON strings or numbers.
type bibText string

func (b *bibText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*b = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*b = bibText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*b = bibText(n.String())
	return nil
}

// ParseTimestamp parses an RFC 3339 timestamp, falling back to a zone-less
// layout interpreted as UTC. Empty or invalid input yields the zero time.
func ParseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
		return t.UTC()
	}
	return time.Time{}
}

// ToModel converts the wire event.
func (e APIEvent) ToModel() model.Event {
	return model.Event{
		ID:       e.ID,
		Name:     e.Name,
		StartsAt: ParseTimestamp(e.StartTime),
		EndsAt:   ParseTimestamp(e.EndTime),
	}
}

// ToModel converts the wire stage.
func (s APIStage) ToModel() model.Stage {
	return model.Stage{ID: s.ID, Name: s.Name}
}

// ToModel converts the wire ranking.
func (r APIRanking) ToModel() model.RankedResult {
	return model.RankedResult{
		ID:           r.ID,
		RankPosition: r.RankPosition,
		Participant:  r.Participant,
		BibNumber:    string(r.BibNumber),
	}
}
