package rankingapi

import (
	"context"
	"fmt"
	"net/url"

	"github.com/okian/liveboard/internal/domain/model"
)

// ListEvents fetches every event known to the ranking API.
func (c *Client) ListEvents(ctx context.Context) ([]model.Event, error) {
	var resp []APIEvent
	if err := c.get(ctx, "/events", &resp); err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}

	out := make([]model.Event, 0, len(resp))
	for _, e := range resp {
		out = append(out, e.ToModel())
	}
	return out, nil
}

// ListStages fetches the stages of one event in API order.
func (c *Client) ListStages(ctx context.Context, entityID string) ([]model.Stage, error) {
	var resp []APIStage
	if err := c.get(ctx, "/events/"+url.PathEscape(entityID)+"/stages", &resp); err != nil {
		return nil, fmt.Errorf("list stages of %s: %w", entityID, err)
	}

	out := make([]model.Stage, 0, len(resp))
	for _, s := range resp {
		out = append(out, s.ToModel())
	}
	return out, nil
}

// ListRankedResults fetches the ranked results of one stage.
func (c *Client) ListRankedResults(ctx context.Context, stageID string) ([]model.RankedResult, error) {
	var resp []APIRanking
	if err := c.get(ctx, "/stages/"+url.PathEscape(stageID)+"/rankings", &resp); err != nil {
		return nil, fmt.Errorf("list rankings of %s: %w", stageID, err)
	}

	out := make([]model.RankedResult, 0, len(resp))
	for _, r := range resp {
		out = append(out, r.ToModel())
	}
	return out, nil
}
