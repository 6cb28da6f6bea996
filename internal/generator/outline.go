package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lamim/paperforge/internal/util"
	"github.com/lamim/paperforge/pkg/models"
)

// ParseOutline extracts and validates the outline from a model response.
// Any problem yields an error wrapping ErrMalformedOutline; there is no partial result.
func ParseOutline(raw string) ([]models.OutlineItem, error) {
	_, answer := util.SplitReasoning(raw)
	if answer == "" {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedOutline)
	}

	payload := util.ExtractJSON(answer)
	if util.IsTruncatedJSON(payload) {
		return nil, fmt.Errorf("%w: response was truncated", ErrMalformedOutline)
	}
	payload = util.RepairJSON(payload)

	items, err := decodeOutline(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutline, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no sections", ErrMalformedOutline)
	}

	for i := range items {
		items[i].Title = strings.TrimSpace(items[i].Title)
		items[i].Description = strings.TrimSpace(items[i].Description)
		if err := items[i].Validate(); err != nil {
			return nil, fmt.Errorf("%w: item %d: %v", ErrMalformedOutline, i+1, err)
		}
	}
	return items, nil
}

// decodeOutline accepts a bare array or an object wrapping it under "sections" or "outline"
func decodeOutline(payload string) ([]models.OutlineItem, error) {
	if strings.HasPrefix(payload, "[") {
		var items []models.OutlineItem
		if err := json.Unmarshal([]byte(payload), &items); err != nil {
			return nil, err
		}
		return items, nil
	}

	var wrapped struct {
		Sections []models.OutlineItem `json:"sections"`
		Outline  []models.OutlineItem `json:"outline"`
	}
	if err := json.Unmarshal([]byte(payload), &wrapped); err != nil {
		return nil, err
	}
	if len(wrapped.Sections) > 0 {
		return wrapped.Sections, nil
	}
	return wrapped.Outline, nil
}
