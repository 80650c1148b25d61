package scoring

import (
	"encoding/json"
	"fmt"

	"github.com/hperssn/focusflow/internal/domain"
)

const (
	defaultScore = 75
	defaultLabel = domain.LabelFocused
)

// prediction accepts both naming conventions the ML service has used.
type prediction struct {
	FocusScore      *float64 `json:"focus_score"`
	FocusScoreCamel *float64 `json:"focusScore"`
	FocusLabel      *string  `json:"focus_label"`
	FocusLabelCamel *string  `json:"focusLabel"`
}

// Normalize decodes an ML response body into a Result. Snake case wins when
// both spellings are present; absent fields default to 75 / Focused.
func Normalize(body []byte) (Result, error) {
	var p prediction
	if err := json.Unmarshal(body, &p); err != nil {
		return Result{}, fmt.Errorf("failed to parse ml response: %w", err)
	}

	res := Result{Score: defaultScore, Label: defaultLabel, Source: SourceML}

	switch {
	case p.FocusScore != nil:
		res.Score = *p.FocusScore
	case p.FocusScoreCamel != nil:
		res.Score = *p.FocusScoreCamel
	}
	res.Score = domain.ClampScore(res.Score)

	switch {
	case p.FocusLabel != nil && *p.FocusLabel != "":
		res.Label = domain.Label(*p.FocusLabel)
	case p.FocusLabelCamel != nil && *p.FocusLabelCamel != "":
		res.Label = domain.Label(*p.FocusLabelCamel)
	}

	return res, nil
}
