package processing

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedFeedback is returned by ParseRubric for feedback that is not a
// JSON object carrying all four rubric criteria.
var ErrMalformedFeedback = errors.New("malformed feedback")

type rawRubric struct {
	SyntaxCorrect   *bool `json:"syntax_correct"`
	ConceptCorrect  *bool `json:"concept_correct"`
	DetailsComplete *bool `json:"details_complete"`
	ClarityAdequate *bool `json:"clarity_adequate"`
}

// ParseRubric decodes grading feedback. Markdown code fences around the JSON
// are tolerated. Accuracy is always recomputed from the four criteria;
// whatever the model claimed for it is ignored.
func ParseRubric(raw string) (*Rubric, error) {
	body := stripFences(raw)
	if body == "" {
		return nil, fmt.Errorf("%w: empty", ErrMalformedFeedback)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var r rawRubric
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeedback, err)
	}

	var missing []string
	if r.SyntaxCorrect == nil {
		missing = append(missing, "syntax_correct")
	}
	if r.ConceptCorrect == nil {
		missing = append(missing, "concept_correct")
	}
	if r.DetailsComplete == nil {
		missing = append(missing, "details_complete")
	}
	if r.ClarityAdequate == nil {
		missing = append(missing, "clarity_adequate")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedFeedback, strings.Join(missing, ", "))
	}

	rubric := &Rubric{
		SyntaxCorrect:   *r.SyntaxCorrect,
		ConceptCorrect:  *r.ConceptCorrect,
		DetailsComplete: *r.DetailsComplete,
		ClarityAdequate: *r.ClarityAdequate,
	}
	rubric.Accuracy = rubric.SyntaxCorrect && rubric.ConceptCorrect &&
		rubric.DetailsComplete && rubric.ClarityAdequate
	return rubric, nil
}

// stripFences removes a surrounding ```json ... ``` block if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = ""
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
