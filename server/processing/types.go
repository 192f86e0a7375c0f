// Package processing turns requests into prompts, sends them through the LLM
// gateway and shapes what comes back. The two operations it serves are
// snippet generation and grading a learner's explanation of a snippet.
package processing

// SplitResult is raw model output separated into the reasoning region and
// the final answer. Both fields are always set; a missing region yields an
// empty Think.
type SplitResult struct {
	Think    string `json:"think"`
	Response string `json:"response"`
}

// Snippet is the result of a generation request.
type Snippet struct {
	Language     string `json:"language"`
	ThinkContent string `json:"think_content"`
	CodeSnippet  string `json:"code_snippet"`
}

// CodeExplanationRequest is a learner's explanation of a snippet.
//
// CodeSnippet and UserExplanation are pointers so that a missing field can
// be told apart from an empty one: both must be present, but may be empty.
type CodeExplanationRequest struct {
	Language        string  `json:"language" validate:"required"`
	CodeSnippet     *string `json:"code_snippet" validate:"required"`
	UserExplanation *string `json:"user_explanation" validate:"required"`
}

// Snippet returns the code snippet, or "" when unset.
func (r *CodeExplanationRequest) Snippet() string {
	if r.CodeSnippet == nil {
		return ""
	}
	return *r.CodeSnippet
}

// Explanation returns the learner's explanation, or "" when unset.
func (r *CodeExplanationRequest) Explanation() string {
	if r.UserExplanation == nil {
		return ""
	}
	return *r.UserExplanation
}

// CodeExplanationResponse echoes the request together with the model's
// grading feedback. AIFeedback is passed through as the model returned it.
type CodeExplanationResponse struct {
	Language        string  `json:"language"`
	CodeSnippet     string  `json:"code_snippet"`
	UserExplanation string  `json:"user_explanation"`
	AIFeedback      string  `json:"ai_feedback"`
	Rubric          *Rubric `json:"rubric,omitempty"`
}

// Rubric is grading feedback decoded into its four criteria.
// Accuracy is the AND of the four.
type Rubric struct {
	SyntaxCorrect   bool `json:"syntax_correct"`
	ConceptCorrect  bool `json:"concept_correct"`
	DetailsComplete bool `json:"details_complete"`
	ClarityAdequate bool `json:"clarity_adequate"`
	Accuracy        bool `json:"accuracy"`
}
