package workflow

import (
	"strings"

	"github.com/taalam/backend/internal/models"
)

// mcqLetters is the fixed option key set for MCQ content.
var mcqLetters = []string{"A", "B", "C", "D"}

// ValidateContent checks the structural rules for question content.
// Returns nil when the content is valid. Variants of the same type are
// validated with the same rules.
func ValidateContent(c models.Content) *ValidationError {
	verr := &ValidationError{}

	if strings.TrimSpace(c.QuestionText) == "" {
		verr.add("question_text", "must not be empty")
	}
	if !models.ValidQuestionType(c.QuestionType) {
		verr.add("question_type", "unknown question type "+string(c.QuestionType))
		return verr
	}

	switch c.QuestionType {
	case models.TypeMCQ:
		validateMCQOptions(c, verr)
	case models.TypeTrueFalse:
		validateTrueFalse(c, verr)
	case models.TypeShortAnswer:
		if strings.TrimSpace(c.CorrectAnswer) == "" {
			verr.add("correct_answer", "must not be empty")
		}
	case models.TypeEssay:
		// free-form, text only
	}

	if verr.empty() {
		return nil
	}
	return verr
}

// validateMCQOptions enforces four non-empty options A-D, pairwise
// distinct after trimming and case-folding, with the correct answer
// among the option letters.
func validateMCQOptions(c models.Content, verr *ValidationError) {
	if len(c.Options) != len(mcqLetters) {
		verr.add("options", "MCQ requires exactly four options (A-D)")
		return
	}
	seen := make(map[string]string, len(mcqLetters))
	for _, letter := range mcqLetters {
		text, ok := c.Options[letter]
		if !ok {
			verr.add("options."+letter, "option is missing")
			continue
		}
		norm := strings.ToLower(strings.TrimSpace(text))
		if norm == "" {
			verr.add("options."+letter, "option must not be empty")
			continue
		}
		if prev, dup := seen[norm]; dup {
			verr.add("options."+letter, "duplicate of option "+prev)
			continue
		}
		seen[norm] = letter
	}
	if _, ok := c.Options[c.CorrectAnswer]; !ok {
		verr.add("correct_answer", "must be one of the option letters A-D")
	}
}

// validateTrueFalse enforces the literal {A: "True", B: "False"} pair.
func validateTrueFalse(c models.Content, verr *ValidationError) {
	if len(c.Options) != 2 || c.Options["A"] != "True" || c.Options["B"] != "False" {
		verr.add("options", `true/false options must be exactly {A: "True", B: "False"}`)
	}
	if c.CorrectAnswer != "A" && c.CorrectAnswer != "B" {
		verr.add("correct_answer", "must be A (True) or B (False)")
	}
}

// validateGathererSubmission guards the pending_gatherer/sent_back edge:
// content must be valid and a processor assigned before the question
// can leave the gatherer's stage.
func validateGathererSubmission(q *models.Question) *ValidationError {
	verr := &ValidationError{}
	if cerr := ValidateContent(q.Content); cerr != nil {
		verr.Violations = append(verr.Violations, cerr.Violations...)
	}
	if q.AssignedProcessor == nil {
		verr.add("assigned_processor", "a processor must be assigned before submission")
	}
	if verr.empty() {
		return nil
	}
	return verr
}

// validateExplainerCompletion guards the pending_explainer edge.
func validateExplainerCompletion(q *models.Question) *ValidationError {
	if strings.TrimSpace(q.Explanation) == "" {
		return invalid("explanation", "must not be empty before completion")
	}
	return nil
}

// DisplayAnswer converts a stored answer letter to its UI display form:
// "Option X" for MCQ, "True"/"False" for true/false questions. Other
// types display the stored value as-is.
func DisplayAnswer(t models.QuestionType, stored string) string {
	switch t {
	case models.TypeMCQ:
		return "Option " + stored
	case models.TypeTrueFalse:
		if stored == "A" {
			return "True"
		}
		return "False"
	default:
		return stored
	}
}

// StoredAnswer converts a UI display answer back to its stored letter.
// The mapping round-trips with DisplayAnswer for every valid stored
// value; unknown display input maps to the empty string, which content
// validation then rejects.
func StoredAnswer(t models.QuestionType, display string) string {
	switch t {
	case models.TypeMCQ:
		letter := strings.TrimPrefix(display, "Option ")
		for _, l := range mcqLetters {
			if letter == l {
				return l
			}
		}
		return ""
	case models.TypeTrueFalse:
		switch display {
		case "True", "A":
			return "A"
		case "False", "B":
			return "B"
		}
		return ""
	default:
		return display
	}
}

// TrueFalseOptions is the canonical option pair stored for true/false
// content.
func TrueFalseOptions() map[string]string {
	return map[string]string{"A": "True", "B": "False"}
}
