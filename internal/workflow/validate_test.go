package workflow

import (
	"testing"

	"github.com/taalam/backend/internal/models"
)

func TestValidateContent(t *testing.T) {
	cases := []struct {
		name      string
		content   models.Content
		wantField string // empty means valid
	}{
		{
			name: "valid mcq",
			content: models.Content{
				QuestionText:  "Pick one",
				QuestionType:  models.TypeMCQ,
				Options:       map[string]string{"A": "w", "B": "x", "C": "y", "D": "z"},
				CorrectAnswer: "A",
			},
		},
		{
			name: "mcq missing option",
			content: models.Content{
				QuestionText:  "Pick one",
				QuestionType:  models.TypeMCQ,
				Options:       map[string]string{"A": "w", "B": "x", "C": "y"},
				CorrectAnswer: "A",
			},
			wantField: "options",
		},
		{
			name: "mcq duplicate after casefold",
			content: models.Content{
				QuestionText:  "Pick one",
				QuestionType:  models.TypeMCQ,
				Options:       map[string]string{"A": "Paris", "B": " paris ", "C": "Rome", "D": "Oslo"},
				CorrectAnswer: "C",
			},
			wantField: "options.B",
		},
		{
			name: "mcq empty option",
			content: models.Content{
				QuestionText:  "Pick one",
				QuestionType:  models.TypeMCQ,
				Options:       map[string]string{"A": "w", "B": "  ", "C": "y", "D": "z"},
				CorrectAnswer: "A",
			},
			wantField: "options.B",
		},
		{
			name: "mcq answer not a letter",
			content: models.Content{
				QuestionText:  "Pick one",
				QuestionType:  models.TypeMCQ,
				Options:       map[string]string{"A": "w", "B": "x", "C": "y", "D": "z"},
				CorrectAnswer: "E",
			},
			wantField: "correct_answer",
		},
		{
			name: "valid true false",
			content: models.Content{
				QuestionText:  "The sky is blue",
				QuestionType:  models.TypeTrueFalse,
				Options:       TrueFalseOptions(),
				CorrectAnswer: "A",
			},
		},
		{
			name: "true false wrong literals",
			content: models.Content{
				QuestionText:  "The sky is blue",
				QuestionType:  models.TypeTrueFalse,
				Options:       map[string]string{"A": "Yes", "B": "No"},
				CorrectAnswer: "A",
			},
			wantField: "options",
		},
		{
			name: "true false bad answer",
			content: models.Content{
				QuestionText:  "The sky is blue",
				QuestionType:  models.TypeTrueFalse,
				Options:       TrueFalseOptions(),
				CorrectAnswer: "C",
			},
			wantField: "correct_answer",
		},
		{
			name: "short answer needs answer",
			content: models.Content{
				QuestionText: "Define entropy",
				QuestionType: models.TypeShortAnswer,
			},
			wantField: "correct_answer",
		},
		{
			name: "essay is text only",
			content: models.Content{
				QuestionText: "Discuss the causes of WW1",
				QuestionType: models.TypeEssay,
			},
		},
		{
			name: "empty question text",
			content: models.Content{
				QuestionType: models.TypeEssay,
			},
			wantField: "question_text",
		},
		{
			name: "unknown type",
			content: models.Content{
				QuestionText: "x",
				QuestionType: "MATCHING",
			},
			wantField: "question_type",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateContent(tc.content)
			if tc.wantField == "" {
				if err != nil {
					t.Fatalf("expected valid, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected violation on %s", tc.wantField)
			}
			for _, v := range err.Violations {
				if v.Field == tc.wantField {
					return
				}
			}
			t.Fatalf("expected violation on %s, got %v", tc.wantField, err.Violations)
		})
	}
}

func TestAnswerMapping_RoundTrips(t *testing.T) {
	cases := []struct {
		qtype   models.QuestionType
		stored  string
		display string
	}{
		{models.TypeMCQ, "A", "Option A"},
		{models.TypeMCQ, "D", "Option D"},
		{models.TypeTrueFalse, "A", "True"},
		{models.TypeTrueFalse, "B", "False"},
		{models.TypeShortAnswer, "42", "42"},
	}
	for _, tc := range cases {
		if got := DisplayAnswer(tc.qtype, tc.stored); got != tc.display {
			t.Fatalf("DisplayAnswer(%s, %q) = %q, want %q", tc.qtype, tc.stored, got, tc.display)
		}
		if got := StoredAnswer(tc.qtype, tc.display); got != tc.stored {
			t.Fatalf("StoredAnswer(%s, %q) = %q, want %q", tc.qtype, tc.display, got, tc.stored)
		}
	}
}

func TestStoredAnswer_RejectsUnknownDisplay(t *testing.T) {
	if got := StoredAnswer(models.TypeMCQ, "Option Z"); got != "" {
		t.Fatalf("expected empty for unknown MCQ display, got %q", got)
	}
	if got := StoredAnswer(models.TypeTrueFalse, "Maybe"); got != "" {
		t.Fatalf("expected empty for unknown true/false display, got %q", got)
	}
}

func TestTransitionTables_CoverEveryNonTerminalStatus(t *testing.T) {
	for _, st := range models.AllStatuses {
		_, hasForward := advanceTable[st]
		if st.Terminal() {
			if hasForward {
				t.Fatalf("terminal status %s has a forward edge", st)
			}
			continue
		}
		if !hasForward {
			t.Fatalf("non-terminal status %s has no forward edge", st)
		}
	}
}
