package domain

import "testing"

func TestNewQuizQuestion(t *testing.T) {
	testCases := []struct {
		name        string
		question    string
		options     []string
		answer      string
		expectError bool
	}{
		{
			name:     "Valid question is trimmed",
			question: "  Which of the following is an OS?  ",
			options:  []string{" Compiler", "Assembler ", "Batch", "Linker"},
			answer:   " Batch ",
		},
		{
			name:        "Missing question",
			question:    "   ",
			options:     []string{"A", "B"},
			answer:      "A",
			expectError: true,
		},
		{
			name:        "Too few options",
			question:    "Q?",
			options:     []string{"A"},
			answer:      "A",
			expectError: true,
		},
		{
			name:        "Blank option",
			question:    "Q?",
			options:     []string{"A", " "},
			answer:      "A",
			expectError: true,
		},
		{
			name:        "Missing answer",
			question:    "Q?",
			options:     []string{"A", "B"},
			answer:      "",
			expectError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			q, err := NewQuizQuestion(tc.question, tc.options, tc.answer)
			if tc.expectError {
				if err == nil {
					t.Fatalf("Expected an error, got question %+v", q)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewQuizQuestion() returned an unexpected error: %v", err)
			}
			if q.Question != "Which of the following is an OS?" {
				t.Errorf("Unexpected question text %q", q.Question)
			}
			if q.Answer != "Batch" || q.Options[0] != "Compiler" || q.Options[1] != "Assembler" {
				t.Errorf("Fields were not trimmed: %+v", q)
			}
			if !q.HasOption(q.Answer) {
				t.Errorf("Expected answer %q to be among the options", q.Answer)
			}
		})
	}
}

func TestPriorityForRank(t *testing.T) {
	expected := []Priority{High, High, High, Medium, Medium, Medium, Medium, Low, Low, Low}
	for i, want := range expected {
		if got := PriorityForRank(i); got != want {
			t.Errorf("PriorityForRank(%d) = %s, want %s", i, got, want)
		}
	}
}
