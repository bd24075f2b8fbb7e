package llm

import (
	"strings"
	"testing"
)

func TestBuildQuestionList(t *testing.T) {
	questions := []string{
		"what is a base case?",
		"why does the proof need strong induction?",
	}
	list := buildQuestionList(questions)

	if !strings.HasPrefix(list, "STUDENT QUESTIONS:\n") {
		t.Errorf("list should start with the header, got %q", list)
	}
	if !strings.Contains(list, "1. what is a base case?") {
		t.Error("list should contain the first numbered question")
	}
	if !strings.Contains(list, "2. why does the proof need strong induction?") {
		t.Error("list should contain the second numbered question")
	}
}

func TestBuildQuestionListEmpty(t *testing.T) {
	list := buildQuestionList(nil)
	if list != "STUDENT QUESTIONS:\n" {
		t.Errorf("expected bare header for no questions, got %q", list)
	}
}

func TestSummarySystemPrompt(t *testing.T) {
	if !strings.Contains(summarySystemPrompt, "three sentences") {
		t.Error("prompt should bound the summary length")
	}
	if !strings.Contains(summarySystemPrompt, "do not answer the questions") {
		t.Error("prompt should forbid answering")
	}
}
