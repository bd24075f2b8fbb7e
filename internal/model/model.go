package model

import (
	"context"
	"regexp"
	"time"
)

// QuestionType represents the kind of poll question.
type QuestionType string

const (
	// QuestionMCQ is a multiple-choice question with a fixed option list.
	QuestionMCQ QuestionType = "mcq"
	// QuestionTF is a true/false question.
	QuestionTF QuestionType = "tf"
	// QuestionNumeric is a free numeric answer question.
	QuestionNumeric QuestionType = "numeric"
)

// Valid reports whether t is one of the known question types.
func (t QuestionType) Valid() bool {
	switch t {
	case QuestionMCQ, QuestionTF, QuestionNumeric:
		return true
	}
	return false
}

// QuestionMeta holds the metadata of a poll question for one session.
type QuestionMeta struct {
	ID              string       `json:"id"`
	Type            QuestionType `json:"type"`
	Options         []string     `json:"options"`
	StartedAt       time.Time    `json:"started_at"`
	EndedAt         *time.Time   `json:"ended_at"`
	ResultsShared   bool         `json:"results_shared"`
	ResultsSharedAt *time.Time   `json:"results_shared_at,omitempty"`
}

// Open reports whether the question is still accepting answers.
func (m QuestionMeta) Open() bool {
	return m.EndedAt == nil
}

// StoredResponse is one participant's answer to a poll question as kept
// in the live namespace. Archives use the spelled-out ArchivedResponse
// encoding instead.
type StoredResponse struct {
	Timestamp time.Time   `json:"ts"`
	Response  AnswerValue `json:"resp"`
}

// SessionState describes the live session of a course.
type SessionState struct {
	Course            string `json:"course"`
	Live              bool   `json:"is_live"`
	CurrentQuestionID string `json:"current_question_id,omitempty"`
}

// StudentQuestion is a free-text question submitted by a student.
type StudentQuestion struct {
	QuestionID string    `json:"question_id"`
	PID        string    `json:"pid"`
	Question   string    `json:"question"`
	Timestamp  time.Time `json:"timestamp"`
}

// Distribution is the aggregated result of a poll question.
type Distribution struct {
	QuestionID  string             `json:"question_id"`
	Type        QuestionType       `json:"type"`
	Counts      map[string]int     `json:"counts"`
	Total       int                `json:"total"`
	Percentages map[string]float64 `json:"percentages"`
	Options     []string           `json:"options,omitempty"`
}

var pidPattern = regexp.MustCompile(`^A\d{8}$`)

// ValidPID reports whether s is a well-formed participant ID
// (letter A followed by exactly eight digits).
func ValidPID(s string) bool {
	return pidPattern.MatchString(s)
}

var pidRedactPattern = regexp.MustCompile(`\bA\d{8}\b`)

// RedactPIDs replaces every participant ID occurring in s with a
// fixed placeholder, for log output and LLM prompts.
func RedactPIDs(s string) string {
	return pidRedactPattern.ReplaceAllString(s, "[PID]")
}

type pidCtxKey struct{}

// ContextWithPID stores the authenticated participant ID in the request context.
func ContextWithPID(ctx context.Context, pid string) context.Context {
	return context.WithValue(ctx, pidCtxKey{}, pid)
}

// PIDFromContext retrieves the authenticated participant ID from context
// (empty string if not set).
func PIDFromContext(ctx context.Context) string {
	pid, _ := ctx.Value(pidCtxKey{}).(string)
	return pid
}
