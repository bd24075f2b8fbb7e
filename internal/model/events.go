package model

// EventType identifies a broadcast event on a course channel.
type EventType string

const (
	EventSessionStarted   EventType = "session_started"
	EventSessionStopped   EventType = "session_stopped"
	EventQuestionStarted  EventType = "question_started"
	EventQuestionStopped  EventType = "question_stopped"
	EventCountsUpdated    EventType = "counts_updated"
	EventNewQuestion      EventType = "new_question"
	EventResultsPublished EventType = "results_published"
	EventEscalation       EventType = "escalation"
)

// QuestionStartedEvent announces a new live poll question.
// session_started and session_stopped carry empty payloads.
type QuestionStartedEvent struct {
	QuestionID string       `json:"question_id"`
	Type       QuestionType `json:"type"`
	Options    []string     `json:"options,omitempty"`
}

// QuestionStoppedEvent announces that a poll question was closed.
type QuestionStoppedEvent struct {
	QuestionID string `json:"question_id"`
}

// CountsUpdatedEvent carries the full tally after a vote lands.
// It is delivered to instructors only.
type CountsUpdatedEvent struct {
	QuestionID string         `json:"question_id"`
	Counts     map[string]int `json:"counts"`
}

// NewQuestionEvent announces a free-text student question.
type NewQuestionEvent struct {
	QuestionID string `json:"question_id"`
	PID        string `json:"pid"`
	Question   string `json:"question"`
}

// ResultsPublishedEvent carries the final distribution of a closed question.
type ResultsPublishedEvent struct {
	QuestionID   string        `json:"question_id"`
	Distribution *Distribution `json:"distribution"`
}

// EscalationEvent carries an LLM summary of the pending student questions.
type EscalationEvent struct {
	Summary string `json:"summary"`
	Count   int    `json:"count"`
}
