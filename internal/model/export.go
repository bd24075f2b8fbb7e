package model

import "time"

// ArchivedSession is the top-level JSON structure of a session archive.
type ArchivedSession struct {
	SessionID string             `json:"session_id"`
	StartedAt *time.Time         `json:"started_at"`
	StoppedAt time.Time          `json:"stopped_at"`
	Questions []ArchivedQuestion `json:"questions"`
}

// ArchivedQuestion holds one poll question with its raw responses.
type ArchivedQuestion struct {
	QuestionID string                      `json:"question_id"`
	Type       QuestionType                `json:"type"`
	Options    []string                    `json:"options,omitempty"`
	StartedAt  time.Time                   `json:"started_at"`
	EndedAt    *time.Time                  `json:"ended_at"`
	Responses  map[string]ArchivedResponse `json:"responses"`
}

// ArchivedResponse is a single participant's answer as archived.
type ArchivedResponse struct {
	Timestamp time.Time   `json:"timestamp"`
	Response  AnswerValue `json:"response"`
}

// ArchiveSummary is the listing entry for one archived session.
type ArchiveSummary struct {
	SessionID     string     `json:"session_id"`
	StartedAt     *time.Time `json:"started_at"`
	StoppedAt     time.Time  `json:"stopped_at"`
	QuestionCount int        `json:"question_count"`
}
