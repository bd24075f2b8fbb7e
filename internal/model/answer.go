package model

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// AnswerKind discriminates the closed set of answer value types.
type AnswerKind int

const (
	// AnswerText is a string answer (MCQ options, numeric answers like "1/2").
	AnswerText AnswerKind = iota
	// AnswerBool is a boolean answer (true/false questions).
	AnswerBool
	// AnswerNumber is a numeric answer.
	AnswerNumber
)

// AnswerValue is a poll answer: exactly one of string, bool, or number.
// The zero value is the empty text answer.
type AnswerValue struct {
	kind AnswerKind
	text string
	b    bool
	num  float64
}

// TextAnswer returns a string-valued answer.
func TextAnswer(s string) AnswerValue {
	return AnswerValue{kind: AnswerText, text: s}
}

// BoolAnswer returns a boolean-valued answer.
func BoolAnswer(b bool) AnswerValue {
	return AnswerValue{kind: AnswerBool, b: b}
}

// NumberAnswer returns a number-valued answer.
func NumberAnswer(f float64) AnswerValue {
	return AnswerValue{kind: AnswerNumber, num: f}
}

// Kind returns the discriminator of the value.
func (v AnswerValue) Kind() AnswerKind { return v.kind }

// Text returns the string payload. Only meaningful when Kind is AnswerText.
func (v AnswerValue) Text() string { return v.text }

// Bool returns the boolean payload. Only meaningful when Kind is AnswerBool.
func (v AnswerValue) Bool() bool { return v.b }

// Number returns the numeric payload. Only meaningful when Kind is AnswerNumber.
func (v AnswerValue) Number() float64 { return v.num }

// CountKey returns the tally bucket for the value. Booleans map to
// "true"/"false", numbers to their shortest decimal form (so the number 1
// and the string "1" share a bucket), and text maps to itself.
func (v AnswerValue) CountKey() string {
	switch v.kind {
	case AnswerBool:
		if v.b {
			return "true"
		}
		return "false"
	case AnswerNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return v.text
	}
}

// MarshalJSON encodes the underlying value directly (not as an object),
// so stored responses round-trip as plain JSON scalars.
func (v AnswerValue) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case AnswerBool:
		return json.Marshal(v.b)
	case AnswerNumber:
		return json.Marshal(v.num)
	default:
		return json.Marshal(v.text)
	}
}

// UnmarshalJSON decodes a JSON scalar into the matching answer kind.
// Objects, arrays, and null are rejected.
func (v *AnswerValue) UnmarshalJSON(data []byte) error {
	// Unmarshaling null into a bool succeeds without effect, so it must
	// be rejected before the scalar probes below.
	if string(data) == "null" {
		return fmt.Errorf("answer must be a string, boolean, or number")
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*v = BoolAnswer(b)
		return nil
	}
	var f float64
	if err := json.Unmarshal(data, &f); err == nil {
		*v = NumberAnswer(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*v = TextAnswer(s)
		return nil
	}
	return fmt.Errorf("answer must be a string, boolean, or number")
}
