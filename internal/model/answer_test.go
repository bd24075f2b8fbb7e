package model

import (
	"encoding/json"
	"testing"
)

func TestAnswerValueCountKey(t *testing.T) {
	tests := []struct {
		name string
		val  AnswerValue
		want string
	}{
		{"text", TextAnswer("B"), "B"},
		{"bool true", BoolAnswer(true), "true"},
		{"bool false", BoolAnswer(false), "false"},
		{"integer", NumberAnswer(1), "1"},
		{"negative", NumberAnswer(-3), "-3"},
		{"fractional", NumberAnswer(2.5), "2.5"},
		{"trailing zeros trimmed", NumberAnswer(1.10), "1.1"},
		{"zero", NumberAnswer(0), "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.val.CountKey(); got != tt.want {
				t.Errorf("expected count key %q, got %q", tt.want, got)
			}
		})
	}
}

// The number 1 and the string "1" must land in the same tally bucket.
func TestAnswerValueCountKeyCollision(t *testing.T) {
	if NumberAnswer(1).CountKey() != TextAnswer("1").CountKey() {
		t.Errorf("expected number 1 and text %q to share a count key", "1")
	}
	if BoolAnswer(true).CountKey() != TextAnswer("true").CountKey() {
		t.Errorf("expected bool true and text %q to share a count key", "true")
	}
}

func TestAnswerValueJSON(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind AnswerKind
	}{
		{"string", `"choice A"`, AnswerText},
		{"bool", `true`, AnswerBool},
		{"number", `42.5`, AnswerNumber},
		{"string that looks like a bool", `"true"`, AnswerText},
		{"string that looks like a number", `"1"`, AnswerText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v AnswerValue
			if err := json.Unmarshal([]byte(tt.raw), &v); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if v.Kind() != tt.wantKind {
				t.Errorf("expected kind %d, got %d", tt.wantKind, v.Kind())
			}
			out, err := json.Marshal(v)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(out) != tt.raw {
				t.Errorf("expected round-trip %s, got %s", tt.raw, out)
			}
		})
	}
}

func TestAnswerValueJSONRejected(t *testing.T) {
	for _, raw := range []string{`null`, `{"a":1}`, `[1,2]`} {
		var v AnswerValue
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			t.Errorf("expected error unmarshaling %s", raw)
		}
	}
}

func TestValidPID(t *testing.T) {
	tests := []struct {
		pid  string
		want bool
	}{
		{"A12345678", true},
		{"A00000000", true},
		{"a12345678", false},
		{"A1234567", false},
		{"A123456789", false},
		{"B12345678", false},
		{"A1234567x", false},
		{"", false},
		{" A12345678", false},
	}
	for _, tt := range tests {
		if got := ValidPID(tt.pid); got != tt.want {
			t.Errorf("ValidPID(%q): expected %v, got %v", tt.pid, tt.want, got)
		}
	}
}

func TestRedactPIDs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"single", "asked by A12345678", "asked by [PID]"},
		{"multiple", "A11111111 and A22222222 agree", "[PID] and [PID] agree"},
		{"embedded stays", "xA12345678", "xA12345678"},
		{"too long stays", "A123456789", "A123456789"},
		{"none", "no ids here", "no ids here"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RedactPIDs(tt.in); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
