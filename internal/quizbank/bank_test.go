package quizbank

import (
	"strings"
	"testing"
)

func TestLoadEmbeddedDefault(t *testing.T) {
	bank, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if bank.Version == "" {
		t.Fatal("embedded bank has no version")
	}
	if len(bank.Questions) == 0 {
		t.Fatal("embedded bank has no questions")
	}
	if bank.Scale <= 0 || bank.SalienceThreshold <= 0 || bank.MaxDominantTags <= 0 || bank.ConfidenceFloor <= 0 {
		t.Fatalf("tuning defaults not applied: %+v", bank)
	}
	if len(bank.Dimensions()) == 0 {
		t.Fatal("embedded bank contributes to no dimensions")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/bank.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestQuestionLookupPreservesAskOrder(t *testing.T) {
	bank, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	for i, q := range bank.Questions {
		got, order, ok := bank.Question(q.ID)
		if !ok {
			t.Fatalf("question %s not found", q.ID)
		}
		if order != i {
			t.Fatalf("question %s ask order = %d, want %d", q.ID, order, i)
		}
		if got.ID != q.ID {
			t.Fatalf("lookup returned %s for %s", got.ID, q.ID)
		}
	}
	if _, _, ok := bank.Question("q_missing"); ok {
		t.Fatal("lookup of unknown question succeeded")
	}
}

func TestParseValidation(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing_version",
			yaml:    "questions:\n  - id: q1\n    options:\n      - id: a\n        contributions: {x: 1.0}\n",
			wantErr: "missing version",
		},
		{
			name:    "no_questions",
			yaml:    "version: v1\n",
			wantErr: "no questions",
		},
		{
			name:    "duplicate_question",
			yaml:    "version: v1\nquestions:\n  - id: q1\n    options:\n      - id: a\n        contributions: {x: 1.0}\n  - id: q1\n    options:\n      - id: b\n        contributions: {y: 1.0}\n",
			wantErr: "duplicate question id",
		},
		{
			name:    "duplicate_option",
			yaml:    "version: v1\nquestions:\n  - id: q1\n    options:\n      - id: a\n        contributions: {x: 1.0}\n      - id: a\n        contributions: {y: 1.0}\n",
			wantErr: "duplicate option id",
		},
		{
			name:    "option_without_contributions",
			yaml:    "version: v1\nquestions:\n  - id: q1\n    options:\n      - id: a\n",
			wantErr: "contributes to no dimensions",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("error %q does not mention %q", err, tc.wantErr)
			}
		})
	}
}

func TestParseAppliesDefaults(t *testing.T) {
	bank, err := Parse([]byte("version: v2\nquestions:\n  - id: q1\n    options:\n      - id: a\n        contributions: {x: 1.0}\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	q := bank.Questions[0]
	if q.Importance != 1.0 {
		t.Fatalf("importance default = %v, want 1.0", q.Importance)
	}
	if q.MinSelect != 1 || q.MaxSelect != 1 {
		t.Fatalf("select bounds = [%d,%d], want [1,1]", q.MinSelect, q.MaxSelect)
	}
	if bank.Scale != 1.5 || bank.MaxDominantTags != 3 {
		t.Fatalf("bank defaults not applied: scale=%v maxTags=%d", bank.Scale, bank.MaxDominantTags)
	}
}
