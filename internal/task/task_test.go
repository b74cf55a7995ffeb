package task

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDraftValidate(t *testing.T) {
	t.Parallel()
	deadline := refNow.Add(time.Hour)
	tests := []struct {
		name   string
		draft  Draft
		fields []string
	}{
		{"valid", Draft{Title: "Pay rent", Deadline: deadline}, nil},
		{"empty title", Draft{Title: "", Deadline: deadline}, []string{"title"}},
		{"blank title", Draft{Title: "   ", Deadline: deadline}, []string{"title"}},
		{"long title", Draft{Title: strings.Repeat("x", 101), Deadline: deadline}, []string{"title"}},
		{"title at limit", Draft{Title: strings.Repeat("é", 100), Deadline: deadline}, nil},
		{"long description", Draft{Title: "ok", Description: strings.Repeat("d", 501), Deadline: deadline}, []string{"description"}},
		{"missing deadline", Draft{Title: "ok"}, []string{"deadline"}},
		{"everything wrong", Draft{Description: strings.Repeat("d", 501)}, []string{"title", "description", "deadline"}},
	}
	for _, tt := range tests {
		err := tt.draft.Validate()
		if tt.fields == nil {
			if err != nil {
				t.Errorf("%s: unexpected error %v", tt.name, err)
			}
			continue
		}
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: expected ValidationError, got %v", tt.name, err)
		}
		if len(verr.Fields) != len(tt.fields) {
			t.Errorf("%s: expected fields %v, got %v", tt.name, tt.fields, verr.Fields)
		}
		for _, f := range tt.fields {
			if _, ok := verr.Fields[f]; !ok {
				t.Errorf("%s: missing field %s in %v", tt.name, f, verr.Fields)
			}
		}
	}
}

func TestPatchValidateOnlyPresentFields(t *testing.T) {
	t.Parallel()
	if err := (Patch{Description: String("")}).Validate(); err != nil {
		t.Errorf("clearing description should be valid, got %v", err)
	}
	if err := (Patch{Title: String("")}).Validate(); !IsValidation(err) {
		t.Errorf("expected validation error for empty title, got %v", err)
	}
	if err := (Patch{}).Validate(); err != nil {
		t.Errorf("empty patch should be valid, got %v", err)
	}
}

func TestPatchApply(t *testing.T) {
	t.Parallel()
	orig := Task{ID: "1", Title: "t", Description: "old", Deadline: refNow, IsCompleted: false}
	got := Patch{Description: String("")}.Apply(orig)
	if got.Description != "" {
		t.Errorf("expected cleared description, got %q", got.Description)
	}
	if got.Title != orig.Title || !got.Deadline.Equal(orig.Deadline) || got.IsCompleted != orig.IsCompleted {
		t.Errorf("untouched fields changed: %+v", got)
	}
}

func TestTaskJSONUsesCanonicalNames(t *testing.T) {
	t.Parallel()
	tk := Task{
		ID:          "abc",
		Title:       "Pay rent",
		Deadline:    time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC),
		IsCompleted: true,
		CreatedAt:   time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC),
		UpdatedAt:   time.Date(2025, 3, 2, 9, 30, 0, 123e6, time.UTC),
	}
	data, err := json.Marshal(tk)
	if err != nil {
		t.Fatal(err)
	}
	want := `{"id":"abc","title":"Pay rent","description":"","deadline":"2025-03-10T13:00:00.000Z","isCompleted":true,"createdAt":"2025-03-01T09:30:00.000Z","updatedAt":"2025-03-02T09:30:00.123Z"}`
	if string(data) != want {
		t.Errorf("expected %s, got %s", want, data)
	}

	var back Task
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatal(err)
	}
	if back.ID != tk.ID || back.Title != tk.Title || back.IsCompleted != tk.IsCompleted ||
		!back.Deadline.Equal(tk.Deadline) || !back.CreatedAt.Equal(tk.CreatedAt) || !back.UpdatedAt.Equal(tk.UpdatedAt) {
		t.Errorf("round trip mismatch: %+v vs %+v", back, tk)
	}
}

func TestTaskJSONRejectsMalformedDeadline(t *testing.T) {
	t.Parallel()
	var tk Task
	err := json.Unmarshal([]byte(`{"id":"1","title":"x","deadline":"tomorrow","createdAt":"2025-01-01T00:00:00Z","updatedAt":"2025-01-01T00:00:00Z"}`), &tk)
	var perr *ParseError
	if !errors.As(err, &perr) || perr.Field != "deadline" {
		t.Errorf("expected deadline ParseError, got %v", err)
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()
	want := time.Date(2025, 3, 10, 13, 0, 0, 0, time.UTC)
	inputs := []string{
		"2025-03-10T13:00:00Z",
		"2025-03-10T13:00:00.000Z",
		"2025-03-10T14:00:00+01:00",
		"2025-03-10 13:00:00+00",
		"2025-03-10 13:00:00.000000+00:00",
		"2025-03-10T13:00",
	}
	for _, in := range inputs {
		got, err := ParseTimestamp("deadline", in)
		if err != nil {
			t.Errorf("%q: %v", in, err)
			continue
		}
		if !got.Equal(want) || got.Location() != time.UTC {
			t.Errorf("%q: expected %v, got %v", in, want, got)
		}
	}
	if _, err := ParseTimestamp("deadline", "not a date"); err == nil {
		t.Error("expected error for garbage input")
	}
}
