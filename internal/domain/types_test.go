package domain

import (
	"testing"
	"time"
)

func TestSubmissionGUID(t *testing.T) {
	tests := []struct {
		name       string
		id         int64
		individual *Individual
		expected   string
	}{
		{"No individual", 1, nil, "MS0000001_None"},
		{"Linked individual", 42, &Individual{IndividualID: "NA19675"}, "MS0000042_NA19675"},
		{"Individual id is trimmed", 7, &Individual{IndividualID: "  HG00731 "}, "MS0000007_HG00731"},
		{"Wide id keeps every digit", 123456789, nil, "MS123456789_None"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Submission{Model: Model{ID: tt.id}, Individual: tt.individual}
			if got := s.ComputeGUID(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestMatchResultGUID(t *testing.T) {
	tests := []struct {
		name       string
		id         int64
		submission *Submission
		expected   string
	}{
		{
			name:       "Submission without individual",
			id:         3,
			submission: &Submission{Model: Model{ID: 1}},
			expected:   "MR0000003_None_submission_1",
		},
		{
			name:       "Submission with individual",
			id:         12,
			submission: &Submission{Model: Model{ID: 5}, Individual: &Individual{IndividualID: "NA20870"}},
			expected:   "MR0000012_NA20870_submission_5",
		},
		{
			name:       "Missing submission",
			id:         1,
			submission: nil,
			expected:   "MR0000001_None",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &MatchResult{Model: Model{ID: tt.id}, Submission: tt.submission}
			if got := r.ComputeGUID(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestContactNotesGUID(t *testing.T) {
	tests := []struct {
		name        string
		id          int64
		institution string
		expected    string
	}{
		{"Spaces become underscores", 1, "Test Lab A", "MCN0000001_Test_Lab_A"},
		{"Single word", 250, "Broad", "MCN0000250_Broad"},
		{"Repeated spaces", 9, "Lab  B", "MCN0000009_Lab__B"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &ContactNotes{Model: Model{ID: tt.id}, Institution: tt.institution}
			if got := c.ComputeGUID(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestGUIDSnapshotIsNotRecomputed(t *testing.T) {
	individual := &Individual{IndividualID: "NA19675"}
	s := &Submission{Model: Model{ID: 1}, Individual: individual}
	s.GUID = s.ComputeGUID()

	individual.IndividualID = "NA19675_renamed"

	if s.GUID != "MS0000001_NA19675" {
		t.Errorf("Stored GUID changed to %s", s.GUID)
	}
	if s.ComputeGUID() == s.GUID {
		t.Error("Expected a fresh computation to differ from the stored snapshot")
	}
}

func TestStringForms(t *testing.T) {
	individual := &Individual{Model: Model{ID: 4}, IndividualID: "NA19675"}
	submission := &Submission{Model: Model{ID: 2}, Individual: individual}
	result := &MatchResult{Model: Model{ID: 8}, Submission: submission}
	notes := &ContactNotes{Model: Model{ID: 3}, Institution: "Test Lab A"}

	cases := map[string]string{
		individual.String(): "NA19675",
		submission.String(): "NA19675_submission_2",
		result.String():     "8_NA19675_submission_2_result",
		notes.String():      "3_Test Lab A_contact",
	}
	for got, expected := range cases {
		if got != expected {
			t.Errorf("Expected %s, got %s", expected, got)
		}
	}

	var missing *Individual
	if missing.String() != "None" {
		t.Errorf("Expected None for a missing individual, got %s", missing.String())
	}
}

func TestSubmissionDeletionState(t *testing.T) {
	s := &Submission{}
	if s.IsDeleted() {
		t.Error("New submission should be active")
	}
	if s.DeletedDate() != nil {
		t.Error("Active submission should have no deleted date")
	}

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	userID := int64(10)
	s.Deleted = &Deletion{At: at, By: &userID}

	if !s.IsDeleted() {
		t.Error("Expected submission to be deleted")
	}
	if got := s.DeletedDate(); got == nil || !got.Equal(at) {
		t.Errorf("Expected deleted date %v, got %v", at, got)
	}
}

func TestContactedLabel(t *testing.T) {
	tests := []struct {
		name     string
		result   MatchResult
		expected string
	}{
		{"Nobody", MatchResult{}, "Not Contacted"},
		{"We contacted", MatchResult{WeContacted: true}, "We Contacted Host"},
		{"Host contacted", MatchResult{HostContacted: true}, "Host Contacted Us"},
		{"Both prefers host", MatchResult{WeContacted: true, HostContacted: true}, "Host Contacted Us"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.ContactedLabel(); got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}
