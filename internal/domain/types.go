// Package domain contains the core entities of the matchmaker subsystem: case submissions
// shared with the Matchmaker Exchange network, the match results returned against them and
// curator notes kept per external institution.
//
// Every entity carries a GUID that is derived once, right after the row receives its numeric
// id, from that id and a snapshot of a related display string. GUIDs are never recomputed, so
// they may drift from the current display strings of the entities they mention.
package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Sentinel errors
var (
	ErrNotFound = errors.New("not found")
)

// nonePlaceholder is the snapshot used when a related entity is absent.
const nonePlaceholder = "None"

// Model holds the bookkeeping fields shared by every GUID-identified row.
type Model struct {
	ID               int64     `json:"id"`
	GUID             string    `json:"guid"`
	CreatedDate      time.Time `json:"created_date"`
	CreatedBy        *int64    `json:"created_by,omitempty"`
	LastModifiedDate time.Time `json:"last_modified_date"`
}

// User is the minimal account record referenced by audit columns.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Individual is the sequenced person a submission may be linked to.
type Individual struct {
	Model
	IndividualID string `json:"individual_id"`
	DisplayName  string `json:"display_name"`
}

func (i *Individual) String() string {
	if i == nil {
		return nonePlaceholder
	}
	return strings.TrimSpace(i.IndividualID)
}

// Deletion records who removed a submission from the exchange and when.
// By is nil when no actor was recorded or the actor's account was later removed.
type Deletion struct {
	At time.Time `json:"at"`
	By *int64    `json:"by,omitempty"`
}

// Submission is one individual's case submitted for external matching.
type Submission struct {
	Model
	SubmissionID    string          `json:"submission_id"`
	Label           string          `json:"label,omitempty"`
	ContactName     string          `json:"contact_name"`
	ContactHref     string          `json:"contact_href"`
	Features        json.RawMessage `json:"features,omitempty"`
	GenomicFeatures json.RawMessage `json:"genomic_features,omitempty"`

	// Individual is nil when the submission was created without a link or the linked
	// individual has since been deleted.
	Individual *Individual `json:"individual,omitempty"`

	// Deleted is nil while the submission is active.
	Deleted *Deletion `json:"deleted,omitempty"`
}

// IsDeleted reports whether the submission was removed from the exchange.
func (s *Submission) IsDeleted() bool {
	return s.Deleted != nil
}

// DeletedDate returns the deletion timestamp, or nil for an active submission.
func (s *Submission) DeletedDate() *time.Time {
	if s.Deleted == nil {
		return nil
	}
	at := s.Deleted.At
	return &at
}

func (s *Submission) String() string {
	if s == nil {
		return nonePlaceholder
	}
	return fmt.Sprintf("%s_submission_%d", s.Individual.String(), s.ID)
}

// MatchResult is one candidate match returned by the exchange for a submission.
type MatchResult struct {
	Model
	Submission       *Submission     `json:"submission"`
	ResultData       json.RawMessage `json:"result_data"`
	WeContacted      bool            `json:"we_contacted"`
	HostContacted    bool            `json:"host_contacted"`
	DeemedIrrelevant bool            `json:"deemed_irrelevant"`
	FlagForAnalysis  bool            `json:"flag_for_analysis"`
	Comments         *string         `json:"comments,omitempty"`
	MatchRemoved     bool            `json:"match_removed"`
	LastModifiedBy   *int64          `json:"last_modified_by,omitempty"`
}

func (r *MatchResult) String() string {
	if r == nil {
		return nonePlaceholder
	}
	return fmt.Sprintf("%d_%s_result", r.ID, r.Submission.String())
}

// ContactedLabel summarises who initiated contact for a match.
func (r *MatchResult) ContactedLabel() string {
	switch {
	case r.HostContacted:
		return "Host Contacted Us"
	case r.WeContacted:
		return "We Contacted Host"
	default:
		return "Not Contacted"
	}
}

// MatchStatus is a curator's triage update for a match result.
type MatchStatus struct {
	WeContacted      bool    `json:"we_contacted"`
	HostContacted    bool    `json:"host_contacted"`
	DeemedIrrelevant bool    `json:"deemed_irrelevant"`
	FlagForAnalysis  bool    `json:"flag_for_analysis"`
	Comments         *string `json:"comments,omitempty"`
}

// ContactNotes are free-text curator notes about one external institution.
type ContactNotes struct {
	Model
	Institution string `json:"institution"`
	Comments    string `json:"comments"`
}

func (c *ContactNotes) String() string {
	if c == nil {
		return nonePlaceholder
	}
	return fmt.Sprintf("%d_%s_contact", c.ID, c.Institution)
}
