package domain

import (
	"fmt"
	"strings"
)

// GUID prefixes per entity type.
const (
	IndividualGUIDPrefix   = "I"
	SubmissionGUIDPrefix   = "MS"
	MatchResultGUIDPrefix  = "MR"
	ContactNotesGUIDPrefix = "MCN"
)

// FormatGUID joins a prefix, the zero-padded row id and a display snapshot.
// Ids wider than seven digits are printed in full.
func FormatGUID(prefix string, id int64, snapshot string) string {
	return fmt.Sprintf("%s%07d_%s", prefix, id, snapshot)
}

// IndividualGUID derives the GUID of an individual from its id and display id.
func IndividualGUID(id int64, individualID string) string {
	return FormatGUID(IndividualGUIDPrefix, id, strings.TrimSpace(individualID))
}

// SubmissionGUID derives the GUID of a submission from its id and linked individual.
func SubmissionGUID(id int64, individual *Individual) string {
	return FormatGUID(SubmissionGUIDPrefix, id, individual.String())
}

// MatchResultGUID derives the GUID of a match result from its id and owning submission.
func MatchResultGUID(id int64, submission *Submission) string {
	return FormatGUID(MatchResultGUIDPrefix, id, submission.String())
}

// ContactNotesGUID derives the GUID of contact notes from its id and institution name.
func ContactNotesGUID(id int64, institution string) string {
	return FormatGUID(ContactNotesGUIDPrefix, id, strings.ReplaceAll(institution, " ", "_"))
}

// ComputeGUID returns the GUID for a freshly inserted submission.
func (s *Submission) ComputeGUID() string {
	return SubmissionGUID(s.ID, s.Individual)
}

// ComputeGUID returns the GUID for a freshly inserted match result.
func (r *MatchResult) ComputeGUID() string {
	return MatchResultGUID(r.ID, r.Submission)
}

// ComputeGUID returns the GUID for freshly inserted contact notes.
func (c *ContactNotes) ComputeGUID() string {
	return ContactNotesGUID(c.ID, c.Institution)
}
