package domain

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Column widths enforced by the schema, in characters.
const (
	MaxSubmissionIDLength = 255
	MaxLabelLength        = 255
	MaxInstitutionLength  = 200
)

// contactHrefPattern accepts one or more comma separated mailto addresses.
var contactHrefPattern = regexp.MustCompile(
	`(?i)^mailto:[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{2,4}(,\s*[A-Z0-9._%+-]+@[A-Z0-9.-]+\.[A-Z]{1,4})*$`,
)

// ValidContactHref reports whether href is a mailto list the exchange will accept.
func ValidContactHref(href string) bool {
	return contactHrefPattern.MatchString(href)
}

// ValidateSubmission checks the fields a submission must carry before it is written.
func ValidateSubmission(s *Submission) error {
	if strings.TrimSpace(s.SubmissionID) == "" {
		return NewValidationError("submission_id", "is required", s.SubmissionID)
	}
	if utf8.RuneCountInString(s.SubmissionID) > MaxSubmissionIDLength {
		return NewValidationError("submission_id", "exceeds 255 characters", s.SubmissionID)
	}
	if utf8.RuneCountInString(s.Label) > MaxLabelLength {
		return NewValidationError("label", "exceeds 255 characters", s.Label)
	}
	if s.ContactHref != "" && !ValidContactHref(s.ContactHref) {
		return NewValidationError("contact_href", "invalid contact url", s.ContactHref)
	}
	for field, raw := range map[string]json.RawMessage{"features": s.Features, "genomic_features": s.GenomicFeatures} {
		if len(raw) > 0 && !json.Valid(raw) {
			return NewValidationError(field, "is not valid JSON", string(raw))
		}
	}
	return nil
}

// RequireCaseFeatures rejects a case that carries neither phenotypes nor genotypes.
func RequireCaseFeatures(s *Submission) error {
	if HasEntries(s.Features) || HasEntries(s.GenomicFeatures) {
		return nil
	}
	return NewValidationError("features", "Genotypes and/or phenotypes are required", nil)
}

// ValidateMatchResult checks that a match result carries its payload.
func ValidateMatchResult(r *MatchResult) error {
	if r.Submission == nil || r.Submission.ID == 0 {
		return NewValidationError("submission", "is required", nil)
	}
	if isNullJSON(r.ResultData) {
		return NewValidationError("result_data", "is required", nil)
	}
	if !json.Valid(r.ResultData) {
		return NewValidationError("result_data", "is not valid JSON", string(r.ResultData))
	}
	return nil
}

// ValidateContactNotes checks the institution key of contact notes.
func ValidateContactNotes(c *ContactNotes) error {
	if strings.TrimSpace(c.Institution) == "" {
		return NewValidationError("institution", "is required", c.Institution)
	}
	if utf8.RuneCountInString(c.Institution) > MaxInstitutionLength {
		return NewValidationError("institution", "exceeds 200 characters", c.Institution)
	}
	return nil
}

// HasEntries reports whether raw holds a non-empty JSON list or object.
func HasEntries(raw json.RawMessage) bool {
	if isNullJSON(raw) {
		return false
	}
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return v != nil
	}
}

func isNullJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
