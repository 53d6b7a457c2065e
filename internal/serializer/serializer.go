// Package serializer converts stored entities into their external JSON shape.
//
// Each entity declares the columns it exposes publicly and the extra columns only trusted
// tooling may see. Nothing is derived from the storage schema, so a new column stays hidden
// until it is added to one of these lists.
package serializer

import (
	"strings"

	"github.com/seqr-matchmaker/internal/domain"
)

// Model names used to prefix the guid key.
const (
	SubmissionModel   = "matchmakerSubmission"
	MatchResultModel  = "matchmakerResult"
	ContactNotesModel = "matchmakerContactNotes"
)

// field is one named column and how to read it off an entity.
type field[T any] struct {
	name  string
	value func(T) interface{}
}

// fieldSet is the fixed public and internal column lists of one entity type.
type fieldSet[T any] struct {
	model    string
	public   []field[T]
	internal []field[T]
}

func (fs fieldSet[T]) serialize(entity T, internal bool) map[string]interface{} {
	out := make(map[string]interface{}, len(fs.public)+len(fs.internal))
	for _, f := range fs.public {
		out[fs.key(f.name)] = f.value(entity)
	}
	if internal {
		for _, f := range fs.internal {
			out[fs.key(f.name)] = f.value(entity)
		}
	}
	return out
}

// Keys returns the output keys the entity exposes, in declaration order.
func (fs fieldSet[T]) Keys(internal bool) []string {
	keys := make([]string, 0, len(fs.public)+len(fs.internal))
	for _, f := range fs.public {
		keys = append(keys, fs.key(f.name))
	}
	if internal {
		for _, f := range fs.internal {
			keys = append(keys, fs.key(f.name))
		}
	}
	return keys
}

func (fs fieldSet[T]) key(name string) string {
	if name == "guid" {
		return fs.model + "Guid"
	}
	return ToCamel(name)
}

var submissionFields = fieldSet[*domain.Submission]{
	model: SubmissionModel,
	public: []field[*domain.Submission]{
		{"guid", func(s *domain.Submission) interface{} { return s.GUID }},
		{"created_date", func(s *domain.Submission) interface{} { return s.CreatedDate }},
		{"last_modified_date", func(s *domain.Submission) interface{} { return s.LastModifiedDate }},
		{"deleted_date", func(s *domain.Submission) interface{} { return s.DeletedDate() }},
	},
}

var matchResultFields = fieldSet[*domain.MatchResult]{
	model: MatchResultModel,
	public: []field[*domain.MatchResult]{
		{"guid", func(r *domain.MatchResult) interface{} { return r.GUID }},
		{"comments", func(r *domain.MatchResult) interface{} { return r.Comments }},
		{"we_contacted", func(r *domain.MatchResult) interface{} { return r.WeContacted }},
		{"host_contacted", func(r *domain.MatchResult) interface{} { return r.HostContacted }},
		{"deemed_irrelevant", func(r *domain.MatchResult) interface{} { return r.DeemedIrrelevant }},
		{"flag_for_analysis", func(r *domain.MatchResult) interface{} { return r.FlagForAnalysis }},
		{"created_date", func(r *domain.MatchResult) interface{} { return r.CreatedDate }},
		{"match_removed", func(r *domain.MatchResult) interface{} { return r.MatchRemoved }},
	},
}

var contactNotesFields = fieldSet[*domain.ContactNotes]{
	model: ContactNotesModel,
	internal: []field[*domain.ContactNotes]{
		{"institution", func(c *domain.ContactNotes) interface{} { return c.Institution }},
		{"comments", func(c *domain.ContactNotes) interface{} { return c.Comments }},
	},
}

// Submission renders a submission. Internal output adds the internal columns to the public ones.
func Submission(s *domain.Submission, internal bool) map[string]interface{} {
	return submissionFields.serialize(s, internal)
}

// MatchResult renders a match result.
func MatchResult(r *domain.MatchResult, internal bool) map[string]interface{} {
	return matchResultFields.serialize(r, internal)
}

// MatchResults renders a list of match results in order.
func MatchResults(results []*domain.MatchResult, internal bool) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		out = append(out, MatchResult(r, internal))
	}
	return out
}

// ContactNotes renders contact notes. The public form is empty.
func ContactNotes(c *domain.ContactNotes, internal bool) map[string]interface{} {
	return contactNotesFields.serialize(c, internal)
}

// SubmissionKeys, MatchResultKeys and ContactNotesKeys list the keys each form exposes.
func SubmissionKeys(internal bool) []string   { return submissionFields.Keys(internal) }
func MatchResultKeys(internal bool) []string  { return matchResultFields.Keys(internal) }
func ContactNotesKeys(internal bool) []string { return contactNotesFields.Keys(internal) }

// ToCamel converts a snake_case column name to camelCase.
func ToCamel(name string) string {
	parts := strings.Split(name, "_")
	var b strings.Builder
	b.Grow(len(name))
	b.WriteString(parts[0])
	for _, p := range parts[1:] {
		if p == "" {
			continue
		}
		b.WriteString(strings.ToUpper(p[:1]))
		b.WriteString(p[1:])
	}
	return b.String()
}
