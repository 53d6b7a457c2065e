package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/seqr-matchmaker/internal/domain"
)

var (
	_ domain.IndividualRepository   = (*IndividualRepository)(nil)
	_ domain.SubmissionRepository   = (*SubmissionRepository)(nil)
	_ domain.MatchResultRepository  = (*MatchResultRepository)(nil)
	_ domain.ContactNotesRepository = (*ContactNotesRepository)(nil)
)

// rowScanner is satisfied by pgx.Row and pgx.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// jsonParam maps an absent or JSON null payload to SQL NULL.
func jsonParam(raw json.RawMessage) interface{} {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	return []byte(trimmed)
}

// nullableString maps "" to SQL NULL.
func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// notFound wraps domain.ErrNotFound when err is pgx.ErrNoRows.
func notFound(err error, entity string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s not found: %w", entity, domain.ErrNotFound)
	}
	return nil
}

// individualRef builds the linked individual from a LEFT JOIN, or nil when absent.
func individualRef(id *int64, guid, individualID, displayName *string) *domain.Individual {
	if id == nil {
		return nil
	}
	ind := &domain.Individual{Model: domain.Model{ID: *id}}
	if guid != nil {
		ind.GUID = *guid
	}
	if individualID != nil {
		ind.IndividualID = *individualID
	}
	if displayName != nil {
		ind.DisplayName = *displayName
	}
	return ind
}
