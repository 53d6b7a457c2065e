package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/seqr-matchmaker/internal/database"
	"github.com/seqr-matchmaker/internal/domain"
)

// ContactNotesRepository handles persistence of curator notes per institution
type ContactNotesRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewContactNotesRepository creates a new contact notes repository
func NewContactNotesRepository(db *pgxpool.Pool, logger *logrus.Logger) *ContactNotesRepository {
	return &ContactNotesRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts notes for an institution and assigns the GUID. A second row for the
// same institution fails on the unique constraint.
func (r *ContactNotesRepository) Create(ctx context.Context, notes *domain.ContactNotes) error {
	if err := domain.ValidateContactNotes(notes); err != nil {
		return err
	}

	var created domain.Model
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO matchmaker_contact_notes (institution, comments, created_by_id)
			VALUES ($1, $2, $3)
			RETURNING id, created_date, last_modified_date`,
			notes.Institution,
			notes.Comments,
			notes.CreatedBy,
		).Scan(&created.ID, &created.CreatedDate, &created.LastModifiedDate)
		if err != nil {
			return fmt.Errorf("inserting contact notes: %w", err)
		}

		created.GUID = domain.ContactNotesGUID(created.ID, notes.Institution)
		if _, err := tx.Exec(ctx, `UPDATE matchmaker_contact_notes SET guid = $2 WHERE id = $1`, created.ID, created.GUID); err != nil {
			return fmt.Errorf("assigning contact notes guid: %w", err)
		}
		return nil
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"institution": notes.Institution,
			"error":       err,
		}).Error("Failed to create contact notes")
		return fmt.Errorf("creating contact notes: %w", err)
	}

	created.CreatedBy = notes.CreatedBy
	notes.Model = created

	r.log.WithFields(logrus.Fields{
		"id":          notes.ID,
		"guid":        notes.GUID,
		"institution": notes.Institution,
	}).Info("Contact notes created successfully")

	return nil
}

// GetByInstitution retrieves the notes kept for an institution
func (r *ContactNotesRepository) GetByInstitution(ctx context.Context, institution string) (*domain.ContactNotes, error) {
	var notes domain.ContactNotes
	err := r.db.QueryRow(ctx, `
		SELECT id, COALESCE(guid, ''), created_date, created_by_id, last_modified_date,
			   institution, comments
		FROM matchmaker_contact_notes
		WHERE institution = $1`, institution).Scan(
		&notes.ID,
		&notes.GUID,
		&notes.CreatedDate,
		&notes.CreatedBy,
		&notes.LastModifiedDate,
		&notes.Institution,
		&notes.Comments,
	)
	if err != nil {
		if nf := notFound(err, "contact notes"); nf != nil {
			return nil, nf
		}
		r.log.WithFields(logrus.Fields{
			"institution": institution,
			"error":       err,
		}).Error("Failed to get contact notes")
		return nil, fmt.Errorf("getting contact notes: %w", err)
	}
	return &notes, nil
}

// UpdateComments replaces the comments kept for an institution
func (r *ContactNotesRepository) UpdateComments(ctx context.Context, id int64, comments string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE matchmaker_contact_notes
		SET comments = $2, last_modified_date = NOW()
		WHERE id = $1`, id, comments)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"id":    id,
			"error": err,
		}).Error("Failed to update contact notes")
		return fmt.Errorf("updating contact notes: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contact notes not found: %w", domain.ErrNotFound)
	}
	return nil
}
