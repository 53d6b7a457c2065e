package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/seqr-matchmaker/internal/database"
	"github.com/seqr-matchmaker/internal/domain"
)

const submissionSelect = `
	SELECT s.id, COALESCE(s.guid, ''), s.created_date, s.created_by_id, s.last_modified_date,
		   s.submission_id, COALESCE(s.label, ''), s.contact_name, s.contact_href,
		   s.features, s.genomic_features, s.deleted_date, s.deleted_by_id,
		   i.id, i.guid, i.individual_id, i.display_name
	FROM matchmaker_submissions s
	LEFT JOIN individuals i ON i.id = s.individual_id`

// SubmissionRepository handles matchmaker submission persistence
type SubmissionRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewSubmissionRepository creates a new submission repository
func NewSubmissionRepository(db *pgxpool.Pool, logger *logrus.Logger) *SubmissionRepository {
	return &SubmissionRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts a submission, then derives and stores its GUID inside the same
// transaction. The linked individual is re-read in that transaction so the GUID snapshots
// its current display id.
func (r *SubmissionRepository) Create(ctx context.Context, submission *domain.Submission) error {
	if err := domain.ValidateSubmission(submission); err != nil {
		return err
	}

	var individualID *int64
	if submission.Individual != nil {
		individualID = &submission.Individual.ID
	}

	var (
		id                      int64
		createdDate, modifiedAt time.Time
		individual              *domain.Individual
		guid                    string
	)
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if individualID != nil {
			ind, err := loadIndividual(ctx, tx, *individualID)
			if err != nil {
				return err
			}
			individual = ind
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO matchmaker_submissions (
				individual_id, submission_id, label, contact_name, contact_href,
				features, genomic_features, created_by_id
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8
			)
			RETURNING id, created_date, last_modified_date`,
			individualID,
			submission.SubmissionID,
			nullableString(submission.Label),
			submission.ContactName,
			submission.ContactHref,
			jsonParam(submission.Features),
			jsonParam(submission.GenomicFeatures),
			submission.CreatedBy,
		).Scan(&id, &createdDate, &modifiedAt)
		if err != nil {
			return fmt.Errorf("inserting submission: %w", err)
		}

		guid = domain.SubmissionGUID(id, individual)
		if _, err := tx.Exec(ctx, `UPDATE matchmaker_submissions SET guid = $2 WHERE id = $1`, id, guid); err != nil {
			return fmt.Errorf("assigning submission guid: %w", err)
		}
		return nil
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"submission_id": submission.SubmissionID,
			"error":         err,
		}).Error("Failed to create submission")
		return fmt.Errorf("creating submission: %w", err)
	}

	submission.ID = id
	submission.GUID = guid
	submission.CreatedDate = createdDate
	submission.LastModifiedDate = modifiedAt
	submission.Individual = individual

	r.log.WithFields(logrus.Fields{
		"id":            submission.ID,
		"guid":          submission.GUID,
		"submission_id": submission.SubmissionID,
	}).Info("Submission created successfully")

	return nil
}

// GetByID retrieves a submission by its numeric id, deleted or not
func (r *SubmissionRepository) GetByID(ctx context.Context, id int64) (*domain.Submission, error) {
	return r.getOne(ctx, submissionSelect+` WHERE s.id = $1`, id)
}

// GetByGUID retrieves a submission by its GUID
func (r *SubmissionRepository) GetByGUID(ctx context.Context, guid string) (*domain.Submission, error) {
	return r.getOne(ctx, submissionSelect+` WHERE s.guid = $1`, guid)
}

// GetBySubmissionID retrieves a submission by its exchange-facing identifier
func (r *SubmissionRepository) GetBySubmissionID(ctx context.Context, submissionID string) (*domain.Submission, error) {
	return r.getOne(ctx, submissionSelect+` WHERE s.submission_id = $1`, submissionID)
}

// GetByIndividual retrieves the submission linked to an individual
func (r *SubmissionRepository) GetByIndividual(ctx context.Context, individualID int64) (*domain.Submission, error) {
	return r.getOne(ctx, submissionSelect+` WHERE s.individual_id = $1`, individualID)
}

func (r *SubmissionRepository) getOne(ctx context.Context, query string, arg interface{}) (*domain.Submission, error) {
	submission, err := scanSubmission(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if nf := notFound(err, "submission"); nf != nil {
			return nil, nf
		}
		r.log.WithFields(logrus.Fields{
			"lookup": arg,
			"error":  err,
		}).Error("Failed to get submission")
		return nil, fmt.Errorf("getting submission: %w", err)
	}
	return submission, nil
}

// Update writes the editable fields of a submission. The GUID is never rewritten, even
// when the individual link changes.
func (r *SubmissionRepository) Update(ctx context.Context, submission *domain.Submission) error {
	var individualID *int64
	if submission.Individual != nil {
		individualID = &submission.Individual.ID
	}

	tag, err := r.db.Exec(ctx, `
		UPDATE matchmaker_submissions
		SET individual_id = $2, label = $3, contact_name = $4, contact_href = $5,
			features = $6, genomic_features = $7, last_modified_date = NOW()
		WHERE id = $1`,
		submission.ID,
		individualID,
		nullableString(submission.Label),
		submission.ContactName,
		submission.ContactHref,
		jsonParam(submission.Features),
		jsonParam(submission.GenomicFeatures),
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"id":    submission.ID,
			"error": err,
		}).Error("Failed to update submission")
		return fmt.Errorf("updating submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"id":   submission.ID,
		"guid": submission.GUID,
	}).Info("Submission updated successfully")

	return nil
}

// SoftDelete marks a submission as removed from the exchange. The row, its GUID and its
// results are retained.
func (r *SubmissionRepository) SoftDelete(ctx context.Context, id int64, by *int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE matchmaker_submissions
		SET deleted_date = $2, deleted_by_id = $3, last_modified_date = NOW()
		WHERE id = $1`,
		id, at, by,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"id":    id,
			"error": err,
		}).Error("Failed to soft delete submission")
		return fmt.Errorf("soft deleting submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"id":         id,
		"deleted_by": by,
	}).Info("Submission marked deleted")

	return nil
}

// Delete physically removes a submission. The protective foreign key on
// matchmaker_results rejects this while any result references the submission; that
// integrity error is returned wrapped, not translated.
func (r *SubmissionRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM matchmaker_submissions WHERE id = $1`, id)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"id":    id,
			"error": err,
		}).Error("Failed to delete submission")
		return fmt.Errorf("deleting submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("submission not found: %w", domain.ErrNotFound)
	}

	r.log.WithField("id", id).Info("Submission deleted successfully")
	return nil
}

func scanSubmission(row rowScanner) (*domain.Submission, error) {
	var (
		s                                        domain.Submission
		label                                    string
		features, genomicFeatures                []byte
		deletedDate                              *time.Time
		deletedBy                                *int64
		indID                                    *int64
		indGUID, indIndividualID, indDisplayName *string
	)

	err := row.Scan(
		&s.ID,
		&s.GUID,
		&s.CreatedDate,
		&s.CreatedBy,
		&s.LastModifiedDate,
		&s.SubmissionID,
		&label,
		&s.ContactName,
		&s.ContactHref,
		&features,
		&genomicFeatures,
		&deletedDate,
		&deletedBy,
		&indID,
		&indGUID,
		&indIndividualID,
		&indDisplayName,
	)
	if err != nil {
		return nil, err
	}

	s.Label = label
	s.Features = features
	s.GenomicFeatures = genomicFeatures
	s.Individual = individualRef(indID, indGUID, indIndividualID, indDisplayName)
	if deletedDate != nil {
		s.Deleted = &domain.Deletion{At: *deletedDate, By: deletedBy}
	}
	return &s, nil
}

// loadIndividual reads the individual a new row will snapshot.
func loadIndividual(ctx context.Context, tx pgx.Tx, id int64) (*domain.Individual, error) {
	var ind domain.Individual
	err := tx.QueryRow(ctx, `
		SELECT id, COALESCE(guid, ''), individual_id, display_name
		FROM individuals WHERE id = $1`, id).Scan(
		&ind.ID, &ind.GUID, &ind.IndividualID, &ind.DisplayName,
	)
	if err != nil {
		if nf := notFound(err, "individual"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("loading individual: %w", err)
	}
	return &ind, nil
}
