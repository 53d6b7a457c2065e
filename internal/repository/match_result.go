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

const matchResultSelect = `
	SELECT r.id, COALESCE(r.guid, ''), r.created_date, r.created_by_id, r.last_modified_date,
		   r.result_data, r.we_contacted, r.host_contacted, r.deemed_irrelevant,
		   r.flag_for_analysis, r.comments, r.match_removed, r.last_modified_by_id,
		   s.id, COALESCE(s.guid, ''), s.submission_id,
		   i.id, i.guid, i.individual_id, i.display_name
	FROM matchmaker_results r
	JOIN matchmaker_submissions s ON s.id = r.submission_id
	LEFT JOIN individuals i ON i.id = s.individual_id`

// MatchResultRepository handles matchmaker result persistence
type MatchResultRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewMatchResultRepository creates a new match result repository
func NewMatchResultRepository(db *pgxpool.Pool, logger *logrus.Logger) *MatchResultRepository {
	return &MatchResultRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts a match result and assigns its GUID from the owning submission's current
// string form, all in one transaction.
func (r *MatchResultRepository) Create(ctx context.Context, result *domain.MatchResult) error {
	if err := domain.ValidateMatchResult(result); err != nil {
		return err
	}

	var (
		created    domain.Model
		submission *domain.Submission
	)
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		sub, err := loadSubmissionRef(ctx, tx, result.Submission.ID)
		if err != nil {
			return err
		}
		submission = sub

		err = tx.QueryRow(ctx, `
			INSERT INTO matchmaker_results (
				submission_id, result_data, we_contacted, host_contacted,
				deemed_irrelevant, flag_for_analysis, comments, match_removed,
				last_modified_by_id, created_by_id
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
			)
			RETURNING id, created_date, last_modified_date`,
			submission.ID,
			jsonParam(result.ResultData),
			result.WeContacted,
			result.HostContacted,
			result.DeemedIrrelevant,
			result.FlagForAnalysis,
			result.Comments,
			result.MatchRemoved,
			result.LastModifiedBy,
			result.CreatedBy,
		).Scan(&created.ID, &created.CreatedDate, &created.LastModifiedDate)
		if err != nil {
			return fmt.Errorf("inserting match result: %w", err)
		}

		created.GUID = domain.MatchResultGUID(created.ID, submission)
		if _, err := tx.Exec(ctx, `UPDATE matchmaker_results SET guid = $2 WHERE id = $1`, created.ID, created.GUID); err != nil {
			return fmt.Errorf("assigning match result guid: %w", err)
		}
		return nil
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"submission_id": result.Submission.ID,
			"error":         err,
		}).Error("Failed to create match result")
		return fmt.Errorf("creating match result: %w", err)
	}

	created.CreatedBy = result.CreatedBy
	result.Model = created
	result.Submission = submission

	r.log.WithFields(logrus.Fields{
		"id":              result.ID,
		"guid":            result.GUID,
		"submission_guid": submission.GUID,
	}).Info("Match result created successfully")

	return nil
}

// GetByID retrieves a match result by its numeric id
func (r *MatchResultRepository) GetByID(ctx context.Context, id int64) (*domain.MatchResult, error) {
	return r.getOne(ctx, matchResultSelect+` WHERE r.id = $1`, id)
}

// GetByGUID retrieves a match result by its GUID
func (r *MatchResultRepository) GetByGUID(ctx context.Context, guid string) (*domain.MatchResult, error) {
	return r.getOne(ctx, matchResultSelect+` WHERE r.guid = $1`, guid)
}

func (r *MatchResultRepository) getOne(ctx context.Context, query string, arg interface{}) (*domain.MatchResult, error) {
	result, err := scanMatchResult(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		if nf := notFound(err, "match result"); nf != nil {
			return nil, nf
		}
		r.log.WithFields(logrus.Fields{
			"lookup": arg,
			"error":  err,
		}).Error("Failed to get match result")
		return nil, fmt.Errorf("getting match result: %w", err)
	}
	return result, nil
}

// ListBySubmission returns the results of a submission in creation order. Removed
// matches are skipped unless includeRemoved is set.
func (r *MatchResultRepository) ListBySubmission(ctx context.Context, submissionID int64, includeRemoved bool) ([]*domain.MatchResult, error) {
	rows, err := r.db.Query(ctx, matchResultSelect+`
		WHERE r.submission_id = $1 AND ($2 OR NOT r.match_removed)
		ORDER BY r.id`, submissionID, includeRemoved)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"submission_id": submissionID,
			"error":         err,
		}).Error("Failed to list match results")
		return nil, fmt.Errorf("listing match results: %w", err)
	}
	defer rows.Close()

	var results []*domain.MatchResult
	for rows.Next() {
		result, err := scanMatchResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning match result row: %w", err)
		}
		results = append(results, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating match result rows: %w", err)
	}

	return results, nil
}

// UpdateStatus records a curator's triage of a match
func (r *MatchResultRepository) UpdateStatus(ctx context.Context, id int64, status domain.MatchStatus, modifiedBy *int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE matchmaker_results
		SET we_contacted = $2, host_contacted = $3, deemed_irrelevant = $4,
			flag_for_analysis = $5, comments = $6, last_modified_by_id = $7,
			last_modified_date = NOW()
		WHERE id = $1`,
		id,
		status.WeContacted,
		status.HostContacted,
		status.DeemedIrrelevant,
		status.FlagForAnalysis,
		status.Comments,
		modifiedBy,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"id":    id,
			"error": err,
		}).Error("Failed to update match status")
		return fmt.Errorf("updating match status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("match result not found: %w", domain.ErrNotFound)
	}
	return nil
}

// SetRemoved flips the match_removed flag. The row is kept for audit.
func (r *MatchResultRepository) SetRemoved(ctx context.Context, id int64, removed bool, modifiedBy *int64) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE matchmaker_results
		SET match_removed = $2, last_modified_by_id = $3, last_modified_date = NOW()
		WHERE id = $1`,
		id, removed, modifiedBy,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"id":    id,
			"error": err,
		}).Error("Failed to set match removed")
		return fmt.Errorf("setting match removed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("match result not found: %w", domain.ErrNotFound)
	}

	r.log.WithFields(logrus.Fields{
		"id":      id,
		"removed": removed,
	}).Info("Match removed flag updated")

	return nil
}

// Delete physically removes a match result
func (r *MatchResultRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM matchmaker_results WHERE id = $1`, id)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"id":    id,
			"error": err,
		}).Error("Failed to delete match result")
		return fmt.Errorf("deleting match result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("match result not found: %w", domain.ErrNotFound)
	}
	return nil
}

func scanMatchResult(row rowScanner) (*domain.MatchResult, error) {
	var (
		m                                        domain.MatchResult
		sub                                      domain.Submission
		resultData                               []byte
		indID                                    *int64
		indGUID, indIndividualID, indDisplayName *string
	)

	err := row.Scan(
		&m.ID,
		&m.GUID,
		&m.CreatedDate,
		&m.CreatedBy,
		&m.LastModifiedDate,
		&resultData,
		&m.WeContacted,
		&m.HostContacted,
		&m.DeemedIrrelevant,
		&m.FlagForAnalysis,
		&m.Comments,
		&m.MatchRemoved,
		&m.LastModifiedBy,
		&sub.ID,
		&sub.GUID,
		&sub.SubmissionID,
		&indID,
		&indGUID,
		&indIndividualID,
		&indDisplayName,
	)
	if err != nil {
		return nil, err
	}

	m.ResultData = resultData
	sub.Individual = individualRef(indID, indGUID, indIndividualID, indDisplayName)
	m.Submission = &sub
	return &m, nil
}

// loadSubmissionRef reads the submission a new result will snapshot, with its individual.
func loadSubmissionRef(ctx context.Context, tx pgx.Tx, id int64) (*domain.Submission, error) {
	var (
		sub                                      domain.Submission
		indID                                    *int64
		indGUID, indIndividualID, indDisplayName *string
	)
	err := tx.QueryRow(ctx, `
		SELECT s.id, COALESCE(s.guid, ''), s.submission_id,
			   i.id, i.guid, i.individual_id, i.display_name
		FROM matchmaker_submissions s
		LEFT JOIN individuals i ON i.id = s.individual_id
		WHERE s.id = $1`, id).Scan(
		&sub.ID, &sub.GUID, &sub.SubmissionID,
		&indID, &indGUID, &indIndividualID, &indDisplayName,
	)
	if err != nil {
		if nf := notFound(err, "submission"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("loading submission: %w", err)
	}
	sub.Individual = individualRef(indID, indGUID, indIndividualID, indDisplayName)
	return &sub, nil
}
