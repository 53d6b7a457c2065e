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

// IndividualRepository handles individual persistence
type IndividualRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewIndividualRepository creates a new individual repository
func NewIndividualRepository(db *pgxpool.Pool, logger *logrus.Logger) *IndividualRepository {
	return &IndividualRepository{
		db:  db,
		log: logger,
	}
}

// Create inserts an individual and assigns its GUID in the same transaction
func (r *IndividualRepository) Create(ctx context.Context, individual *domain.Individual) error {
	var (
		id                      int64
		createdDate, modifiedAt time.Time
		guid                    string
	)
	err := database.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO individuals (individual_id, display_name, created_by_id)
			VALUES ($1, $2, $3)
			RETURNING id, created_date, last_modified_date`,
			individual.IndividualID,
			individual.DisplayName,
			individual.CreatedBy,
		).Scan(&id, &createdDate, &modifiedAt)
		if err != nil {
			return fmt.Errorf("inserting individual: %w", err)
		}

		guid = domain.IndividualGUID(id, individual.IndividualID)
		if _, err := tx.Exec(ctx, `UPDATE individuals SET guid = $2 WHERE id = $1`, id, guid); err != nil {
			return fmt.Errorf("assigning individual guid: %w", err)
		}
		return nil
	})
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"individual_id": individual.IndividualID,
			"error":         err,
		}).Error("Failed to create individual")
		return fmt.Errorf("creating individual: %w", err)
	}

	individual.ID = id
	individual.GUID = guid
	individual.CreatedDate = createdDate
	individual.LastModifiedDate = modifiedAt

	r.log.WithFields(logrus.Fields{
		"id":   individual.ID,
		"guid": individual.GUID,
	}).Info("Individual created successfully")

	return nil
}

// GetByID retrieves an individual by its numeric id
func (r *IndividualRepository) GetByID(ctx context.Context, id int64) (*domain.Individual, error) {
	return r.getOne(ctx, individualSelect+` WHERE id = $1`, id)
}

// GetByGUID retrieves an individual by its GUID
func (r *IndividualRepository) GetByGUID(ctx context.Context, guid string) (*domain.Individual, error) {
	return r.getOne(ctx, individualSelect+` WHERE guid = $1`, guid)
}

const individualSelect = `
	SELECT id, COALESCE(guid, ''), created_date, created_by_id, last_modified_date,
		   individual_id, display_name
	FROM individuals`

func (r *IndividualRepository) getOne(ctx context.Context, query string, arg interface{}) (*domain.Individual, error) {
	var ind domain.Individual
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&ind.ID,
		&ind.GUID,
		&ind.CreatedDate,
		&ind.CreatedBy,
		&ind.LastModifiedDate,
		&ind.IndividualID,
		&ind.DisplayName,
	)
	if err != nil {
		if nf := notFound(err, "individual"); nf != nil {
			return nil, nf
		}
		return nil, fmt.Errorf("getting individual: %w", err)
	}
	return &ind, nil
}

// Update changes the display fields of an individual. Its GUID, and the GUIDs of rows
// that snapshotted it, stay as they are.
func (r *IndividualRepository) Update(ctx context.Context, individual *domain.Individual) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE individuals
		SET individual_id = $2, display_name = $3, last_modified_date = NOW()
		WHERE id = $1`,
		individual.ID,
		individual.IndividualID,
		individual.DisplayName,
	)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"id":    individual.ID,
			"error": err,
		}).Error("Failed to update individual")
		return fmt.Errorf("updating individual: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("individual not found: %w", domain.ErrNotFound)
	}
	return nil
}

// Delete removes an individual. Linked submissions survive with a NULL individual.
func (r *IndividualRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM individuals WHERE id = $1`, id)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"id":    id,
			"error": err,
		}).Error("Failed to delete individual")
		return fmt.Errorf("deleting individual: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("individual not found: %w", domain.ErrNotFound)
	}

	r.log.WithField("id", id).Info("Individual deleted successfully")
	return nil
}
