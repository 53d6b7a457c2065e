package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresStore implements the Store interface using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new PostgreSQL tag store.
// It expects the schema to already exist (created via migrations).
func NewPostgresStore(db *sql.DB) (*PostgresStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// NewPostgresStoreFromURL creates a new PostgreSQL tag store from a connection URL.
func NewPostgresStoreFromURL(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// An admin command needs only a handful of connections
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store, err := NewPostgresStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// CreateProject inserts a project.
func (s *PostgresStore) CreateProject(ctx context.Context, project *Project) error {
	err := s.db.QueryRowContext(ctx,
		"INSERT INTO projects (guid, name) VALUES ($1, $2) RETURNING id, created_date",
		project.GUID, project.Name,
	).Scan(&project.ID, &project.CreatedDate)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// GetProjectByGUID looks a project up by GUID.
func (s *PostgresStore) GetProjectByGUID(ctx context.Context, guid string) (*Project, error) {
	project := &Project{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, guid, name, created_date FROM projects WHERE guid = $1", guid,
	).Scan(&project.ID, &project.GUID, &project.Name, &project.CreatedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, guid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

// ListTagTypes returns a project's tag types.
func (s *PostgresStore) ListTagTypes(ctx context.Context, projectID int64) ([]*TagType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(guid, ''), project_id, name, category, description, color,
			display_order, created_date
		FROM variant_tag_types
		WHERE project_id = $1
		ORDER BY id
	`, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}
	defer rows.Close()

	var result []*TagType
	for rows.Next() {
		tag, err := scanTagType(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result = append(result, tag)
	}
	return result, rows.Err()
}

// CreateTagType inserts a tag type, then stores its GUID in the same transaction.
func (s *PostgresStore) CreateTagType(ctx context.Context, tag *TagType) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		id      int64
		created time.Time
	)
	err = tx.QueryRowContext(ctx, `
		INSERT INTO variant_tag_types (
			project_id, name, category, description, color, display_order
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_date
	`,
		tag.ProjectID, tag.Name, tag.Category, tag.Description, colorOrDefault(tag.Color), tag.Order,
	).Scan(&id, &created)
	if err != nil {
		return fmt.Errorf("failed to insert tag type: %w", err)
	}

	guid := TagTypeGUID(id, tag.Name)
	if _, err := tx.ExecContext(ctx, "UPDATE variant_tag_types SET guid = $1 WHERE id = $2", guid, id); err != nil {
		return fmt.Errorf("failed to assign tag type guid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	tag.ID = id
	tag.GUID = guid
	tag.Color = colorOrDefault(tag.Color)
	tag.CreatedDate = created
	return nil
}

// Close closes the store and releases resources.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
