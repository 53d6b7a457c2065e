package tags

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite. It backs standalone admin runs
// that have no PostgreSQL server.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore creates a new SQLite tag store.
// It creates the database file and schema if they don't exist.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// PRAGMAs are per connection
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA foreign_keys=ON"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTagType(s scanner) (*TagType, error) {
	tag := &TagType{}
	var order sql.NullFloat64

	err := s.Scan(
		&tag.ID, &tag.GUID, &tag.ProjectID, &tag.Name, &tag.Category,
		&tag.Description, &tag.Color, &order, &tag.CreatedDate,
	)
	if err != nil {
		return nil, err
	}
	if order.Valid {
		tag.Order = &order.Float64
	}
	return tag, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guid TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		created_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS variant_tag_types (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		guid TEXT UNIQUE,
		created_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		project_id INTEGER REFERENCES projects(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		color TEXT NOT NULL DEFAULT '#1f78b4',
		display_order REAL
	);

	CREATE INDEX IF NOT EXISTS idx_variant_tag_types_project ON variant_tag_types(project_id);
	`

	_, err := db.Exec(schema)
	return err
}

// CreateProject inserts a project.
func (s *SQLiteStore) CreateProject(ctx context.Context, project *Project) error {
	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx,
		"INSERT INTO projects (guid, name, created_date) VALUES (?, ?, ?)",
		project.GUID, project.Name, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}
	project.ID = id
	project.CreatedDate = now
	return nil
}

// GetProjectByGUID looks a project up by GUID.
func (s *SQLiteStore) GetProjectByGUID(ctx context.Context, guid string) (*Project, error) {
	project := &Project{}
	err := s.db.QueryRowContext(ctx,
		"SELECT id, guid, name, created_date FROM projects WHERE guid = ?", guid,
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
func (s *SQLiteStore) ListTagTypes(ctx context.Context, projectID int64) ([]*TagType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, COALESCE(guid, ''), project_id, name, category, description, color,
			display_order, created_date
		FROM variant_tag_types
		WHERE project_id = ?
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
func (s *SQLiteStore) CreateTagType(ctx context.Context, tag *TagType) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx, `
		INSERT INTO variant_tag_types (
			project_id, name, category, description, color, display_order, created_date
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		tag.ProjectID, tag.Name, tag.Category, tag.Description, colorOrDefault(tag.Color), tag.Order, now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert tag type: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get insert ID: %w", err)
	}

	guid := TagTypeGUID(id, tag.Name)
	if _, err := tx.ExecContext(ctx, "UPDATE variant_tag_types SET guid = ? WHERE id = ?", guid, id); err != nil {
		return fmt.Errorf("failed to assign tag type guid: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}

	tag.ID = id
	tag.GUID = guid
	tag.Color = colorOrDefault(tag.Color)
	tag.CreatedDate = now
	return nil
}

// Close closes the store and releases resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// defaultColor matches the column default of both schemas.
const defaultColor = "#1f78b4"

func colorOrDefault(color string) string {
	if color == "" {
		return defaultColor
	}
	return color
}
