// Package tags stores per-project variant tag types and copies them between projects.
// It operates on its own tables and never touches matchmaker rows.
package tags

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ErrProjectNotFound is returned when a project GUID does not resolve.
var ErrProjectNotFound = errors.New("project not found")

// TagTypeGUIDPrefix prefixes every tag type GUID.
const TagTypeGUIDPrefix = "VTT"

// Project is the minimal project record tag types belong to.
type Project struct {
	ID          int64     `json:"id"`
	GUID        string    `json:"guid"`
	Name        string    `json:"name"`
	CreatedDate time.Time `json:"created_date"`
}

// TagType is one tag a curator can put on a variant within a project.
type TagType struct {
	ID          int64     `json:"id"`
	GUID        string    `json:"guid"`
	ProjectID   int64     `json:"project_id"`
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Color       string    `json:"color"`
	Order       *float64  `json:"order,omitempty"`
	CreatedDate time.Time `json:"created_date"`
}

// CloneFor returns a copy of the tag type attached to another project. Identity fields are
// left empty for the store to assign.
func (t *TagType) CloneFor(projectID int64) *TagType {
	clone := &TagType{
		ProjectID:   projectID,
		Name:        t.Name,
		Category:    t.Category,
		Description: t.Description,
		Color:       t.Color,
	}
	if t.Order != nil {
		order := *t.Order
		clone.Order = &order
	}
	return clone
}

// TagTypeGUID derives a tag type GUID from its id and name.
func TagTypeGUID(id int64, name string) string {
	return fmt.Sprintf("%s%07d_%s", TagTypeGUIDPrefix, id, slugify(name))
}

// slugify lowercases name and collapses every run of other characters into one underscore.
func slugify(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}

// Store defines the interface for tag storage operations.
type Store interface {
	// CreateProject inserts a project with a caller supplied GUID.
	CreateProject(ctx context.Context, project *Project) error

	// GetProjectByGUID returns ErrProjectNotFound when no project has the GUID.
	GetProjectByGUID(ctx context.Context, guid string) (*Project, error)

	// ListTagTypes returns a project's tag types ordered by id.
	ListTagTypes(ctx context.Context, projectID int64) ([]*TagType, error)

	// CreateTagType inserts a tag type and assigns its id, GUID and creation date.
	CreateTagType(ctx context.Context, tag *TagType) error

	// Close closes the store and releases resources.
	Close() error
}
