package domain

import (
	"context"
	"time"
)

// IndividualRepository persists the individuals submissions may be linked to
type IndividualRepository interface {
	Create(ctx context.Context, individual *Individual) error
	GetByID(ctx context.Context, id int64) (*Individual, error)
	GetByGUID(ctx context.Context, guid string) (*Individual, error)
	Update(ctx context.Context, individual *Individual) error
	Delete(ctx context.Context, id int64) error
}

// SubmissionRepository persists matchmaker submissions
type SubmissionRepository interface {
	Create(ctx context.Context, submission *Submission) error
	GetByID(ctx context.Context, id int64) (*Submission, error)
	GetByGUID(ctx context.Context, guid string) (*Submission, error)
	GetBySubmissionID(ctx context.Context, submissionID string) (*Submission, error)
	GetByIndividual(ctx context.Context, individualID int64) (*Submission, error)
	Update(ctx context.Context, submission *Submission) error
	SoftDelete(ctx context.Context, id int64, by *int64, at time.Time) error
	Delete(ctx context.Context, id int64) error
}

// MatchResultRepository persists match results returned by the exchange
type MatchResultRepository interface {
	Create(ctx context.Context, result *MatchResult) error
	GetByID(ctx context.Context, id int64) (*MatchResult, error)
	GetByGUID(ctx context.Context, guid string) (*MatchResult, error)
	ListBySubmission(ctx context.Context, submissionID int64, includeRemoved bool) ([]*MatchResult, error)
	UpdateStatus(ctx context.Context, id int64, status MatchStatus, modifiedBy *int64) error
	SetRemoved(ctx context.Context, id int64, removed bool, modifiedBy *int64) error
	Delete(ctx context.Context, id int64) error
}

// ContactNotesRepository persists curator notes per institution
type ContactNotesRepository interface {
	Create(ctx context.Context, notes *ContactNotes) error
	GetByInstitution(ctx context.Context, institution string) (*ContactNotes, error)
	UpdateComments(ctx context.Context, id int64, comments string) error
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	GetMatchmakerConfig() *MatchmakerConfig
	Reload() error
	Validate() error
	GetDatabaseURL() string
	IsProduction() bool
	IsDevelopment() bool
}
