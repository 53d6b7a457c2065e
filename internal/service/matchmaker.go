package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru"
	"github.com/sirupsen/logrus"

	"github.com/seqr-matchmaker/internal/domain"
)

// uniqueViolationChecker is satisfied by repository.IsUniqueViolation. It is injected so the
// service does not depend on the storage driver.
type uniqueViolationChecker func(error) bool

// MatchmakerService coordinates submissions, match results and contact notes
type MatchmakerService struct {
	individuals domain.IndividualRepository
	submissions domain.SubmissionRepository
	results     domain.MatchResultRepository
	notes       domain.ContactNotesRepository
	defaults    domain.MatchmakerConfig

	// notesCache holds contact notes keyed by institution
	notesCache *lru.Cache
	isConflict uniqueViolationChecker

	now    func() time.Time
	logger *logrus.Logger
}

// MatchmakerServiceConfig wires the repositories and settings of a MatchmakerService
type MatchmakerServiceConfig struct {
	Individuals       domain.IndividualRepository
	Submissions       domain.SubmissionRepository
	Results           domain.MatchResultRepository
	ContactNotes      domain.ContactNotesRepository
	Defaults          domain.MatchmakerConfig
	ContactNotesCache int
	IsUniqueViolation func(error) bool
}

// NewMatchmakerService creates a new matchmaker service
func NewMatchmakerService(config MatchmakerServiceConfig, logger *logrus.Logger) (*MatchmakerService, error) {
	if config.ContactNotesCache == 0 {
		config.ContactNotesCache = 256
	}
	if config.IsUniqueViolation == nil {
		config.IsUniqueViolation = func(error) bool { return false }
	}

	cache, err := lru.New(config.ContactNotesCache)
	if err != nil {
		return nil, fmt.Errorf("failed to create contact notes cache: %w", err)
	}

	return &MatchmakerService{
		individuals: config.Individuals,
		submissions: config.Submissions,
		results:     config.Results,
		notes:       config.ContactNotes,
		defaults:    config.Defaults,
		notesCache:  cache,
		isConflict:  config.IsUniqueViolation,
		now:         time.Now,
		logger:      logger,
	}, nil
}

// SubmitCase stores a new case for the exchange. Empty contact fields take the configured
// defaults and a case must carry phenotypes, genotypes or both. An individual given only by
// GUID is resolved before the insert.
func (s *MatchmakerService) SubmitCase(ctx context.Context, submission *domain.Submission) error {
	if err := s.prepareCase(ctx, submission); err != nil {
		return err
	}

	if err := s.submissions.Create(ctx, submission); err != nil {
		return fmt.Errorf("failed to submit case: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"guid":          submission.GUID,
		"submission_id": submission.SubmissionID,
	}).Info("Case submitted to matchmaker")
	return nil
}

// UpdateSubmission replaces the editable fields of a submission: label, contact, features
// and the individual link. The submission id and the GUID stay as stored, and deleted
// submissions cannot be edited.
func (s *MatchmakerService) UpdateSubmission(ctx context.Context, guid string, changes *domain.Submission) (*domain.Submission, error) {
	submission, err := s.submissions.GetByGUID(ctx, guid)
	if err != nil {
		return nil, err
	}
	if submission.IsDeleted() {
		return nil, domain.NewValidationError("submission", "has been removed from the matchmaker", guid)
	}
	if changes.SubmissionID != "" && changes.SubmissionID != submission.SubmissionID {
		return nil, domain.NewValidationError("submission_id", "cannot be changed", changes.SubmissionID)
	}

	submission.Label = changes.Label
	submission.ContactName = changes.ContactName
	submission.ContactHref = changes.ContactHref
	submission.Features = changes.Features
	submission.GenomicFeatures = changes.GenomicFeatures
	submission.Individual = changes.Individual

	if err := s.prepareCase(ctx, submission); err != nil {
		return nil, err
	}
	if err := s.submissions.Update(ctx, submission); err != nil {
		return nil, fmt.Errorf("failed to update submission: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"guid":          submission.GUID,
		"submission_id": submission.SubmissionID,
	}).Info("Submission updated")
	return submission, nil
}

// prepareCase applies contact defaults, validates the case and resolves its individual.
func (s *MatchmakerService) prepareCase(ctx context.Context, submission *domain.Submission) error {
	if strings.TrimSpace(submission.ContactName) == "" {
		submission.ContactName = s.defaults.DefaultContactName
	}
	if strings.TrimSpace(submission.ContactHref) == "" {
		submission.ContactHref = s.defaults.DefaultContactHref
	}

	if err := domain.ValidateSubmission(submission); err != nil {
		return err
	}
	if err := domain.RequireCaseFeatures(submission); err != nil {
		return err
	}
	return s.resolveIndividual(ctx, submission)
}

func (s *MatchmakerService) resolveIndividual(ctx context.Context, submission *domain.Submission) error {
	ref := submission.Individual
	if ref == nil || ref.ID != 0 {
		return nil
	}
	if s.individuals == nil {
		return errors.New("individual lookup is not configured")
	}

	individual, err := s.individuals.GetByGUID(ctx, ref.GUID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NewValidationError("individual", "not found", ref.GUID)
	}
	if err != nil {
		return err
	}
	submission.Individual = individual
	return nil
}

// GetSubmission looks a submission up by GUID. Deleted submissions are returned too.
func (s *MatchmakerService) GetSubmission(ctx context.Context, guid string) (*domain.Submission, error) {
	return s.submissions.GetByGUID(ctx, guid)
}

// ListResults returns a submission and its results. Removed matches are included only
// when includeRemoved is set.
func (s *MatchmakerService) ListResults(ctx context.Context, submissionGUID string, includeRemoved bool) (*domain.Submission, []*domain.MatchResult, error) {
	submission, err := s.submissions.GetByGUID(ctx, submissionGUID)
	if err != nil {
		return nil, nil, err
	}
	results, err := s.results.ListBySubmission(ctx, submission.ID, includeRemoved)
	if err != nil {
		return nil, nil, err
	}
	return submission, results, nil
}

// RecordResult stores a match returned by the exchange for an active submission.
func (s *MatchmakerService) RecordResult(ctx context.Context, submissionGUID string, resultData json.RawMessage, createdBy *int64) (*domain.MatchResult, error) {
	submission, err := s.submissions.GetByGUID(ctx, submissionGUID)
	if err != nil {
		return nil, err
	}
	if submission.IsDeleted() {
		return nil, domain.NewValidationError("submission", "has been removed from the matchmaker", submissionGUID)
	}

	result := &domain.MatchResult{
		Model:      domain.Model{CreatedBy: createdBy},
		Submission: submission,
		ResultData: resultData,
	}
	if err := s.results.Create(ctx, result); err != nil {
		return nil, fmt.Errorf("failed to record match result: %w", err)
	}
	return result, nil
}

// UpdateResultStatus records a curator's triage of a match and returns the stored result.
func (s *MatchmakerService) UpdateResultStatus(ctx context.Context, resultGUID string, status domain.MatchStatus, by *int64) (*domain.MatchResult, error) {
	result, err := s.results.GetByGUID(ctx, resultGUID)
	if err != nil {
		return nil, err
	}
	if err := s.results.UpdateStatus(ctx, result.ID, status, by); err != nil {
		return nil, err
	}

	result.WeContacted = status.WeContacted
	result.HostContacted = status.HostContacted
	result.DeemedIrrelevant = status.DeemedIrrelevant
	result.FlagForAnalysis = status.FlagForAnalysis
	result.Comments = status.Comments
	result.LastModifiedBy = by

	s.logger.WithFields(logrus.Fields{
		"guid":      result.GUID,
		"contacted": result.ContactedLabel(),
	}).Info("Match status updated")
	return result, nil
}

// RemoveMatch hides a match from curators without deleting it.
func (s *MatchmakerService) RemoveMatch(ctx context.Context, resultGUID string, by *int64) error {
	result, err := s.results.GetByGUID(ctx, resultGUID)
	if err != nil {
		return err
	}
	if result.MatchRemoved {
		return nil
	}
	return s.results.SetRemoved(ctx, result.ID, true, by)
}

// DeleteSubmission removes a submission from the exchange while keeping the row, its GUID
// and its results. A submission that is already deleted keeps its first deletion record.
func (s *MatchmakerService) DeleteSubmission(ctx context.Context, guid string, by *int64) (*domain.Submission, error) {
	submission, err := s.submissions.GetByGUID(ctx, guid)
	if err != nil {
		return nil, err
	}
	if submission.IsDeleted() {
		return submission, nil
	}

	at := s.now().UTC()
	if err := s.submissions.SoftDelete(ctx, submission.ID, by, at); err != nil {
		return nil, err
	}
	submission.Deleted = &domain.Deletion{At: at, By: by}

	s.logger.WithFields(logrus.Fields{
		"guid":       guid,
		"deleted_by": by,
	}).Info("Submission removed from matchmaker")
	return submission, nil
}

// PurgeSubmission physically deletes a submission. Storage rejects this while any match
// result still references it.
func (s *MatchmakerService) PurgeSubmission(ctx context.Context, guid string) error {
	submission, err := s.submissions.GetByGUID(ctx, guid)
	if err != nil {
		return err
	}
	if err := s.submissions.Delete(ctx, submission.ID); err != nil {
		return fmt.Errorf("failed to purge submission: %w", err)
	}

	s.logger.WithField("guid", guid).Info("Submission purged")
	return nil
}

// GetContactNotes returns the notes kept for an institution.
func (s *MatchmakerService) GetContactNotes(ctx context.Context, institution string) (*domain.ContactNotes, error) {
	if cached, ok := s.notesCache.Get(institution); ok {
		notes := *cached.(*domain.ContactNotes)
		return &notes, nil
	}

	notes, err := s.notes.GetByInstitution(ctx, institution)
	if err != nil {
		return nil, err
	}
	s.cacheNotes(notes)
	return notes, nil
}

// UpdateContactNotes replaces the comments for an institution, creating its notes on first use.
func (s *MatchmakerService) UpdateContactNotes(ctx context.Context, institution, comments string) (*domain.ContactNotes, error) {
	notes, err := s.getOrCreateNotes(ctx, institution)
	if err != nil {
		return nil, err
	}

	if err := s.notes.UpdateComments(ctx, notes.ID, comments); err != nil {
		s.notesCache.Remove(institution)
		return nil, err
	}
	notes.Comments = comments
	s.cacheNotes(notes)
	return notes, nil
}

func (s *MatchmakerService) getOrCreateNotes(ctx context.Context, institution string) (*domain.ContactNotes, error) {
	notes, err := s.GetContactNotes(ctx, institution)
	if err == nil {
		return notes, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	notes = &domain.ContactNotes{Institution: institution}
	if err := s.notes.Create(ctx, notes); err != nil {
		// another request created the row first
		if s.isConflict(err) {
			return s.notes.GetByInstitution(ctx, institution)
		}
		return nil, err
	}
	return notes, nil
}

func (s *MatchmakerService) cacheNotes(notes *domain.ContactNotes) {
	stored := *notes
	s.notesCache.Add(notes.Institution, &stored)
}
