package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/seqr-matchmaker/internal/domain"
)

// MockMatchmakerService is a mock implementation of the MatchmakerService interface
type MockMatchmakerService struct {
	mock.Mock
}

func (m *MockMatchmakerService) SubmitCase(ctx context.Context, submission *domain.Submission) error {
	return m.Called(ctx, submission).Error(0)
}

func (m *MockMatchmakerService) UpdateSubmission(ctx context.Context, guid string, changes *domain.Submission) (*domain.Submission, error) {
	args := m.Called(ctx, guid, changes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Submission), args.Error(1)
}

func (m *MockMatchmakerService) PurgeSubmission(ctx context.Context, guid string) error {
	return m.Called(ctx, guid).Error(0)
}

func (m *MockMatchmakerService) GetSubmission(ctx context.Context, guid string) (*domain.Submission, error) {
	args := m.Called(ctx, guid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Submission), args.Error(1)
}

func (m *MockMatchmakerService) ListResults(ctx context.Context, submissionGUID string, includeRemoved bool) (*domain.Submission, []*domain.MatchResult, error) {
	args := m.Called(ctx, submissionGUID, includeRemoved)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*domain.Submission), args.Get(1).([]*domain.MatchResult), args.Error(2)
}

func (m *MockMatchmakerService) RecordResult(ctx context.Context, submissionGUID string, resultData json.RawMessage, createdBy *int64) (*domain.MatchResult, error) {
	args := m.Called(ctx, submissionGUID, resultData, createdBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchResult), args.Error(1)
}

func (m *MockMatchmakerService) UpdateResultStatus(ctx context.Context, resultGUID string, status domain.MatchStatus, by *int64) (*domain.MatchResult, error) {
	args := m.Called(ctx, resultGUID, status, by)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.MatchResult), args.Error(1)
}

func (m *MockMatchmakerService) RemoveMatch(ctx context.Context, resultGUID string, by *int64) error {
	return m.Called(ctx, resultGUID, by).Error(0)
}

func (m *MockMatchmakerService) DeleteSubmission(ctx context.Context, guid string, by *int64) (*domain.Submission, error) {
	args := m.Called(ctx, guid, by)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Submission), args.Error(1)
}

func (m *MockMatchmakerService) GetContactNotes(ctx context.Context, institution string) (*domain.ContactNotes, error) {
	args := m.Called(ctx, institution)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContactNotes), args.Error(1)
}

func (m *MockMatchmakerService) UpdateContactNotes(ctx context.Context, institution, comments string) (*domain.ContactNotes, error) {
	args := m.Called(ctx, institution, comments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ContactNotes), args.Error(1)
}

type fakeHealth struct{ err error }

func (f fakeHealth) Health(context.Context) error { return f.err }

func newTestServer(t *testing.T, health error) (*Server, *MockMatchmakerService) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	svc := new(MockMatchmakerService)
	cfg := &domain.Config{
		Server:    domain.ServerConfig{RequestTimeout: time.Minute},
		RateLimit: domain.RateLimitConfig{Enabled: true, RequestsPerSecond: 100, Burst: 100},
		Logging:   domain.LoggingConfig{Level: "info"},
	}
	return NewServer(cfg, svc, fakeHealth{err: health}, logger), svc
}

func do(s *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))

	s, _ = newTestServer(t, errors.New("connection refused"))
	w = do(s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetSubmission_PublicAndInternal(t *testing.T) {
	s, svc := newTestServer(t, nil)
	submission := &domain.Submission{
		Model:        domain.Model{ID: 1, GUID: "MS0000001_None"},
		SubmissionID: "ext-1",
		ContactHref:  "mailto:matchmaker@broadinstitute.org",
	}
	svc.On("GetSubmission", mock.Anything, "MS0000001_None").Return(submission, nil)

	for _, path := range []string{"/api/v1/submissions/MS0000001_None", "/internal/v1/submissions/MS0000001_None"} {
		w := do(s, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code, path)

		body := decode(t, w)
		assert.Equal(t, "MS0000001_None", body["matchmakerSubmissionGuid"])
		assert.Contains(t, body, "deletedDate")
		assert.NotContains(t, body, "submissionId")
		assert.NotContains(t, body, "contactHref")
	}
	svc.AssertExpectations(t)
}

func TestSubmitCase(t *testing.T) {
	s, svc := newTestServer(t, nil)
	svc.On("SubmitCase", mock.Anything, mock.MatchedBy(func(sub *domain.Submission) bool {
		return sub.SubmissionID == "ext-1" &&
			sub.Individual != nil && sub.Individual.GUID == "I0000001_NA19675" &&
			string(sub.Features) == `[{"id":"HP:0001631"}]`
	})).Run(func(args mock.Arguments) {
		sub := args.Get(1).(*domain.Submission)
		sub.ID = 1
		sub.GUID = "MS0000001_NA19675"
	}).Return(nil)

	w := do(s, http.MethodPost, "/internal/v1/submissions",
		`{"submissionId":"ext-1","individualGuid":"I0000001_NA19675","features":[{"id":"HP:0001631"}]}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "MS0000001_NA19675", decode(t, w)["matchmakerSubmissionGuid"])
	svc.AssertExpectations(t)
}

func TestSubmitCase_Errors(t *testing.T) {
	t.Run("Malformed body", func(t *testing.T) {
		s, svc := newTestServer(t, nil)
		w := do(s, http.MethodPost, "/internal/v1/submissions", `{"submissionId":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		svc.AssertNotCalled(t, "SubmitCase", mock.Anything, mock.Anything)
	})

	t.Run("Missing features", func(t *testing.T) {
		s, svc := newTestServer(t, nil)
		svc.On("SubmitCase", mock.Anything, mock.AnythingOfType("*domain.Submission")).
			Return(domain.NewValidationError("features", "Genotypes and/or phenotypes are required", nil))

		w := do(s, http.MethodPost, "/internal/v1/submissions", `{"submissionId":"ext-2"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Genotypes and/or phenotypes are required", decode(t, w)["message"])
	})

	t.Run("Duplicate submission id", func(t *testing.T) {
		s, svc := newTestServer(t, nil)
		svc.On("SubmitCase", mock.Anything, mock.AnythingOfType("*domain.Submission")).
			Return(fmt.Errorf("creating submission: %w", &pgconn.PgError{
				Code:           "23505",
				ConstraintName: "matchmaker_submissions_submission_id_key",
			}))

		w := do(s, http.MethodPost, "/internal/v1/submissions", `{"submissionId":"ext-1","features":[{"id":"HP:0001631"}]}`)
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Equal(t, "matchmaker_submissions_submission_id_key", decode(t, w)["details"])
	})
}

func TestUpdateSubmission(t *testing.T) {
	s, svc := newTestServer(t, nil)
	updated := &domain.Submission{
		Model:        domain.Model{ID: 1, GUID: "MS0000001_NA19675"},
		SubmissionID: "ext-1",
		Label:        "Trio proband",
	}
	svc.On("UpdateSubmission", mock.Anything, "MS0000001_NA19675", mock.MatchedBy(func(sub *domain.Submission) bool {
		return sub.Label == "Trio proband" && sub.Individual == nil
	})).Return(updated, nil)

	w := do(s, http.MethodPut, "/internal/v1/submissions/MS0000001_NA19675",
		`{"label":"Trio proband","genomicFeatures":[{"gene":{"id":"OR4F5"}}]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MS0000001_NA19675", decode(t, w)["matchmakerSubmissionGuid"])
	svc.AssertExpectations(t)
}

func TestPurgeSubmission(t *testing.T) {
	s, svc := newTestServer(t, nil)
	svc.On("PurgeSubmission", mock.Anything, "MS0000001_None").Return(nil).Once()
	w := do(s, http.MethodPost, "/internal/v1/submissions/MS0000001_None/purge", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	svc.On("PurgeSubmission", mock.Anything, "MS0000002_None").
		Return(fmt.Errorf("failed to purge submission: %w", &pgconn.PgError{
			Code:           "23503",
			ConstraintName: "matchmaker_results_submission_id_fkey",
		})).Once()
	w = do(s, http.MethodPost, "/internal/v1/submissions/MS0000002_None/purge", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	svc.AssertExpectations(t)
}

func TestListResults(t *testing.T) {
	s, svc := newTestServer(t, nil)
	submission := &domain.Submission{Model: domain.Model{ID: 1, GUID: "MS0000001_None"}}
	results := []*domain.MatchResult{{Model: domain.Model{GUID: "MR0000001_None_submission_1"}, WeContacted: true}}

	svc.On("ListResults", mock.Anything, "MS0000001_None", false).Return(submission, results, nil).Once()
	w := do(s, http.MethodGet, "/api/v1/submissions/MS0000001_None/results?include_removed=true", "")
	require.Equal(t, http.StatusOK, w.Code)

	body := decode(t, w)
	list := body["results"].([]interface{})
	require.Len(t, list, 1)
	first := list[0].(map[string]interface{})
	assert.Equal(t, "MR0000001_None_submission_1", first["matchmakerResultGuid"])
	assert.Equal(t, true, first["weContacted"])
	assert.NotContains(t, first, "resultData")

	svc.On("ListResults", mock.Anything, "MS0000001_None", true).Return(submission, results, nil).Once()
	w = do(s, http.MethodGet, "/internal/v1/submissions/MS0000001_None/results?include_removed=true", "")
	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", fmt.Errorf("submission not found: %w", domain.ErrNotFound), http.StatusNotFound, domain.ErrNotFoundCode},
		{"validation", domain.NewValidationError("result_data", "is required", nil), http.StatusBadRequest, domain.ErrValidation},
		{"protected", fmt.Errorf("deleting submission: %w", &pgconn.PgError{Code: "23503"}), http.StatusConflict, domain.ErrConflict},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, domain.ErrInternalServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, svc := newTestServer(t, nil)
			svc.On("GetSubmission", mock.Anything, "MS0000009_None").Return(nil, tt.err)

			w := do(s, http.MethodGet, "/api/v1/submissions/MS0000009_None", "")
			assert.Equal(t, tt.status, w.Code)
			body := decode(t, w)
			assert.Equal(t, tt.code, body["code"])
			assert.Equal(t, w.Header().Get("X-Correlation-ID"), body["request_id"])
		})
	}
}

func TestRecordResult(t *testing.T) {
	s, svc := newTestServer(t, nil)
	payload := json.RawMessage(`{"patient":{"id":"P1"}}`)
	svc.On("RecordResult", mock.Anything, "MS0000001_None", payload, (*int64)(nil)).
		Return(&domain.MatchResult{Model: domain.Model{GUID: "MR0000001_None_submission_1"}}, nil)

	w := do(s, http.MethodPost, "/internal/v1/submissions/MS0000001_None/results", `{"resultData":{"patient":{"id":"P1"}}}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "MR0000001_None_submission_1", decode(t, w)["matchmakerResultGuid"])
	svc.AssertExpectations(t)
}

func TestUpdateResultStatusAndRemove(t *testing.T) {
	s, svc := newTestServer(t, nil)
	comments := "emailed"
	status := domain.MatchStatus{WeContacted: true, Comments: &comments}
	svc.On("UpdateResultStatus", mock.Anything, "MR0000001_x", status, (*int64)(nil)).
		Return(&domain.MatchResult{Model: domain.Model{GUID: "MR0000001_x"}, WeContacted: true, Comments: &comments}, nil)
	svc.On("RemoveMatch", mock.Anything, "MR0000001_x", (*int64)(nil)).Return(nil)

	w := do(s, http.MethodPost, "/internal/v1/results/MR0000001_x/status", `{"weContacted":true,"comments":"emailed"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "emailed", decode(t, w)["comments"])

	w = do(s, http.MethodPost, "/internal/v1/results/MR0000001_x/remove", "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(s, http.MethodPost, "/internal/v1/results/MR0000001_x/status", `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertExpectations(t)
}

func TestDeleteSubmission(t *testing.T) {
	s, svc := newTestServer(t, nil)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	svc.On("DeleteSubmission", mock.Anything, "MS0000001_None", (*int64)(nil)).
		Return(&domain.Submission{Model: domain.Model{GUID: "MS0000001_None"}, Deleted: &domain.Deletion{At: at}}, nil)

	w := do(s, http.MethodDelete, "/internal/v1/submissions/MS0000001_None", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03-01T12:00:00Z", decode(t, w)["deletedDate"])

	w = do(s, http.MethodDelete, "/api/v1/submissions/MS0000001_None", "")
	assert.Equal(t, http.StatusNotFound, w.Code, "public API is read-only")
}

func TestContactNotes(t *testing.T) {
	s, svc := newTestServer(t, nil)
	notes := &domain.ContactNotes{Model: domain.Model{GUID: "MCN0000001_Test_Lab_A"}, Institution: "Test Lab A", Comments: "Prefers email"}
	svc.On("GetContactNotes", mock.Anything, "Test Lab A").Return(notes, nil)
	svc.On("UpdateContactNotes", mock.Anything, "Test Lab A", "Call first").
		Return(&domain.ContactNotes{Institution: "Test Lab A", Comments: "Call first"}, nil)

	w := do(s, http.MethodGet, "/internal/v1/contact-notes/Test%20Lab%20A", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]interface{}{"institution": "Test Lab A", "comments": "Prefers email"}, decode(t, w))

	w = do(s, http.MethodPut, "/internal/v1/contact-notes/Test%20Lab%20A", `{"comments":"Call first"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Call first", decode(t, w)["comments"])

	w = do(s, http.MethodGet, "/api/v1/contact-notes/Test%20Lab%20A", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertExpectations(t)
}
