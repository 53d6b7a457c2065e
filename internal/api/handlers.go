package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seqr-matchmaker/internal/domain"
	"github.com/seqr-matchmaker/internal/middleware"
	"github.com/seqr-matchmaker/internal/repository"
	"github.com/seqr-matchmaker/internal/serializer"
)

// submissionRequest is the body of the create and update submission routes. An individual
// is linked by GUID; an empty individualGuid leaves the submission unlinked.
type submissionRequest struct {
	SubmissionID    string          `json:"submissionId"`
	Label           string          `json:"label"`
	ContactName     string          `json:"contactName"`
	ContactHref     string          `json:"contactHref"`
	Features        json.RawMessage `json:"features"`
	GenomicFeatures json.RawMessage `json:"genomicFeatures"`
	IndividualGUID  string          `json:"individualGuid"`
}

func (r submissionRequest) toSubmission() *domain.Submission {
	submission := &domain.Submission{
		SubmissionID:    r.SubmissionID,
		Label:           r.Label,
		ContactName:     r.ContactName,
		ContactHref:     r.ContactHref,
		Features:        r.Features,
		GenomicFeatures: r.GenomicFeatures,
	}
	if r.IndividualGUID != "" {
		submission.Individual = &domain.Individual{Model: domain.Model{GUID: r.IndividualGUID}}
	}
	return submission
}

func (s *Server) handleSubmitCase(c *gin.Context) {
	var body submissionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	submission := body.toSubmission()
	if err := s.service.SubmitCase(c.Request.Context(), submission); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, serializer.Submission(submission, true))
}

func (s *Server) handleUpdateSubmission(c *gin.Context) {
	var body submissionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	submission, err := s.service.UpdateSubmission(c.Request.Context(), c.Param("guid"), body.toSubmission())
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Submission(submission, true))
}

func (s *Server) handlePurgeSubmission(c *gin.Context) {
	if err := s.service.PurgeSubmission(c.Request.Context(), c.Param("guid")); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleGetSubmission(internal bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		submission, err := s.service.GetSubmission(c.Request.Context(), c.Param("guid"))
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, serializer.Submission(submission, internal))
	}
}

func (s *Server) handleListResults(internal bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		includeRemoved := false
		if internal {
			includeRemoved, _ = strconv.ParseBool(c.Query("include_removed"))
		}

		submission, results, err := s.service.ListResults(c.Request.Context(), c.Param("guid"), includeRemoved)
		if err != nil {
			s.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"submission": serializer.Submission(submission, internal),
			"results":    serializer.MatchResults(results, internal),
		})
	}
}

func (s *Server) handleRecordResult(c *gin.Context) {
	var body struct {
		ResultData json.RawMessage `json:"resultData"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	result, err := s.service.RecordResult(c.Request.Context(), c.Param("guid"), body.ResultData, nil)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, serializer.MatchResult(result, true))
}

func (s *Server) handleUpdateResultStatus(c *gin.Context) {
	var body struct {
		WeContacted      bool    `json:"weContacted"`
		HostContacted    bool    `json:"hostContacted"`
		DeemedIrrelevant bool    `json:"deemedIrrelevant"`
		FlagForAnalysis  bool    `json:"flagForAnalysis"`
		Comments         *string `json:"comments"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	result, err := s.service.UpdateResultStatus(c.Request.Context(), c.Param("guid"), domain.MatchStatus{
		WeContacted:      body.WeContacted,
		HostContacted:    body.HostContacted,
		DeemedIrrelevant: body.DeemedIrrelevant,
		FlagForAnalysis:  body.FlagForAnalysis,
		Comments:         body.Comments,
	}, nil)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.MatchResult(result, true))
}

func (s *Server) handleRemoveMatch(c *gin.Context) {
	if err := s.service.RemoveMatch(c.Request.Context(), c.Param("guid"), nil); err != nil {
		s.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDeleteSubmission(c *gin.Context) {
	submission, err := s.service.DeleteSubmission(c.Request.Context(), c.Param("guid"), nil)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.Submission(submission, true))
}

func (s *Server) handleGetContactNotes(c *gin.Context) {
	notes, err := s.service.GetContactNotes(c.Request.Context(), c.Param("institution"))
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.ContactNotes(notes, true))
}

func (s *Server) handleUpdateContactNotes(c *gin.Context) {
	var body struct {
		Comments string `json:"comments"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		s.writeError(c, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	notes, err := s.service.UpdateContactNotes(c.Request.Context(), c.Param("institution"), body.Comments)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, serializer.ContactNotes(notes, true))
}

// writeError maps service errors onto status codes and a domain.APIError body
func (s *Server) writeError(c *gin.Context, err error) {
	requestID := c.GetString(middleware.CorrelationIDKey)
	_ = c.Error(err)

	var validation *domain.ValidationError
	switch {
	case errors.As(err, &validation):
		c.JSON(http.StatusBadRequest, domain.NewAPIError(domain.ErrValidation, validation.Message, validation.Field, requestID))
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, domain.NewAPIError(domain.ErrNotFoundCode, "Resource not found", "", requestID))
	case repository.IsUniqueViolation(err), repository.IsForeignKeyViolation(err):
		c.JSON(http.StatusConflict, domain.NewAPIError(domain.ErrConflict, "Request conflicts with stored data", repository.ConstraintName(err), requestID))
	default:
		s.logger.WithError(err).WithField("correlation_id", requestID).Error("Request failed")
		c.JSON(http.StatusInternalServerError, domain.NewAPIError(domain.ErrInternalServer, "Internal server error", "", requestID))
	}
}
