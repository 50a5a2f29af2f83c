package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/dagrun/internal/application/orchestrator"
	"github.com/aescanero/dagrun/internal/application/workers"
	"github.com/aescanero/dagrun/internal/domain"
	"github.com/aescanero/dagrun/internal/ports"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RunSubmitRequest represents a run submission request
type RunSubmitRequest struct {
	Workflow   *domain.Workflow `json:"workflow" binding:"required"`
	Input      any              `json:"input"`
	ExecutedBy string           `json:"executedBy"`
}

// RunResponse wraps a single run record
type RunResponse struct {
	Run *domain.Run `json:"run"`
}

// RunListResponse wraps the runs of a workflow
type RunListResponse struct {
	Runs  []*domain.Run `json:"runs"`
	Total int           `json:"total"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func abortWithError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{Code: code, Message: message},
	})
}

// handleHealth reports worker pool health. An unhealthy pool answers 503.
func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().UTC(),
		})
		return
	}

	status := s.health.GetStatus()
	code := http.StatusOK
	label := "healthy"
	if !status.Healthy {
		code = http.StatusServiceUnavailable
		label = "unhealthy"
	}
	c.JSON(code, gin.H{
		"status":    label,
		"timestamp": status.Timestamp,
		"workers":   status,
	})
}

// handleSubmitRun creates a run and starts it in the background
func (s *Server) handleSubmitRun(c *gin.Context) {
	var req RunSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Warn("invalid request", zap.Error(err))
		abortWithError(c, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	run, err := s.orchestrator.Submit(c.Request.Context(), req.Workflow, req.Input, req.ExecutedBy)
	switch {
	case err == nil:
	case errors.Is(err, orchestrator.ErrInvalidWorkflow):
		abortWithError(c, http.StatusBadRequest, "INVALID_WORKFLOW", err.Error())
		return
	case errors.Is(err, workers.ErrPoolClosed):
		abortWithError(c, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
		return
	default:
		s.logger.Error("failed to submit run", zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "SUBMISSION_FAILED", err.Error())
		return
	}

	c.JSON(http.StatusCreated, RunResponse{Run: run})
}

// handleGetRun returns the current record of a run
func (s *Server) handleGetRun(c *gin.Context) {
	runID := c.Param("id")

	run, err := s.orchestrator.GetRun(c.Request.Context(), runID)
	if errors.Is(err, ports.ErrRunNotFound) {
		abortWithError(c, http.StatusNotFound, "NOT_FOUND", "Run not found")
		return
	}
	if err != nil {
		s.logger.Error("failed to get run", zap.String("run_id", runID), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}

	c.JSON(http.StatusOK, RunResponse{Run: run})
}

// handleListRuns returns the runs of a workflow, newest first
func (s *Server) handleListRuns(c *gin.Context) {
	workflowID := c.Param("id")

	runs, err := s.orchestrator.ListRuns(c.Request.Context(), workflowID)
	if err != nil {
		s.logger.Error("failed to list runs", zap.String("workflow_id", workflowID), zap.Error(err))
		abortWithError(c, http.StatusInternalServerError, "STORAGE_ERROR", err.Error())
		return
	}
	if runs == nil {
		runs = []*domain.Run{}
	}

	c.JSON(http.StatusOK, RunListResponse{Runs: runs, Total: len(runs)})
}

// handleNodeTypes lists the node types with an executor and the known types
// without one
func (s *Server) handleNodeTypes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"supported":   s.registry.Types(),
		"unsupported": s.registry.Missing(),
	})
}
