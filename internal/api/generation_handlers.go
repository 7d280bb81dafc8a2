package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"calliope/internal/domain/generation"
	generationsvc "calliope/internal/services/generation"
	"calliope/pkg/errors"
	"calliope/pkg/logger"
)

// GenerationService is the slice of the orchestrator the API needs.
type GenerationService interface {
	Start(ctx context.Context, params generationsvc.StartParams) (*generation.Job, error)
	Status(ctx context.Context, jobID uuid.UUID) (*generation.Job, error)
	Reconnect(ctx context.Context, jobID uuid.UUID) (*generation.ProgressEvent, <-chan generation.ProgressEvent, func(), error)
}

// GenerationHandler serves job submission and status endpoints.
type GenerationHandler struct {
	service GenerationService
	log     *logger.Logger
}

func NewGenerationHandler(service GenerationService) *GenerationHandler {
	return &GenerationHandler{
		service: service,
		log:     logger.Get().With("component", "generation_handler"),
	}
}

type startGenerationRequest struct {
	UserID     *int64 `json:"userId,omitempty"`
	PostID     *int64 `json:"postId,omitempty"`
	BrandID    int64  `json:"brandId"`
	Pipeline   string `json:"pipeline"`
	Prompt     string `json:"prompt"`
	SlideCount int    `json:"slideCount,omitempty"`
}

type jobResponse struct {
	ID         string `json:"id"`
	UserID     *int64 `json:"userId,omitempty"`
	BrandID    int64  `json:"brandId"`
	PostID     *int64 `json:"postId,omitempty"`
	Pipeline   string `json:"pipeline"`
	Prompt     string `json:"prompt"`
	SlideCount int    `json:"slideCount,omitempty"`

	Status      string `json:"status"`
	CurrentStep string `json:"currentStep"`

	LastProgress *generation.ProgressEvent `json:"lastProgress,omitempty"`
	Artifacts    []generation.Artifact     `json:"artifacts,omitempty"`

	TotalTokens    int64   `json:"totalTokens"`
	TotalCostUSD   float64 `json:"totalCostUsd"`
	TotalImages    int64   `json:"totalImages"`
	ExecutionCount int64   `json:"executionCount"`

	ErrorMessage *string `json:"errorMessage,omitempty"`

	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
	CompletedAt *string `json:"completedAt,omitempty"`
}

func toJobResponse(job *generation.Job) jobResponse {
	resp := jobResponse{
		ID:             job.ID.String(),
		UserID:         job.UserID,
		BrandID:        job.BrandID,
		PostID:         job.PostID,
		Pipeline:       string(job.Pipeline),
		Prompt:         job.Prompt,
		SlideCount:     job.SlideCount,
		Status:         string(job.Status),
		CurrentStep:    string(job.CurrentStep),
		TotalTokens:    job.TotalTokens,
		TotalCostUSD:   job.TotalCostUSD,
		TotalImages:    job.TotalImages,
		ExecutionCount: job.ExecutionCount,
		ErrorMessage:   job.ErrorMessage,
		CreatedAt:      job.CreatedAt.Format(timeFormat),
		UpdatedAt:      job.UpdatedAt.Format(timeFormat),
	}
	if job.CompletedAt != nil {
		completed := job.CompletedAt.Format(timeFormat)
		resp.CompletedAt = &completed
	}
	// Persistence blobs decode at the API boundary; a corrupt blob degrades
	// the response instead of failing it.
	if len(job.LastProgress) > 0 {
		var event generation.ProgressEvent
		if err := json.Unmarshal(job.LastProgress, &event); err == nil {
			resp.LastProgress = &event
		}
	}
	if len(job.Artifacts) > 0 {
		var artifacts []generation.Artifact
		if err := json.Unmarshal(job.Artifacts, &artifacts); err == nil {
			resp.Artifacts = artifacts
		}
	}
	return resp
}

// HandleStart submits a new generation job.
// POST /api/v1/generations
func (h *GenerationHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	var req startGenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrInvalidInput, "invalid request body"))
		return
	}

	job, err := h.service.Start(r.Context(), generationsvc.StartParams{
		UserID:     req.UserID,
		PostID:     req.PostID,
		BrandID:    req.BrandID,
		Pipeline:   generation.PipelineKind(req.Pipeline),
		Prompt:     req.Prompt,
		SlideCount: req.SlideCount,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	h.log.Infof("Accepted generation job %s (pipeline=%s brand=%d)", job.ID, job.Pipeline, job.BrandID)
	writeJSON(w, http.StatusAccepted, toJobResponse(job))
}

// HandleStatus returns the persisted state of a job.
// GET /api/v1/generations/{id}
func (h *GenerationHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrInvalidInput, "invalid job id"))
		return
	}

	job, err := h.service.Status(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toJobResponse(job))
}
