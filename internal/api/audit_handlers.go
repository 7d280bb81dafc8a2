package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"calliope/internal/domain/audit"
	"calliope/pkg/errors"
)

// AuditService is the read side of the request audit log.
type AuditService interface {
	Get(ctx context.Context, id uuid.UUID) (*audit.Request, error)
	List(ctx context.Context, filter audit.Filter) ([]audit.Request, error)
}

// AuditHandler serves the read-only audit log endpoints. The log is
// append-only; the only writer is the orchestrator, so every mutating verb on
// this surface is rejected.
type AuditHandler struct {
	service AuditService
}

func NewAuditHandler(service AuditService) *AuditHandler {
	return &AuditHandler{service: service}
}

type auditRequestResponse struct {
	ID string `json:"id"`

	PostID  *int64  `json:"postId,omitempty"`
	UserID  *int64  `json:"userId,omitempty"`
	BrandID int64   `json:"brandId"`
	JobID   *string `json:"jobId,omitempty"`

	ActionCode string `json:"actionCode"`
	Action     string `json:"action"`
	AgentType  string `json:"agentType"`
	AgentLabel string `json:"agentLabel"`

	Provider string `json:"provider"`
	Model    string `json:"model"`

	PromptTokens     int64   `json:"promptTokens"`
	CompletionTokens int64   `json:"completionTokens"`
	TotalTokens      int64   `json:"totalTokens"`
	ImagesGenerated  int64   `json:"imagesGenerated"`
	VideoSeconds     float64 `json:"videoSeconds"`

	InputCostUSD  float64 `json:"inputCostUsd"`
	OutputCostUSD float64 `json:"outputCostUsd"`
	ImageCostUSD  float64 `json:"imageCostUsd"`
	VideoCostUSD  float64 `json:"videoCostUsd"`
	CostUSD       float64 `json:"costUsd"`

	RequestedAt string `json:"requestedAt"`
	StartedAt   string `json:"startedAt"`
	CompletedAt string `json:"completedAt"`
	DurationMs  int64  `json:"durationMs"`

	Status       string  `json:"status"`
	ErrorMessage *string `json:"errorMessage,omitempty"`
}

func toAuditResponse(req *audit.Request) auditRequestResponse {
	resp := auditRequestResponse{
		ID:               req.ID.String(),
		PostID:           req.PostID,
		UserID:           req.UserID,
		BrandID:          req.BrandID,
		ActionCode:       req.ActionCode,
		Action:           req.Action,
		AgentType:        req.AgentType,
		AgentLabel:       req.AgentLabel,
		Provider:         req.Provider,
		Model:            req.Model,
		PromptTokens:     req.PromptTokens,
		CompletionTokens: req.CompletionTokens,
		TotalTokens:      req.TotalTokens,
		ImagesGenerated:  req.ImagesGenerated,
		VideoSeconds:     req.VideoSeconds,
		InputCostUSD:     req.InputCostUSD,
		OutputCostUSD:    req.OutputCostUSD,
		ImageCostUSD:     req.ImageCostUSD,
		VideoCostUSD:     req.VideoCostUSD,
		CostUSD:          req.CostUSD,
		RequestedAt:      req.RequestedAt.Format(timeFormat),
		StartedAt:        req.StartedAt.Format(timeFormat),
		CompletedAt:      req.CompletedAt.Format(timeFormat),
		DurationMs:       req.DurationMs,
		Status:           string(req.Status),
		ErrorMessage:     req.ErrorMessage,
	}
	if req.JobID != nil {
		jobID := req.JobID.String()
		resp.JobID = &jobID
	}
	return resp
}

// HandleGet returns one audit row by id.
// GET /api/v1/audit/{id}
func (h *AuditHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, errors.Wrap(errors.ErrInvalidInput, "invalid audit request id"))
		return
	}

	req, err := h.service.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAuditResponse(req))
}

// HandleList returns audit rows matching the query filters, newest first.
// GET /api/v1/audit
func (h *AuditHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseAuditFilter(r)
	if err != nil {
		writeError(w, err)
		return
	}

	rows, err := h.service.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]auditRequestResponse, 0, len(rows))
	for i := range rows {
		out = append(out, toAuditResponse(&rows[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleMutation rejects every write verb on the audit surface.
func (h *AuditHandler) HandleMutation(w http.ResponseWriter, r *http.Request) {
	writeError(w, errors.Wrap(errors.ErrReadOnly, "audit log is append-only"))
}

func parseAuditFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	var filter audit.Filter

	intParam := func(name string) (*int64, error) {
		raw := q.Get(name)
		if raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "invalid %s", name)
		}
		return &v, nil
	}
	timeParam := func(name string) (*time.Time, error) {
		raw := q.Get(name)
		if raw == "" {
			return nil, nil
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "invalid %s, want RFC3339", name)
		}
		return &t, nil
	}

	var err error
	if filter.PostID, err = intParam("post_id"); err != nil {
		return filter, err
	}
	if filter.UserID, err = intParam("user_id"); err != nil {
		return filter, err
	}
	if filter.BrandID, err = intParam("brand_id"); err != nil {
		return filter, err
	}
	if filter.RequestedFrom, err = timeParam("from"); err != nil {
		return filter, err
	}
	if filter.RequestedTo, err = timeParam("to"); err != nil {
		return filter, err
	}

	filter.ActionCode = q.Get("action_code")
	filter.AgentType = q.Get("agent_type")
	filter.Provider = q.Get("provider")
	filter.Model = q.Get("model")

	if raw := q.Get("status"); raw != "" {
		status := audit.Status(raw)
		if !status.Valid() {
			return filter, errors.Wrapf(errors.ErrInvalidInput, "unknown status %q", raw)
		}
		filter.Status = status
	}

	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return filter, errors.Wrap(errors.ErrInvalidInput, "invalid limit")
		}
		filter.Limit = limit
	}
	if raw := q.Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return filter, errors.Wrap(errors.ErrInvalidInput, "invalid offset")
		}
		filter.Offset = offset
	}

	return filter, nil
}
