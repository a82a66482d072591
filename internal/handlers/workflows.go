package handlers

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/jarvis-gateway/internal/dto"
	"github.com/GregMSThompson/jarvis-gateway/internal/errs"
	"github.com/GregMSThompson/jarvis-gateway/internal/response"
	"github.com/GregMSThompson/jarvis-gateway/pkg/helpers"
	"github.com/GregMSThompson/jarvis-gateway/pkg/logger"
)

type workflowManager interface {
	ListWorkflows(ctx context.Context, filter dto.WorkflowFilter) ([]dto.Workflow, error)
	GetWorkflow(ctx context.Context, id string) (dto.Workflow, error)
	ActivateWorkflow(ctx context.Context, id string) error
	DeleteWorkflow(ctx context.Context, id string) error
}

type workflowHandlers struct {
	ResponseHandler response.ResponseHandler
	Workflows       workflowManager
}

func NewWorkflowHandlers(deps *Deps) *workflowHandlers {
	return &workflowHandlers{
		ResponseHandler: deps.ResponseHandler,
		Workflows:       deps.Workflows,
	}
}

func (h *workflowHandlers) WorkflowRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/{id}/activate", h.Activate)
	r.Delete("/{id}", h.Delete)
	return r
}

// List accepts ?active=true|false and ?tags=a,b.
func (h *workflowHandlers) List(w http.ResponseWriter, r *http.Request) {
	var filter dto.WorkflowFilter
	q := r.URL.Query()
	if v := q.Get("active"); v != "" {
		active, err := strconv.ParseBool(v)
		if err != nil {
			h.ResponseHandler.HandleError(w, r, errs.NewValidationError("active must be true or false"))
			return
		}
		filter.Active = helpers.Ptr(active)
	}
	for _, tag := range strings.Split(q.Get("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			filter.Tags = append(filter.Tags, tag)
		}
	}

	workflows, err := h.Workflows.ListWorkflows(r.Context(), filter)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	if workflows == nil {
		workflows = []dto.Workflow{}
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, workflows)
}

func (h *workflowHandlers) Get(w http.ResponseWriter, r *http.Request) {
	wf, err := h.Workflows.GetWorkflow(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, wf)
}

func (h *workflowHandlers) Activate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Workflows.ActivateWorkflow(r.Context(), id); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("workflow activated", "workflow_id", id)
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"id": id, "active": true})
}

func (h *workflowHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Workflows.DeleteWorkflow(r.Context(), id); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	logger.FromContext(r.Context()).Info("workflow deleted", "workflow_id", id)
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, map[string]any{"id": id, "deleted": true})
}
