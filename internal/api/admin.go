package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wwbp/BCFG-API/internal/domain"
	"github.com/wwbp/BCFG-API/internal/store"
)

// AdminHandler serves prompt configuration and activity catalog CRUD.
// Changes apply to future sessions; assignments already drawn keep
// their snapshot.
type AdminHandler struct {
	repo store.Repository
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(repo store.Repository) *AdminHandler {
	return &AdminHandler{repo: repo}
}

// RegisterRoutes registers admin routes.
func (h *AdminHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/prompt", h.GetPrompt)
		r.Put("/prompt", h.PutPrompt)
		r.Get("/activities", h.ListActivities)
		r.Post("/activities", h.CreateActivity)
		r.Put("/activities/{id}", h.UpdateActivity)
		r.Delete("/activities/{id}", h.DeleteActivity)
	})
}

// GetPrompt handles GET /api/prompt.
func (h *AdminHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.repo.GetPromptConfig(r.Context())
	if err != nil {
		slog.Error("failed to load prompt config", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	JSON(w, http.StatusOK, cfg)
}

type promptRequest struct {
	Persona       string `json:"persona"`
	Knowledge     string `json:"knowledge"`
	NumActivities int    `json:"num_activities"`
	NumRounds     int    `json:"num_rounds"`
}

// PutPrompt handles PUT /api/prompt.
func (h *AdminHandler) PutPrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.NumActivities < 0 || req.NumRounds < 1 {
		Error(w, http.StatusBadRequest, "num_activities must be >= 0 and num_rounds >= 1")
		return
	}

	cfg := &domain.PromptConfig{
		Persona:       req.Persona,
		Knowledge:     req.Knowledge,
		NumActivities: req.NumActivities,
		NumRounds:     req.NumRounds,
	}
	if err := h.repo.SavePromptConfig(r.Context(), cfg); err != nil {
		slog.Error("failed to save prompt config", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	JSON(w, http.StatusOK, cfg)
}

// ListActivities handles GET /api/activities.
func (h *AdminHandler) ListActivities(w http.ResponseWriter, r *http.Request) {
	activities, err := h.repo.ListActivityCatalog(r.Context())
	if err != nil {
		slog.Error("failed to list activities", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if activities == nil {
		activities = []domain.Activity{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"activities": activities})
}

type activityRequest struct {
	Content  string `json:"content"`
	Priority int    `json:"priority"`
}

// CreateActivity handles POST /api/activities.
func (h *AdminHandler) CreateActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		Error(w, http.StatusBadRequest, "Missing 'content' in payload")
		return
	}

	activity := &domain.Activity{Content: req.Content, Priority: req.Priority}
	if err := h.repo.CreateActivity(r.Context(), activity); err != nil {
		slog.Error("failed to create activity", "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	JSON(w, http.StatusCreated, activity)
}

// UpdateActivity handles PUT /api/activities/{id}.
func (h *AdminHandler) UpdateActivity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "Invalid activity id")
		return
	}

	var req activityRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		Error(w, http.StatusBadRequest, "Missing 'content' in payload")
		return
	}

	activity := &domain.Activity{ID: id, Content: req.Content, Priority: req.Priority}
	if err := h.repo.UpdateActivity(r.Context(), activity); err != nil {
		Error(w, http.StatusNotFound, "activity not found")
		return
	}
	JSON(w, http.StatusOK, activity)
}

// DeleteActivity handles DELETE /api/activities/{id}.
func (h *AdminHandler) DeleteActivity(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		Error(w, http.StatusBadRequest, "Invalid activity id")
		return
	}

	if err := h.repo.DeleteActivity(r.Context(), id); err != nil {
		Error(w, http.StatusNotFound, "activity not found")
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
