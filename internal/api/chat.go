package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wwbp/BCFG-API/internal/domain"
	"github.com/wwbp/BCFG-API/internal/identity"
	"github.com/wwbp/BCFG-API/internal/orchestrator"
	"github.com/wwbp/BCFG-API/internal/store"
)

// ChatHandler serves the cookie-keyed browser chat surface.
type ChatHandler struct {
	repo  store.Repository
	orch  *orchestrator.Orchestrator
	isDev bool
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(repo store.Repository, orch *orchestrator.Orchestrator, isDev bool) *ChatHandler {
	return &ChatHandler{repo: repo, orch: orch, isDev: isDev}
}

// RegisterRoutes registers chat routes.
func (h *ChatHandler) RegisterRoutes(r chi.Router) {
	r.Route("/chat", func(r chi.Router) {
		r.Use(identity.Middleware())
		r.Post("/login", h.Login)
		r.Post("/send", h.Send)
		r.Get("/user_info", h.UserInfo)
		r.Get("/get_conversation", h.GetConversation)
		r.Post("/restart_session", h.RestartSession)
	})
}

type loginRequest struct {
	Nickname string `json:"nickname"`
	UserID   string `json:"user_id"`
}

// Login handles POST /chat/login: it creates the user if needed,
// assigns activities, opens the session, and issues the chat cookie.
func (h *ChatHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	nickname := strings.TrimSpace(req.Nickname)
	if nickname == "" {
		Error(w, http.StatusBadRequest, "Missing 'nickname' in payload")
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = uuid.NewString()
	}
	if !identity.ValidUserID(userID) {
		Error(w, http.StatusBadRequest, "Invalid 'user_id' in payload")
		return
	}

	user, err := h.repo.GetOrCreateUser(r.Context(), userID, nickname)
	if err != nil {
		slog.Error("login failed", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}

	result, err := h.orch.StartSession(r.Context(), userID)
	if err != nil {
		orchestratorError(w, err)
		return
	}

	identity.SetLoginCookie(w, userID, h.isDev)
	JSON(w, http.StatusOK, map[string]interface{}{
		"user_id":   user.UserID,
		"name":      user.Name,
		"responses": replies(result),
	})
}

type sendRequest struct {
	Message string `json:"message"`
}

// Send handles POST /chat/send for the logged-in participant.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "please log in again")
		return
	}

	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	result, err := h.orch.HandleUserMessage(r.Context(), userID, req.Message)
	if err != nil {
		orchestratorError(w, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{"responses": replies(result)})
}

// UserInfo handles GET /chat/user_info.
func (h *ChatHandler) UserInfo(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "please log in again")
		return
	}

	user, err := h.repo.GetUser(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load user", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user == nil {
		Error(w, http.StatusUnauthorized, "please log in again")
		return
	}

	info := map[string]interface{}{
		"user_id": user.UserID,
		"name":    user.Name,
	}
	session, err := h.repo.GetSession(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load session", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if session != nil {
		info["session"] = map[string]interface{}{
			"current_activity_index": session.CurrentActivityIndex,
			"exchange_count":         session.State.ExchangeCount(),
			"generation":             session.Generation,
			"ended":                  session.Ended(),
		}
	}
	JSON(w, http.StatusOK, info)
}

// GetConversation handles GET /chat/get_conversation: the full
// transcript in chronological order, generation-tagged.
func (h *ChatHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "please log in again")
		return
	}

	entries, err := h.repo.ListTranscripts(r.Context(), userID)
	if err != nil {
		slog.Error("failed to load transcripts", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if entries == nil {
		entries = []domain.Transcript{}
	}
	JSON(w, http.StatusOK, map[string]interface{}{"conversation": entries})
}

// RestartSession handles POST /chat/restart_session.
func (h *ChatHandler) RestartSession(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	if userID == "" {
		Error(w, http.StatusUnauthorized, "please log in again")
		return
	}

	result, err := h.orch.RestartSession(r.Context(), userID)
	if err != nil {
		orchestratorError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"responses": replies(result)})
}

func replies(result orchestrator.Result) []string {
	if result.Replies == nil {
		return []string{}
	}
	return result.Replies
}
