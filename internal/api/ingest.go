package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wwbp/BCFG-API/internal/delivery"
	"github.com/wwbp/BCFG-API/internal/domain"
	"github.com/wwbp/BCFG-API/internal/orchestrator"
	"github.com/wwbp/BCFG-API/internal/queue"
	"github.com/wwbp/BCFG-API/internal/store"
)

// requiredContextFields is the contract for the upstream platform's
// context block, in the order missing fields are reported.
var requiredContextFields = []string{
	"school_name", "school_mascot", "initial_message", "week_number", "name",
}

// ingestRequest is the payload POSTed by the upstream platform.
type ingestRequest struct {
	Context map[string]interface{} `json:"context"`
	Message string                 `json:"message"`
}

// IngestHandler serves the participant incoming-message endpoint. With
// a queue producer configured it enqueues for the Lambda worker;
// otherwise it relays inline and pushes replies via the send webhook.
type IngestHandler struct {
	repo     store.Repository
	orch     *orchestrator.Orchestrator
	sender   delivery.Sender
	producer *queue.Producer
}

// NewIngestHandler creates an IngestHandler. producer and sender may be
// nil, selecting inline or queue mode respectively.
func NewIngestHandler(repo store.Repository, orch *orchestrator.Orchestrator, sender delivery.Sender, producer *queue.Producer) *IngestHandler {
	return &IngestHandler{repo: repo, orch: orch, sender: sender, producer: producer}
}

// RegisterRoutes registers the ingest route.
func (h *IngestHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/participant/{id}/incoming", h.IncomingMessage)
}

// IncomingMessage handles POST /api/participant/{id}/incoming.
func (h *IngestHandler) IncomingMessage(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")

	var req ingestRequest
	if err := decodeJSON(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if missing := missingFields(req.Context, req.Message); len(missing) > 0 {
		Error(w, http.StatusBadRequest, "Missing fields: "+strings.Join(missing, ", "))
		return
	}

	msgCtx := contextFromMap(req.Context)

	user, err := h.repo.GetOrCreateUser(r.Context(), userID, msgCtx.Name)
	if err != nil {
		slog.Error("failed to resolve participant", "user_id", userID, "error", err)
		Error(w, http.StatusInternalServerError, "internal error")
		return
	}
	if user.Name != msgCtx.Name && msgCtx.Name != "" {
		if err := h.repo.UpdateUserName(r.Context(), userID, msgCtx.Name); err != nil {
			slog.Warn("failed to refresh participant name", "user_id", userID, "error", err)
		}
	}

	if h.producer != nil {
		if err := h.producer.Send(r.Context(), queue.NewEnvelope(userID, msgCtx, req.Message)); err != nil {
			slog.Error("failed to enqueue message", "user_id", userID, "error", err)
			Error(w, http.StatusInternalServerError, "internal error")
			return
		}
		JSON(w, http.StatusCreated, map[string]string{"status": "Created"})
		return
	}

	if err := h.relayInline(r.Context(), userID, req.Message); err != nil {
		orchestratorError(w, err)
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "received"})
}

// relayInline drives the orchestrator for one inbound message and
// pushes every produced reply through the delivery adapter. Delivery
// failures are logged only; session and transcript state is already
// persisted by the time a push happens.
func (h *IngestHandler) relayInline(ctx context.Context, userID, message string) error {
	started, err := h.orch.StartSession(ctx, userID)
	if err != nil {
		return err
	}
	h.deliverAll(ctx, userID, started.Replies)

	result, err := h.orch.HandleUserMessage(ctx, userID, message)
	if err != nil {
		return err
	}
	h.deliverAll(ctx, userID, result.Replies)
	return nil
}

func (h *IngestHandler) deliverAll(ctx context.Context, userID string, replies []string) {
	if h.sender == nil {
		return
	}
	for _, reply := range replies {
		if err := h.sender.Deliver(ctx, userID, reply); err != nil {
			slog.Error("failed to deliver reply", "user_id", userID, "error", err)
		}
	}
}

// missingFields returns the names of required context fields absent
// from the payload, plus "message" when the message itself is empty.
func missingFields(msgCtx map[string]interface{}, message string) []string {
	var missing []string
	for _, field := range requiredContextFields {
		if _, ok := msgCtx[field]; !ok {
			missing = append(missing, field)
		}
	}
	if strings.TrimSpace(message) == "" {
		missing = append(missing, "message")
	}
	return missing
}

func contextFromMap(m map[string]interface{}) domain.MessageContext {
	var msgCtx domain.MessageContext
	if v, ok := m["school_name"].(string); ok {
		msgCtx.SchoolName = v
	}
	if v, ok := m["school_mascot"].(string); ok {
		msgCtx.SchoolMascot = v
	}
	if v, ok := m["initial_message"].(string); ok {
		msgCtx.InitialMessage = v
	}
	if v, ok := m["week_number"].(float64); ok {
		msgCtx.WeekNumber = int(v)
	}
	if v, ok := m["name"].(string); ok {
		msgCtx.Name = v
	}
	return msgCtx
}
