// Package worker consumes queued participant messages from SQS inside
// AWS Lambda. Each record is processed one-shot: a context-prompted
// completion with the reply pushed back through the send webhook.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"github.com/wwbp/BCFG-API/internal/delivery"
	"github.com/wwbp/BCFG-API/internal/domain"
	"github.com/wwbp/BCFG-API/internal/queue"
)

// Completer is the one-shot LLM capability the worker needs.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Handler processes SQS events.
type Handler struct {
	llm    Completer
	sender delivery.Sender
}

// NewHandler creates a Handler.
func NewHandler(llm Completer, sender delivery.Sender) (*Handler, error) {
	if llm == nil {
		return nil, errors.New("worker: llm must not be nil")
	}
	if sender == nil {
		return nil, errors.New("worker: sender must not be nil")
	}
	return &Handler{llm: llm, sender: sender}, nil
}

// Handle is the Lambda entry point. Bad records are logged and skipped
// rather than failing the batch; a poisoned message must not wedge the
// queue.
func (h *Handler) Handle(ctx context.Context, event events.SQSEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			slog.Error("failed to process record", "message_id", record.MessageId, "error", err)
		}
	}
	return nil
}

func (h *Handler) processRecord(ctx context.Context, record events.SQSMessage) error {
	var envelope queue.Envelope
	if err := json.Unmarshal([]byte(record.Body), &envelope); err != nil {
		return fmt.Errorf("unmarshal envelope: %w", err)
	}
	if envelope.Type != queue.MessageTypeIndividual {
		return fmt.Errorf("unsupported message type %q", envelope.Type)
	}
	if envelope.UserID == "" {
		return errors.New("envelope missing user id")
	}

	reply, err := h.llm.Complete(ctx, contextPrompt(envelope.Context), envelope.Message)
	if err != nil {
		return fmt.Errorf("generate reply: %w", err)
	}

	if err := h.sender.Deliver(ctx, envelope.UserID, reply); err != nil {
		return fmt.Errorf("deliver reply: %w", err)
	}

	slog.Info("record processed", "user_id", envelope.UserID, "message_id", record.MessageId)
	return nil
}

func contextPrompt(msgCtx domain.MessageContext) string {
	return fmt.Sprintf(
		"You are a supportive assistant for a student at %s (mascot: %s), week %d of the program. "+
			"You are talking with %s. Program opening message: %s",
		msgCtx.SchoolName, msgCtx.SchoolMascot, msgCtx.WeekNumber, msgCtx.Name, msgCtx.InitialMessage,
	)
}
