// Package queue hands inbound messages to SQS for asynchronous
// processing by the Lambda worker.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/wwbp/BCFG-API/internal/domain"
)

// MessageTypeIndividual marks an envelope carrying one participant's
// inbound message.
const MessageTypeIndividual = "INDIVIDUAL_MESSAGE"

// Envelope is the message body exchanged between the producer and the
// Lambda worker.
type Envelope struct {
	Type      string                `json:"type"`
	Timestamp string                `json:"timestamp"`
	UserID    string                `json:"user_id"`
	Context   domain.MessageContext `json:"context"`
	Message   string                `json:"message"`
}

// NewEnvelope builds an individual-message envelope stamped with the
// current time.
func NewEnvelope(userID string, msgCtx domain.MessageContext, message string) Envelope {
	return Envelope{
		Type:      MessageTypeIndividual,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		UserID:    userID,
		Context:   msgCtx,
		Message:   message,
	}
}

// sqsAPI is the minimal SQS interface required by Producer.
// *sqs.Client from aws-sdk-go-v2 satisfies this interface.
type sqsAPI interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// Producer sends envelopes to a single SQS queue.
type Producer struct {
	api      sqsAPI
	queueURL string
}

// NewProducer creates a Producer for the given queue URL.
func NewProducer(api sqsAPI, queueURL string) (*Producer, error) {
	if api == nil {
		return nil, errors.New("queue: api must not be nil")
	}
	if strings.TrimSpace(queueURL) == "" {
		return nil, errors.New("queue: queue URL must not be empty")
	}
	return &Producer{api: api, queueURL: queueURL}, nil
}

// Send serializes the envelope and publishes it to the queue.
func (p *Producer) Send(ctx context.Context, envelope Envelope) error {
	body, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("queue: marshal envelope: %w", err)
	}

	out, err := p.api.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return fmt.Errorf("queue: send message: %w", err)
	}

	slog.Info("message queued", "user_id", envelope.UserID, "message_id", aws.ToString(out.MessageId))
	return nil
}
