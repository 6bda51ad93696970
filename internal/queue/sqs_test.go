package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/stretchr/testify/require"

	"github.com/wwbp/BCFG-API/internal/domain"
)

type fakeSQS struct {
	in  *sqs.SendMessageInput
	err error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	f.in = in
	if f.err != nil {
		return nil, f.err
	}
	return &sqs.SendMessageOutput{MessageId: aws.String("mid-1")}, nil
}

func TestSendPublishesEnvelope(t *testing.T) {
	api := &fakeSQS{}
	producer, err := NewProducer(api, "https://sqs.example/queue")
	require.NoError(t, err)

	envelope := NewEnvelope("user-1", domain.MessageContext{
		SchoolName:   "Riverdale High",
		SchoolMascot: "otter",
		WeekNumber:   3,
		Name:         "Dana",
	}, "hi there")
	require.NoError(t, producer.Send(context.Background(), envelope))

	require.Equal(t, "https://sqs.example/queue", aws.ToString(api.in.QueueUrl))

	var decoded Envelope
	require.NoError(t, json.Unmarshal([]byte(aws.ToString(api.in.MessageBody)), &decoded))
	require.Equal(t, MessageTypeIndividual, decoded.Type)
	require.Equal(t, "user-1", decoded.UserID)
	require.Equal(t, "hi there", decoded.Message)
	require.Equal(t, "Riverdale High", decoded.Context.SchoolName)
	require.NotEmpty(t, decoded.Timestamp)
}

func TestSendPropagatesAPIError(t *testing.T) {
	api := &fakeSQS{err: errors.New("throttled")}
	producer, err := NewProducer(api, "https://sqs.example/queue")
	require.NoError(t, err)

	err = producer.Send(context.Background(), NewEnvelope("u", domain.MessageContext{}, "m"))
	require.Error(t, err)
}

func TestNewProducerValidation(t *testing.T) {
	_, err := NewProducer(nil, "url")
	require.Error(t, err)

	_, err = NewProducer(&fakeSQS{}, " ")
	require.Error(t, err)
}
