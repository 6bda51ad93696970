package api

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/go-chi/chi/v5"

	"github.com/wwbp/BCFG-API/internal/delivery"
	"github.com/wwbp/BCFG-API/internal/domain"
	"github.com/wwbp/BCFG-API/internal/orchestrator"
	"github.com/wwbp/BCFG-API/internal/queue"
	"github.com/wwbp/BCFG-API/internal/scheduler"
	"github.com/wwbp/BCFG-API/internal/store"
)

// captureSender records deliveries instead of POSTing them anywhere.
type captureSender struct {
	mu        sync.Mutex
	delivered []string
}

func (c *captureSender) Deliver(_ context.Context, _, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delivered = append(c.delivered, text)
	return nil
}

type captureSQS struct {
	bodies []string
}

func (c *captureSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	c.bodies = append(c.bodies, aws.ToString(in.MessageBody))
	return &sqs.SendMessageOutput{MessageId: aws.String("mid-1")}, nil
}

func newIngestServer(t *testing.T, sender *captureSender, producer *queue.Producer) (*httptest.Server, *store.Memory) {
	t.Helper()
	repo := store.NewMemory()
	ctx := context.Background()

	if err := repo.CreateActivity(ctx, &domain.Activity{Content: "daily reflection", Priority: 1}); err != nil {
		t.Fatalf("Failed to seed activity: %v", err)
	}
	cfg := domain.DefaultPromptConfig()
	cfg.NumActivities = 1
	if err := repo.SavePromptConfig(ctx, cfg); err != nil {
		t.Fatalf("Failed to seed prompt config: %v", err)
	}

	sched := scheduler.New(repo, rand.New(rand.NewSource(1)))
	orch := orchestrator.New(repo, &scriptedLLM{}, sched)

	r := chi.NewRouter()
	var s delivery.Sender
	if sender != nil {
		s = sender
	}
	NewIngestHandler(repo, orch, s, producer).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, repo
}

func validIngestPayload(message string) map[string]interface{} {
	return map[string]interface{}{
		"context": map[string]interface{}{
			"school_name":     "Riverdale High",
			"school_mascot":   "otter",
			"initial_message": "Welcome to the program!",
			"week_number":     3,
			"name":            "Dana",
		},
		"message": message,
	}
}

func TestIncomingMessageReportsMissingFields(t *testing.T) {
	srv, _ := newIngestServer(t, nil, nil)

	resp := postJSON(t, http.DefaultClient, srv.URL+"/api/participant/p1/incoming", map[string]interface{}{
		"context": map[string]interface{}{"school_name": "Riverdale High"},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected status 400, got %d", resp.StatusCode)
	}
	got := decodeBody(t, resp)
	want := "Missing fields: school_mascot, initial_message, week_number, name, message"
	if got["error"] != want {
		t.Errorf("Expected %q, got %v", want, got["error"])
	}
}

func TestIncomingMessageRelaysInline(t *testing.T) {
	sender := &captureSender{}
	srv, repo := newIngestServer(t, sender, nil)

	resp := postJSON(t, http.DefaultClient, srv.URL+"/api/participant/p1/incoming", validIngestPayload("hello"))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	got := decodeBody(t, resp)
	if got["status"] != "received" {
		t.Errorf("Expected status received, got %v", got["status"])
	}

	// Opening reply plus the answer to the message.
	if len(sender.delivered) != 2 {
		t.Fatalf("Expected 2 deliveries, got %d", len(sender.delivered))
	}

	user, err := repo.GetUser(context.Background(), "p1")
	if err != nil || user == nil {
		t.Fatalf("Expected participant to be created, got %v, %v", user, err)
	}
	if user.Name != "Dana" {
		t.Errorf("Expected name Dana, got %q", user.Name)
	}
}

func TestIncomingMessageRefreshesName(t *testing.T) {
	sender := &captureSender{}
	srv, repo := newIngestServer(t, sender, nil)

	resp := postJSON(t, http.DefaultClient, srv.URL+"/api/participant/p1/incoming", validIngestPayload("hello"))
	_ = resp.Body.Close()

	payload := validIngestPayload("hello again")
	payload["context"].(map[string]interface{})["name"] = "Dana R"
	resp = postJSON(t, http.DefaultClient, srv.URL+"/api/participant/p1/incoming", payload)
	_ = resp.Body.Close()

	user, err := repo.GetUser(context.Background(), "p1")
	if err != nil || user == nil {
		t.Fatalf("Expected participant, got %v, %v", user, err)
	}
	if user.Name != "Dana R" {
		t.Errorf("Expected refreshed name, got %q", user.Name)
	}
}

func TestIncomingMessageEnqueuesWhenConfigured(t *testing.T) {
	api := &captureSQS{}
	producer, err := queue.NewProducer(api, "https://sqs.example/queue")
	if err != nil {
		t.Fatalf("Failed to create producer: %v", err)
	}
	srv, _ := newIngestServer(t, nil, producer)

	resp := postJSON(t, http.DefaultClient, srv.URL+"/api/participant/p1/incoming", validIngestPayload("hello"))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", resp.StatusCode)
	}
	got := decodeBody(t, resp)
	if got["status"] != "Created" {
		t.Errorf("Expected status Created, got %v", got["status"])
	}

	if len(api.bodies) != 1 {
		t.Fatalf("Expected 1 queued message, got %d", len(api.bodies))
	}
	var envelope queue.Envelope
	if err := json.Unmarshal([]byte(api.bodies[0]), &envelope); err != nil {
		t.Fatalf("Failed to decode envelope: %v", err)
	}
	if envelope.UserID != "p1" {
		t.Errorf("Expected user p1, got %q", envelope.UserID)
	}
	if envelope.Context.WeekNumber != 3 {
		t.Errorf("Expected week 3, got %d", envelope.Context.WeekNumber)
	}
	if !strings.Contains(api.bodies[0], "INDIVIDUAL_MESSAGE") {
		t.Errorf("Expected individual message type in body: %s", api.bodies[0])
	}
}
