// Package llm is a focused OpenAI client covering the two shapes the
// relay needs: stateful assistant threads (create once, append, run to
// completion, read the reply) and one-shot chat completions for the
// queue worker.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultBaseURL      = "https://api.openai.com/v1"
	defaultModel        = "gpt-4o-mini"
	defaultPollInterval = 500 * time.Millisecond
	defaultTimeout      = 60 * time.Second
)

// HTTPStatusError captures non-2xx upstream responses.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("llm: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client talks to an OpenAI-compatible API.
type Client struct {
	baseURL      string
	apiKey       string
	model        string
	httpClient   *http.Client
	pollInterval time.Duration
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		c.pollInterval = d
	}
}

// NewClient creates a Client. The API key is required; everything else
// has workable defaults.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("llm: api key must not be empty")
	}
	c := &Client{
		baseURL:      defaultBaseURL,
		apiKey:       apiKey,
		model:        defaultModel,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	return c, nil
}

type assistantRequest struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Model        string `json:"model"`
}

type objectWithID struct {
	ID string `json:"id"`
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type runRequest struct {
	AssistantID string `json:"assistant_id"`
}

type runStatus struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
}

type threadMessageList struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}

// SetupConversation creates an assistant with the given system
// instructions and a fresh thread, returning both ids.
func (c *Client) SetupConversation(ctx context.Context, instructions string) (string, string, error) {
	var assistant objectWithID
	err := c.post(ctx, "/assistants", assistantRequest{
		Name:         "Assistant",
		Instructions: instructions,
		Model:        c.model,
	}, &assistant)
	if err != nil {
		return "", "", fmt.Errorf("llm: create assistant: %w", err)
	}

	var thread objectWithID
	if err := c.post(ctx, "/threads", struct{}{}, &thread); err != nil {
		return "", "", fmt.Errorf("llm: create thread: %w", err)
	}

	return assistant.ID, thread.ID, nil
}

// RunTurn appends message to the thread when non-empty, runs the
// assistant to completion, and returns the newest assistant reply.
func (c *Client) RunTurn(ctx context.Context, assistantID, threadID, message string) (string, error) {
	if message != "" {
		var appended objectWithID
		err := c.post(ctx, "/threads/"+threadID+"/messages", messageRequest{
			Role:    "user",
			Content: message,
		}, &appended)
		if err != nil {
			return "", fmt.Errorf("llm: append message: %w", err)
		}
	}

	var run runStatus
	if err := c.post(ctx, "/threads/"+threadID+"/runs", runRequest{AssistantID: assistantID}, &run); err != nil {
		return "", fmt.Errorf("llm: create run: %w", err)
	}

	if err := c.awaitRun(ctx, threadID, &run); err != nil {
		return "", err
	}

	return c.latestAssistantMessage(ctx, threadID)
}

// awaitRun polls the run until it leaves the queued/in_progress states.
func (c *Client) awaitRun(ctx context.Context, threadID string, run *runStatus) error {
	for {
		switch run.Status {
		case "completed":
			return nil
		case "queued", "in_progress":
		default:
			if run.LastError != nil {
				return fmt.Errorf("llm: run %s with status %s: %s", run.ID, run.Status, run.LastError.Message)
			}
			return fmt.Errorf("llm: run %s with status %s", run.ID, run.Status)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("llm: await run: %w", ctx.Err())
		case <-time.After(c.pollInterval):
		}

		if err := c.get(ctx, "/threads/"+threadID+"/runs/"+run.ID, run); err != nil {
			return fmt.Errorf("llm: poll run: %w", err)
		}
	}
}

func (c *Client) latestAssistantMessage(ctx context.Context, threadID string) (string, error) {
	var list threadMessageList
	if err := c.get(ctx, "/threads/"+threadID+"/messages?order=desc&limit=10", &list); err != nil {
		return "", fmt.Errorf("llm: list messages: %w", err)
	}

	for _, msg := range list.Data {
		if msg.Role != "assistant" {
			continue
		}
		var sb strings.Builder
		for _, block := range msg.Content {
			if block.Type == "text" {
				sb.WriteString(block.Text.Value)
			}
		}
		return sb.String(), nil
	}
	return "", errors.New("llm: no assistant messages in thread")
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Complete issues a single stateless chat completion. Used by the
// queue worker, which carries its context in the prompt.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: user})

	var payload chatResponse
	if err := c.post(ctx, "/chat/completions", chatRequest{Model: c.model, Messages: messages}, &payload); err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(payload.Choices) == 0 {
		return "", errors.New("llm: no choices in response")
	}
	return payload.Choices[0].Message.Content, nil
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(raw), out)
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	// Threads and runs live under the Assistants beta surface.
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
