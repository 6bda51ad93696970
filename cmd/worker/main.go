// BCFG queue worker: AWS Lambda consumer for the inbound-message SQS
// queue.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/wwbp/BCFG-API/internal/config"
	"github.com/wwbp/BCFG-API/internal/delivery"
	"github.com/wwbp/BCFG-API/internal/llm"
	"github.com/wwbp/BCFG-API/internal/paramstore"
	"github.com/wwbp/BCFG-API/internal/worker"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	sendBaseURL := mustEnv("BCFG_SEND_BASE_URL")
	model := envOr("OPENAI_MODEL", "gpt-4o-mini")
	timeoutSec := config.GetEnvInt("OPENAI_TIMEOUT_SECONDS", 60)

	// ---- OpenAI key: SSM parameter first, env fallback ----
	apiKey := os.Getenv("OPENAI_API_KEY")
	if paramName := os.Getenv("OPENAI_API_KEY_PARAM"); paramName != "" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			slog.Error("failed to load AWS config", "err", err)
			os.Exit(1)
		}
		ps, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
		if err != nil {
			slog.Error("failed to create SSM client", "err", err)
			os.Exit(1)
		}
		apiKey, err = ps.GetParameter(ctx, paramName)
		if err != nil {
			slog.Error("failed to fetch OpenAI key from SSM", "err", err)
			os.Exit(1)
		}
	}
	if apiKey == "" {
		slog.Error("no OpenAI API key configured (OPENAI_API_KEY or OPENAI_API_KEY_PARAM)")
		os.Exit(1)
	}

	// ---- Clients ----
	llmOpts := []llm.Option{llm.WithModel(model)}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		llmOpts = append(llmOpts, llm.WithBaseURL(baseURL))
	}
	llmClient, err := llm.NewClient(apiKey, llmOpts...)
	if err != nil {
		slog.Error("failed to create LLM client", "err", err)
		os.Exit(1)
	}

	sender, err := delivery.NewWebhook(sendBaseURL, &http.Client{
		Timeout: time.Duration(timeoutSec) * time.Second,
	})
	if err != nil {
		slog.Error("failed to create delivery webhook", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := worker.NewHandler(llmClient, sender)
	if err != nil {
		slog.Error("failed to create worker handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
