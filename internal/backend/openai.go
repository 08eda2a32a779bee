package backend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"OpenAIChat/internal/config"
	"OpenAIChat/internal/transcript"

	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// ErrNoChoices is returned when the service answers without any candidate completion
var ErrNoChoices = errors.New("empty response from OpenAI: no choices")

// OpenAIClient calls the OpenAI chat completions API with fixed generation parameters
type OpenAIClient struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
	tracer      trace.Tracer
	duration    metric.Float64Histogram
}

// NewOpenAIClient creates a client from cfg. The API key is used as given.
func NewOpenAIClient(cfg config.Config, tracer trace.Tracer, meter metric.Meter) (*OpenAIClient, error) {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	histogram, err := meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create duration histogram: %w", err)
	}

	return &OpenAIClient{
		client:      openai.NewClientWithConfig(clientCfg),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
		tracer:      tracer,
		duration:    histogram,
	}, nil
}

// Complete sends the whole conversation and returns the first choice, trimmed.
// Errors from the API client are wrapped, never retried.
func (c *OpenAIClient) Complete(ctx context.Context, messages []transcript.Message) (string, error) {
	ctx, span := c.tracer.Start(ctx, "openai_chat_completion",
		trace.WithAttributes(
			attribute.String("llm.model", c.model),
			attribute.Int("llm.messages", len(messages)),
		),
	)
	defer span.End()

	reqMessages := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		reqMessages[i] = openai.ChatCompletionMessage{
			Role:    string(msg.Role),
			Content: msg.Content,
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    reqMessages,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	})
	c.duration.Record(ctx, float64(time.Since(start).Milliseconds()),
		metric.WithAttributes(attribute.Bool("error", err != nil)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chat completion failed")
		return "", fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		span.SetStatus(codes.Error, ErrNoChoices.Error())
		return "", ErrNoChoices
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
