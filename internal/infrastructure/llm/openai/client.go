package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/core/domain"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/infrastructure/resilience"
)

// Client talks to an OpenAI-compatible chat completion endpoint
// (DeepSeek in the default deployment). All calls go through the
// shared resilience executor.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

func New(cfg Config, executor *resilience.Executor) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: &http.Client{Timeout: timeout},
		executor:   executor,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    float64         `json:"temperature"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// Complete sends one conversation and returns the assistant reply with
// token usage and the estimated cost when the model's pricing is known.
func (c *Client) Complete(ctx context.Context, messages []domain.Message, temperature float64) (domain.Completion, error) {
	request := chatRequest{
		Model:          c.model,
		Messages:       toChatMessages(messages),
		Temperature:    temperature,
		Stream:         false,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var response chatResponse
	err := c.executor.Execute(ctx, "chat_completion", func(ctx context.Context) error {
		return c.postJSON(ctx, "/chat/completions", request, &response, "chat_completion")
	}, classifyError)
	if err != nil {
		return domain.Completion{}, wrapTemporaryIfNeeded("chat_completion", err)
	}

	if len(response.Choices) == 0 {
		return domain.Completion{}, fmt.Errorf("chat completion returned no choices")
	}

	completion := domain.Completion{
		Content: strings.TrimSpace(response.Choices[0].Message.Content),
	}
	if response.Usage != nil {
		prompt := response.Usage.PromptTokens
		compl := response.Usage.CompletionTokens
		total := response.Usage.TotalTokens
		completion.Usage = &domain.Usage{
			PromptTokens:     &prompt,
			CompletionTokens: &compl,
			TotalTokens:      &total,
		}
		completion.EstimatedCost, completion.Currency = estimateCost(c.model, prompt, compl)
	}
	return completion, nil
}

func toChatMessages(messages []domain.Message) []chatMessage {
	out := make([]chatMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, chatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}
