// Package llm asks yes/no questions about a document through a chat model.
package llm

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/arrest-news-cli/internal/resilience"
	"github.com/sells-group/arrest-news-cli/pkg/anthropic"
)

// DefaultSystemPrompt frames every question.
const DefaultSystemPrompt = "Analyze the provided text for specific information."

// Asker answers one question about a document.
type Asker interface {
	Ask(ctx context.Context, text, question string) (string, error)
}

// AnthropicAsker asks questions through the Anthropic Messages API. The
// document is sent as a cached block so a battery of questions about the
// same article reuses the prompt prefix.
type AnthropicAsker struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	system    string
	policy    resilience.Policy
}

// NewAnthropicAsker creates an asker over an Anthropic client.
func NewAnthropicAsker(client anthropic.Client, model string, maxTokens int, system string, policy resilience.Policy) *AnthropicAsker {
	if system == "" {
		system = DefaultSystemPrompt
	}
	policy.OnRetry = resilience.LogRetry("anthropic", "ask")
	return &AnthropicAsker{client: client, model: model, maxTokens: int64(maxTokens), system: system, policy: policy}
}

// Ask implements Asker.
func (a *AnthropicAsker) Ask(ctx context.Context, text, question string) (string, error) {
	req := anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    a.system,
		Blocks: []anthropic.TextBlock{
			{Text: text, Cached: true},
			{Text: question},
		},
	}
	return resilience.Do(ctx, a.policy, func(ctx context.Context) (string, error) {
		resp, err := a.client.CreateMessage(ctx, req)
		if err != nil {
			var se *anthropic.StatusError
			if errors.As(err, &se) && resilience.IsTransientStatus(se.StatusCode) {
				return "", resilience.NewTransientError(err, se.StatusCode)
			}
			return "", err
		}
		return strings.TrimSpace(resp.Text), nil
	})
}

// ChatClient is the subset of the go-openai client used here.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAIAsker asks questions through an OpenAI-compatible chat endpoint.
type OpenAIAsker struct {
	client    ChatClient
	model     string
	maxTokens int
	system    string
	policy    resilience.Policy
}

// NewOpenAIClient builds a go-openai client. An empty baseURL keeps the
// library default.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return openai.NewClientWithConfig(cfg)
}

// NewOpenAIAsker creates an asker over a chat client.
func NewOpenAIAsker(client ChatClient, model string, maxTokens int, system string, policy resilience.Policy) *OpenAIAsker {
	if system == "" {
		system = DefaultSystemPrompt
	}
	policy.OnRetry = resilience.LogRetry("openai", "ask")
	return &OpenAIAsker{client: client, model: model, maxTokens: maxTokens, system: system, policy: policy}
}

// Ask implements Asker.
func (a *OpenAIAsker) Ask(ctx context.Context, text, question string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: a.system},
			{Role: openai.ChatMessageRoleUser, Content: text},
			{Role: openai.ChatMessageRoleUser, Content: question},
		},
	}
	return resilience.Do(ctx, a.policy, func(ctx context.Context) (string, error) {
		resp, err := a.client.CreateChatCompletion(ctx, req)
		if err != nil {
			return "", classifyOpenAIError(err)
		}
		if len(resp.Choices) == 0 {
			return "", eris.New("openai: empty choices")
		}
		return strings.TrimSpace(resp.Choices[0].Message.Content), nil
	})
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && resilience.IsTransientStatus(apiErr.HTTPStatusCode) {
		return resilience.NewTransientError(eris.Wrap(err, "openai: chat completion"), apiErr.HTTPStatusCode)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && resilience.IsTransientStatus(reqErr.HTTPStatusCode) {
		return resilience.NewTransientError(eris.Wrap(err, "openai: chat completion"), reqErr.HTTPStatusCode)
	}
	return eris.Wrap(err, "openai: chat completion")
}

// StubAsker answers from a fixed script, for offline runs and tests.
type StubAsker struct {
	// Answer returns the reply for a question. When nil every question is
	// answered "Yes."
	Answer func(text, question string) (string, error)

	mu    sync.Mutex
	calls int
}

// Ask implements Asker.
func (s *StubAsker) Ask(_ context.Context, text, question string) (string, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.Answer == nil {
		return "Yes.", nil
	}
	return s.Answer(text, question)
}

// Calls returns the number of questions asked so far.
func (s *StubAsker) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
