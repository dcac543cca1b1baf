package ai

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
)

// Default OpenAI-compatible configuration values.
const (
	// DefaultOpenAIModel is the default hosted model.
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOllamaBaseURL is the default Ollama API endpoint.
	DefaultOllamaBaseURL = "http://localhost:11434/v1"
	// DefaultOllamaModel is the default local model.
	DefaultOllamaModel = "llama3"
)

// OpenAI keys start with "sk-", optionally project or service scoped.
var openaiKeyPattern = regexp.MustCompile(`^sk-(?:proj-|svc-)?[a-zA-Z0-9_-]{20,}$`)

// chatGenerator talks to any OpenAI-compatible chat completion endpoint.
type chatGenerator struct {
	client     *openai.Client
	name       string
	config     ServiceConfig
	resilience *Resilience
}

// NewOpenAIGenerator creates a generator for the OpenAI API. Without an API
// key it returns the disabled generator.
func NewOpenAIGenerator(cfg ServiceConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return Disabled(), nil
	}
	if !openaiKeyPattern.MatchString(cfg.APIKey) {
		return nil, rperrors.AI("NewOpenAIGenerator", "invalid OpenAI API key format")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIModel
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}

	return &chatGenerator{
		client:     openai.NewClientWithConfig(clientConfig),
		name:       CloudOpenAI + "/" + cfg.Model,
		config:     cfg,
		resilience: NewResilience(resilienceFor(cfg)),
	}, nil
}

// NewOllamaGenerator creates a generator for a local Ollama server. Ollama
// speaks the OpenAI chat API and ignores the key.
func NewOllamaGenerator(cfg ServiceConfig) (Generator, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOllamaBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}

	clientConfig := openai.DefaultConfig("ollama")
	clientConfig.BaseURL = cfg.BaseURL
	clientConfig.HTTPClient = &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   2 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:    10,
			IdleConnTimeout: 90 * time.Second,
		},
	}

	rc := resilienceFor(cfg)
	// a local server that is down stays down; trip fast
	rc.CircuitBreakerThreshold = 2

	return &chatGenerator{
		client:     openai.NewClientWithConfig(clientConfig),
		name:       "ollama/" + cfg.Model,
		config:     cfg,
		resilience: NewResilience(rc),
	}, nil
}

// Name returns backend/model.
func (g *chatGenerator) Name() string { return g.name }

// Generate sends prompt as a single user turn after the system prompt.
func (g *chatGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	result, err := g.resilience.Execute(ctx, func(ctx context.Context) (string, error) {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model: g.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt},
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
			MaxTokens:   g.config.MaxTokens,
			Temperature: float32(g.config.Temperature),
		})
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			return "", rperrors.AI("Generate", "no choices in response")
		}
		text := strings.TrimSpace(resp.Choices[0].Message.Content)
		if text == "" {
			return "", rperrors.AI("Generate", "empty response")
		}
		return text, nil
	})
	if err != nil {
		return "", rperrors.AIWrapSafe(err, "Generate", g.name+" request failed")
	}
	return result, nil
}

// Close releases the rate limiter.
func (g *chatGenerator) Close() error { return g.resilience.Close() }
