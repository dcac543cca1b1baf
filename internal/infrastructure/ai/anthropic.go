package ai

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"github.com/liushuangls/go-anthropic/v2"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
)

// DefaultAnthropicModel is the default model for Anthropic.
const DefaultAnthropicModel = "claude-3-5-haiku-latest"

var anthropicKeyPattern = regexp.MustCompile(`^sk-ant-[a-zA-Z0-9_-]{20,}$`)

type anthropicGenerator struct {
	client     *anthropic.Client
	config     ServiceConfig
	resilience *Resilience
}

// NewAnthropicGenerator creates a generator for the Anthropic messages API.
// Without an API key it returns the disabled generator.
func NewAnthropicGenerator(cfg ServiceConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return Disabled(), nil
	}
	if !anthropicKeyPattern.MatchString(cfg.APIKey) {
		return nil, rperrors.AI("NewAnthropicGenerator", "invalid Anthropic API key format (expected sk-ant-...)")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultAnthropicModel
	}

	clientOptions := []anthropic.ClientOption{
		anthropic.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		clientOptions = append(clientOptions, anthropic.WithBaseURL(cfg.BaseURL))
	}

	return &anthropicGenerator{
		client:     anthropic.NewClient(cfg.APIKey, clientOptions...),
		config:     cfg,
		resilience: NewResilience(resilienceFor(cfg)),
	}, nil
}

func (g *anthropicGenerator) Name() string { return CloudAnthropic + "/" + g.config.Model }

func (g *anthropicGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := float32(g.config.Temperature)
	result, err := g.resilience.Execute(ctx, func(ctx context.Context) (string, error) {
		resp, err := g.client.CreateMessages(ctx, anthropic.MessagesRequest{
			Model:       anthropic.Model(g.config.Model),
			MaxTokens:   g.config.MaxTokens,
			System:      SystemPrompt,
			Messages:    []anthropic.Message{anthropic.NewUserTextMessage(prompt)},
			Temperature: &temperature,
		})
		if err != nil {
			return "", err
		}
		if len(resp.Content) == 0 {
			return "", rperrors.AI("Generate", "no content in response")
		}
		text := strings.TrimSpace(resp.GetFirstContentText())
		if text == "" {
			return "", rperrors.AI("Generate", "empty response")
		}
		return text, nil
	})
	if err != nil {
		return "", rperrors.AIWrapSafe(err, "Generate", g.Name()+" request failed")
	}
	return result, nil
}

// Close releases the rate limiter.
func (g *anthropicGenerator) Close() error { return g.resilience.Close() }
