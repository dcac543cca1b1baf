package ai

import (
	"context"
	"net/http"
	"regexp"
	"strings"

	"google.golang.org/genai"

	rperrors "github.com/relicta-tech/commitgen/internal/errors"
)

// DefaultGeminiModel is the default model for Gemini.
const DefaultGeminiModel = "gemini-2.0-flash"

// Gemini keys start with "AIza".
var geminiKeyPattern = regexp.MustCompile(`^AIza[a-zA-Z0-9_-]{35,}$`)

type geminiGenerator struct {
	client     *genai.Client
	config     ServiceConfig
	resilience *Resilience
}

// NewGeminiGenerator creates a generator for Google Gemini. Without an API
// key it returns the disabled generator.
func NewGeminiGenerator(cfg ServiceConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return Disabled(), nil
	}
	if !geminiKeyPattern.MatchString(cfg.APIKey) {
		return nil, rperrors.AI("NewGeminiGenerator", "invalid Gemini API key format (expected AIza...)")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}

	clientConfig := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.Timeout},
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return nil, rperrors.AIWrapSafe(err, "NewGeminiGenerator", "failed to create Gemini client")
	}

	return &geminiGenerator{
		client:     client,
		config:     cfg,
		resilience: NewResilience(resilienceFor(cfg)),
	}, nil
}

func (g *geminiGenerator) Name() string { return CloudGemini + "/" + g.config.Model }

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := float32(g.config.Temperature)
	result, err := g.resilience.Execute(ctx, func(ctx context.Context) (string, error) {
		resp, err := g.client.Models.GenerateContent(
			ctx,
			g.config.Model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: combinedPrompt(prompt)}}}},
			&genai.GenerateContentConfig{
				Temperature:     &temperature,
				MaxOutputTokens: int32(g.config.MaxTokens), // #nosec G115 -- bounded config value
			},
		)
		if err != nil {
			return "", err
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			return "", rperrors.AI("Generate", "no candidates in response")
		}

		var text strings.Builder
		for _, part := range resp.Candidates[0].Content.Parts {
			text.WriteString(part.Text)
		}
		out := strings.TrimSpace(text.String())
		if out == "" {
			return "", rperrors.AI("Generate", "empty response")
		}
		return out, nil
	})
	if err != nil {
		return "", rperrors.AIWrapSafe(err, "Generate", g.Name()+" request failed")
	}
	return result, nil
}

// Close releases the rate limiter.
func (g *geminiGenerator) Close() error { return g.resilience.Close() }
