// Package llm puts the chat APIs of OpenAI, Anthropic and Gemini behind a
// single completion call.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/FranksOps/rival/internal/fault"
)

// Request is one single-turn completion.
type Request struct {
	System string
	Prompt string
	// JSON asks the model for a single JSON object.
	JSON bool
}

// Provider completes prompts with one model.
type Provider interface {
	Name() string
	Model() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Config selects and authenticates a provider.
type Config struct {
	// Provider is openai, anthropic or gemini.
	Provider string
	APIKey   string
	Model    string
	// BaseURL points the client at a compatible endpoint or a test server.
	BaseURL     string
	MaxTokens   int
	Temperature float32
}

// Default models per provider.
const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-5-haiku-latest"
	DefaultGeminiModel    = "gemini-2.0-flash"
	DefaultMaxTokens      = 2048
)

// jsonInstruction is appended to the system prompt of providers without a
// native JSON mode.
const jsonInstruction = "Respond with a single valid JSON object and nothing else."

// New builds the provider named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, fault.Newf(fault.KindConfiguration, "llm", "%s: API key is required", cfg.Provider)
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}

	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		if cfg.Model == "" {
			cfg.Model = DefaultOpenAIModel
		}
		return NewOpenAI(cfg), nil
	case "anthropic":
		if cfg.Model == "" {
			cfg.Model = DefaultAnthropicModel
		}
		return NewAnthropic(cfg), nil
	case "gemini":
		if cfg.Model == "" {
			cfg.Model = DefaultGeminiModel
		}
		p, err := NewGemini(ctx, cfg)
		if err != nil {
			return nil, fault.New(fault.KindConfiguration, "llm", err)
		}
		return p, nil
	default:
		return nil, fault.New(fault.KindConfiguration, "llm", fmt.Errorf("unknown provider %q", cfg.Provider))
	}
}
