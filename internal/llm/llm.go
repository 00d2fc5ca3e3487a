package llm

import (
	"context"
	"errors"

	"legalrag/internal/config"
)

// Kind discriminates provider variants so callers can branch on declared
// capability instead of poking at concrete types.
type Kind string

const (
	// Offline is the canned-response provider. Operations that would fake
	// a real model answer must check for it and label results simulated.
	Offline Kind = "offline"
	// Hosted talks to an API that requires a credential.
	Hosted Kind = "hosted"
	// LocalServer talks to a model server on a reachable base URL; it can
	// always be constructed, transport failures surface per call.
	LocalServer Kind = "local-server"
)

// Provider generates text from a prompt. Implementations honor context
// cancellation and deadlines on every call.
type Provider interface {
	Kind() Kind
	Generate(ctx context.Context, prompt string) (string, error)
}

// New selects a provider from configuration. Selection is total: an
// unrecognized provider name yields the offline provider rather than an
// error, so the engine always answers, if only in degraded form. A hosted
// provider with no credential is the one construction-time failure.
func New(cfg config.LLMConfig) (Provider, error) {
	switch cfg.Provider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("llm provider openai requires OPENAI_API_KEY")
		}
		return newHosted(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAITemperature), nil
	case "ollama":
		return newLocalServer(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	default:
		return NewOffline(), nil
	}
}
