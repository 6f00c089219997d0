package explain

import (
	"fmt"

	"medbill/internal/config"
	"medbill/internal/domain"
	"medbill/internal/port"
)

// Provider names accepted by Build.
const (
	ProviderDeterministic = "deterministic"
	ProviderOpenAI        = "openai"
)

// Build constructs the configured explainer. An unknown provider is a
// configuration error and should be fatal at startup, never mid-pipeline.
func Build(cfg *config.Config) (port.Explainer, error) {
	switch cfg.Explainer.Provider {
	case ProviderDeterministic, "":
		return NewDeterministic(cfg), nil
	case ProviderOpenAI:
		return NewLLM(cfg, NewDeterministic(cfg)), nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownExplainer, cfg.Explainer.Provider)
	}
}
