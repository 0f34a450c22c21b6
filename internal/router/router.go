// Package router resolves a caller-supplied model id into a concrete
// upstream destination: the upstream model name, base URL and credential.
package router

import (
	"errors"
	"fmt"

	"claudebridge/internal/config"
)

// ErrModelUnresolvable marks a model id with no entry in the active
// routing table. Handlers surface it as a not_found_error.
var ErrModelUnresolvable = errors.New("model has no upstream mapping")

// Route is a fully resolved upstream destination.
type Route struct {
	Provider config.Provider
	Model    string
	BaseURL  string
	APIKey   string
}

// Router owns the per-provider routing tables from the startup snapshot.
type Router struct {
	cfg *config.Config
}

// New builds a Router over the configuration snapshot.
func New(cfg *config.Config) *Router {
	return &Router{cfg: cfg}
}

// Resolve maps a caller model id to the target provider's upstream model.
// For the anthropic passthrough provider the model is forwarded unchanged.
// A model id absent from the active table resolves to ErrModelUnresolvable;
// there is no default fallback model.
func (r *Router) Resolve(model string) (Route, error) {
	provider := r.cfg.TargetProvider
	route := Route{
		Provider: provider,
		BaseURL:  r.cfg.ProviderBaseURL(provider),
		APIKey:   r.cfg.ProviderKey(provider),
	}

	switch provider {
	case config.ProviderAnthropic:
		route.Model = model
		return route, nil
	case config.ProviderOpenAI:
		mapped, ok := r.cfg.OpenAIModelMap[model]
		if !ok {
			return Route{}, fmt.Errorf("%w: %q for provider %s", ErrModelUnresolvable, model, provider)
		}
		route.Model = mapped
		return route, nil
	case config.ProviderGemini:
		mapped, ok := r.cfg.GeminiModelMap[model]
		if !ok {
			return Route{}, fmt.Errorf("%w: %q for provider %s", ErrModelUnresolvable, model, provider)
		}
		route.Model = mapped
		return route, nil
	default:
		return Route{}, fmt.Errorf("unknown target provider %q", provider)
	}
}
