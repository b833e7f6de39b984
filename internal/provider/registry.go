package provider

import (
	"fmt"
	"sort"

	"github.com/kiranshivaraju/photon/internal/provider/flux"
	"github.com/kiranshivaraju/photon/internal/provider/gpt4o"
	"github.com/kiranshivaraju/photon/internal/provider/market"
	"github.com/kiranshivaraju/photon/pkg/models"
)

// NewAdapter constructs the adapter for a catalog entry.
func NewAdapter(cfg models.ModelConfig) (models.ProviderAdapter, error) {
	switch cfg.Adapter {
	case "flux":
		return flux.NewAdapter(cfg), nil
	case "gpt4o":
		return gpt4o.NewAdapter(cfg), nil
	case "market":
		return market.NewAdapter(cfg), nil
	default:
		return nil, fmt.Errorf("unknown adapter %q for model %q: must be one of flux, gpt4o, market", cfg.Adapter, cfg.ID)
	}
}

type entry struct {
	model   models.ModelConfig
	adapter models.ProviderAdapter
}

// Registry maps public model ids to their catalog entry and adapter.
// It is built once at startup and read-only afterwards.
type Registry struct {
	entries map[string]entry
}

// NewRegistry builds a Registry from a catalog. Models listed in disabled are
// kept (so in-flight jobs still resolve) but marked inactive.
func NewRegistry(catalog []models.ModelConfig, disabled []string) (*Registry, error) {
	off := make(map[string]bool, len(disabled))
	for _, id := range disabled {
		off[id] = true
	}

	r := &Registry{entries: make(map[string]entry, len(catalog))}
	for _, cfg := range catalog {
		if off[cfg.ID] {
			cfg.Active = false
		}
		adapter, err := NewAdapter(cfg)
		if err != nil {
			return nil, err
		}
		r.Register(cfg, adapter)
	}
	return r, nil
}

// Register adds or replaces a model.
func (r *Registry) Register(cfg models.ModelConfig, adapter models.ProviderAdapter) {
	if r.entries == nil {
		r.entries = make(map[string]entry)
	}
	r.entries[cfg.ID] = entry{model: cfg, adapter: adapter}
}

// Lookup returns an active model for a new submission.
func (r *Registry) Lookup(modelID string) (models.ModelConfig, models.ProviderAdapter, error) {
	e, ok := r.entries[modelID]
	if !ok || !e.model.Active {
		return models.ModelConfig{}, nil, fmt.Errorf("%w: %q", ErrUnknownModel, modelID)
	}
	return e.model, e.adapter, nil
}

// ForJob returns the model a job was submitted with, active or not, so that
// callbacks and sweeps for in-flight jobs keep working after a model is disabled.
func (r *Registry) ForJob(job *models.Job) (models.ModelConfig, models.ProviderAdapter, error) {
	e, ok := r.entries[job.Model]
	if !ok {
		return models.ModelConfig{}, nil, fmt.Errorf("%w: %q", ErrUnknownModel, job.Model)
	}
	return e.model, e.adapter, nil
}

// Models returns the catalog sorted by id.
func (r *Registry) Models() []models.ModelConfig {
	out := make([]models.ModelConfig, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.model)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
