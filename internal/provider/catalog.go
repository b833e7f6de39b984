package provider

import "github.com/kiranshivaraju/photon/pkg/models"

const providerKie = "kie"

// DefaultCatalog is the set of models the orchestrator can submit to.
// Token costs are charged once per successful job.
func DefaultCatalog() []models.ModelConfig {
	return []models.ModelConfig{
		{ID: "flux-kontext-pro", Provider: providerKie, Adapter: "flux", UpstreamModel: "flux-kontext-pro", TokenCost: 5, Active: true, MaxInputs: 1},
		{ID: "flux-kontext-max", Provider: providerKie, Adapter: "flux", UpstreamModel: "flux-kontext-max", TokenCost: 10, Active: true, MaxInputs: 1},
		{ID: "gpt-4o-image", Provider: providerKie, Adapter: "gpt4o", UpstreamModel: "gpt-4o-image", TokenCost: 6, Active: true, MaxInputs: 5},
		{ID: "nano-banana-edit", Provider: providerKie, Adapter: "market", UpstreamModel: "google/nano-banana-edit", TokenCost: 4, Active: true, MaxInputs: 5},
		{ID: "seedream-v4-edit", Provider: providerKie, Adapter: "market", UpstreamModel: "bytedance/seedream-v4-edit", TokenCost: 5, Active: true, MaxInputs: 5},
		{ID: "qwen-image-edit", Provider: providerKie, Adapter: "market", UpstreamModel: "qwen/image-edit", TokenCost: 3, Active: true, MaxInputs: 1},
	}
}
