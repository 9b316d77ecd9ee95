// Package catalog holds the static agent, tool, and model registries. The
// content mirrors the product configuration and changes only with releases,
// so everything here is plain data compiled into the binary.
package catalog

import "mindhub/internal/domain"

// Models returns the upstream model roster in ascending tier order.
// Rates are USD per million tokens.
func Models() []domain.ModelSpec {
	return []domain.ModelSpec{
		{
			ID:              "claude-haiku-4-5",
			Name:            "Claude Haiku 4.5",
			Tier:            domain.TierLightweight,
			InputRate:       1.0,
			OutputRate:      5.0,
			CachedRate:      0.10,
			MaxContext:      200_000,
			MaxOutput:       64_000,
			Vision:          true,
			WebSearch:       true,
			ExtendedThought: true,
		},
		{
			ID:              "claude-sonnet-4-5",
			Name:            "Claude Sonnet 4.5",
			Tier:            domain.TierBalanced,
			InputRate:       3.0,
			OutputRate:      15.0,
			CachedRate:      0.30,
			MaxContext:      200_000,
			MaxOutput:       64_000,
			Vision:          true,
			WebSearch:       true,
			ExtendedThought: true,
		},
		{
			ID:              "claude-opus-4-6",
			Name:            "Claude Opus 4.6",
			Tier:            domain.TierAdvanced,
			InputRate:       5.0,
			OutputRate:      25.0,
			CachedRate:      0.50,
			MaxContext:      200_000,
			MaxOutput:       128_000,
			Vision:          true,
			WebSearch:       true,
			ExtendedThought: true,
		},
	}
}
