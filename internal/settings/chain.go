package settings

import (
	"context"
	"maps"
	"slices"

	"checkout/internal/engine/ports"
	"checkout/internal/pidl/models"
)

// Chain combines several providers. Candidates are ranked by specificity
// (partner-wide below country-scoped) and then by provider order; fields set
// by a higher-ranked candidate overwrite lower ones and features are merged
// by name.
type Chain struct {
	providers []ports.SettingsProvider
}

// NewChain creates a Chain. Later providers win ties.
func NewChain(providers ...ports.SettingsProvider) *Chain {
	return &Chain{providers: slices.DeleteFunc(slices.Clone(providers), func(p ports.SettingsProvider) bool {
		return p == nil
	})}
}

func (c *Chain) GetSetting(ctx context.Context, partner, country string) (*models.PartnerExperienceSetting, error) {
	var partnerWide, scoped []*models.PartnerExperienceSetting
	for _, p := range c.providers {
		s, err := p.GetSetting(ctx, partner, country)
		if err != nil {
			return nil, err
		}
		if s == nil {
			continue
		}
		if s.Country == "" {
			partnerWide = append(partnerWide, s)
		} else {
			scoped = append(scoped, s)
		}
	}
	ranked := append(partnerWide, scoped...)
	if len(ranked) == 0 {
		return nil, nil
	}
	return Merge(ranked...), nil
}

// Merge folds settings in ascending precedence into one.
func Merge(settings ...*models.PartnerExperienceSetting) *models.PartnerExperienceSetting {
	var out *models.PartnerExperienceSetting
	for _, s := range settings {
		if s == nil {
			continue
		}
		if out == nil {
			out = s.Clone()
			continue
		}
		if s.Country != "" {
			out.Country = s.Country
		}
		if s.Template != "" {
			out.Template = s.Template
		}
		if s.RedirectionPattern != "" {
			out.RedirectionPattern = s.RedirectionPattern
		}
		if len(s.Features) > 0 {
			if out.Features == nil {
				out.Features = map[string]models.FeatureSetting{}
			}
			maps.Copy(out.Features, s.Clone().Features)
		}
		out.Source = s.Source
	}
	return out
}
