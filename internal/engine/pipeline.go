package engine

import (
	"context"
	"log/slog"

	"checkout/internal/engine/ports"
	"checkout/internal/pidl/models"
	"checkout/internal/pidl/override"
	"checkout/internal/pidl/postprocess"
	dErrors "checkout/pkg/domain-errors"
)

// TemplateSource returns base templates by key.
type TemplateSource interface {
	Lookup(key models.Key) (*models.ResourceDescription, error)
}

// Pipeline turns a context into a post-processed description:
// lookup, then overlays, then post-processing.
type Pipeline struct {
	templates TemplateSource
	resolver  *override.Resolver
	processor *postprocess.Processor
	settings  ports.SettingsProvider
	logger    *slog.Logger
}

// NewPipeline creates a Pipeline. settings may be nil, in which case only
// settings carried on the context apply.
func NewPipeline(templates TemplateSource, resolver *override.Resolver, processor *postprocess.Processor, settings ports.SettingsProvider, logger *slog.Logger) (*Pipeline, error) {
	if templates == nil || resolver == nil || processor == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "pipeline requires templates, resolver and processor")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		templates: templates,
		resolver:  resolver,
		processor: processor,
		settings:  settings,
		logger:    logger,
	}, nil
}

// Describe resolves the description rc asks for.
func (p *Pipeline) Describe(ctx context.Context, rc models.Context) (*models.ResourceDescription, error) {
	base, err := p.templates.Lookup(rc.Key())
	if err != nil {
		return nil, err
	}
	setting, err := p.setting(ctx, rc)
	if err != nil {
		return nil, err
	}
	tree, err := p.resolver.Resolve(ctx, base, rc, setting)
	if err != nil {
		return nil, err
	}
	return p.processor.Process(ctx, tree, rc), nil
}

// setting returns the partner-experience setting for rc. A setting carried on
// the context wins; otherwise the partner alias is tried before the partner.
func (p *Pipeline) setting(ctx context.Context, rc models.Context) (*models.PartnerExperienceSetting, error) {
	if rc.Setting != nil {
		return rc.Setting, nil
	}
	if p.settings == nil {
		return nil, nil
	}
	for _, partner := range partnerCandidates(rc) {
		setting, err := p.settings.GetSetting(ctx, partner, rc.Country)
		if err != nil {
			p.logger.ErrorContext(ctx, "partner setting lookup failed",
				"partner", partner,
				"country", rc.Country,
				"error", err,
			)
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "partner setting lookup failed")
		}
		if setting != nil {
			return setting, nil
		}
	}
	return nil, nil
}

func partnerCandidates(rc models.Context) []string {
	if rc.PartnerAlias != "" && rc.PartnerAlias != rc.Partner {
		return []string{rc.PartnerAlias, rc.Partner}
	}
	return []string{rc.Partner}
}
