// Package postprocess applies context-driven mutations to a resolved
// description: tax suppression, identity/broadcast wiring, pre-existing value
// flags, visibility pruning and submit wiring.
//
// Rules are pure and operate on disjoint attributes, so the order they run in
// never changes the result. Any rule can be switched off for a partner by
// resolving the toggle of the same name to "false".
package postprocess

import (
	"context"
	"log/slog"

	"checkout/internal/pidl/models"
)

// Rule is one context-gated mutation of a description.
type Rule interface {
	Name() string
	// Applies reports whether the rule is relevant to this tree and context.
	Applies(tree *models.ResourceDescription, rc models.Context) bool
	// Apply mutates tree in place. Callers hand it a private copy.
	Apply(tree *models.ResourceDescription, rc models.Context)
}

// Processor runs a fixed rule set over a copy of the tree.
type Processor struct {
	rules      []Rule
	submitBase string
	logger     *slog.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Processor) {
		p.logger = logger
	}
}

// WithSubmitBase sets the base URL wired into submit buttons and blur hooks.
func WithSubmitBase(base string) Option {
	return func(p *Processor) {
		p.submitBase = base
	}
}

// WithRules replaces the default rule set.
func WithRules(rules ...Rule) Option {
	return func(p *Processor) {
		p.rules = rules
	}
}

// DefaultSubmitBase is used when no submit base is configured.
const DefaultSubmitBase = "/v1/submit"

// New creates a Processor with the default rule set.
func New(opts ...Option) *Processor {
	p := &Processor{
		submitBase: DefaultSubmitBase,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.rules == nil {
		p.rules = DefaultRules(p.submitBase)
	}
	return p
}

// DefaultRules returns the built-in rules.
func DefaultRules(submitBase string) []Rule {
	return []Rule{
		TaxSuppression{},
		IdentityBroadcast{},
		PreExistingValue{},
		VisibilityPruning{},
		SubmitWiring{Base: submitBase},
	}
}

// Rules returns the configured rules in execution order.
func (p *Processor) Rules() []Rule {
	return p.rules
}

// Process returns a copy of tree with every applicable rule applied. tree is
// not modified.
func (p *Processor) Process(ctx context.Context, tree *models.ResourceDescription, rc models.Context) *models.ResourceDescription {
	out := tree.Clone()
	if out == nil {
		return nil
	}
	var applied []string
	for _, rule := range p.rules {
		if out.ToggleDisabled(rule.Name()) || !rule.Applies(out, rc) {
			continue
		}
		rule.Apply(out, rc)
		applied = append(applied, rule.Name())
	}
	p.logger.DebugContext(ctx, "post-processing rules applied",
		"key", out.Key.String(),
		"rules", applied,
	)
	return out
}
