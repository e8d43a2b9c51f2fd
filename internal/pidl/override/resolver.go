// Package override layers country, partner-setting and flight overlays on top
// of a base template.
//
// Overlays are grouped by level (country < partner < flight). Property and
// hint additions from every level are applied first, in level order; the union
// of every removal is applied last, so a removal always beats an addition no
// matter which level declared either. Toggles resolve per level: a higher
// level overwrites a lower one, and inside a level two exclusive claims on the
// same toggle with different values are an OverrideConflict.
package override

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"checkout/internal/engine/ports"
	"checkout/internal/pidl/models"
	"checkout/internal/pidl/repository"
	dErrors "checkout/pkg/domain-errors"
)

// OverlaySource supplies catalog-declared overlays for a key.
type OverlaySource interface {
	CountryOverlays(key models.Key) []models.Overlay
	FlightOverlays(key models.Key) []repository.FlightOverlay
}

// Resolver merges overlays into a partner-specific description.
type Resolver struct {
	overlays OverlaySource
	flights  ports.FlightEvaluator
	logger   *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLogger sets the logger used for overlay diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// New creates a Resolver. flights may be nil, in which case a flight is on
// only when the request context exposes it.
func New(overlays OverlaySource, flights ports.FlightEvaluator, opts ...Option) *Resolver {
	r := &Resolver{
		overlays: overlays,
		flights:  flights,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns a deep copy of base with every applicable overlay merged in.
// base is never mutated.
func (r *Resolver) Resolve(ctx context.Context, base *models.ResourceDescription, rc models.Context, setting *models.PartnerExperienceSetting) (*models.ResourceDescription, error) {
	if base == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "override resolver received no base template")
	}
	key := base.Key

	var overlays []models.Overlay
	if r.overlays != nil {
		overlays = append(overlays, r.overlays.CountryOverlays(key)...)
	}
	overlays = append(overlays, SettingOverlays(setting)...)
	if r.overlays != nil {
		for _, fo := range r.overlays.FlightOverlays(key) {
			if r.flightEnabled(ctx, fo.Name, rc) {
				overlays = append(overlays, fo.Overlay)
			}
		}
	}

	out, err := Apply(base, overlays)
	if err != nil {
		r.logger.ErrorContext(ctx, "override resolution failed",
			"key", key.String(),
			"partner", rc.Partner,
			"error", err,
		)
		return nil, err
	}
	if len(overlays) > 0 {
		r.logger.DebugContext(ctx, "overlays applied",
			"key", key.String(),
			"sources", sources(overlays),
		)
	}
	return out, nil
}

func (r *Resolver) flightEnabled(ctx context.Context, flight string, rc models.Context) bool {
	if r.flights == nil {
		return rc.HasFlight(flight)
	}
	return r.flights.IsEnabled(ctx, flight, rc)
}

// SettingOverlays converts a partner-experience setting into partner-level
// overlays: one carrying the template and redirection pattern (claimed
// exclusively), then one per feature in name order.
func SettingOverlays(setting *models.PartnerExperienceSetting) []models.Overlay {
	if setting.IsDefault() {
		return nil
	}
	source := "setting:" + setting.Partner
	if setting.Source != "" {
		source = setting.Source
	}

	var out []models.Overlay
	toggles := map[string]string{}
	if setting.Template != "" {
		toggles[models.ToggleTemplate] = setting.Template
	}
	if setting.RedirectionPattern != "" {
		toggles[models.ToggleRedirectionPattern] = setting.RedirectionPattern
	}
	if len(toggles) > 0 {
		out = append(out, models.Overlay{
			Source:    source,
			Level:     models.LevelPartner,
			Toggles:   toggles,
			Exclusive: slices.Sorted(maps.Keys(toggles)),
		})
	}

	for _, name := range setting.AllFeatureNames() {
		feature := setting.Features[name]
		o := models.Overlay{Toggles: map[string]string{}}
		if feature.Enabled {
			o = feature.Overlay.Clone()
			if o.Toggles == nil {
				o.Toggles = map[string]string{}
			}
			if _, set := o.Toggles[name]; !set {
				o.Toggles[name] = "true"
			}
		} else {
			o.Toggles[name] = "false"
		}
		o.Level = models.LevelPartner
		if o.Source == "" {
			o.Source = source + "/feature:" + name
		}
		out = append(out, o)
	}
	return out
}

// Apply merges overlays onto a copy of base. Overlays must already be in
// application order; their Level drives toggle precedence.
func Apply(base *models.ResourceDescription, overlays []models.Overlay) (*models.ResourceDescription, error) {
	out := base.Clone()

	for _, o := range overlays {
		for _, add := range o.Add {
			addField(out, add)
		}
	}
	for _, o := range overlays {
		for _, name := range slices.Sorted(maps.Keys(o.Validations)) {
			prop, ok := out.Data[name]
			if !ok {
				continue
			}
			prop.Validations = slices.Clone(o.Validations[name])
			out.Data[name] = prop
		}
	}

	toggles, err := resolveToggles(overlays)
	if err != nil {
		return nil, err
	}
	maps.Copy(out.Toggles, toggles)

	removals := map[string]struct{}{}
	for _, o := range overlays {
		for _, name := range o.Remove {
			removals[name] = struct{}{}
		}
	}
	for _, name := range slices.Sorted(maps.Keys(removals)) {
		out.RemoveEntry(name)
	}

	if err := out.Validate(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeOverrideConflict,
			fmt.Sprintf("overlays produced an inconsistent tree for %s", base.Key))
	}
	return out, nil
}

func addField(d *models.ResourceDescription, add models.FieldAddition) {
	prop := add.Property.Clone()
	d.Data[prop.Name] = prop
	if add.Hint == nil {
		return
	}
	hint := add.Hint.Clone()
	if existing := models.FindHint(d.Display, hint.ID); existing != nil {
		*existing = hint
		return
	}
	d.Display = models.InsertHint(d.Display, add.Parent, hint)
}

type claim struct {
	value  string
	source string
}

// resolveToggles folds overlay toggles level by level. Inside a level an
// exclusive claim beats non-exclusive ones and non-exclusive claims resolve to
// the last applied value.
func resolveToggles(overlays []models.Overlay) (map[string]string, error) {
	byLevel := map[models.Level][]models.Overlay{}
	for _, o := range overlays {
		byLevel[o.Level] = append(byLevel[o.Level], o)
	}

	resolved := map[string]string{}
	for _, level := range slices.Sorted(maps.Keys(byLevel)) {
		values := map[string]string{}
		exclusive := map[string]claim{}
		for _, o := range byLevel[level] {
			for _, name := range slices.Sorted(maps.Keys(o.Toggles)) {
				value := o.Toggles[name]
				if !o.ClaimsExclusively(name) {
					if _, owned := exclusive[name]; !owned {
						values[name] = value
					}
					continue
				}
				if prior, owned := exclusive[name]; owned && prior.value != value {
					return nil, dErrors.New(dErrors.CodeOverrideConflict, fmt.Sprintf(
						"%s overlays %q and %q both claim toggle %q (%q vs %q)",
						level, prior.source, o.Source, name, prior.value, value))
				}
				exclusive[name] = claim{value: value, source: o.Source}
				values[name] = value
			}
		}
		maps.Copy(resolved, values)
	}
	return resolved, nil
}

func sources(overlays []models.Overlay) []string {
	out := make([]string, 0, len(overlays))
	for _, o := range overlays {
		out = append(out, o.Source)
	}
	return out
}
