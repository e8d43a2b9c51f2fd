package models

import (
	"maps"
	"slices"
)

// Level orders override sources. Higher levels are applied later and win
// toggle disputes against lower levels.
type Level int

const (
	LevelCountry Level = iota + 1
	LevelPartner
	LevelFlight
)

func (l Level) String() string {
	switch l {
	case LevelCountry:
		return "country"
	case LevelPartner:
		return "partner"
	case LevelFlight:
		return "flight"
	}
	return "unknown"
}

// FieldAddition adds a property and, optionally, the hint that displays it.
type FieldAddition struct {
	Property PropertyDescriptor `json:"property" yaml:"property"`
	Hint     *DisplayHint       `json:"hint,omitempty" yaml:"hint,omitempty"`
	Parent   string             `json:"parent,omitempty" yaml:"parent,omitempty"`
}

// Overlay is one override source applied on top of a base template.
type Overlay struct {
	Source      string                  `json:"source,omitempty" yaml:"source,omitempty"`
	Level       Level                   `json:"-" yaml:"-"`
	Add         []FieldAddition         `json:"add,omitempty" yaml:"add,omitempty"`
	Remove      []string                `json:"remove,omitempty" yaml:"remove,omitempty"`
	Validations map[string][]Validation `json:"validations,omitempty" yaml:"validations,omitempty"`
	Toggles     map[string]string       `json:"toggles,omitempty" yaml:"toggles,omitempty"`
	Exclusive   []string                `json:"exclusive,omitempty" yaml:"exclusive,omitempty"`
}

// ClaimsExclusively reports whether the overlay claims sole ownership of toggle.
func (o Overlay) ClaimsExclusively(toggle string) bool {
	return slices.Contains(o.Exclusive, toggle)
}

// Clone deep-copies the overlay.
func (o Overlay) Clone() Overlay {
	out := o
	out.Remove = slices.Clone(o.Remove)
	out.Exclusive = slices.Clone(o.Exclusive)
	out.Toggles = maps.Clone(o.Toggles)
	if o.Add != nil {
		out.Add = make([]FieldAddition, len(o.Add))
		for i, a := range o.Add {
			out.Add[i] = FieldAddition{Property: a.Property.Clone(), Parent: a.Parent}
			if a.Hint != nil {
				h := a.Hint.Clone()
				out.Add[i].Hint = &h
			}
		}
	}
	if o.Validations != nil {
		out.Validations = make(map[string][]Validation, len(o.Validations))
		for k, v := range o.Validations {
			out.Validations[k] = slices.Clone(v)
		}
	}
	return out
}

// PartnerExperienceSetting is the partner/country-scoped override bundle.
// Country is empty for partner-wide settings.
type PartnerExperienceSetting struct {
	Partner            string                    `json:"partner" yaml:"partner"`
	Country            string                    `json:"country,omitempty" yaml:"country,omitempty"`
	Template           string                    `json:"template,omitempty" yaml:"template,omitempty"`
	RedirectionPattern string                    `json:"redirection_pattern,omitempty" yaml:"redirection_pattern,omitempty"`
	Features           map[string]FeatureSetting `json:"features,omitempty" yaml:"features,omitempty"`
	Source             string                    `json:"source,omitempty" yaml:"-"`
}

// FeatureSetting is one named partner feature. An enabled feature sets the
// toggle of the same name to "true" and applies its overlay; a disabled one
// only sets the toggle to "false".
type FeatureSetting struct {
	Enabled bool `json:"enabled" yaml:"enabled"`
	Overlay `yaml:",inline"`
}

// IsDefault reports whether the setting carries no overrides at all.
func (s *PartnerExperienceSetting) IsDefault() bool {
	return s == nil || (s.Template == "" && s.RedirectionPattern == "" && len(s.Features) == 0)
}

// FeatureNames returns the enabled feature names in sorted order.
func (s *PartnerExperienceSetting) FeatureNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Features))
	for name, f := range s.Features {
		if f.Enabled {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// AllFeatureNames returns every feature name, enabled or not, in sorted order.
func (s *PartnerExperienceSetting) AllFeatureNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Features))
	for name := range s.Features {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Clone deep-copies the setting.
func (s *PartnerExperienceSetting) Clone() *PartnerExperienceSetting {
	if s == nil {
		return nil
	}
	out := *s
	if s.Features != nil {
		out.Features = make(map[string]FeatureSetting, len(s.Features))
		for name, f := range s.Features {
			out.Features[name] = FeatureSetting{Enabled: f.Enabled, Overlay: f.Overlay.Clone()}
		}
	}
	return &out
}
