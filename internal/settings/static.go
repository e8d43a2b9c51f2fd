// Package settings supplies partner-experience settings to the engine.
//
// Providers return the most specific setting for a partner and country: a
// country-scoped setting beats the partner-wide one (Country == ""). A
// partner with no setting resolves to (nil, nil), which the engine treats as
// defaults.
package settings

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"strings"

	"gopkg.in/yaml.v3"

	"checkout/internal/pidl/models"
	dErrors "checkout/pkg/domain-errors"
)

type settingsFile struct {
	Settings []models.PartnerExperienceSetting `yaml:"settings"`
}

type scope struct {
	partner string
	country string
}

// StaticProvider serves settings loaded once from YAML.
type StaticProvider struct {
	settings map[scope]*models.PartnerExperienceSetting
}

// NewStatic creates a provider from in-memory settings. A later setting for
// the same partner and country replaces an earlier one.
func NewStatic(settings ...models.PartnerExperienceSetting) *StaticProvider {
	p := &StaticProvider{settings: make(map[scope]*models.PartnerExperienceSetting, len(settings))}
	for i := range settings {
		s := settings[i].Clone()
		s.Partner = normalize(s.Partner)
		s.Country = normalize(s.Country)
		if s.Source == "" {
			s.Source = "static:" + s.Partner
		}
		p.settings[scope{partner: s.Partner, country: s.Country}] = s
	}
	return p
}

// LoadStatic reads every .yaml file under fsys. Unknown fields are rejected so
// a typo in a feature name fails at startup rather than silently applying
// defaults.
func LoadStatic(fsys fs.FS) (*StaticProvider, error) {
	var all []models.PartnerExperienceSetting
	err := fs.WalkDir(fsys, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".yaml") {
			return nil
		}
		raw, err := fs.ReadFile(fsys, path)
		if err != nil {
			return err
		}
		var f settingsFile
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTemplateMalformed, fmt.Sprintf("settings file %s", path))
		}
		for _, s := range f.Settings {
			if strings.TrimSpace(s.Partner) == "" {
				return dErrors.New(dErrors.CodeTemplateMalformed, fmt.Sprintf("settings file %s: setting without partner", path))
			}
			if s.RedirectionPattern != "" && !models.Strategy(s.RedirectionPattern).IsValid() {
				return dErrors.New(dErrors.CodeTemplateMalformed,
					fmt.Sprintf("settings file %s: partner %s has unknown redirection pattern %q", path, s.Partner, s.RedirectionPattern))
			}
			s.Source = "static:" + path
			all = append(all, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return NewStatic(all...), nil
}

// GetSetting returns a copy of the country-scoped setting, else the
// partner-wide one.
func (p *StaticProvider) GetSetting(_ context.Context, partner, country string) (*models.PartnerExperienceSetting, error) {
	partner, country = normalize(partner), normalize(country)
	if s, ok := p.settings[scope{partner: partner, country: country}]; ok {
		return s.Clone(), nil
	}
	if s, ok := p.settings[scope{partner: partner}]; ok {
		return s.Clone(), nil
	}
	return nil, nil
}

// Len returns the number of loaded settings.
func (p *StaticProvider) Len() int {
	return len(p.settings)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
