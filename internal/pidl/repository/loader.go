package repository

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"checkout/internal/pidl/models"
	dErrors "checkout/pkg/domain-errors"
)

//go:embed catalog/*.yaml
var builtinCatalog embed.FS

// maxParallelFiles bounds concurrent catalog parsing.
const maxParallelFiles = 8

type catalogFile struct {
	Templates       []templateEntry       `yaml:"templates"`
	CountryOverlays []countryOverlayEntry `yaml:"country_overlays"`
	Flights         []flightEntry         `yaml:"flights"`
}

type templateEntry struct {
	Key                        models.Key `yaml:"key"`
	models.ResourceDescription `yaml:",inline"`
}

type countryOverlayEntry struct {
	Type           models.DescriptionType `yaml:"type"`
	ResourceID     string                 `yaml:"resource_id"`
	Country        string                 `yaml:"country"`
	Operation      models.Operation       `yaml:"operation"`
	models.Overlay `yaml:",inline"`
}

type flightEntry struct {
	Name           string                 `yaml:"name"`
	Type           models.DescriptionType `yaml:"type"`
	ResourceID     string                 `yaml:"resource_id"`
	Operation      models.Operation       `yaml:"operation"`
	models.Overlay `yaml:",inline"`
}

// Default loads the catalog compiled into the binary.
func Default() (*Repository, error) {
	sub, err := fs.Sub(builtinCatalog, "catalog")
	if err != nil {
		return nil, fmt.Errorf("open builtin catalog: %w", err)
	}
	return Load(context.Background(), sub)
}

// Load parses every *.yaml file under fsys and builds a Repository. Any
// structural defect fails the whole load with CodeTemplateMalformed; requests
// never observe a malformed template.
func Load(ctx context.Context, fsys fs.FS) (*Repository, error) {
	var paths []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(p, ".yaml") {
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTemplateMalformed, "failed to list catalog files")
	}
	sort.Strings(paths)

	files := make([]catalogFile, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelFiles)
	for i, p := range paths {
		g.Go(func() error {
			raw, err := fs.ReadFile(fsys, p)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeTemplateMalformed, "failed to read "+p)
			}
			dec := yaml.NewDecoder(bytes.NewReader(raw))
			dec.KnownFields(true)
			if err := dec.Decode(&files[i]); err != nil {
				return dErrors.Wrap(err, dErrors.CodeTemplateMalformed, "failed to parse "+p)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	repo := &Repository{
		templates:       make(map[models.Key]*models.ResourceDescription),
		countryOverlays: make(map[scope][]countryOverlay),
		flightOverlays:  make(map[scope][]flightOverlay),
	}
	for i, f := range files {
		if err := repo.add(paths[i], f); err != nil {
			return nil, err
		}
	}
	return repo, nil
}

func (r *Repository) add(file string, f catalogFile) error {
	for _, t := range f.Templates {
		key := normalizeKey(t.Key)
		if !key.Type.IsValid() || key.ResourceID == "" || key.Operation == "" || key.Country == "" {
			return malformed(file, "incomplete template key "+key.String())
		}
		if _, dup := r.templates[key]; dup {
			return malformed(file, "duplicate template "+key.String())
		}
		desc := t.ResourceDescription.Clone()
		desc.Key = key
		if desc.Data == nil {
			desc.Data = map[string]models.PropertyDescriptor{}
		}
		for name, prop := range desc.Data {
			if prop.Name == "" {
				prop.Name = name
				desc.Data[name] = prop
			}
		}
		if err := desc.Validate(); err != nil {
			return dErrors.Wrap(err, dErrors.CodeTemplateMalformed, fmt.Sprintf("%s: template %s", file, key))
		}
		r.templates[key] = desc
	}

	for _, o := range f.CountryOverlays {
		if !o.Type.IsValid() || o.ResourceID == "" || o.Country == "" {
			return malformed(file, "country overlay needs type, resource_id and country")
		}
		if err := validateOverlay(o.Overlay); err != nil {
			return malformed(file, err.Error())
		}
		overlay := o.Overlay.Clone()
		if overlay.Source == "" {
			overlay.Source = "country:" + strings.ToLower(o.Country)
		}
		s := scope{Type: o.Type, ResourceID: o.ResourceID}
		r.countryOverlays[s] = append(r.countryOverlays[s], countryOverlay{
			Country:   strings.ToLower(o.Country),
			Operation: o.Operation,
			Overlay:   overlay,
		})
	}

	for _, fl := range f.Flights {
		if fl.Name == "" || !fl.Type.IsValid() || fl.ResourceID == "" {
			return malformed(file, "flight needs name, type and resource_id")
		}
		if err := validateOverlay(fl.Overlay); err != nil {
			return malformed(file, err.Error())
		}
		overlay := fl.Overlay.Clone()
		if overlay.Source == "" {
			overlay.Source = "flight:" + fl.Name
		}
		s := scope{Type: fl.Type, ResourceID: fl.ResourceID}
		r.flightOverlays[s] = append(r.flightOverlays[s], flightOverlay{
			Operation:     fl.Operation,
			FlightOverlay: FlightOverlay{Name: fl.Name, Overlay: overlay},
		})
	}
	return nil
}

func normalizeKey(k models.Key) models.Key {
	k.Country = strings.ToLower(strings.TrimSpace(k.Country))
	k.ResourceID = strings.TrimSpace(k.ResourceID)
	return k
}

// validateOverlay rejects additions that could never produce a valid tree.
func validateOverlay(o models.Overlay) error {
	for _, a := range o.Add {
		if a.Property.Name == "" {
			return fmt.Errorf("overlay %q adds a property without a name", o.Source)
		}
		if a.Hint != nil {
			if a.Hint.ID == "" || !a.Hint.Kind.IsValid() {
				return fmt.Errorf("overlay %q adds an invalid hint for %q", o.Source, a.Property.Name)
			}
		}
	}
	return nil
}

func malformed(file, msg string) error {
	return dErrors.New(dErrors.CodeTemplateMalformed, path.Base(file)+": "+msg)
}
