// Package repository holds the immutable catalog of base description
// templates together with the country overlays and flight conditionals that
// the override resolver layers on top of them.
//
// A Repository is built once at process start with Load and shared by
// reference. It is never mutated afterwards, so reads need no locking; every
// Lookup hands out a deep copy.
package repository

import (
	"sort"

	"checkout/internal/pidl/models"
	dErrors "checkout/pkg/domain-errors"
)

// FlightOverlay is an overlay that only applies when its flight is enabled.
type FlightOverlay struct {
	Name    string
	Overlay models.Overlay
}

// scope groups overlays by the component they target.
type scope struct {
	Type       models.DescriptionType
	ResourceID string
}

type countryOverlay struct {
	Country   string
	Operation models.Operation
	Overlay   models.Overlay
}

type flightOverlay struct {
	Operation models.Operation
	FlightOverlay
}

// Repository is the read-only template catalog.
type Repository struct {
	templates       map[models.Key]*models.ResourceDescription
	countryOverlays map[scope][]countryOverlay
	flightOverlays  map[scope][]flightOverlay
}

// Lookup returns a copy of the template for key. Resolution tries the exact
// key, then the wildcard country, then the wildcard resource for the exact and
// wildcard country.
func (r *Repository) Lookup(key models.Key) (*models.ResourceDescription, error) {
	for _, candidate := range lookupOrder(key) {
		if tmpl, ok := r.templates[candidate]; ok {
			out := tmpl.Clone()
			out.Key = key
			return out, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "template not found for "+key.String())
}

func lookupOrder(key models.Key) []models.Key {
	wildResource := key
	wildResource.ResourceID = models.Wildcard
	return []models.Key{
		key,
		key.WithCountry(models.Wildcard),
		wildResource,
		wildResource.WithCountry(models.Wildcard),
	}
}

// CountryOverlays returns copies of the country overlays matching key.
// Overlays declared for every resource come first so resource-specific
// overlays are applied after them.
func (r *Repository) CountryOverlays(key models.Key) []models.Overlay {
	var out []models.Overlay
	for _, resource := range []string{models.Wildcard, key.ResourceID} {
		for _, co := range r.countryOverlays[scope{Type: key.Type, ResourceID: resource}] {
			if co.Country != key.Country {
				continue
			}
			if co.Operation != "" && co.Operation != key.Operation {
				continue
			}
			o := co.Overlay.Clone()
			o.Level = models.LevelCountry
			out = append(out, o)
		}
		if key.ResourceID == models.Wildcard {
			break
		}
	}
	return out
}

// FlightOverlays returns copies of the flight conditionals declared for key,
// ordered by flight name.
func (r *Repository) FlightOverlays(key models.Key) []FlightOverlay {
	var out []FlightOverlay
	for _, resource := range []string{models.Wildcard, key.ResourceID} {
		for _, fo := range r.flightOverlays[scope{Type: key.Type, ResourceID: resource}] {
			if fo.Operation != "" && fo.Operation != key.Operation {
				continue
			}
			o := fo.Overlay.Clone()
			o.Level = models.LevelFlight
			out = append(out, FlightOverlay{Name: fo.Name, Overlay: o})
		}
		if key.ResourceID == models.Wildcard {
			break
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Keys lists every template key in a stable order.
func (r *Repository) Keys() []models.Key {
	keys := make([]models.Key, 0, len(r.templates))
	for k := range r.templates {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Len returns the number of templates.
func (r *Repository) Len() int {
	return len(r.templates)
}
