package models

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"

	dErrors "checkout/pkg/domain-errors"
)

// DescriptionType names the kind of checkout component a description renders.
type DescriptionType string

const (
	TypePaymentMethod DescriptionType = "paymentMethod"
	TypeAddress       DescriptionType = "address"
	TypeProfile       DescriptionType = "profile"
	TypeTaxID         DescriptionType = "taxId"
	TypeBillingGroup  DescriptionType = "billingGroup"
	TypeChallenge     DescriptionType = "challenge"
	TypeRedirect      DescriptionType = "redirect"
)

// IsValid checks if the description type is one of the supported enum values.
func (t DescriptionType) IsValid() bool {
	switch t {
	case TypePaymentMethod, TypeAddress, TypeProfile, TypeTaxID, TypeBillingGroup, TypeChallenge, TypeRedirect:
		return true
	}
	return false
}

// Operation is the caller's intent for the resource.
type Operation string

const (
	OperationAdd      Operation = "add"
	OperationUpdate   Operation = "update"
	OperationSelect   Operation = "select"
	OperationShow     Operation = "show"
	OperationRender   Operation = "render"
	OperationRedirect Operation = "redirect"
	OperationValidate Operation = "validate"
)

// Wildcard matches any country or resource in catalog keys.
const Wildcard = "*"

// Key identifies a template in the catalog.
type Key struct {
	Type       DescriptionType `json:"description_type" yaml:"type"`
	Country    string          `json:"country" yaml:"country"`
	ResourceID string          `json:"resource_id" yaml:"resource_id"`
	Operation  Operation       `json:"operation" yaml:"operation"`
}

// String renders the key in a stable form for logs and map keys.
func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.Type, k.Country, k.ResourceID, k.Operation)
}

// WithCountry returns a copy of the key scoped to another country.
func (k Key) WithCountry(country string) Key {
	k.Country = country
	return k
}

// Well-known toggle names written by the override resolver.
const (
	ToggleTemplate           = "template"
	ToggleRedirectionPattern = "redirectionPattern"
)

// ResourceDescription is the unit the engine resolves: the fields to collect
// (Data) and the ordered tree that displays them (Display).
type ResourceDescription struct {
	Key     Key                           `json:"key" yaml:"-"`
	Data    map[string]PropertyDescriptor `json:"data_description" yaml:"data"`
	Display []DisplayHint                 `json:"display_description" yaml:"display"`
	Toggles map[string]string             `json:"toggles,omitempty" yaml:"toggles,omitempty"`
}

// PropertyType is the semantic type of a collected value.
type PropertyType string

const (
	PropertyString PropertyType = "string"
	PropertyBool   PropertyType = "bool"
	PropertyNumber PropertyType = "number"
	PropertyObject PropertyType = "object"
)

// Validation is a client-side rule attached to a property.
type Validation struct {
	Type      string `json:"type" yaml:"type"`
	Pattern   string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	ErrorCode string `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	Message   string `json:"message,omitempty" yaml:"message,omitempty"`
}

// EventHook asks the client to call Href when Trigger fires on the property.
type EventHook struct {
	Trigger string `json:"trigger" yaml:"trigger"`
	Href    string `json:"href" yaml:"href"`
	Method  string `json:"method" yaml:"method"`
	Silent  bool   `json:"silent,omitempty" yaml:"silent,omitempty"`
}

// PropertyDescriptor describes one collected value.
type PropertyDescriptor struct {
	Name                string       `json:"name" yaml:"name"`
	Type                PropertyType `json:"type" yaml:"type"`
	Validations         []Validation `json:"validations,omitempty" yaml:"validations,omitempty"`
	DefaultValue        *string      `json:"default_value,omitempty" yaml:"default_value,omitempty"`
	UsePreExistingValue bool         `json:"use_pre_existing_value,omitempty" yaml:"use_pre_existing_value,omitempty"`
	BroadcastTo         string       `json:"broadcast_to,omitempty" yaml:"broadcast_to,omitempty"`
	IsKey               bool         `json:"is_key,omitempty" yaml:"is_key,omitempty"`
	IsOptional          bool         `json:"is_optional,omitempty" yaml:"is_optional,omitempty"`
	Hooks               []EventHook  `json:"hooks,omitempty" yaml:"hooks,omitempty"`
	Tags                []string     `json:"-" yaml:"tags,omitempty"`
}

// HasTag reports whether the property carries tag.
func (p PropertyDescriptor) HasTag(tag string) bool {
	return slices.Contains(p.Tags, tag)
}

// Clone deep-copies the property.
func (p PropertyDescriptor) Clone() PropertyDescriptor {
	out := p
	out.Validations = slices.Clone(p.Validations)
	out.Hooks = slices.Clone(p.Hooks)
	out.Tags = slices.Clone(p.Tags)
	if p.DefaultValue != nil {
		v := *p.DefaultValue
		out.DefaultValue = &v
	}
	return out
}

// Clone returns a deep copy that shares no mutable state with d.
func (d *ResourceDescription) Clone() *ResourceDescription {
	if d == nil {
		return nil
	}
	out := &ResourceDescription{
		Key:     d.Key,
		Data:    make(map[string]PropertyDescriptor, len(d.Data)),
		Display: cloneHints(d.Display),
		Toggles: maps.Clone(d.Toggles),
	}
	for name, prop := range d.Data {
		out.Data[name] = prop.Clone()
	}
	if out.Toggles == nil {
		out.Toggles = map[string]string{}
	}
	return out
}

// Toggle returns a resolved toggle value.
func (d *ResourceDescription) Toggle(name string) string {
	return d.Toggles[name]
}

// ToggleEnabled reports whether a boolean toggle resolved to "true".
func (d *ResourceDescription) ToggleEnabled(name string) bool {
	return strings.EqualFold(d.Toggles[name], "true")
}

// ToggleDisabled reports whether a boolean toggle was explicitly turned off.
func (d *ResourceDescription) ToggleDisabled(name string) bool {
	return strings.EqualFold(d.Toggles[name], "false")
}

// PropertyNames returns the data description keys in sorted order.
func (d *ResourceDescription) PropertyNames() []string {
	names := make([]string, 0, len(d.Data))
	for name := range d.Data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasEntry reports whether name survives either as a property or as a hint ID.
func (d *ResourceDescription) HasEntry(name string) bool {
	if _, ok := d.Data[name]; ok {
		return true
	}
	found := false
	WalkHints(d.Display, func(h *DisplayHint) {
		if h.ID == name || (h.Kind == HintProperty && h.PropertyName == name) {
			found = true
		}
	})
	return found
}

// RemoveEntry drops the property name and every hint that displays it or is
// identified by it.
func (d *ResourceDescription) RemoveEntry(name string) {
	delete(d.Data, name)
	d.Display = FilterHints(d.Display, func(h DisplayHint) bool {
		return h.ID != name && !(h.Kind == HintProperty && h.PropertyName == name)
	})
}

// Validate enforces the structural invariants of a description: unique hint
// identifiers and property hints that point at existing data entries.
func (d *ResourceDescription) Validate() error {
	seen := make(map[string]struct{})
	var problems []string
	WalkHints(d.Display, func(h *DisplayHint) {
		if h.ID == "" {
			problems = append(problems, fmt.Sprintf("%s hint without id", h.Kind))
			return
		}
		if _, dup := seen[h.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate hint id %q", h.ID))
		}
		seen[h.ID] = struct{}{}
		if !h.Kind.IsValid() {
			problems = append(problems, fmt.Sprintf("hint %q has unknown kind %q", h.ID, h.Kind))
		}
		if h.Kind == HintProperty {
			if _, ok := d.Data[h.PropertyName]; !ok {
				problems = append(problems, fmt.Sprintf("hint %q references unknown property %q", h.ID, h.PropertyName))
			}
		}
	})
	for name, prop := range d.Data {
		if prop.Name != name {
			problems = append(problems, fmt.Sprintf("property key %q does not match name %q", name, prop.Name))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return dErrors.New(dErrors.CodeInvariantViolation, strings.Join(problems, "; "))
	}
	return nil
}
