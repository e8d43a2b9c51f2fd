package models

import (
	"maps"
	"slices"
)

// HintKind is the closed set of display node kinds the client SDK renders.
type HintKind string

const (
	HintGroup                 HintKind = "group"
	HintProperty              HintKind = "property"
	HintButton                HintKind = "button"
	HintText                  HintKind = "text"
	HintHeading               HintKind = "heading"
	HintImage                 HintKind = "image"
	HintHyperlink             HintKind = "hyperlink"
	HintExpressCheckoutButton HintKind = "expressCheckoutButton"
	HintIFrame                HintKind = "iframe"
	HintQRCode                HintKind = "qrCode"
	HintPoll                  HintKind = "poll"
)

// IsValid checks if the hint kind is one of the supported enum values.
func (k HintKind) IsValid() bool {
	switch k {
	case HintGroup, HintProperty, HintButton, HintText, HintHeading, HintImage,
		HintHyperlink, HintExpressCheckoutButton, HintIFrame, HintQRCode, HintPoll:
		return true
	}
	return false
}

// Action types a hint can trigger on the client.
const (
	ActionSubmit     = "submit"
	ActionNavigate   = "navigate"
	ActionPoll       = "poll"
	ActionRestAction = "restAction"
	ActionRedirect   = "redirect"
)

// HintAction is what the client does when the hint is activated.
type HintAction struct {
	Type            string `json:"type" yaml:"type"`
	Href            string `json:"href,omitempty" yaml:"href,omitempty"`
	Method          string `json:"method,omitempty" yaml:"method,omitempty"`
	IntervalSeconds int    `json:"interval_seconds,omitempty" yaml:"interval_seconds,omitempty"`
}

// DisplayHint is one node of the display tree.
type DisplayHint struct {
	ID           string            `json:"id" yaml:"id"`
	Kind         HintKind          `json:"kind" yaml:"kind"`
	PropertyName string            `json:"property_name,omitempty" yaml:"property,omitempty"`
	Text         string            `json:"text,omitempty" yaml:"text,omitempty"`
	Hidden       bool              `json:"hidden,omitempty" yaml:"hidden,omitempty"`
	Action       *HintAction       `json:"action,omitempty" yaml:"action,omitempty"`
	Payload      map[string]string `json:"payload,omitempty" yaml:"payload,omitempty"`
	Children     []DisplayHint     `json:"children,omitempty" yaml:"children,omitempty"`
	Tags         []string          `json:"-" yaml:"tags,omitempty"`
}

// HasTag reports whether the hint carries tag.
func (h DisplayHint) HasTag(tag string) bool {
	return slices.Contains(h.Tags, tag)
}

// Clone deep-copies the hint and its subtree.
func (h DisplayHint) Clone() DisplayHint {
	out := h
	out.Payload = maps.Clone(h.Payload)
	out.Tags = slices.Clone(h.Tags)
	out.Children = cloneHints(h.Children)
	if h.Action != nil {
		a := *h.Action
		out.Action = &a
	}
	return out
}

func cloneHints(hints []DisplayHint) []DisplayHint {
	if hints == nil {
		return nil
	}
	out := make([]DisplayHint, len(hints))
	for i, h := range hints {
		out[i] = h.Clone()
	}
	return out
}

// WalkHints visits every hint depth-first, in display order. fn may mutate the
// hint in place.
func WalkHints(hints []DisplayHint, fn func(h *DisplayHint)) {
	for i := range hints {
		fn(&hints[i])
		WalkHints(hints[i].Children, fn)
	}
}

// FilterHints returns a new slice holding the hints for which keep returns
// true, applied recursively. A dropped group drops its subtree.
func FilterHints(hints []DisplayHint, keep func(h DisplayHint) bool) []DisplayHint {
	out := make([]DisplayHint, 0, len(hints))
	for _, h := range hints {
		if !keep(h) {
			continue
		}
		h.Children = FilterHints(h.Children, keep)
		out = append(out, h)
	}
	return out
}

// FindHint returns a pointer to the hint with id, or nil.
func FindHint(hints []DisplayHint, id string) *DisplayHint {
	var found *DisplayHint
	WalkHints(hints, func(h *DisplayHint) {
		if found == nil && h.ID == id {
			found = h
		}
	})
	return found
}

// InsertHint appends hint under the group parentID, or at the root when the
// parent is empty or absent.
func InsertHint(hints []DisplayHint, parentID string, hint DisplayHint) []DisplayHint {
	if parentID != "" {
		if parent := FindHint(hints, parentID); parent != nil {
			parent.Children = append(parent.Children, hint)
			return hints
		}
	}
	return append(hints, hint)
}
