package postprocess

import (
	"net/url"
	"slices"
	"strings"

	"checkout/internal/pidl/models"
)

// Tags the rules key off. Catalog authors attach them to properties and hints.
const (
	TagTax            = "tax"
	TagSummaryKey     = "summaryKey"
	TagBroadcast      = "broadcast"
	TagPrefill        = "prefill"
	TagEditable       = "editable"
	TagSummaryOnly    = "summaryOnly"
	TagSubmit         = "submit"
	TagValidateOnBlur = "validateOnBlur"
)

// Toggle names read by the rules besides the rule names themselves.
const (
	ToggleBroadcastTarget = "broadcastTarget"
)

// CallerComputesTaxHintID identifies the hint attached when the caller is
// responsible for computing tax amounts.
const CallerComputesTaxHintID = "callerComputesTax"

// TaxSuppression removes tax, subtotal and total entries. When the caller
// computes tax client-side it leaves a hidden marker hint listing the removed
// properties so the SDK knows what to inject.
type TaxSuppression struct{}

func (TaxSuppression) Name() string { return "taxSuppression" }

func (TaxSuppression) Applies(tree *models.ResourceDescription, rc models.Context) bool {
	return rc.ComputeTaxClientSide || len(taxEntries(tree)) > 0
}

func (TaxSuppression) Apply(tree *models.ResourceDescription, rc models.Context) {
	var removed []string
	for _, name := range tree.PropertyNames() {
		if tree.Data[name].HasTag(TagTax) {
			removed = append(removed, name)
			tree.RemoveEntry(name)
		}
	}
	tree.Display = models.FilterHints(tree.Display, func(h models.DisplayHint) bool {
		return !h.HasTag(TagTax)
	})

	if !rc.ComputeTaxClientSide || models.FindHint(tree.Display, CallerComputesTaxHintID) != nil {
		return
	}
	tree.Display = append(tree.Display, models.DisplayHint{
		ID:     CallerComputesTaxHintID,
		Kind:   models.HintText,
		Hidden: true,
		Payload: map[string]string{
			"taxComputation": "caller",
			"fields":         strings.Join(removed, ","),
		},
	})
}

func taxEntries(tree *models.ResourceDescription) []string {
	var names []string
	for _, name := range tree.PropertyNames() {
		if tree.Data[name].HasTag(TagTax) {
			names = append(names, name)
		}
	}
	models.WalkHints(tree.Display, func(h *models.DisplayHint) {
		if h.HasTag(TagTax) {
			names = append(names, h.ID)
		}
	})
	return names
}

// IdentityBroadcast marks summary-triggering properties as keys and wires the
// rest to broadcast their values to sibling components. Partners opt in with
// the identityBroadcast toggle.
type IdentityBroadcast struct{}

func (IdentityBroadcast) Name() string { return "identityBroadcast" }

func (r IdentityBroadcast) Applies(tree *models.ResourceDescription, _ models.Context) bool {
	return tree.ToggleEnabled(r.Name())
}

func (IdentityBroadcast) Apply(tree *models.ResourceDescription, rc models.Context) {
	target := tree.Toggle(ToggleBroadcastTarget)
	if target == "" {
		target = rc.ResourceID
	}
	for name, prop := range tree.Data {
		if prop.HasTag(TagSummaryKey) {
			prop.IsKey = true
		}
		if prop.HasTag(TagBroadcast) {
			prop.BroadcastTo = target
		}
		tree.Data[name] = prop
	}
}

// PreExistingValue asks the client to reuse known values in read-only
// summaries and updates instead of demanding re-entry.
type PreExistingValue struct{}

func (PreExistingValue) Name() string { return "preExistingValue" }

func (PreExistingValue) Applies(_ *models.ResourceDescription, rc models.Context) bool {
	return rc.IsSummary() || rc.Operation == models.OperationUpdate
}

func (PreExistingValue) Apply(tree *models.ResourceDescription, _ models.Context) {
	for name, prop := range tree.Data {
		if prop.HasTag(TagPrefill) {
			prop.UsePreExistingValue = true
			tree.Data[name] = prop
		}
	}
}

// VisibilityPruning hides hints that do not apply to the resource's role:
// editable hints in a summary, summary-only hints everywhere else.
type VisibilityPruning struct{}

func (VisibilityPruning) Name() string { return "visibilityPruning" }

func (VisibilityPruning) Applies(*models.ResourceDescription, models.Context) bool {
	return true
}

func (VisibilityPruning) Apply(tree *models.ResourceDescription, rc models.Context) {
	hide := TagSummaryOnly
	if rc.IsSummary() {
		hide = TagEditable
	}
	models.WalkHints(tree.Display, func(h *models.DisplayHint) {
		if h.HasTag(hide) {
			h.Hidden = true
		}
	})
}

// SubmitWiring points submit buttons without an action at the submit endpoint
// and attaches silent blur validation hooks.
type SubmitWiring struct {
	Base string
}

func (SubmitWiring) Name() string { return "submitWiring" }

func (SubmitWiring) Applies(*models.ResourceDescription, models.Context) bool {
	return true
}

func (r SubmitWiring) Apply(tree *models.ResourceDescription, rc models.Context) {
	submitHref := r.href(rc, string(rc.Operation), nil)
	models.WalkHints(tree.Display, func(h *models.DisplayHint) {
		if h.Kind != models.HintButton || !h.HasTag(TagSubmit) || h.Action != nil {
			return
		}
		h.Action = &models.HintAction{
			Type:   models.ActionSubmit,
			Href:   submitHref,
			Method: "POST",
		}
	})

	for name, prop := range tree.Data {
		if !prop.HasTag(TagValidateOnBlur) {
			continue
		}
		if slices.ContainsFunc(prop.Hooks, func(h models.EventHook) bool { return h.Trigger == "blur" }) {
			continue
		}
		prop.Hooks = append(prop.Hooks, models.EventHook{
			Trigger: "blur",
			Href:    r.href(rc, string(models.OperationValidate), url.Values{"property": {name}}),
			Method:  "POST",
			Silent:  true,
		})
		tree.Data[name] = prop
	}
}

func (r SubmitWiring) href(rc models.Context, operation string, extra url.Values) string {
	q := url.Values{}
	q.Set("partner", rc.Partner)
	q.Set("country", rc.Country)
	for k, v := range extra {
		q[k] = v
	}
	base := strings.TrimRight(r.Base, "/")
	if base == "" {
		base = DefaultSubmitBase
	}
	return base + "/" + string(rc.DescriptionType) + "/" + operation + "?" + q.Encode()
}
