package postprocess

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"checkout/internal/pidl/models"
)

type ProcessorSuite struct {
	suite.Suite
	ctx       context.Context
	processor *Processor
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorSuite))
}

func (s *ProcessorSuite) SetupTest() {
	s.ctx = context.Background()
	s.processor = New(
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithSubmitBase("https://pay.example.com/v1/"),
	)
}

func cardTree() *models.ResourceDescription {
	return &models.ResourceDescription{
		Key: models.Key{Type: models.TypePaymentMethod, Country: "us", ResourceID: "credit_card", Operation: models.OperationAdd},
		Data: map[string]models.PropertyDescriptor{
			"card_number": {Name: "card_number", Type: models.PropertyString, Tags: []string{TagValidateOnBlur}},
			"holder":      {Name: "holder", Type: models.PropertyString, Tags: []string{TagPrefill, TagBroadcast}},
			"family":      {Name: "family", Type: models.PropertyString, Tags: []string{TagSummaryKey}},
			"subtotal":    {Name: "subtotal", Type: models.PropertyNumber, Tags: []string{TagTax}},
			"tax":         {Name: "tax", Type: models.PropertyNumber, Tags: []string{TagTax}},
			"total":       {Name: "total", Type: models.PropertyNumber, Tags: []string{TagTax}},
		},
		Display: []models.DisplayHint{
			{ID: "cardGroup", Kind: models.HintGroup, Children: []models.DisplayHint{
				{ID: "cardNumberHint", Kind: models.HintProperty, PropertyName: "card_number", Tags: []string{TagEditable}},
				{ID: "holderHint", Kind: models.HintProperty, PropertyName: "holder", Tags: []string{TagEditable}},
				{ID: "familyHint", Kind: models.HintProperty, PropertyName: "family", Hidden: true},
			}},
			{ID: "orderSummary", Kind: models.HintGroup, Tags: []string{TagTax}, Children: []models.DisplayHint{
				{ID: "subtotalHint", Kind: models.HintProperty, PropertyName: "subtotal", Tags: []string{TagTax}},
				{ID: "taxHint", Kind: models.HintProperty, PropertyName: "tax", Tags: []string{TagTax}},
				{ID: "totalHint", Kind: models.HintProperty, PropertyName: "total", Tags: []string{TagTax}},
			}},
			{ID: "summaryText", Kind: models.HintText, Tags: []string{TagSummaryOnly}},
			{ID: "saveButton", Kind: models.HintButton, Tags: []string{TagSubmit, TagEditable}},
			{ID: "cancelButton", Kind: models.HintButton, Action: &models.HintAction{Type: models.ActionNavigate, Href: "back"}},
		},
		Toggles: map[string]string{},
	}
}

func cardContext() models.Context {
	return models.Context{
		Country:         "us",
		Partner:         "cart",
		DescriptionType: models.TypePaymentMethod,
		ResourceID:      "credit_card",
		Operation:       models.OperationAdd,
	}
}

func (s *ProcessorSuite) TestTaxSuppression() {
	s.Run("tax entries are removed when the caller does not compute tax", func() {
		out := s.processor.Process(s.ctx, cardTree(), cardContext())
		for _, name := range []string{"tax", "subtotal", "total"} {
			s.False(out.HasEntry(name), name)
		}
		s.Nil(models.FindHint(out.Display, "orderSummary"))
		s.Nil(models.FindHint(out.Display, CallerComputesTaxHintID))
	})

	s.Run("caller computing tax gets a marker hint", func() {
		rc := cardContext()
		rc.ComputeTaxClientSide = true
		out := s.processor.Process(s.ctx, cardTree(), rc)
		s.False(out.HasEntry("tax"))
		marker := models.FindHint(out.Display, CallerComputesTaxHintID)
		s.Require().NotNil(marker)
		s.True(marker.Hidden)
		s.Equal("subtotal,tax,total", marker.Payload["fields"])
	})

	s.Run("partner can keep tax entries", func() {
		tree := cardTree()
		tree.Toggles["taxSuppression"] = "false"
		out := s.processor.Process(s.ctx, tree, cardContext())
		s.True(out.HasEntry("tax"))
		s.True(out.HasEntry("total"))
	})
}

func (s *ProcessorSuite) TestIdentityBroadcast() {
	s.Run("off unless toggled", func() {
		out := s.processor.Process(s.ctx, cardTree(), cardContext())
		s.False(out.Data["family"].IsKey)
		s.Empty(out.Data["holder"].BroadcastTo)
	})

	s.Run("defaults the target to the resource id", func() {
		tree := cardTree()
		tree.Toggles["identityBroadcast"] = "true"
		out := s.processor.Process(s.ctx, tree, cardContext())
		s.True(out.Data["family"].IsKey)
		s.Equal("credit_card", out.Data["holder"].BroadcastTo)
		s.Empty(out.Data["card_number"].BroadcastTo)
	})

	s.Run("honours an explicit target", func() {
		tree := cardTree()
		tree.Toggles["identityBroadcast"] = "true"
		tree.Toggles[ToggleBroadcastTarget] = "billingAddress"
		out := s.processor.Process(s.ctx, tree, cardContext())
		s.Equal("billingAddress", out.Data["holder"].BroadcastTo)
	})
}

func (s *ProcessorSuite) TestPreExistingValueAndVisibility() {
	s.Run("add flow", func() {
		out := s.processor.Process(s.ctx, cardTree(), cardContext())
		s.False(out.Data["holder"].UsePreExistingValue)
		s.True(models.FindHint(out.Display, "summaryText").Hidden)
		s.False(models.FindHint(out.Display, "holderHint").Hidden)
	})

	s.Run("summary scenario", func() {
		rc := cardContext()
		rc.Scenario = models.ScenarioSummary
		out := s.processor.Process(s.ctx, cardTree(), rc)
		s.True(out.Data["holder"].UsePreExistingValue)
		s.False(out.Data["card_number"].UsePreExistingValue)
		s.False(models.FindHint(out.Display, "summaryText").Hidden)
		s.True(models.FindHint(out.Display, "holderHint").Hidden)
		s.True(models.FindHint(out.Display, "saveButton").Hidden)
		s.False(models.FindHint(out.Display, "cancelButton").Hidden)
	})

	s.Run("update operation reuses values but stays editable", func() {
		rc := cardContext()
		rc.Operation = models.OperationUpdate
		out := s.processor.Process(s.ctx, cardTree(), rc)
		s.True(out.Data["holder"].UsePreExistingValue)
		s.False(models.FindHint(out.Display, "holderHint").Hidden)
	})
}

func (s *ProcessorSuite) TestSubmitWiring() {
	out := s.processor.Process(s.ctx, cardTree(), cardContext())

	save := models.FindHint(out.Display, "saveButton")
	s.Require().NotNil(save.Action)
	s.Equal(models.ActionSubmit, save.Action.Type)
	s.Equal("POST", save.Action.Method)
	s.Equal("https://pay.example.com/v1/paymentMethod/add?country=us&partner=cart", save.Action.Href)

	cancel := models.FindHint(out.Display, "cancelButton")
	s.Equal(models.ActionNavigate, cancel.Action.Type)

	hooks := out.Data["card_number"].Hooks
	s.Require().Len(hooks, 1)
	s.Equal("blur", hooks[0].Trigger)
	s.True(hooks[0].Silent)
	s.Contains(hooks[0].Href, "/paymentMethod/validate?")
	s.Contains(hooks[0].Href, "property=card_number")

	again := s.processor.Process(s.ctx, out, cardContext())
	s.Len(again.Data["card_number"].Hooks, 1)
}

func (s *ProcessorSuite) TestInputIsNotMutated() {
	tree := cardTree()
	rc := cardContext()
	rc.Scenario = models.ScenarioSummary
	rc.ComputeTaxClientSide = true
	s.processor.Process(s.ctx, tree, rc)
	s.Equal(cardTree(), tree)
}

// Every permutation of the default rules must produce the same tree.
func TestRulesAreOrderIndependent(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	contexts := map[string]models.Context{
		"add":     cardContext(),
		"summary": func() models.Context { rc := cardContext(); rc.Scenario = models.ScenarioSummary; return rc }(),
		"update with client tax": func() models.Context {
			rc := cardContext()
			rc.Operation = models.OperationUpdate
			rc.ComputeTaxClientSide = true
			return rc
		}(),
	}

	rules := DefaultRules("https://pay.example.com")
	perms := permutations(rules)
	require.Len(t, perms, 120)

	for name, rc := range contexts {
		t.Run(name, func(t *testing.T) {
			tree := cardTree()
			tree.Toggles["identityBroadcast"] = "true"
			want := New(WithLogger(logger), WithRules(rules...)).Process(ctx, tree, rc)
			for _, order := range perms {
				got := New(WithLogger(logger), WithRules(order...)).Process(ctx, tree, rc)
				assert.Equal(t, want, got, "order %v", ruleNames(order))
			}
		})
	}
}

func permutations(rules []Rule) [][]Rule {
	if len(rules) <= 1 {
		return [][]Rule{append([]Rule(nil), rules...)}
	}
	var out [][]Rule
	for i := range rules {
		rest := make([]Rule, 0, len(rules)-1)
		rest = append(rest, rules[:i]...)
		rest = append(rest, rules[i+1:]...)
		for _, p := range permutations(rest) {
			out = append(out, append([]Rule{rules[i]}, p...))
		}
	}
	return out
}

func ruleNames(rules []Rule) []string {
	names := make([]string, len(rules))
	for i, r := range rules {
		names[i] = r.Name()
	}
	return names
}
