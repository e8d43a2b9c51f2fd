package redirect

import (
	"slices"

	"checkout/internal/pidl/models"
)

// MethodPolicy lists the strategies a payment method can be redirected with.
// FullPage is always accepted as a last resort.
type MethodPolicy struct {
	Default   models.Strategy
	Supported []models.Strategy
}

// Supports reports whether the method can use strategy.
func (p MethodPolicy) Supports(strategy models.Strategy) bool {
	return strategy == models.StrategyFullPage || slices.Contains(p.Supported, strategy)
}

// DefaultPolicies maps "family.type" keys to their redirection policy.
func DefaultPolicies() map[string]MethodPolicy {
	return map[string]MethodPolicy{
		"ewallet.paypal": {
			Default:   models.StrategyFullPage,
			Supported: []models.Strategy{models.StrategyInline, models.StrategyIFrame},
		},
		"ewallet.alipay": {
			Default:   models.StrategyQRCode,
			Supported: []models.Strategy{models.StrategyQRCode, models.StrategyIFrame},
		},
		"ewallet.wechat": {
			Default:   models.StrategyQRCode,
			Supported: []models.Strategy{models.StrategyQRCode},
		},
		"ewallet.venmo": {
			Default:   models.StrategyQRCode,
			Supported: []models.Strategy{models.StrategyQRCode, models.StrategyInline},
		},
		"ewallet.klarna": {
			Default:   models.StrategyFullPage,
			Supported: []models.Strategy{models.StrategyInline},
		},
		"credit_card.visa": {
			Default:   models.StrategyIFrame,
			Supported: []models.Strategy{models.StrategyIFrame},
		},
		"credit_card.mastercard": {
			Default:   models.StrategyIFrame,
			Supported: []models.Strategy{models.StrategyIFrame},
		},
		"credit_card.amex": {
			Default:   models.StrategyIFrame,
			Supported: []models.Strategy{models.StrategyIFrame},
		},
		"direct_debit.ideal_billing_agreement": {
			Default:   models.StrategyFullPage,
			Supported: []models.Strategy{models.StrategyInline},
		},
		"online_bank_transfer.paysafecard": {
			Default:   models.StrategyFullPage,
			Supported: []models.Strategy{models.StrategyInline, models.StrategyIFrame},
		},
	}
}
