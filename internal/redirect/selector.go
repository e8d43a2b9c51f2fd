// Package redirect chooses how a client leaves checkout for a third party
// (full page, inline, iframe or QR code) and builds the matching payload.
//
// Precedence: the redirectionPattern toggle resolved from the partner setting,
// then the payment method's default, then FullPage. A pattern the method does
// not support falls through to the method default; an unknown pattern name or
// an unmapped payment method is UnsupportedRedirectionStrategy.
package redirect

import (
	"context"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"checkout/internal/pidl/models"
	dErrors "checkout/pkg/domain-errors"
	"checkout/pkg/requestcontext"
)

// Template keys rendered for embedded strategies.
const (
	iFrameResource = "iFrame"
	qrCodeResource = "qrCode"
)

// Query parameters appended to redirect links.
const (
	ParamInstrumentID         = "piid"
	ParamFamily               = "family"
	ParamType                 = "type"
	ParamPendingOn            = "pendingOn"
	ParamVerificationRequired = "verificationRequired"
	ParamToken                = "t"
)

// TemplateSource supplies the iframe and QR templates.
type TemplateSource interface {
	Lookup(key models.Key) (*models.ResourceDescription, error)
}

// LinkSigner mints the short-lived token embedded in QR links.
type LinkSigner interface {
	Sign(instrumentID, family, typ string, now time.Time, ttl time.Duration) (string, error)
}

// Decision is the selector's output. Resource is set for embedded strategies
// (IFrame, QRCode) and rendered as a Pidl; otherwise the client is redirected
// to URL, with Fallback rendered if it cannot follow automatically.
type Decision struct {
	Strategy models.Strategy
	URL      string
	Fallback *models.ResourceDescription
	Resource *models.ResourceDescription
}

// Embedded reports whether the decision renders a description instead of
// navigating away.
func (d *Decision) Embedded() bool {
	return d.Resource != nil
}

// Selector builds redirection decisions.
type Selector struct {
	templates     TemplateSource
	signer        LinkSigner
	policies      map[string]MethodPolicy
	baseURL       string
	statusBaseURL string
	tokenTTL      time.Duration
	logger        *slog.Logger
}

// Option configures a Selector.
type Option func(*Selector)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Selector) {
		s.logger = logger
	}
}

// WithPolicies replaces the payment-method policy table.
func WithPolicies(policies map[string]MethodPolicy) Option {
	return func(s *Selector) {
		s.policies = policies
	}
}

// WithBaseURL sets the redirect base used when the instrument carries none.
func WithBaseURL(base string) Option {
	return func(s *Selector) {
		s.baseURL = base
	}
}

// WithStatusBaseURL sets the base of the status endpoint poll hints call.
func WithStatusBaseURL(base string) Option {
	return func(s *Selector) {
		s.statusBaseURL = strings.TrimRight(base, "/")
	}
}

// WithLinkSigner enables signed tokens on QR links.
func WithLinkSigner(signer LinkSigner, ttl time.Duration) Option {
	return func(s *Selector) {
		s.signer = signer
		s.tokenTTL = ttl
	}
}

// New creates a Selector.
func New(templates TemplateSource, opts ...Option) (*Selector, error) {
	s := &Selector{
		templates:     templates,
		policies:      DefaultPolicies(),
		baseURL:       "https://pay.example.com/redirect",
		statusBaseURL: "/v1/paymentInstruments",
		tokenTTL:      10 * time.Minute,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.templates == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "redirect selector requires a template source")
	}
	if _, err := url.Parse(s.baseURL); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "invalid redirect base url")
	}
	return s, nil
}

// Select picks a strategy for the instrument in rc and builds its payload.
// tree is the resolved redirect description; it becomes the FullPage fallback.
func (s *Selector) Select(ctx context.Context, tree *models.ResourceDescription, rc models.Context) (*Decision, error) {
	if rc.Instrument == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "redirect requires an instrument snapshot")
	}
	strategy, err := s.Choose(tree, rc)
	if err != nil {
		s.logger.WarnContext(ctx, "no redirection strategy",
			"partner", rc.Partner,
			"payment_method", rc.Instrument.PaymentMethodKey(),
			"error", err,
		)
		return nil, err
	}

	link, err := s.Link(*rc.Instrument)
	if err != nil {
		return nil, err
	}
	status := s.statusURL(rc.Instrument.ID)

	decision := &Decision{Strategy: strategy, URL: link}
	switch strategy {
	case models.StrategyFullPage:
		decision.Fallback = fillLinks(tree.Clone(), link, status)
	case models.StrategyInline:
	case models.StrategyIFrame:
		decision.Resource, err = s.render(rc.Country, iFrameResource, link, status)
	case models.StrategyQRCode:
		var qr string
		qr, err = s.qrURL(ctx, *rc.Instrument, link)
		if err == nil {
			decision.Resource, err = s.render(rc.Country, qrCodeResource, link, status)
		}
		if err == nil {
			setQR(decision.Resource, qr)
		}
	}
	if err != nil {
		return nil, err
	}

	s.logger.DebugContext(ctx, "redirection strategy selected",
		"partner", rc.Partner,
		"payment_method", rc.Instrument.PaymentMethodKey(),
		"strategy", string(strategy),
	)
	return decision, nil
}

// Choose resolves the strategy without building a payload.
func (s *Selector) Choose(tree *models.ResourceDescription, rc models.Context) (models.Strategy, error) {
	if rc.Instrument == nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "redirect requires an instrument snapshot")
	}
	method := rc.Instrument.PaymentMethodKey()
	policy, ok := s.policies[method]
	if !ok {
		return "", dErrors.New(dErrors.CodeUnsupportedRedirectionStrategy,
			"no redirection strategy mapped for "+method+" and partner "+rc.Partner)
	}

	var pattern string
	if tree != nil {
		pattern = tree.Toggle(models.ToggleRedirectionPattern)
	}
	if pattern != "" {
		explicit := models.Strategy(pattern)
		if !explicit.IsValid() {
			return "", dErrors.New(dErrors.CodeUnsupportedRedirectionStrategy,
				"unknown redirection pattern "+pattern+" for partner "+rc.Partner)
		}
		if policy.Supports(explicit) {
			return explicit, nil
		}
	}

	strategy := policy.Default
	if strategy == "" {
		strategy = models.StrategyFullPage
	}
	if strategy == models.StrategyQRCode && IsMobile(rc.UserAgent) {
		strategy = models.StrategyFullPage
	}
	return strategy, nil
}

// IsMobile reports whether the user agent belongs to a phone or tablet, where
// scanning a QR code shown on the same screen makes no sense.
func IsMobile(userAgent string) bool {
	if userAgent == "" {
		return false
	}
	return useragent.New(userAgent).Mobile()
}

// Link builds the redirect URL carrying the instrument correlation parameters.
func (s *Selector) Link(inst models.InstrumentSnapshot) (string, error) {
	base := inst.RedirectURL
	if base == "" {
		base = s.baseURL
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeBadRequest, "instrument redirect url is invalid")
	}
	q := u.Query()
	q.Set(ParamInstrumentID, inst.ID)
	q.Set(ParamFamily, inst.Family)
	q.Set(ParamType, inst.Type)
	if inst.PendingOn != "" {
		q.Set(ParamPendingOn, inst.PendingOn)
	}
	q.Set(ParamVerificationRequired, strconv.FormatBool(inst.VerificationRequired))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// EmbedIFrame renders the iframe template around src. Challenge flows use it
// for redirect-based authentication.
func (s *Selector) EmbedIFrame(rc models.Context, src, statusID string) (*Decision, error) {
	resource, err := s.render(rc.Country, iFrameResource, src, s.statusURL(statusID))
	if err != nil {
		return nil, err
	}
	return &Decision{Strategy: models.StrategyIFrame, URL: src, Resource: resource}, nil
}

func (s *Selector) render(country, resource, link, status string) (*models.ResourceDescription, error) {
	tmpl, err := s.templates.Lookup(models.Key{
		Type:       models.TypeRedirect,
		Country:    country,
		ResourceID: resource,
		Operation:  models.OperationRender,
	})
	if err != nil {
		return nil, err
	}
	models.WalkHints(tmpl.Display, func(h *models.DisplayHint) {
		if h.Kind == models.HintIFrame {
			setPayload(h, "src", link)
		}
		if h.Kind == models.HintHyperlink && h.Action == nil {
			h.Action = &models.HintAction{Type: models.ActionNavigate, Href: link}
		}
	})
	return fillLinks(tmpl, link, status), nil
}

func (s *Selector) qrURL(ctx context.Context, inst models.InstrumentSnapshot, link string) (string, error) {
	if inst.ShortURL != "" {
		return inst.ShortURL, nil
	}
	if s.signer == nil {
		return link, nil
	}
	token, err := s.signer.Sign(inst.ID, inst.Family, inst.Type, requestcontext.Now(ctx), s.tokenTTL)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(link)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "redirect link is invalid")
	}
	q := u.Query()
	q.Set(ParamToken, token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Selector) statusURL(id string) string {
	return s.statusBaseURL + "/" + url.PathEscape(id) + "/status"
}

// fillLinks points unresolved navigate actions at link and unresolved poll
// actions at the status endpoint.
func fillLinks(tree *models.ResourceDescription, link, status string) *models.ResourceDescription {
	if tree == nil {
		return nil
	}
	models.WalkHints(tree.Display, func(h *models.DisplayHint) {
		if h.Action == nil || h.Action.Href != "" {
			return
		}
		switch h.Action.Type {
		case models.ActionNavigate, models.ActionRedirect:
			h.Action.Href = link
		case models.ActionPoll:
			h.Action.Href = status
		}
	})
	return tree
}

func setQR(tree *models.ResourceDescription, qr string) {
	models.WalkHints(tree.Display, func(h *models.DisplayHint) {
		if h.Kind == models.HintQRCode {
			setPayload(h, "url", qr)
		}
	})
}

func setPayload(h *models.DisplayHint, key, value string) {
	if h.Payload == nil {
		h.Payload = map[string]string{}
	}
	h.Payload[key] = value
}
