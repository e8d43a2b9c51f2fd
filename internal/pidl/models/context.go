package models

import (
	"slices"
	"strings"

	dErrors "checkout/pkg/domain-errors"
)

// Scenarios the post-processor and selector react to.
const (
	ScenarioSummary = "summary"
)

// Context is the immutable input of one resolution. Transport and accessor
// layers populate it; the engine only reads it.
type Context struct {
	Country              string                    `json:"country"`
	Language             string                    `json:"language"`
	Partner              string                    `json:"partner"`
	PartnerAlias         string                    `json:"partner_alias,omitempty"`
	DescriptionType      DescriptionType           `json:"description_type"`
	ResourceID           string                    `json:"resource_id"`
	Operation            Operation                 `json:"operation"`
	Scenario             string                    `json:"scenario,omitempty"`
	Flights              []string                  `json:"flights,omitempty"`
	Instrument           *InstrumentSnapshot       `json:"instrument,omitempty"`
	Challenge            *ChallengeSnapshot        `json:"challenge,omitempty"`
	Setting              *PartnerExperienceSetting `json:"setting,omitempty"`
	ComputeTaxClientSide bool                      `json:"compute_tax_client_side,omitempty"`
	UserAgent            string                    `json:"user_agent,omitempty"`
	TraceID              string                    `json:"trace_id,omitempty"`
	CorrelationID        string                    `json:"correlation_id,omitempty"`
}

// InstrumentSnapshot is the upstream view of the payment instrument in flight.
type InstrumentSnapshot struct {
	ID                   string `json:"id"`
	Family               string `json:"family"`
	Type                 string `json:"type"`
	Status               string `json:"status"`
	PendingOn            string `json:"pending_on,omitempty"`
	VerificationRequired bool   `json:"verification_required,omitempty"`
	RedirectURL          string `json:"redirect_url,omitempty"`
	ShortURL             string `json:"short_url,omitempty"`
}

// PaymentMethodKey is the "family.type" key used by redirection defaults.
func (i InstrumentSnapshot) PaymentMethodKey() string {
	return strings.ToLower(i.Family + "." + i.Type)
}

// ChallengeMethod is one delivery channel a challenge code can be sent to.
// Destination is the display value supplied upstream (already masked).
type ChallengeMethod struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Destination string `json:"destination"`
}

// ChallengeSnapshot carries the upstream challenge state used to start a
// challenge session.
type ChallengeSnapshot struct {
	SessionID         string            `json:"session_id,omitempty"`
	Type              string            `json:"type"`
	Methods           []ChallengeMethod `json:"methods,omitempty"`
	DefaultMethod     string            `json:"default_method,omitempty"`
	RemainingAttempts int               `json:"remaining_attempts,omitempty"`
	ChallengeURL      string            `json:"challenge_url,omitempty"`
}

// Normalize returns a copy with canonical casing and defaults applied.
func (c Context) Normalize() Context {
	c.Country = strings.ToLower(strings.TrimSpace(c.Country))
	c.Partner = strings.ToLower(strings.TrimSpace(c.Partner))
	c.PartnerAlias = strings.ToLower(strings.TrimSpace(c.PartnerAlias))
	c.Language = strings.ToLower(strings.TrimSpace(c.Language))
	if c.Language == "" {
		c.Language = "en-us"
	}
	c.ResourceID = strings.TrimSpace(c.ResourceID)
	if c.Operation == "" {
		c.Operation = OperationAdd
	}
	c.Flights = slices.Clone(c.Flights)
	slices.Sort(c.Flights)
	c.Flights = slices.Compact(c.Flights)
	return c
}

// Validate checks the fields every resolution needs.
func (c Context) Validate() error {
	if c.Country == "" {
		return dErrors.New(dErrors.CodeBadRequest, "country is required")
	}
	if c.Partner == "" {
		return dErrors.New(dErrors.CodeBadRequest, "partner is required")
	}
	if !c.DescriptionType.IsValid() {
		return dErrors.New(dErrors.CodeBadRequest, "unsupported description type: "+string(c.DescriptionType))
	}
	if c.ResourceID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "resource id is required")
	}
	return nil
}

// Key returns the catalog key the context resolves.
func (c Context) Key() Key {
	return Key{Type: c.DescriptionType, Country: c.Country, ResourceID: c.ResourceID, Operation: c.Operation}
}

// HasFlight reports whether the caller exposed flight.
func (c Context) HasFlight(flight string) bool {
	return slices.Contains(c.Flights, flight)
}

// IsSummary reports whether the resource is rendered as a read-only summary.
func (c Context) IsSummary() bool {
	return c.Scenario == ScenarioSummary
}
