package models

import (
	"slices"
	"time"

	pidl "checkout/internal/pidl/models"
)

// State is the lifecycle position of a challenge session.
type State string

const (
	StateInitiated      State = "initiated"
	StateMethodSelected State = "methodSelected"
	StatePending        State = "pending"
	StateValidated      State = "validated"
	StateFailed         State = "failed"
	StateExpired        State = "expired"
)

// IsTerminal reports whether no further step can change the session.
func (s State) IsTerminal() bool {
	return s == StateValidated || s == StateExpired
}

// AcceptsVerdict reports whether an upstream verification result may be
// applied in this state.
func (s State) AcceptsVerdict() bool {
	return s == StatePending || s == StateFailed
}

// Type is the kind of secondary verification.
type Type string

const (
	TypeOTP           Type = "otp"
	TypePasskey       Type = "passkey"
	TypeDeviceBinding Type = "deviceBinding"
	TypeThreeDS       Type = "threeDS"
)

// IsValid checks if the challenge type is one of the supported enum values.
func (t Type) IsValid() bool {
	switch t {
	case TypeOTP, TypePasskey, TypeDeviceBinding, TypeThreeDS:
		return true
	}
	return false
}

// Session correlates a challenge id with its pending step. RemainingAttempts
// never increases; reaching zero expires the session.
type Session struct {
	ID                string                 `json:"id"`
	Type              Type                   `json:"type"`
	State             State                  `json:"state"`
	Methods           []pidl.ChallengeMethod `json:"methods,omitempty"`
	SelectedMethod    string                 `json:"selected_method,omitempty"`
	RemainingAttempts int                    `json:"remaining_attempts"`
	InstrumentID      string                 `json:"instrument_id,omitempty"`
	ChallengeURL      string                 `json:"challenge_url,omitempty"`
	Partner           string                 `json:"partner"`
	Country           string                 `json:"country"`
	Language          string                 `json:"language"`
	Flights           []string               `json:"flights,omitempty"`
	Version           int64                  `json:"version"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
	ExpiresAt         time.Time              `json:"expires_at"`
}

// IsExpiredAt reports whether the session's deadline has passed at now.
func (s *Session) IsExpiredAt(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Method returns the candidate with id.
func (s *Session) Method(id string) (pidl.ChallengeMethod, bool) {
	i := slices.IndexFunc(s.Methods, func(m pidl.ChallengeMethod) bool { return m.ID == id })
	if i < 0 {
		return pidl.ChallengeMethod{}, false
	}
	return s.Methods[i], true
}

// Selected returns the currently selected method.
func (s *Session) Selected() (pidl.ChallengeMethod, bool) {
	return s.Method(s.SelectedMethod)
}

// Context rebuilds the resolution context prompts are rendered with.
func (s *Session) Context() pidl.Context {
	return pidl.Context{
		Country:         s.Country,
		Partner:         s.Partner,
		Language:        s.Language,
		Flights:         slices.Clone(s.Flights),
		DescriptionType: pidl.TypeChallenge,
		Operation:       pidl.OperationRender,
	}
}

// Clone returns a copy that shares no slices with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Methods = slices.Clone(s.Methods)
	out.Flights = slices.Clone(s.Flights)
	return &out
}

// StepKind discriminates step inputs.
type StepKind string

const (
	StepSelectMethod StepKind = "selectMethod"
	StepVerdict      StepKind = "verdict"
)

// StepInput is one caller step on a session. MethodID is read for
// selectMethod; Verified carries the upstream validation result for verdict.
type StepInput struct {
	Kind     StepKind `json:"kind"`
	MethodID string   `json:"method_id,omitempty"`
	Verified bool     `json:"verified,omitempty"`
}

// Result is what a challenge operation hands to the client action assembler.
// Exactly one of Prompt or Completed is set.
type Result struct {
	Session   *Session
	Prompt    *pidl.ResourceDescription
	Completed bool
}
