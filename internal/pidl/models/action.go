package models

import dErrors "checkout/pkg/domain-errors"

// ActionType discriminates the ClientAction variants.
type ActionType string

const (
	ActionTypePidl     ActionType = "pidl"
	ActionTypeRedirect ActionType = "redirect"
	ActionTypeSuccess  ActionType = "success"
	ActionTypeFailure  ActionType = "failure"
)

// Redirection strategies.
type Strategy string

const (
	StrategyFullPage Strategy = "fullPage"
	StrategyInline   Strategy = "inline"
	StrategyIFrame   Strategy = "iFrame"
	StrategyQRCode   Strategy = "qrCode"
)

// IsValid checks if the strategy is one of the supported enum values.
func (s Strategy) IsValid() bool {
	switch s {
	case StrategyFullPage, StrategyInline, StrategyIFrame, StrategyQRCode:
		return true
	}
	return false
}

// ClientAction tells the caller what to do next. Exactly one payload is set and
// it matches Type.
type ClientAction struct {
	Type     ActionType      `json:"type"`
	Pidl     *PidlAction     `json:"pidl,omitempty"`
	Redirect *RedirectAction `json:"redirect,omitempty"`
	Success  *SuccessAction  `json:"success,omitempty"`
	Failure  *FailureAction  `json:"failure,omitempty"`
}

// PidlAction asks the client to render the descriptions.
type PidlAction struct {
	Resources []ResourceDescription `json:"resources"`
}

// RedirectAction asks the client to navigate to URL. Fallback, when present,
// is rendered if the client cannot follow the redirect automatically.
type RedirectAction struct {
	URL      string               `json:"url"`
	Strategy Strategy             `json:"strategy"`
	Fallback *ResourceDescription `json:"fallback,omitempty"`
}

// SuccessAction reports that the step completed.
type SuccessAction struct {
	InstrumentID string            `json:"instrument_id,omitempty"`
	SessionID    string            `json:"session_id,omitempty"`
	Payload      map[string]string `json:"payload,omitempty"`
}

// FailureAction reports a terminal business failure the user must act on.
type FailureAction struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// Validate checks the exactly-one-variant invariant.
func (a *ClientAction) Validate() error {
	if a == nil {
		return dErrors.New(dErrors.CodeInvariantViolation, "client action is nil")
	}
	populated := 0
	var matches bool
	if a.Pidl != nil {
		populated++
		matches = a.Type == ActionTypePidl
	}
	if a.Redirect != nil {
		populated++
		matches = a.Type == ActionTypeRedirect
	}
	if a.Success != nil {
		populated++
		matches = a.Type == ActionTypeSuccess
	}
	if a.Failure != nil {
		populated++
		matches = a.Type == ActionTypeFailure
	}
	if populated != 1 {
		return dErrors.New(dErrors.CodeInvariantViolation, "client action must carry exactly one variant")
	}
	if !matches {
		return dErrors.New(dErrors.CodeInvariantViolation, "client action type does not match its payload")
	}
	return nil
}
