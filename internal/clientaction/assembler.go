// Package clientaction wraps the engine's final result into the one tagged
// value the client SDK consumes.
package clientaction

import (
	"context"
	"log/slog"

	challenge "checkout/internal/challenge/models"
	"checkout/internal/pidl/models"
	"checkout/internal/redirect"
	dErrors "checkout/pkg/domain-errors"
)

// startOverMessage is shown to the end user when a flow cannot continue.
const startOverMessage = "This verification can no longer be completed. Please start over."

// Outcome is what the pipeline produced. Exactly one field must be set.
type Outcome struct {
	Tree      *models.ResourceDescription
	Redirect  *redirect.Decision
	Challenge *challenge.Result
	Err       error
}

func (o Outcome) populated() int {
	n := 0
	if o.Tree != nil {
		n++
	}
	if o.Redirect != nil {
		n++
	}
	if o.Challenge != nil {
		n++
	}
	if o.Err != nil {
		n++
	}
	return n
}

// Assembler builds client actions.
type Assembler struct {
	logger *slog.Logger
}

// Option configures an Assembler.
type Option func(*Assembler)

func WithLogger(logger *slog.Logger) Option {
	return func(a *Assembler) {
		a.logger = logger
	}
}

// New creates an Assembler.
func New(opts ...Option) *Assembler {
	a := &Assembler{logger: slog.Default()}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// IsBusinessTerminal reports whether err is a legitimate end state of a flow
// that the end user sees as a Failure action rather than a request error.
func IsBusinessTerminal(err error) bool {
	return dErrors.Is(err, dErrors.CodeChallengeExpired)
}

// Assemble converts an outcome into a ClientAction. Business terminal errors
// become Failure actions; any other error is returned unchanged. An outcome
// with zero or several results is an invariant violation.
func (a *Assembler) Assemble(ctx context.Context, out Outcome) (*models.ClientAction, error) {
	if n := out.populated(); n != 1 {
		return nil, a.violation(ctx, "outcome must carry exactly one result", "populated", n)
	}

	var action *models.ClientAction
	switch {
	case out.Err != nil:
		if !IsBusinessTerminal(out.Err) {
			return nil, out.Err
		}
		action = &models.ClientAction{
			Type: models.ActionTypeFailure,
			Failure: &models.FailureAction{
				Code:      string(dErrors.CodeOf(out.Err)),
				Message:   startOverMessage,
				Retryable: false,
			},
		}
	case out.Tree != nil:
		action = pidlAction(out.Tree)
	case out.Redirect != nil:
		action = redirectAction(out.Redirect)
	case out.Challenge != nil:
		var err error
		action, err = a.challengeAction(ctx, out.Challenge)
		if err != nil {
			return nil, err
		}
	}

	if err := action.Validate(); err != nil {
		return nil, a.violation(ctx, "assembled client action is inconsistent", "error", err)
	}
	return action, nil
}

func (a *Assembler) challengeAction(ctx context.Context, res *challenge.Result) (*models.ClientAction, error) {
	switch {
	case res.Completed && res.Prompt == nil:
		success := &models.SuccessAction{}
		if res.Session != nil {
			success.SessionID = res.Session.ID
			success.InstrumentID = res.Session.InstrumentID
		}
		return &models.ClientAction{Type: models.ActionTypeSuccess, Success: success}, nil
	case !res.Completed && res.Prompt != nil:
		return pidlAction(res.Prompt), nil
	default:
		return nil, a.violation(ctx, "challenge result must carry either a prompt or a completion",
			"completed", res.Completed)
	}
}

func pidlAction(tree *models.ResourceDescription) *models.ClientAction {
	return &models.ClientAction{
		Type: models.ActionTypePidl,
		Pidl: &models.PidlAction{Resources: []models.ResourceDescription{*tree}},
	}
}

func redirectAction(d *redirect.Decision) *models.ClientAction {
	if d.Embedded() {
		return pidlAction(d.Resource)
	}
	return &models.ClientAction{
		Type: models.ActionTypeRedirect,
		Redirect: &models.RedirectAction{
			URL:      d.URL,
			Strategy: d.Strategy,
			Fallback: d.Fallback,
		},
	}
}

func (a *Assembler) violation(ctx context.Context, msg string, args ...any) error {
	a.logger.ErrorContext(ctx, "client action assembly failed", append([]any{"reason", msg}, args...)...)
	return dErrors.New(dErrors.CodeInvariantViolation, msg)
}
