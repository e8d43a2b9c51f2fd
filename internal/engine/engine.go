// Package engine orchestrates one resolution: it dispatches the context to the
// component for its description type, runs the description pipeline and the
// redirect or challenge step where the operation needs one, and assembles the
// single client action returned to the caller.
package engine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	challenge "checkout/internal/challenge/models"
	"checkout/internal/challenge/service"
	"checkout/internal/clientaction"
	"checkout/internal/engine/metrics"
	"checkout/internal/pidl/models"
	"checkout/internal/redirect"
	dErrors "checkout/pkg/domain-errors"
	"checkout/pkg/requestcontext"
)

const tracerName = "checkout/internal/engine"

// component resolves one description type into an outcome.
type component func(ctx context.Context, rc models.Context) clientaction.Outcome

// Engine resolves contexts into client actions.
type Engine struct {
	pipeline   *Pipeline
	selector   *redirect.Selector
	challenges *service.Service
	assembler  *clientaction.Assembler
	metrics    *metrics.Metrics
	tracer     trace.Tracer
	logger     *slog.Logger
	components map[models.DescriptionType]component
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithMetrics enables Prometheus metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(e *Engine) {
		e.tracer = tracer
	}
}

// WithChallenges enables challenge resolution.
func WithChallenges(challenges *service.Service) Option {
	return func(e *Engine) {
		e.challenges = challenges
	}
}

// New creates an Engine.
func New(pipeline *Pipeline, selector *redirect.Selector, assembler *clientaction.Assembler, opts ...Option) (*Engine, error) {
	if pipeline == nil || selector == nil || assembler == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "engine requires a pipeline, selector and assembler")
	}
	e := &Engine{
		pipeline:  pipeline,
		selector:  selector,
		assembler: assembler,
		tracer:    otel.Tracer(tracerName),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.components = map[models.DescriptionType]component{
		models.TypePaymentMethod: e.describeOrRedirect,
		models.TypeAddress:       e.describe,
		models.TypeProfile:       e.describe,
		models.TypeTaxID:         e.describe,
		models.TypeBillingGroup:  e.describe,
		models.TypeChallenge:     e.startChallenge,
		models.TypeRedirect:      e.describe,
	}
	return e, nil
}

// Pipeline returns the description pipeline the engine runs.
func (e *Engine) Pipeline() *Pipeline {
	return e.pipeline
}

// Resolve turns a context into exactly one client action.
func (e *Engine) Resolve(ctx context.Context, rc models.Context) (*models.ClientAction, error) {
	rc = rc.Normalize()
	ctx, span := e.tracer.Start(ctx, "engine.Resolve", trace.WithAttributes(
		attribute.String("checkout.description_type", string(rc.DescriptionType)),
		attribute.String("checkout.resource_id", rc.ResourceID),
		attribute.String("checkout.operation", string(rc.Operation)),
		attribute.String("checkout.country", rc.Country),
		attribute.String("checkout.partner", rc.Partner),
	))
	defer span.End()
	start := time.Now()

	if err := rc.Validate(); err != nil {
		return nil, e.fail(ctx, span, rc, err)
	}
	resolve, ok := e.components[rc.DescriptionType]
	if !ok {
		return nil, e.fail(ctx, span, rc, dErrors.New(dErrors.CodeNotFound,
			"no component for description type "+string(rc.DescriptionType)))
	}

	action, err := e.assembler.Assemble(ctx, resolve(ctx, rc))
	if err != nil {
		return nil, e.fail(ctx, span, rc, err)
	}
	e.metrics.ObserveResolveLatency(string(rc.DescriptionType), string(rc.Operation), time.Since(start))
	e.succeed(ctx, span, action)
	return action, nil
}

// ResolveChallengeStep applies a caller step to a challenge session.
func (e *Engine) ResolveChallengeStep(ctx context.Context, sessionID string, input challenge.StepInput) (*models.ClientAction, error) {
	ctx, span := e.tracer.Start(ctx, "engine.ResolveChallengeStep", trace.WithAttributes(
		attribute.String("checkout.session_id", sessionID),
		attribute.String("checkout.step", string(input.Kind)),
	))
	defer span.End()

	rc := models.Context{DescriptionType: models.TypeChallenge}
	if e.challenges == nil {
		return nil, e.fail(ctx, span, rc, dErrors.New(dErrors.CodeNotFound, "challenges are not enabled"))
	}
	res, err := e.challenges.Step(ctx, sessionID, input)
	action, err := e.assembler.Assemble(ctx, challengeOutcome(res, err))
	if err != nil {
		return nil, e.fail(ctx, span, rc, err)
	}
	e.succeed(ctx, span, action)
	return action, nil
}

// CurrentChallengeStep re-renders a session without changing it.
func (e *Engine) CurrentChallengeStep(ctx context.Context, sessionID string) (*models.ClientAction, error) {
	ctx, span := e.tracer.Start(ctx, "engine.CurrentChallengeStep", trace.WithAttributes(
		attribute.String("checkout.session_id", sessionID),
	))
	defer span.End()

	rc := models.Context{DescriptionType: models.TypeChallenge}
	if e.challenges == nil {
		return nil, e.fail(ctx, span, rc, dErrors.New(dErrors.CodeNotFound, "challenges are not enabled"))
	}
	res, err := e.challenges.Current(ctx, sessionID)
	action, err := e.assembler.Assemble(ctx, challengeOutcome(res, err))
	if err != nil {
		return nil, e.fail(ctx, span, rc, err)
	}
	e.succeed(ctx, span, action)
	return action, nil
}

func (e *Engine) describe(ctx context.Context, rc models.Context) clientaction.Outcome {
	tree, err := e.pipeline.Describe(ctx, rc)
	if err != nil {
		return clientaction.Outcome{Err: err}
	}
	return clientaction.Outcome{Tree: tree}
}

func (e *Engine) describeOrRedirect(ctx context.Context, rc models.Context) clientaction.Outcome {
	if rc.Operation != models.OperationRedirect {
		return e.describe(ctx, rc)
	}
	tree, err := e.pipeline.Describe(ctx, rc)
	if err != nil {
		return clientaction.Outcome{Err: err}
	}
	decision, err := e.selector.Select(ctx, tree, rc)
	if err != nil {
		return clientaction.Outcome{Err: err}
	}
	return clientaction.Outcome{Redirect: decision}
}

func (e *Engine) startChallenge(ctx context.Context, rc models.Context) clientaction.Outcome {
	if e.challenges == nil {
		return clientaction.Outcome{Err: dErrors.New(dErrors.CodeNotFound, "challenges are not enabled")}
	}
	return challengeOutcome(e.challenges.Start(ctx, rc))
}

func challengeOutcome(res *challenge.Result, err error) clientaction.Outcome {
	if err != nil {
		return clientaction.Outcome{Err: err}
	}
	return clientaction.Outcome{Challenge: res}
}

func (e *Engine) succeed(ctx context.Context, span trace.Span, action *models.ClientAction) {
	e.metrics.IncrementAction(string(action.Type))
	if span.IsRecording() {
		span.SetAttributes(attribute.String("checkout.action_type", string(action.Type)))
	}
	if action.Failure != nil {
		e.logger.InfoContext(ctx, "resolution ended in a terminal business state",
			"request_id", requestcontext.RequestID(ctx),
			"code", action.Failure.Code,
		)
	}
}

func (e *Engine) fail(ctx context.Context, span trace.Span, rc models.Context, err error) error {
	code := dErrors.CodeOf(err)
	if code == "" {
		code = dErrors.CodeInternal
		err = dErrors.Wrap(err, code, "resolution failed")
	}
	e.metrics.IncrementError(string(code))
	if span.IsRecording() {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
	}

	args := []any{
		"request_id", requestcontext.RequestID(ctx),
		"description_type", string(rc.DescriptionType),
		"resource_id", rc.ResourceID,
		"partner", rc.Partner,
		"country", rc.Country,
		"code", string(code),
		"error", err,
	}
	switch {
	case code == dErrors.CodeInvariantViolation || code == dErrors.CodeInternal:
		e.logger.ErrorContext(ctx, "resolution failed", args...)
	case dErrors.IsConfiguration(code):
		e.logger.WarnContext(ctx, "resolution failed on configuration", args...)
	default:
		e.logger.InfoContext(ctx, "resolution rejected", args...)
	}
	return err
}
