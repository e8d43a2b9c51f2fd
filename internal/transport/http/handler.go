package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	challenge "checkout/internal/challenge/models"
	"checkout/internal/pidl/models"
	dErrors "checkout/pkg/domain-errors"
	"checkout/pkg/platform/httputil"
	"checkout/pkg/platform/middleware/metadata"
	"checkout/pkg/platform/middleware/request"
)

//go:generate mockgen -source=handler.go -destination=mocks/resolver-mocks.go -package=mocks ActionResolver

// ActionResolver turns requests into client actions.
type ActionResolver interface {
	Resolve(ctx context.Context, rc models.Context) (*models.ClientAction, error)
	ResolveChallengeStep(ctx context.Context, sessionID string, input challenge.StepInput) (*models.ClientAction, error)
	CurrentChallengeStep(ctx context.Context, sessionID string) (*models.ClientAction, error)
}

// Handler exposes resolution and challenge steps over HTTP.
type Handler struct {
	resolver ActionResolver
	logger   *slog.Logger
}

// New creates a Handler.
func New(resolver ActionResolver, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{resolver: resolver, logger: logger}
}

// Register registers the resolution routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/descriptions/resolve", h.HandleResolve)
	r.Get("/v1/challenges/{sessionID}", h.HandleCurrentStep)
	r.Post("/v1/challenges/{sessionID}/steps", h.HandleStep)
}

// ResolveRequest is a resolution context posted by the caller.
type ResolveRequest struct {
	models.Context
}

// Validate normalizes the context and checks its required fields.
func (r *ResolveRequest) Validate() error {
	r.Context = r.Context.Normalize()
	return r.Context.Validate()
}

// StepRequest is one caller step on a challenge session.
type StepRequest struct {
	Kind     string `json:"kind"`
	MethodID string `json:"method_id,omitempty"`
	Verified bool   `json:"verified,omitempty"`
}

// Validate checks the step kind and its required fields.
func (r *StepRequest) Validate() error {
	r.Kind = strings.TrimSpace(r.Kind)
	r.MethodID = strings.TrimSpace(r.MethodID)
	switch challenge.StepKind(r.Kind) {
	case challenge.StepSelectMethod:
		if r.MethodID == "" {
			return dErrors.New(dErrors.CodeValidation, "method_id is required to select a method")
		}
	case challenge.StepVerdict:
	case "":
		return dErrors.New(dErrors.CodeValidation, "kind is required")
	default:
		return dErrors.New(dErrors.CodeValidation, "kind must be selectMethod or verdict")
	}
	return nil
}

// Input converts the request into a step input.
func (r *StepRequest) Input() challenge.StepInput {
	return challenge.StepInput{Kind: challenge.StepKind(r.Kind), MethodID: r.MethodID, Verified: r.Verified}
}

// HandleResolve resolves a context into one client action.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}
	rc := req.Context
	if rc.UserAgent == "" {
		rc.UserAgent = metadata.GetUserAgent(ctx)
	}

	action, err := h.resolver.Resolve(ctx, rc)
	h.respond(ctx, w, action, err, start, "resolve",
		"description_type", string(rc.DescriptionType),
		"resource_id", rc.ResourceID,
		"partner", rc.Partner,
	)
}

// HandleStep applies one step to a challenge session.
func (h *Handler) HandleStep(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	sessionID := chi.URLParam(r, "sessionID")

	req, ok := httputil.DecodeAndPrepare[StepRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	action, err := h.resolver.ResolveChallengeStep(ctx, sessionID, req.Input())
	h.respond(ctx, w, action, err, start, "challenge step",
		"session_id", sessionID,
		"kind", req.Kind,
	)
}

// HandleCurrentStep re-renders the pending step of a challenge session.
func (h *Handler) HandleCurrentStep(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionID")

	action, err := h.resolver.CurrentChallengeStep(ctx, sessionID)
	h.respond(ctx, w, action, err, start, "challenge current step",
		"session_id", sessionID,
	)
}

// respond writes the action, or the error envelope. A failure action is
// written with the status of its code so callers can branch on it.
func (h *Handler) respond(ctx context.Context, w http.ResponseWriter, action *models.ClientAction, err error, start time.Time, op string, attrs ...any) {
	attrs = append(attrs,
		"request_id", request.GetRequestID(ctx),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	if err != nil {
		h.logger.WarnContext(ctx, op+" failed", append(attrs, "error", err)...)
		httputil.WriteError(w, err)
		return
	}

	status := http.StatusOK
	if action.Type == models.ActionTypeFailure && action.Failure != nil {
		status = dErrors.ToHTTPStatus(dErrors.Code(action.Failure.Code))
	}
	h.logger.InfoContext(ctx, op+" completed", append(attrs, "action", string(action.Type))...)
	httputil.WriteJSON(w, status, action)
}
