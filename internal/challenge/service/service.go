// Package service implements the challenge state machine:
//
//	initiated -> methodSelected -> pending -> {validated, failed, expired}
//
// A session with more than one delivery method starts in initiated and shows
// a method picker; otherwise it goes straight to pending. A rejected verdict
// moves the session to failed and spends one attempt; the last attempt moves
// it to expired, after which every step fails with ChallengeExpired.
package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"checkout/internal/challenge/models"
	pidl "checkout/internal/pidl/models"
	"checkout/internal/redirect"
	dErrors "checkout/pkg/domain-errors"
	"checkout/pkg/platform/sentinel"
	"checkout/pkg/requestcontext"
)

// Store persists sessions. Update must serialize mutations per id and write
// nothing when fn fails.
type Store interface {
	Create(ctx context.Context, session *models.Session) error
	Get(ctx context.Context, id string) (*models.Session, error)
	Update(ctx context.Context, id string, fn func(*models.Session) error) (*models.Session, error)
}

// Describer resolves a challenge template through the description pipeline
// (overlays and post-processing included).
type Describer interface {
	Describe(ctx context.Context, rc pidl.Context) (*pidl.ResourceDescription, error)
}

// IFrameEmbedder renders redirect-based challenges.
type IFrameEmbedder interface {
	EmbedIFrame(rc pidl.Context, src, statusID string) (*redirect.Decision, error)
}

// TransitionRecorder observes state changes.
type TransitionRecorder interface {
	ObserveChallengeTransition(from, to string)
}

// Template resource ids and the placeholders they carry.
const (
	methodSelectionResource = "methodSelection"
	destinationPlaceholder  = "{destination}"
	attemptsPlaceholder     = "{attempts}"
	attemptsHintID          = "attemptsText"
	changeMethodHintID      = "changeMethodButton"
	methodOptionsHintID     = "methodOptions"
	methodProperty          = "challenge_method"
)

const (
	DefaultTTL      = 10 * time.Minute
	DefaultAttempts = 3
	DefaultStepBase = "/v1/challenges"
)

// Service drives challenge sessions.
type Service struct {
	store           Store
	describer       Describer
	embedder        IFrameEmbedder
	recorder        TransitionRecorder
	logger          *slog.Logger
	ttl             time.Duration
	defaultAttempts int
	stepBase        string
}

// Option configures a Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTTL sets how long a session accepts steps.
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithDefaultAttempts sets the attempt budget used when upstream gives none.
func WithDefaultAttempts(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultAttempts = n
		}
	}
}

// WithStepBase sets the URL prefix step actions post to.
func WithStepBase(base string) Option {
	return func(s *Service) {
		s.stepBase = strings.TrimRight(base, "/")
	}
}

// WithEmbedder enables redirect-based (threeDS) challenges.
func WithEmbedder(embedder IFrameEmbedder) Option {
	return func(s *Service) {
		s.embedder = embedder
	}
}

// WithRecorder sets the transition observer.
func WithRecorder(recorder TransitionRecorder) Option {
	return func(s *Service) {
		s.recorder = recorder
	}
}

// New creates a Service.
func New(store Store, describer Describer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "challenge store is required")
	}
	if describer == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "challenge describer is required")
	}
	s := &Service{
		store:           store,
		describer:       describer,
		logger:          slog.Default(),
		ttl:             DefaultTTL,
		defaultAttempts: DefaultAttempts,
		stepBase:        DefaultStepBase,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Start creates the session described by rc.Challenge and renders its first
// step. Starting a session id that already exists re-renders its current step
// without changing it, unless its TTL has passed.
func (s *Service) Start(ctx context.Context, rc pidl.Context) (*models.Result, error) {
	session, err := s.newSession(ctx, rc)
	if err != nil {
		return nil, err
	}

	err = s.store.Create(ctx, session)
	switch {
	case errors.Is(err, sentinel.ErrConflict):
		existing, getErr := s.store.Get(ctx, session.ID)
		if getErr != nil {
			return nil, translate(getErr)
		}
		if existing.IsExpiredAt(requestcontext.Now(ctx)) && !existing.State.IsTerminal() {
			return nil, expiredError(existing.ID)
		}
		return s.render(ctx, existing)
	case err != nil:
		return nil, translate(err)
	}

	s.observe(models.StateInitiated, session.State)
	s.logger.InfoContext(ctx, "challenge started",
		"session_id", session.ID,
		"challenge_type", string(session.Type),
		"state", string(session.State),
		"methods", len(session.Methods),
		"remaining_attempts", session.RemainingAttempts,
		"partner", session.Partner,
	)
	return s.render(ctx, session)
}

func (s *Service) newSession(ctx context.Context, rc pidl.Context) (*models.Session, error) {
	snap := rc.Challenge
	if snap == nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "challenge snapshot is required")
	}
	typ := models.Type(snap.Type)
	if !typ.IsValid() {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported challenge type: "+snap.Type)
	}
	if typ == models.TypeThreeDS {
		if snap.ChallengeURL == "" {
			return nil, dErrors.New(dErrors.CodeBadRequest, "threeDS challenge requires a challenge url")
		}
		if s.embedder == nil {
			return nil, dErrors.New(dErrors.CodeUnsupportedRedirectionStrategy, "threeDS challenges are not configured")
		}
	} else if len(snap.Methods) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "challenge requires at least one delivery method")
	}

	now := requestcontext.Now(ctx)
	session := &models.Session{
		ID:                snap.SessionID,
		Type:              typ,
		State:             models.StateInitiated,
		Methods:           append([]pidl.ChallengeMethod(nil), snap.Methods...),
		RemainingAttempts: snap.RemainingAttempts,
		ChallengeURL:      snap.ChallengeURL,
		Partner:           rc.Partner,
		Country:           rc.Country,
		Language:          rc.Language,
		Flights:           append([]string(nil), rc.Flights...),
		CreatedAt:         now,
		UpdatedAt:         now,
		ExpiresAt:         now.Add(s.ttl),
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if rc.Instrument != nil {
		session.InstrumentID = rc.Instrument.ID
	}
	if session.RemainingAttempts <= 0 {
		session.RemainingAttempts = s.defaultAttempts
	}
	if len(session.Methods) > 0 {
		session.SelectedMethod = session.Methods[0].ID
		if _, ok := session.Method(snap.DefaultMethod); ok {
			session.SelectedMethod = snap.DefaultMethod
		}
	}
	if len(session.Methods) <= 1 {
		session.State = models.StatePending
	}
	return session, nil
}

// Current renders the session's current step without changing it.
func (s *Service) Current(ctx context.Context, sessionID string) (*models.Result, error) {
	session, err := s.store.Get(ctx, sessionID)
	if err != nil {
		return nil, translate(err)
	}
	if session.IsExpiredAt(requestcontext.Now(ctx)) && !session.State.IsTerminal() {
		return nil, expiredError(session.ID)
	}
	return s.render(ctx, session)
}

// Step applies one caller step to the session.
func (s *Service) Step(ctx context.Context, sessionID string, input models.StepInput) (*models.Result, error) {
	var from, via models.State
	var exhausted bool
	session, err := s.store.Update(ctx, sessionID, func(sess *models.Session) error {
		from = sess.State
		now := requestcontext.Now(ctx)
		if sess.State == models.StateExpired {
			return expiredError(sess.ID)
		}
		if sess.State == models.StateValidated {
			return dErrors.New(dErrors.CodeInvalidState, "challenge session is already validated")
		}
		if sess.IsExpiredAt(now) {
			sess.State = models.StateExpired
			sess.UpdatedAt = now
			exhausted = true
			return nil
		}
		if err := apply(sess, input); err != nil {
			return err
		}
		if sess.State == models.StateMethodSelected {
			// The prompt for the chosen method is issued in this same step.
			via = sess.State
			sess.State = models.StatePending
		}
		exhausted = sess.State == models.StateExpired
		sess.UpdatedAt = now
		return nil
	})
	if err != nil {
		if dErrors.Is(err, dErrors.CodeChallengeExpired) {
			s.logger.InfoContext(ctx, "step on expired challenge rejected", "session_id", sessionID)
		}
		return nil, translate(err)
	}

	if via != "" {
		s.observe(from, via)
		s.observe(via, session.State)
	} else {
		s.observe(from, session.State)
	}
	s.logger.InfoContext(ctx, "challenge step applied",
		"session_id", session.ID,
		"step", string(input.Kind),
		"from", string(from),
		"state", string(session.State),
		"remaining_attempts", session.RemainingAttempts,
	)
	if exhausted {
		return nil, expiredError(session.ID)
	}
	return s.render(ctx, session)
}

func apply(sess *models.Session, input models.StepInput) error {
	switch input.Kind {
	case models.StepSelectMethod:
		if sess.Type == models.TypeThreeDS {
			return dErrors.New(dErrors.CodeInvalidState, "threeDS challenges have no delivery methods")
		}
		if _, ok := sess.Method(input.MethodID); !ok {
			return dErrors.New(dErrors.CodeBadRequest, "unknown challenge method: "+input.MethodID)
		}
		sess.SelectedMethod = input.MethodID
		sess.State = models.StateMethodSelected
		return nil
	case models.StepVerdict:
		if !sess.State.AcceptsVerdict() {
			return dErrors.New(dErrors.CodeInvalidState, "select a challenge method before submitting a verdict")
		}
		if input.Verified {
			sess.State = models.StateValidated
			return nil
		}
		if sess.RemainingAttempts > 0 {
			sess.RemainingAttempts--
		}
		sess.State = models.StateFailed
		if sess.RemainingAttempts == 0 {
			sess.State = models.StateExpired
		}
		return nil
	default:
		return dErrors.New(dErrors.CodeBadRequest, "unsupported challenge step: "+string(input.Kind))
	}
}

func (s *Service) render(ctx context.Context, session *models.Session) (*models.Result, error) {
	switch session.State {
	case models.StateValidated:
		return &models.Result{Session: session, Completed: true}, nil
	case models.StateExpired:
		return nil, expiredError(session.ID)
	case models.StateInitiated:
		prompt, err := s.methodSelection(ctx, session)
		if err != nil {
			return nil, err
		}
		return &models.Result{Session: session, Prompt: prompt}, nil
	default:
		prompt, err := s.pendingPrompt(ctx, session)
		if err != nil {
			return nil, err
		}
		return &models.Result{Session: session, Prompt: prompt}, nil
	}
}

func (s *Service) methodSelection(ctx context.Context, session *models.Session) (*pidl.ResourceDescription, error) {
	rc := session.Context()
	rc.ResourceID = methodSelectionResource
	desc, err := s.describer.Describe(ctx, rc)
	if err != nil {
		return nil, err
	}

	if prop, ok := desc.Data[methodProperty]; ok {
		selected := session.SelectedMethod
		prop.DefaultValue = &selected
		desc.Data[methodProperty] = prop
	}
	options := make([]pidl.DisplayHint, 0, len(session.Methods))
	for _, m := range session.Methods {
		options = append(options, pidl.DisplayHint{
			ID:   "method_" + m.ID,
			Kind: pidl.HintButton,
			Text: m.Destination,
			Payload: map[string]string{
				"methodId": m.ID,
				"type":     m.Type,
			},
			Action: &pidl.HintAction{Type: pidl.ActionRestAction, Href: s.stepURL(session.ID), Method: "POST"},
		})
	}
	if group := pidl.FindHint(desc.Display, methodOptionsHintID); group != nil {
		group.Children = options
	} else {
		desc.Display = append(desc.Display, options...)
	}
	s.wireSteps(desc, session)
	return desc, nil
}

func (s *Service) pendingPrompt(ctx context.Context, session *models.Session) (*pidl.ResourceDescription, error) {
	if session.Type == models.TypeThreeDS {
		decision, err := s.embedder.EmbedIFrame(session.Context(), session.ChallengeURL, session.ID)
		if err != nil {
			return nil, err
		}
		return decision.Resource, nil
	}

	rc := session.Context()
	rc.ResourceID = string(session.Type)
	desc, err := s.describer.Describe(ctx, rc)
	if err != nil {
		return nil, err
	}

	method, _ := session.Selected()
	replacer := strings.NewReplacer(
		destinationPlaceholder, method.Destination,
		attemptsPlaceholder, strconv.Itoa(session.RemainingAttempts),
	)
	pidl.WalkHints(desc.Display, func(h *pidl.DisplayHint) {
		h.Text = replacer.Replace(h.Text)
		switch h.ID {
		case attemptsHintID:
			h.Hidden = session.State != models.StateFailed
		case changeMethodHintID:
			h.Hidden = len(session.Methods) < 2
		}
	})
	s.wireSteps(desc, session)
	return desc, nil
}

// wireSteps points submit and poll actions at the session's step endpoint.
func (s *Service) wireSteps(desc *pidl.ResourceDescription, session *models.Session) {
	step := s.stepURL(session.ID)
	pidl.WalkHints(desc.Display, func(h *pidl.DisplayHint) {
		switch {
		case h.HasTag("submit"):
			h.Action = &pidl.HintAction{Type: pidl.ActionSubmit, Href: step, Method: "POST"}
		case h.ID == changeMethodHintID:
			h.Action = &pidl.HintAction{Type: pidl.ActionRestAction, Href: step, Method: "POST"}
		case h.Action != nil && h.Action.Type == pidl.ActionPoll && h.Action.Href == "":
			h.Action.Href = s.stepBase + "/" + url.PathEscape(session.ID)
		case h.Action != nil && h.Action.Type == pidl.ActionRestAction && h.Action.Href == "":
			h.Action.Href = step
		}
	})
}

func (s *Service) stepURL(id string) string {
	return s.stepBase + "/" + url.PathEscape(id) + "/steps"
}

func (s *Service) observe(from, to models.State) {
	if s.recorder != nil && from != to {
		s.recorder.ObserveChallengeTransition(string(from), string(to))
	}
}

func expiredError(id string) error {
	return dErrors.New(dErrors.CodeChallengeExpired, "challenge session "+id+" has expired; start over")
}

// translate maps store sentinels onto domain codes and passes domain errors
// through unchanged.
func translate(err error) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "challenge session not found")
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "challenge session was modified concurrently")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "challenge store failure")
	}
}
