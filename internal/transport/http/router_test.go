package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout/internal/challenge/service"
	"checkout/internal/challenge/store"
	"checkout/internal/clientaction"
	"checkout/internal/engine"
	jwttoken "checkout/internal/jwt_token"
	"checkout/internal/pidl/models"
	"checkout/internal/pidl/override"
	"checkout/internal/pidl/postprocess"
	"checkout/internal/pidl/repository"
	"checkout/internal/redirect"
	"checkout/internal/settings"
	"checkout/pkg/platform/middleware/request"
	"checkout/pkg/testutil"
)

type stubHealth struct{ err error }

func (h stubHealth) Health(context.Context) error { return h.err }

func newTestEngine(t *testing.T, logger *slog.Logger, provider *settings.StaticProvider) *engine.Engine {
	t.Helper()
	repo, err := repository.Default()
	require.NoError(t, err)

	pipeline, err := engine.NewPipeline(repo,
		override.New(repo, nil, override.WithLogger(logger)),
		postprocess.New(postprocess.WithLogger(logger)),
		provider, logger)
	require.NoError(t, err)

	selector, err := redirect.New(repo, redirect.WithLogger(logger))
	require.NoError(t, err)

	challenges, err := service.New(store.NewMemory(), pipeline,
		service.WithLogger(logger),
		service.WithEmbedder(selector),
	)
	require.NoError(t, err)

	e, err := engine.New(pipeline, selector, clientaction.New(clientaction.WithLogger(logger)),
		engine.WithLogger(logger),
		engine.WithChallenges(challenges),
	)
	require.NoError(t, err)
	return e
}

func newTestRouter(t *testing.T, cfg RouterConfig) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	provider := settings.NewStatic(models.PartnerExperienceSetting{Partner: "cart", RedirectionPattern: "qrCode"})
	return NewRouter(New(newTestEngine(t, logger, provider), logger), cfg, logger)
}

func challengeBody(sessionID string, attempts int) models.Context {
	return models.Context{
		Country:         "us",
		Partner:         "cart",
		DescriptionType: models.TypeChallenge,
		ResourceID:      "otp",
		Operation:       models.OperationRender,
		Instrument:      &models.InstrumentSnapshot{ID: "pi_7"},
		Challenge: &models.ChallengeSnapshot{
			SessionID: sessionID,
			Type:      "otp",
			Methods: []models.ChallengeMethod{
				{ID: "sms", Type: "sms", Destination: "+1-555-***-0000"},
				{ID: "email", Type: "email", Destination: "t****t@domain.com"},
			},
			RemainingAttempts: attempts,
		},
	}
}

func TestRouterResolution(t *testing.T) {
	router := newTestRouter(t, RouterConfig{})

	testutil.Given(t, "a billing address request", func(t *testing.T) {
		body := models.Context{Country: "us", Partner: "cart", DescriptionType: models.TypeAddress, ResourceID: "billing"}

		testutil.When(t, "it is resolved twice at the same request time", func(t *testing.T) {
			first := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/descriptions/resolve", body))
			second := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/descriptions/resolve", body))

			testutil.Then(t, "both responses are the same pidl action", func(t *testing.T) {
				testutil.AssertStatusOK(t, first)
				testutil.AssertStatusOK(t, second)
				assert.JSONEq(t, first.Body.String(), second.Body.String())
				testutil.AssertJSONContains(t, first, "type", "pidl")
			})

			testutil.Then(t, "a request id is echoed", func(t *testing.T) {
				assert.NotEmpty(t, first.Header().Get(request.HeaderRequestID))
			})
		})
	})

	testutil.Given(t, "a partner with a QR redirection pattern", func(t *testing.T) {
		body := models.Context{
			Country:         "us",
			Partner:         "cart",
			DescriptionType: models.TypePaymentMethod,
			ResourceID:      "alipay",
			Operation:       models.OperationRedirect,
			UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			Instrument:      &models.InstrumentSnapshot{ID: "pi_1", Family: "ewallet", Type: "alipay", Status: "pending"},
		}

		testutil.When(t, "an eligible method is redirected", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/descriptions/resolve", body))

			testutil.Then(t, "a QR code is rendered in place", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				got := testutil.UnmarshalResponse[models.ClientAction](t, rr)
				require.NotNil(t, got.Pidl)
				assert.NotNil(t, models.FindHint(got.Pidl.Resources[0].Display, "qrCodeImage"))
			})
		})

		testutil.When(t, "an unmapped method is redirected", func(t *testing.T) {
			unmapped := body
			inst := *body.Instrument
			inst.Type = "carrier_billing"
			unmapped.Instrument = &inst
			unmapped.ResourceID = "carrier_billing"
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/descriptions/resolve", unmapped))

			testutil.Then(t, "the strategy is reported unsupported", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusUnprocessableEntity, "unsupported_redirection_strategy")
			})
		})
	})
}

func TestRouterChallengeFlow(t *testing.T) {
	router := newTestRouter(t, RouterConfig{})

	testutil.Given(t, "a started challenge with one attempt left", func(t *testing.T) {
		rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/descriptions/resolve", challengeBody("sess_http", 1)))
		testutil.AssertStatusOK(t, rr)

		testutil.When(t, "a method is selected", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/challenges/sess_http/steps",
				map[string]any{"kind": "selectMethod", "method_id": "sms"}))

			testutil.Then(t, "the prompt names the destination", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				assert.True(t, strings.Contains(rr.Body.String(), "+1-555-***-0000"))
			})
		})

		testutil.When(t, "the only attempt fails", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewJSONRequest(t, http.MethodPost, "/v1/challenges/sess_http/steps",
				map[string]any{"kind": "verdict", "verified": false}))

			testutil.Then(t, "the caller is told to start over", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusGone)
				got := testutil.UnmarshalResponse[models.ClientAction](t, rr)
				assert.Equal(t, models.ActionTypeFailure, got.Type)
				require.NotNil(t, got.Failure)
				assert.Equal(t, "challenge_expired", got.Failure.Code)
			})
		})

		testutil.When(t, "the expired session is read again", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/challenges/sess_http"))

			testutil.Then(t, "it stays expired", func(t *testing.T) {
				testutil.AssertStatus(t, rr, http.StatusGone)
			})
		})
	})
}

func TestRouterOperationalEndpoints(t *testing.T) {
	testutil.Given(t, "a healthy dependency", func(t *testing.T) {
		router := newTestRouter(t, RouterConfig{
			Checks:  map[string]HealthChecker{"redis": stubHealth{}},
			Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { _, _ = io.WriteString(w, "# metrics") }),
		})

		testutil.Then(t, "healthz reports ok", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
			testutil.AssertStatusOK(t, rr)
			testutil.AssertJSONContains(t, rr, "status", "ok")
		})

		testutil.Then(t, "metrics are mounted", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/metrics"))
			testutil.AssertStatusOK(t, rr)
			assert.Equal(t, "# metrics", rr.Body.String())
		})
	})

	testutil.Given(t, "an unreachable dependency", func(t *testing.T) {
		router := newTestRouter(t, RouterConfig{Checks: map[string]HealthChecker{"redis": stubHealth{err: errors.New("dial tcp")}}})

		testutil.Then(t, "healthz is unavailable", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/healthz"))
			testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
			testutil.AssertJSONContains(t, rr, "status", "degraded")
		})
	})
}


func TestRouterLinkVerification(t *testing.T) {
	signer := jwttoken.NewLinkTokenService("qr-key", "checkout", "qr")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := newTestRouter(t, RouterConfig{Links: NewLinkHandler(signer, logger)})

	verify := func(t *testing.T, token string) *httptest.ResponseRecorder {
		path := "/v1/links/verify?" + url.Values{redirect.ParamToken: {token}}.Encode()
		return testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, path))
	}

	testutil.Given(t, "a QR link token minted for an instrument", func(t *testing.T) {
		token, err := signer.Sign("pi_42", "ewallet", "alipay", time.Now(), 5*time.Minute)
		require.NoError(t, err)

		testutil.When(t, "the scanning device presents it", func(t *testing.T) {
			rr := verify(t, token)

			testutil.Then(t, "the instrument is identified", func(t *testing.T) {
				testutil.AssertStatusOK(t, rr)
				got := testutil.UnmarshalResponse[LinkResponse](t, rr)
				assert.Equal(t, "pi_42", got.InstrumentID)
				assert.Equal(t, "alipay", got.Type)
				assert.False(t, got.ExpiresAt.IsZero())
			})
		})

		testutil.When(t, "the token has been altered", func(t *testing.T) {
			rr := verify(t, token+"x")

			testutil.Then(t, "it is rejected", func(t *testing.T) {
				testutil.AssertStatusAndError(t, rr, http.StatusUnauthorized, "unauthorized")
			})
		})
	})

	testutil.Given(t, "a token past its lifetime", func(t *testing.T) {
		token, err := signer.Sign("pi_42", "ewallet", "alipay", time.Now().Add(-time.Hour), time.Minute)
		require.NoError(t, err)

		testutil.Then(t, "it is rejected", func(t *testing.T) {
			testutil.AssertStatusAndError(t, verify(t, token), http.StatusUnauthorized, "unauthorized")
		})
	})

	testutil.Given(t, "no token", func(t *testing.T) {
		testutil.Then(t, "the request is malformed", func(t *testing.T) {
			rr := testutil.DoRequest(router, testutil.NewRequest(t, http.MethodGet, "/v1/links/verify"))
			testutil.AssertStatusAndError(t, rr, http.StatusBadRequest, "bad_request")
		})
	})
}
