package httptransport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	challenge "checkout/internal/challenge/models"
	"checkout/internal/pidl/models"
	"checkout/internal/transport/http/mocks"
	dErrors "checkout/pkg/domain-errors"
	"checkout/pkg/testutil"
)

const iPhoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

type HandlerSuite struct {
	suite.Suite
	ctrl     *gomock.Controller
	resolver *mocks.MockActionResolver
	router   chi.Router
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.resolver = mocks.NewMockActionResolver(s.ctrl)
	s.router = chi.NewRouter()
	New(s.resolver, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router)
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func pidlAction() *models.ClientAction {
	return &models.ClientAction{
		Type: models.ActionTypePidl,
		Pidl: &models.PidlAction{Resources: []models.ResourceDescription{{
			Key: models.Key{Type: models.TypeAddress, Country: "us", ResourceID: "billing", Operation: models.OperationAdd},
		}}},
	}
}

func (s *HandlerSuite) TestResolve() {
	s.Run("normalized context is resolved into a pidl action", func() {
		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, rc models.Context) (*models.ClientAction, error) {
				s.Equal("us", rc.Country)
				s.Equal("cart", rc.Partner)
				s.Equal(models.OperationAdd, rc.Operation)
				s.Equal("en-us", rc.Language)
				return pidlAction(), nil
			})

		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/descriptions/resolve",
			`{"country":" US ","partner":"Cart","description_type":"address","resource_id":"billing"}`)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		got := testutil.UnmarshalResponse[models.ClientAction](s.T(), rr)
		s.Equal(models.ActionTypePidl, got.Type)
		s.Require().NotNil(got.Pidl)
		s.Len(got.Pidl.Resources, 1)
	})

	s.Run("user agent falls back to the request header", func() {
		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).DoAndReturn(
			func(_ context.Context, rc models.Context) (*models.ClientAction, error) {
				s.Equal(iPhoneUA, rc.UserAgent)
				return pidlAction(), nil
			})

		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/descriptions/resolve",
			`{"country":"us","partner":"cart","description_type":"address","resource_id":"billing"}`)
		req = testutil.WithClientMetadata(req, "192.0.2.1", iPhoneUA)
		testutil.AssertStatusOK(s.T(), testutil.DoRequest(s.router, req))
	})

	s.Run("malformed json is rejected before resolution", func() {
		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Times(0)
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/descriptions/resolve", "{bad-json")
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("unknown fields are rejected", func() {
		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Times(0)
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/descriptions/resolve",
			`{"country":"us","partner":"cart","description_type":"address","resource_id":"billing","colour":"red"}`)
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusBadRequest)
	})

	s.Run("missing required fields are a bad request", func() {
		s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Times(0)
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/descriptions/resolve",
			`{"partner":"cart","description_type":"address","resource_id":"billing"}`)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})

	s.Run("resolution errors map onto statuses", func() {
		cases := []struct {
			err    error
			status int
			code   string
		}{
			{dErrors.New(dErrors.CodeNotFound, "no template"), http.StatusNotFound, "not_found"},
			{dErrors.New(dErrors.CodeUnsupportedRedirectionStrategy, "no strategy"), http.StatusUnprocessableEntity, "unsupported_redirection_strategy"},
			{dErrors.New(dErrors.CodeOverrideConflict, "two claims"), http.StatusInternalServerError, "override_conflict"},
			{errors.New("boom"), http.StatusInternalServerError, "internal_error"},
		}
		for _, tc := range cases {
			s.resolver.EXPECT().Resolve(gomock.Any(), gomock.Any()).Return(nil, tc.err)
			req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/descriptions/resolve",
				`{"country":"us","partner":"cart","description_type":"address","resource_id":"billing"}`)
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertStatusAndError(s.T(), rr, tc.status, tc.code)
		}
	})
}

func (s *HandlerSuite) TestChallengeSteps() {
	s.Run("verdict is forwarded with the path session id", func() {
		s.resolver.EXPECT().ResolveChallengeStep(gomock.Any(), "sess_1",
			challenge.StepInput{Kind: challenge.StepVerdict, Verified: true}).
			Return(&models.ClientAction{
				Type:    models.ActionTypeSuccess,
				Success: &models.SuccessAction{SessionID: "sess_1", InstrumentID: "pi_1"},
			}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/challenges/sess_1/steps",
			map[string]any{"kind": "verdict", "verified": true})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatusOK(s.T(), rr)
		got := testutil.UnmarshalResponse[models.ClientAction](s.T(), rr)
		s.Equal(models.ActionTypeSuccess, got.Type)
		s.Equal("pi_1", got.Success.InstrumentID)
	})

	s.Run("expired session is a failure action with status gone", func() {
		s.resolver.EXPECT().ResolveChallengeStep(gomock.Any(), "sess_1", gomock.Any()).
			Return(&models.ClientAction{
				Type:    models.ActionTypeFailure,
				Failure: &models.FailureAction{Code: string(dErrors.CodeChallengeExpired), Message: "start over"},
			}, nil)

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/challenges/sess_1/steps",
			map[string]any{"kind": "verdict"})
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusGone)
		got := testutil.UnmarshalResponse[models.ClientAction](s.T(), rr)
		s.Require().NotNil(got.Failure)
		s.False(got.Failure.Retryable)
	})

	s.Run("step validation", func() {
		s.resolver.EXPECT().ResolveChallengeStep(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		for _, body := range []string{`{}`, `{"kind":"resend"}`, `{"kind":"selectMethod"}`} {
			req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/v1/challenges/sess_1/steps", body)
			rr := testutil.DoRequest(s.router, req)
			testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
		}
	})

	s.Run("current step of an unknown session", func() {
		s.resolver.EXPECT().CurrentChallengeStep(gomock.Any(), "missing").
			Return(nil, dErrors.New(dErrors.CodeNotFound, "challenge session not found"))
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/v1/challenges/missing"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusNotFound, "not_found")
	})
}

func TestStepRequestInput(t *testing.T) {
	req := &StepRequest{Kind: " selectMethod ", MethodID: " sms "}
	require.NoError(t, req.Validate())
	assert.Equal(t, challenge.StepInput{Kind: challenge.StepSelectMethod, MethodID: "sms"}, req.Input())
}
