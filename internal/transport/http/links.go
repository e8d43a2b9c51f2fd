package httptransport

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	jwttoken "checkout/internal/jwt_token"
	"checkout/internal/redirect"
	dErrors "checkout/pkg/domain-errors"
	"checkout/pkg/platform/httputil"
	"checkout/pkg/platform/middleware/request"
	"checkout/pkg/requestcontext"
)

// LinkVerifier checks the signed token carried by a QR-code link.
type LinkVerifier interface {
	Validate(token string, now time.Time) (*jwttoken.LinkClaims, error)
}

// LinkHandler answers the device that scanned a QR code with the instrument
// the link was minted for.
type LinkHandler struct {
	verifier LinkVerifier
	logger   *slog.Logger
}

func NewLinkHandler(verifier LinkVerifier, logger *slog.Logger) *LinkHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LinkHandler{verifier: verifier, logger: logger}
}

// Register registers the link routes on r.
func (h *LinkHandler) Register(r chi.Router) {
	r.Get("/v1/links/verify", h.HandleVerify)
}

// LinkResponse identifies the instrument a verified link belongs to.
type LinkResponse struct {
	InstrumentID string    `json:"instrument_id"`
	Family       string    `json:"family,omitempty"`
	Type         string    `json:"type,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// HandleVerify validates the link token in the query string.
func (h *LinkHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	token := strings.TrimSpace(r.URL.Query().Get(redirect.ParamToken))
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "link token is required"))
		return
	}

	claims, err := h.verifier.Validate(token, requestcontext.Now(ctx))
	if err != nil {
		h.logger.WarnContext(ctx, "link token rejected",
			"request_id", request.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := LinkResponse{
		InstrumentID: claims.InstrumentID,
		Family:       claims.Family,
		Type:         claims.Type,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC()
	}
	h.logger.InfoContext(ctx, "link token verified",
		"request_id", request.GetRequestID(ctx),
		"instrument_id", claims.InstrumentID,
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}
