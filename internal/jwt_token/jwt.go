package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "checkout/pkg/domain-errors"
)

// LinkClaims are carried by the signed token appended to QR-code links. The
// phone that scans the code presents the token back, proving the link was
// minted for this instrument and has not expired.
type LinkClaims struct {
	InstrumentID string `json:"piid"`
	Family       string `json:"family,omitempty"`
	Type         string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// LinkTokenService mints and validates short-lived link tokens.
type LinkTokenService struct {
	signingKey []byte
	issuer     string
	audience   string
}

func NewLinkTokenService(signingKey string, issuer string, audience string) *LinkTokenService {
	return &LinkTokenService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
	}
}

// Sign issues a token valid from now for ttl. The token carries no random
// identifier, so the same inputs always produce the same token.
func (s *LinkTokenService) Sign(instrumentID, family, typ string, now time.Time, ttl time.Duration) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, LinkClaims{
		InstrumentID: instrumentID,
		Family:       family,
		Type:         typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.issuer,
			Audience:  []string{s.audience},
			Subject:   instrumentID,
		},
	})

	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign link token")
	}
	return signed, nil
}

// Validate parses tokenString and checks signature, expiry, issuer and
// audience relative to now.
func (s *LinkTokenService) Validate(tokenString string, now time.Time) (*LinkClaims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &LinkClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	},
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "link token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid link token")
	}

	claims, ok := parsed.Claims.(*LinkClaims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid link token claims")
	}
	return claims, nil
}
