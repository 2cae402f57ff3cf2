// Package returnstate signs and verifies the state parameter carried through
// a provider redirect, binding the return route to one session and intent.
package returnstate

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "remitflow/pkg/domain-errors"
)

const audience = "remitflow-return-route"

// Claims identifies the attempt a return-route hit belongs to.
type Claims struct {
	SessionID string `json:"sid"`
	IntentID  string `json:"iid"`
	jwt.RegisteredClaims
}

// Signer issues and validates HS256 return-state tokens.
type Signer struct {
	key    []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(key, issuer string, ttl time.Duration) *Signer {
	return &Signer{
		key:    []byte(key),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *Signer) Sign(sessionID, intentID string) (string, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		SessionID: sessionID,
		IntentID:  intentID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Audience:  []string{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			ID:        uuid.NewString(),
		},
	})
	signed, err := token.SignedString(s.key)
	if err != nil {
		return "", err
	}
	return signed, nil
}

// Verify parses a state token. Any failure is a bad request: a tampered or
// expired state never turns into a payment outcome.
func (s *Signer) Verify(state string) (*Claims, error) {
	if state == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "missing return state")
	}
	parsed, err := jwt.ParseWithClaims(state, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.key, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeBadRequest, "return state has expired")
		}
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid return state")
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.SessionID == "" || claims.IntentID == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid return state claims")
	}
	return claims, nil
}
