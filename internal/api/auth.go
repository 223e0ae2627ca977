package api

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail signature or claim
// validation.
var ErrInvalidToken = errors.New("invalid token")

// TokenVerifier validates viewer tokens. With no secret configured it runs
// permissive, for local development: any token is accepted and the subject
// claim, when present, still names the participant.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) *TokenVerifier {
	if secret == "" {
		return &TokenVerifier{}
	}
	return &TokenVerifier{secret: []byte(secret)}
}

// Verify returns the participant id carried by the token.
func (v *TokenVerifier) Verify(token string) (string, error) {
	if len(v.secret) == 0 {
		return subjectOrRandom(token), nil
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

func subjectOrRandom(token string) string {
	if token == "" {
		return uuid.NewString()
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return uuid.NewString()
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		return sub
	}
	return uuid.NewString()
}
