package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"trivia-quiz-service/internal/domain"
)

// Authenticator mints and validates HS256 bearer tokens for mutation endpoints.
type Authenticator struct {
	secret []byte
	issuer string
	now    func() time.Time
}

func NewAuthenticator(secret, issuer string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}
	return &Authenticator{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Mint issues a token for subject that expires after ttl.
func (a *Authenticator) Mint(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", fmt.Errorf("%w: subject is required", domain.ErrInvalidInput)
	}
	now := a.now()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    a.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify validates the token and returns its subject.
func (a *Authenticator) Verify(tokenStr string) (string, error) {
	if tokenStr == "" {
		return "", fmt.Errorf("%w: empty token", domain.ErrUnauthenticated)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(a.now),
		jwt.WithExpirationRequired(),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return a.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: invalid token: %v", domain.ErrUnauthenticated, err)
	}
	return claims.Subject, nil
}
