package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/storydesk/storydesk/internal/model"
)

const tokenIssuer = "storydesk"

// Identity is the verified content of a token.
type Identity struct {
	ID    int64      `json:"id"`
	Role  model.Role `json:"role"`
	Email string     `json:"email"`
}

type tokenClaims struct {
	Role  model.Role `json:"role"`
	Email string     `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 identity tokens. Tokens are
// stateless: there is no revocation list, a token is honored until it
// expires.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns an issuer for secret. An empty secret or a
// non-positive ttl is a configuration error.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token issuer: signing secret is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token issuer: ttl must be positive, got %v", ttl)
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

// Issue creates a signed token for the given identity and returns it along
// with its expiry.
func (t *TokenIssuer) Issue(id int64, role model.Role, email string) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	claims := tokenClaims{
		Role:  role,
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(id, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks the signature and expiry of tokenStr. It returns
// ErrExpiredToken for a lapsed token and ErrInvalidToken for anything else
// wrong with it.
func (t *TokenIssuer) Verify(tokenStr string) (*Identity, error) {
	if tokenStr == "" {
		return nil, ErrInvalidToken
	}
	claims := &tokenClaims{}

	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	},
		jwt.WithTimeFunc(t.now),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return nil, ErrInvalidToken
	}
	if !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}

	return &Identity{ID: id, Role: claims.Role, Email: claims.Email}, nil
}
