package main

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// bcryptCost is lowered by tests.
var bcryptCost = bcrypt.DefaultCost

func hashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcryptCost)
	return string(b), err
}

func comparePassword(hash, p string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}

// sessionClaims wraps the identity under "data", next to the registered claims.
type sessionClaims struct {
	Data Identity `json:"data"`
	jwt.RegisteredClaims
}

// TokenCodec issues and verifies HS256 session tokens. It is safe for
// concurrent use; its fields are never written after construction.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenCodec(secret string, ttl time.Duration) (*TokenCodec, error) {
	if secret == "" {
		return nil, errors.New("token secret must not be empty")
	}
	if ttl < 0 {
		return nil, errors.New("token ttl must not be negative")
	}
	return &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime of issued tokens and the max age accepted by Verify.
func (c *TokenCodec) TTL() time.Duration { return c.ttl }

// Issue signs id into a token that expires after the codec's TTL.
func (c *TokenCodec) Issue(id Identity) (string, error) {
	if id.ID == "" || id.Username == "" || id.Email == "" {
		return "", ErrIncompleteClaim
	}
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, sessionClaims{
		Data: id,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	})
	return token.SignedString(c.secret)
}

// Verify checks the signature and age of token and returns its identity.
// Failures are ErrExpired or ErrInvalidSignature.
func (c *TokenCodec) Verify(token string) (*Identity, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(c.now))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalidSignature
	}
	if claims.ExpiresAt == nil {
		return nil, ErrInvalidSignature
	}
	if claims.IssuedAt != nil && c.now().Sub(claims.IssuedAt.Time) > c.ttl {
		return nil, ErrExpired
	}
	if claims.Data.ID == "" || claims.Data.Username == "" || claims.Data.Email == "" {
		return nil, ErrInvalidSignature
	}
	id := claims.Data
	return &id, nil
}
