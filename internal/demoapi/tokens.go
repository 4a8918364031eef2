package demoapi

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid or expired token")

// TokenIssuer signs and verifies HS256 access and refresh tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenIssuer creates an issuer. An empty secret generates a random one, so
// tokens do not survive a restart.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generating token secret: %w", err)
		}
	}
	if ttl <= 0 {
		ttl = 60 * time.Minute
	}
	return &TokenIssuer{secret: key, ttl: ttl}, nil
}

// Issue returns an access token and a refresh token for u.
func (ti *TokenIssuer) Issue(u User, ttl time.Duration) (access, refresh string, err error) {
	if ttl <= 0 {
		ttl = ti.ttl
	}
	access, err = ti.sign(u, "access", ttl)
	if err != nil {
		return "", "", err
	}
	refresh, err = ti.sign(u, "refresh", 30*24*time.Hour)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (ti *TokenIssuer) sign(u User, typ string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":      strconv.Itoa(u.ID),
		"username": u.Username,
		"typ":      typ,
		"jti":      uuid.NewString(),
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT: %w", err)
	}
	return signed, nil
}

// Verify checks an access token and returns the user ID it was issued for.
func (ti *TokenIssuer) Verify(token string) (int, error) {
	parsed, err := jwt.Parse(token, func(*jwt.Token) (any, error) {
		return ti.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || claims["typ"] != "access" {
		return 0, ErrInvalidToken
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return 0, ErrInvalidToken
	}
	id, err := strconv.Atoi(sub)
	if err != nil {
		return 0, ErrInvalidToken
	}
	return id, nil
}
