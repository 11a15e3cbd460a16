package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	AccessToken  = "access"
	RefreshToken = "refresh"
)

var ErrWrongTokenType = errors.New("wrong token type")

type Claims struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 access/refresh tokens.
type Tokens struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Now        func() time.Time
}

func NewTokens(secret string, accessTTL, refreshTTL time.Duration) *Tokens {
	return &Tokens{Secret: []byte(secret), AccessTTL: accessTTL, RefreshTTL: refreshTTL, Now: time.Now}
}

func (t *Tokens) issue(userID, name, typ string, ttl time.Duration) (string, error) {
	now := t.Now()
	claims := Claims{
		UserID: userID,
		Name:   name,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.Secret)
}

func (t *Tokens) Access(userID, name string) (string, error) {
	return t.issue(userID, name, AccessToken, t.AccessTTL)
}

func (t *Tokens) Refresh(userID, name string) (string, error) {
	return t.issue(userID, name, RefreshToken, t.RefreshTTL)
}

// Parse verifies signature, expiry and the expected token type.
func (t *Tokens) Parse(tokenStr, wantType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return t.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.Now))
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Type != wantType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
