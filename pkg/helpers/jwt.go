package helpers

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenKind separates access tokens from refresh tokens. Each kind is signed
// with its own secret and carries its kind in the "typ" claim.
type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// JWTManager handles generation and validation of JWT tokens
type JWTManager struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	now func() time.Time
}

func NewJWTManager(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *JWTManager {
	return &JWTManager{
		AccessSecret:  []byte(accessSecret),
		RefreshSecret: []byte(refreshSecret),
		AccessTTL:     accessTTL,
		RefreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

type Claims struct {
	UserID   string    `json:"uid"`
	Kind     TokenKind `json:"typ"`
	Email    string    `json:"email,omitempty"`
	Username string    `json:"username,omitempty"`
	Fullname string    `json:"fullname,omitempty"`
	jwt.RegisteredClaims
}

// AccessIdentity is the user data embedded into access tokens.
type AccessIdentity struct {
	UserID   string
	Email    string
	Username string
	Fullname string
}

func (m *JWTManager) clock() time.Time {
	if m.now == nil {
		return time.Now()
	}
	return m.now()
}

func (m *JWTManager) GenerateAccessToken(id AccessIdentity) (string, time.Time, error) {
	return m.sign(&Claims{
		UserID:   id.UserID,
		Kind:     AccessToken,
		Email:    id.Email,
		Username: id.Username,
		Fullname: id.Fullname,
	}, m.AccessSecret, m.AccessTTL)
}

func (m *JWTManager) GenerateRefreshToken(userID string) (string, time.Time, error) {
	return m.sign(&Claims{UserID: userID, Kind: RefreshToken}, m.RefreshSecret, m.RefreshTTL)
}

func (m *JWTManager) sign(claims *Claims, secret []byte, ttl time.Duration) (string, time.Time, error) {
	now := m.clock()
	exp := now.Add(ttl)
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		ExpiresAt: jwt.NewNumericDate(exp),
		IssuedAt:  jwt.NewNumericDate(now),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := t.SignedString(secret)
	return s, exp, err
}

// Verify parses tokenStr as a token of the given kind. All failures wrap
// ErrInvalidToken; expired tokens additionally wrap ErrTokenExpired.
func (m *JWTManager) Verify(tokenStr string, kind TokenKind) (*Claims, error) {
	var secret []byte
	switch kind {
	case AccessToken:
		secret = m.AccessSecret
	case RefreshToken:
		secret = m.RefreshSecret
	default:
		return nil, fmt.Errorf("%w: unknown token kind %q", ErrInvalidToken, kind)
	}

	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithTimeFunc(m.clock))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrTokenExpired)
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !tkn.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token", ErrInvalidToken, kind)
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

func (m *JWTManager) ParseAccessToken(tokenStr string) (*Claims, error) {
	return m.Verify(tokenStr, AccessToken)
}

func (m *JWTManager) ParseRefreshToken(tokenStr string) (*Claims, error) {
	return m.Verify(tokenStr, RefreshToken)
}
