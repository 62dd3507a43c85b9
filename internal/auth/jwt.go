// Package auth issues and verifies the HS256 tokens used by the API.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer   = "sitehub"
	audience = "sitehub-api"
	leeway   = 30 * time.Second

	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrTokenExpired     = errors.New("token expired")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrMissingJTI       = errors.New("missing jti")
)

// Claims carry the platform role only. Project roles are never put in a
// token; they are looked up per request so revocation is immediate.
// UserID and JTI mirror the registered sub and jti claims.
type Claims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims

	UserID string `json:"-"`
	JTI    string `json:"-"`
}

type Manager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	parser     *jwt.Parser
	now        func() time.Time
}

func NewManager(secret string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithLeeway(leeway),
		),
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) AccessTTL() time.Duration  { return m.accessTTL }
func (m *Manager) RefreshTTL() time.Duration { return m.refreshTTL }

func (m *Manager) GenerateAccessToken(userID, email, role string) (string, error) {
	raw, _, _, err := m.issue(userID, email, role, TokenTypeAccess, m.accessTTL)
	return raw, err
}

// GenerateRefreshToken returns the signed token with its jti, which doubles
// as the refresh_tokens row id.
func (m *Manager) GenerateRefreshToken(userID, email, role string) (raw, jti string, expiresAt time.Time, err error) {
	return m.issue(userID, email, role, TokenTypeRefresh, m.refreshTTL)
}

func (m *Manager) issue(userID, email, role, typ string, ttl time.Duration) (string, string, time.Time, error) {
	now := m.now()
	jti := uuid.NewString()
	exp := now.Add(ttl)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:     email,
		Role:      role,
		TokenType: typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			Subject:   userID,
			ID:        jti,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	})

	raw, err := token.SignedString(m.secret)
	if err != nil {
		return "", "", time.Time{}, fmt.Errorf("sign %s token: %w", typ, err)
	}
	return raw, jti, exp, nil
}

// ParseAndValidate checks signature, issuer, audience and lifetime. Expiry is
// reported as ErrTokenExpired, everything else as ErrInvalidToken.
func (m *Manager) ParseAndValidate(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	_, err := m.parser.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrTokenExpired
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	case claims.Subject == "":
		return nil, ErrInvalidToken
	}

	claims.UserID = claims.Subject
	claims.JTI = claims.ID
	return claims, nil
}

func (m *Manager) verify(tokenStr, wantType string) (*Claims, error) {
	claims, err := m.ParseAndValidate(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != wantType {
		return nil, ErrInvalidTokenType
	}
	return claims, nil
}

func (m *Manager) VerifyAccessToken(tokenStr string) (*Claims, error) {
	return m.verify(tokenStr, TokenTypeAccess)
}

func (m *Manager) VerifyRefreshToken(tokenStr string) (*Claims, error) {
	claims, err := m.verify(tokenStr, TokenTypeRefresh)
	if err != nil {
		return nil, err
	}
	if claims.JTI == "" {
		return nil, ErrMissingJTI
	}
	return claims, nil
}

// HashRefreshToken is an HMAC keyed with the signing secret. Only this hash
// is stored; the raw token lives in the client's cookie.
func (m *Manager) HashRefreshToken(raw string) string {
	mac := hmac.New(sha256.New, m.secret)
	mac.Write([]byte(raw))
	return hex.EncodeToString(mac.Sum(nil))
}
