package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/subsync/backend/internal/infrastructure/config"
)

// DefaultIssuer is used when no issuer is configured
const DefaultIssuer = "subsync"

// ScopeAdmin grants access to the admin API
const ScopeAdmin = "admin"

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrMissingSubject   = errors.New("missing subject in claims")
	ErrInsufficientRole = errors.New("token does not carry the admin scope")
	ErrMissingSecret    = errors.New("admin jwt secret is not configured")
)

// Claims are the claims carried by an admin token
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// TokenService signs and validates HS256 admin tokens
type TokenService struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewTokenService creates a token service from the admin config
func NewTokenService(cfg config.AdminConfig) (*TokenService, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrMissingSecret
	}
	issuer := cfg.Issuer
	if issuer == "" {
		issuer = DefaultIssuer
	}
	return &TokenService{
		secret: []byte(cfg.JWTSecret),
		issuer: issuer,
		now:    time.Now,
	}, nil
}

// IssueToken signs an admin token for subject valid for ttl
func (s *TokenService) IssueToken(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrMissingSubject
	}
	now := s.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    s.issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		Scope: ScopeAdmin,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateToken validates an admin token and returns its claims
func (s *TokenService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	},
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	if claims.Scope != ScopeAdmin {
		return nil, ErrInsufficientRole
	}
	return claims, nil
}

// Issuer returns the issuer stamped on and required of tokens
func (s *TokenService) Issuer() string {
	return s.issuer
}
