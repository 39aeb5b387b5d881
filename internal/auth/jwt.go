package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"colabtrack/internal/model"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("invalid token")
)

// Identity is what a session token proves about its bearer.
type Identity struct {
	Email     string
	Role      model.Role
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	// ClockSkew is tolerated on both exp and iat checks.
	ClockSkew time.Duration
	// RefreshGrace bounds how long after expiry a token can still be refreshed.
	// Zero means no bound.
	RefreshGrace time.Duration
}

type TokenService struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenService(cfg TokenConfig) *TokenService {
	return &TokenService{cfg: cfg, now: time.Now}
}

// WithClock replaces the time source; used by tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

func (s *TokenService) Generate(id Identity) (string, error) {
	if id.Email == "" {
		return "", ErrTokenInvalid
	}
	now := s.now()
	claims := Claims{
		Role: id.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Email,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.cfg.Secret)
}

// Verify checks signature and expiry and returns the identity carried by the token.
func (s *TokenService) Verify(tokenStr string) (Identity, error) {
	claims, err := s.parse(tokenStr,
		jwt.WithLeeway(s.cfg.ClockSkew),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrTokenExpired
		}
		return Identity{}, ErrTokenInvalid
	}
	return identityFrom(claims), nil
}

// Refresh issues a new token for the subject of oldToken. Signature, structure and
// issuer are checked; an expired token is accepted within RefreshGrace.
func (s *TokenService) Refresh(oldToken string) (string, Identity, error) {
	claims, err := s.parse(oldToken, jwt.WithoutClaimsValidation())
	if err != nil {
		return "", Identity{}, ErrTokenInvalid
	}
	// WithoutClaimsValidation skips the WithIssuer check too.
	if claims.ExpiresAt == nil || (s.cfg.Issuer != "" && claims.Issuer != s.cfg.Issuer) {
		return "", Identity{}, ErrTokenInvalid
	}
	if s.cfg.RefreshGrace > 0 {
		deadline := claims.ExpiresAt.Add(s.cfg.RefreshGrace + s.cfg.ClockSkew)
		if s.now().After(deadline) {
			return "", Identity{}, ErrTokenExpired
		}
	}

	id := identityFrom(claims)
	token, err := s.Generate(id)
	if err != nil {
		return "", Identity{}, err
	}
	fresh, err := s.Verify(token)
	if err != nil {
		return "", Identity{}, err
	}
	return token, fresh, nil
}

func (s *TokenService) parse(tokenStr string, opts ...jwt.ParserOption) (*Claims, error) {
	opts = append(opts,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if s.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return s.cfg.Secret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func identityFrom(c *Claims) Identity {
	id := Identity{Email: c.Subject, Role: c.Role}
	if c.IssuedAt != nil {
		id.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		id.ExpiresAt = c.ExpiresAt.Time
	}
	return id
}
