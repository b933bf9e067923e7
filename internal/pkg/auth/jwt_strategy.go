package auth

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const relayAudience = "relay"

type identityClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTStrategy verifies HS256 identity tokens issued by the user service.
type JWTStrategy struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTStrategy builds JWTStrategy with provided secret and options.
func NewJWTStrategy(secret string, opts Options) *JWTStrategy {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &JWTStrategy{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// IssueToken signs an identity token for the principal.
func (s *JWTStrategy) IssueToken(p Principal) (string, error) {
	now := s.now()
	claims := identityClaims{
		Role: string(p.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ParseToken validates token and returns the principal it carries.
func (s *JWTStrategy) ParseToken(token string) (Principal, error) {
	claims := &identityClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return Principal{}, ErrInvalidToken
	}

	// room tokens share the signing key by default and must not authenticate API calls
	if slices.Contains(claims.Audience, relayAudience) {
		return Principal{}, ErrInvalidToken
	}

	role := Role(claims.Role)
	if claims.Subject == "" || !role.Valid() {
		return Principal{}, ErrInvalidToken
	}
	return Principal{ID: claims.Subject, Role: role}, nil
}

func (s *JWTStrategy) Name() string {
	return "jwt"
}
