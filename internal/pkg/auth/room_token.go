package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// RelayRole scopes what a relay connection may do in its room.
type RelayRole string

const (
	// RelayRoleDriver may publish positions.
	RelayRoleDriver RelayRole = "driver"
	// RelayRoleCustomer only receives positions.
	RelayRoleCustomer RelayRole = "customer"
)

// RoomClaims are the verified contents of a relay room token.
type RoomClaims struct {
	DeliveryID string
	Subject    string
	Role       RelayRole
	ExpiresAt  time.Time
}

type roomClaims struct {
	DeliveryID string `json:"delivery_id"`
	Role       string `json:"role"`
	jwt.RegisteredClaims
}

// RoomTokens issues and verifies tokens scoped to a single delivery room.
type RoomTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewRoomTokens creates a room token issuer.
func NewRoomTokens(secret string, opts Options) *RoomTokens {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RoomTokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token granting role in the room of deliveryID.
func (r *RoomTokens) Issue(deliveryID, subject string, role RelayRole) (string, time.Time, error) {
	now := r.now()
	expires := now.Add(r.ttl)
	claims := roomClaims{
		DeliveryID: deliveryID,
		Role:       string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Audience:  jwt.ClaimStrings{relayAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(r.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// Verify validates a room token.
func (r *RoomTokens) Verify(token string) (RoomClaims, error) {
	claims := &roomClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(relayAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(r.now),
	)
	if err != nil || !parsed.Valid {
		return RoomClaims{}, ErrInvalidToken
	}

	role := RelayRole(claims.Role)
	if claims.DeliveryID == "" || claims.Subject == "" || (role != RelayRoleDriver && role != RelayRoleCustomer) {
		return RoomClaims{}, ErrInvalidToken
	}
	return RoomClaims{
		DeliveryID: claims.DeliveryID,
		Subject:    claims.Subject,
		Role:       role,
		ExpiresAt:  claims.ExpiresAt.Time,
	}, nil
}
