package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken token is malformed or signed with the wrong key
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken token passed its expiry
	ErrExpiredToken = errors.New("expired token")
)

// Claims is the JWT payload issued by the platform's auth service.
// The messaging API only reads identity and organizational role fields.
type Claims struct {
	jwt.RegisteredClaims
	UserID         string `json:"user_id"`
	DisplayName    string `json:"display_name"`
	MembershipRole string `json:"membership_role"`
	StaffRole      string `json:"staff_role,omitempty"`
}

// Manager signs and verifies HMAC JWT tokens
type Manager struct {
	secretKey []byte
	expiry    time.Duration
}

// NewManager creates a JWT manager
func NewManager(secret string, expiry time.Duration) *Manager {
	return &Manager{
		secretKey: []byte(secret),
		expiry:    expiry,
	}
}

// GenerateToken issues a signed token for the given user
func (m *Manager) GenerateToken(userID, displayName, membershipRole, staffRole string) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
		UserID:         userID,
		DisplayName:    displayName,
		MembershipRole: membershipRole,
		StaffRole:      staffRole,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secretKey)
}

// VerifyToken validates a token string and returns its claims
func (m *Manager) VerifyToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
