// Package auth verifies the join tokens presented by speaker and listener
// WebSocket connections. Adapted from the teacher's internal/auth/jwt.go
// JWTManager, narrowed from a login/refresh-token pair to a single
// short-lived join token carrying room/role/lang claims.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the join-token payload: which room, which role, and for a
// listener which target language it is allowed to subscribe as.
type Claims struct {
	RoomID        string `json:"room"`
	Role          string `json:"role"`
	Lang          string `json:"lang"`
	ParticipantID string `json:"sub"`
	jwt.RegisteredClaims
}

// Manager verifies join tokens signed with an HMAC secret. A zero-value
// secret puts the Manager into open mode, in which Verify rejects every
// token and the transport builds claims from the connection's query
// parameters instead — used for local development without
// JWT_SIGNING_KEY configured.
type Manager struct {
	secret []byte
}

// NewManager builds a Manager. An empty secret means "open mode".
func NewManager(secret string) *Manager {
	return &Manager{secret: []byte(secret)}
}

// Open reports whether the manager has no signing key configured.
func (m *Manager) Open() bool { return len(m.secret) == 0 }

// Verify parses and validates a join token.
func (m *Manager) Verify(tokenStr string) (*Claims, error) {
	if m.Open() {
		return nil, fmt.Errorf("auth manager has no signing key configured")
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid join token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid join token claims")
	}
	return claims, nil
}
