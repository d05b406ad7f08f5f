// Package session owns the sign-in lifecycle: the only writer of the stored
// credential and the only source of the bearer token the gateway attaches.
package session

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/agro-insight/agroinsight/internal/agro"
	"github.com/agro-insight/agroinsight/internal/logging"
)

// State is the controller's position in the sign-in flow.
type State int

const (
	Unauthenticated State = iota
	Authenticating
	AwaitingSecondFactor
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case AwaitingSecondFactor:
		return "awaiting_second_factor"
	case Authenticated:
		return "authenticated"
	default:
		return "state(" + strconv.Itoa(int(s)) + ")"
	}
}

// Session is the single live sign-in. The token never leaves through JSON or
// logs.
type Session struct {
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	Role      string    `json:"role,omitempty"`
	FarmID    int64     `json:"farm_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Name      string    `json:"name,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// Valid reports whether the session carries a token.
func (s Session) Valid() bool { return s.Token != "" }

// LogValue implements slog.LogValuer.
func (s Session) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("user_id", s.UserID),
		slog.String("role", s.Role),
		slog.Int64("farm_id", s.FarmID),
		slog.Any("token", logging.Secret(s.Token)),
	)
}

func (s Session) withUser(u agro.User) Session {
	if u.ID != "" {
		s.UserID = u.ID
	}
	if u.Role != "" {
		s.Role = u.Role
	}
	if u.FarmID != 0 {
		s.FarmID = u.FarmID
	}
	if u.Email != "" {
		s.Email = u.Email
	}
	if name := u.Name(); name != "" {
		s.Name = name
	}
	return s
}

// fromToken fills what it can from JWT claims. Signatures are the backend's
// concern; the client only reads identity hints and the expiry.
func fromToken(token string) Session {
	s := Session{Token: token}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return s
	}
	if sub, err := claims.GetSubject(); err == nil {
		s.UserID = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		s.ExpiresAt = exp.Time
	}
	if role, ok := claims["role"].(string); ok {
		s.Role = role
	}
	if email, ok := claims["email"].(string); ok {
		s.Email = email
	}
	if farm, ok := claims["farm_id"].(float64); ok {
		s.FarmID = int64(farm)
	}
	return s
}

// expired is false for opaque tokens and tokens without exp.
func (s Session) expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
