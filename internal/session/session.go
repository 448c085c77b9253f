// Package session owns the authenticated session: login, logout, proactive
// and reactive token renewal, and durable persistence. It is the sole
// writer of the credential store; every other component reads session state
// through the Manager.
package session

import (
	"strings"
	"time"

	"github.com/ecoroute/ecoroute-go/internal/api"
)

// State is the manager's lifecycle phase.
type State int

const (
	// StateUninitialized means Init has not been called yet.
	StateUninitialized State = iota
	// StateInitializing means the startup validation is in flight.
	StateInitializing
	// StateAuthenticated means a session exists and renewal is scheduled.
	StateAuthenticated
	// StateAnonymous means no session exists; login is required.
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Session is the active credential pair plus identity claims. Exactly one
// exists per Manager, or none. ExpiresAt is a local estimate: the backend
// does not report token lifetime, so it is computed from the configured
// lifetime at install time.
type Session struct {
	AccessToken  string
	RefreshToken string
	UserID       string
	Name         string
	Email        string
	Role         api.Role
	DriverID     string
	ExpiresAt    time.Time
}

// normalizeRole maps the backend's lowercase role strings onto the
// canonical uppercase Role values.
func normalizeRole(role string) api.Role {
	return api.Role(strings.ToUpper(role))
}
