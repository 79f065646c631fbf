// Package auth implements the bearer-token gate in front of the
// transcription endpoints.
package auth

import (
	"crypto/subtle"
	"strings"
)

// Denial reasons returned to the client and recorded in the audit trail.
const (
	ReasonMalformed = "Missing or malformed Authorization header"
	ReasonInvalid   = "Invalid API key"
)

// Decision is the tagged outcome of an authorization check.
type Decision struct {
	Allowed bool
	Reason  string // set when denied
}

// Gate validates bearer credentials against the configured shared secret.
// In development mode every request is allowed; this is the documented
// escape hatch for local testing only.
type Gate struct {
	secret      string
	development bool
}

// NewGate creates a gate for the given shared secret.
func NewGate(secret string, development bool) *Gate {
	return &Gate{secret: secret, development: development}
}

// Authorize checks the raw Authorization header value. The header must have
// the exact form "Bearer <token>"; any other shape is a malformed denial,
// a token mismatch is an invalid denial.
func (g *Gate) Authorize(header string) Decision {
	if g.development {
		return Decision{Allowed: true}
	}

	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return Decision{Reason: ReasonMalformed}
	}

	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(g.secret)) != 1 {
		return Decision{Reason: ReasonInvalid}
	}

	return Decision{Allowed: true}
}
