// Package auth guards destructive contest operations behind an operator
// password.
package auth

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/okian/belay/pkg/logger"
	"github.com/okian/belay/pkg/metrics"
)

// ErrUnauthorized is returned when the password does not match.
var ErrUnauthorized = errors.New("unauthorized")

// Gate checks a password against a bcrypt hash. A Gate without a hash
// authorizes everything.
type Gate struct {
	hash   []byte
	logger logger.Logger
}

// NewGate returns a gate for hash. An empty hash disables the check; a hash
// bcrypt cannot read is an error.
func NewGate(hash string, l logger.Logger) (*Gate, error) {
	if l == nil {
		l = logger.Get().Named("auth")
	}
	g := &Gate{logger: l}
	if hash == "" {
		return g, nil
	}
	if _, err := bcrypt.Cost([]byte(hash)); err != nil {
		return nil, fmt.Errorf("admin password hash: %w", err)
	}
	g.hash = []byte(hash)
	return g, nil
}

// Enabled reports whether a password is required.
func (g *Gate) Enabled() bool { return len(g.hash) > 0 }

// Check reports whether password is accepted.
func (g *Gate) Check(password string) bool {
	if !g.Enabled() {
		return true
	}
	return bcrypt.CompareHashAndPassword(g.hash, []byte(password)) == nil
}

// Authorize runs onSuccess when password is accepted and returns its error.
// A rejected password returns ErrUnauthorized without calling onSuccess.
func (g *Gate) Authorize(ctx context.Context, password string, onSuccess func(context.Context) error) error {
	if !g.Check(password) {
		metrics.RecordErrorByComponent("auth", "unauthorized")
		g.logger.Warn(ctx, "operator password rejected")
		return ErrUnauthorized
	}
	if onSuccess == nil {
		return nil
	}
	return onSuccess(ctx)
}

// Hash returns a bcrypt hash of password for configuration files.
func Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(h), nil
}
