// Package auth is the session guard: one credential pair, opaque tokens,
// no lockout and no audit trail.
package auth

import (
	"errors"
	"os"
	"sync"
	"time"

	"github.com/datafluxo/financas_backend/utils"
)

var ErrorInvalidCredentials = errors.New("invalid login or password")

type Guard struct {
	login        string
	passwordHash string

	mu     sync.Mutex
	tokens map[string]time.Time
	now    func() time.Time
}

// NewGuard holds the stored credential pair. passwordHash is a bcrypt hash.
func NewGuard(login, passwordHash string) *Guard {
	return &Guard{
		login:        login,
		passwordHash: passwordHash,
		tokens:       map[string]time.Time{},
		now:          time.Now,
	}
}

// NewGuardFromEnv reads AUTH_LOGIN and AUTH_PASSWORD_HASH; nil when unset so
// the CLI can run guard-less in development.
func NewGuardFromEnv() *Guard {
	login := os.Getenv("AUTH_LOGIN")
	hash := os.Getenv("AUTH_PASSWORD_HASH")
	if login == "" || hash == "" {
		return nil
	}
	return NewGuard(login, hash)
}

// Authenticate checks the pair and returns an opaque session token. Tokens
// are cached in-process with their expiry.
func (g *Guard) Authenticate(login, password string) (string, error) {
	if login != g.login {
		return "", ErrorInvalidCredentials
	}
	if err := utils.ComparePassword(g.passwordHash, password); err != nil {
		return "", ErrorInvalidCredentials
	}
	token, err := utils.JwtGenerate(login)
	if err != nil {
		return "", err
	}
	g.mu.Lock()
	g.tokens[token] = g.now().Add(utils.TokenLifespan())
	g.pruneLocked()
	g.mu.Unlock()
	return token, nil
}

// Valid reports whether the token is a live session. The in-process cache
// answers first; a token issued by another process still validates through
// its signature.
func (g *Guard) Valid(token string) bool {
	g.mu.Lock()
	expiry, ok := g.tokens[token]
	g.mu.Unlock()
	if ok {
		return g.now().Before(expiry)
	}
	parsed, err := utils.JwtValidate(token)
	return err == nil && parsed.Valid
}

func (g *Guard) pruneLocked() {
	now := g.now()
	for token, expiry := range g.tokens {
		if expiry.Before(now) {
			delete(g.tokens, token)
		}
	}
}
