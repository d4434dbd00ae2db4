// Package auth validates client API keys against SHA-256 hashed keys from
// configuration. The resolved client identity tags audit entries; it does not
// gate per-provider authorization.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/relaygate/relaygate/internal/config"
)

// Client is an authenticated API client identity.
type Client struct {
	Name string
}

// Authenticator validates API keys and resolves client identities.
type Authenticator struct {
	enabled bool
	clients map[string]*Client // keyhash -> client
}

// New creates an authenticator from auth configuration.
func New(cfg config.AuthConfig) *Authenticator {
	a := &Authenticator{
		enabled: cfg.Enabled,
		clients: make(map[string]*Client),
	}
	for _, c := range cfg.Clients {
		a.clients[c.KeyHash] = &Client{Name: c.Name}
	}
	return a
}

// Enabled reports whether API-key authentication is turned on.
func (a *Authenticator) Enabled() bool { return a.enabled }

// ValidateAPIKey validates an API key and returns the associated client.
func (a *Authenticator) ValidateAPIKey(apiKey string) (*Client, error) {
	keyHash := HashAPIKey(apiKey)

	// Constant-time comparison to prevent timing attacks
	for storedHash, c := range a.clients {
		if subtle.ConstantTimeCompare([]byte(keyHash), []byte(storedHash)) == 1 {
			return c, nil
		}
	}

	return nil, fmt.Errorf("invalid API key")
}

// ExtractAPIKey extracts the API key from the Authorization header.
func ExtractAPIKey(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", fmt.Errorf("missing Authorization header")
	}

	// Support "Bearer <key>" format
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid Authorization header format")
	}

	if strings.ToLower(parts[0]) != "bearer" {
		return "", fmt.Errorf("unsupported authorization scheme")
	}

	return parts[1], nil
}

// HashAPIKey creates a SHA-256 hash of an API key for storage.
func HashAPIKey(apiKey string) string {
	hash := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(hash[:])
}
