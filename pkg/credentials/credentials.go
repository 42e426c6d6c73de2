// Package credentials defines the credential model for a UniFi Protect
// controller and the Provider capability used to source credentials at
// retrieval time. The core never fetches or caches secrets itself; callers
// inject a Provider and the retrieved values live only for the duration of
// one retrieval request.
package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// Environment variable names read by EnvProvider.
const (
	EnvHostname = "UNIFI_HOSTNAME"
	EnvUsername = "UNIFI_USERNAME"
	EnvPassword = "UNIFI_PASSWORD"
)

// UnifiCredentials holds the login material for a UniFi Protect controller.
// Fields absent from the input decode as empty strings, never null.
// Equality is structural (comparable with ==).
type UnifiCredentials struct {
	Hostname string `json:"hostname"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// Valid reports whether the credentials are usable for a login attempt.
// Username and password must both be non-empty; hostname is validated
// separately by the caller because it may come from configuration rather
// than the credential source.
func (c UnifiCredentials) Valid() bool {
	return c.Username != "" && c.Password != ""
}

// String implements fmt.Stringer with masked values so that credentials
// embedded in logged structs never leak in cleartext.
func (c UnifiCredentials) String() string {
	return fmt.Sprintf("UnifiCredentials{hostname: %s, username: %s, password: %s}",
		c.Hostname, MaskUsername(c.Username), MaskPassword(c.Password))
}

// MaskUsername masks a username for logging. Usernames longer than three
// characters keep their first three characters with the remainder starred;
// shorter usernames are left as-is since masking them would erase the value
// entirely.
func MaskUsername(username string) string {
	if len(username) <= 3 {
		return username
	}
	return username[:3] + strings.Repeat("*", len(username)-3)
}

// MaskPassword masks a password for logging, preserving only its length.
func MaskPassword(password string) string {
	return strings.Repeat("*", len(password))
}

// Provider supplies controller credentials for a retrieval request.
// Implementations may cache; callers treat every returned value as
// short-lived.
type Provider interface {
	Credentials(ctx context.Context) (UnifiCredentials, error)
}

// StaticProvider returns a fixed set of credentials. Used by tests and by
// embedders that resolve credentials through their own secret store.
type StaticProvider struct {
	Creds UnifiCredentials
}

// Credentials implements Provider.
func (p StaticProvider) Credentials(context.Context) (UnifiCredentials, error) {
	return p.Creds, nil
}

// EnvProvider reads credentials from UNIFI_* environment variables,
// optionally loading a .env file first. The file is loaded at most once
// per provider; a missing file is not an error since the variables may
// already be present in the process environment.
type EnvProvider struct {
	// EnvFile is an optional path to a dotenv file loaded before the
	// first lookup. Empty means environment-only.
	EnvFile string

	loadOnce sync.Once
}

// Credentials implements Provider.
func (p *EnvProvider) Credentials(context.Context) (UnifiCredentials, error) {
	p.loadOnce.Do(func() {
		if p.EnvFile != "" {
			_ = godotenv.Load(p.EnvFile)
		}
	})

	creds := UnifiCredentials{
		Hostname: os.Getenv(EnvHostname),
		Username: os.Getenv(EnvUsername),
		Password: os.Getenv(EnvPassword),
	}
	if !creds.Valid() {
		return UnifiCredentials{}, fmt.Errorf("incomplete credentials in environment: set %s and %s", EnvUsername, EnvPassword)
	}
	return creds, nil
}
