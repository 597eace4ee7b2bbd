// Package credentials stores provider secrets (OAuth tokens) in the OS
// keyring with a fallback to environment variables.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Source indicates where credentials were retrieved from
type Source string

const (
	SourceKeyring     Source = "keyring"
	SourceEnvironment Source = "environment"
	SourceNone        Source = "none"
)

// DefaultAccount is the keyring account used for single-user provider tokens.
const DefaultAccount = "default"

// CredentialInfo contains credential information returned by Get()
type CredentialInfo struct {
	Source  Source // Where credentials came from
	Backend string // Backend name (e.g., "mstodo")
	Account string // Account identifier
	Secret  string // Stored secret, usually a serialized token
	Found   bool   // Whether credentials were found
}

// BackendStatus represents the credential status for a backend
type BackendStatus struct {
	Backend        string
	HasCredentials bool
	Source         Source
}

// Keyring is the interface for keyring operations
type Keyring interface {
	Set(service, account, secret string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// Manager handles credential operations
type Manager struct {
	keyring Keyring
	getenv  func(string) string
}

// ManagerOption is a functional option for Manager
type ManagerOption func(*Manager)

// WithKeyring sets a custom keyring implementation
func WithKeyring(k Keyring) ManagerOption {
	return func(m *Manager) {
		m.keyring = k
	}
}

// WithEnv replaces os.Getenv, mainly for tests
func WithEnv(getenv func(string) string) ManagerOption {
	return func(m *Manager) {
		m.getenv = getenv
	}
}

// NewManager creates a new credential manager
func NewManager(opts ...ManagerOption) *Manager {
	m := &Manager{
		keyring: &systemKeyring{},
		getenv:  os.Getenv,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// normalizeBackend normalizes backend names to lowercase
func normalizeBackend(backend string) string {
	return strings.ToLower(strings.TrimSpace(backend))
}

// serviceName returns the keyring service name for a backend
func serviceName(backend string) string {
	return fmt.Sprintf("done-%s", normalizeBackend(backend))
}

// EnvKey returns the environment variable consulted for a backend's token.
func EnvKey(backend string) string {
	return fmt.Sprintf("DONE_%s_TOKEN", strings.ToUpper(normalizeBackend(backend)))
}

// Set stores a secret in the keyring
func (m *Manager) Set(ctx context.Context, backend, account, secret string) error {
	return m.keyring.Set(serviceName(backend), account, secret)
}

// Get retrieves a secret from available sources (keyring first, then env vars).
// A missing secret is not an error; check CredentialInfo.Found.
func (m *Manager) Get(ctx context.Context, backend, account string) (*CredentialInfo, error) {
	backend = normalizeBackend(backend)

	secret, err := m.keyring.Get(serviceName(backend), account)
	if err == nil && secret != "" {
		return &CredentialInfo{
			Source:  SourceKeyring,
			Backend: backend,
			Account: account,
			Secret:  secret,
			Found:   true,
		}, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, ErrKeyringNotAvailable) {
		return nil, err
	}

	if token := m.getenv(EnvKey(backend)); token != "" {
		return &CredentialInfo{
			Source:  SourceEnvironment,
			Backend: backend,
			Account: account,
			Secret:  token,
			Found:   true,
		}, nil
	}

	return &CredentialInfo{
		Source:  SourceNone,
		Backend: backend,
		Account: account,
		Found:   false,
	}, nil
}

// Delete removes a secret from the keyring
func (m *Manager) Delete(ctx context.Context, backend, account string) error {
	err := m.keyring.Delete(serviceName(backend), account)
	// Idempotent: return nil if not found
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// ListBackends returns the credential status for each backend
func (m *Manager) ListBackends(ctx context.Context, backends []string) ([]BackendStatus, error) {
	var statuses []BackendStatus

	for _, name := range backends {
		info, err := m.Get(ctx, name, DefaultAccount)
		if err != nil {
			return nil, err
		}

		statuses = append(statuses, BackendStatus{
			Backend:        normalizeBackend(name),
			HasCredentials: info.Found,
			Source:         info.Source,
		})
	}

	return statuses, nil
}
