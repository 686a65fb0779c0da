// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package keychain stores connection secrets in the OS keychain.
//
// Each configured connection keeps its DSN under its own key, so the config
// file only ever names connections. macOS uses the security command directly;
// other platforms go through the keyring library's native backends.
package keychain

import (
	"errors"
	"runtime"
	"strings"
	"sync"

	"github.com/99designs/keyring"
)

// ServiceName identifies our keychain/credential store namespace.
const ServiceName = "malloy"

// ErrNotFound is returned when no secret is stored under a key.
var ErrNotFound = errors.New("secret not found in keychain")

// Global keychain manager instance
var (
	globalManager *Manager
	mu            sync.Mutex
)

// store is the minimal keychain surface the Manager needs.
type store interface {
	Set(key, value string) error
	Get(key string) (string, error)
	Delete(key string) error
}

// Manager provides thread-safe access to connection secrets.
type Manager struct {
	mu    sync.RWMutex
	store store
}

// NewManager opens the OS keychain.
func NewManager() (*Manager, error) {
	// Try native security backend first on macOS
	if runtime.GOOS == "darwin" {
		if backend, err := newSecurityBackend(); err == nil {
			return &Manager{store: backend}, nil
		}
	}

	ring, err := openRing()
	if err != nil {
		return nil, err
	}
	return NewWithKeyring(ring), nil
}

// NewWithKeyring wraps an already opened keyring.
func NewWithKeyring(ring keyring.Keyring) *Manager {
	return &Manager{store: ringStore{ring}}
}

// GetManager returns the process-wide manager, opening it on first use.
// A failed open is retried on the next call.
func GetManager() (*Manager, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalManager != nil {
		return globalManager, nil
	}
	m, err := NewManager()
	if err != nil {
		return nil, err
	}
	globalManager = m
	return globalManager, nil
}

func openRing() (keyring.Keyring, error) {
	var allowed []keyring.BackendType
	switch runtime.GOOS {
	case "darwin":
		// Pass requires 'pass' utility installed: brew install pass
		allowed = []keyring.BackendType{keyring.KeychainBackend, keyring.PassBackend}
	case "windows":
		allowed = []keyring.BackendType{keyring.WinCredBackend}
	default:
		allowed = []keyring.BackendType{keyring.SecretServiceBackend, keyring.KWalletBackend, keyring.PassBackend}
	}

	cfg := keyring.Config{
		ServiceName:     ServiceName,
		AllowedBackends: allowed,
		PassPrefix:      ServiceName,
		WinCredPrefix:   ServiceName,
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		if runtime.GOOS == "darwin" {
			return nil, errors.New("macOS Keychain unavailable. On macOS 26.0+, install 'pass': brew install pass gnupg && gpg --generate-key && pass init <gpg-key-id>")
		}
		return nil, err
	}
	return ring, nil
}

// DSNKey is the keychain key holding a connection's DSN.
func DSNKey(connection string) string {
	return "connection/" + strings.ToLower(connection) + "/dsn"
}

// SaveDSN stores the DSN of the named connection.
func (m *Manager) SaveDSN(connection, dsn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Set(DSNKey(connection), dsn)
}

// LoadDSN returns the DSN of the named connection, or ErrNotFound.
func (m *Manager) LoadDSN(connection string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dsn, err := m.store.Get(DSNKey(connection))
	if err != nil {
		return "", err
	}
	if dsn == "" {
		return "", ErrNotFound
	}
	return dsn, nil
}

// DeleteDSN forgets the named connection's DSN. Missing keys are not an error.
func (m *Manager) DeleteDSN(connection string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Delete(DSNKey(connection)); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	return nil
}

type ringStore struct{ ring keyring.Keyring }

func (r ringStore) Set(key, value string) error {
	return r.ring.Set(keyring.Item{Key: key, Data: []byte(value), Label: ServiceName + " " + key})
}

func (r ringStore) Get(key string) (string, error) {
	it, err := r.ring.Get(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return string(it.Data), nil
}

func (r ringStore) Delete(key string) error {
	err := r.ring.Remove(key)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}
