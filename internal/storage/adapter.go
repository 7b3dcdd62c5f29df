package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"portico/pkg/logging"
)

// Adapter provides uniform Get/Set/Remove access over the durable and
// signal tiers plus the per-process transient tier.
type Adapter struct {
	mu       sync.RWMutex
	dataDir  string
	signals  string
	volatile map[string]string
}

// NewAdapter creates an adapter rooted at stateDir. The durable tier lives
// under {stateDir}/data, the signal tier under {stateDir}/signals.
func NewAdapter(stateDir string) (*Adapter, error) {
	dataDir := filepath.Join(stateDir, "data")
	signalDir := filepath.Join(stateDir, "signals")

	for _, dir := range []string{dataDir, signalDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("failed to create storage directory %s: %w", dir, err)
		}
	}

	return &Adapter{
		dataDir:  dataDir,
		signals:  signalDir,
		volatile: make(map[string]string),
	}, nil
}

// SignalDir returns the signal tier directory, for watchers.
func (a *Adapter) SignalDir() string {
	return a.signals
}

// Get reads a durable value into out. The second return is false when the
// key is absent or the stored record cannot be decoded.
func (a *Adapter) Get(key string, out interface{}) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, err := os.ReadFile(a.durablePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}

	if err := json.Unmarshal(data, out); err != nil {
		// A partial write from a crashed process; callers treat this the
		// same as an absent record.
		logging.Warn("Storage", "Discarding malformed record for key %s: %v", key, err)
		return false, nil
	}
	return true, nil
}

// Set writes a durable JSON value under key.
func (a *Adapter) Set(key string, value interface{}) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}

	// Restricted permissions: the session record carries credentials.
	if err := os.WriteFile(a.durablePath(key), data, 0600); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}

	logging.Debug("Storage", "Wrote durable key %s", key)
	return nil
}

// Remove deletes a durable key. Removing an absent key is a no-op.
func (a *Adapter) Remove(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := os.Remove(a.durablePath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove %s: %w", key, err)
	}
	return nil
}

// GetSignal reads a string value from the signal tier.
func (a *Adapter) GetSignal(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	data, err := os.ReadFile(a.signalPath(key))
	if err != nil {
		return "", false
	}
	return string(data), true
}

// SetSignal writes a string value to the signal tier.
func (a *Adapter) SetSignal(key, value string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.WriteFile(a.signalPath(key), []byte(value), 0600); err != nil {
		return fmt.Errorf("failed to write signal %s: %w", key, err)
	}
	logging.Debug("Storage", "Wrote signal key %s", key)
	return nil
}

// RemoveSignal deletes a signal key. Other processes watching the signal
// tier observe the removal; for the session sentinel this is the logout
// broadcast.
func (a *Adapter) RemoveSignal(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := os.Remove(a.signalPath(key))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove signal %s: %w", key, err)
	}
	return nil
}

// GetTransient reads a per-process value.
func (a *Adapter) GetTransient(key string) (string, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	v, ok := a.volatile[key]
	return v, ok
}

// SetTransient writes a per-process value.
func (a *Adapter) SetTransient(key, value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.volatile[key] = value
}

// RemoveTransient deletes a per-process value.
func (a *Adapter) RemoveTransient(key string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.volatile, key)
}

func (a *Adapter) durablePath(key string) string {
	return filepath.Join(a.dataDir, sanitizeKey(key)+".json")
}

func (a *Adapter) signalPath(key string) string {
	return filepath.Join(a.signals, sanitizeKey(key))
}

// sanitizeKey keeps storage keys filesystem-safe.
func sanitizeKey(key string) string {
	sanitized := strings.ReplaceAll(key, "/", "_")
	sanitized = strings.ReplaceAll(sanitized, "\\", "_")
	sanitized = strings.ReplaceAll(sanitized, ":", "_")
	sanitized = strings.ReplaceAll(sanitized, "..", "_")
	sanitized = strings.Trim(sanitized, " _")
	if sanitized == "" {
		sanitized = "unnamed"
	}
	return sanitized
}
