package rules

import (
	"fmt"
	"log/slog"
	"sync"
)

// Cache holds the active rules document and swaps it atomically on reload.
// In-flight pipeline cycles keep working on the snapshot they started with.
type Cache struct {
	path        string
	mu          sync.RWMutex
	rules       *Rules
	fingerprint string
}

func NewCache(path string) *Cache {
	return &Cache{path: path}
}

// Run performs the initial load. The cache is unusable until it succeeds.
func (c *Cache) Run() error {
	_, err := c.Reload()
	return err
}

// Reload re-reads the rules file and swaps the active snapshot. Returns true
// when the document actually changed.
func (c *Cache) Reload() (bool, error) {
	fingerprint, err := Fingerprint(c.path)
	if err != nil {
		return false, err
	}

	c.mu.RLock()
	unchanged := c.rules != nil && fingerprint == c.fingerprint
	c.mu.RUnlock()
	if unchanged {
		return false, nil
	}

	loaded, err := Load(c.path)
	if err != nil {
		return false, err
	}

	c.mu.Lock()
	c.rules = loaded
	c.fingerprint = fingerprint
	c.mu.Unlock()

	slog.Info("Rules loaded", "component", "rules", "path", c.path,
		"sources", len(loaded.Sources), "platforms", len(loaded.Platforms))
	return true, nil
}

// Snapshot returns the active rules document. Callers must not mutate it.
func (c *Cache) Snapshot() (*Rules, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.rules == nil {
		return nil, fmt.Errorf("rules not loaded")
	}
	return c.rules, nil
}

// Fingerprint returns the hash of the active document.
func (c *Cache) Fingerprint() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fingerprint
}

// Source looks up a source by id in the active snapshot.
func (c *Cache) Source(id string) (*Source, error) {
	snapshot, err := c.Snapshot()
	if err != nil {
		return nil, err
	}
	for i := range snapshot.Sources {
		if snapshot.Sources[i].ID == id {
			return &snapshot.Sources[i], nil
		}
	}
	return nil, fmt.Errorf("source %s not found", id)
}
