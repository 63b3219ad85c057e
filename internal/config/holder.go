package config

import (
	"fmt"
	"sync/atomic"
)

// Holder owns the current Config and swaps it atomically on Reload.
// Readers always see a complete, validated Config.
type Holder struct {
	path string
	cur  atomic.Pointer[Config]
}

// NewHolder wraps an already loaded Config. path is re-read on Reload.
func NewHolder(cfg *Config, path string) *Holder {
	h := &Holder{path: path}
	h.cur.Store(cfg)
	return h
}

// Get returns the current configuration.
func (h *Holder) Get() *Config {
	return h.cur.Load()
}

// Path returns the YAML path this holder reloads from.
func (h *Holder) Path() string {
	return h.path
}

// Reload re-reads defaults < YAML < ENV. On any error the previous
// configuration stays in place.
func (h *Holder) Reload() error {
	cfg, err := LoadFrom(h.path)
	if err != nil {
		return fmt.Errorf("reload %s: %w", h.path, err)
	}
	h.cur.Store(cfg)
	return nil
}
