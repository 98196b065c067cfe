package packager

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/davidrichards/ram/internal/config"
	"github.com/davidrichards/ram/internal/core"
	"github.com/davidrichards/ram/internal/trace"
)

// HolderConfig describes how a Holder (re)builds its Packager.
type HolderConfig struct {
	ConfigPath string
	Load       config.Options
	Options    Options
	Sink       trace.Sink

	// NewCompressor builds the compressor for freshly loaded settings.
	NewCompressor func(*config.Settings) core.Compressor
}

// Holder is a long-lived, concurrency-safe owner of one Packager.
//
// The Packager is built lazily on the first Get and kept until Invalidate
// or Reload. Refresh rebuilds it only when the manifest file's mtime has
// advanced since the last load.
type Holder struct {
	cfg HolderConfig

	mu       sync.RWMutex
	current  *Packager
	loadedAt time.Time
}

// NewHolder returns a Holder that has not loaded anything yet.
func NewHolder(cfg HolderConfig) *Holder {
	return &Holder{cfg: cfg}
}

// Get returns the current Packager, building it if needed.
func (h *Holder) Get() (*Packager, error) {
	h.mu.RLock()
	p := h.current
	h.mu.RUnlock()
	if p != nil {
		return p, nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.current != nil {
		return h.current, nil
	}
	return h.loadLocked()
}

// Invalidate drops the current Packager; the next Get rebuilds it.
func (h *Holder) Invalidate() {
	h.mu.Lock()
	h.current = nil
	h.loadedAt = time.Time{}
	h.mu.Unlock()
}

// Reload reloads settings from disk and rebuilds the Packager. On failure
// the previous Packager is discarded.
func (h *Holder) Reload() (*Packager, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current = nil
	return h.loadLocked()
}

// Refresh returns the current Packager, reloading first when the manifest
// has been modified since it was loaded.
func (h *Holder) Refresh() (*Packager, error) {
	mtime, err := manifestMtime(h.cfg.ConfigPath)
	if err != nil {
		h.Invalidate()
		return nil, err
	}

	h.mu.RLock()
	p, loadedAt := h.current, h.loadedAt
	h.mu.RUnlock()
	if p != nil && !mtime.After(loadedAt) {
		return p, nil
	}
	return h.Reload()
}

func (h *Holder) loadLocked() (*Packager, error) {
	mtime, err := manifestMtime(h.cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	settings, err := config.Load(h.cfg.ConfigPath, h.cfg.Load)
	if err != nil {
		return nil, err
	}
	if h.cfg.NewCompressor == nil {
		return nil, fmt.Errorf("holder has no compressor factory")
	}
	p, err := New(settings, h.cfg.NewCompressor(settings), h.cfg.Sink, h.cfg.Options)
	if err != nil {
		return nil, err
	}
	h.current = p
	h.loadedAt = mtime
	return p, nil
}

func manifestMtime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, core.MissingConfigurationf("could not find the %q configuration file", path)
		}
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
