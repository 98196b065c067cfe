package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
)

// Reason is a stable code explaining a staleness decision.
type Reason string

const (
	ReasonForced        Reason = "Forced"
	ReasonMissingOutput Reason = "MissingOutput"
	ReasonConfigChanged Reason = "ConfigChanged"
	ReasonSourceChanged Reason = "SourceChanged"
	ReasonUpToDate      Reason = "UpToDate"
)

// StalenessOracle decides whether a package's cached output must be rebuilt,
// using only filesystem modification times.
type StalenessOracle struct {
	// ConfigPath is the manifest file whose own mtime invalidates every package.
	ConfigPath string

	// Force marks every package stale.
	Force bool

	now func() time.Time
}

// NewStalenessOracle creates an oracle for the manifest at configPath.
func NewStalenessOracle(configPath string, force bool) *StalenessOracle {
	return &StalenessOracle{ConfigPath: configPath, Force: force, now: time.Now}
}

// ConfigMtime returns the manifest file's mtime, or the zero time when no
// manifest path is configured.
func (o *StalenessOracle) ConfigMtime() (time.Time, error) {
	if o.ConfigPath == "" {
		return time.Time{}, nil
	}
	info, err := os.Stat(o.ConfigPath)
	if err != nil {
		return time.Time{}, fmt.Errorf("stat manifest: %w", err)
	}
	return info.ModTime(), nil
}

// LatestMtime returns the newest mtime among paths and the manifest file.
// With nothing to inspect it returns the current time.
func (o *StalenessOracle) LatestMtime(paths []string) (time.Time, error) {
	all := paths
	if o.ConfigPath != "" {
		all = append(append([]string(nil), paths...), o.ConfigPath)
	}
	var latest time.Time
	for _, p := range all {
		info, err := os.Stat(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("stat %q: %w", p, err)
		}
		if info.ModTime().After(latest) {
			latest = info.ModTime()
		}
	}
	if latest.IsZero() {
		return o.clock(), nil
	}
	return latest, nil
}

func (o *StalenessOracle) clock() time.Time {
	if o.now == nil {
		return time.Now()
	}
	return o.now()
}

// IsStale evaluates, in order:
//  1. Force set: stale.
//  2. Any expected output file absent: stale.
//  3. since = the oldest expected output file. Stale when the manifest
//     or any source file is strictly newer than since.
//
// Using the oldest output keeps a half-rebuilt variant set from looking fresh.
func (o *StalenessOracle) IsStale(pkg *Package, expected []string, configMtime time.Time) (bool, Reason, error) {
	if o.Force {
		return true, ReasonForced, nil
	}
	if pkg == nil {
		return false, "", fmt.Errorf("nil package")
	}

	var since time.Time
	for i, file := range expected {
		info, err := os.Stat(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return true, ReasonMissingOutput, nil
			}
			return false, "", fmt.Errorf("stat output %q: %w", file, err)
		}
		if i == 0 || info.ModTime().Before(since) {
			since = info.ModTime()
		}
	}
	if len(expected) == 0 {
		return true, ReasonMissingOutput, nil
	}

	if configMtime.After(since) {
		return true, ReasonConfigChanged, nil
	}
	for _, src := range pkg.Paths {
		info, err := os.Stat(src)
		if err != nil {
			return false, "", fmt.Errorf("stat source %q: %w", src, err)
		}
		if info.ModTime().After(since) {
			return true, ReasonSourceChanged, nil
		}
	}
	return false, ReasonUpToDate, nil
}
