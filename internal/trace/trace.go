package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
)

// BuildReport is the canonical record of one packaging pass.
//
// Invariants:
//   - Captures logical decisions (fresh, stale, written, failed), never wall-clock time.
//   - Canonical ordering is independent of the order packages were visited.
//   - Error values are carried for observers but never serialized.
//
// The report is observational only and must never affect build behavior.
type BuildReport struct {
	Events []Event
}

// EventKind is the stable discriminator for Event.
// The string values are part of the report's canonical bytes; do not rename.
type EventKind string

const (
	EventGlobEmpty      EventKind = "GlobEmpty"
	EventPackageFresh   EventKind = "PackageFresh"
	EventPackageStale   EventKind = "PackageStale"
	EventVariantWritten EventKind = "VariantWritten"
	EventPackageBuilt   EventKind = "PackageBuilt"
	EventPackageFailed  EventKind = "PackageFailed"
)

// Event is a single logical decision made during a pass.
type Event struct {
	Kind EventKind

	// Type is the artifact type extension ("js" or "css"). Empty for glob events.
	Type string

	// Package names the package the event refers to.
	Package string

	// Variant is the variant suffix ("", "datauri", "legacyfallback").
	Variant string

	// Reason is a stable reason code (e.g. "SourceChanged", "Forced").
	Reason string

	// Pattern is the glob pattern for GlobEmpty events.
	Pattern string

	// Files lists the paths written for VariantWritten events.
	Files []string

	// Bytes is the uncompressed size of the written variant.
	Bytes int

	// Err is the failure cause for PackageFailed events. Not serialized.
	Err error
}

func isPackageEvent(kind EventKind) bool {
	switch kind {
	case EventPackageFresh, EventPackageStale, EventVariantWritten, EventPackageBuilt, EventPackageFailed:
		return true
	default:
		return false
	}
}

// Validate checks basic invariants and returns a descriptive error.
func (r *BuildReport) Validate() error {
	if r == nil {
		return errors.New("report is nil")
	}
	for i := range r.Events {
		e := r.Events[i]
		if e.Kind == "" {
			return fmt.Errorf("events[%d].kind is required", i)
		}
		if isPackageEvent(e.Kind) && e.Package == "" {
			return fmt.Errorf("events[%d].package is required for kind %q", i, e.Kind)
		}
		if e.Kind == EventGlobEmpty && e.Pattern == "" {
			return fmt.Errorf("events[%d].pattern is required for kind %q", i, e.Kind)
		}
	}
	return nil
}

// Canonicalize normalizes and sorts the report into its canonical form.
//
// Events are stably sorted by (type, package, kindOrder, variant, pattern).
// Files are copied and sorted; empty Files become nil.
func (r *BuildReport) Canonicalize() {
	if r == nil {
		return
	}
	for i := range r.Events {
		if len(r.Events[i].Files) == 0 {
			r.Events[i].Files = nil
			continue
		}
		files := make([]string, len(r.Events[i].Files))
		copy(files, r.Events[i].Files)
		sort.Strings(files)
		r.Events[i].Files = files
	}

	sort.SliceStable(r.Events, func(i, j int) bool {
		a := r.Events[i]
		b := r.Events[j]

		if a.Type != b.Type {
			return a.Type < b.Type
		}
		if a.Package != b.Package {
			return a.Package < b.Package
		}
		if kindOrder(a.Kind) != kindOrder(b.Kind) {
			return kindOrder(a.Kind) < kindOrder(b.Kind)
		}
		if a.Variant != b.Variant {
			return a.Variant < b.Variant
		}
		return a.Pattern < b.Pattern
	})
}

func kindOrder(k EventKind) int {
	switch k {
	case EventGlobEmpty:
		return 0
	case EventPackageFresh:
		return 10
	case EventPackageStale:
		return 20
	case EventVariantWritten:
		return 30
	case EventPackageBuilt:
		return 40
	case EventPackageFailed:
		return 50
	default:
		return 1000
	}
}

// Count returns how many events of the given kind the report holds.
func (r *BuildReport) Count(kind EventKind) int {
	if r == nil {
		return 0
	}
	n := 0
	for _, e := range r.Events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// CanonicalJSON returns the canonical JSON encoding of the report.
// It canonicalizes a copy to avoid mutating the caller's slices.
func (r BuildReport) CanonicalJSON() ([]byte, error) {
	copyReport := BuildReport{Events: make([]Event, len(r.Events))}
	copy(copyReport.Events, r.Events)
	copyReport.Canonicalize()
	if err := copyReport.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(&copyReport)
}

// MarshalJSON fixes field ordering.
func (r BuildReport) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\"events\":[")
	for i := range r.Events {
		if i > 0 {
			buf.WriteByte(',')
		}
		eb, err := json.Marshal(r.Events[i])
		if err != nil {
			return nil, err
		}
		buf.Write(eb)
	}
	buf.WriteString("]}")
	return buf.Bytes(), nil
}

// MarshalJSON fixes field ordering and omits empty optional fields.
func (e Event) MarshalJSON() ([]byte, error) {
	if e.Kind == "" {
		return nil, errors.New("kind is required")
	}
	var files []string
	if len(e.Files) > 0 {
		files = make([]string, len(e.Files))
		copy(files, e.Files)
		sort.Strings(files)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')

	buf.WriteString("\"kind\":")
	kb, _ := json.Marshal(string(e.Kind))
	buf.Write(kb)

	writeString := func(key, value string) {
		if value == "" {
			return
		}
		buf.WriteString(",\"" + key + "\":")
		vb, _ := json.Marshal(value)
		buf.Write(vb)
	}
	writeString("type", e.Type)
	writeString("package", e.Package)
	writeString("variant", e.Variant)
	writeString("reason", e.Reason)
	writeString("pattern", e.Pattern)

	if len(files) > 0 {
		buf.WriteString(",\"files\":[")
		for i := range files {
			if i > 0 {
				buf.WriteByte(',')
			}
			fb, _ := json.Marshal(files[i])
			buf.Write(fb)
		}
		buf.WriteByte(']')
	}
	if e.Bytes > 0 {
		buf.WriteString(",\"bytes\":")
		buf.WriteString(strconv.Itoa(e.Bytes))
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
