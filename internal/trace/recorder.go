package trace

import "sync"

// Sink receives package lifecycle events from the packager: each check,
// variant write and failure. A sink cannot fail a packaging pass, so Record
// returns nothing and the packager calls it through SafeRecord.
type Sink interface {
	Record(event Event)
}

// NopSink is used when neither a trace file nor logging wants events.
type NopSink struct{}

func (NopSink) Record(Event) {}

// SafeRecord hands event to s, ignoring a nil sink and recovering a panic so
// a broken sink never aborts a package build.
func SafeRecord(s Sink, event Event) {
	if s == nil {
		return
	}
	defer func() {
		_ = recover()
	}()
	s.Record(event)
}

// Recorder keeps every event of a precache pass in memory for the
// --trace report. Report sorts events, so two passes over the same tree
// produce the same bytes however the events arrived.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Record(event Event) {
	if r == nil {
		return
	}
	defer func() {
		_ = recover()
	}()

	r.mu.Lock()
	r.events = append(r.events, event)
	r.mu.Unlock()
}

// Snapshot copies the events recorded so far, in arrival order.
func (r *Recorder) Snapshot() []Event {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Reset drops every recorded event.
func (r *Recorder) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// Report builds a canonical BuildReport from the currently recorded events.
func (r *Recorder) Report() BuildReport {
	rep := BuildReport{Events: r.Snapshot()}
	rep.Canonicalize()
	return rep
}

// Multi fans every event out to each non-nil sink in order.
type Multi []Sink

func (m Multi) Record(event Event) {
	for _, s := range m {
		SafeRecord(s, event)
	}
}
