// Package selection owns the curated medicine list of a session: merging
// suggested candidates in and out by identity, editing dosage and timing,
// and accepting hand-authored entries.
package selection

import (
	"errors"
	"strings"

	"github.com/rxdesk/rxdesk/internal/domain/rx"
)

var (
	ErrSuggestionsPending = errors.New("suggestions are still loading")
	ErrUnknownCandidate   = errors.New("candidate is not part of the current suggestions")
)

// Engine holds one candidate list (the latest suggestion result) and the
// session-scoped curated entries. It is not safe for concurrent use; the
// owning workflow controller serialises access.
type Engine struct {
	candidates []Candidate
	entries    []Entry

	status     FetchStatus
	fetchErr   error
	generation uint64
}

// NewEngine returns an engine with no candidates and no entries.
func NewEngine() *Engine {
	return &Engine{status: FetchIdle}
}

// BeginFetch clears the candidate list, marks the engine pending and returns
// the generation tag the eventual response must carry.
func (e *Engine) BeginFetch() uint64 {
	e.generation++
	e.candidates = nil
	e.fetchErr = nil
	e.status = FetchPending
	return e.generation
}

// CompleteFetch applies a suggestion response. Responses whose generation is
// not the latest are dropped and CompleteFetch reports false. Curated entries
// are never touched.
func (e *Engine) CompleteFetch(gen uint64, candidates []Candidate, err error) bool {
	if gen != e.generation || e.status != FetchPending {
		return false
	}
	if err != nil {
		var sfe *rx.SuggestionFetchError
		if !errors.As(err, &sfe) {
			err = &rx.SuggestionFetchError{Err: err}
		}
		e.candidates = nil
		e.fetchErr = err
		e.status = FetchFailed
		return true
	}
	e.candidates = normalise(candidates)
	e.status = FetchReady
	return true
}

// AbandonFetch invalidates any outstanding request without touching the
// candidate list already on display.
func (e *Engine) AbandonFetch() {
	e.generation++
	if e.status == FetchPending {
		e.status = FetchIdle
	}
}

// Status reports the fetch status and, when failed, the fetch error.
func (e *Engine) Status() (FetchStatus, error) { return e.status, e.fetchErr }

// Generation returns the tag of the latest request.
func (e *Engine) Generation() uint64 { return e.generation }

// Candidates returns a copy of the current candidate list.
func (e *Engine) Candidates() []Candidate {
	return append([]Candidate{}, e.candidates...)
}

// Entries returns a copy of the curated entries in order.
func (e *Engine) Entries() []Entry {
	return append([]Entry{}, e.entries...)
}

// Ready is the readiness predicate for Selection -> Assembly.
func (e *Engine) Ready() bool { return len(e.entries) > 0 }

// Candidate looks a candidate up by name in the current list.
func (e *Engine) Candidate(name string) (Candidate, bool) {
	k := rx.KeyOf(name)
	for _, c := range e.candidates {
		if c.Key() == k {
			return c, true
		}
	}
	return Candidate{}, false
}

// Toggle removes the entry sharing the candidate's name, or appends a new
// entry derived from the candidate. It reports whether the candidate is
// selected afterwards.
func (e *Engine) Toggle(c Candidate) (bool, error) {
	if err := e.available(); err != nil {
		return false, err
	}
	k := c.Key()
	if k.IsZero() {
		return false, rx.Required("name")
	}
	if e.remove(k) {
		return false, nil
	}
	e.entries = append(e.entries, entryFromCandidate(c))
	return true, nil
}

// ToggleByName toggles the current candidate with the given name.
func (e *Engine) ToggleByName(name string) (bool, error) {
	if err := e.available(); err != nil {
		return false, err
	}
	c, ok := e.Candidate(name)
	if !ok {
		return false, ErrUnknownCandidate
	}
	return e.Toggle(c)
}

// UpdateField overrides dosage or timing of the entry with the given name.
// A missing entry is a no-op.
func (e *Engine) UpdateField(name string, field Field, value string) error {
	if err := e.available(); err != nil {
		return err
	}
	if field != FieldDosage && field != FieldTiming {
		return rx.Invalid("field", "must be dosage or timing")
	}
	k := rx.KeyOf(name)
	for i := range e.entries {
		if e.entries[i].Key() != k {
			continue
		}
		if field == FieldDosage {
			e.entries[i].Dosage = value
		} else {
			e.entries[i].Timing = value
		}
	}
	return nil
}

// AddCustom appends a hand-authored entry. All three inputs are trimmed and
// must be non-empty, and the name must not already be selected; on failure
// nothing changes.
func (e *Engine) AddCustom(name, dosage, timing string) (Entry, error) {
	if err := e.available(); err != nil {
		return Entry{}, err
	}
	name, dosage, timing = strings.TrimSpace(name), strings.TrimSpace(dosage), strings.TrimSpace(timing)
	switch {
	case name == "":
		return Entry{}, rx.Required("name")
	case dosage == "":
		return Entry{}, rx.Required("dosage")
	case timing == "":
		return Entry{}, rx.Required("timing")
	}
	if e.isSelected(rx.KeyOf(name)) {
		return Entry{}, rx.Invalid("name", "is already in the prescription")
	}
	entry := Entry{
		Name:        name,
		Description: CustomDescription,
		Dosage:      dosage,
		Timing:      timing,
		Custom:      true,
	}
	e.entries = append(e.entries, entry)
	return entry, nil
}

// RemoveByName drops the entry with the given name, if any, and reports
// whether something was removed.
func (e *Engine) RemoveByName(name string) (bool, error) {
	if err := e.available(); err != nil {
		return false, err
	}
	return e.remove(rx.KeyOf(name)), nil
}

// IsSelected reports whether the candidate is in the curated list.
func (e *Engine) IsSelected(c Candidate) bool {
	return e.isSelected(c.Key())
}

// IsSelectedName reports whether an entry with the given name exists.
func (e *Engine) IsSelectedName(name string) bool {
	return e.isSelected(rx.KeyOf(name))
}

// ClearCurated empties the curated list and the candidates, and invalidates
// any outstanding request.
func (e *Engine) ClearCurated() {
	e.AbandonFetch()
	e.candidates = nil
	e.entries = nil
	e.fetchErr = nil
	e.status = FetchIdle
}

func (e *Engine) available() error {
	if e.status == FetchPending {
		return ErrSuggestionsPending
	}
	return nil
}

func (e *Engine) isSelected(k rx.Key) bool {
	for _, en := range e.entries {
		if en.Key() == k {
			return true
		}
	}
	return false
}

// remove deletes every entry with key k, preserving the order of the rest.
func (e *Engine) remove(k rx.Key) bool {
	kept := e.entries[:0:0]
	for _, en := range e.entries {
		if en.Key() != k {
			kept = append(kept, en)
		}
	}
	removed := len(kept) != len(e.entries)
	if removed {
		e.entries = kept
	}
	return removed
}

// normalise trims names and drops nameless candidates; the first candidate
// wins when the source repeats a name.
func normalise(in []Candidate) []Candidate {
	out := make([]Candidate, 0, len(in))
	seen := make(map[rx.Key]bool, len(in))
	for _, c := range in {
		k := c.Key()
		if k.IsZero() || seen[k] {
			continue
		}
		seen[k] = true
		c.Name = string(k)
		out = append(out, c)
	}
	return out
}
