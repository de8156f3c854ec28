// Package intern provides the process-wide identifier registry.
//
// The interpreter's C API keeps raw pointers to the identifier strings it is
// handed for globals and metatables, so those strings must stay at a stable
// address for as long as any interpreter state may reference them. The
// registry stores one immutable entry per distinct identifier and hands out
// the same *Name for the same text forever after. Entries are never evicted:
// a bounded program interns a bounded, usually small, set of identifiers, and
// retaining them for the process lifetime is the documented trade-off that
// makes pointer reuse safe.
package intern

import (
	"strings"
	"sync"

	"github.com/yasl-lang/yaslapi-go/errors"
)

// Name is a stable, immutable interned identifier. Two Intern calls with the
// same text return the same *Name, so pointer equality doubles as identity.
type Name struct {
	text string
}

// String returns the identifier text.
func (n *Name) String() string {
	return n.text
}

// Registry deduplicates identifier storage. The zero value is not usable;
// construct with NewRegistry or use the shared Names registry.
type Registry struct {
	mu    sync.Mutex
	names map[string]*Name
}

// NewRegistry creates an empty registry. Most callers want Names instead;
// separate registries exist for tests that need isolation.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]*Name)}
}

var processNames = NewRegistry()

// Names returns the shared process-wide registry used by all interpreter
// states.
func Names() *Registry {
	return processNames
}

// Intern validates text against the identifier grammar and returns its
// stable entry, inserting one if the text has not been seen before.
// Concurrent calls are serialized; no caller ever observes a half-inserted
// entry. Text containing a NUL byte violates a precondition of the whole
// binding and panics rather than returning an error.
func (r *Registry) Intern(text string) (*Name, error) {
	if strings.IndexByte(text, 0) >= 0 {
		panic("intern: identifier contains NUL byte")
	}
	if !ValidIdentifier(text) {
		return nil, errors.BadIdentifier(errors.PhaseGlobal, text)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if n, ok := r.names[text]; ok {
		return n, nil
	}
	n := &Name{text: text}
	r.names[text] = n
	return n, nil
}

// Len returns the number of distinct interned identifiers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

// ValidIdentifier reports whether text matches the interpreter's identifier
// grammar: an ASCII letter, underscore or '$' followed by ASCII letters,
// digits, underscores or '$'.
func ValidIdentifier(text string) bool {
	if text == "" {
		return false
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c == '_' || c == '$':
		case c >= '0' && c <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
