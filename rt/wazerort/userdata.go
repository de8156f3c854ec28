package wazerort

import (
	"sync"

	"github.com/yasl-lang/yaslapi-go/rt"
)

// handleTable maps integer handles to host values referenced by guest
// user-data. The guest only ever sees the handle; the value, its type tag
// and its destructor stay on this side of the memory boundary.
type handleTable struct {
	mu      sync.Mutex
	next    uint32
	entries map[uint32]*udEntry
}

type udEntry struct {
	data  any
	tag   string
	dtor  rt.Destructor
	freed bool
}

func newHandleTable() *handleTable {
	return &handleTable{
		next:    1,
		entries: make(map[uint32]*udEntry),
	}
}

// insert stores a value and returns its handle. Handle 0 is never issued;
// the guest uses it as the null handle.
func (t *handleTable) insert(data any, tag string, dtor rt.Destructor) uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	h := t.next
	t.next++
	t.entries[h] = &udEntry{data: data, tag: tag, dtor: dtor}
	return h
}

func (t *handleTable) get(h uint32) (any, string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[h]
	if !ok || e.freed {
		return nil, "", false
	}
	return e.data, e.tag, true
}

// free runs the entry's destructor and drops it. The guest calls this
// through the yaslx_userdata_free import when the value dies; running it
// twice for one handle is a no-op.
func (t *handleTable) free(h uint32) {
	t.mu.Lock()
	e, ok := t.entries[h]
	if !ok || e.freed {
		t.mu.Unlock()
		return
	}
	e.freed = true
	delete(t.entries, h)
	t.mu.Unlock()

	if e.dtor != nil {
		e.dtor(e.data)
	}
}

func (t *handleTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// close frees every remaining entry. Used when the engine shuts down with
// states still holding user-data.
func (t *handleTable) close() {
	t.mu.Lock()
	var pending []*udEntry
	for h, e := range t.entries {
		if !e.freed {
			e.freed = true
			pending = append(pending, e)
		}
		delete(t.entries, h)
	}
	t.mu.Unlock()

	for _, e := range pending {
		if e.dtor != nil {
			e.dtor(e.data)
		}
	}
}
