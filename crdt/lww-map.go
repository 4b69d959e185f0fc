package crdt

// Structs

// Entry is the materialized state of one key: the current
// value plus the identity of the operation that produced it.
type Entry struct {
	Value     Value
	Winner    string
	WinnerSeq uint32
}

// LWWMap is the materialized register map of one replica. It
// maps keys to entries and resolves concurrent writes to the
// same key with the (sequence number, origin) total order.
type LWWMap struct {
	entries map[string]Entry
}

// Functions

// InitLWWMap returns an empty initialized new LWW register map.
func InitLWWMap() *LWWMap {

	return &LWWMap{
		entries: make(map[string]Entry),
	}
}

// Install unconditionally materializes op as the new entry
// for its key. It is only to be used for operations the
// owning replica originated itself: a replica's own writes
// always apply locally without conflict.
func (m *LWWMap) Install(op Operation) {

	m.entries[op.Key] = Entry{
		Value:     op.Value,
		Winner:    op.Origin,
		WinnerSeq: op.Seq,
	}
}

// Apply materializes op as the new entry for its key if op
// wins against the existing entry (or no entry exists) under
// the conflict rule. It returns true if the materialized
// state changed and false if op lost and was discarded.
// Losing operations still belong into the operation log so
// that re-exporting to a third party carries them.
func (m *LWWMap) Apply(op Operation) bool {

	cur, found := m.entries[op.Key]

	if found && !op.Supersedes(cur.Winner, cur.WinnerSeq) {
		return false
	}

	m.entries[op.Key] = Entry{
		Value:     op.Value,
		Winner:    op.Origin,
		WinnerSeq: op.Seq,
	}

	return true
}

// Read returns the current value materialized for key and
// true, or the zero Value and false if key is absent. It
// never blocks and never fails.
func (m *LWWMap) Read(key string) (Value, bool) {

	entry, found := m.entries[key]
	if !found {
		return Value{}, false
	}

	return entry.Value, true
}

// Len returns the number of keys currently materialized.
func (m *LWWMap) Len() int {
	return len(m.entries)
}

// Entries returns a copy of the complete materialized state,
// e.g. for comparing two replicas in tests.
func (m *LWWMap) Entries() map[string]Entry {

	entries := make(map[string]Entry, len(m.entries))

	for key, entry := range m.entries {
		entries[key] = entry
	}

	return entries
}
