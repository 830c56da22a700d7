package graph

// NameTable is a compact, interned store of road names, addressed by a
// uint32 id carried on each edge. Strings are concatenated into a single
// byte slice with offsets marking boundaries, avoiding one small allocation
// per distinct name at query time.
type NameTable struct {
	bytes   []byte
	offsets []uint32 // len numNames+1; offsets[i]..offsets[i+1] bounds name i
}

// Name returns the interned string for id, or "" if id is out of range.
func (t *NameTable) Name(id uint32) string {
	if t == nil || int(id)+1 >= len(t.offsets) {
		return ""
	}
	return string(t.bytes[t.offsets[id]:t.offsets[id+1]])
}

// dump exposes the table's backing arrays for binary serialization.
func (t *NameTable) dump() (bytes []byte, offsets []uint32) {
	if t == nil {
		return nil, nil
	}
	return t.bytes, t.offsets
}

// newNameTableFromParts reconstructs a NameTable from serialized arrays.
func newNameTableFromParts(bytes []byte, offsets []uint32) *NameTable {
	if len(offsets) == 0 {
		return NewNameInterner().Build()
	}
	return &NameTable{bytes: bytes, offsets: offsets}
}

// Count returns the number of distinct names in the table.
func (t *NameTable) Count() int {
	if t == nil || len(t.offsets) == 0 {
		return 0
	}
	return len(t.offsets) - 1
}

// NameInterner assigns stable ids to strings during graph construction,
// deduplicating repeats (most ways along a corridor share a name).
type NameInterner struct {
	ids   map[string]uint32
	names []string
}

// NewNameInterner creates an empty interner. Id 0 is reserved for "" so
// unnamed edges need no explicit lookup.
func NewNameInterner() *NameInterner {
	return &NameInterner{
		ids:   map[string]uint32{"": 0},
		names: []string{""},
	}
}

// Intern returns the id for s, assigning a new one on first occurrence.
func (ni *NameInterner) Intern(s string) uint32 {
	if id, ok := ni.ids[s]; ok {
		return id
	}
	id := uint32(len(ni.names))
	ni.ids[s] = id
	ni.names = append(ni.names, s)
	return id
}

// Build finalizes the interner into a queryable NameTable.
func (ni *NameInterner) Build() *NameTable {
	offsets := make([]uint32, len(ni.names)+1)
	var bytes []byte
	for i, s := range ni.names {
		offsets[i] = uint32(len(bytes))
		bytes = append(bytes, s...)
	}
	offsets[len(ni.names)] = uint32(len(bytes))
	return &NameTable{bytes: bytes, offsets: offsets}
}
