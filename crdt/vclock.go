package crdt

// Structs

// VClock is a version vector: for each known origin replica
// it holds the highest sequence number incorporated from that
// origin. Entries only ever grow, an origin never listed is
// equivalent to an entry of zero.
type VClock map[string]uint32

// Functions

// InitVClock returns an empty initialized new version vector.
func InitVClock() VClock {
	return make(VClock)
}

// Get returns the incorporated sequence number for origin,
// zero if origin was never seen.
func (v VClock) Get(origin string) uint32 {
	return v[origin]
}

// Copy returns a deep copy of v so that callers cannot
// mutate shared clock state through a returned snapshot.
func (v VClock) Copy() VClock {

	vclock := make(VClock, len(v))

	for origin, seq := range v {
		vclock[origin] = seq
	}

	return vclock
}

// Merge raises every entry of v to at least the value the
// other vector carries for it. Entries never decrease.
func (v VClock) Merge(other VClock) {

	for origin, seq := range other {

		if seq > v[origin] {
			v[origin] = seq
		}
	}
}

// Equal reports whether v and other incorporate exactly the
// same sequence numbers, treating missing entries as zero.
func (v VClock) Equal(other VClock) bool {

	for origin, seq := range v {

		if other.Get(origin) != seq {
			return false
		}
	}

	for origin, seq := range other {

		if v.Get(origin) != seq {
			return false
		}
	}

	return true
}
