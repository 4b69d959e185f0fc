package crdt

import (
	"fmt"
)

// Structs

// DuplicateOperationError is returned by Append when an
// operation with an already-recorded (origin, seq) identity
// arrives. Duplicates are rejected loudly at this boundary
// so that import bugs surface immediately instead of being
// silently tolerated.
type DuplicateOperationError struct {
	Origin string
	Seq    uint32
}

// Log is the append-only record of every operation applied
// at one replica, local or remote, in arrival order. It is
// consulted only to compute deltas for other replicas.
type Log struct {
	ops  []Operation
	high VClock
}

// Cursor lazily walks the operations of a Log that a given
// frontier does not yet reflect. A fresh cursor restarts the
// walk from the beginning of the log.
type Cursor struct {
	log      *Log
	frontier VClock
	pos      int
}

// Functions

// Error implements the error interface for DuplicateOperationError.
func (e *DuplicateOperationError) Error() string {
	return fmt.Sprintf("duplicate operation %d@%s already recorded in log", e.Seq, e.Origin)
}

// InitLog returns an empty initialized new operation log.
func InitLog() *Log {

	return &Log{
		ops:  make([]Operation, 0, 32),
		high: InitVClock(),
	}
}

// Append records op at the end of the log. Operations of one
// origin are expected to arrive in increasing sequence order,
// the log therefore tracks a per-origin high-water mark and
// rejects any sequence number at or below it with a
// DuplicateOperationError.
func (l *Log) Append(op Operation) error {

	if op.Seq <= l.high.Get(op.Origin) {
		return &DuplicateOperationError{
			Origin: op.Origin,
			Seq:    op.Seq,
		}
	}

	l.ops = append(l.ops, op)
	l.high[op.Origin] = op.Seq

	return nil
}

// Seen reports whether an operation with identity (origin, seq)
// has already been recorded.
func (l *Log) Seen(origin string, seq uint32) bool {
	return seq <= l.high.Get(origin)
}

// Len returns the number of operations currently retained.
func (l *Log) Len() int {
	return len(l.ops)
}

// OperationsSince returns a cursor over every retained
// operation whose sequence number exceeds what frontier
// already reflects for its origin. The cursor yields in log
// order, which keeps operations of one origin in increasing
// sequence order. Cross-origin interleaving is unspecified
// and harmless because the merge rule is order-independent.
func (l *Log) OperationsSince(frontier VClock) *Cursor {

	return &Cursor{
		log:      l,
		frontier: frontier,
	}
}

// Next returns the next missing operation and true, or the
// zero Operation and false once the walk is exhausted.
func (c *Cursor) Next() (Operation, bool) {

	for c.pos < len(c.log.ops) {

		op := c.log.ops[c.pos]
		c.pos++

		if op.Seq > c.frontier.Get(op.Origin) {
			return op, true
		}
	}

	return Operation{}, false
}

// Compact drops every operation whose sequence number is at
// or below what acked reflects for its origin, i.e. a prefix
// all peers already acknowledged. It returns the number of
// operations dropped. Convergence is unaffected as long as no
// dropped operation is still needed by an un-acknowledged
// peer, which is the caller's contract to uphold.
func (l *Log) Compact(acked VClock) int {

	kept := make([]Operation, 0, len(l.ops))

	for _, op := range l.ops {

		if op.Seq > acked.Get(op.Origin) {
			kept = append(kept, op)
		}
	}

	dropped := len(l.ops) - len(kept)
	l.ops = kept

	return dropped
}
