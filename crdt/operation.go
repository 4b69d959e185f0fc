package crdt

import (
	"fmt"
)

// Structs

// Operation is the immutable record of one register write:
// replica Origin set Key to Value as its Seq-th local update.
// An operation is uniquely identified by (Origin, Seq) and
// that pair is never reused.
type Operation struct {
	Origin string
	Seq    uint32
	Key    string
	Value  Value
}

// Functions

// Supersedes reports whether op wins against the current
// winner of a key under the total order used for conflict
// resolution: sequence number ascending, origin identifier
// ascending as tie-break. The greater pair wins.
func (op Operation) Supersedes(winner string, winnerSeq uint32) bool {

	if op.Seq != winnerSeq {
		return op.Seq > winnerSeq
	}

	return op.Origin > winner
}

// String returns the compact identity of op, e.g. for log lines.
func (op Operation) String() string {
	return fmt.Sprintf("%d@%s", op.Seq, op.Origin)
}
