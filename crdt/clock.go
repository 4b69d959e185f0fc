package crdt

import (
	"fmt"
)

// Structs

// OutOfOrderError is returned by Observe when the supplied
// sequence number is not the immediate successor of the
// highest one incorporated from that origin so far. It
// signals a gap (or a duplicate) in delivery.
type OutOfOrderError struct {
	Origin   string
	Expected uint32
	Received uint32
}

// Clock is the logical clock of one replica. It owns the
// replica's local operation counter and tracks the highest
// incorporated sequence number of every other origin, which
// together form the replica's frontier.
type Clock struct {
	owner    string
	frontier VClock
}

// Functions

// Error implements the error interface for OutOfOrderError.
func (e *OutOfOrderError) Error() string {
	return fmt.Sprintf("out-of-order operation from origin '%s': expected sequence number %d but received %d", e.Origin, e.Expected, e.Received)
}

// InitClock returns a new logical clock owned by the replica
// identified by owner. The local counter starts at zero, the
// first local operation therefore carries sequence number one.
func InitClock(owner string) *Clock {

	return &Clock{
		owner:    owner,
		frontier: InitVClock(),
	}
}

// Owner returns the identifier of the replica owning this clock.
func (c *Clock) Owner() string {
	return c.owner
}

// NextLocal returns the next unused sequence number of the
// owning replica and advances the local counter by one. It
// never fails. Callers have to serialize access per replica.
func (c *Clock) NextLocal() uint32 {

	next := c.frontier[c.owner] + 1
	c.frontier[c.owner] = next

	return next
}

// Current returns the highest sequence number incorporated
// from origin so far, zero if origin was never seen.
func (c *Clock) Current(origin string) uint32 {
	return c.frontier.Get(origin)
}

// Observe records that an operation from origin carrying
// sequence number seq has been incorporated. Operations of
// one origin have to arrive in strict sequence order, any
// other seq is rejected with an OutOfOrderError and the
// clock stays unchanged.
func (c *Clock) Observe(origin string, seq uint32) error {

	expected := c.frontier.Get(origin) + 1

	if seq != expected {
		return &OutOfOrderError{
			Origin:   origin,
			Expected: expected,
			Received: seq,
		}
	}

	c.frontier[origin] = seq

	return nil
}

// Frontier returns a snapshot copy of the replica's current
// version vector. Mutating the returned vector does not
// affect the clock.
func (c *Clock) Frontier() VClock {
	return c.frontier.Copy()
}
