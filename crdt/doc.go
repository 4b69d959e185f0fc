/*
Package crdt implements the convergent last-writer-wins (LWW) register map
upon that the replicated parts of replmap are built: the tagged scalar value
type, uniquely identified operations, the per-replica logical clock with its
version vector, the materialized map store and the append-only operation log.

CAUTION! Consider these two requirements:
  - For correct convergence we expect operations of a single origin replica to
    be applied in strict sequence order. The Clock type detects gaps, but it is
    the caller (e.g. replmap's package replica) that has to stop an origin's
    chain once a gap surfaced.
  - Access to the functions this package provides is expected to be synchronized
    explicitly by some outside measures, e.g. by wrapping calls to this package
    with a mutex lock if concurrent access is possible. This package does not(!)
    synchronize access by itself.

The conflict rule is a total order over (sequence number, origin) pairs:
sequence number ascending, origin identifier ascending as tie-break. Because
the order is total, applying any set of operations in any order any number of
times materializes the same winners, which is the property that makes replicas
converge without coordination.
*/
package crdt
