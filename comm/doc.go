/*
Package comm implements the delta exchange format with that replmap replicas
bring each other up to date. A delta bundles the version vector of the sending
replica with the ordered set of operations the receiver is missing. Marshalling
is deterministic: given the same operation log state and the same target
frontier, two marshalled deltas are byte-identical, so callers can surface
reproducible per-sync byte counts.

No transport is part of this package. Marshalled deltas are handed to and
received from whatever channel the surrounding program provides, and malformed
bytes are rejected during parsing with a DecodeError.
*/
package comm
