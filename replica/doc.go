/*
Package replica ties the pieces of one replmap replica together: the logical
clock, the materialized LWW register map and the operation log share one
critical section per replica, guarded here. Local writes and delta imports may
therefore originate from different goroutines, e.g. a capture adapter and a
network receive loop, without further coordination by the caller. Replicas do
not share any mutable state with each other.

The Service interface is wrapped by logging and metrics middlewares in the
manner of the other replmap services.
*/
package replica
