/*
Package capture implements the rate-limited capture adapter that sits between
a raw external event source (e.g. pointer movement) and a replica's local write
entry point. It applies a trailing-edge fixed-window throttle: the first event
opens a window, later events within the window replace the pending one, and
when the window elapses the last event seen is delivered. Throttling happens
strictly outside the replica's critical section; it bounds write cadence and
has no bearing on convergence.
*/
package capture
