package replica

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
	"github.com/satori/go.uuid"
	"golang.org/x/net/context"

	"github.com/go-replica/replmap/comm"
	"github.com/go-replica/replmap/crdt"
)

// Structs

// MissingPredecessorError is surfaced by ImportDelta when a
// received delta skips ahead in some origin's sequence, i.e.
// an earlier operation of that origin was not yet delivered.
// The channel feeding the import has to re-request a fuller
// delta; no retry happens inside the replica.
type MissingPredecessorError struct {
	Origin   string
	Expected uint32
	Received uint32
}

type service struct {
	lock  sync.Mutex
	name  string
	clock *crdt.Clock
	store *crdt.LWWMap
	log   *crdt.Log
	peers map[string]crdt.VClock
}

// Interfaces

// Service defines the interface one replmap replica provides.
type Service interface {

	// Name returns the globally unique identifier
	// of this replica.
	Name() string

	// ApplyLocal allocates the next local sequence number,
	// records the write in the operation log and installs
	// it as the new materialized entry for key.
	ApplyLocal(ctx context.Context, key string, value crdt.Value) (crdt.Operation, error)

	// Read returns the currently materialized value for
	// key, or false if key is absent.
	Read(ctx context.Context, key string) (crdt.Value, bool)

	// Snapshot returns a copy of the complete materialized
	// state of this replica.
	Snapshot(ctx context.Context) map[string]crdt.Entry

	// Frontier returns a copy of this replica's current
	// version vector.
	Frontier(ctx context.Context) crdt.VClock

	// PeerFrontier returns a copy of the last frontier this
	// replica has seen from peer, empty if peer is unknown.
	PeerFrontier(ctx context.Context, peer string) crdt.VClock

	// ExportDelta marshals every retained operation the
	// target frontier does not yet reflect, together with
	// this replica's own frontier. It is read-only and
	// deterministic: equal log state and equal target
	// frontier yield byte-identical output.
	ExportDelta(ctx context.Context, target crdt.VClock) []byte

	// ExportDeltaFor is ExportDelta against the cached last
	// known frontier of peer. An unknown peer receives the
	// full retained log.
	ExportDeltaFor(ctx context.Context, peer string) []byte

	// ImportDelta decodes raw and merges the contained
	// operations into local state. Already-seen operations
	// are skipped, a sequence gap stops the affected
	// origin's chain at its last good prefix and surfaces
	// a *MissingPredecessorError while operations of other
	// origins proceed independently.
	ImportDelta(ctx context.Context, raw []byte) error

	// Compact drops operations from the log that every
	// known peer has acknowledged. It returns the number
	// of operations dropped.
	Compact(ctx context.Context) int
}

// Functions

// Error implements the error interface for MissingPredecessorError.
func (e *MissingPredecessorError) Error() string {
	return fmt.Sprintf("delta skips ahead for origin '%s': expected sequence number %d but received %d", e.Origin, e.Expected, e.Received)
}

// InitService returns a fresh replica with empty state. If
// name is left empty a random unique identifier is assigned.
func InitService(name string) Service {

	if name == "" {
		name = uuid.NewV4().String()
	}

	return &service{
		name:  name,
		clock: crdt.InitClock(name),
		store: crdt.InitLWWMap(),
		log:   crdt.InitLog(),
		peers: make(map[string]crdt.VClock),
	}
}

// Name returns the globally unique identifier of this replica.
func (s *service) Name() string {
	return s.name
}

// ApplyLocal performs the prepare and effect parts of one
// locally originated write. Own writes install unconditionally,
// a replica never conflicts with itself.
func (s *service) ApplyLocal(ctx context.Context, key string, value crdt.Value) (crdt.Operation, error) {

	s.lock.Lock()
	defer s.lock.Unlock()

	op := crdt.Operation{
		Origin: s.name,
		Seq:    s.clock.NextLocal(),
		Key:    key,
		Value:  value,
	}

	// The clock is the sole source of local sequence
	// numbers, a duplicate here is a programming error
	// and not an import anomaly.
	if err := s.log.Append(op); err != nil {
		return crdt.Operation{}, errors.Wrap(err, "local write produced an already-recorded sequence number")
	}

	s.store.Install(op)

	return op, nil
}

// Read returns the currently materialized value for key.
func (s *service) Read(ctx context.Context, key string) (crdt.Value, bool) {

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.store.Read(key)
}

// Snapshot returns a copy of the complete materialized state.
func (s *service) Snapshot(ctx context.Context) map[string]crdt.Entry {

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.store.Entries()
}

// Frontier returns a copy of this replica's version vector.
func (s *service) Frontier(ctx context.Context) crdt.VClock {

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.clock.Frontier()
}

// PeerFrontier returns a copy of the last frontier this
// replica has incorporated from peer.
func (s *service) PeerFrontier(ctx context.Context, peer string) crdt.VClock {

	s.lock.Lock()
	defer s.lock.Unlock()

	frontier, found := s.peers[peer]
	if !found {
		return crdt.InitVClock()
	}

	return frontier.Copy()
}

// ExportDelta materializes the operations the target frontier
// is missing into a marshalled delta.
func (s *service) ExportDelta(ctx context.Context, target crdt.VClock) []byte {

	s.lock.Lock()
	defer s.lock.Unlock()

	return s.exportDelta(target)
}

// ExportDeltaFor exports against the cached frontier of peer.
func (s *service) ExportDeltaFor(ctx context.Context, peer string) []byte {

	s.lock.Lock()
	defer s.lock.Unlock()

	target, found := s.peers[peer]
	if !found {
		target = crdt.InitVClock()
	}

	return s.exportDelta(target)
}

// exportDelta expects the caller to hold the replica lock.
func (s *service) exportDelta(target crdt.VClock) []byte {

	delta := comm.InitDelta()
	delta.Sender = s.name
	delta.SenderFrontier = s.clock.Frontier()

	cursor := s.log.OperationsSince(target)
	for op, ok := cursor.Next(); ok; op, ok = cursor.Next() {
		delta.Operations = append(delta.Operations, op)
	}

	return delta.Marshal()
}

// ImportDelta merges a received delta into local state.
func (s *service) ImportDelta(ctx context.Context, raw []byte) error {

	delta, err := comm.Parse(raw)
	if err != nil {
		return errors.Wrap(err, "failed to decode received delta")
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	// Once an origin's chain showed a gap, every later
	// operation of that origin within this delta is part
	// of the missing suffix and skipped, too. The first
	// gap is surfaced to the caller after all other
	// origins were given the chance to proceed.
	var gap *MissingPredecessorError
	gapped := make(map[string]bool)

	for _, op := range delta.Operations {

		if gapped[op.Origin] {
			continue
		}

		// An already-recorded operation is a harmless
		// re-delivery and skipped without error.
		if s.log.Seen(op.Origin, op.Seq) {
			continue
		}

		if err := s.clock.Observe(op.Origin, op.Seq); err != nil {

			outOfOrder, ok := err.(*crdt.OutOfOrderError)
			if !ok {
				return errors.Wrap(err, "failed to observe operation during import")
			}

			if gap == nil {
				gap = &MissingPredecessorError{
					Origin:   outOfOrder.Origin,
					Expected: outOfOrder.Expected,
					Received: outOfOrder.Received,
				}
			}

			gapped[op.Origin] = true
			continue
		}

		s.store.Apply(op)

		// The clock accepted op as the immediate successor,
		// so the log cannot have recorded it yet.
		if err := s.log.Append(op); err != nil {
			return errors.Wrap(err, "operation log rejected an operation the clock accepted")
		}
	}

	// Remember what the sender knows so that this replica
	// can later export to third parties (and back to the
	// sender) without re-deriving frontiers from scratch.
	cached, found := s.peers[delta.Sender]
	if !found {
		cached = crdt.InitVClock()
		s.peers[delta.Sender] = cached
	}
	cached.Merge(delta.SenderFrontier)

	if gap != nil {
		return gap
	}

	return nil
}

// Compact drops the log prefix every known peer acknowledged.
func (s *service) Compact(ctx context.Context) int {

	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.peers) == 0 {
		return 0
	}

	// Point-wise minimum over all cached peer frontiers:
	// only operations every peer incorporated may go.
	var acked crdt.VClock

	for _, frontier := range s.peers {

		if acked == nil {
			acked = frontier.Copy()
			continue
		}

		for origin, seq := range acked {

			if frontier.Get(origin) < seq {
				acked[origin] = frontier.Get(origin)
			}
		}
	}

	return s.log.Compact(acked)
}
