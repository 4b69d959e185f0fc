package replica

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"golang.org/x/net/context"

	"github.com/go-replica/replmap/comm"
	"github.com/go-replica/replmap/crdt"
)

// Functions

// TestApplyLocalAndRead executes a unit test on locally
// originated writes and reads.
func TestApplyLocalAndRead(t *testing.T) {

	ctx := context.Background()
	a := InitService("A")

	op, err := a.ApplyLocal(ctx, "x", crdt.IntValue(1))
	assert.Nil(t, err, "expected first local write to succeed")
	assert.Equal(t, uint32(1), op.Seq, "expected first local write to carry sequence number 1")

	op, err = a.ApplyLocal(ctx, "x", crdt.IntValue(2))
	assert.Nil(t, err, "expected second local write to succeed")
	assert.Equal(t, uint32(2), op.Seq, "expected second local write to carry sequence number 2")

	value, found := a.Read(ctx, "x")
	assert.True(t, found, "expected key 'x' to be present after writing")
	assert.True(t, value.Equal(crdt.IntValue(2)), "expected last local write to be materialized")

	_, found = a.Read(ctx, "missing")
	assert.False(t, found, "expected unwritten key to be absent")

	assert.Equal(t, uint32(2), a.Frontier(ctx).Get("A"), "expected own frontier entry to track local writes")
}

// TestImportCatchesUp executes a unit test on the elementary
// synchronization scenario: replica B, starting from an empty
// frontier, incorporates the full history of replica A.
func TestImportCatchesUp(t *testing.T) {

	ctx := context.Background()
	a := InitService("A")
	b := InitService("B")

	a.ApplyLocal(ctx, "x", crdt.IntValue(1))
	a.ApplyLocal(ctx, "x", crdt.IntValue(2))

	raw := a.ExportDelta(ctx, b.Frontier(ctx))

	err := b.ImportDelta(ctx, raw)
	assert.Nil(t, err, "expected import of a complete delta to succeed")

	value, found := b.Read(ctx, "x")
	assert.True(t, found, "expected key 'x' to be present after import")
	assert.True(t, value.Equal(crdt.IntValue(2)), "expected B to materialize A's latest write")

	assert.Equal(t, uint32(2), b.Frontier(ctx).Get("A"), "expected B's frontier for A to equal 2")

	// B also learned what A knew at export time.
	assert.Equal(t, uint32(2), b.PeerFrontier(ctx, "A").Get("A"), "expected B to cache A's frontier from the delta")
}

// TestConcurrentTieBreak executes a unit test on the
// deterministic resolution of concurrent writes carrying
// equal sequence numbers.
func TestConcurrentTieBreak(t *testing.T) {

	ctx := context.Background()
	a := InitService("A")
	b := InitService("B")

	// Both replicas write the same key unaware of each
	// other, both writes carry sequence number 1.
	a.ApplyLocal(ctx, "x", crdt.IntValue(1))
	b.ApplyLocal(ctx, "x", crdt.IntValue(9))

	// Exchange deltas in both directions.
	assert.Nil(t, b.ImportDelta(ctx, a.ExportDeltaFor(ctx, "B")), "expected B to import A's delta")
	assert.Nil(t, a.ImportDelta(ctx, b.ExportDeltaFor(ctx, "A")), "expected A to import B's delta")

	// "B" sorts greater than "A", so B's write wins the
	// tie on both sides regardless of application order.
	valueOnA, _ := a.Read(ctx, "x")
	valueOnB, _ := b.Read(ctx, "x")
	assert.True(t, valueOnA.Equal(crdt.IntValue(9)), "expected A to converge on the tie-break winner")
	assert.True(t, valueOnB.Equal(crdt.IntValue(9)), "expected B to converge on the tie-break winner")

	// A third replica importing from either side converges
	// on the tie-break winner regardless of the source.
	c1 := InitService("C1")
	c2 := InitService("C2")

	assert.Nil(t, c1.ImportDelta(ctx, a.ExportDelta(ctx, crdt.InitVClock())), "expected import from A to succeed")
	assert.Nil(t, c2.ImportDelta(ctx, b.ExportDelta(ctx, crdt.InitVClock())), "expected import from B to succeed")

	valueOnC1, _ := c1.Read(ctx, "x")
	valueOnC2, _ := c2.Read(ctx, "x")
	assert.True(t, valueOnC1.Equal(crdt.IntValue(9)), "expected third party fed by A to converge on the winner")
	assert.True(t, valueOnC2.Equal(crdt.IntValue(9)), "expected third party fed by B to converge on the winner")
}

// TestMissingPredecessor executes a unit test verifying that a
// delta skipping ahead in an origin's sequence is rejected and
// leaves state for that origin unchanged.
func TestMissingPredecessor(t *testing.T) {

	ctx := context.Background()
	a := InitService("A")
	b := InitService("B")

	a.ApplyLocal(ctx, "x", crdt.IntValue(1))
	a.ApplyLocal(ctx, "x", crdt.IntValue(2))
	a.ApplyLocal(ctx, "x", crdt.IntValue(3))

	// Truncate A's delta down to only its third operation.
	full, err := comm.Parse(a.ExportDelta(ctx, crdt.InitVClock()))
	assert.Nil(t, err, "expected parsing A's own delta to succeed")

	gapped := &comm.Delta{
		Sender:         full.Sender,
		SenderFrontier: full.SenderFrontier,
		Operations:     full.Operations[2:],
	}

	err = b.ImportDelta(ctx, gapped.Marshal())
	assert.NotNil(t, err, "expected import of a gapped delta to fail")

	missing, ok := errors.Cause(err).(*MissingPredecessorError)
	assert.True(t, ok, "expected a *MissingPredecessorError")
	assert.Equal(t, "A", missing.Origin, "expected the gap to be attributed to origin A")
	assert.Equal(t, uint32(1), missing.Expected, "expected sequence number 1 to be the missing predecessor")
	assert.Equal(t, uint32(3), missing.Received, "expected the gapped operation to carry sequence number 3")

	// No partial effects for origin A.
	_, found := b.Read(ctx, "x")
	assert.False(t, found, "expected no materialized state from a rejected chain")
	assert.Equal(t, uint32(0), b.Frontier(ctx).Get("A"), "expected B's frontier for A to stay at zero")
}

// TestGapLeavesOtherOriginsUnaffected executes a unit test
// verifying that a gap in one origin's chain does not stop
// operations of other origins within the same delta.
func TestGapLeavesOtherOriginsUnaffected(t *testing.T) {

	ctx := context.Background()

	gapped := &comm.Delta{
		Sender:         "A",
		SenderFrontier: crdt.VClock{"A": 3, "B": 1},
		Operations: []crdt.Operation{
			{Origin: "A", Seq: 2, Key: "x", Value: crdt.IntValue(2)},
			{Origin: "B", Seq: 1, Key: "y", Value: crdt.IntValue(10)},
			{Origin: "A", Seq: 3, Key: "x", Value: crdt.IntValue(3)},
		},
	}

	c := InitService("C")

	err := c.ImportDelta(ctx, gapped.Marshal())
	assert.NotNil(t, err, "expected import to surface the gap for origin A")

	_, ok := errors.Cause(err).(*MissingPredecessorError)
	assert.True(t, ok, "expected a *MissingPredecessorError")

	// B's chain proceeded independently.
	value, found := c.Read(ctx, "y")
	assert.True(t, found, "expected B's operation to be applied despite A's gap")
	assert.True(t, value.Equal(crdt.IntValue(10)), "expected B's value to be materialized")
	assert.Equal(t, uint32(1), c.Frontier(ctx).Get("B"), "expected B's chain to advance")
	assert.Equal(t, uint32(0), c.Frontier(ctx).Get("A"), "expected A's chain to stay at its last good prefix")
}

// TestIdempotentImport executes a unit test verifying that
// importing the same delta twice equals importing it once.
func TestIdempotentImport(t *testing.T) {

	ctx := context.Background()
	a := InitService("A")
	b := InitService("B")

	a.ApplyLocal(ctx, "x", crdt.IntValue(1))
	a.ApplyLocal(ctx, "y", crdt.StringValue("hello"))

	raw := a.ExportDelta(ctx, crdt.InitVClock())

	assert.Nil(t, b.ImportDelta(ctx, raw), "expected first import to succeed")
	before := b.Snapshot(ctx)

	// Re-delivery of the identical delta is a no-op,
	// not an error.
	assert.Nil(t, b.ImportDelta(ctx, raw), "expected re-import of the same delta to succeed")
	after := b.Snapshot(ctx)

	assert.Equal(t, before, after, "expected state after re-import to be unchanged")
	assert.Equal(t, uint32(2), b.Frontier(ctx).Get("A"), "expected frontier to be unchanged by re-import")
}

// TestDeltaMinimality executes a unit test verifying that an
// export carries exactly the operations the target frontier
// is missing, and nothing for a caught-up target.
func TestDeltaMinimality(t *testing.T) {

	ctx := context.Background()
	a := InitService("A")

	a.ApplyLocal(ctx, "x", crdt.IntValue(1))
	a.ApplyLocal(ctx, "y", crdt.IntValue(2))
	a.ApplyLocal(ctx, "z", crdt.IntValue(3))

	// A target that equals the exporter's own frontier
	// receives zero operations.
	caughtUp, err := comm.Parse(a.ExportDelta(ctx, a.Frontier(ctx)))
	assert.Nil(t, err, "expected parsing the caught-up delta to succeed")
	assert.Equal(t, 0, len(caughtUp.Operations), "expected zero operations for a caught-up target")

	// A partially caught-up target receives exactly the
	// missing suffix.
	partial, err := comm.Parse(a.ExportDelta(ctx, crdt.VClock{"A": 1}))
	assert.Nil(t, err, "expected parsing the partial delta to succeed")
	assert.Equal(t, 2, len(partial.Operations), "expected exactly the two missing operations")
	assert.Equal(t, uint32(2), partial.Operations[0].Seq, "expected the missing suffix to start right after the frontier")
	assert.Equal(t, uint32(3), partial.Operations[1].Seq, "expected per-origin sequence order to be preserved")
}

// TestExportDeterministic executes a unit test verifying that
// equal log state and equal target frontier yield
// byte-identical exports.
func TestExportDeterministic(t *testing.T) {

	ctx := context.Background()
	a := InitService("A")

	a.ApplyLocal(ctx, "x", crdt.IntValue(1))
	a.ApplyLocal(ctx, "y", crdt.FloatValue(12.34))
	a.ApplyLocal(ctx, "z", crdt.BoolValue(true))

	first := a.ExportDelta(ctx, crdt.InitVClock())
	second := a.ExportDelta(ctx, crdt.InitVClock())

	assert.Equal(t, first, second, "expected repeated exports of equal state to be byte-identical")
}

// TestConvergenceShuffledOrders executes a unit test verifying
// that two fresh replicas importing the same operation set in
// different valid orders materialize identical state.
func TestConvergenceShuffledOrders(t *testing.T) {

	ctx := context.Background()

	writers := []Service{InitService("A"), InitService("B"), InitService("C")}

	// Every writer mutates a shared key plus one of its own.
	for i, w := range writers {
		w.ApplyLocal(ctx, "shared", crdt.IntValue(int64(i)))
		w.ApplyLocal(ctx, "own/"+w.Name(), crdt.BoolValue(true))
		w.ApplyLocal(ctx, "shared", crdt.StringValue(w.Name()))
	}

	deltas := make([][]byte, len(writers))
	for i, w := range writers {
		deltas[i] = w.ExportDelta(ctx, crdt.InitVClock())
	}

	// Import the per-origin chains in two different orders.
	first := InitService("D1")
	for _, i := range []int{0, 1, 2} {
		assert.Nil(t, first.ImportDelta(ctx, deltas[i]), "expected import in forward order to succeed")
	}

	second := InitService("D2")
	for _, i := range []int{2, 0, 1} {
		assert.Nil(t, second.ImportDelta(ctx, deltas[i]), "expected import in shuffled order to succeed")
	}

	assert.Equal(t, first.Snapshot(ctx), second.Snapshot(ctx), "expected both import orders to converge on identical state")

	// The shared key converged on the tie-break winner of
	// the highest (seq, origin) pair, which is (3, "C").
	value, _ := first.Read(ctx, "shared")
	assert.True(t, value.Equal(crdt.StringValue("C")), "expected the greatest (seq, origin) pair to win the shared key")
}

// TestImportDecodeError executes a unit test verifying that
// malformed bytes surface a *comm.DecodeError to the caller.
func TestImportDecodeError(t *testing.T) {

	ctx := context.Background()
	a := InitService("A")

	err := a.ImportDelta(ctx, []byte("certainly not a delta"))
	assert.NotNil(t, err, "expected import of garbage to fail")

	_, ok := errors.Cause(err).(*comm.DecodeError)
	assert.True(t, ok, "expected a *comm.DecodeError")

	assert.Equal(t, 0, len(a.Snapshot(ctx)), "expected state to be left intact")
}

// TestCompact executes a unit test on compaction of
// fully-acknowledged log prefixes.
func TestCompact(t *testing.T) {

	ctx := context.Background()
	a := InitService("A")
	b := InitService("B")

	a.ApplyLocal(ctx, "x", crdt.IntValue(1))
	a.ApplyLocal(ctx, "x", crdt.IntValue(2))

	// Without any known peer nothing may be dropped.
	assert.Equal(t, 0, a.Compact(ctx), "expected no compaction without known peers")

	// Full round trip: B catches up, then tells A about it
	// through the frontier of its (empty) return delta.
	assert.Nil(t, b.ImportDelta(ctx, a.ExportDeltaFor(ctx, "B")), "expected B to catch up")
	assert.Nil(t, a.ImportDelta(ctx, b.ExportDeltaFor(ctx, "A")), "expected A to learn B's frontier")

	assert.Equal(t, 2, a.Compact(ctx), "expected the acknowledged prefix to be dropped")

	// Exporting to B afterwards still works and is empty.
	parsed, err := comm.Parse(a.ExportDeltaFor(ctx, "B"))
	assert.Nil(t, err, "expected parsing the post-compaction delta to succeed")
	assert.Equal(t, 0, len(parsed.Operations), "expected nothing left to send after compaction")
}
