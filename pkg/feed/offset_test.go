package feed

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zecdev/chainfeed/pkg/txparser"
	"github.com/zecdev/chainfeed/pkg/types"
	"go.uber.org/zap"
)

func newTxEngine(t *testing.T, src *fakeTxSource, kind txparser.Kind) (*Engine[*types.Transaction], *OffsetStrategy) {
	t.Helper()
	s, err := NewOffsetStrategy(src, kind)
	require.NoError(t, err)
	e, err := NewEngine[*types.Transaction](zap.NewNop().Sugar(), "transactions", s,
		WithWindowSize(DefaultTransactionWindowSize))
	require.NoError(t, err)
	return e, s
}

func TestNewOffsetStrategy_NilSource(t *testing.T) {
	t.Parallel()
	_, err := NewOffsetStrategy(nil, "")
	require.ErrorContains(t, err, "invalid transaction source")
}

func TestEngine_TxInitialize(t *testing.T) {
	t.Parallel()
	src := newFakeTxSource(30)
	e, s := newTxEngine(t, src, "")

	require.NoError(t, e.Initialize(t.Context()))

	snap := e.Snapshot()
	require.Equal(t, txIDs(0, 9), keys(snap.Items))
	require.Equal(t, heightRange(10, 1), positions(snap.Items))
	require.True(t, snap.State.HasMore)
	require.Equal(t, 10, s.NextOffset())
	require.Equal(t, []pageCall{{limit: 10, offset: 0}}, src.recorded())
}

func TestEngine_TxPollHeadPrependsUnseenInOrder(t *testing.T) {
	t.Parallel()
	src := newFakeTxSource(30)
	e, s := newTxEngine(t, src, "")
	require.NoError(t, e.Initialize(t.Context()))

	src.prepend(newTx("new-a"), newTx("new-b"))
	res := e.PollHead(t.Context())
	require.Equal(t, StatusMerged, res.Status)
	require.Equal(t, 10, res.Fetched)
	require.Equal(t, 2, res.Added)

	snap := e.Snapshot()
	require.Equal(t, append([]string{"new-a", "new-b"}, txIDs(0, 9)...), keys(snap.Items))
	require.Equal(t, heightRange(12, 1), positions(snap.Items))
	require.Equal(t, 10, s.NextOffset(), "head polls leave the tail offset alone")

	// Nothing new: all duplicates, window untouched.
	res = e.PollHead(t.Context())
	require.Equal(t, StatusNoOp, res.Status)
	require.Equal(t, 12, e.State().Len)
}

func TestEngine_TxOffsetAdvancesByUniqueCount(t *testing.T) {
	t.Parallel()
	src := newFakeTxSource(40)
	e, s := newTxEngine(t, src, "")
	require.NoError(t, e.Initialize(t.Context()))

	// Three newer transactions shift the source's pages by three, so the next
	// page starting at offset 10 repeats tx007..tx009.
	src.prepend(newTx("new-a"), newTx("new-b"), newTx("new-c"))

	res := e.ExtendTail(t.Context(), 10)
	require.Equal(t, StatusMerged, res.Status)
	require.Equal(t, 10, res.Fetched)
	require.Equal(t, 7, res.Added)
	require.True(t, res.HasMore)
	require.Equal(t, 17, s.NextOffset())

	// The shift persists, so the next page overlaps by three again.
	res = e.ExtendTail(t.Context(), 10)
	require.Equal(t, StatusMerged, res.Status)
	require.Equal(t, 7, res.Added)
	require.Equal(t, 24, s.NextOffset())

	calls := src.recorded()
	require.Len(t, calls, 3)
	require.Equal(t, pageCall{limit: 10, offset: 10}, calls[1])
	require.Equal(t, pageCall{limit: 10, offset: 17}, calls[2], "next page must start at offset+7, not offset+10")

	snap := e.Snapshot()
	require.Equal(t, txIDs(0, 23), keys(snap.Items), "no transaction skipped or repeated")
	// Tail ranks continue below the initial window.
	require.Equal(t, heightRange(10, -13), positions(snap.Items))
}

func TestEngine_TxTailExhaustion(t *testing.T) {
	t.Parallel()
	src := newFakeTxSource(12)
	e, _ := newTxEngine(t, src, "")
	require.NoError(t, e.Initialize(t.Context()))

	res := e.ExtendTail(t.Context(), 10)
	require.Equal(t, 2, res.Added)
	require.True(t, res.HasMore)

	res = e.ExtendTail(t.Context(), 10)
	require.Equal(t, StatusNoOp, res.Status)
	require.Zero(t, res.Fetched)
	require.False(t, res.HasMore)
	require.False(t, e.State().HasMore)
}

func TestEngine_TxFullyDuplicatePageEndsTail(t *testing.T) {
	t.Parallel()
	src := newFakeTxSource(10)
	e, s := newTxEngine(t, src, "")
	require.NoError(t, e.Initialize(t.Context()))

	// Ten newer transactions: the page at offset 10 is now exactly the cached window.
	var newer []*types.Transaction
	for i := 0; i < 10; i++ {
		newer = append(newer, newTx("n"+string(rune('a'+i))))
	}
	src.prepend(newer...)

	res := e.ExtendTail(t.Context(), 10)
	require.Equal(t, StatusNoOp, res.Status)
	require.Equal(t, 10, res.Fetched)
	require.Zero(t, res.Added)
	require.False(t, res.HasMore)
	require.Equal(t, 10, s.NextOffset())
}

func TestEngine_TxEmptyInitialPage(t *testing.T) {
	t.Parallel()
	src := newFakeTxSource(0)
	e, _ := newTxEngine(t, src, "")
	require.NoError(t, e.Initialize(t.Context()))

	st := e.State()
	require.Equal(t, PhaseReady, st.Phase)
	require.False(t, st.HasMore)
	require.False(t, st.Boundaries.Known)

	src.prepend(newTx("first"))
	res := e.PollHead(t.Context())
	require.Equal(t, 1, res.Added)
	require.Equal(t, Boundaries{Highest: 1, Lowest: 1, Known: true}, e.State().Boundaries)
}

func TestEngine_TxFirstHeadPageSeedsTailOffset(t *testing.T) {
	t.Parallel()
	src := newFakeTxSource(0)
	e, s := newTxEngine(t, src, "")
	require.NoError(t, e.Initialize(t.Context()))
	require.Equal(t, 0, s.NextOffset())

	src.prepend(newFakeTxSource(25).txs...)
	res := e.PollHead(t.Context())
	require.Equal(t, 10, res.Added)
	require.True(t, res.HasMore)
	require.True(t, e.State().HasMore)
	require.Equal(t, 10, s.NextOffset())

	res = e.ExtendTail(t.Context(), 10)
	require.Equal(t, 10, res.Added)
	require.True(t, res.HasMore)
	require.Equal(t, 20, s.NextOffset())

	res = e.ExtendTail(t.Context(), 10)
	require.Equal(t, 5, res.Added)
	require.True(t, res.HasMore)
	require.Equal(t, 25, s.NextOffset())

	res = e.ExtendTail(t.Context(), 10)
	require.Equal(t, StatusNoOp, res.Status)
	require.False(t, res.HasMore)
	require.Equal(t, 25, s.NextOffset())

	require.Equal(t, txIDs(0, 24), keys(e.Snapshot().Items))
	calls := src.recorded()
	require.Equal(t, 10, calls[len(calls)-3].offset)
	require.Equal(t, 20, calls[len(calls)-2].offset)
	require.Equal(t, 25, calls[len(calls)-1].offset)
}

func TestEngine_TxFailureKeepsOffset(t *testing.T) {
	t.Parallel()
	src := newFakeTxSource(30)
	e, s := newTxEngine(t, src, "")
	require.NoError(t, e.Initialize(t.Context()))

	src.setErr(&types.TransportError{Op: "transactions", StatusCode: 500, Err: errors.New("internal")})
	res := e.ExtendTail(t.Context(), 10)
	require.Equal(t, StatusFailed, res.Status)
	require.ErrorIs(t, res.Err, types.ErrTransport)
	require.True(t, res.HasMore)
	require.Equal(t, 10, s.NextOffset())

	src.setErr(nil)
	res = e.ExtendTail(t.Context(), 10)
	require.Equal(t, 10, res.Added)
	require.Equal(t, 20, s.NextOffset())
}

func TestEngine_TxKindFilter(t *testing.T) {
	t.Parallel()
	src := newFakeTxSource(5)
	src.prepend(newCoinbaseTx("cb-2"), newTx("std"), newCoinbaseTx("cb-1"))
	e, s := newTxEngine(t, src, txparser.KindCoinbase)
	require.Equal(t, txparser.KindCoinbase, s.Kind())

	require.NoError(t, e.Initialize(t.Context()))
	require.Equal(t, []string{"cb-2", "cb-1"}, keys(e.Snapshot().Items))
	require.Equal(t, []pageCall{{kind: txparser.KindCoinbase, limit: 10, offset: 0}}, src.recorded())
}

func TestOffsetStrategy_PlaceDropsCachedAndRepeated(t *testing.T) {
	t.Parallel()
	s, err := NewOffsetStrategy(newFakeTxSource(0), "")
	require.NoError(t, err)

	w := NewWindow[*types.Transaction]()
	w.Merge(s.Place(w, []*types.Transaction{newTx("a"), newTx("b")}, Head), Head)

	entries := s.Place(w, []*types.Transaction{newTx("c"), newTx("a"), newTx("c"), newTx(""), newTx("d")}, Tail)
	require.Equal(t, []string{"c", "d"}, keys(entries))
	require.Equal(t, []int64{0, -1}, positions(entries))
}
