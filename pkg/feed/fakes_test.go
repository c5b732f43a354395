package feed

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/zecdev/chainfeed/pkg/txparser"
	"github.com/zecdev/chainfeed/pkg/types"
)

func blockHash(h uint64) string {
	return fmt.Sprintf("%064x", h)
}

// fakeChain serves blocks 1..height. Batches are answered in ascending order
// so callers cannot rely on request order.
type fakeChain struct {
	mu       sync.Mutex
	height   uint64
	countErr error
	batchErr error
	gate     chan struct{} // when set, BlocksByHeight blocks until it is closed
	entered  chan struct{} // signalled when BlocksByHeight starts
	batches  [][]uint64
	mangle   func([]*types.Block) []*types.Block
}

func newFakeChain(height uint64) *fakeChain {
	return &fakeChain{height: height}
}

func (f *fakeChain) setHeight(h uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.height = h
}

func (f *fakeChain) setErrors(countErr, batchErr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countErr, f.batchErr = countErr, batchErr
}

func (f *fakeChain) block(ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = ch
	f.entered = make(chan struct{}, 1)
}

func (f *fakeChain) recorded() [][]uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([][]uint64, len(f.batches))
	copy(out, f.batches)
	return out
}

func (f *fakeChain) BlockCount(context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return f.height, nil
}

func (f *fakeChain) BlocksByHeight(ctx context.Context, heights []uint64) ([]*types.Block, error) {
	f.mu.Lock()
	req := append([]uint64(nil), heights...)
	f.batches = append(f.batches, req)
	gate, entered, err, mangle := f.gate, f.entered, f.batchErr, f.mangle
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	blocks := make([]*types.Block, 0, len(req))
	for i := len(req) - 1; i >= 0; i-- {
		h := req[i]
		blocks = append(blocks, &types.Block{Height: h, Hash: blockHash(h), Tx: []string{fmt.Sprintf("cb%d", h)}})
	}
	if mangle != nil {
		blocks = mangle(blocks)
	}
	return blocks, nil
}

func newTx(id string) *types.Transaction {
	return &types.Transaction{TxID: id}
}

func newCoinbaseTx(id string) *types.Transaction {
	return &types.Transaction{TxID: id, Vin: []types.Vin{{Coinbase: "03a0860100"}}}
}

type pageCall struct {
	kind   txparser.Kind
	limit  int
	offset int
}

// fakeTxSource serves a newest-first list of transactions by offset.
type fakeTxSource struct {
	mu      sync.Mutex
	txs     []*types.Transaction
	err     error
	gate    chan struct{}
	entered chan struct{}
	calls   []pageCall
}

func newFakeTxSource(n int) *fakeTxSource {
	f := &fakeTxSource{}
	for i := 0; i < n; i++ {
		f.txs = append(f.txs, newTx(fmt.Sprintf("tx%03d", i)))
	}
	return f
}

// prepend adds txs as the newest ones, in the order given.
func (f *fakeTxSource) prepend(txs ...*types.Transaction) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = append(append([]*types.Transaction(nil), txs...), f.txs...)
}

func (f *fakeTxSource) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func (f *fakeTxSource) block(ch chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = ch
	f.entered = make(chan struct{}, 1)
}

func (f *fakeTxSource) recorded() []pageCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]pageCall(nil), f.calls...)
}

func (f *fakeTxSource) RecentTransactions(ctx context.Context, limit, offset int) ([]*types.Transaction, error) {
	return f.page(ctx, "", limit, offset)
}

func (f *fakeTxSource) TransactionsByType(ctx context.Context, kind txparser.Kind, limit, offset int) ([]*types.Transaction, error) {
	return f.page(ctx, kind, limit, offset)
}

func (f *fakeTxSource) page(ctx context.Context, kind txparser.Kind, limit, offset int) ([]*types.Transaction, error) {
	f.mu.Lock()
	f.calls = append(f.calls, pageCall{kind: kind, limit: limit, offset: offset})
	gate, entered, err := f.gate, f.entered, f.err
	var all []*types.Transaction
	for _, tx := range f.txs {
		if kind == "" || txparser.Classify(tx) == kind {
			all = append(all, tx)
		}
	}
	f.mu.Unlock()

	if entered != nil {
		select {
		case entered <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	if offset >= len(all) {
		return []*types.Transaction{}, nil
	}
	end := min(offset+limit, len(all))
	return append([]*types.Transaction(nil), all[offset:end]...), nil
}

func positions[T any](entries []Entry[T]) []int64 {
	out := make([]int64, len(entries))
	for i, e := range entries {
		out[i] = e.Position
	}
	return out
}

func keys[T any](entries []Entry[T]) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Key
	}
	return out
}

func txIDs(from, to int) []string {
	var out []string
	for i := from; i <= to; i++ {
		out = append(out, fmt.Sprintf("tx%03d", i))
	}
	return out
}

func heightRange(hi, lo int64) []int64 {
	var out []int64
	for h := hi; h >= lo; h-- {
		out = append(out, h)
	}
	return out
}

func stringsReader(s string) *strings.Reader {
	return strings.NewReader(s)
}
