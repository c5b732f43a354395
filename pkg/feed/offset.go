package feed

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/zecdev/chainfeed/pkg/txparser"
	"github.com/zecdev/chainfeed/pkg/types"
)

// OffsetStrategy pages transactions by offset. The source has no dense position
// space, so positions are synthetic recency ranks assigned at merge time: head
// items rank above Highest and tail items below Lowest, in the order returned.
//
// The tail offset advances by the number of unique items appended, never by the
// raw page size, so a page overlapping the cache does not skip anything.
type OffsetStrategy struct {
	src        TxSource
	kind       txparser.Kind // empty means unfiltered
	nextOffset atomic.Int64
}

var _ Strategy[*types.Transaction] = (*OffsetStrategy)(nil)

// NewOffsetStrategy creates a transaction strategy. A non-empty kind restricts
// the feed to that transaction type.
func NewOffsetStrategy(src TxSource, kind txparser.Kind) (*OffsetStrategy, error) {
	if src == nil {
		return nil, errors.New("invalid transaction source: must not be nil")
	}
	return &OffsetStrategy{src: src, kind: kind}, nil
}

// Kind returns the transaction type filter, empty when unfiltered.
func (s *OffsetStrategy) Kind() txparser.Kind {
	return s.kind
}

// NextOffset returns the offset the next tail extension will request.
func (s *OffsetStrategy) NextOffset() int {
	return int(s.nextOffset.Load())
}

func (s *OffsetStrategy) FetchInitial(ctx context.Context, size int) ([]*types.Transaction, error) {
	return s.page(ctx, size, 0)
}

// FetchHead refetches the newest page; unseen transactions are kept by Place.
func (s *OffsetStrategy) FetchHead(ctx context.Context, _ Boundaries, size int) ([]*types.Transaction, error) {
	return s.page(ctx, size, 0)
}

func (s *OffsetStrategy) FetchTail(ctx context.Context, _ Boundaries, count int) ([]*types.Transaction, error) {
	return s.page(ctx, count, s.NextOffset())
}

func (s *OffsetStrategy) page(ctx context.Context, limit, offset int) ([]*types.Transaction, error) {
	var (
		txs []*types.Transaction
		err error
	)
	if s.kind == "" {
		txs, err = s.src.RecentTransactions(ctx, limit, offset)
	} else {
		txs, err = s.src.TransactionsByType(ctx, s.kind, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("get transactions (limit %d, offset %d): %w", limit, offset, err)
	}
	for _, tx := range txs {
		if tx == nil {
			return nil, &types.MalformedResponseError{Op: "transactions", Detail: "nil transaction in page"}
		}
	}
	return txs, nil
}

// Place drops transactions already cached or repeated in the page and ranks
// the survivors in the order returned.
func (s *OffsetStrategy) Place(w *Window[*types.Transaction], items []*types.Transaction, dir Direction) []Entry[*types.Transaction] {
	fresh := make([]*types.Transaction, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, tx := range items {
		if tx.TxID == "" || w.Contains(tx.TxID) {
			continue
		}
		if _, ok := seen[tx.TxID]; ok {
			continue
		}
		seen[tx.TxID] = struct{}{}
		fresh = append(fresh, tx)
	}

	b := w.Boundaries()
	entries := make([]Entry[*types.Transaction], 0, len(fresh))
	for i, tx := range fresh {
		var pos int64
		if dir == Head || !b.Known {
			pos = b.Highest + int64(len(fresh)-i)
		} else {
			pos = b.Lowest - 1 - int64(i)
		}
		entries = append(entries, Entry[*types.Transaction]{Position: pos, Key: tx.TxID, Value: tx})
	}
	return entries
}

// Advance moves the tail offset. Head polls leave it alone: transactions they
// prepend shift the source's pages, and the resulting overlap is absorbed by
// deduplication on the next tail page.
func (s *OffsetStrategy) Advance(op Op, added int) {
	switch op {
	case OpInitialize:
		s.nextOffset.Store(int64(added))
	case OpExtendTail:
		s.nextOffset.Add(int64(added))
	}
}

// HasMore is false after an empty or fully duplicate page.
func (s *OffsetStrategy) HasMore(_ Boundaries, _ Op, added int) bool {
	return added > 0
}
