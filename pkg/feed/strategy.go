package feed

import (
	"context"

	"github.com/zecdev/chainfeed/pkg/txparser"
	"github.com/zecdev/chainfeed/pkg/types"
)

// Strategy is the position-space policy an Engine delegates to. Fetch methods
// run outside the engine lock; Place, Advance and HasMore run under it.
type Strategy[T any] interface {
	// FetchInitial returns the newest window of up to size items.
	FetchInitial(ctx context.Context, size int) ([]T, error)
	// FetchHead returns items newer than b. An empty result issues no merge.
	FetchHead(ctx context.Context, b Boundaries, size int) ([]T, error)
	// FetchTail returns up to count items older than b.
	FetchTail(ctx context.Context, b Boundaries, count int) ([]T, error)
	// Place turns fetched items into window entries for the given direction.
	Place(w *Window[T], items []T, dir Direction) []Entry[T]
	// Advance is told how many entries op added to the window.
	Advance(op Op, added int)
	// HasMore reports whether the tail can be extended after op added items.
	HasMore(b Boundaries, op Op, added int) bool
}

// BlockSource is the data source of a block feed.
type BlockSource interface {
	BlockCount(ctx context.Context) (uint64, error)
	BlocksByHeight(ctx context.Context, heights []uint64) ([]*types.Block, error)
}

// TxSource is the data source of a transaction feed.
type TxSource interface {
	RecentTransactions(ctx context.Context, limit, offset int) ([]*types.Transaction, error)
	TransactionsByType(ctx context.Context, kind txparser.Kind, limit, offset int) ([]*types.Transaction, error)
}
