package chainclient

import (
	"context"

	"github.com/zecdev/chainfeed/pkg/txparser"
	"github.com/zecdev/chainfeed/pkg/types"
)

// BlockClient reads blocks from a full node.
type BlockClient interface {
	// BlockCount returns the height of the chain tip.
	BlockCount(ctx context.Context) (uint64, error)
	// BlocksByHeight fetches the given heights in one batch. Results may come
	// back in any order.
	BlocksByHeight(ctx context.Context, heights []uint64) ([]*types.Block, error)
}

// TransactionClient reads recent transactions from an indexing API, newest first.
type TransactionClient interface {
	RecentTransactions(ctx context.Context, limit, offset int) ([]*types.Transaction, error)
	TransactionsByType(ctx context.Context, kind txparser.Kind, limit, offset int) ([]*types.Transaction, error)
}
