package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/zecdev/chainfeed/pkg/types"
)

// MinHeight is the lowest height a block feed extends to.
const MinHeight = 1

// DenseStrategy addresses blocks by height. Positions are heights and keys are
// block hashes.
type DenseStrategy struct {
	src BlockSource
}

var _ Strategy[*types.Block] = (*DenseStrategy)(nil)

// NewDenseStrategy creates a block strategy backed by src.
func NewDenseStrategy(src BlockSource) (*DenseStrategy, error) {
	if src == nil {
		return nil, errors.New("invalid block source: must not be nil")
	}
	return &DenseStrategy{src: src}, nil
}

func (s *DenseStrategy) FetchInitial(ctx context.Context, size int) ([]*types.Block, error) {
	head, err := s.src.BlockCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("get block count: %w", err)
	}
	if head < MinHeight {
		return nil, nil
	}
	from := uint64(MinHeight)
	if head >= uint64(size) {
		from = max(head-uint64(size)+1, MinHeight)
	}
	return s.fetchRange(ctx, from, head)
}

// FetchHead fetches exactly (Highest, head]. Nothing is fetched when the head
// has not advanced.
func (s *DenseStrategy) FetchHead(ctx context.Context, b Boundaries, size int) ([]*types.Block, error) {
	if !b.Known {
		return s.FetchInitial(ctx, size)
	}
	head, err := s.src.BlockCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("get block count: %w", err)
	}
	if int64(head) <= b.Highest {
		return nil, nil
	}
	return s.fetchRange(ctx, uint64(b.Highest)+1, head)
}

// FetchTail fetches [max(1, Lowest-count) .. Lowest-1].
func (s *DenseStrategy) FetchTail(ctx context.Context, b Boundaries, count int) ([]*types.Block, error) {
	if !b.Known || b.Lowest <= MinHeight {
		return nil, nil
	}
	from := max(b.Lowest-int64(count), MinHeight)
	return s.fetchRange(ctx, uint64(from), uint64(b.Lowest-1))
}

func (s *DenseStrategy) fetchRange(ctx context.Context, from, to uint64) ([]*types.Block, error) {
	if from > to {
		return nil, nil
	}
	heights := make([]uint64, 0, to-from+1)
	for h := to; ; h-- {
		heights = append(heights, h)
		if h == from {
			break
		}
	}

	blocks, err := s.src.BlocksByHeight(ctx, heights)
	if err != nil {
		return nil, fmt.Errorf("get blocks %d..%d: %w", from, to, err)
	}
	for _, b := range blocks {
		if b == nil {
			return nil, &types.MalformedResponseError{Op: "getblock", Detail: "nil block in batch"}
		}
		if b.Height < from || b.Height > to {
			return nil, &types.MalformedResponseError{
				Op:     "getblock",
				Detail: fmt.Sprintf("block height %d outside requested range %d..%d", b.Height, from, to),
			}
		}
	}
	return blocks, nil
}

func (s *DenseStrategy) Place(_ *Window[*types.Block], items []*types.Block, _ Direction) []Entry[*types.Block] {
	entries := make([]Entry[*types.Block], 0, len(items))
	for _, b := range items {
		entries = append(entries, Entry[*types.Block]{
			Position: int64(b.Height),
			Key:      b.Hash,
			Value:    b,
		})
	}
	return entries
}

func (s *DenseStrategy) Advance(Op, int) {}

// HasMore is false once the tail reached height 1.
func (s *DenseStrategy) HasMore(b Boundaries, _ Op, _ int) bool {
	return b.Known && b.Lowest > MinHeight
}
