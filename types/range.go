package types

import (
	"fmt"
	"math"
)

// BlockRange is a half-open range of block heights [From, From+Count).
type BlockRange struct {
	From  uint64
	Count uint64
}

func (r BlockRange) String() string {
	if r.Count == 0 {
		return fmt.Sprintf("[%v, %v)", r.From, r.From)
	}

	return fmt.Sprintf("[%v, %v]", r.From, r.To())
}

// To returns the last block height included in the range. Only meaningful
// for non-empty ranges.
func (r BlockRange) To() uint64 {
	return r.From + r.Count - 1
}

// Overflows checks if the last block height of the range exceeds uint64.
func (r BlockRange) Overflows() bool {
	return r.Count > 0 && r.From > math.MaxUint64-(r.Count-1)
}

func (r BlockRange) IsEmpty() bool {
	return r.Count == 0
}

// Contains checks if the block height is included in the range.
func (r BlockRange) Contains(bn uint64) bool {
	return r.Count > 0 && bn >= r.From && bn <= r.To()
}

// NewBlockRangeTo creates a block range from `from` to `to` (both inclusive)
// with at most `maxCount` blocks.
func NewBlockRangeTo(from, to, maxCount uint64) BlockRange {
	if from > to || maxCount == 0 {
		return BlockRange{From: from}
	}

	count := to - from + 1
	if count > maxCount {
		count = maxCount
	}

	return BlockRange{From: from, Count: count}
}
