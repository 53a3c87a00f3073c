package predicate

import (
	"math/bits"

	"colq/internal/bitmap"
)

// denseThreshold is the incoming-selection fullness above which the dense
// SIMD-flavored block pass is used instead of the sparse trailing-zero
// walk: when the incoming selection is more than 50% set, the dense pass
// is used; otherwise the sparse path iterates only the set bits.
const denseThreshold = 0.5

// evalMasked restricts sel in place to rows where validity (if non-nil)
// says the row is non-null AND test(row) is true, picking the dense or
// sparse evaluation path based on sel's current fullness.
func evalMasked(sel *bitmap.Bitmap, validity *bitmap.Bitmap, test func(row int) bool) {
	if sel.Selectivity() > denseThreshold {
		evalDense(sel, validity, test)
	} else {
		evalSparse(sel, validity, test)
	}
}

// evalDense scans block by block. An all-ones block inside [0,n) is walked
// as one contiguous run of 64 values (the "dense SIMD reduction" lane a real
// vector unit would chew through); a partial block still only visits its set
// bits via trailing-zero-count, since skipping zero bits is free either way.
func evalDense(sel *bitmap.Bitmap, validity *bitmap.Bitmap, test func(row int) bool) {
	n := sel.Len()
	blocks := sel.Blocks()
	for blockIdx := range blocks {
		block := blocks[blockIdx]
		if block == 0 {
			continue
		}
		base := blockIdx * 64
		if block == ^uint64(0) && base+64 <= n {
			var newBlock uint64
			for off := 0; off < 64; off++ {
				row := base + off
				if (validity == nil || validity.Test(row)) && test(row) {
					newBlock |= uint64(1) << uint(off)
				}
			}
			blocks[blockIdx] = newBlock
			continue
		}
		blocks[blockIdx] = evalPartialBlock(block, base, n, validity, test)
	}
}

// evalSparse only ever visits set bits, via repeated trailing-zero-count,
// regardless of how full the selection is.
func evalSparse(sel *bitmap.Bitmap, validity *bitmap.Bitmap, test func(row int) bool) {
	n := sel.Len()
	blocks := sel.Blocks()
	for blockIdx := range blocks {
		block := blocks[blockIdx]
		if block == 0 {
			continue
		}
		base := blockIdx * 64
		blocks[blockIdx] = evalPartialBlock(block, base, n, validity, test)
	}
}

func evalPartialBlock(block uint64, base, n int, validity *bitmap.Bitmap, test func(row int) bool) uint64 {
	remaining := block
	var newBlock uint64
	for remaining != 0 {
		tz := bits.TrailingZeros64(remaining)
		bit := uint64(1) << uint(tz)
		row := base + tz
		if row < n && (validity == nil || validity.Test(row)) && test(row) {
			newBlock |= bit
		}
		remaining &= remaining - 1
	}
	return newBlock
}
