// Package bitmap implements the selection bitmap substrate: a packed
// bit-per-row set that survives a chain of predicate evaluations. It is the
// lingua franca row-survival representation passed between every other
// package in the engine.
//
// The block storage is github.com/kelindar/bitmap's Bitmap type (a plain
// []uint64), the same type kelindar/column uses as its filtering index. We
// layer our own pooled acquire/release, block-wise boolean algebra, and
// trailing-zero sparse iteration on top of it, since the invariants this
// engine relies on (explicit release, zeroed tail bits, dense/sparse path
// selection) are not something a generic bitmap library promises.
package bitmap

import (
	"math/bits"
	"sync"

	kb "github.com/kelindar/bitmap"

	"colq/internal/colqerr"
)

const blockBits = 64

// Bitmap is a fixed-length, pooled selection bitmap over n logical rows.
type Bitmap struct {
	blocks kb.Bitmap // len(blocks) == numBlocks(n), tail bits beyond n-1 always zero
	n      int
}

func numBlocks(n int) int {
	if n <= 0 {
		return 0
	}
	return (n + blockBits - 1) / blockBits
}

var pool = sync.Pool{
	New: func() any { return &Bitmap{} },
}

// Acquire returns a pooled Bitmap of length n, every bit set to `set`.
// Callers must call Release when the bitmap is no longer needed.
func Acquire(n int, set bool) *Bitmap {
	b, _ := pool.Get().(*Bitmap)
	nb := numBlocks(n)
	if cap(b.blocks) < nb {
		b.blocks = make(kb.Bitmap, nb)
	} else {
		b.blocks = b.blocks[:nb]
	}
	b.n = n
	fill := uint64(0)
	if set {
		fill = ^uint64(0)
	}
	for i := range b.blocks {
		b.blocks[i] = fill
	}
	if set {
		b.zeroTail()
	}
	return b
}

// New allocates a fresh, non-pooled Bitmap. Prefer Acquire on hot paths.
func New(n int, set bool) *Bitmap {
	nb := numBlocks(n)
	blocks := make(kb.Bitmap, nb)
	fill := uint64(0)
	if set {
		fill = ^uint64(0)
	}
	for i := range blocks {
		blocks[i] = fill
	}
	b := &Bitmap{blocks: blocks, n: n}
	if set {
		b.zeroTail()
	}
	return b
}

// Release returns the bitmap's storage to the pool. The Bitmap must not be
// used again afterwards.
func (b *Bitmap) Release() {
	if b == nil {
		return
	}
	pool.Put(b)
}

// Len returns the number of logical rows this bitmap covers.
func (b *Bitmap) Len() int { return b.n }

func (b *Bitmap) zeroTail() {
	if b.n == 0 || len(b.blocks) == 0 {
		return
	}
	rem := b.n % blockBits
	if rem == 0 {
		return
	}
	mask := (uint64(1) << uint(rem)) - 1
	b.blocks[len(b.blocks)-1] &= mask
}

// Clone returns an independent copy backed by freshly pooled storage.
func (b *Bitmap) Clone() *Bitmap {
	c := Acquire(b.n, false)
	copy(c.blocks, b.blocks)
	return c
}

// Set marks row i as selected.
func (b *Bitmap) Set(i int) {
	b.blocks[i/blockBits] |= 1 << uint(i%blockBits)
}

// Clear marks row i as not selected.
func (b *Bitmap) Clear(i int) {
	b.blocks[i/blockBits] &^= 1 << uint(i%blockBits)
}

// Test reports whether row i is currently selected.
func (b *Bitmap) Test(i int) bool {
	return b.blocks[i/blockBits]&(1<<uint(i%blockBits)) != 0
}

func (b *Bitmap) checkCompat(other *Bitmap) error {
	if b.n != other.n {
		return colqerr.New(colqerr.InvalidArg, "bitmap length mismatch: %d vs %d", b.n, other.n)
	}
	return nil
}

// And intersects other into b in place.
func (b *Bitmap) And(other *Bitmap) error {
	if err := b.checkCompat(other); err != nil {
		return err
	}
	for i := range b.blocks {
		b.blocks[i] &= other.blocks[i]
	}
	return nil
}

// Or unions other into b in place.
func (b *Bitmap) Or(other *Bitmap) error {
	if err := b.checkCompat(other); err != nil {
		return err
	}
	for i := range b.blocks {
		b.blocks[i] |= other.blocks[i]
	}
	return nil
}

// AndNot clears every bit set in other from b, in place.
func (b *Bitmap) AndNot(other *Bitmap) error {
	if err := b.checkCompat(other); err != nil {
		return err
	}
	for i := range b.blocks {
		b.blocks[i] &^= other.blocks[i]
	}
	return nil
}

// Not inverts every bit in place, re-zeroing the tail bits beyond Len()-1.
func (b *Bitmap) Not() {
	for i := range b.blocks {
		b.blocks[i] = ^b.blocks[i]
	}
	b.zeroTail()
}

// CountSet returns the number of set bits, summing per-block popcount.
func (b *Bitmap) CountSet() int {
	count := 0
	for _, block := range b.blocks {
		count += bits.OnesCount64(block)
	}
	return count
}

// Any reports whether at least one bit is set.
func (b *Bitmap) Any() bool {
	for _, block := range b.blocks {
		if block != 0 {
			return true
		}
	}
	return false
}

// All reports whether every one of the n logical bits is set.
func (b *Bitmap) All() bool {
	return b.CountSet() == b.n
}

// Blocks returns the borrowed underlying 64-bit block slice. Callers must
// not retain it beyond the bitmap's lifetime.
func (b *Bitmap) Blocks() []uint64 {
	return b.blocks
}

// Selectivity returns the fraction of rows currently selected, in [0,1].
func (b *Bitmap) Selectivity() float64 {
	if b.n == 0 {
		return 0
	}
	return float64(b.CountSet()) / float64(b.n)
}

// SelectedIndices returns a range-over-func iterator yielding each selected
// row index in ascending order, using repeated trailing-zero-count so that
// zero runs are skipped instead of scanned bit by bit.
func (b *Bitmap) SelectedIndices() func(yield func(int) bool) {
	return func(yield func(int) bool) {
		for blockIdx, block := range b.blocks {
			base := blockIdx * blockBits
			for block != 0 {
				tz := bits.TrailingZeros64(block)
				if !yield(base + tz) {
					return
				}
				block &= block - 1 // clear lowest set bit
			}
		}
	}
}

// Each row index i with fn(i) == false is cleared; used by the sparse
// per-block evaluation path shared by predicates and aggregators.
func (b *Bitmap) FilterInPlace(fn func(row int) bool) {
	for blockIdx := range b.blocks {
		block := b.blocks[blockIdx]
		if block == 0 {
			continue
		}
		base := blockIdx * blockBits
		remaining := block
		for remaining != 0 {
			tz := bits.TrailingZeros64(remaining)
			row := base + tz
			bit := uint64(1) << uint(tz)
			if !fn(row) {
				block &^= bit
			}
			remaining &= remaining - 1
		}
		b.blocks[blockIdx] = block
	}
}
