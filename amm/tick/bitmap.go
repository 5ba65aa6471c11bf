package tick

import "github.com/holiman/uint256"

// Bitmap is the sparse word_index → u256 tick bitmap described in
// spec.md §3: bit b of word w is set iff tick (w*256+b)*tickSpacing is
// present in the tick table with liquidity_gross > 0.
type Bitmap struct {
	words map[int16]*uint256.Int
}

// NewBitmap returns an empty bitmap.
func NewBitmap() *Bitmap {
	return &Bitmap{words: make(map[int16]*uint256.Int)}
}

// Position splits a tick (already divided by tick spacing, i.e.
// "compressed") into its word index and bit position within that word.
// Uses floor division / Euclidean modulo so negative compressed ticks
// map to the correct word, matching Solidity's TickBitmap.position.
func Position(compressed int32) (wordPos int16, bitPos uint8) {
	word := compressed >> 8 // arithmetic shift: floor division by 256
	bit := compressed - (word << 8)
	return int16(word), uint8(bit)
}

// Compress divides tick by spacing, flooring toward negative infinity
// (ticks must be a multiple of spacing on input from Mint/Burn events,
// but callers scanning for "next tick" pass arbitrary ticks).
func Compress(t int32, spacing int32) int32 {
	q := t / spacing
	if t%spacing != 0 && (t < 0) != (spacing < 0) {
		q--
	}
	return q
}

func (b *Bitmap) word(idx int16) *uint256.Int {
	w, ok := b.words[idx]
	if !ok {
		w = new(uint256.Int)
		b.words[idx] = w
	}
	return w
}

// IsSet reports whether the bit for compressed tick position is set.
func (b *Bitmap) IsSet(compressed int32) bool {
	wordPos, bitPos := Position(compressed)
	w, ok := b.words[wordPos]
	if !ok {
		return false
	}
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	test := new(uint256.Int).And(w, mask)
	return !test.IsZero()
}

// Flip toggles the bit for compressed tick position, matching the
// Mint/Burn rule "if a tick was not initialized, set its bitmap bit".
func (b *Bitmap) Flip(compressed int32) {
	wordPos, bitPos := Position(compressed)
	w := b.word(wordPos)
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	w.Xor(w, mask)
}

// Clear unsets the bit for compressed tick position (used when a tick's
// liquidity_gross returns to zero on Burn).
func (b *Bitmap) Clear(compressed int32) {
	if b.IsSet(compressed) {
		b.Flip(compressed)
	}
}

// Clone deep-copies the bitmap, used by Pool.Snapshot.
func (b *Bitmap) Clone() *Bitmap {
	out := NewBitmap()
	for k, v := range b.words {
		out.words[k] = new(uint256.Int).Set(v)
	}
	return out
}

// NextInitializedWithinOneWord finds the next initialized tick at or
// adjacent to compressed, scanning only the current word (callers step
// to the next word themselves on exhaustion, per spec.md §4.1 step 2).
//
// lte selects the scan direction: true scans toward lower ticks
// (zeroForOne swaps), false scans toward higher ticks.
func (b *Bitmap) NextInitializedWithinOneWord(compressed int32, lte bool) (next int32, initialized bool) {
	if lte {
		wordPos, bitPos := Position(compressed)
		w, ok := b.words[wordPos]
		if !ok {
			w = new(uint256.Int)
		}
		// mask = bits at position <= bitPos
		mask := new(uint256.Int).Sub(
			new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos)+1),
			uint256.NewInt(1),
		)
		masked := new(uint256.Int).And(w, mask)
		if masked.IsZero() {
			return int32(wordPos)*256 - 1, false
		}
		msb := mostSignificantBit(masked)
		return int32(wordPos)*256 + int32(msb), true
	}

	wordPos, bitPos := Position(compressed + 1)
	w, ok := b.words[wordPos]
	if !ok {
		w = new(uint256.Int)
	}
	// mask = bits at position >= bitPos
	lowMask := new(uint256.Int).Sub(
		new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos)),
		uint256.NewInt(1),
	)
	allOnes := new(uint256.Int).Not(uint256.NewInt(0))
	mask := new(uint256.Int).Xor(allOnes, lowMask)
	masked := new(uint256.Int).And(w, mask)
	if masked.IsZero() {
		return int32(wordPos)*256 + 255, false
	}
	lsb := leastSignificantBit(masked)
	return int32(wordPos)*256 + int32(lsb), true
}

func mostSignificantBit(x *uint256.Int) int {
	b := x.ToBig()
	return b.BitLen() - 1
}

func leastSignificantBit(x *uint256.Int) int {
	b := x.ToBig()
	for i := 0; i < b.BitLen(); i++ {
		if b.Bit(i) == 1 {
			return i
		}
	}
	return 0
}
