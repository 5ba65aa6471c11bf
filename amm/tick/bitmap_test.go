package tick

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestBitmapFlipTogglesExactBit(t *testing.T) {
	b := NewBitmap()
	assert.False(t, b.IsSet(10))
	b.Flip(10)
	assert.True(t, b.IsSet(10))
	assert.False(t, b.IsSet(11))
	b.Flip(10)
	assert.False(t, b.IsSet(10))
}

func TestBitmapFlipNegativeCompressedTick(t *testing.T) {
	b := NewBitmap()
	b.Flip(-5)
	assert.True(t, b.IsSet(-5))
	assert.False(t, b.IsSet(5))
}

func TestBitmapCloneIsIndependent(t *testing.T) {
	b := NewBitmap()
	b.Flip(3)
	clone := b.Clone()
	b.Flip(7)
	assert.True(t, clone.IsSet(3))
	assert.False(t, clone.IsSet(7))
}

func TestCompressFloorsTowardNegativeInfinity(t *testing.T) {
	assert.Equal(t, int32(1), Compress(60, 60))
	assert.Equal(t, int32(0), Compress(59, 60))
	assert.Equal(t, int32(-1), Compress(-1, 60))
	assert.Equal(t, int32(-1), Compress(-60, 60))
	assert.Equal(t, int32(-2), Compress(-61, 60))
}

func TestNextInitializedWithinOneWordFindsSetBitLte(t *testing.T) {
	b := NewBitmap()
	b.Flip(5)
	next, ok := b.NextInitializedWithinOneWord(10, true)
	assert.True(t, ok)
	assert.Equal(t, int32(5), next)
}

func TestNextInitializedWithinOneWordNoneFoundLte(t *testing.T) {
	b := NewBitmap()
	next, ok := b.NextInitializedWithinOneWord(10, true)
	assert.False(t, ok)
	assert.Equal(t, int32(-1), next)
}

func TestNextInitializedWithinOneWordFindsSetBitGt(t *testing.T) {
	b := NewBitmap()
	b.Flip(20)
	next, ok := b.NextInitializedWithinOneWord(10, false)
	assert.True(t, ok)
	assert.Equal(t, int32(20), next)
}

func TestPositionRoundTrips(t *testing.T) {
	for _, compressed := range []int32{-300, -256, -1, 0, 1, 255, 256, 1000} {
		word, bit := Position(compressed)
		reconstructed := int32(word)*256 + int32(bit)
		assert.Equal(t, compressed, reconstructed)
	}
}

func TestUint256MaskSanity(t *testing.T) {
	one := uint256.NewInt(1)
	assert.False(t, one.IsZero())
}
