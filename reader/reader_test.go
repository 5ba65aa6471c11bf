package reader

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/luxfi/statespace/amm"
)

func TestForVariantFallsBackToDefaultWhenUnset(t *testing.T) {
	var c ChunkSizes
	assert.Equal(t, DefaultChunkSizes.ConstantProduct, c.ForVariant(amm.VariantConstantProduct))
	assert.Equal(t, DefaultChunkSizes.Concentrated, c.ForVariant(amm.VariantConcentrated))
	assert.Equal(t, DefaultChunkSizes.Vault4626, c.ForVariant(amm.VariantVault4626))
	assert.Equal(t, DefaultChunkSizes.Weighted, c.ForVariant(amm.VariantWeighted))
}

func TestForVariantPrefersExplicitOverride(t *testing.T) {
	c := ChunkSizes{ConstantProduct: 5}
	assert.Equal(t, 5, c.ForVariant(amm.VariantConstantProduct))
	assert.Equal(t, DefaultChunkSizes.Concentrated, c.ForVariant(amm.VariantConcentrated))
}
