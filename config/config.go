// Package config loads StateSpaceBuilder options from layered
// YAML/env sources via github.com/spf13/viper (env > file >
// defaults), mirroring the layered node-configuration convention used
// across the teacher lineage. Config loading is a convenience layered
// on top of the Builder's functional-option API; the Builder itself
// never depends on viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"

	"github.com/luxfi/statespace/reader"
)

// FactoryConfig describes one factory entry from the config file.
type FactoryConfig struct {
	Address       common.Address
	CreationBlock uint64
	Variant       string // "constant-product" | "concentrated" | "vault4626" | "weighted"
	FeeBps        uint32 // only meaningful for constant-product
}

// Config is the plain struct produced by Load, handed to
// statespace.NewBuilder (spec.md §6.2).
type Config struct {
	Factories                   []FactoryConfig
	StartBlock                  uint64
	ReorgDepth                  uint32
	ReferenceToken              common.Address
	LiquidityThreshold          *big.Float
	NotificationChannelCapacity int
	DiscoveryChunkSize          reader.ChunkSizes
	DiscoveryRetryBudget        int
	DiscoveryPageSize           uint64
}

func defaults() Config {
	return Config{
		ReorgDepth:                  7,
		NotificationChannelCapacity: 64,
		DiscoveryChunkSize:          reader.DefaultChunkSizes,
		DiscoveryRetryBudget:        5,
		DiscoveryPageSize:           5_000,
	}
}

// Load reads configuration from the given paths (every existing file
// is merged in order, later files overriding earlier ones; missing
// files are skipped), overlaid with STATESPACE_-prefixed environment variables,
// overlaid on the package defaults.
func Load(paths ...string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STATESPACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("reorg_depth", 7)
	v.SetDefault("notification_channel_capacity", 64)
	v.SetDefault("discovery.retry_budget", 5)
	v.SetDefault("discovery.page_size", 5_000)
	v.SetDefault("discovery.chunk_size.constant_product", reader.DefaultChunkSizes.ConstantProduct)
	v.SetDefault("discovery.chunk_size.concentrated", reader.DefaultChunkSizes.Concentrated)
	v.SetDefault("discovery.chunk_size.vault4626", reader.DefaultChunkSizes.Vault4626)
	v.SetDefault("discovery.chunk_size.weighted", reader.DefaultChunkSizes.Weighted)

	for _, p := range paths {
		v.SetConfigFile(p)
		if err := v.MergeInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); notFound || errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Config{}, fmt.Errorf("config: reading %s: %w", p, err)
		}
	}

	cfg := defaults()
	cfg.StartBlock = v.GetUint64("start_block")
	cfg.ReorgDepth = uint32(v.GetUint("reorg_depth"))
	cfg.NotificationChannelCapacity = v.GetInt("notification_channel_capacity")
	cfg.DiscoveryRetryBudget = v.GetInt("discovery.retry_budget")
	cfg.DiscoveryPageSize = v.GetUint64("discovery.page_size")
	cfg.DiscoveryChunkSize = reader.ChunkSizes{
		ConstantProduct: v.GetInt("discovery.chunk_size.constant_product"),
		Concentrated:    v.GetInt("discovery.chunk_size.concentrated"),
		Vault4626:       v.GetInt("discovery.chunk_size.vault4626"),
		Weighted:        v.GetInt("discovery.chunk_size.weighted"),
	}

	if ref := v.GetString("reference_token"); ref != "" {
		cfg.ReferenceToken = common.HexToAddress(ref)
	}
	if th := v.GetString("liquidity_threshold"); th != "" {
		f, ok := new(big.Float).SetString(th)
		if !ok {
			return Config{}, fmt.Errorf("config: invalid liquidity_threshold %q", th)
		}
		cfg.LiquidityThreshold = f
	}

	var rawFactories []map[string]interface{}
	if err := v.UnmarshalKey("factories", &rawFactories); err != nil {
		return Config{}, fmt.Errorf("config: parsing factories: %w", err)
	}
	for _, rf := range rawFactories {
		fc := FactoryConfig{}
		if addr, ok := rf["address"].(string); ok {
			fc.Address = common.HexToAddress(addr)
		}
		if variant, ok := rf["variant"].(string); ok {
			fc.Variant = variant
		}
		if block, ok := toUint64(rf["creation_block"]); ok {
			fc.CreationBlock = block
		}
		if fee, ok := toUint64(rf["fee_bps"]); ok {
			fc.FeeBps = uint32(fee)
		}
		cfg.Factories = append(cfg.Factories, fc)
	}

	return cfg, nil
}

func toUint64(v interface{}) (uint64, bool) {
	switch n := v.(type) {
	case int:
		return uint64(n), true
	case int64:
		return uint64(n), true
	case uint64:
		return n, true
	case float64:
		return uint64(n), true
	default:
		return 0, false
	}
}
