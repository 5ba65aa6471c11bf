// Package discovery implements the Discovery Engine (spec.md §4.5):
// walking each Factory's historic creation-log range, materializing
// pool shells, populating them via a Batch State Reader, and
// inserting survivors into the Registry.
package discovery

import (
	"context"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/sync/errgroup"

	"github.com/luxfi/statespace/amm"
	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/factory"
	"github.com/luxfi/statespace/internal/metrics"
	"github.com/luxfi/statespace/reader"
	"github.com/luxfi/statespace/registry"
)

// DefaultPageSize is the block-range width of one paginated log
// query during the historic creation-log scan (spec.md §4.5).
const DefaultPageSize = 5_000

// DefaultRetryBudget bounds how many times a single chunk call may be
// retried (with exponential backoff, at the same chunk size; a failing
// chunk is not split into smaller calls) before the
// whole Discovery run fails (spec.md §5 "Timeouts", §7 "ReaderError").
const DefaultRetryBudget = 5

// Progress reports incremental scan status, used by SUPPLEMENTED
// FEATURES' optional streaming progress callback.
type Progress struct {
	Factory          common.Address
	ScannedToBlock   uint64
	ShellsFound      int
}

// ProgressFunc receives Progress updates during the historic log walk.
type ProgressFunc func(Progress)

// Dropped records why a pool shell was not inserted into the Registry.
type Dropped struct {
	Address common.Address
	Variant amm.Variant
	Reason  string
}

// Summary reports the outcome of one Discovery run.
type Summary struct {
	DiscoveredByVariant map[amm.Variant]int
	Dropped             []Dropped
}

// Engine runs Discovery against a Log Source and a Batch State Reader.
type Engine struct {
	logSource   evmlog.Source
	reader      reader.Reader
	chunkSizes  reader.ChunkSizes
	pageSize    uint64
	retryBudget int
	countOnly   bool
	onProgress  ProgressFunc
	concurrency int
	metrics     *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

func WithChunkSizes(c reader.ChunkSizes) Option { return func(e *Engine) { e.chunkSizes = c } }
func WithPageSize(n uint64) Option              { return func(e *Engine) { e.pageSize = n } }
func WithRetryBudget(n int) Option              { return func(e *Engine) { e.retryBudget = n } }
func WithProgress(fn ProgressFunc) Option       { return func(e *Engine) { e.onProgress = fn } }
func WithConcurrency(n int) Option              { return func(e *Engine) { e.concurrency = n } }
func WithMetrics(m *metrics.Metrics) Option     { return func(e *Engine) { e.metrics = m } }

// WithCountOnly enables the SUPPLEMENTED FEATURES dry-run mode: scan
// and build shells but skip read_static/read_dynamic and Registry
// insertion, for estimating factory pool counts before a full sync.
func WithCountOnly(v bool) Option { return func(e *Engine) { e.countOnly = v } }

// New constructs a Discovery Engine over the given collaborators.
func New(logSource evmlog.Source, rdr reader.Reader, opts ...Option) *Engine {
	e := &Engine{
		logSource:   logSource,
		reader:      rdr,
		chunkSizes:  reader.DefaultChunkSizes,
		pageSize:    DefaultPageSize,
		retryBudget: DefaultRetryBudget,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run scans every factory's creation-log range up to targetBlock,
// populates surviving shells, and inserts them into reg (spec.md
// §4.5). Discovery is idempotent given the same (factories,
// targetBlock): the resulting membership does not depend on
// pagination boundaries, since every page is scanned in full before
// grouping and populating.
func (e *Engine) Run(ctx context.Context, factories []factory.Factory, targetBlock uint64, reg *registry.Registry) (Summary, error) {
	shells, err := e.scanAll(ctx, factories, targetBlock)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{DiscoveredByVariant: make(map[amm.Variant]int)}
	if e.countOnly {
		for _, s := range shells {
			summary.DiscoveredByVariant[s.Variant()]++
		}
		return summary, nil
	}

	grouped := groupByVariant(shells)
	for variant, group := range grouped {
		chunkSize := e.chunkSizes.ForVariant(variant)
		survivors, dropped, err := e.populateGroup(ctx, group, chunkSize, targetBlock)
		if err != nil {
			return summary, err
		}
		summary.Dropped = append(summary.Dropped, dropped...)
		for _, d := range dropped {
			e.metrics.ObservePoolDropped(d.Variant.String(), d.Reason)
		}
		for _, pool := range survivors {
			if err := reg.Insert(pool); err != nil {
				log.Warn("discovery: duplicate pool address, skipping", "address", pool.Address(), "err", err)
				continue
			}
			summary.DiscoveredByVariant[variant]++
			e.metrics.ObservePoolDiscovered(variant.String())
		}
	}
	return summary, nil
}

func (e *Engine) scanAll(ctx context.Context, factories []factory.Factory, targetBlock uint64) ([]amm.Pool, error) {
	var shells []amm.Pool
	for _, f := range factories {
		found := 0
		from := f.CreationBlock()
		for from <= targetBlock {
			to := from + e.pageSize - 1
			if to > targetBlock {
				to = targetBlock
			}

			logs, err := e.fetchLogsWithRetry(ctx, evmlog.Filter{
				FromBlock: from,
				ToBlock:   to,
				Addresses: []common.Address{f.Address()},
				Topics:    []common.Hash{f.PoolCreationEventSignature()},
			})
			if err != nil {
				return nil, fmt.Errorf("discovery: scanning factory %s blocks %d-%d: %w", f.Address(), from, to, err)
			}

			evmlog.SortLogs(logs)
			for _, l := range logs {
				shell, err := f.CreatePoolShell(l)
				if err != nil {
					log.Debug("discovery: failed to parse creation log", "factory", f.Address(), "err", err)
					continue
				}
				shells = append(shells, shell)
				found++
			}

			if e.onProgress != nil {
				e.onProgress(Progress{Factory: f.Address(), ScannedToBlock: to, ShellsFound: found})
			}
			if to == targetBlock {
				break
			}
			from = to + 1
		}
	}
	return shells, nil
}

func (e *Engine) fetchLogsWithRetry(ctx context.Context, filter evmlog.Filter) ([]evmlog.Log, error) {
	var logs []evmlog.Log
	op := func() error {
		var err error
		logs, err = e.logSource.Logs(ctx, filter)
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.retryBudget))
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("%w: %v", amm.ErrReaderError, err)
	}
	return logs, nil
}

func groupByVariant(shells []amm.Pool) map[amm.Variant][]amm.Pool {
	out := make(map[amm.Variant][]amm.Pool)
	for _, s := range shells {
		out[s.Variant()] = append(out[s.Variant()], s)
	}
	return out
}

// populateGroup runs read_static then read_dynamic over group in
// chunks of chunkSize, fanned out with bounded concurrency via
// errgroup, and applies the per-variant survival predicate
// (spec.md §4.5 step 3).
func (e *Engine) populateGroup(ctx context.Context, group []amm.Pool, chunkSize int, targetBlock uint64) ([]amm.Pool, []Dropped, error) {
	type chunkResult struct {
		pools   []amm.Pool
		dropped []Dropped
	}

	chunks := chunkPools(group, chunkSize)
	results := make([]chunkResult, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			res, err := e.populateChunk(gctx, chunk, targetBlock)
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var survivors []amm.Pool
	var dropped []Dropped
	for _, r := range results {
		survivors = append(survivors, r.pools...)
		dropped = append(dropped, r.dropped...)
	}
	return survivors, dropped, nil
}

func (e *Engine) populateChunk(ctx context.Context, chunk []amm.Pool, targetBlock uint64) (res struct {
	pools   []amm.Pool
	dropped []Dropped
}, err error) {
	failedStatic, err := e.readStaticWithRetry(ctx, chunk)
	if err != nil {
		return res, err
	}
	failedSet := toSet(failedStatic)

	var remaining []amm.Pool
	for _, p := range chunk {
		if _, bad := failedSet[p.Address()]; bad {
			res.dropped = append(res.dropped, Dropped{Address: p.Address(), Variant: p.Variant(), Reason: "read_static failed"})
			continue
		}
		remaining = append(remaining, p)
	}

	failedDynamic, err := e.readDynamicWithRetry(ctx, remaining, targetBlock)
	if err != nil {
		return res, err
	}
	failedSet = toSet(failedDynamic)

	for _, p := range remaining {
		if _, bad := failedSet[p.Address()]; bad {
			res.dropped = append(res.dropped, Dropped{Address: p.Address(), Variant: p.Variant(), Reason: "read_dynamic failed"})
			continue
		}
		if reason, ok := survives(p); !ok {
			res.dropped = append(res.dropped, Dropped{Address: p.Address(), Variant: p.Variant(), Reason: reason})
			continue
		}
		res.pools = append(res.pools, p)
	}
	return res, nil
}

func (e *Engine) readStaticWithRetry(ctx context.Context, chunk []amm.Pool) ([]amm.ID, error) {
	var failed []amm.ID
	op := func() error {
		var err error
		failed, err = e.reader.ReadStatic(ctx, chunk)
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.retryBudget))
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("%w: read_static: %v", amm.ErrReaderError, err)
	}
	return failed, nil
}

func (e *Engine) readDynamicWithRetry(ctx context.Context, chunk []amm.Pool, blockNumber uint64) ([]amm.ID, error) {
	if len(chunk) == 0 {
		return nil, nil
	}
	var failed []amm.ID
	op := func() error {
		var err error
		failed, err = e.reader.ReadDynamic(ctx, chunk, blockNumber)
		return err
	}
	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(e.retryBudget))
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("%w: read_dynamic: %v", amm.ErrReaderError, err)
	}
	return failed, nil
}

func toSet(ids []amm.ID) map[amm.ID]struct{} {
	out := make(map[amm.ID]struct{}, len(ids))
	for _, id := range ids {
		out[id] = struct{}{}
	}
	return out
}

func chunkPools(pools []amm.Pool, size int) [][]amm.Pool {
	if size <= 0 {
		size = len(pools)
		if size == 0 {
			size = 1
		}
	}
	var out [][]amm.Pool
	for i := 0; i < len(pools); i += size {
		end := i + size
		if end > len(pools) {
			end = len(pools)
		}
		out = append(out, pools[i:end])
	}
	return out
}

// survives applies the per-variant populate predicate of spec.md §4.5
// step 3.
func survives(p amm.Pool) (reason string, ok bool) {
	switch pool := p.(type) {
	case *amm.ConstantProductPool:
		if pool.TokenA.Address == (common.Address{}) || pool.TokenB.Address == (common.Address{}) {
			return "zero token address", false
		}
		if pool.ReserveA.Sign() <= 0 || pool.ReserveB.Sign() <= 0 {
			return "non-positive reserves", false
		}
	case *amm.ConcentratedPool:
		if pool.TokenA.Address == (common.Address{}) || pool.TokenB.Address == (common.Address{}) {
			return "zero token address", false
		}
	case *amm.Vault4626Pool:
		if pool.Asset.Address == (common.Address{}) {
			return "unresolvable asset token", false
		}
	case *amm.WeightedPool:
		valid := 0
		for _, t := range pool.Tokens() {
			if t.Address != (common.Address{}) {
				valid++
			}
		}
		if valid < 2 {
			return "fewer than 2 valid tokens", false
		}
	}
	return "", true
}
