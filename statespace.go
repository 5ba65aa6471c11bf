// Package statespace is the engine's top-level entry point: the
// StateSpaceBuilder/StateSpaceManager pair of spec.md §6.2, wiring
// Discovery, the optional Value Filter, and the Synchronizer behind
// one functional-option constructor, the way the teacher lineage's
// node packages expose a Config/New/Start surface over their internal
// subsystems.
package statespace

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"

	"github.com/luxfi/statespace/amm"
	"github.com/luxfi/statespace/discovery"
	"github.com/luxfi/statespace/evmlog"
	"github.com/luxfi/statespace/factory"
	"github.com/luxfi/statespace/internal/metrics"
	"github.com/luxfi/statespace/reader"
	"github.com/luxfi/statespace/registry"
	"github.com/luxfi/statespace/statecache"
	syncer "github.com/luxfi/statespace/sync"
	"github.com/luxfi/statespace/valuefilter"
)

// DefaultReorgDepth is the StateChangeCache retention window used
// when a Builder does not set one (spec.md §6.2).
const DefaultReorgDepth = 7

// DefaultNotificationChannelCapacity bounds a fresh Subscription's
// backlog before change notifications begin dropping (spec.md §6.2).
const DefaultNotificationChannelCapacity = 64

// LiquidityFilter configures the optional post-discovery Value Filter
// (spec.md §4.8, §6.2).
type LiquidityFilter struct {
	ReferenceToken common.Address
	Threshold      *big.Float
}

// Builder is the StateSpaceBuilder of spec.md §6.2: the configuration
// object a caller assembles before calling Sync.
type Builder struct {
	factories                   []factory.Factory
	block                       *uint64
	reorgDepth                  uint32
	liquidityFilter             *LiquidityFilter
	logSource                   evmlog.Source
	reader                      reader.Reader
	notificationChannelCapacity int

	discoveryOpts []discovery.Option
	metrics       *metrics.Metrics
}

// Option configures a Builder.
type Option func(*Builder)

// WithFactories sets the Factory set Discovery scans.
func WithFactories(factories ...factory.Factory) Option {
	return func(b *Builder) { b.factories = factories }
}

// WithBlock pins Discovery's target block instead of resolving the Log
// Source's current head.
func WithBlock(block uint64) Option {
	return func(b *Builder) { b.block = &block }
}

// WithReorgDepth overrides DefaultReorgDepth.
func WithReorgDepth(depth uint32) Option {
	return func(b *Builder) { b.reorgDepth = depth }
}

// WithLiquidityFilter enables the Value Filter pass between Discovery
// and Synchronizer startup.
func WithLiquidityFilter(refToken common.Address, threshold *big.Float) Option {
	return func(b *Builder) { b.liquidityFilter = &LiquidityFilter{ReferenceToken: refToken, Threshold: threshold} }
}

// WithLogSource sets the Log Source collaborator (spec.md §6.1).
func WithLogSource(src evmlog.Source) Option {
	return func(b *Builder) { b.logSource = src }
}

// WithStateReader sets the Batch State Reader collaborator (spec.md §6.1).
func WithStateReader(r reader.Reader) Option {
	return func(b *Builder) { b.reader = r }
}

// WithNotificationChannelCapacity overrides
// DefaultNotificationChannelCapacity.
func WithNotificationChannelCapacity(n int) Option {
	return func(b *Builder) { b.notificationChannelCapacity = n }
}

// WithDiscoveryProgress installs the SUPPLEMENTED FEATURES streaming
// progress callback on the Discovery Engine Sync builds.
func WithDiscoveryProgress(fn discovery.ProgressFunc) Option {
	return func(b *Builder) { b.discoveryOpts = append(b.discoveryOpts, discovery.WithProgress(fn)) }
}

// WithMetrics installs a Prometheus collector set shared by Discovery
// and the Synchronizer.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Builder) { b.metrics = m }
}

// NewBuilder constructs a Builder with spec.md §6.2's defaults applied.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		reorgDepth:                  DefaultReorgDepth,
		notificationChannelCapacity: DefaultNotificationChannelCapacity,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Sync drives Discovery, the optional Value Filter, and spawns the
// Synchronizer, returning a Manager for the running engine (spec.md
// §6.2's `sync() -> Result<StateSpaceManager, SetupError>`).
func (b *Builder) Sync(ctx context.Context) (*Manager, error) {
	if b.logSource == nil {
		return nil, fmt.Errorf("statespace: WithLogSource is required")
	}
	if b.reader == nil {
		return nil, fmt.Errorf("statespace: WithStateReader is required")
	}
	if len(b.factories) == 0 {
		return nil, fmt.Errorf("statespace: WithFactories requires at least one factory")
	}

	target, err := b.resolveTargetBlock(ctx)
	if err != nil {
		return nil, fmt.Errorf("statespace: resolving target block: %w", err)
	}

	reg := registry.New()
	engine := discovery.New(b.logSource, b.reader, append(b.discoveryOpts, discovery.WithMetrics(b.metrics))...)
	summary, err := engine.Run(ctx, b.factories, target.Number, reg)
	if err != nil {
		return nil, fmt.Errorf("statespace: discovery: %w", err)
	}
	log.Info("statespace: discovery complete", "pools", reg.Len(), "dropped", len(summary.Dropped))

	if b.liquidityFilter != nil {
		filter := valuefilter.New(b.liquidityFilter.ReferenceToken, b.liquidityFilter.Threshold)
		result := filter.Run(reg)
		log.Info("statespace: value filter complete", "retained", result.Retained, "removed", len(result.Removed))
	}

	cache := statecache.New(int(b.reorgDepth) + 1)
	synchronizer := syncer.New(b.logSource, reg, cache, b.metrics)
	synchronizer.Bootstrap(target)

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- synchronizer.Run(runCtx)
	}()

	return &Manager{
		registry:     reg,
		synchronizer: synchronizer,
		capacity:     b.notificationChannelCapacity,
		cancel:       cancel,
		done:         done,
		discovery:    summary,
	}, nil
}

func (b *Builder) resolveTargetBlock(ctx context.Context) (evmlog.Block, error) {
	if b.block != nil {
		return b.logSource.GetBlock(ctx, common.Hash{}, *b.block)
	}
	return b.logSource.HeadBlock(ctx)
}

// Manager is the StateSpaceManager of spec.md §6.2: the passive handle
// callers keep once Sync has completed, for reading the Registry and
// observing the Synchronizer's live change stream.
type Manager struct {
	registry     *registry.Registry
	synchronizer *syncer.Synchronizer
	capacity     int
	cancel       context.CancelFunc
	done         chan error
	discovery    discovery.Summary
}

// Registry returns the shared read handle over every discovered pool
// (spec.md §6.2's `registry() -> SharedReadHandle<Registry>`). Callers
// may call its read methods concurrently with the Synchronizer; only
// the Synchronizer mutates it.
func (m *Manager) Registry() *registry.Registry { return m.registry }

// DiscoverySummary reports what Discovery found before the Synchronizer started.
func (m *Manager) DiscoverySummary() discovery.Summary { return m.discovery }

// Subscribe returns a Receiver<StateChangeNotification> handle
// (spec.md §6.2's `subscribe()`) with the Builder's notification
// channel capacity.
func (m *Manager) Subscribe() *syncer.Subscription {
	return m.synchronizer.Subscribe(m.capacity)
}

// SubscribeWithCapacity is Subscribe with an explicit backlog capacity.
func (m *Manager) SubscribeWithCapacity(capacity int) *syncer.Subscription {
	return m.synchronizer.Subscribe(capacity)
}

// Head returns the Synchronizer's current (block_number, block_hash)
// (spec.md §6.2).
func (m *Manager) Head() (uint64, common.Hash) {
	return m.synchronizer.Head()
}

// State returns the Synchronizer's lifecycle state.
func (m *Manager) State() syncer.State { return m.synchronizer.State() }

// Err returns the Synchronizer's terminal fault, if any.
func (m *Manager) Err() error { return m.synchronizer.Err() }

// Shutdown cancels the Synchronizer's run loop and blocks until it has
// exited (spec.md §6.2's `shutdown()`).
func (m *Manager) Shutdown() error {
	m.cancel()
	err := <-m.done
	if err != nil && err != amm.ErrCancelled {
		return err
	}
	return nil
}
