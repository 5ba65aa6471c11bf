package amm

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// Error taxonomy from spec.md §7. These are sentinel values so callers
// can branch with errors.Is; call sites wrap them with fmt.Errorf to add
// context rather than constructing ad-hoc string errors.
var (
	// ErrInvalidInput covers caller-level mistakes: unknown token for
	// the pool, or a base/quote identity mismatch. A zero swap amount is
	// not an error; it yields a zero result. No state changes on this
	// path.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPopulateFailed marks a pool that could not be fully populated
	// during Discovery (missing decimals, zero code size, reverted
	// balance read). The pool is dropped, Discovery continues.
	ErrPopulateFailed = errors.New("populate failed")

	// ErrLogMismatch marks a log routed to a pool whose variant does
	// not recognize its topic0.
	ErrLogMismatch = errors.New("log mismatch")

	// ErrReaderError is a transient RPC failure from the State Reader
	// or Log Source.
	ErrReaderError = errors.New("reader error")

	// ErrReorgTooDeep means the chain reorganized beyond the configured
	// reorg depth; terminal for the current Synchronizer session.
	ErrReorgTooDeep = errors.New("reorg too deep")

	// ErrArithmeticOverflow should never occur given the invariants;
	// if it does, the simulation is aborted and state is untouched.
	ErrArithmeticOverflow = errors.New("arithmetic overflow")

	// ErrCancelled indicates clean shutdown via cancellation token.
	ErrCancelled = errors.New("cancelled")
)

// PopulateError records why a single pool shell failed to populate
// during Discovery, letting callers assemble a machine-readable summary
// of dropped pools instead of scraping log lines.
type PopulateError struct {
	Address common.Address
	Reason  string
}

func (e *PopulateError) Error() string {
	return fmt.Sprintf("populate failed for %s: %s", e.Address, e.Reason)
}

func (e *PopulateError) Unwrap() error { return ErrPopulateFailed }

// NewPopulateError wraps a reason string into a PopulateError for pool addr.
func NewPopulateError(addr common.Address, reason string) error {
	return &PopulateError{Address: addr, Reason: reason}
}

// NewLogMismatch wraps ErrLogMismatch with the pool address and the
// unrecognized topic0, for the Synchronizer's per-log drop-and-continue
// handling (spec.md §7 "LogMismatch").
func NewLogMismatch(addr common.Address, topic0 common.Hash) error {
	return fmt.Errorf("%w: pool %s does not recognize topic %s", ErrLogMismatch, addr, topic0)
}
