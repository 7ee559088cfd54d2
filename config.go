package tracker

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config carries the operationally significant tolerances of the engine.
// The observed systems never pin these values, so they are configuration
// with explicit defaults rather than hardcoded guesses.
type Config struct {
	// MatchWindow is the "same timestamp" tolerance: TRANSFER legs of one
	// asset within this window are considered sides of the same move.
	MatchWindow time.Duration

	// QuantityEpsilon bounds what counts as zero: two legs are additive
	// inverses when their sum is within it, and a reconciliation delta
	// within it creates no row.
	QuantityEpsilon decimal.Decimal

	// FeeTolerance is the largest nonzero residual of a two-leg transfer
	// still classified FEE_MISMATCH instead of INVALID_LEGS.
	FeeTolerance decimal.Decimal

	// PriceRefreshInterval is the cache age beyond which an AUTO price is
	// flagged stale.
	PriceRefreshInterval time.Duration
}

// DefaultConfig returns the default tolerances.
func DefaultConfig() Config {
	return Config{
		MatchWindow:          12 * time.Hour,
		QuantityEpsilon:      decimal.New(1, -8), // 1e-8
		FeeTolerance:         decimal.New(5, -1), // 0.5
		PriceRefreshInterval: 15 * time.Minute,
	}
}

// withDefaults fills zero-valued fields with the defaults.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MatchWindow == 0 {
		c.MatchWindow = d.MatchWindow
	}
	if c.QuantityEpsilon.IsZero() {
		c.QuantityEpsilon = d.QuantityEpsilon
	}
	if c.FeeTolerance.IsZero() {
		c.FeeTolerance = d.FeeTolerance
	}
	if c.PriceRefreshInterval == 0 {
		c.PriceRefreshInterval = d.PriceRefreshInterval
	}
	return c
}

// isZero reports whether q is zero within the configured epsilon.
func (c Config) isZero(q Quantity) bool {
	return !q.Abs().GreaterThan(Q(c.QuantityEpsilon))
}
