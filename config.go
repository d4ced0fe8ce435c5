package bvfold

import (
	"github.com/rs/zerolog"
)

// Config holds the solver policies consulted by the Evaluator. It is read
// once at construction and never changes afterwards.
type Config struct {
	// DivisionByZeroReturnsOne makes every division, remainder and modulus by
	// zero evaluate to the constant 1.
	DivisionByZeroReturnsOne bool

	// CounterexampleChecking is set while checking counterexamples during
	// refinement. A failing division then evaluates to zero and raises
	// Result.DivisionException instead of aborting.
	CounterexampleChecking bool

	// Logger receives trace and diagnostic events. Nil disables logging.
	Logger *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{}
}

func (c Config) logger() zerolog.Logger {
	if c.Logger == nil {
		return zerolog.Nop()
	}
	return c.Logger.With().Str("module", "consteval").Logger()
}
