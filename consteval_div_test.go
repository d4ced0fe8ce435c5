package bvfold_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/borzacchiello/bvfold"
)

type divisionBuilder func(lhs, rhs *bvfold.BVExprPtr) (*bvfold.BVExprPtr, error)

func divisionOps(eb *bvfold.ExprBuilder) map[string]divisionBuilder {
	return map[string]divisionBuilder{
		"udiv": eb.UDiv,
		"urem": eb.URem,
		"sdiv": eb.SDiv,
		"srem": eb.SRem,
		"smod": eb.SMod,
	}
}

func TestDivisionByZeroIsAnError(t *testing.T) {
	eb := bvfold.NewExprBuilder()
	ev := bvfold.NewEvaluator(eb, bvfold.DefaultConfig())

	for name, mk := range divisionOps(eb) {
		t.Run(name, func(t *testing.T) {
			e := mustBV(t)(mk(eb.BVV(7, 8), eb.BVV(0, 8)))
			_, err := ev.Eval(e)
			require.Error(t, err)
			assert.True(t, bvfold.IsDivisionError(err), "got %v", err)
			assert.True(t, errors.Is(err, bvfold.ErrDivisionByZero))

			var evalErr *bvfold.EvalError
			require.True(t, errors.As(err, &evalErr))
			assert.Equal(t, e.String(), evalErr.Expr)
		})
	}
}

func TestDivisionByZeroReturnsOne(t *testing.T) {
	eb := bvfold.NewExprBuilder()
	ev := bvfold.NewEvaluator(eb, bvfold.Config{DivisionByZeroReturnsOne: true})

	for name, mk := range divisionOps(eb) {
		t.Run(name, func(t *testing.T) {
			for _, size := range []uint{8, 16} {
				for _, xv := range sampleValues {
					e := mustBV(t)(mk(eb.BVV(xv, size), eb.BVV(0, size)))
					v := evalBV(t, ev, e)
					assert.True(t, v.IsOne(), "%s by zero at %d bits gave %s", e, size, v)
					assert.Equal(t, size, v.Size)
				}
			}
		})
	}

	// a non-zero divisor is not affected
	e := mustBV(t)(eb.UDiv(eb.BVV(7, 16), eb.BVV(2, 16)))
	assert.Equal(t, uint64(3), evalBV(t, ev, e).AsULong())
}

func TestDivisionErrorOnSharedDAG(t *testing.T) {
	eb := bvfold.NewExprBuilder()
	ev := bvfold.NewEvaluator(eb, bvfold.DefaultConfig())

	e := eb.BVV(1, 64)
	for i := 0; i < 64; i++ {
		e = mustBV(t)(eb.Add(e, e))
	}
	div := mustBV(t)(eb.UDiv(e, eb.BVV(0, 64)))

	done := make(chan error, 1)
	go func() {
		_, err := ev.Eval(div)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, bvfold.IsDivisionError(err), "got %v", err)

		var evalErr *bvfold.EvalError
		require.True(t, errors.As(err, &evalErr))
		assert.LessOrEqual(t, len(evalErr.Expr), 256+len("..."))
	case <-time.After(5 * time.Second):
		t.Fatal("evaluation of a shared DAG did not return")
	}
}

func TestCounterexampleChecking(t *testing.T) {
	eb := bvfold.NewExprBuilder()
	ev := bvfold.NewEvaluator(eb, bvfold.Config{CounterexampleChecking: true})

	div := mustBV(t)(eb.SDiv(eb.BVV(7, 8), eb.BVV(0, 8)))
	r, err := ev.Eval(div)
	require.NoError(t, err)
	assert.True(t, r.DivisionException)
	v, err := r.BV()
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	// the flag reaches every ancestor of the failing division
	sum := mustBV(t)(eb.Add(div, eb.BVV(3, 8)))
	cmp := mustBool(t)(eb.Eq(sum, eb.BVV(3, 8)))
	r, err = ev.Eval(cmp)
	require.NoError(t, err)
	assert.True(t, r.DivisionException)
	b, err := r.Bool()
	require.NoError(t, err)
	assert.True(t, b)

	// siblings are not tainted
	clean := mustBV(t)(eb.Add(eb.BVV(1, 8), eb.BVV(3, 8)))
	r, err = ev.Eval(clean)
	require.NoError(t, err)
	assert.False(t, r.DivisionException)
}

func TestDivisionPoliciesCombined(t *testing.T) {
	eb := bvfold.NewExprBuilder()
	ev := bvfold.NewEvaluator(eb, bvfold.Config{
		DivisionByZeroReturnsOne: true,
		CounterexampleChecking:   true,
	})

	r, err := ev.Eval(mustBV(t)(eb.URem(eb.BVV(9, 8), eb.BVV(0, 8))))
	require.NoError(t, err)
	assert.False(t, r.DivisionException)
	v, err := r.BV()
	require.NoError(t, err)
	assert.True(t, v.IsOne())
}

func TestFlaggedEntriesAreNotReused(t *testing.T) {
	eb := bvfold.NewExprBuilder()
	ev := bvfold.NewEvaluator(eb, bvfold.Config{CounterexampleChecking: true})

	div := mustBV(t)(eb.UDiv(eb.BVV(7, 8), eb.BVV(0, 8)))
	r, err := ev.Eval(div)
	require.NoError(t, err)
	require.True(t, r.DivisionException)

	strict := ev.Fork(bvfold.DefaultConfig())
	_, err = strict.Eval(div)
	assert.True(t, bvfold.IsDivisionError(err), "got %v", err)
}

func TestCounterexampleLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := zerolog.New(buf).Level(zerolog.WarnLevel)

	eb := bvfold.NewExprBuilder()
	ev := bvfold.NewEvaluator(eb, bvfold.Config{CounterexampleChecking: true, Logger: &logger})

	_, err := ev.Eval(mustBV(t)(eb.SMod(eb.BVV(7, 8), eb.BVV(0, 8))))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "division error while checking counterexample")
	assert.Contains(t, out, `"module":"consteval"`)
	assert.Contains(t, out, `"kind":"smod"`)
}
