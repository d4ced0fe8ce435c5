package z3check

import (
	"testing"

	"github.com/borzacchiello/bvfold"
)

func must(t *testing.T) func(*bvfold.BVExprPtr, error) *bvfold.BVExprPtr {
	return func(e *bvfold.BVExprPtr, err error) *bvfold.BVExprPtr {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
		return e
	}
}

func TestEvalBV(t *testing.T) {
	eb := bvfold.NewExprBuilder()
	c := New()

	e := must(t)(eb.Add(eb.BVV(3, 4), eb.BVV(4, 4)))
	v, err := c.EvalBV(eb, e)
	if err != nil {
		t.Error(err)
		return
	}
	if v.Bits() != "0111" {
		t.Errorf("unexpected value %s", v)
	}
}

func TestSymbolsAreRejected(t *testing.T) {
	eb := bvfold.NewExprBuilder()
	c := New()

	e := must(t)(eb.Add(eb.BVS("x", 8), eb.BVV(1, 8)))
	if _, err := c.EvalBV(eb, e); err == nil {
		t.Error("symbolic expressions should be rejected")
	}
}

func TestCompare(t *testing.T) {
	eb := bvfold.NewExprBuilder()
	ev := bvfold.NewEvaluator(eb, bvfold.DefaultConfig())
	c := New()

	values := []int64{1, 3, -7, 0x55, -128}
	for _, xv := range values {
		for _, yv := range values {
			x := eb.BVV(xv, 8)
			y := eb.BVV(yv, 8)

			exprs := []bvfold.ExprPtr{
				must(t)(eb.Sub(x, y)),
				must(t)(eb.Mul(x, y)),
				must(t)(eb.UDiv(x, y)),
				must(t)(eb.URem(x, y)),
				must(t)(eb.SDiv(x, y)),
				must(t)(eb.SRem(x, y)),
				must(t)(eb.SMod(x, y)),
				must(t)(eb.AShr(x, eb.BVV(3, 8))),
				must(t)(eb.Concat(x, must(t)(eb.Extract(y, 6, 2)))),
				must(t)(eb.SExt(must(t)(eb.Not(x)), 4)),
				must(t)(eb.ITE(eb.BoolVal(xv < yv), x, y)),
			}
			slt, err := eb.SLt(x, y)
			if err != nil {
				t.Fatal(err)
			}
			exprs = append(exprs, slt)

			for _, e := range exprs {
				if err := c.Compare(eb, ev, e); err != nil {
					t.Error(err)
				}
			}
		}
	}
}
