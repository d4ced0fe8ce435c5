// Package z3check evaluates constant-foldable bvfold expressions with Z3, to
// cross-check the results of bvfold.Evaluator.
//
// Z3 and bvfold disagree on division by zero (Z3 follows SMT-LIB: x u/ 0 is
// all ones, x u% 0 is x), so expressions with a zero divisor must not be
// compared.
package z3check

import (
	"fmt"
	"strings"

	"github.com/aclements/go-z3/z3"
	"github.com/pkg/errors"

	"github.com/borzacchiello/bvfold"
)

type Checker struct {
	ctx    *z3.Context
	cfg    *z3.Config
	solver *z3.Solver
}

func New() *Checker {
	cfg := z3.NewContextConfig()
	ctx := z3.NewContext(cfg)
	return &Checker{
		ctx:    ctx,
		cfg:    cfg,
		solver: z3.NewSolver(ctx),
	}
}

func convertZ3Const(c z3.BV) (*bvfold.BVConst, error) {
	s := c.String()
	size := uint(c.Sort().BVSize())

	var v *bvfold.BVConst
	switch {
	case strings.HasPrefix(s, "#x"):
		v = bvfold.MakeBVConstFromString(s[2:], 16, size)
	case strings.HasPrefix(s, "#b"):
		v = bvfold.MakeBVConstFromString(s[2:], 2, size)
	}
	if v == nil {
		return nil, fmt.Errorf("not a constant: %s", s)
	}
	return v, nil
}

// model checks the empty query and returns the model used to read back
// constant terms.
func (c *Checker) model() (*z3.Model, error) {
	c.solver.Reset()
	r, err := c.solver.Check()
	if err != nil {
		return nil, errors.Wrap(err, "z3 check")
	}
	if !r {
		return nil, errors.New("z3 check: unsat")
	}
	m := c.solver.Model()
	if m == nil {
		return nil, errors.New("z3 check: no model")
	}
	return m, nil
}

func (c *Checker) checkFoldable(e bvfold.ExprPtr, eb *bvfold.ExprBuilder) error {
	if inputs := eb.InvolvedInputs(e); len(inputs) > 0 {
		return errors.Errorf("%s is not constant-foldable (depends on %s)", e, inputs[0])
	}
	return nil
}

func (c *Checker) EvalBV(eb *bvfold.ExprBuilder, e *bvfold.BVExprPtr) (*bvfold.BVConst, error) {
	if err := c.checkFoldable(e, eb); err != nil {
		return nil, err
	}
	v, err := c.convert(e, make(map[bvfold.ExprID]z3.Value))
	if err != nil {
		return nil, err
	}
	m, err := c.model()
	if err != nil {
		return nil, err
	}
	return convertZ3Const(m.Eval(v, true).(z3.BV))
}

func (c *Checker) EvalBool(eb *bvfold.ExprBuilder, e *bvfold.BoolExprPtr) (bool, error) {
	if err := c.checkFoldable(e, eb); err != nil {
		return false, err
	}
	v, err := c.convert(e, make(map[bvfold.ExprID]z3.Value))
	if err != nil {
		return false, err
	}
	m, err := c.model()
	if err != nil {
		return false, err
	}
	switch s := m.Eval(v, true).(z3.Bool).String(); s {
	case "true":
		return true, nil
	case "false":
		return false, nil
	default:
		return false, errors.Errorf("not a boolean literal: %s", s)
	}
}

// Compare evaluates e with ev and with Z3 and returns an error describing
// any mismatch.
func (c *Checker) Compare(eb *bvfold.ExprBuilder, ev *bvfold.Evaluator, e bvfold.ExprPtr) error {
	r, err := ev.Eval(e)
	if err != nil {
		return err
	}

	switch e := e.(type) {
	case *bvfold.BVExprPtr:
		got, err := r.BV()
		if err != nil {
			return err
		}
		exp, err := c.EvalBV(eb, e)
		if err != nil {
			return err
		}
		if eq, _ := got.Eq(exp); !eq.Value {
			return errors.Errorf("%s: evaluator %s, z3 %s", e, got, exp)
		}
	case *bvfold.BoolExprPtr:
		got, err := r.Bool()
		if err != nil {
			return err
		}
		exp, err := c.EvalBool(eb, e)
		if err != nil {
			return err
		}
		if got != exp {
			return errors.Errorf("%s: evaluator %v, z3 %v", e, got, exp)
		}
	}
	return nil
}

func (c *Checker) convertBV(e bvfold.ExprPtr, cache map[bvfold.ExprID]z3.Value) (z3.BV, error) {
	v, err := c.convert(e, cache)
	if err != nil {
		return z3.BV{}, err
	}
	return v.(z3.BV), nil
}

func (c *Checker) convertBVs(es []bvfold.ExprPtr, cache map[bvfold.ExprID]z3.Value) ([]z3.BV, error) {
	res := make([]z3.BV, 0, len(es))
	for _, e := range es {
		v, err := c.convertBV(e, cache)
		if err != nil {
			return nil, err
		}
		res = append(res, v)
	}
	return res, nil
}

func indexOf(e bvfold.ExprPtr) (int, error) {
	bv, ok := e.(*bvfold.BVExprPtr)
	if !ok {
		return 0, errors.Errorf("%s is not a bitvector index", e)
	}
	c, err := bv.GetConst()
	if err != nil {
		return 0, err
	}
	return int(c.AsULong()), nil
}

func (c *Checker) convert(e bvfold.ExprPtr, cache map[bvfold.ExprID]z3.Value) (z3.Value, error) {
	if v, ok := cache[e.Id()]; ok {
		return v, nil
	}

	var result z3.Value
	children := e.Children()
	switch e.Kind() {
	case bvfold.TY_CONST:
		bv := e.(*bvfold.BVExprPtr)
		v, _ := bv.GetConst()
		result = c.ctx.FromBigInt(v.BigInt(), c.ctx.BVSort(int(v.Size)))
	case bvfold.TY_BOOL_CONST:
		v, _ := e.(*bvfold.BoolExprPtr).GetConst()
		result = c.ctx.FromBool(v)
	case bvfold.TY_NOT, bvfold.TY_NEG:
		child, err := c.convertBV(children[0], cache)
		if err != nil {
			return nil, err
		}
		if e.Kind() == bvfold.TY_NOT {
			result = child.Not()
		} else {
			result = child.Neg()
		}
	case bvfold.TY_ZEXT, bvfold.TY_SEXT:
		child, err := c.convertBV(children[0], cache)
		if err != nil {
			return nil, err
		}
		n := int(e.(*bvfold.BVExprPtr).Size() - children[0].(*bvfold.BVExprPtr).Size())
		switch {
		case n == 0:
			result = child
		case e.Kind() == bvfold.TY_ZEXT:
			result = child.ZeroExtend(n)
		default:
			result = child.SignExtend(n)
		}
	case bvfold.TY_EXTRACT:
		child, err := c.convertBV(children[0], cache)
		if err != nil {
			return nil, err
		}
		high, err := indexOf(children[1])
		if err != nil {
			return nil, err
		}
		low, err := indexOf(children[2])
		if err != nil {
			return nil, err
		}
		result = child.Extract(high, low)
	case bvfold.TY_CONCAT:
		ops, err := c.convertBVs(children, cache)
		if err != nil {
			return nil, err
		}
		result = ops[0].Concat(ops[1])
	case bvfold.TY_ITE:
		guard, err := c.convert(children[0], cache)
		if err != nil {
			return nil, err
		}
		ops, err := c.convertBVs(children[1:], cache)
		if err != nil {
			return nil, err
		}
		result = guard.(z3.Bool).IfThenElse(ops[0], ops[1])
	case bvfold.TY_SHL, bvfold.TY_LSHR, bvfold.TY_ASHR:
		if children[0].(*bvfold.BVExprPtr).Size() != children[1].(*bvfold.BVExprPtr).Size() {
			return nil, errors.Errorf("%s: shift amount width differs from operand width", e)
		}
		ops, err := c.convertBVs(children, cache)
		if err != nil {
			return nil, err
		}
		switch e.Kind() {
		case bvfold.TY_SHL:
			result = ops[0].Lsh(ops[1])
		case bvfold.TY_LSHR:
			result = ops[0].URsh(ops[1])
		default:
			result = ops[0].SRsh(ops[1])
		}
	case bvfold.TY_ADD:
		ops, err := c.convertBVs(children, cache)
		if err != nil {
			return nil, err
		}
		res := ops[0]
		for i := 1; i < len(ops); i++ {
			res = res.Add(ops[i])
		}
		result = res
	case bvfold.TY_AND, bvfold.TY_OR, bvfold.TY_XOR, bvfold.TY_SUB, bvfold.TY_MUL,
		bvfold.TY_SDIV, bvfold.TY_UDIV, bvfold.TY_SREM, bvfold.TY_UREM, bvfold.TY_SMOD:
		ops, err := c.convertBVs(children, cache)
		if err != nil {
			return nil, err
		}
		lhs, rhs := ops[0], ops[1]
		switch e.Kind() {
		case bvfold.TY_AND:
			result = lhs.And(rhs)
		case bvfold.TY_OR:
			result = lhs.Or(rhs)
		case bvfold.TY_XOR:
			result = lhs.Xor(rhs)
		case bvfold.TY_SUB:
			result = lhs.Sub(rhs)
		case bvfold.TY_MUL:
			result = lhs.Mul(rhs)
		case bvfold.TY_SDIV:
			result = lhs.SDiv(rhs)
		case bvfold.TY_UDIV:
			result = lhs.UDiv(rhs)
		case bvfold.TY_SREM:
			result = lhs.SRem(rhs)
		case bvfold.TY_UREM:
			result = lhs.URem(rhs)
		default:
			result = lhs.SMod(rhs)
		}
	case bvfold.TY_EQ, bvfold.TY_ULT, bvfold.TY_ULE, bvfold.TY_UGT, bvfold.TY_UGE,
		bvfold.TY_SLT, bvfold.TY_SLE, bvfold.TY_SGT, bvfold.TY_SGE:
		ops, err := c.convertBVs(children, cache)
		if err != nil {
			return nil, err
		}
		lhs, rhs := ops[0], ops[1]
		switch e.Kind() {
		case bvfold.TY_EQ:
			result = lhs.Eq(rhs)
		case bvfold.TY_ULT:
			result = lhs.ULT(rhs)
		case bvfold.TY_ULE:
			result = lhs.ULE(rhs)
		case bvfold.TY_UGT:
			result = lhs.UGT(rhs)
		case bvfold.TY_UGE:
			result = lhs.UGE(rhs)
		case bvfold.TY_SLT:
			result = lhs.SLT(rhs)
		case bvfold.TY_SLE:
			result = lhs.SLE(rhs)
		case bvfold.TY_SGT:
			result = lhs.SGT(rhs)
		default:
			result = lhs.SGE(rhs)
		}
	default:
		return nil, errors.Errorf("unsupported expression kind %s", bvfold.KindName(e.Kind()))
	}

	cache[e.Id()] = result
	return result, nil
}
