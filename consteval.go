package bvfold

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

// Result is the outcome of a successful evaluation.
type Result struct {
	// Value is a TY_CONST or TY_BOOL_CONST node.
	Value ExprPtr
	// DivisionException is set when, under counterexample checking, a
	// division error was replaced by a zero placeholder somewhere below.
	DivisionException bool
}

// BV returns the bitvector value of r.
func (r Result) BV() (*BVConst, error) {
	bv, ok := r.Value.(*BVExprPtr)
	if !ok {
		return nil, errors.Errorf("result %s is not a bitvector", r.Value)
	}
	return bv.GetConst()
}

// Bool returns the boolean value of r.
func (r Result) Bool() (bool, error) {
	b, ok := r.Value.(*BoolExprPtr)
	if !ok {
		return false, errors.Errorf("result %s is not a boolean", r.Value)
	}
	return b.GetConst()
}

type EvaluatorStats struct {
	CacheHits    uint
	CacheLookups uint
	Evaluated    uint
}

// Evaluator reduces constant-foldable expressions to constants. Results are
// memoized per node, so an expression DAG is evaluated once per shared
// subexpression. An Evaluator must not be used from more than one goroutine;
// use Fork to obtain an independent one.
type Evaluator struct {
	eb     *ExprBuilder
	cfg    Config
	cache  *Cache
	logger zerolog.Logger

	Stats EvaluatorStats
}

func NewEvaluator(eb *ExprBuilder, cfg Config) *Evaluator {
	return &Evaluator{
		eb:     eb,
		cfg:    cfg,
		cache:  NewCache(),
		logger: cfg.logger(),
	}
}

// Fork returns an evaluator that starts from a snapshot of the cache of ev
// and uses cfg. Entries computed under a different division-by-zero policy
// cannot be reused, so in that case the fork starts empty.
func (ev *Evaluator) Fork(cfg Config) *Evaluator {
	cache := ev.cache.Snapshot()
	if cfg.DivisionByZeroReturnsOne != ev.cfg.DivisionByZeroReturnsOne {
		cache = NewCache()
	}
	return &Evaluator{
		eb:     ev.eb,
		cfg:    cfg,
		cache:  cache,
		logger: cfg.logger(),
	}
}

func (ev *Evaluator) Config() Config {
	return ev.cfg
}

func (ev *Evaluator) Cache() *Cache {
	return ev.cache
}

// Eval evaluates e. On error nothing is returned: the evaluation is aborted
// as a whole and the error is an *EvalError.
func (ev *Evaluator) Eval(e ExprPtr) (Result, error) {
	if err := ev.eb.checkOwner(e); err != nil {
		return Result{}, err
	}

	entry, err := ev.eval(e.Id())
	if err != nil {
		ev.logger.Debug().Err(err).Uint32("id", uint32(e.Id())).Msg("evaluation aborted")
		return Result{}, err
	}
	return Result{Value: ev.eb.wrap(entry.Result), DivisionException: entry.DivisionException}, nil
}

// EvalBV is Eval for bitvector expressions, dropping the division flag.
func (ev *Evaluator) EvalBV(e *BVExprPtr) (*BVConst, error) {
	r, err := ev.Eval(e)
	if err != nil {
		return nil, err
	}
	return r.BV()
}

func (ev *Evaluator) EvalBool(e *BoolExprPtr) (bool, error) {
	r, err := ev.Eval(e)
	if err != nil {
		return false, err
	}
	return r.Bool()
}

func (ev *Evaluator) mkBV(c *BVConst) ExprID {
	return ev.eb.getOrCreate(&node{kind: TY_CONST, width: c.Size, value: c})
}

func (ev *Evaluator) mkBool(v bool) ExprID {
	return ev.eb.getOrCreate(&node{kind: TY_BOOL_CONST, boolv: v})
}

// evalBV evaluates a bitvector-sorted child and returns its value.
func (ev *Evaluator) evalBV(id ExprID) (*BVConst, bool, error) {
	entry, err := ev.eval(id)
	if err != nil {
		return nil, false, err
	}
	n := ev.eb.get(entry.Result)
	if n.kind != TY_CONST {
		return nil, false, illFormed(ev.eb.wrap(id), "expected a bitvector constant, got %s", KindName(n.kind))
	}
	return n.value, entry.DivisionException, nil
}

// evalBVs evaluates the children in order, stopping at the first failure.
func (ev *Evaluator) evalBVs(ids []ExprID) ([]*BVConst, bool, error) {
	res := make([]*BVConst, 0, len(ids))
	exc := false
	for _, id := range ids {
		c, e, err := ev.evalBV(id)
		if err != nil {
			return nil, false, err
		}
		res = append(res, c)
		exc = exc || e
	}
	return res, exc, nil
}

var bvUnaryOps = map[int]func(*BVConst) *BVConst{
	TY_NOT: (*BVConst).Not,
	TY_NEG: (*BVConst).Neg,
}

var bvBinaryOps = map[int]func(*BVConst, *BVConst) (*BVConst, error){
	TY_AND: (*BVConst).And,
	TY_OR:  (*BVConst).Or,
	TY_XOR: (*BVConst).Xor,
	TY_SUB: (*BVConst).Sub,
	TY_MUL: (*BVConst).Mul,
}

var bvShiftOps = map[int]func(*BVConst, uint) *BVConst{
	TY_SHL:  (*BVConst).Shl,
	TY_LSHR: (*BVConst).LShr,
	TY_ASHR: (*BVConst).AShr,
}

var bvCmpOps = map[int]func(*BVConst, *BVConst) (BoolConst, error){
	TY_EQ:  (*BVConst).Eq,
	TY_ULT: (*BVConst).Ult,
	TY_ULE: (*BVConst).Ule,
	TY_UGT: (*BVConst).UGt,
	TY_UGE: (*BVConst).UGe,
	TY_SLT: (*BVConst).SLt,
	TY_SLE: (*BVConst).SLe,
	TY_SGT: (*BVConst).SGt,
	TY_SGE: (*BVConst).SGe,
}

func (ev *Evaluator) eval(id ExprID) (CacheEntry, error) {
	ev.Stats.CacheLookups += 1
	if r, ok := ev.cache.Lookup(id); ok {
		// placeholders are only meaningful while checking counterexamples
		if !r.DivisionException || ev.cfg.CounterexampleChecking {
			ev.Stats.CacheHits += 1
			ev.logger.Debug().Uint32("id", uint32(id)).Msg("cache hit")
			return r, nil
		}
	}

	n := ev.eb.get(id)
	if n.kind == TY_CONST || n.kind == TY_BOOL_CONST {
		return CacheEntry{Result: id}, nil
	}

	var result CacheEntry
	var err error
	switch n.kind {
	case TY_SYM, TY_BOOL_SYM:
		return CacheEntry{}, illFormed(ev.eb.wrap(id), "term is not a constant-term")
	case TY_NOT, TY_NEG:
		var c *BVConst
		var exc bool
		c, exc, err = ev.evalBV(n.children[0])
		if err == nil {
			result = CacheEntry{ev.mkBV(bvUnaryOps[n.kind](c)), exc}
		}
	case TY_SEXT, TY_ZEXT:
		result, err = ev.evalExtend(id, n)
	case TY_SHL, TY_LSHR, TY_ASHR:
		var ops []*BVConst
		var exc bool
		ops, exc, err = ev.evalBVs(n.children)
		if err == nil {
			shift := ops[1].clampedUint(ops[0].Size)
			result = CacheEntry{ev.mkBV(bvShiftOps[n.kind](ops[0], shift)), exc}
		}
	case TY_AND, TY_OR, TY_XOR, TY_SUB, TY_MUL:
		var ops []*BVConst
		var exc bool
		ops, exc, err = ev.evalBVs(n.children)
		if err == nil {
			var c *BVConst
			c, err = bvBinaryOps[n.kind](ops[0], ops[1])
			if err != nil {
				err = illFormed(ev.eb.wrap(id), "%v", err)
			} else {
				result = CacheEntry{ev.mkBV(c), exc}
			}
		}
	case TY_ADD:
		result, err = ev.evalAdd(id, n)
	case TY_EXTRACT:
		result, err = ev.evalExtract(id, n)
	case TY_CONCAT:
		var ops []*BVConst
		var exc bool
		ops, exc, err = ev.evalBVs(n.children)
		if err == nil {
			result = CacheEntry{ev.mkBV(ops[0].Concat(ops[1])), exc}
		}
	case TY_SDIV, TY_SREM, TY_SMOD, TY_UDIV, TY_UREM:
		result, err = ev.evalDivision(id, n)
	case TY_ITE:
		result, err = ev.evalITE(id, n)
	case TY_EQ, TY_ULT, TY_ULE, TY_UGT, TY_UGE, TY_SLT, TY_SLE, TY_SGT, TY_SGE:
		var ops []*BVConst
		var exc bool
		ops, exc, err = ev.evalBVs(n.children)
		if err == nil {
			var b BoolConst
			b, err = bvCmpOps[n.kind](ops[0], ops[1])
			if err != nil {
				err = illFormed(ev.eb.wrap(id), "%v", err)
			} else {
				result = CacheEntry{ev.mkBool(b.Value), exc}
			}
		}
	default:
		return CacheEntry{}, illFormed(ev.eb.wrap(id), "the input kind is not supported: %s", KindName(n.kind))
	}
	if err != nil {
		return CacheEntry{}, err
	}

	ev.Stats.Evaluated += 1
	ev.logger.Trace().
		Uint32("id", uint32(id)).
		Str("kind", KindName(n.kind)).
		Uint("width", n.width).
		Uint32("result", uint32(result.Result)).
		Msg("evaluated")

	ev.cache.Insert(id, result)
	return result, nil
}

func (ev *Evaluator) evalExtend(id ExprID, n *node) (CacheEntry, error) {
	c, exc, err := ev.evalBV(n.children[0])
	if err != nil {
		return CacheEntry{}, err
	}
	if n.width < c.Size {
		return CacheEntry{}, illFormed(ev.eb.wrap(id), "cannot extend %d bits to %d", c.Size, n.width)
	}
	if n.width == c.Size {
		return CacheEntry{ev.mkBV(c), exc}, nil
	}

	if n.kind == TY_SEXT {
		return CacheEntry{ev.mkBV(c.SExt(n.width - c.Size)), exc}, nil
	}
	return CacheEntry{ev.mkBV(c.ZExt(n.width - c.Size)), exc}, nil
}

func (ev *Evaluator) evalAdd(id ExprID, n *node) (CacheEntry, error) {
	acc := MakeBVConst(0, n.width)
	exc := false
	for _, child := range n.children {
		c, e, err := ev.evalBV(child)
		if err != nil {
			return CacheEntry{}, err
		}
		acc, err = acc.Add(c)
		if err != nil {
			return CacheEntry{}, illFormed(ev.eb.wrap(id), "%v", err)
		}
		exc = exc || e
	}
	return CacheEntry{ev.mkBV(acc), exc}, nil
}

func (ev *Evaluator) evalExtract(id ExprID, n *node) (CacheEntry, error) {
	ops, exc, err := ev.evalBVs(n.children)
	if err != nil {
		return CacheEntry{}, err
	}
	src := ops[0]
	high := ops[1].clampedUint(src.Size)
	low := ops[2].clampedUint(src.Size)

	c, err := src.Slice(high, low)
	if err != nil {
		return CacheEntry{}, illFormed(ev.eb.wrap(id), "%v", err)
	}
	return CacheEntry{ev.mkBV(c), exc}, nil
}

// evalITE evaluates only the branch selected by the condition.
func (ev *Evaluator) evalITE(id ExprID, n *node) (CacheEntry, error) {
	cond, err := ev.eval(n.children[0])
	if err != nil {
		return CacheEntry{}, illFormedCause(ev.eb.wrap(id), err, "evaluating ite conditional")
	}
	cn := ev.eb.get(cond.Result)
	if cn.kind != TY_BOOL_CONST {
		return CacheEntry{}, illFormed(ev.eb.wrap(id), "ite conditional must be either true or false")
	}

	branch := n.children[2]
	if cn.boolv {
		branch = n.children[1]
	}
	r, err := ev.eval(branch)
	if err != nil {
		return CacheEntry{}, err
	}
	return CacheEntry{r.Result, cond.DivisionException || r.DivisionException}, nil
}
