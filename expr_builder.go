package bvfold

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

type ExprBuilderStats struct {
	CacheHits    uint
	CacheLookups uint
	CachedBVs    uint
	CachedBools  uint
}

// ExprBuilder owns an arena of hash-consed expression nodes. Every
// constructor goes through the interning table, so structurally equal
// expressions always get the same ExprID. An ExprBuilder is safe for
// concurrent use.
type ExprBuilder struct {
	lock    sync.RWMutex
	nodes   []*node
	buckets map[uint64][]ExprID

	stats ExprBuilderStats
}

func NewExprBuilder() *ExprBuilder {
	return &ExprBuilder{
		lock:    sync.RWMutex{},
		nodes:   make([]*node, 0),
		buckets: map[uint64][]ExprID{},
	}
}

func (eb *ExprBuilder) Stats() ExprBuilderStats {
	eb.lock.RLock()
	defer eb.lock.RUnlock()
	return eb.stats
}

func (eb *ExprBuilder) LogStats(logger zerolog.Logger) {
	stats := eb.Stats()

	hitRatio := 0.0
	if stats.CacheLookups > 0 {
		hitRatio = float64(stats.CacheHits) / float64(stats.CacheLookups) * 100
	}
	logger.Debug().
		Uint("hits", stats.CacheHits).
		Float64("hit_ratio", hitRatio).
		Uint("cached_bvs", stats.CachedBVs).
		Uint("cached_bools", stats.CachedBools).
		Msg("expression builder stats")
}

// NumNodes returns the number of distinct nodes in the arena.
func (eb *ExprBuilder) NumNodes() int {
	eb.lock.RLock()
	defer eb.lock.RUnlock()
	return len(eb.nodes)
}

func (eb *ExprBuilder) get(id ExprID) *node {
	eb.lock.RLock()
	defer eb.lock.RUnlock()
	return eb.nodes[id]
}

func (eb *ExprBuilder) wrap(id ExprID) ExprPtr {
	if eb.get(id).isBool() {
		return &BoolExprPtr{eb: eb, id: id}
	}
	return &BVExprPtr{eb: eb, id: id}
}

func (eb *ExprBuilder) children(id ExprID) []ExprPtr {
	n := eb.get(id)
	res := make([]ExprPtr, 0, len(n.children))
	for _, c := range n.children {
		res = append(res, eb.wrap(c))
	}
	return res
}

func (eb *ExprBuilder) getOrCreate(n *node) ExprID {
	n.hash = n.computeHash()

	eb.lock.Lock()
	defer eb.lock.Unlock()
	eb.stats.CacheLookups += 1

	bucket := eb.buckets[n.hash]
	for _, id := range bucket {
		if eb.nodes[id].shallowEq(n) {
			eb.stats.CacheHits += 1
			return id
		}
	}

	if n.isBool() {
		eb.stats.CachedBools += 1
	} else {
		eb.stats.CachedBVs += 1
	}
	id := ExprID(len(eb.nodes))
	eb.nodes = append(eb.nodes, n)
	eb.buckets[n.hash] = append(bucket, id)
	return id
}

func (eb *ExprBuilder) getOrCreateBV(n *node) *BVExprPtr {
	return &BVExprPtr{eb: eb, id: eb.getOrCreate(n)}
}

func (eb *ExprBuilder) getOrCreateBool(n *node) *BoolExprPtr {
	return &BoolExprPtr{eb: eb, id: eb.getOrCreate(n)}
}

func (eb *ExprBuilder) checkOwner(exprs ...ExprPtr) error {
	for _, e := range exprs {
		if e.builder() != eb {
			return errors.Errorf("expression %s belongs to another builder", describe(e))
		}
	}
	return nil
}

// *** Constructors ***
//
// Constructors only validate sorts and widths and intern the node; they never
// fold constants. Folding is the job of the Evaluator.

// BVV panics if size is zero.
func (eb *ExprBuilder) BVV(val int64, size uint) *BVExprPtr {
	if size == 0 {
		panic("bvfold: BVV with zero size")
	}
	return eb.getOrCreateBV(&node{kind: TY_CONST, width: size, value: MakeBVConst(val, size)})
}

// BVVFromConst fails on a nil constant, e.g. the result of parsing an
// invalid string with MakeBVConstFromString.
func (eb *ExprBuilder) BVVFromConst(c *BVConst) (*BVExprPtr, error) {
	if c == nil || c.Size == 0 {
		return nil, errors.New("bvv: invalid constant")
	}
	return eb.getOrCreateBV(&node{kind: TY_CONST, width: c.Size, value: c}), nil
}

// BVS panics if size is zero: zero-width nodes are boolean-sorted.
func (eb *ExprBuilder) BVS(name string, size uint) *BVExprPtr {
	if size == 0 {
		panic("bvfold: BVS with zero size")
	}
	return eb.getOrCreateBV(&node{kind: TY_SYM, width: size, name: name})
}

func (eb *ExprBuilder) BoolVal(v bool) *BoolExprPtr {
	return eb.getOrCreateBool(&node{kind: TY_BOOL_CONST, boolv: v})
}

func (eb *ExprBuilder) BoolS(name string) *BoolExprPtr {
	return eb.getOrCreateBool(&node{kind: TY_BOOL_SYM, name: name})
}

func (eb *ExprBuilder) mkUnary(kind int, e *BVExprPtr) (*BVExprPtr, error) {
	if err := eb.checkOwner(e); err != nil {
		return nil, err
	}
	return eb.getOrCreateBV(&node{kind: kind, width: e.Size(), children: []ExprID{e.id}}), nil
}

// Not is the bitwise complement.
func (eb *ExprBuilder) Not(e *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkUnary(TY_NOT, e)
}

// Neg is the two's-complement negation (unary minus).
func (eb *ExprBuilder) Neg(e *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkUnary(TY_NEG, e)
}

func (eb *ExprBuilder) mkBinary(kind int, lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	if err := eb.checkOwner(lhs, rhs); err != nil {
		return nil, err
	}
	if lhs.Size() != rhs.Size() {
		return nil, errors.Wrapf(ErrSizeMismatch, "%s: %d and %d", KindName(kind), lhs.Size(), rhs.Size())
	}
	return eb.getOrCreateBV(&node{kind: kind, width: lhs.Size(), children: []ExprID{lhs.id, rhs.id}}), nil
}

func (eb *ExprBuilder) Add(lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	return eb.AddN([]*BVExprPtr{lhs, rhs})
}

// AddN builds an n-ary addition. All the children must have the same width.
func (eb *ExprBuilder) AddN(children []*BVExprPtr) (*BVExprPtr, error) {
	if len(children) == 0 {
		return nil, errors.New("add: no children")
	}
	ids := make([]ExprID, 0, len(children))
	for _, c := range children {
		if err := eb.checkOwner(c); err != nil {
			return nil, err
		}
		if c.Size() != children[0].Size() {
			return nil, errors.Wrapf(ErrSizeMismatch, "add: %d and %d", children[0].Size(), c.Size())
		}
		ids = append(ids, c.id)
	}
	return eb.getOrCreateBV(&node{kind: TY_ADD, width: children[0].Size(), children: ids}), nil
}

func (eb *ExprBuilder) Sub(lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkBinary(TY_SUB, lhs, rhs)
}

func (eb *ExprBuilder) Mul(lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkBinary(TY_MUL, lhs, rhs)
}

func (eb *ExprBuilder) And(lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkBinary(TY_AND, lhs, rhs)
}

func (eb *ExprBuilder) Or(lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkBinary(TY_OR, lhs, rhs)
}

func (eb *ExprBuilder) Xor(lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkBinary(TY_XOR, lhs, rhs)
}

func (eb *ExprBuilder) UDiv(lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkBinary(TY_UDIV, lhs, rhs)
}

func (eb *ExprBuilder) URem(lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkBinary(TY_UREM, lhs, rhs)
}

func (eb *ExprBuilder) SDiv(lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkBinary(TY_SDIV, lhs, rhs)
}

func (eb *ExprBuilder) SRem(lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkBinary(TY_SREM, lhs, rhs)
}

func (eb *ExprBuilder) SMod(lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkBinary(TY_SMOD, lhs, rhs)
}

// The shift amount may have any width; it is read as an unsigned integer.
func (eb *ExprBuilder) mkShift(kind int, lhs, amount *BVExprPtr) (*BVExprPtr, error) {
	if err := eb.checkOwner(lhs, amount); err != nil {
		return nil, err
	}
	return eb.getOrCreateBV(&node{kind: kind, width: lhs.Size(), children: []ExprID{lhs.id, amount.id}}), nil
}

func (eb *ExprBuilder) Shl(lhs, amount *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkShift(TY_SHL, lhs, amount)
}

func (eb *ExprBuilder) LShr(lhs, amount *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkShift(TY_LSHR, lhs, amount)
}

func (eb *ExprBuilder) AShr(lhs, amount *BVExprPtr) (*BVExprPtr, error) {
	return eb.mkShift(TY_ASHR, lhs, amount)
}

// Extract selects bits [high:low] of e. The indices are stored as 32-bit
// constant children.
func (eb *ExprBuilder) Extract(e *BVExprPtr, high, low uint) (*BVExprPtr, error) {
	if err := eb.checkOwner(e); err != nil {
		return nil, err
	}
	if high < low {
		return nil, errors.Errorf("extract: high (%d) < low (%d)", high, low)
	}
	if high >= e.Size() {
		return nil, errors.Errorf("extract: high (%d) out of range for size %d", high, e.Size())
	}
	hi := eb.BVV(int64(high), 32)
	lo := eb.BVV(int64(low), 32)
	return eb.getOrCreateBV(&node{
		kind:     TY_EXTRACT,
		width:    high - low + 1,
		children: []ExprID{e.id, hi.id, lo.id},
	}), nil
}

// Concat places lhs in the most significant position.
func (eb *ExprBuilder) Concat(lhs, rhs *BVExprPtr) (*BVExprPtr, error) {
	if err := eb.checkOwner(lhs, rhs); err != nil {
		return nil, err
	}
	return eb.getOrCreateBV(&node{
		kind:     TY_CONCAT,
		width:    lhs.Size() + rhs.Size(),
		children: []ExprID{lhs.id, rhs.id},
	}), nil
}

func (eb *ExprBuilder) mkExtend(kind int, e *BVExprPtr, n uint) (*BVExprPtr, error) {
	if err := eb.checkOwner(e); err != nil {
		return nil, err
	}
	return eb.getOrCreateBV(&node{kind: kind, width: e.Size() + n, children: []ExprID{e.id}}), nil
}

// ZExt widens e by n zero bits. n may be zero.
func (eb *ExprBuilder) ZExt(e *BVExprPtr, n uint) (*BVExprPtr, error) {
	return eb.mkExtend(TY_ZEXT, e, n)
}

// SExt widens e by n copies of its sign bit. n may be zero.
func (eb *ExprBuilder) SExt(e *BVExprPtr, n uint) (*BVExprPtr, error) {
	return eb.mkExtend(TY_SEXT, e, n)
}

func (eb *ExprBuilder) ITE(guard *BoolExprPtr, iftrue *BVExprPtr, iffalse *BVExprPtr) (*BVExprPtr, error) {
	if err := eb.checkOwner(guard, iftrue, iffalse); err != nil {
		return nil, err
	}
	if iftrue.Size() != iffalse.Size() {
		return nil, errors.Wrapf(ErrSizeMismatch, "ite: %d and %d", iftrue.Size(), iffalse.Size())
	}
	return eb.getOrCreateBV(&node{
		kind:     TY_ITE,
		width:    iftrue.Size(),
		children: []ExprID{guard.id, iftrue.id, iffalse.id},
	}), nil
}

func (eb *ExprBuilder) mkCmp(kind int, lhs, rhs *BVExprPtr) (*BoolExprPtr, error) {
	if err := eb.checkOwner(lhs, rhs); err != nil {
		return nil, err
	}
	if lhs.Size() != rhs.Size() {
		return nil, errors.Wrapf(ErrSizeMismatch, "%s: %d and %d", KindName(kind), lhs.Size(), rhs.Size())
	}
	return eb.getOrCreateBool(&node{kind: kind, children: []ExprID{lhs.id, rhs.id}}), nil
}

func (eb *ExprBuilder) Eq(lhs, rhs *BVExprPtr) (*BoolExprPtr, error) {
	return eb.mkCmp(TY_EQ, lhs, rhs)
}

func (eb *ExprBuilder) Ult(lhs, rhs *BVExprPtr) (*BoolExprPtr, error) {
	return eb.mkCmp(TY_ULT, lhs, rhs)
}

func (eb *ExprBuilder) Ule(lhs, rhs *BVExprPtr) (*BoolExprPtr, error) {
	return eb.mkCmp(TY_ULE, lhs, rhs)
}

func (eb *ExprBuilder) UGt(lhs, rhs *BVExprPtr) (*BoolExprPtr, error) {
	return eb.mkCmp(TY_UGT, lhs, rhs)
}

func (eb *ExprBuilder) UGe(lhs, rhs *BVExprPtr) (*BoolExprPtr, error) {
	return eb.mkCmp(TY_UGE, lhs, rhs)
}

func (eb *ExprBuilder) SLt(lhs, rhs *BVExprPtr) (*BoolExprPtr, error) {
	return eb.mkCmp(TY_SLT, lhs, rhs)
}

func (eb *ExprBuilder) SLe(lhs, rhs *BVExprPtr) (*BoolExprPtr, error) {
	return eb.mkCmp(TY_SLE, lhs, rhs)
}

func (eb *ExprBuilder) SGt(lhs, rhs *BVExprPtr) (*BoolExprPtr, error) {
	return eb.mkCmp(TY_SGT, lhs, rhs)
}

func (eb *ExprBuilder) SGe(lhs, rhs *BVExprPtr) (*BoolExprPtr, error) {
	return eb.mkCmp(TY_SGE, lhs, rhs)
}

// InvolvedInputs returns the symbols e depends on. A constant-foldable
// expression has none.
func (eb *ExprBuilder) InvolvedInputs(e ExprPtr) []ExprPtr {
	queue := []ExprID{e.Id()}
	visited := make(map[ExprID]bool)
	symbols := make([]ExprPtr, 0)

	for len(queue) > 0 {
		id := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if visited[id] {
			continue
		}
		visited[id] = true

		n := eb.get(id)
		if n.kind == TY_SYM || n.kind == TY_BOOL_SYM {
			symbols = append(symbols, eb.wrap(id))
			continue
		}
		queue = append(queue, n.children...)
	}
	return symbols
}
