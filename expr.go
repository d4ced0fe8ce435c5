package bvfold

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	TY_SYM     = 1
	TY_CONST   = 2
	TY_EXTRACT = 3
	TY_CONCAT  = 4
	TY_ZEXT    = 5
	TY_SEXT    = 6
	TY_ITE     = 7

	TY_NOT  = 8
	TY_NEG  = 9
	TY_SHL  = 10
	TY_LSHR = 11
	TY_ASHR = 12
	TY_AND  = 13
	TY_OR   = 14
	TY_XOR  = 15
	TY_ADD  = 16
	TY_MUL  = 17
	TY_SDIV = 18
	TY_UDIV = 19
	TY_SREM = 20
	TY_UREM = 21

	TY_ULT = 22
	TY_ULE = 23
	TY_UGT = 24
	TY_UGE = 25
	TY_SLT = 26
	TY_SLE = 27
	TY_SGT = 28
	TY_SGE = 29
	TY_EQ  = 30

	TY_BOOL_CONST = 31
	TY_BOOL_SYM   = 32

	TY_SUB  = 33
	TY_SMOD = 34
)

var kindSymbols = map[int]string{
	TY_NOT:  "~",
	TY_NEG:  "-",
	TY_SHL:  "<<",
	TY_LSHR: "l>>",
	TY_ASHR: "a>>",
	TY_AND:  "&",
	TY_OR:   "|",
	TY_XOR:  "^",
	TY_ADD:  "+",
	TY_SUB:  "-",
	TY_MUL:  "*",
	TY_SDIV: "s/",
	TY_UDIV: "u/",
	TY_SREM: "s%",
	TY_UREM: "u%",
	TY_SMOD: "smod",
	TY_ULT:  "u<",
	TY_ULE:  "u<=",
	TY_UGT:  "u>",
	TY_UGE:  "u>=",
	TY_SLT:  "s<",
	TY_SLE:  "s<=",
	TY_SGT:  "s>",
	TY_SGE:  "s>=",
	TY_EQ:   "==",
}

var kindNames = map[int]string{
	TY_SYM:        "sym",
	TY_CONST:      "const",
	TY_EXTRACT:    "extract",
	TY_CONCAT:     "concat",
	TY_ZEXT:       "zext",
	TY_SEXT:       "sext",
	TY_ITE:        "ite",
	TY_NOT:        "not",
	TY_NEG:        "neg",
	TY_SHL:        "shl",
	TY_LSHR:       "lshr",
	TY_ASHR:       "ashr",
	TY_AND:        "and",
	TY_OR:         "or",
	TY_XOR:        "xor",
	TY_ADD:        "add",
	TY_SUB:        "sub",
	TY_MUL:        "mul",
	TY_SDIV:       "sdiv",
	TY_UDIV:       "udiv",
	TY_SREM:       "srem",
	TY_UREM:       "urem",
	TY_SMOD:       "smod",
	TY_ULT:        "ult",
	TY_ULE:        "ule",
	TY_UGT:        "ugt",
	TY_UGE:        "uge",
	TY_SLT:        "slt",
	TY_SLE:        "sle",
	TY_SGT:        "sgt",
	TY_SGE:        "sge",
	TY_EQ:         "eq",
	TY_BOOL_CONST: "bool",
	TY_BOOL_SYM:   "boolsym",
}

// KindName returns a short lowercase name for an expression kind.
func KindName(kind int) string {
	if s, ok := kindNames[kind]; ok {
		return s
	}
	return fmt.Sprintf("kind<%d>", kind)
}

// ExprID identifies a node inside the arena of an ExprBuilder. Two handles
// with the same ExprID refer to the same (structurally equal) expression.
type ExprID uint32

/*
 *   Public Interface
 */

// ExprPtr is a read-only handle to an expression node.
type ExprPtr interface {
	Id() ExprID
	Kind() int
	Children() []ExprPtr
	String() string

	builder() *ExprBuilder
}

type BVExprPtr struct {
	eb *ExprBuilder
	id ExprID
}

func (bv *BVExprPtr) builder() *ExprBuilder {
	return bv.eb
}

func (bv *BVExprPtr) Id() ExprID {
	return bv.id
}

func (bv *BVExprPtr) Kind() int {
	return bv.eb.get(bv.id).kind
}

func (bv *BVExprPtr) Size() uint {
	return bv.eb.get(bv.id).width
}

func (bv *BVExprPtr) Children() []ExprPtr {
	return bv.eb.children(bv.id)
}

func (bv *BVExprPtr) IsConst() bool {
	return bv.Kind() == TY_CONST
}

// GetConst returns the embedded constant of a TY_CONST node.
func (bv *BVExprPtr) GetConst() (*BVConst, error) {
	n := bv.eb.get(bv.id)
	if n.kind != TY_CONST {
		return nil, fmt.Errorf("not a constant")
	}
	return n.value, nil
}

func (bv *BVExprPtr) String() string {
	return bv.eb.format(bv.id)
}

type BoolExprPtr struct {
	eb *ExprBuilder
	id ExprID
}

func (e *BoolExprPtr) builder() *ExprBuilder {
	return e.eb
}

func (e *BoolExprPtr) Id() ExprID {
	return e.id
}

func (e *BoolExprPtr) Kind() int {
	return e.eb.get(e.id).kind
}

func (e *BoolExprPtr) Children() []ExprPtr {
	return e.eb.children(e.id)
}

func (e *BoolExprPtr) IsConst() bool {
	return e.Kind() == TY_BOOL_CONST
}

func (e *BoolExprPtr) GetConst() (bool, error) {
	n := e.eb.get(e.id)
	if n.kind != TY_BOOL_CONST {
		return false, fmt.Errorf("not a constant")
	}
	return n.boolv, nil
}

func (e *BoolExprPtr) String() string {
	return e.eb.format(e.id)
}

/*
 *   Private Interface
 */

// node is an arena entry. Nodes are immutable once interned; width is zero
// for boolean-sorted nodes.
type node struct {
	kind     int
	width    uint
	children []ExprID
	value    *BVConst
	boolv    bool
	name     string
	hash     uint64
}

func (n *node) isLeaf() bool {
	switch n.kind {
	case TY_SYM, TY_CONST, TY_BOOL_CONST, TY_BOOL_SYM:
		return true
	}
	return false
}

func (n *node) isBool() bool {
	return n.width == 0
}

func (n *node) computeHash() uint64 {
	h := xxhash.New()
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, uint64(n.kind))
	h.Write(raw)
	binary.BigEndian.PutUint64(raw, uint64(n.width))
	h.Write(raw)
	for _, c := range n.children {
		binary.BigEndian.PutUint32(raw[:4], uint32(c))
		h.Write(raw[:4])
	}
	switch n.kind {
	case TY_CONST:
		h.Write(n.value.value.Bytes())
	case TY_BOOL_CONST:
		if n.boolv {
			h.Write([]byte{1})
		} else {
			h.Write([]byte{0})
		}
	case TY_SYM, TY_BOOL_SYM:
		h.WriteString(n.name)
	}
	return h.Sum64()
}

// shallowEq compares two nodes assuming their children are already interned.
func (n *node) shallowEq(o *node) bool {
	if n.kind != o.kind || n.width != o.width || len(n.children) != len(o.children) {
		return false
	}
	for i := range n.children {
		if n.children[i] != o.children[i] {
			return false
		}
	}
	switch n.kind {
	case TY_CONST:
		return n.value.value.Cmp(o.value.value) == 0
	case TY_BOOL_CONST:
		return n.boolv == o.boolv
	case TY_SYM, TY_BOOL_SYM:
		return n.name == o.name
	}
	return true
}

// exprWriter accumulates the rendering of an expression. With a limit it
// stops accepting text once limit bytes are written; with seen it renders
// every shared internal node once and refers to it by kind and id afterwards.
type exprWriter struct {
	strings.Builder
	limit int
	seen  map[ExprID]bool
}

func (w *exprWriter) full() bool {
	return w.limit > 0 && w.Len() >= w.limit
}

func (w *exprWriter) WriteString(s string) (int, error) {
	if w.full() {
		return 0, nil
	}
	return w.Builder.WriteString(s)
}

func (w *exprWriter) Write(p []byte) (int, error) {
	if w.full() {
		return 0, nil
	}
	return w.Builder.Write(p)
}

func (eb *ExprBuilder) format(id ExprID) string {
	w := &exprWriter{}
	eb.writeExpr(w, id)
	return w.String()
}

// describe renders id for error messages: shared subexpressions are printed
// once and the output is cut at maxErrorExprLen.
func (eb *ExprBuilder) describe(id ExprID) string {
	w := &exprWriter{limit: maxErrorExprLen, seen: make(map[ExprID]bool)}
	eb.writeExpr(w, id)
	s := w.String()
	if len(s) > maxErrorExprLen {
		s = s[:maxErrorExprLen] + "..."
	}
	return s
}

func (eb *ExprBuilder) writeExpr(w *exprWriter, id ExprID) {
	if w.full() {
		return
	}
	n := eb.get(id)
	if w.seen != nil && !n.isLeaf() {
		if w.seen[id] {
			fmt.Fprintf(w, "%s#%d", KindName(n.kind), id)
			return
		}
		w.seen[id] = true
	}

	switch n.kind {
	case TY_CONST:
		fmt.Fprintf(w, "0x%x", n.value.value)
		return
	case TY_BOOL_CONST:
		w.WriteString(MakeBoolConst(n.boolv).String())
		return
	case TY_SYM, TY_BOOL_SYM:
		w.WriteString(n.name)
		return
	case TY_NOT, TY_NEG:
		w.WriteString(kindSymbols[n.kind])
		eb.writeOperand(w, n.children[0])
		return
	case TY_EXTRACT:
		high := eb.get(n.children[1]).value.AsULong()
		low := eb.get(n.children[2]).value.AsULong()
		eb.writeOperand(w, n.children[0])
		fmt.Fprintf(w, "[%d:%d]", high, low)
		return
	case TY_ZEXT, TY_SEXT:
		name := "ZExt"
		if n.kind == TY_SEXT {
			name = "SExt"
		}
		child := eb.get(n.children[0])
		w.WriteString(name + "(")
		eb.writeExpr(w, n.children[0])
		fmt.Fprintf(w, ", %d)", int64(n.width)-int64(child.width))
		return
	case TY_ITE:
		w.WriteString("ITE(")
		eb.writeExpr(w, n.children[0])
		w.WriteString(", ")
		eb.writeExpr(w, n.children[1])
		w.WriteString(", ")
		eb.writeExpr(w, n.children[2])
		w.WriteString(")")
		return
	}

	symbol, ok := kindSymbols[n.kind]
	if n.kind == TY_CONCAT {
		symbol, ok = "..", true
	}
	if !ok {
		fmt.Fprintf(w, "%s(?)", KindName(n.kind))
		return
	}
	for i, c := range n.children {
		if w.full() {
			return
		}
		if i > 0 {
			fmt.Fprintf(w, " %s ", symbol)
		}
		eb.writeOperand(w, c)
	}
}

func (eb *ExprBuilder) writeOperand(w *exprWriter, id ExprID) {
	if eb.get(id).isLeaf() {
		eb.writeExpr(w, id)
		return
	}
	w.WriteString("(")
	eb.writeExpr(w, id)
	w.WriteString(")")
}
