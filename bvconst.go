package bvfold

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/pkg/errors"
)

var one = big.NewInt(1)

var (
	// ErrSizeMismatch is returned when the operands of a binary operation have different widths.
	ErrSizeMismatch = errors.New("different sizes")
	// ErrDivisionByZero is returned by the division family when the divisor is zero.
	ErrDivisionByZero = errors.New("division by zero")
)

// BVConst is a fixed-width two's-complement bitvector value. The value is
// always kept in [0, 2^Size). A BVConst is never modified once created: every
// operation returns a fresh value, so constants can be shared between nodes.
type BVConst struct {
	Size  uint
	mask  *big.Int
	value *big.Int
}

func makeMask(size uint) *big.Int {
	v := new(big.Int).Lsh(one, size)
	return v.Sub(v, one)
}

func MakeBVConst(value int64, size uint) *BVConst {
	return MakeBVConstFromBigint(big.NewInt(value), size)
}

// MakeBVConstFromBigint truncates value to size bits. Negative values are
// taken in two's complement.
func MakeBVConstFromBigint(value *big.Int, size uint) *BVConst {
	if size == 0 {
		return nil
	}

	mask := makeMask(size)
	v := new(big.Int).And(value, mask)
	return &BVConst{Size: size, mask: mask, value: v}
}

func MakeBVConstFromString(s string, base int, size uint) *BVConst {
	v, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil
	}
	return MakeBVConstFromBigint(v, size)
}

func OneBVConst(size uint) *BVConst {
	return MakeBVConst(1, size)
}

// derive wraps v (owned by the caller) into a constant of the same width as bv.
func (bv *BVConst) derive(v *big.Int) *BVConst {
	v.And(v, bv.mask)
	return &BVConst{Size: bv.Size, mask: bv.mask, value: v}
}

func (bv *BVConst) checkSize(o *BVConst) error {
	if bv.Size != o.Size {
		return errors.Wrapf(ErrSizeMismatch, "%d and %d", bv.Size, o.Size)
	}
	return nil
}

// signed returns the two's-complement interpretation of bv.
func (bv *BVConst) signed() *big.Int {
	v := new(big.Int).Set(bv.value)
	if bv.IsNegative() {
		v.Sub(v, new(big.Int).Lsh(one, bv.Size))
	}
	return v
}

func (bv *BVConst) IsNegative() bool {
	return bv.value.Bit(int(bv.Size)-1) == 1
}

func (bv *BVConst) IsZero() bool {
	return bv.value.Sign() == 0
}

func (bv *BVConst) IsOne() bool {
	return bv.value.Cmp(one) == 0
}

func (bv *BVConst) HasAllBitsSet() bool {
	return bv.value.Cmp(bv.mask) == 0
}

// Bit returns the i-th bit, bit 0 being the least significant one.
func (bv *BVConst) Bit(i uint) uint {
	return bv.value.Bit(int(i))
}

// BigInt returns a copy of the unsigned value.
func (bv *BVConst) BigInt() *big.Int {
	return new(big.Int).Set(bv.value)
}

func (bv *BVConst) Copy() *BVConst {
	return &BVConst{Size: bv.Size, mask: bv.mask, value: new(big.Int).Set(bv.value)}
}

func (bv *BVConst) String() string {
	return fmt.Sprintf("<BV%d 0x%x>", bv.Size, bv.value)
}

// Bits returns the binary representation, most significant bit first, padded
// to the width of bv.
func (bv *BVConst) Bits() string {
	s := bv.value.Text(2)
	if uint(len(s)) < bv.Size {
		s = strings.Repeat("0", int(bv.Size)-len(s)) + s
	}
	return s
}

func (bv *BVConst) FitInLong() bool {
	return bv.value.BitLen() <= 64
}

func (bv *BVConst) AsULong() uint64 {
	// if it does not `FitInLong`, result is undefined
	return bv.value.Uint64()
}

func (bv *BVConst) AsLong() int64 {
	// if the signed value does not fit in 64 bits, result is undefined
	return bv.signed().Int64()
}

// clampedUint reads bv as an unsigned integer, saturating at limit.
func (bv *BVConst) clampedUint(limit uint) uint {
	if bv.value.Cmp(new(big.Int).SetUint64(uint64(limit))) >= 0 {
		return limit
	}
	return uint(bv.value.Uint64())
}

func (bv *BVConst) Not() *BVConst {
	return bv.derive(new(big.Int).Xor(bv.value, bv.mask))
}

func (bv *BVConst) Neg() *BVConst {
	return bv.derive(new(big.Int).Neg(bv.value))
}

func (bv *BVConst) Add(o *BVConst) (*BVConst, error) {
	if err := bv.checkSize(o); err != nil {
		return nil, err
	}
	return bv.derive(new(big.Int).Add(bv.value, o.value)), nil
}

// Sub computes bv - o, discarding the borrow.
func (bv *BVConst) Sub(o *BVConst) (*BVConst, error) {
	if err := bv.checkSize(o); err != nil {
		return nil, err
	}
	return bv.derive(new(big.Int).Sub(bv.value, o.value)), nil
}

// Mul keeps the low half of the double-width product.
func (bv *BVConst) Mul(o *BVConst) (*BVConst, error) {
	if err := bv.checkSize(o); err != nil {
		return nil, err
	}
	return bv.derive(new(big.Int).Mul(bv.value, o.value)), nil
}

func (bv *BVConst) checkDivisor(o *BVConst) error {
	if err := bv.checkSize(o); err != nil {
		return err
	}
	if o.IsZero() {
		return ErrDivisionByZero
	}
	return nil
}

func (bv *BVConst) UDiv(o *BVConst) (*BVConst, error) {
	if err := bv.checkDivisor(o); err != nil {
		return nil, err
	}
	return bv.derive(new(big.Int).Quo(bv.value, o.value)), nil
}

func (bv *BVConst) URem(o *BVConst) (*BVConst, error) {
	if err := bv.checkDivisor(o); err != nil {
		return nil, err
	}
	return bv.derive(new(big.Int).Rem(bv.value, o.value)), nil
}

// SDiv is the signed quotient rounded toward zero.
func (bv *BVConst) SDiv(o *BVConst) (*BVConst, error) {
	if err := bv.checkDivisor(o); err != nil {
		return nil, err
	}
	return bv.derive(new(big.Int).Quo(bv.signed(), o.signed())), nil
}

// SRem is the remainder of SDiv; it takes the sign of the dividend.
func (bv *BVConst) SRem(o *BVConst) (*BVConst, error) {
	if err := bv.checkDivisor(o); err != nil {
		return nil, err
	}
	return bv.derive(new(big.Int).Rem(bv.signed(), o.signed())), nil
}

// SMod is the remainder of the division rounded toward negative infinity: a
// non-zero result takes the sign of the divisor.
func (bv *BVConst) SMod(o *BVConst) (*BVConst, error) {
	if err := bv.checkDivisor(o); err != nil {
		return nil, err
	}

	negS := bv.IsNegative()
	negT := o.IsNegative()

	absS, absT := bv, o
	if negS {
		absS = bv.Neg()
	}
	if negT {
		absT = o.Neg()
	}
	u, err := absS.URem(absT)
	if err != nil {
		return nil, err
	}
	if u.IsZero() {
		return u, nil
	}

	switch {
	case !negS && !negT:
		return u, nil
	case negS && !negT:
		return u.Neg().Add(o)
	case !negS && negT:
		return u.Add(o)
	default:
		return u.Neg(), nil
	}
}

func (bv *BVConst) And(o *BVConst) (*BVConst, error) {
	if err := bv.checkSize(o); err != nil {
		return nil, err
	}
	return bv.derive(new(big.Int).And(bv.value, o.value)), nil
}

func (bv *BVConst) Or(o *BVConst) (*BVConst, error) {
	if err := bv.checkSize(o); err != nil {
		return nil, err
	}
	return bv.derive(new(big.Int).Or(bv.value, o.value)), nil
}

func (bv *BVConst) Xor(o *BVConst) (*BVConst, error) {
	if err := bv.checkSize(o); err != nil {
		return nil, err
	}
	return bv.derive(new(big.Int).Xor(bv.value, o.value)), nil
}

func (bv *BVConst) AShr(n uint) *BVConst {
	isNeg := bv.IsNegative()
	if n >= bv.Size {
		if isNeg {
			return bv.derive(new(big.Int).Set(bv.mask))
		}
		return bv.derive(new(big.Int))
	}

	v := new(big.Int).Rsh(bv.value, n)
	if isNeg && n > 0 {
		fill := makeMask(n)
		fill.Lsh(fill, bv.Size-n)
		v.Or(v, fill)
	}
	return bv.derive(v)
}

func (bv *BVConst) LShr(n uint) *BVConst {
	if n >= bv.Size {
		return bv.derive(new(big.Int))
	}
	return bv.derive(new(big.Int).Rsh(bv.value, n))
}

func (bv *BVConst) Shl(n uint) *BVConst {
	if n >= bv.Size {
		return bv.derive(new(big.Int))
	}
	return bv.derive(new(big.Int).Lsh(bv.value, n))
}

// Concat places bv in the most significant position and o in the least
// significant one.
func (bv *BVConst) Concat(o *BVConst) *BVConst {
	v := new(big.Int).Lsh(bv.value, o.Size)
	v.Or(v, o.value)
	return MakeBVConstFromBigint(v, bv.Size+o.Size)
}

// Slice returns bits [high:low] (inclusive) of bv.
func (bv *BVConst) Slice(high uint, low uint) (*BVConst, error) {
	if high < low {
		return nil, errors.Errorf("high (%d) is lower than low (%d)", high, low)
	}
	if high >= bv.Size {
		return nil, errors.Errorf("high (%d) is out of range for size %d", high, bv.Size)
	}
	return MakeBVConstFromBigint(new(big.Int).Rsh(bv.value, low), high-low+1), nil
}

func (bv *BVConst) ZExt(bits uint) *BVConst {
	return MakeBVConstFromBigint(bv.value, bv.Size+bits)
}

func (bv *BVConst) SExt(bits uint) *BVConst {
	return MakeBVConstFromBigint(bv.signed(), bv.Size+bits)
}

// UCmp compares bv and o as unsigned integers, most significant bit first.
func (bv *BVConst) UCmp(o *BVConst) (int, error) {
	if err := bv.checkSize(o); err != nil {
		return 0, err
	}
	return bv.value.Cmp(o.value), nil
}

// SCmp compares bv and o as two's-complement integers.
func (bv *BVConst) SCmp(o *BVConst) (int, error) {
	if err := bv.checkSize(o); err != nil {
		return 0, err
	}
	return bv.signed().Cmp(o.signed()), nil
}

func cmpResult(c int, err error, pred func(int) bool) (BoolConst, error) {
	if err != nil {
		return BoolFalse(), err
	}
	if pred(c) {
		return BoolTrue(), nil
	}
	return BoolFalse(), nil
}

func (bv *BVConst) Eq(o *BVConst) (BoolConst, error) {
	c, err := bv.UCmp(o)
	return cmpResult(c, err, func(c int) bool { return c == 0 })
}

func (bv *BVConst) NEq(o *BVConst) (BoolConst, error) {
	v, err := bv.Eq(o)
	return v.Not(), err
}

func (bv *BVConst) Ult(o *BVConst) (BoolConst, error) {
	c, err := bv.UCmp(o)
	return cmpResult(c, err, func(c int) bool { return c < 0 })
}

func (bv *BVConst) Ule(o *BVConst) (BoolConst, error) {
	c, err := bv.UCmp(o)
	return cmpResult(c, err, func(c int) bool { return c <= 0 })
}

func (bv *BVConst) UGt(o *BVConst) (BoolConst, error) {
	c, err := bv.UCmp(o)
	return cmpResult(c, err, func(c int) bool { return c > 0 })
}

func (bv *BVConst) UGe(o *BVConst) (BoolConst, error) {
	c, err := bv.UCmp(o)
	return cmpResult(c, err, func(c int) bool { return c >= 0 })
}

func (bv *BVConst) SLt(o *BVConst) (BoolConst, error) {
	c, err := bv.SCmp(o)
	return cmpResult(c, err, func(c int) bool { return c < 0 })
}

func (bv *BVConst) SLe(o *BVConst) (BoolConst, error) {
	c, err := bv.SCmp(o)
	return cmpResult(c, err, func(c int) bool { return c <= 0 })
}

func (bv *BVConst) SGt(o *BVConst) (BoolConst, error) {
	c, err := bv.SCmp(o)
	return cmpResult(c, err, func(c int) bool { return c > 0 })
}

func (bv *BVConst) SGe(o *BVConst) (BoolConst, error) {
	c, err := bv.SCmp(o)
	return cmpResult(c, err, func(c int) bool { return c >= 0 })
}
