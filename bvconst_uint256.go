package bvfold

import (
	"github.com/holiman/uint256"
)

// MakeBVConstFromUint256 builds a constant of the given size from a 256-bit
// word, truncating it when size is smaller than 256.
func MakeBVConstFromUint256(x *uint256.Int, size uint) *BVConst {
	return MakeBVConstFromBigint(x.ToBig(), size)
}

// AsUint256 returns the unsigned value of bv as a 256-bit word. The second
// result is false when bv is wider than 256 bits and does not fit.
func (bv *BVConst) AsUint256() (*uint256.Int, bool) {
	v, overflow := uint256.FromBig(bv.value)
	return v, !overflow
}
