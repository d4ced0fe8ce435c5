package bvfold_test

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/borzacchiello/bvfold"
)

func TestBV(t *testing.T) {
	bv := bvfold.MakeBVConst(-1294871, 32)
	if bv.String() != "<BV32 0xffec3de9>" {
		t.Errorf("incorrect BV")
	}
	if bvfold.MakeBVConst(3, 4).Bits() != "0011" {
		t.Errorf("incorrect bits")
	}
}

func TestBVFromString(t *testing.T) {
	bv := bvfold.MakeBVConstFromString("1010", 2, 4)
	if bv == nil || bv.AsULong() != 10 || bv.AsLong() != -6 {
		t.Errorf("incorrect BV")
	}
	if bvfold.MakeBVConstFromString("xyz", 16, 8) != nil {
		t.Errorf("should not parse")
	}
}

func TestBVAdd(t *testing.T) {
	bv1 := bvfold.MakeBVConst(-10, 32)
	bv2 := bvfold.MakeBVConst(128, 32)
	res, err := bv1.Add(bv2)
	if err != nil || res.AsULong() != 118 {
		t.Errorf("incorrect BV")
	}
	if bv1.AsLong() != -10 {
		t.Errorf("operands must not be modified")
	}
}

func TestBVSub(t *testing.T) {
	bv1 := bvfold.MakeBVConst(-10, 32)
	bv2 := bvfold.MakeBVConst(128, 32)
	res, err := bv1.Sub(bv2)
	if err != nil || res.AsLong() != -138 {
		t.Errorf("incorrect BV")
	}
}

func TestBVMul(t *testing.T) {
	res, err := bvfold.MakeBVConst(0x10, 8).Mul(bvfold.MakeBVConst(0x11, 8))
	if err != nil || res.AsULong() != 0x10 {
		t.Errorf("incorrect BV: %s", res)
	}
}

func TestSExt(t *testing.T) {
	bv := bvfold.MakeBVConst(-10, 32).SExt(32)
	if bv.Size != 64 || bv.AsLong() != -10 {
		t.Errorf("incorrect BV")
	}

	bv = bvfold.MakeBVConst(-10, 32).ZExt(32)
	if bv.Size != 64 || bv.AsULong() != 0xfffffff6 {
		t.Errorf("incorrect BV")
	}
}

func TestNonstandardSizes(t *testing.T) {
	bv, err := bvfold.MakeBVConst(1, 3).Add(bvfold.MakeBVConst(7, 3))
	if err != nil || bv.AsULong() != 0 {
		t.Errorf("incorrect BV")
	}
}

func TestWrongSizes(t *testing.T) {
	_, err := bvfold.MakeBVConst(1, 3).Add(bvfold.MakeBVConst(1, 4))
	if !errors.Is(err, bvfold.ErrSizeMismatch) {
		t.Errorf("should return a size mismatch, got %v", err)
	}
}

func TestConcatSlice(t *testing.T) {
	bv := bvfold.MakeBVConst(42, 8).
		Concat(bvfold.MakeBVConst(43, 8)).
		Concat(bvfold.MakeBVConst(44, 8)).
		Concat(bvfold.MakeBVConst(45, 8))
	if bv.Size != 32 {
		t.Errorf("incorrect size %d", bv.Size)
	}

	b, err := bv.Slice(7, 0)
	if err != nil || b.AsULong() != 45 {
		t.Errorf("incorrect BV")
	}
	b, err = bv.Slice(15, 8)
	if err != nil || b.AsULong() != 44 {
		t.Errorf("incorrect BV")
	}
}

func TestSlice(t *testing.T) {
	bv := bvfold.MakeBVConst(0xdeadbeef, 32)

	cases := []struct {
		high, low uint
		exp       uint64
	}{
		{7, 0, 0xef},
		{15, 8, 0xbe},
		{23, 16, 0xad},
		{31, 24, 0xde},
		{0, 0, 1},
	}
	for _, c := range cases {
		s, err := bv.Slice(c.high, c.low)
		if err != nil {
			t.Error(err)
			continue
		}
		if s.Size != c.high-c.low+1 || s.AsULong() != c.exp {
			t.Errorf("slice [%d:%d]: got %s", c.high, c.low, s)
		}
	}

	if _, err := bv.Slice(32, 24); err == nil {
		t.Errorf("should be out of range")
	}
	if _, err := bv.Slice(3, 4); err == nil {
		t.Errorf("high < low should fail")
	}
}

func TestShifts(t *testing.T) {
	if bvfold.MakeBVConst(-1, 32).AShr(13).AsLong() != -1 {
		t.Errorf("incorrect AShr")
	}
	if bvfold.MakeBVConst(-2, 32).AShr(1).AsLong() != -1 {
		t.Errorf("incorrect AShr")
	}
	if bvfold.MakeBVConst(0x40, 8).AShr(2).AsULong() != 0x10 {
		t.Errorf("incorrect AShr")
	}
	if !bvfold.MakeBVConst(-5, 32).AShr(40).HasAllBitsSet() {
		t.Errorf("AShr of a negative value past the width should give all ones")
	}
	if !bvfold.MakeBVConst(5, 32).AShr(32).IsZero() {
		t.Errorf("AShr of a positive value past the width should give zero")
	}
	if bvfold.MakeBVConst(0x80, 8).LShr(7).AsULong() != 1 {
		t.Errorf("incorrect LShr")
	}
	if !bvfold.MakeBVConst(0xff, 8).LShr(8).IsZero() {
		t.Errorf("incorrect LShr")
	}
	if bvfold.MakeBVConst(1, 8).Shl(3).Bits() != "00001000" {
		t.Errorf("incorrect Shl")
	}
	if !bvfold.MakeBVConst(1, 8).Shl(8).IsZero() {
		t.Errorf("incorrect Shl")
	}
}

func TestNeg(t *testing.T) {
	bv := bvfold.MakeBVConst(-42, 18)

	bv = bv.Neg()
	if bv.AsLong() != 42 {
		t.Errorf("incorrect BV")
	}
	bv = bv.Neg()
	if bv.AsLong() != -42 {
		t.Errorf("incorrect BV")
	}
	if bvfold.MakeBVConst(0, 18).Not().AsLong() != -1 {
		t.Errorf("incorrect Not")
	}
}

func TestCmp(t *testing.T) {
	bv1 := bvfold.MakeBVConst(-10, 32)
	bv2 := bvfold.MakeBVConst(-11, 32)
	bv3 := bvfold.MakeBVConst(1, 32)

	v, err := bv1.SGt(bv2)
	if err != nil || !v.Value {
		t.Errorf("[%s s> %s = %s] incorrect SGt result", bv1, bv2, v)
	}

	v, err = bv1.SGe(bv2)
	if err != nil || !v.Value {
		t.Errorf("[%s s>= %s = %s] incorrect SGe result", bv1, bv2, v)
	}

	v, err = bv1.SLt(bv2)
	if err != nil || v.Value {
		t.Errorf("[%s s< %s = %s] incorrect SLt result", bv1, bv2, v)
	}

	v, err = bv1.SLe(bv2)
	if err != nil || v.Value {
		t.Errorf("[%s s<= %s = %s] incorrect SLe result", bv1, bv2, v)
	}

	v, err = bv1.Ult(bv3)
	if err != nil || v.Value {
		t.Errorf("[%s u< %s = %s] incorrect Ult result", bv1, bv3, v)
	}

	v, err = bv1.UGt(bv3)
	if err != nil || !v.Value {
		t.Errorf("[%s u> %s = %s] incorrect UGt result", bv1, bv3, v)
	}

	v, err = bv1.Eq(bvfold.MakeBVConst(-10, 32))
	if err != nil || !v.Value {
		t.Errorf("[%s == %s = %s] equal values must compare equal", bv1, bv1, v)
	}

	v, err = bv1.NEq(bv2)
	if err != nil || !v.Value {
		t.Errorf("[%s != %s = %s] incorrect NEq result", bv1, bv2, v)
	}

	if _, err = bv1.Eq(bvfold.MakeBVConst(-10, 16)); err == nil {
		t.Errorf("comparison of different sizes should fail")
	}
}

func TestDiv(t *testing.T) {
	bv1 := bvfold.MakeBVConst(-10, 32)
	bv2 := bvfold.MakeBVConst(3, 32)

	resSdiv, err := bv1.SDiv(bv2)
	if err != nil || resSdiv.AsLong() != -3 {
		t.Error("invalid division")
	}

	resUdiv, err := bv1.UDiv(bv2)
	if err != nil || resUdiv.AsULong() != 0x55555552 {
		t.Error("invalid division")
	}

	resSrem, err := bv1.SRem(bv2)
	if err != nil || resSrem.AsLong() != -1 {
		t.Error("invalid remainder")
	}

	resUrem, err := bv1.URem(bv2)
	if err != nil || resUrem.AsULong() != 0 {
		t.Error("invalid remainder")
	}

	res, err := bvfold.MakeBVConstFromString("1010", 2, 4).SDiv(bvfold.MakeBVConstFromString("0011", 2, 4))
	if err != nil || res.Bits() != "1110" {
		t.Errorf("invalid signed division: %s", res)
	}
}

func TestSMod(t *testing.T) {
	cases := []struct {
		s, t, exp int64
	}{
		{10, 3, 1},
		{-10, 3, 2},
		{10, -3, -2},
		{-10, -3, -1},
		{9, -3, 0},
		{-9, 3, 0},
	}
	for _, c := range cases {
		res, err := bvfold.MakeBVConst(c.s, 16).SMod(bvfold.MakeBVConst(c.t, 16))
		if err != nil {
			t.Error(err)
			continue
		}
		if res.AsLong() != c.exp {
			t.Errorf("%d smod %d: expected %d, got %d", c.s, c.t, c.exp, res.AsLong())
		}
	}
}

func TestDivisionByZero(t *testing.T) {
	x := bvfold.MakeBVConst(7, 8)
	z := bvfold.MakeBVConst(0, 8)

	ops := map[string]func(*bvfold.BVConst, *bvfold.BVConst) (*bvfold.BVConst, error){
		"udiv": (*bvfold.BVConst).UDiv,
		"urem": (*bvfold.BVConst).URem,
		"sdiv": (*bvfold.BVConst).SDiv,
		"srem": (*bvfold.BVConst).SRem,
		"smod": (*bvfold.BVConst).SMod,
	}
	for name, op := range ops {
		if _, err := op(x, z); !errors.Is(err, bvfold.ErrDivisionByZero) {
			t.Errorf("%s: expected division by zero, got %v", name, err)
		}
	}
}
