package bvfold

var bvDivisionOps = map[int]func(*BVConst, *BVConst) (*BVConst, error){
	// signed quotient rounded toward zero, remainder with the dividend's sign
	TY_SDIV: (*BVConst).SDiv,
	TY_SREM: (*BVConst).SRem,
	// floor modulus: the sign follows the divisor
	TY_SMOD: (*BVConst).SMod,
	TY_UDIV: (*BVConst).UDiv,
	TY_UREM: (*BVConst).URem,
}

// evalDivision applies the division policies of the configuration:
//   - a zero divisor evaluates to one when DivisionByZeroReturnsOne is set;
//   - otherwise a failing division aborts, unless CounterexampleChecking is
//     set, in which case it evaluates to zero and the result is flagged.
func (ev *Evaluator) evalDivision(id ExprID, n *node) (CacheEntry, error) {
	ops, exc, err := ev.evalBVs(n.children)
	if err != nil {
		return CacheEntry{}, err
	}
	dividend, divisor := ops[0], ops[1]

	if ev.cfg.DivisionByZeroReturnsOne && divisor.IsZero() {
		return CacheEntry{ev.mkBV(OneBVConst(n.width)), exc}, nil
	}

	res, err := bvDivisionOps[n.kind](dividend, divisor)
	if err != nil {
		if ev.cfg.CounterexampleChecking {
			ev.logger.Warn().
				Err(err).
				Uint32("id", uint32(id)).
				Str("kind", KindName(n.kind)).
				Msg("division error while checking counterexample")
			return CacheEntry{ev.mkBV(MakeBVConst(0, n.width)), true}, nil
		}
		return CacheEntry{}, divisionError(ev.eb.wrap(id), err)
	}
	return CacheEntry{ev.mkBV(res), exc}, nil
}
