package bvfold

// BoolConst is the value of a boolean-sorted constant, i.e. the result of a
// comparison between bitvectors.
type BoolConst struct {
	Value bool
}

func MakeBoolConst(v bool) BoolConst {
	return BoolConst{v}
}

func (b BoolConst) String() string {
	if b.Value {
		return "true"
	}
	return "false"
}

func BoolTrue() BoolConst {
	return BoolConst{true}
}

func BoolFalse() BoolConst {
	return BoolConst{false}
}

func (b BoolConst) Not() BoolConst {
	return BoolConst{!b.Value}
}
