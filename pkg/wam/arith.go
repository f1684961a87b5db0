package wam

import (
	"math"
	"math/big"
)

// EvalError carries a Prolog error term through Go's error-handling
// machinery just long enough for the instruction interpreter to copy it
// into the Ball and jump to throw/1's handler (§4.4, §7). It is never
// meant to be inspected as a Go error message by anything other than
// tests.
type EvalError struct{ Term Cell }

func (e *EvalError) Error() string { return "prolog arithmetic error" }

// maxShift bounds bitwise shift magnitude: counts beyond it saturate
// (§4.4 "shifts by out-of-range counts saturate at the maximum
// word-sized shift") rather than growing an arbitrary-precision integer
// without bound.
const maxShift = 64

// Eval evaluates the arithmetic expression rooted at expr, walking it in
// post-order over the heap (§4.4). It returns a Const (ConInt, ConRat, or
// ConFloat) or an *EvalError wrapping a ready-to-throw Prolog error term.
func (m *Machine) Eval(expr Cell) (Const, error) {
	c := deref(m, expr)

	switch v := c.(type) {
	case RefCell, StackRefCell:
		return nil, &EvalError{Term: instantiationError(m)}
	case ConCell:
		switch val := v.Value.(type) {
		case ConInt, ConRat, ConFloat:
			return val, nil
		case ConAtom:
			if k, ok := arithConstants[m.Atoms.Name(Atom(val))]; ok {
				return k, nil
			}
			return nil, &EvalError{Term: typeError(m, "evaluable", c)}
		default:
			return nil, &EvalError{Term: typeError(m, "evaluable", c)}
		}
	case StrCell:
		h := m.Heap[v.Addr].(HeaderCell)
		name := m.Atoms.Name(h.Name)
		switch h.Arity {
		case 1:
			x, err := m.Eval(m.Heap[v.Addr+1])
			if err != nil {
				return nil, err
			}
			return evalUnary(m, name, x)
		case 2:
			x, err := m.Eval(m.Heap[v.Addr+1])
			if err != nil {
				return nil, err
			}
			y, err := m.Eval(m.Heap[v.Addr+2])
			if err != nil {
				return nil, err
			}
			return evalBinary(m, name, x, y)
		default:
			return nil, &EvalError{Term: typeError(m, "evaluable", c)}
		}
	default:
		return nil, &EvalError{Term: typeError(m, "evaluable", c)}
	}
}

var arithConstants = map[string]Const{
	"pi":      ConFloat(math.Pi),
	"e":       ConFloat(math.E),
	"inf":     ConFloat(math.Inf(1)),
	"nan":     ConFloat(math.NaN()),
	"epsilon": ConFloat(2.220446049250313e-16),
}

// promote returns the common representation kind (0=int, 1=rational,
// 2=float) both operands are to be promoted to, per §4.4's "Mixed-type promotion order: integer -> rational ->
// float."
func promote(a, b Const) int {
	k := func(c Const) int {
		switch c.(type) {
		case ConInt:
			return 0
		case ConRat:
			return 1
		case ConFloat:
			return 2
		}
		return 2
	}
	ka, kb := k(a), k(b)
	if ka > kb {
		return ka
	}
	return kb
}

func asFloat(c Const) float64 {
	switch v := c.(type) {
	case ConInt:
		f, _ := new(big.Float).SetInt(v.Int).Float64()
		return f
	case ConRat:
		f, _ := v.Rat.Float64()
		return f
	case ConFloat:
		return float64(v)
	}
	return 0
}

func asRat(c Const) *big.Rat {
	switch v := c.(type) {
	case ConInt:
		return new(big.Rat).SetInt(v.Int)
	case ConRat:
		return v.Rat
	}
	return nil
}

func asInt(c Const) (*big.Int, bool) {
	v, ok := c.(ConInt)
	if !ok {
		return nil, false
	}
	return v.Int, true
}

func evalBinary(m *Machine, name string, a, b Const) (Const, error) {
	switch name {
	case "+", "-", "*", "min", "max":
		return evalArithBinary(m, name, a, b)
	case "/":
		return evalDivide(m, a, b)
	case "//", "div", "mod", "rem":
		return evalIntDiv(m, name, a, b)
	case "**", "^":
		return evalPow(m, name, a, b)
	case ">>", "<<", "/\\", "\\/", "xor":
		return evalBitwise(m, name, a, b)
	case "gcd":
		ai, aok := asInt(a)
		bi, bok := asInt(b)
		if !aok || !bok {
			return nil, &EvalError{Term: evaluationError(m, "expected_integer_args")}
		}
		return ConInt{new(big.Int).GCD(nil, nil, new(big.Int).Abs(ai), new(big.Int).Abs(bi))}, nil
	default:
		return nil, &EvalError{Term: typeError(m, "evaluable", nil)}
	}
}

func evalArithBinary(m *Machine, name string, a, b Const) (Const, error) {
	switch promote(a, b) {
	case 0:
		ai, _ := asInt(a)
		bi, _ := asInt(b)
		r := new(big.Int)
		switch name {
		case "+":
			r.Add(ai, bi)
		case "-":
			r.Sub(ai, bi)
		case "*":
			r.Mul(ai, bi)
		case "min":
			if ai.Cmp(bi) <= 0 {
				r.Set(ai)
			} else {
				r.Set(bi)
			}
		case "max":
			if ai.Cmp(bi) >= 0 {
				r.Set(ai)
			} else {
				r.Set(bi)
			}
		}
		return ConInt{r}, nil
	case 1:
		ar, br := asRat(a), asRat(b)
		r := new(big.Rat)
		switch name {
		case "+":
			r.Add(ar, br)
		case "-":
			r.Sub(ar, br)
		case "*":
			r.Mul(ar, br)
		case "min":
			if ar.Cmp(br) <= 0 {
				r.Set(ar)
			} else {
				r.Set(br)
			}
		case "max":
			if ar.Cmp(br) >= 0 {
				r.Set(ar)
			} else {
				r.Set(br)
			}
		}
		return ConRat{r}, nil
	default:
		af, bf := asFloat(a), asFloat(b)
		switch name {
		case "+":
			return ConFloat(af + bf), nil
		case "-":
			return ConFloat(af - bf), nil
		case "*":
			return ConFloat(af * bf), nil
		case "min":
			return ConFloat(math.Min(af, bf)), nil
		default:
			return ConFloat(math.Max(af, bf)), nil
		}
	}
}

func evalDivide(m *Machine, a, b Const) (Const, error) {
	if promote(a, b) == 2 {
		bf := asFloat(b)
		if bf == 0 {
			return nil, &EvalError{Term: evaluationError(m, "zero_divisor")}
		}
		return ConFloat(asFloat(a) / bf), nil
	}
	ar, br := asRat(a), asRat(b)
	if br.Sign() == 0 {
		return nil, &EvalError{Term: evaluationError(m, "zero_divisor")}
	}
	r := new(big.Rat).Quo(ar, br)
	if ai, aok := asInt(a); aok {
		if bi, bok := asInt(b); bok && r.IsInt() {
			_ = ai
			_ = bi
			return ConInt{new(big.Int).Set(r.Num())}, nil
		}
	}
	return ConRat{r}, nil
}

func evalIntDiv(m *Machine, name string, a, b Const) (Const, error) {
	ai, aok := asInt(a)
	bi, bok := asInt(b)
	if !aok || !bok {
		return nil, &EvalError{Term: evaluationError(m, "expected_integer_args")}
	}
	if bi.Sign() == 0 {
		return nil, &EvalError{Term: evaluationError(m, "zero_divisor")}
	}
	q, r := new(big.Int), new(big.Int)
	switch name {
	case "//":
		q.Quo(ai, bi) // truncating division
		return ConInt{q}, nil
	case "div":
		q.QuoRem(ai, bi, r) // floored division: step the truncated quotient down when signs differ
		if r.Sign() != 0 && (r.Sign() < 0) != (bi.Sign() < 0) {
			q.Sub(q, big.NewInt(1))
		}
		return ConInt{q}, nil
	case "mod":
		r.Mod(ai, bi) // result takes the sign of the divisor
		if r.Sign() != 0 && (r.Sign() < 0) != (bi.Sign() < 0) {
			r.Add(r, bi)
		}
		return ConInt{r}, nil
	default: // rem
		r.Rem(ai, bi) // result takes the sign of the dividend
		return ConInt{r}, nil
	}
}

func evalPow(m *Machine, name string, a, b Const) (Const, error) {
	if name == "^" && promote(a, b) == 0 {
		ai, _ := asInt(a)
		bi, _ := asInt(b)
		if bi.Sign() >= 0 {
			return ConInt{new(big.Int).Exp(ai, bi, nil)}, nil
		}
	}
	af, bf := asFloat(a), asFloat(b)
	return ConFloat(math.Pow(af, bf)), nil
}

// evalBitwise implements bitwise operators over two's-complement
// arbitrary-precision integers (§4.4). The original rusty-wam source
// implements the "or" operator with bitwise AND — almost certainly a
// typo for bitwise OR. Per §9's Open Question, this implementation uses
// true bitwise OR for "\/" and documents the divergence here rather than
// reproducing the bug.
func evalBitwise(m *Machine, name string, a, b Const) (Const, error) {
	ai, aok := asInt(a)
	bi, bok := asInt(b)
	if !aok || !bok {
		return nil, &EvalError{Term: evaluationError(m, "expected_integer_args")}
	}
	switch name {
	case "/\\":
		return ConInt{new(big.Int).And(ai, bi)}, nil
	case "\\/":
		return ConInt{new(big.Int).Or(ai, bi)}, nil
	case "xor":
		return ConInt{new(big.Int).Xor(ai, bi)}, nil
	case ">>", "<<":
		n := bi.Int64()
		if n < 0 {
			n = -n
			name = map[string]string{">>": "<<", "<<": ">>"}[name]
		}
		if n > maxShift {
			n = maxShift
		}
		r := new(big.Int)
		if name == ">>" {
			r.Rsh(ai, uint(n))
		} else {
			r.Lsh(ai, uint(n))
		}
		return ConInt{r}, nil
	}
	return nil, &EvalError{Term: typeError(m, "evaluable", nil)}
}

func evalUnary(m *Machine, name string, a Const) (Const, error) {
	switch name {
	case "-":
		switch v := a.(type) {
		case ConInt:
			return ConInt{new(big.Int).Neg(v.Int)}, nil
		case ConRat:
			return ConRat{new(big.Rat).Neg(v.Rat)}, nil
		default:
			return ConFloat(-asFloat(a)), nil
		}
	case "+":
		return a, nil
	case "abs":
		switch v := a.(type) {
		case ConInt:
			return ConInt{new(big.Int).Abs(v.Int)}, nil
		case ConRat:
			return ConRat{new(big.Rat).Abs(v.Rat)}, nil
		default:
			return ConFloat(math.Abs(asFloat(a))), nil
		}
	case "sign":
		switch v := a.(type) {
		case ConInt:
			return ConInt{big.NewInt(int64(v.Int.Sign()))}, nil
		default:
			f := asFloat(a)
			switch {
			case f > 0:
				return ConFloat(1), nil
			case f < 0:
				return ConFloat(-1), nil
			default:
				return ConFloat(0), nil
			}
		}
	case "sqrt":
		return ConFloat(math.Sqrt(asFloat(a))), nil
	case "sin":
		return ConFloat(math.Sin(asFloat(a))), nil
	case "cos":
		return ConFloat(math.Cos(asFloat(a))), nil
	case "tan":
		return ConFloat(math.Tan(asFloat(a))), nil
	case "exp":
		return ConFloat(math.Exp(asFloat(a))), nil
	case "log":
		return ConFloat(math.Log(asFloat(a))), nil
	case "float":
		return ConFloat(asFloat(a)), nil
	case "integer", "truncate":
		return floatToInt(a, math.Trunc)
	case "round":
		return floatToInt(a, math.Round)
	case "ceiling":
		return floatToInt(a, math.Ceil)
	case "floor":
		return floatToInt(a, math.Floor)
	case "float_integer_part":
		return ConFloat(math.Trunc(asFloat(a))), nil
	case "float_fractional_part":
		f := asFloat(a)
		return ConFloat(f - math.Trunc(f)), nil
	case "\\":
		ai, ok := asInt(a)
		if !ok {
			return nil, &EvalError{Term: evaluationError(m, "expected_integer_args")}
		}
		return ConInt{new(big.Int).Not(ai)}, nil
	case "msb":
		ai, ok := asInt(a)
		if !ok || ai.Sign() <= 0 {
			return nil, &EvalError{Term: evaluationError(m, "expected_integer_args")}
		}
		return ConInt{big.NewInt(int64(ai.BitLen() - 1))}, nil
	default:
		return nil, &EvalError{Term: typeError(m, "evaluable", nil)}
	}
}

// floatToInt converts a to an integer via round (the supplied rounding
// function), bypassing the conversion entirely when a is already an
// integer or rational with no remainder.
func floatToInt(a Const, round func(float64) float64) (Const, error) {
	switch v := a.(type) {
	case ConInt:
		return v, nil
	case ConRat:
		if v.Rat.IsInt() {
			return ConInt{new(big.Int).Set(v.Rat.Num())}, nil
		}
		f, _ := v.Rat.Float64()
		bi, _ := big.NewFloat(round(f)).Int(nil)
		return ConInt{bi}, nil
	default:
		bi, _ := big.NewFloat(round(asFloat(a))).Int(nil)
		return ConInt{bi}, nil
	}
}

// CompareNumeric exposes the evaluator's numeric ordering, the one the
// arithmetic-comparison builtins (=:=, =\=, <, >, =<, >=) use.
func CompareNumeric(a, b Const) int { return compareNumeric(a, b) }
