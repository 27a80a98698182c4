package expr

import (
	"fmt"
	"math"
	"math/big"
	"math/bits"
	"reflect"
	"strings"

	"github.com/randalmurphal/exprkit/pkg/exprkit/host"
)

// numeric ranks order the numeric tower. Binary arithmetic widens both
// operands to the larger rank.
type numRank int

const (
	rankInt numRank = iota
	rankBigInt
	rankFloat
	rankBigFloat
)

// toNumeric maps v onto the tower. Numeric strings are parsed so `"4" * 2`
// works; the second result is false for non-numeric values.
func toNumeric(v any) (any, numRank, bool) {
	switch val := v.(type) {
	case int64:
		return val, rankInt, true
	case float64:
		return val, rankFloat, true
	case *big.Int:
		return val, rankBigInt, true
	case *big.Float:
		return val, rankBigFloat, true
	case string:
		n, ok := host.ParseNumber(val)
		if !ok {
			return nil, 0, false
		}
		return toNumeric(n)
	case bool, nil:
		return nil, 0, false
	}
	if host.IsNumber(v) {
		return toNumeric(host.Normalize(v))
	}
	return nil, 0, false
}

// widen picks the common rank of two operands. Mixing a big integer with a
// float goes to big decimal so no integer digits are lost.
func widen(a, b numRank) numRank {
	if (a == rankBigInt && b == rankFloat) || (a == rankFloat && b == rankBigInt) {
		return rankBigFloat
	}
	return max(a, b)
}

func asBigInt(v any) *big.Int {
	switch val := v.(type) {
	case *big.Int:
		return val
	case int64:
		return big.NewInt(val)
	}
	return new(big.Int)
}

// binary applies a non-short-circuit binary operator.
func binary(op Op, l, r any) (any, error) {
	switch op {
	case OpEQ:
		return equal(l, r), nil
	case OpNE:
		return !equal(l, r), nil
	case OpLT, OpGT, OpLE, OpGE:
		return compareOrdered(op, l, r)
	case OpContains:
		return contains(l, r), nil
	case OpInstanceOf:
		t, ok := r.(*host.Type)
		if !ok {
			return nil, mismatch(op, l, r)
		}
		return t.IsInstance(l), nil
	case OpAnd:
		return IsTruthy(l) && IsTruthy(r), nil
	case OpOr:
		return IsTruthy(l) || IsTruthy(r), nil
	case OpAdd:
		if isString(l) || isString(r) {
			return host.Format(l) + host.Format(r), nil
		}
		if ll, ok := l.([]any); ok {
			if rl, ok := r.([]any); ok {
				return append(append(make([]any, 0, len(ll)+len(rl)), ll...), rl...), nil
			}
		}
	case OpBitAnd, OpBitOr, OpBitXor:
		if lb, ok := l.(bool); ok {
			if rb, ok := r.(bool); ok {
				switch op {
				case OpBitAnd:
					return lb && rb, nil
				case OpBitOr:
					return lb || rb, nil
				}
				return lb != rb, nil
			}
		}
	}
	return arithmetic(op, l, r)
}

func isString(v any) bool {
	_, ok := v.(string)
	return ok
}

// mismatch is returned for operand kinds op cannot combine. Callers attach
// positions and operand types.
func mismatch(Op, any, any) error {
	return ErrTypeMismatch
}

// arithmetic applies numeric operators across the numeric tower.
func arithmetic(op Op, l, r any) (any, error) {
	ln, lr, lok := toNumeric(l)
	rn, rr, rok := toNumeric(r)
	if !lok || !rok {
		return nil, mismatch(op, l, r)
	}

	switch op {
	case OpShl, OpShr, OpUShr, OpBitAnd, OpBitOr, OpBitXor:
		return integerOp(op, ln, lr, rn, rr)
	}

	switch widen(lr, rr) {
	case rankInt:
		return intOp(op, ln.(int64), rn.(int64))
	case rankBigInt:
		return bigIntOp(op, asBigInt(ln), asBigInt(rn))
	case rankFloat:
		lf, _ := host.ToFloat64(ln)
		rf, _ := host.ToFloat64(rn)
		return floatOp(op, lf, rf)
	}
	return bigFloatOp(op, host.ToBigFloat(ln), host.ToBigFloat(rn))
}

// intOp computes int64 arithmetic, promoting to big.Int on overflow.
func intOp(op Op, a, b int64) (any, error) {
	switch op {
	case OpAdd:
		s := a + b
		if (s > a) == (b > 0) {
			return s, nil
		}
	case OpSub:
		d := a - b
		if (d < a) == (b > 0) {
			return d, nil
		}
	case OpMul:
		if a == 0 || b == 0 {
			return int64(0), nil
		}
		hi, lo := bits.Mul64(uint64(abs64(a)), uint64(abs64(b)))
		if hi == 0 && lo <= math.MaxInt64 && a != math.MinInt64 && b != math.MinInt64 {
			p := int64(lo)
			if (a < 0) != (b < 0) {
				p = -p
			}
			return p, nil
		}
	case OpDiv:
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		if a%b == 0 && !(a == math.MinInt64 && b == -1) {
			return a / b, nil
		}
		if a%b != 0 {
			return float64(a) / float64(b), nil
		}
	case OpMod:
		if b == 0 {
			return nil, ErrDivisionByZero
		}
		if b == -1 {
			return int64(0), nil
		}
		return a % b, nil
	case OpPow:
		if b < 0 {
			return math.Pow(float64(a), float64(b)), nil
		}
		return normalizeBig(new(big.Int).Exp(big.NewInt(a), big.NewInt(b), nil)), nil
	case OpLT, OpGT, OpLE, OpGE:
		return ordered(op, compareInts(a, b)), nil
	}
	return bigIntOp(op, big.NewInt(a), big.NewInt(b))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

// normalizeBig narrows a big.Int back to int64 when it fits.
func normalizeBig(v *big.Int) any {
	if v.IsInt64() {
		return v.Int64()
	}
	return v
}

func bigIntOp(op Op, a, b *big.Int) (any, error) {
	switch op {
	case OpAdd:
		return normalizeBig(new(big.Int).Add(a, b)), nil
	case OpSub:
		return normalizeBig(new(big.Int).Sub(a, b)), nil
	case OpMul:
		return normalizeBig(new(big.Int).Mul(a, b)), nil
	case OpDiv:
		if b.Sign() == 0 {
			return nil, ErrDivisionByZero
		}
		q, m := new(big.Int).QuoRem(a, b, new(big.Int))
		if m.Sign() == 0 {
			return normalizeBig(q), nil
		}
		return bigFloatOp(op, new(big.Float).SetPrec(host.BigPrecision).SetInt(a), new(big.Float).SetPrec(host.BigPrecision).SetInt(b))
	case OpMod:
		if b.Sign() == 0 {
			return nil, ErrDivisionByZero
		}
		return normalizeBig(new(big.Int).Rem(a, b)), nil
	case OpPow:
		if b.Sign() < 0 {
			af, _ := new(big.Float).SetInt(a).Float64()
			bf, _ := new(big.Float).SetInt(b).Float64()
			return math.Pow(af, bf), nil
		}
		return normalizeBig(new(big.Int).Exp(a, b, nil)), nil
	case OpLT, OpGT, OpLE, OpGE:
		return ordered(op, a.Cmp(b)), nil
	}
	return nil, mismatch(op, a, b)
}

func floatOp(op Op, a, b float64) (any, error) {
	switch op {
	case OpAdd:
		return a + b, nil
	case OpSub:
		return a - b, nil
	case OpMul:
		return a * b, nil
	case OpDiv:
		return a / b, nil
	case OpMod:
		return math.Mod(a, b), nil
	case OpPow:
		return math.Pow(a, b), nil
	case OpLT, OpGT, OpLE, OpGE:
		switch {
		case a < b:
			return ordered(op, -1), nil
		case a > b:
			return ordered(op, 1), nil
		case a == b:
			return ordered(op, 0), nil
		}
		// NaN compares false under every ordering.
		return false, nil
	}
	return nil, mismatch(op, a, b)
}

func bigFloatOp(op Op, a, b *big.Float) (any, error) {
	z := new(big.Float).SetPrec(host.BigPrecision)
	switch op {
	case OpAdd:
		return z.Add(a, b), nil
	case OpSub:
		return z.Sub(a, b), nil
	case OpMul:
		return z.Mul(a, b), nil
	case OpDiv:
		if b.Sign() == 0 {
			return nil, ErrDivisionByZero
		}
		return z.Quo(a, b), nil
	case OpMod:
		if b.Sign() == 0 {
			return nil, ErrDivisionByZero
		}
		q := new(big.Float).SetPrec(host.BigPrecision).Quo(a, b)
		qi, _ := q.Int(nil)
		qf := new(big.Float).SetPrec(host.BigPrecision).SetInt(qi)
		return z.Sub(a, qf.Mul(qf, b)), nil
	case OpPow:
		if b.IsInt() {
			n, acc := b.Int64()
			if acc == big.Exact && n >= 0 && n <= 1<<16 {
				z.SetInt64(1)
				for i := int64(0); i < n; i++ {
					z.Mul(z, a)
				}
				return z, nil
			}
		}
		af, _ := a.Float64()
		bf, _ := b.Float64()
		return z.SetFloat64(math.Pow(af, bf)), nil
	case OpLT, OpGT, OpLE, OpGE:
		return ordered(op, a.Cmp(b)), nil
	}
	return nil, mismatch(op, a, b)
}

// integerOp applies shifts and bitwise operators, which need integers.
func integerOp(op Op, a any, ar numRank, b any, br numRank) (any, error) {
	if ar >= rankFloat || br >= rankFloat {
		return nil, mismatch(op, a, b)
	}
	if ar == rankInt && br == rankInt {
		x, y := a.(int64), b.(int64)
		switch op {
		case OpBitAnd:
			return x & y, nil
		case OpBitOr:
			return x | y, nil
		case OpBitXor:
			return x ^ y, nil
		}
		if y < 0 {
			return nil, fmt.Errorf("%w: negative shift count %d", ErrTypeMismatch, y)
		}
		switch op {
		case OpShl:
			return x << uint(y), nil
		case OpShr:
			return x >> uint(y), nil
		case OpUShr:
			return int64(uint64(x) >> uint(y)), nil
		}
	}

	x, y := asBigInt(a), asBigInt(b)
	switch op {
	case OpBitAnd:
		return normalizeBig(new(big.Int).And(x, y)), nil
	case OpBitOr:
		return normalizeBig(new(big.Int).Or(x, y)), nil
	case OpBitXor:
		return normalizeBig(new(big.Int).Xor(x, y)), nil
	}
	if !y.IsInt64() || y.Sign() < 0 {
		return nil, fmt.Errorf("%w: invalid shift count %s", ErrTypeMismatch, y)
	}
	switch op {
	case OpShl:
		return normalizeBig(new(big.Int).Lsh(x, uint(y.Int64()))), nil
	case OpShr, OpUShr:
		return normalizeBig(new(big.Int).Rsh(x, uint(y.Int64()))), nil
	}
	return nil, mismatch(op, a, b)
}

// ordered turns a three-way comparison into the result of op.
func ordered(op Op, c int) bool {
	switch op {
	case OpLT:
		return c < 0
	case OpGT:
		return c > 0
	case OpLE:
		return c <= 0
	}
	return c >= 0
}

// compareOrdered applies < > <= >= to pairwise comparable operands:
// numbers with numbers and strings with strings. A numeric string
// compared with a number is parsed first.
func compareOrdered(op Op, l, r any) (any, error) {
	ls, lok := l.(string)
	rs, rok := r.(string)
	switch {
	case lok && rok:
		return ordered(op, strings.Compare(ls, rs)), nil
	case lok && host.IsNumber(r):
		n, ok := host.ParseNumber(ls)
		if !ok {
			return nil, mismatch(op, l, r)
		}
		l = n
	case rok && host.IsNumber(l):
		n, ok := host.ParseNumber(rs)
		if !ok {
			return nil, mismatch(op, l, r)
		}
		r = n
	}
	if !host.IsNumber(l) || !host.IsNumber(r) {
		return nil, mismatch(op, l, r)
	}
	return arithmetic(op, l, r)
}

// equal implements == with numeric widening, the `empty` literal, and
// numeric strings compared to numbers by value.
func equal(l, r any) bool {
	if _, ok := l.(emptyValue); ok {
		return isEmpty(r)
	}
	if _, ok := r.(emptyValue); ok {
		return isEmpty(l)
	}
	if ls, ok := l.(string); ok && host.IsNumber(r) {
		n, ok := host.ParseNumber(ls)
		return ok && host.Equal(n, r)
	}
	if rs, ok := r.(string); ok && host.IsNumber(l) {
		n, ok := host.ParseNumber(rs)
		return ok && host.Equal(l, n)
	}
	return host.Equal(l, r)
}

// contains tests string containment, list membership or map keys.
func contains(l, r any) bool {
	switch val := l.(type) {
	case nil:
		return false
	case string:
		return strings.Contains(val, host.Format(r))
	case map[string]any:
		_, ok := val[host.Format(r)]
		return ok
	}
	rv := reflect.ValueOf(l)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			if equal(rv.Index(i).Interface(), r) {
				return true
			}
		}
	case reflect.Map:
		for _, k := range rv.MapKeys() {
			if equal(k.Interface(), r) {
				return true
			}
		}
	default:
		return strings.Contains(host.Format(l), host.Format(r))
	}
	return false
}

// unary applies prefix flags in the order minus, invert, negate.
func unary(flags Flags, v any) (any, error) {
	if flags.Has(FlagMinus) {
		n, rank, ok := toNumeric(v)
		if !ok {
			return nil, ErrTypeMismatch
		}
		switch rank {
		case rankInt:
			i := n.(int64)
			if i == math.MinInt64 {
				v = new(big.Int).Neg(big.NewInt(i))
			} else {
				v = -i
			}
		case rankBigInt:
			v = normalizeBig(new(big.Int).Neg(n.(*big.Int)))
		case rankFloat:
			v = -n.(float64)
		default:
			v = new(big.Float).SetPrec(host.BigPrecision).Neg(n.(*big.Float))
		}
	}
	if flags.Has(FlagInvert) {
		n, rank, ok := toNumeric(v)
		switch {
		case ok && rank == rankInt:
			v = ^n.(int64)
		case ok && rank == rankBigInt:
			v = normalizeBig(new(big.Int).Not(n.(*big.Int)))
		default:
			return nil, ErrTypeMismatch
		}
	}
	if flags.Has(FlagNegate) {
		v = !IsTruthy(v)
	}
	return v, nil
}
