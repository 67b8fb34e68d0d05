package pattern

import (
	"fmt"
	"math"
	"math/big"
)

// Time is an exact rational point in cycle time. The zero value is 0.
//
// Every constructor and operation returns a normalized value (gcd 1, positive
// denominator), so equal times built through this API have identical fields.
type Time struct {
	n, d int64
}

// maxDenominator bounds FromFloat approximations.
const maxDenominator = 1 << 20

// T returns the integer time n.
func T(n int64) Time { return Time{n: n, d: 1} }

// R returns the time n/d. It panics on a zero denominator.
func R(n, d int64) Time {
	if d == 0 {
		panic("pattern: zero denominator")
	}
	return normalize(n, d)
}

// FromFloat returns the closest fraction to f with a bounded denominator.
func FromFloat(f float64) Time {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Time{d: 1}
	}
	if math.Abs(f) >= 1<<62 {
		return T(int64(math.Copysign(1<<62, f)))
	}
	if f == math.Trunc(f) {
		return T(int64(f))
	}
	// continued fraction expansion
	neg := f < 0
	if neg {
		f = -f
	}
	var (
		h0, h1 int64 = 0, 1
		k0, k1 int64 = 1, 0
		x            = f
	)
	for i := 0; i < 64; i++ {
		a := int64(math.Floor(x))
		h2 := a*h1 + h0
		k2 := a*k1 + k0
		if k2 > maxDenominator {
			break
		}
		h0, h1 = h1, h2
		k0, k1 = k1, k2
		frac := x - float64(a)
		if frac < 1e-12 {
			break
		}
		x = 1 / frac
	}
	if k1 == 0 {
		return Time{d: 1}
	}
	if neg {
		h1 = -h1
	}
	return normalize(h1, k1)
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}
	if b < 0 {
		b = -b
	}
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func normalize(n, d int64) Time {
	if d < 0 {
		n, d = -n, -d
	}
	if n == 0 {
		return Time{d: 1}
	}
	g := gcd(n, d)
	return Time{n: n / g, d: d / g}
}

// fromBig converts back from big.Rat when an operation would overflow int64.
func fromBig(r *big.Rat) Time {
	if r.Num().IsInt64() && r.Denom().IsInt64() {
		return normalize(r.Num().Int64(), r.Denom().Int64())
	}
	f, _ := r.Float64()
	return FromFloat(f)
}

func (t Time) big() *big.Rat { return big.NewRat(t.n, t.den()) }

func (t Time) den() int64 {
	if t.d == 0 {
		return 1
	}
	return t.d
}

// Num returns the normalized numerator.
func (t Time) Num() int64 { return t.n }

// Den returns the normalized denominator.
func (t Time) Den() int64 { return t.den() }

// Add returns t+o.
func (t Time) Add(o Time) Time {
	td, od := t.den(), o.den()
	if td == od {
		if s, ok := addOK(t.n, o.n); ok {
			return normalize(s, td)
		}
	}
	a, ok1 := mulOK(t.n, od)
	b, ok2 := mulOK(o.n, td)
	d, ok3 := mulOK(td, od)
	if ok1 && ok2 && ok3 {
		if s, ok := addOK(a, b); ok {
			return normalize(s, d)
		}
	}
	return fromBig(new(big.Rat).Add(t.big(), o.big()))
}

// Sub returns t-o.
func (t Time) Sub(o Time) Time { return t.Add(o.Neg()) }

// Mul returns t*o.
func (t Time) Mul(o Time) Time {
	g1 := gcd(t.n, o.den())
	g2 := gcd(o.n, t.den())
	if g1 == 0 {
		g1 = 1
	}
	if g2 == 0 {
		g2 = 1
	}
	n, ok1 := mulOK(t.n/g1, o.n/g2)
	d, ok2 := mulOK(t.den()/g2, o.den()/g1)
	if ok1 && ok2 {
		return normalize(n, d)
	}
	return fromBig(new(big.Rat).Mul(t.big(), o.big()))
}

// Div returns t/o. It panics when o is zero.
func (t Time) Div(o Time) Time {
	if o.n == 0 {
		panic("pattern: division by zero time")
	}
	return t.Mul(Time{n: o.den(), d: o.n}.norm())
}

func (t Time) norm() Time { return normalize(t.n, t.den()) }

// Neg returns -t.
func (t Time) Neg() Time { return Time{n: -t.n, d: t.den()} }

// Cmp returns -1, 0 or +1.
func (t Time) Cmp(o Time) int {
	a, ok1 := mulOK(t.n, o.den())
	b, ok2 := mulOK(o.n, t.den())
	if !ok1 || !ok2 {
		return t.big().Cmp(o.big())
	}
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func (t Time) Eq(o Time) bool  { return t.Cmp(o) == 0 }
func (t Time) Lt(o Time) bool  { return t.Cmp(o) < 0 }
func (t Time) Lte(o Time) bool { return t.Cmp(o) <= 0 }
func (t Time) Gt(o Time) bool  { return t.Cmp(o) > 0 }
func (t Time) Gte(o Time) bool { return t.Cmp(o) >= 0 }

// IsZero reports whether t == 0.
func (t Time) IsZero() bool { return t.n == 0 }

// Min returns the smaller of t and o.
func (t Time) Min(o Time) Time {
	if o.Lt(t) {
		return o
	}
	return t
}

// Max returns the larger of t and o.
func (t Time) Max(o Time) Time {
	if o.Gt(t) {
		return o
	}
	return t
}

// Floor returns the largest integer <= t.
func (t Time) Floor() int64 {
	d := t.den()
	q := t.n / d
	if t.n%d != 0 && t.n < 0 {
		q--
	}
	return q
}

// Ceil returns the smallest integer >= t.
func (t Time) Ceil() int64 {
	f := t.Floor()
	if T(f).Eq(t) {
		return f
	}
	return f + 1
}

// Sam is the start of the cycle containing t.
func (t Time) Sam() Time { return T(t.Floor()) }

// NextSam is the start of the following cycle.
func (t Time) NextSam() Time { return T(t.Floor() + 1) }

// CyclePos is the position of t within its cycle, in [0, 1).
func (t Time) CyclePos() Time { return t.Sub(t.Sam()) }

// WholeCycle returns the cycle containing t.
func (t Time) WholeCycle() TimeSpan { return TimeSpan{Begin: t.Sam(), End: t.NextSam()} }

// Float returns t as a float64.
func (t Time) Float() float64 { return float64(t.n) / float64(t.den()) }

func (t Time) String() string {
	if t.den() == 1 {
		return fmt.Sprintf("%d", t.n)
	}
	return fmt.Sprintf("%d/%d", t.n, t.den())
}

func mulOK(a, b int64) (int64, bool) {
	if a == 0 || b == 0 {
		return 0, true
	}
	c := a * b
	if c/b != a || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64) {
		return 0, false
	}
	return c, true
}

func addOK(a, b int64) (int64, bool) {
	c := a + b
	if (c > a) != (b > 0) {
		return 0, false
	}
	return c, true
}
