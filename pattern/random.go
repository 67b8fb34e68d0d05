package pattern

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrRandOutOfRange is the panic value (wrapped) raised when a companion
// random pattern yields a value outside [0, 1].
var ErrRandOutOfRange = errors.New("pattern: random value out of [0, 1]")

const (
	randCycles = 300
	randRange  = 1 << 29
)

// xorwise is a 32-bit xorshift mix.
func xorwise(x int32) int32 {
	a := (x << 13) ^ x
	b := (a >> 17) ^ a
	return (b << 5) ^ b
}

// timeToIntSeed stretches randCycles cycles over [0, randRange) and mixes the
// result. The rescaling is exact, so equal times always give equal seeds.
func timeToIntSeed(t Time) int32 {
	x := t.Div(T(randCycles))
	// fractional part, truncated toward zero
	whole := x.Floor()
	if x.Lt(T(0)) && !T(whole).Eq(x) {
		whole++
	}
	frac := x.Sub(T(whole))
	scaled := frac.Mul(T(randRange))
	n := scaled.Floor()
	if scaled.Lt(T(0)) && !T(n).Eq(scaled) {
		n++
	}
	return xorwise(int32(n))
}

// TimeToRand maps a time to [0, 1). It depends on nothing but t.
func TimeToRand(t Time) float64 {
	seed := timeToIntSeed(t)
	return math.Abs(float64(seed%randRange) / randRange)
}

// Rand is a continuous random signal in [0, 1).
func Rand() Pattern {
	return Signal(func(t Time) any { return TimeToRand(t) })
}

// Irand is a continuous random integer signal in [0, n).
func Irand(n int) Pattern {
	return Rand().Fmap(func(v any) any {
		f, _ := ToFloat(v)
		return math.Floor(f * float64(n))
	})
}

// ChooseWith picks from xs using values in [0, 1) from rng.
func ChooseWith(rng Pattern, xs ...any) Pattern {
	if len(xs) == 0 {
		return Silence()
	}
	n := len(xs)
	return rng.Fmap(func(v any) any {
		f, _ := ToFloat(v)
		i := int(math.Floor(f * float64(n)))
		if i < 0 {
			i = 0
		}
		if i >= n {
			i = n - 1
		}
		return xs[i]
	})
}

// Choose picks randomly from xs; continuous, so combine with Segment or use
// it as the non-structural side of an operation.
func Choose(xs ...any) Pattern { return ChooseWith(Rand(), xs...) }

// ChooseCycles picks one of xs (values or patterns) per cycle.
func ChooseCycles(xs ...any) Pattern {
	return ChooseWith(Rand().Segment(1), xs...).InnerJoin()
}

// Choice is a weighted option for WChoose.
type Choice struct {
	Value  any
	Weight float64
}

func wchooseWith(rng Pattern, choices []Choice) Pattern {
	if len(choices) == 0 {
		return Silence()
	}
	cumulative := make([]float64, len(choices))
	total := 0.0
	for i, c := range choices {
		total += c.Weight
		cumulative[i] = total
	}
	return rng.Fmap(func(v any) any {
		r, _ := ToFloat(v)
		if r < 0 || r > 1 || math.IsNaN(r) {
			panic(fmt.Errorf("%w: %v", ErrRandOutOfRange, r))
		}
		find := r * total
		i := sort.Search(len(cumulative), func(i int) bool { return cumulative[i] > find })
		if i == len(cumulative) {
			i--
		}
		return Reify(choices[i].Value)
	})
}

// WChooseWith picks with relative weights using rng, keeping the structure
// of rng. A value from rng outside [0, 1] panics with ErrRandOutOfRange.
func WChooseWith(rng Pattern, choices ...Choice) Pattern {
	return wchooseWith(rng, choices).OuterJoin()
}

// WChoose picks with relative weights.
func WChoose(choices ...Choice) Pattern { return WChooseWith(Rand(), choices...) }

// WChooseCycles picks one weighted option per cycle.
func WChooseCycles(choices ...Choice) Pattern {
	return wchooseWith(Rand().Segment(1), choices).InnerJoin()
}

// DegradeByWith drops haps whose paired value from rng is below prob.
func (p Pattern) DegradeByWith(rng Pattern, prob float64) Pattern {
	return p.AppLeft(rng.FilterValues(func(v any) bool {
		f, _ := ToFloat(v)
		return f >= prob
	}), func(a, _ any) any { return a })
}

// UndegradeByWith keeps exactly the haps DegradeByWith would drop.
func (p Pattern) UndegradeByWith(rng Pattern, prob float64) Pattern {
	return p.AppLeft(rng.FilterValues(func(v any) bool {
		f, _ := ToFloat(v)
		return f < prob
	}), func(a, _ any) any { return a })
}

// DegradeBy randomly drops haps with probability prob. prob may be a pattern.
func (p Pattern) DegradeBy(prob any) Pattern {
	return patternify(prob, func(v any) Pattern {
		f, _ := ToFloat(v)
		return p.DegradeByWith(Rand(), f)
	})
}

// UndegradeBy is the complement of DegradeBy.
func (p Pattern) UndegradeBy(prob any) Pattern {
	return patternify(prob, func(v any) Pattern {
		f, _ := ToFloat(v)
		return p.UndegradeByWith(Rand(), f)
	})
}

// Degrade drops half of the haps.
func (p Pattern) Degrade() Pattern { return p.DegradeByWith(Rand(), 0.5) }

// Undegrade keeps the half Degrade drops.
func (p Pattern) Undegrade() Pattern { return p.UndegradeByWith(Rand(), 0.5) }

// SometimesBy applies f to a random subset of haps selected with probability
// prob. Both halves read the same random values, so every hap ends up in
// exactly one of them.
func (p Pattern) SometimesBy(prob float64, f func(Pattern) Pattern) Pattern {
	return Stack(p.DegradeByWith(Rand(), prob), f(p.UndegradeByWith(Rand(), prob)))
}

// Sometimes is SometimesBy(0.5, f).
func (p Pattern) Sometimes(f func(Pattern) Pattern) Pattern { return p.SometimesBy(0.5, f) }

// Often is SometimesBy(0.75, f).
func (p Pattern) Often(f func(Pattern) Pattern) Pattern { return p.SometimesBy(0.75, f) }

// Rarely is SometimesBy(0.25, f).
func (p Pattern) Rarely(f func(Pattern) Pattern) Pattern { return p.SometimesBy(0.25, f) }

// PerlinWith is 1-D smoothed noise over the numeric values of input:
// random values at integer points interpolated with a smootherstep curve.
func PerlinWith(input Pattern) Pattern {
	return input.Fmap(func(v any) any {
		var x Time
		switch t := v.(type) {
		case Time:
			x = t
		default:
			tt, ok := ToTime(v)
			if !ok {
				return 0.0
			}
			x = tt
		}
		a := x.Floor()
		frac := x.Sub(T(a)).Float()
		ra := TimeToRand(T(a))
		rb := TimeToRand(T(a + 1))
		return ra + smootherStep(frac)*(rb-ra)
	})
}

// Perlin is smoothed noise changing once per cycle.
func Perlin() Pattern { return PerlinWith(Envelope()) }

func smootherStep(x float64) float64 {
	return 6*math.Pow(x, 5) - 15*math.Pow(x, 4) + 10*math.Pow(x, 3)
}
