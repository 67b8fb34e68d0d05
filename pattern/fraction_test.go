package pattern

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeArithmetic(t *testing.T) {
	assert.Equal(t, "1/2", R(2, 4).String())
	assert.Equal(t, "1/2", R(1, 3).Add(R(1, 6)).String())
	assert.Equal(t, "-1/2", R(1, 2).Neg().String())
	assert.Equal(t, "3/4", R(1, 2).Mul(R(3, 2)).String())
	assert.Equal(t, "2", R(1, 2).Div(R(1, 4)).String())
	assert.Equal(t, "-1/3", R(1, -3).String())
	assert.True(t, R(1, 3).Lt(R(1, 2)))
	assert.True(t, R(2, 4).Eq(R(1, 2)))
	assert.True(t, Time{}.Eq(T(0)))
}

func TestTimeFloorCeil(t *testing.T) {
	cases := []struct {
		in          Time
		floor, ceil int64
	}{
		{R(1, 2), 0, 1},
		{R(-1, 2), -1, 0},
		{T(3), 3, 3},
		{R(7, 3), 2, 3},
		{R(-7, 3), -3, -2},
	}
	for _, tc := range cases {
		t.Run(tc.in.String(), func(t *testing.T) {
			assert.Equal(t, tc.floor, tc.in.Floor())
			assert.Equal(t, tc.ceil, tc.in.Ceil())
		})
	}
	assert.Equal(t, "1/3", R(7, 3).CyclePos().String())
	assert.Equal(t, "2/3", R(-7, 3).CyclePos().String())
}

func TestFromFloat(t *testing.T) {
	assert.Equal(t, "1/4", FromFloat(0.25).String())
	assert.Equal(t, "1/3", FromFloat(1.0/3).String())
	assert.Equal(t, "-3/2", FromFloat(-1.5).String())
	assert.Equal(t, "0", FromFloat(0).String())
}

func TestTimeOverflowFallsBackToBig(t *testing.T) {
	// the common denominator overflows int64 but the reduced sum does not
	sum := R(1, 1<<40).Add(R(1, 3<<40))
	assert.True(t, sum.Eq(R(1, 3<<38)))
	assert.True(t, R(3<<40, 1<<41).Mul(R(1<<41, 3<<40)).Eq(T(1)))
}

func TestZeroDenominatorPanics(t *testing.T) {
	assert.Panics(t, func() { R(1, 0) })
}

func TestSpanCycles(t *testing.T) {
	spans := Span(R(1, 2), R(5, 2)).SpanCycles()
	got := make([]string, len(spans))
	for i, s := range spans {
		got[i] = s.String()
	}
	assert.Equal(t, []string{"1/2 → 1", "1 → 2", "2 → 5/2"}, got)

	zero := Span(T(1), T(1)).SpanCycles()
	assert.Len(t, zero, 1)

	whole := Arc(0, 1).SpanCycles()
	assert.Len(t, whole, 1)
}

func TestIntersection(t *testing.T) {
	s, ok := Arc(0, 2).Intersection(Span(R(1, 2), T(3)))
	assert.True(t, ok)
	assert.Equal(t, "1/2 → 2", s.String())

	_, ok = Arc(0, 1).Intersection(Arc(2, 3))
	assert.False(t, ok)

	// touching the trailing edge does not count
	_, ok = Arc(0, 1).Intersection(Span(T(1), T(1)))
	assert.False(t, ok)
	_, ok = Span(T(1), T(1)).Intersection(Arc(0, 1))
	assert.False(t, ok)

	// a zero-width span at the leading edge does
	s, ok = Arc(0, 1).Intersection(Span(T(0), T(0)))
	assert.True(t, ok)
	assert.True(t, s.Duration().IsZero())
}

func TestHapOnset(t *testing.T) {
	h := NewHap(Arc(0, 1), Span(T(0), R(1, 2)), "a")
	assert.True(t, h.HasOnset())
	tail := NewHap(Arc(0, 1), Span(R(1, 2), T(1)), "a")
	assert.False(t, tail.HasOnset())
	signal := Hap{Part: Arc(0, 1), Value: 0.5}
	assert.False(t, signal.HasOnset())
	assert.False(t, signal.IsDiscrete())
}
