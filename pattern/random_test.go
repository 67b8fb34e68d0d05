package pattern

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBjorklund(t *testing.T) {
	cases := []struct {
		k, n int
		want string
	}{
		{3, 8, "x..x..x."},
		{5, 8, "x.xx.xx."},
		{2, 5, "x.x.."},
		{4, 4, "xxxx"},
		{0, 4, "...."},
		{10, 8, "x...x..."},
		{-3, 8, "x..x..x."},
		{3, -8, "x..x..x."},
		{3, 0, ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, bits(Bjorklund(tc.k, tc.n)), "bjorklund(%d,%d)", tc.k, tc.n)
	}
}

func TestBjorklundCounts(t *testing.T) {
	for n := 1; n <= 16; n++ {
		for k := 0; k <= n; k++ {
			got := Bjorklund(k, n)
			require.Len(t, got, n)
			ones := 0
			for _, b := range got {
				if b {
					ones++
				}
			}
			assert.Equal(t, k, ones, "bjorklund(%d,%d)", k, n)
		}
	}
}

func TestRotateLeft(t *testing.T) {
	assert.Equal(t, "..x..x.x", bits(rotateLeft(Bjorklund(3, 8), 1)))
	assert.Equal(t, "x.x..x..", bits(rotateLeft(Bjorklund(3, 8), -2)))
	assert.Equal(t, "x..x..x.", bits(rotateLeft(Bjorklund(3, 8), 8)))
}

func bits(bs []bool) string {
	out := make([]byte, len(bs))
	for i, b := range bs {
		out[i] = '.'
		if b {
			out[i] = 'x'
		}
	}
	return string(out)
}

func TestEuclid(t *testing.T) {
	p := Pure("x").Euclid(3, 8)
	assert.Equal(t, []string{"0-1/8:x", "3/8-1/2:x", "3/4-7/8:x"}, onsets(p, Arc(0, 1)))

	rot := Pure("x").EuclidRot(3, 8, 2)
	assert.Equal(t, []string{"1/8-1/4:x", "1/2-5/8:x", "3/4-7/8:x"}, onsets(rot, Arc(0, 1)))

	inv := Pure("x").EuclidInv(3, 8, 0)
	assert.Len(t, onsets(inv, Arc(0, 1)), 5)

	assert.Empty(t, Pure("x").Euclid(0, 8).Query(Arc(0, 1)))
	assert.Empty(t, Pure("x").Euclid(3, 0).Query(Arc(0, 1)))

	// patterned pulse count
	alt := Pure("x").Euclid(Slowcat(3, 5), 8)
	assert.Len(t, onsets(alt, Arc(0, 1)), 3)
	assert.Len(t, onsets(alt, Arc(1, 2)), 5)
}

func TestTimeToRandIsPure(t *testing.T) {
	assert.Equal(t, TimeToRand(R(1, 3)), TimeToRand(R(2, 6)))
	assert.Equal(t, 0.0, TimeToRand(T(0)))
	for i := int64(-50); i < 200; i++ {
		v := TimeToRand(R(i, 7))
		assert.GreaterOrEqual(t, v, 0.0)
		assert.Less(t, v, 1.0)
	}
	assert.NotEqual(t, TimeToRand(R(1, 8)), TimeToRand(R(1, 4)))
}

func TestRandSignal(t *testing.T) {
	haps := Rand().Query(Arc(0, 1))
	require.Len(t, haps, 1)
	assert.Equal(t, TimeToRand(R(1, 2)), haps[0].Value)

	seg := Rand().Segment(4)
	first := values(seg, Arc(0, 1))
	again := values(seg, Arc(0, 1))
	assert.Equal(t, first, again)
}

func TestDegradePartition(t *testing.T) {
	p := Run(16)
	kept := values(p.DegradeBy(0.3), Arc(0, 1))
	dropped := values(p.UndegradeBy(0.3), Arc(0, 1))
	assert.Len(t, append(append([]any{}, kept...), dropped...), 16)
	for _, v := range kept {
		assert.NotContains(t, dropped, v)
	}
	assert.Len(t, values(p.DegradeBy(0), Arc(0, 1)), 16)
	assert.Empty(t, values(p.DegradeBy(1), Arc(0, 1)))
}

func TestSometimesBy(t *testing.T) {
	p := Run(16)
	mark := func(p Pattern) Pattern {
		return p.Fmap(func(v any) any { return ValueMap{"marked": v} })
	}
	got := values(p.SometimesBy(0.5, mark), Arc(0, 1))
	require.Len(t, got, 16)
	marked := 0
	for _, v := range got {
		if _, ok := v.(ValueMap); ok {
			marked++
		}
	}
	assert.Equal(t, len(values(p.UndegradeBy(0.5), Arc(0, 1))), marked)
	assert.Len(t, values(p.Often(mark), Arc(0, 2)), 32)
}

func TestChoose(t *testing.T) {
	got := values(Choose("a", "b", "c").Segment(8), Arc(0, 4))
	require.Len(t, got, 32)
	for _, v := range got {
		assert.Contains(t, []any{"a", "b", "c"}, v)
	}
	cycles := ChooseCycles(Fastcat("a", "b"), "c")
	for c := int64(0); c < 8; c++ {
		vs := values(cycles, Arc(c, c+1))
		if len(vs) == 1 {
			assert.Equal(t, []any{"c"}, vs)
		} else {
			assert.Equal(t, []any{"a", "b"}, vs)
		}
	}
	assert.Empty(t, Choose().Query(Arc(0, 1)))
}

func TestWChoose(t *testing.T) {
	p := WChooseWith(Steady(0.1), Choice{Value: "a", Weight: 1}, Choice{Value: "b", Weight: 1})
	haps := p.Query(Arc(0, 1))
	require.Len(t, haps, 1)
	assert.Equal(t, "a", haps[0].Value)

	p = WChooseWith(Steady(0.9), Choice{Value: "a", Weight: 1}, Choice{Value: "b", Weight: 1})
	assert.Equal(t, "b", p.Query(Arc(0, 1))[0].Value)

	// zero weight is never picked
	never := WChooseCycles(Choice{Value: "a", Weight: 0}, Choice{Value: "b", Weight: 1})
	for c := int64(0); c < 16; c++ {
		assert.Equal(t, []any{"b"}, values(never, Arc(c, c+1)))
	}
}

func TestWChooseOutOfRangePanics(t *testing.T) {
	p := WChooseWith(Steady(1.5), Choice{Value: "a", Weight: 1})
	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok)
		assert.True(t, errors.Is(err, ErrRandOutOfRange))
	}()
	p.Query(Arc(0, 1))
}

func TestPerlin(t *testing.T) {
	at := func(x Time) float64 {
		return Perlin().Query(Span(x, x))[0].Value.(float64)
	}
	// integer points hit the underlying random values
	assert.InDelta(t, TimeToRand(T(2)), at(T(2)), 1e-12)
	v := at(R(5, 2))
	lo, hi := TimeToRand(T(2)), TimeToRand(T(3))
	if lo > hi {
		lo, hi = hi, lo
	}
	assert.GreaterOrEqual(t, v, lo)
	assert.LessOrEqual(t, v, hi)
	assert.InDelta(t, 0.5, smootherStep(0.5), 1e-12)
}

func TestDegradeUndegradePartition(t *testing.T) {
	p := Pure("hh").Fast(16)
	kept := len(p.Degrade().FirstCycle())
	dropped := len(p.Undegrade().FirstCycle())
	assert.Equal(t, 16, kept+dropped)
	assert.NotZero(t, kept)
	assert.NotZero(t, dropped)
}
