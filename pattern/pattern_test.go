package pattern

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// onsets renders the onsets of p over span as "begin-end:value".
func onsets(p Pattern, span TimeSpan) []string {
	var out []string
	for _, h := range p.Onsets(span) {
		out = append(out, fmt.Sprintf("%s-%s:%v", h.Whole.Begin, h.Whole.End, h.Value))
	}
	return out
}

func values(p Pattern, span TimeSpan) []any {
	var out []any
	for _, h := range p.Onsets(span) {
		out = append(out, h.Value)
	}
	return out
}

func TestPureOncePerCycle(t *testing.T) {
	haps := Pure("a").Query(Arc(0, 2))
	require.Len(t, haps, 2)
	assert.Equal(t, "0 → 1", haps[0].Whole.String())
	assert.Equal(t, "1 → 2", haps[1].Whole.String())

	frag := Pure("a").Query(Span(R(1, 2), R(3, 2)))
	require.Len(t, frag, 2)
	assert.False(t, frag[0].HasOnset())
	assert.True(t, frag[1].HasOnset())
}

func TestZeroValueIsSilence(t *testing.T) {
	var p Pattern
	assert.Empty(t, p.Query(Arc(0, 4)))
	assert.Empty(t, Silence().Query(Arc(0, 4)))
}

func TestFastcat(t *testing.T) {
	assert.Equal(t, []string{"0-1/2:a", "1/2-1:b"}, onsets(Fastcat("a", "b"), Arc(0, 1)))
	assert.Equal(t,
		[]string{"0-1/3:a", "1/3-2/3:b", "2/3-1:c"},
		onsets(Sequence("a", "b", "c"), Arc(0, 1)))
	tactus, ok := Fastcat("a", "b", "c").Tactus()
	assert.True(t, ok)
	assert.True(t, tactus.Eq(T(3)))
}

func TestStack(t *testing.T) {
	p := Stack(Fastcat("a", "b"), "c")
	assert.ElementsMatch(t, []any{"a", "b", "c"}, values(p, Arc(0, 1)))
	tactus, ok := p.Tactus()
	assert.True(t, ok)
	assert.True(t, tactus.Eq(T(2)))
}

func TestSlowcat(t *testing.T) {
	p := Slowcat("a", "b", "c")
	for cycle, want := range []string{"a", "b", "c", "a", "b"} {
		assert.Equal(t, []any{want}, values(p, Arc(int64(cycle), int64(cycle)+1)), "cycle %d", cycle)
	}

	// each member keeps its own cycle count
	inner := Slowcat(Slowcat("x", "y"), "z")
	assert.Equal(t, []any{"x"}, values(inner, Arc(0, 1)))
	assert.Equal(t, []any{"z"}, values(inner, Arc(1, 2)))
	assert.Equal(t, []any{"y"}, values(inner, Arc(2, 3)))
}

func TestQueryIsPeriodic(t *testing.T) {
	p := Stack(Fastcat("a", "b", "c").Every(3, Pattern.Rev), Timecat(
		Weighted{Weight: T(1), Value: "x"},
		Weighted{Weight: T(2), Value: "y"},
	))
	for _, c := range []int64{0, 1, 2, 3, 7} {
		first := p.Query(Arc(c, c+1))
		again := p.Query(Arc(c, c+1))
		assert.Equal(t, len(first), len(again))
		for i := range first {
			assert.True(t, first[i].SpanEqual(again[i]))
			assert.Equal(t, first[i].Value, again[i].Value)
		}
	}
	// a one-cycle-periodic pattern repeats exactly
	q := Fastcat("a", Fastcat("b", "c"))
	shifted := q.Query(Arc(5, 6))
	base := q.Query(Arc(0, 1))
	require.Equal(t, len(base), len(shifted))
	for i := range base {
		assert.True(t, base[i].Part.Begin.Add(T(5)).Eq(shifted[i].Part.Begin))
	}
}

func TestFastSlowRoundTrip(t *testing.T) {
	p := Fastcat("a", "b", Slowcat("c", "d"))
	for _, f := range []int64{2, 3} {
		assert.Equal(t,
			onsets(p, Arc(0, 4)),
			onsets(p.Fast(f).Slow(f), Arc(0, 4)))
	}
	assert.Equal(t, []string{"0-1/4:a", "1/4-1/2:b", "1/2-3/4:a", "3/4-1:b"},
		onsets(Fastcat("a", "b").Fast(2), Arc(0, 1)))
	assert.Equal(t, []string{"0-1:a", "1-2:b"}, onsets(Fastcat("a", "b").Slow(2), Arc(0, 2)))
	assert.Empty(t, Pure("a").Fast(0).Query(Arc(0, 1)))
}

func TestPatternedFast(t *testing.T) {
	p := Pure("a").Fast(Fastcat(1, 2))
	assert.Equal(t, []string{"0-1:a", "1/2-1:a"}, onsets(p, Arc(0, 1)))
	assert.Len(t, p.Query(Arc(0, 1)), 2)
}

func TestEarlyLate(t *testing.T) {
	assert.Equal(t, []string{"1/4-5/4:a"}, onsets(Pure("a").Late(R(1, 4)), Span(R(1, 4), R(5, 4))))
	assert.Equal(t, []string{"0-1/2:b", "1/2-1:a"}, onsets(Fastcat("a", "b").Early(0.5), Arc(0, 1)))
}

func TestRev(t *testing.T) {
	assert.Equal(t, []any{"c", "b", "a"}, values(Fastcat("a", "b", "c").Rev(), Arc(0, 1)))
	assert.Equal(t,
		[]string{"0-1/4:b", "1/4-1:a"},
		onsets(Timecat(Weighted{T(3), "a"}, Weighted{T(1), "b"}).Rev(), Arc(0, 1)))
}

func TestCompress(t *testing.T) {
	assert.Equal(t, []string{"1/4-3/4:a"}, onsets(Pure("a").Compress(R(1, 4), R(3, 4)), Arc(0, 1)))
	assert.Equal(t, []string{"1/4-3/4:a", "5/4-7/4:a"}, onsets(Pure("a").Compress(R(1, 4), R(3, 4)), Arc(0, 2)))
	assert.Empty(t, Pure("a").Compress(R(1, 2), R(1, 2)).Query(Arc(0, 1)))
	assert.Empty(t, Pure("a").Compress(R(3, 4), R(1, 4)).Query(Arc(0, 1)))
	assert.Empty(t, Pure("a").Compress(R(-1, 4), R(1, 4)).Query(Arc(0, 1)))
}

func TestFastGap(t *testing.T) {
	assert.Equal(t, []string{"0-1/4:a", "1/4-1/2:b"}, onsets(Fastcat("a", "b").FastGap(2), Arc(0, 1)))
}

func TestTimecat(t *testing.T) {
	p := Timecat(Weighted{T(1), "a"}, Weighted{T(3), "b"})
	assert.Equal(t, []string{"0-1/4:a", "1/4-1:b"}, onsets(p, Arc(0, 1)))
	tactus, _ := p.Tactus()
	assert.True(t, tactus.Eq(T(4)))
}

func TestPolymeter(t *testing.T) {
	p := Polymeter(T(2), Fastcat("a", "b", "c"), Fastcat("d", "e"))
	assert.ElementsMatch(t, []any{"a", "b", "d", "e"}, values(p, Arc(0, 1)))
	assert.ElementsMatch(t, []any{"c", "a", "d", "e"}, values(p, Arc(1, 2)))
}

func TestRun(t *testing.T) {
	assert.Equal(t, []any{0.0, 1.0, 2.0, 3.0}, values(Run(4), Arc(0, 1)))
	assert.Empty(t, Run(0).Query(Arc(0, 1)))
}

func TestEvery(t *testing.T) {
	p := Pure("a").Every(2, func(p Pattern) Pattern { return p.Fast(2) })
	assert.Len(t, values(p, Arc(0, 1)), 2)
	assert.Len(t, values(p, Arc(1, 2)), 1)
	assert.Len(t, values(p, Arc(2, 3)), 2)

	last := Pure("a").LastOf(3, func(p Pattern) Pattern { return p.Fast(3) })
	assert.Len(t, values(last, Arc(0, 1)), 1)
	assert.Len(t, values(last, Arc(2, 3)), 3)
}

func TestEveryKeepsCycleOfSource(t *testing.T) {
	p := Slowcat("a", "b")
	id := func(p Pattern) Pattern { return p }
	for c := int64(0); c < 4; c++ {
		want := values(p, Arc(c, c+1))
		assert.Equal(t, want, values(p.Every(2, id), Arc(c, c+1)), "every cycle %d", c)
		assert.Equal(t, want, values(p.LastOf(2, id), Arc(c, c+1)), "lastOf cycle %d", c)
	}

	fast := p.Every(2, func(p Pattern) Pattern { return p.Fast(2) })
	assert.Equal(t, []any{"a", "b"}, values(fast, Arc(0, 1)))
	assert.Equal(t, []any{"b"}, values(fast, Arc(1, 2)))
	assert.Equal(t, []any{"a", "b"}, values(fast, Arc(2, 3)))
	assert.Equal(t, []any{"b"}, values(fast, Arc(3, 4)))
}

func TestIterPalindrome(t *testing.T) {
	p := Fastcat("a", "b", "c", "d")
	assert.Equal(t, []any{"b", "c", "d", "a"}, values(p.Iter(4), Arc(1, 2)))
	q := Fastcat("a", "b", "c").Palindrome()
	assert.Equal(t, []any{"a", "b", "c"}, values(q, Arc(0, 1)))
	assert.Equal(t, []any{"c", "b", "a"}, values(q, Arc(1, 2)))
}

func TestPly(t *testing.T) {
	assert.Equal(t,
		[]string{"0-1/4:a", "1/4-1/2:a", "1/2-3/4:b", "3/4-1:b"},
		onsets(Fastcat("a", "b").Ply(2), Arc(0, 1)))
}

func TestSqueezeJoin(t *testing.T) {
	p := Fastcat("a", "b").Fmap(func(v any) any { return Fastcat(v, "z") }).SqueezeJoin()
	assert.Equal(t,
		[]string{"0-1/4:a", "1/4-1/2:z", "1/2-3/4:b", "3/4-1:z"},
		onsets(p, Arc(0, 1)))
}

func TestJoins(t *testing.T) {
	outer := Fastcat(Fastcat("a", "b", "c"), "d").Slow(1)
	// inner join keeps the inner wholes
	inner := Pure(Fastcat("x", "y")).InnerJoin()
	assert.Equal(t, []string{"0-1/2:x", "1/2-1:y"}, onsets(inner, Arc(0, 1)))
	// outer join keeps the outer wholes and fires on outer onsets
	out := Fastcat("p", "q").Fmap(func(v any) any { return Fastcat(v, "z") }).OuterJoin()
	assert.Equal(t, []string{"0-1/2:p", "1/2-1:z"}, onsets(out, Arc(0, 1)))
	assert.Len(t, outer.Join().Query(Arc(0, 1)), 4)
}

func TestOff(t *testing.T) {
	p := Pure("a").Off(0.25, func(p Pattern) Pattern { return p.Fmap(func(any) any { return "b" }) })
	assert.Equal(t, []string{"0-1:a", "1/4-5/4:b"}, onsets(p, Arc(0, 1)))
	assert.Len(t, p.Query(Arc(0, 1)), 3)
}

func TestArithmetic(t *testing.T) {
	assert.Equal(t, []any{11.0, 12.0}, values(Fastcat(1.0, 2.0).Add(10.0), Arc(0, 1)))
	assert.Equal(t, []any{2.0, 4.0}, values(Fastcat(1.0, 2.0).Mul(2), Arc(0, 1)))
	assert.Equal(t, []any{0.0}, values(Pure(1.0).Div(0), Arc(0, 1)))

	// right structure
	both := Pure(1.0).Op(StructRight, Fastcat(1.0, 2.0), func(a, b float64) float64 { return a + b })
	assert.Equal(t, []any{2.0, 3.0}, values(both, Arc(0, 1)))

	// both: wholes intersect
	mixed := Fastcat(1.0, 2.0).Op(StructBoth, Fastcat(10.0, 20.0, 30.0), func(a, b float64) float64 { return a + b })
	assert.Equal(t, []string{"0-1/3:11", "1/3-1/2:21", "1/2-2/3:22", "2/3-1:32"}, onsets(mixed, Arc(0, 1)))
}

func TestCombine(t *testing.T) {
	left := Pure(ValueMap{"s": "bd", "n": 1.0}).CombineLeft(Fastcat(ValueMap{"n": 2.0}, ValueMap{"n": 3.0}))
	haps := left.Query(Arc(0, 1))
	require.Len(t, haps, 2)
	assert.True(t, haps[0].HasOnset())
	assert.False(t, haps[1].HasOnset())
	assert.Equal(t, ValueMap{"s": "bd", "n": 2.0}, haps[0].Value)
	assert.Equal(t, ValueMap{"s": "bd", "n": 3.0}, haps[1].Value)

	right := Pure(ValueMap{"s": "bd", "n": 1.0}).CombineRight(Fastcat(ValueMap{"n": 2.0}, ValueMap{"gain": 0.5}))
	assert.Equal(t,
		[]any{ValueMap{"s": "bd", "n": 1.0}, ValueMap{"s": "bd", "n": 1.0, "gain": 0.5}},
		values(right, Arc(0, 1)))
}

func TestStructAndMask(t *testing.T) {
	p := Pure("a").Struct(Fastcat(true, false, true))
	assert.Equal(t, []string{"0-1/3:a", "2/3-1:a"}, onsets(p, Arc(0, 1)))
	m := Fastcat("a", "b").Mask(Fastcat(0, 1))
	assert.Equal(t, []string{"1/2-1:b"}, onsets(m, Arc(0, 1)))
}

func TestSignals(t *testing.T) {
	haps := Saw().Query(Span(T(0), R(1, 2)))
	require.Len(t, haps, 1)
	assert.Nil(t, haps[0].Whole)
	assert.InDelta(t, 0.25, haps[0].Value, 1e-9)

	seg := Saw().Segment(4)
	got := values(seg, Arc(0, 1))
	require.Len(t, got, 4)
	for i, want := range []float64{0.125, 0.375, 0.625, 0.875} {
		assert.InDelta(t, want, got[i], 1e-9)
	}
	assert.Equal(t, []any{0.0, 1.0}, values(Square().Segment(2), Arc(0, 1)))
	assert.InDelta(t, 1.0, Tri().Query(Span(R(1, 4), R(3, 4)))[0].Value, 1e-9)
	assert.InDelta(t, 0.5, Sine().Query(Arc(0, 1))[0].Value, 1e-9)
}

func TestRange(t *testing.T) {
	got := values(Fastcat(0.0, 0.5, 1.0).Range(10, 20), Arc(0, 1))
	assert.Equal(t, []any{10.0, 15.0, 20.0}, got)
}

func TestResolve(t *testing.T) {
	assert.Equal(t, 0.5, Resolve(Rest{Duration: 0.5}))
	assert.Equal(t, ValueMap{"s": "bd", "legato": 2.0}, Resolve(ValueMap{"s": "bd", "legato": Rest{Duration: 2}}))
	assert.Equal(t, "x", Resolve("x"))
}
