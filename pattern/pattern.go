// Package pattern implements cyclic patterns of timed values.
//
// A Pattern is an immutable wrapper around a pure query function from a
// TimeSpan to the Haps active during it. Every combinator returns a new
// Pattern closing over its parents; nothing is mutated after construction,
// so a Pattern may be queried concurrently and swapped for a new definition
// at any moment.
//
// Time is exact (rational), so cycle boundaries never drift.
package pattern

import "sort"

// Query answers which haps are active over a span.
type Query func(span TimeSpan) []Hap

// Pattern is a pure function of time. The zero value is silence.
type Pattern struct {
	query  Query
	tactus Time
	steps  bool
}

// New wraps a query function.
func New(q Query) Pattern { return Pattern{query: q} }

// Query returns the haps active over span.
func (p Pattern) Query(span TimeSpan) []Hap {
	if p.query == nil {
		return nil
	}
	return p.query(span)
}

// Onsets queries span and keeps only haps whose onset lies in it, sorted by
// onset time.
func (p Pattern) Onsets(span TimeSpan) []Hap {
	haps := p.FilterOnsets().Query(span)
	sortHaps(haps)
	return haps
}

// FirstCycle is the haps of cycle 0, the usual way to inspect a pattern.
func (p Pattern) FirstCycle() []Hap { return p.Query(Arc(0, 1)) }

// Tactus returns the pattern's step count, if known.
func (p Pattern) Tactus() (Time, bool) { return p.tactus, p.steps }

// WithTactus returns p declaring the given step count.
func (p Pattern) WithTactus(t Time) Pattern {
	p.tactus = t
	p.steps = true
	return p
}

func (p Pattern) derive(q Query) Pattern {
	return Pattern{query: q, tactus: p.tactus, steps: p.steps}
}

// Silence is the empty pattern.
func Silence() Pattern { return New(func(TimeSpan) []Hap { return nil }) }

// Pure repeats v once per cycle.
func Pure(v any) Pattern {
	return New(func(span TimeSpan) []Hap {
		var haps []Hap
		for _, sub := range span.SpanCycles() {
			haps = append(haps, NewHap(sub.Begin.WholeCycle(), sub, v))
		}
		return haps
	}).WithTactus(T(1))
}

// Reify returns v when it is already a Pattern and Pure(v) otherwise.
func Reify(v any) Pattern {
	switch x := v.(type) {
	case Pattern:
		return x
	case *Pattern:
		return *x
	}
	return Pure(v)
}

// Steady is a continuous pattern with a constant value.
func Steady(v any) Pattern {
	return New(func(span TimeSpan) []Hap {
		return []Hap{{Part: span, Value: v}}
	})
}

// WithQuerySpan maps the span a query is evaluated over.
func (p Pattern) WithQuerySpan(f func(TimeSpan) TimeSpan) Pattern {
	return p.derive(func(span TimeSpan) []Hap { return p.Query(f(span)) })
}

// withQuerySpanMaybe skips the query entirely when f reports false.
func (p Pattern) withQuerySpanMaybe(f func(TimeSpan) (TimeSpan, bool)) Pattern {
	return p.derive(func(span TimeSpan) []Hap {
		s, ok := f(span)
		if !ok {
			return nil
		}
		return p.Query(s)
	})
}

// WithQueryTime maps both ends of the query span.
func (p Pattern) WithQueryTime(f func(Time) Time) Pattern {
	return p.WithQuerySpan(func(s TimeSpan) TimeSpan { return s.WithTime(f) })
}

// WithHapSpan maps the whole and part of every resulting hap.
func (p Pattern) WithHapSpan(f func(TimeSpan) TimeSpan) Pattern {
	return p.WithHaps(func(h Hap) Hap { return h.WithSpan(f) })
}

// WithHapTime maps both ends of every resulting hap span.
func (p Pattern) WithHapTime(f func(Time) Time) Pattern {
	return p.WithHapSpan(func(s TimeSpan) TimeSpan { return s.WithTime(f) })
}

// WithHaps maps f over every resulting hap.
func (p Pattern) WithHaps(f func(Hap) Hap) Pattern {
	return p.derive(func(span TimeSpan) []Hap {
		haps := p.Query(span)
		out := make([]Hap, len(haps))
		for i, h := range haps {
			out[i] = f(h)
		}
		return out
	})
}

// Fmap maps f over every value.
func (p Pattern) Fmap(f func(any) any) Pattern {
	return p.WithHaps(func(h Hap) Hap { return h.WithValue(f) })
}

// FilterHaps keeps haps for which keep returns true.
func (p Pattern) FilterHaps(keep func(Hap) bool) Pattern {
	return p.derive(func(span TimeSpan) []Hap {
		var out []Hap
		for _, h := range p.Query(span) {
			if keep(h) {
				out = append(out, h)
			}
		}
		return out
	})
}

// FilterValues keeps haps whose value satisfies keep.
func (p Pattern) FilterValues(keep func(any) bool) Pattern {
	return p.FilterHaps(func(h Hap) bool { return keep(h.Value) })
}

// FilterOnsets keeps only haps that start within the queried span.
func (p Pattern) FilterOnsets() Pattern {
	return p.FilterHaps(Hap.HasOnset)
}

// DiscreteOnly drops continuous haps.
func (p Pattern) DiscreteOnly() Pattern {
	return p.FilterHaps(Hap.IsDiscrete)
}

// SplitQueries splits every query at cycle boundaries before evaluating it,
// so the wrapped query never sees a span crossing a cycle.
func (p Pattern) SplitQueries() Pattern {
	return p.derive(func(span TimeSpan) []Hap {
		var out []Hap
		for _, sub := range span.SpanCycles() {
			out = append(out, p.Query(sub)...)
		}
		return out
	})
}

func sortHaps(haps []Hap) {
	sort.SliceStable(haps, func(i, j int) bool {
		return haps[i].WholeOrPartBegin().Lt(haps[j].WholeOrPartBegin())
	})
}
