package pattern

// Stack plays all patterns at once.
func Stack(pats ...any) Pattern {
	ps := reifyAll(pats)
	out := New(func(span TimeSpan) []Hap {
		var haps []Hap
		for _, p := range ps {
			haps = append(haps, p.Query(span)...)
		}
		return haps
	})
	if t, ok := lcmTactus(ps); ok {
		out = out.WithTactus(t)
	}
	return out
}

// Slowcat plays one pattern per cycle, round robin. Cycle c plays pattern
// c mod len(pats), shifted so that its own cycles are not skipped: with three
// patterns, cycle 3 plays the second cycle of the first pattern.
func Slowcat(pats ...any) Pattern {
	ps := reifyAll(pats)
	if len(ps) == 0 {
		return Silence()
	}
	n := int64(len(ps))
	out := New(func(span TimeSpan) []Hap {
		cyc := span.Begin.Floor()
		idx := ((cyc % n) + n) % n
		// offset between the outer cycle and the chosen pattern's own cycle
		offset := T(cyc - span.Begin.Div(T(n)).Floor())
		p := ps[idx]
		haps := p.Query(span.WithTime(func(t Time) Time { return t.Sub(offset) }))
		shifted := make([]Hap, len(haps))
		for i, h := range haps {
			shifted[i] = h.WithSpan(func(s TimeSpan) TimeSpan {
				return s.WithTime(func(t Time) Time { return t.Add(offset) })
			})
		}
		return shifted
	}).SplitQueries()
	if t, ok := lcmTactus(ps); ok {
		out = out.WithTactus(t)
	}
	return out
}

// slowcatPrime picks pats[cycle mod n] each cycle and queries it at the
// real cycle, so patterns that vary per cycle keep their own timeline.
func slowcatPrime(pats []Pattern) Pattern {
	if len(pats) == 0 {
		return Silence()
	}
	n := int64(len(pats))
	return New(func(span TimeSpan) []Hap {
		cyc := span.Begin.Floor()
		return pats[((cyc%n)+n)%n].Query(span)
	}).SplitQueries()
}

// Cat is Slowcat.
func Cat(pats ...any) Pattern { return Slowcat(pats...) }

// Fastcat squeezes all patterns into one cycle, one slice each.
func Fastcat(pats ...any) Pattern {
	if len(pats) == 0 {
		return Silence()
	}
	return Slowcat(pats...).fast(T(int64(len(pats)))).WithTactus(T(int64(len(pats))))
}

// Sequence is Fastcat.
func Sequence(pats ...any) Pattern { return Fastcat(pats...) }

// Weighted pairs a pattern (or value) with its relative length for Timecat.
type Weighted struct {
	Weight Time
	Value  any
}

// Timecat is Fastcat with relative slice lengths.
func Timecat(parts ...Weighted) Pattern {
	total := T(0)
	for _, w := range parts {
		total = total.Add(w.Weight)
	}
	if total.Lte(T(0)) {
		return Silence()
	}
	var pats []any
	begin := T(0)
	for _, w := range parts {
		if w.Weight.Lte(T(0)) {
			continue
		}
		end := begin.Add(w.Weight)
		pats = append(pats, Reify(w.Value).Compress(begin.Div(total), end.Div(total)))
		begin = end
	}
	out := Stack(pats...)
	return out.WithTactus(total)
}

// Polymeter aligns patterns by step: each is sped up so that steps of its
// steps fill one cycle. A zero steps uses the first pattern's tactus.
// Patterns without a tactus are treated as one step long.
func Polymeter(steps Time, pats ...any) Pattern {
	ps := reifyAll(pats)
	if len(ps) == 0 {
		return Silence()
	}
	if steps.Lte(T(0)) {
		steps = tactusOf(ps[0])
	}
	if steps.Lte(T(0)) {
		return Silence()
	}
	fitted := make([]any, 0, len(ps))
	for _, p := range ps {
		t := tactusOf(p)
		if t.Lte(T(0)) {
			continue
		}
		fitted = append(fitted, p.fast(steps.Div(t)))
	}
	return Stack(fitted...).WithTactus(steps)
}

// Run is 0 .. n-1 spread over a cycle.
func Run(n int) Pattern {
	if n <= 0 {
		return Silence()
	}
	vals := make([]any, n)
	for i := range vals {
		vals[i] = float64(i)
	}
	return Fastcat(vals...)
}

func tactusOf(p Pattern) Time {
	if t, ok := p.Tactus(); ok {
		return t
	}
	return T(1)
}

func reifyAll(vs []any) []Pattern {
	out := make([]Pattern, 0, len(vs))
	for _, v := range vs {
		if ps, ok := v.([]Pattern); ok {
			out = append(out, ps...)
			continue
		}
		out = append(out, Reify(v))
	}
	return out
}

// lcmTactus returns the least common multiple of integer tactus values.
func lcmTactus(ps []Pattern) (Time, bool) {
	var acc int64
	for _, p := range ps {
		t, ok := p.Tactus()
		if !ok || t.Den() != 1 || t.Num() <= 0 {
			return Time{}, false
		}
		if acc == 0 {
			acc = t.Num()
			continue
		}
		acc = acc / gcd(acc, t.Num()) * t.Num()
	}
	if acc == 0 {
		return Time{}, false
	}
	return T(acc), true
}
