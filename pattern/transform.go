package pattern

// Fast speeds p up by factor. factor may be a number, a Time or a Pattern of
// numbers, in which case it is resolved per hap of the factor pattern and
// inner-joined. A zero factor is silence; a negative factor also reverses.
func (p Pattern) Fast(factor any) Pattern {
	return patternify(factor, func(v any) Pattern {
		t, ok := ToTime(v)
		if !ok {
			return Silence()
		}
		return p.fast(t)
	})
}

func (p Pattern) fast(factor Time) Pattern {
	if factor.IsZero() {
		return Silence()
	}
	if factor.Lt(T(0)) {
		return p.fast(factor.Neg()).Rev()
	}
	return p.WithQueryTime(func(t Time) Time { return t.Mul(factor) }).
		WithHapTime(func(t Time) Time { return t.Div(factor) })
}

// Slow slows p down by factor; see Fast.
func (p Pattern) Slow(factor any) Pattern {
	return patternify(factor, func(v any) Pattern {
		t, ok := ToTime(v)
		if !ok || t.IsZero() {
			return Silence()
		}
		return p.fast(T(1).Div(t))
	})
}

// Early shifts p earlier in time by offset cycles.
func (p Pattern) Early(offset any) Pattern {
	return patternify(offset, func(v any) Pattern {
		t, ok := ToTime(v)
		if !ok {
			return Silence()
		}
		return p.early(t)
	})
}

func (p Pattern) early(offset Time) Pattern {
	return p.WithQueryTime(func(t Time) Time { return t.Add(offset) }).
		WithHapTime(func(t Time) Time { return t.Sub(offset) })
}

// Late shifts p later in time by offset cycles.
func (p Pattern) Late(offset any) Pattern {
	return patternify(offset, func(v any) Pattern {
		t, ok := ToTime(v)
		if !ok {
			return Silence()
		}
		return p.early(t.Neg())
	})
}

// FastGap speeds p up by factor but only within each cycle, leaving the
// remainder of the cycle silent.
func (p Pattern) FastGap(factor any) Pattern {
	return patternify(factor, func(v any) Pattern {
		t, ok := ToTime(v)
		if !ok {
			return Silence()
		}
		return p.fastGap(t)
	})
}

func (p Pattern) fastGap(factor Time) Pattern {
	if factor.Lte(T(0)) {
		return Silence()
	}
	one := T(1)
	query := func(span TimeSpan) (TimeSpan, bool) {
		cycle := span.Begin.Sam()
		bpos := span.Begin.Sub(cycle).Mul(factor).Min(one)
		epos := span.End.Sub(cycle).Mul(factor).Min(one)
		if bpos.Gte(one) {
			return TimeSpan{}, false
		}
		return TimeSpan{Begin: cycle.Add(bpos), End: cycle.Add(epos)}, true
	}
	remap := func(h Hap) Hap {
		cycle := h.Part.Begin.Sam()
		scale := func(t Time) Time { return cycle.Add(t.Sub(cycle).Div(factor)) }
		clamp := func(t Time) Time { return cycle.Add(t.Sub(cycle).Div(factor).Min(one)) }
		out := Hap{Part: h.Part.WithTime(clamp), Value: h.Value}
		if h.Whole != nil {
			w := h.Whole.WithTime(scale)
			out.Whole = &w
		}
		return out
	}
	return p.withQuerySpanMaybe(query).WithHaps(remap).SplitQueries()
}

// Compress squeezes each cycle of p into [b, e) of the cycle, leaving the rest
// silent. Bounds outside [0, 1], b > e or b == e give silence.
func (p Pattern) Compress(b, e Time) Pattern {
	if b.Gte(e) || b.Lt(T(0)) || e.Gt(T(1)) {
		return Silence()
	}
	return p.fastGap(T(1).Div(e.Sub(b))).early(b.Neg())
}

// Focus is like Compress over s but keeps the rest of the cycle populated by
// neighbouring cycles instead of silence.
func (p Pattern) Focus(s TimeSpan) Pattern {
	d := s.Duration()
	if d.Lte(T(0)) {
		return Silence()
	}
	return p.early(s.Begin.Sam()).fast(T(1).Div(d)).early(s.Begin.Neg())
}

// Rev reverses every cycle.
func (p Pattern) Rev() Pattern {
	return p.derive(func(span TimeSpan) []Hap {
		cycle := span.Begin.Sam()
		next := span.Begin.NextSam()
		reflect := func(s TimeSpan) TimeSpan {
			return TimeSpan{
				Begin: cycle.Add(next.Sub(s.End)),
				End:   cycle.Add(next.Sub(s.Begin)),
			}
		}
		haps := p.Query(reflect(span))
		out := make([]Hap, len(haps))
		for i, h := range haps {
			out[i] = h.WithSpan(reflect)
		}
		return out
	}).SplitQueries()
}

// Ply repeats each event n times within its own span.
func (p Pattern) Ply(n any) Pattern {
	return patternify(n, func(v any) Pattern {
		t, ok := ToTime(v)
		if !ok {
			return Silence()
		}
		return p.Fmap(func(x any) any { return Pure(x).fast(t) }).SqueezeJoin()
	})
}

// FirstOf applies f on cycles where cycle mod n == 0.
func (p Pattern) FirstOf(n int, f func(Pattern) Pattern) Pattern {
	if n <= 0 {
		return p
	}
	pats := make([]Pattern, n)
	pats[0] = f(p)
	for i := 1; i < n; i++ {
		pats[i] = p
	}
	return slowcatPrime(pats)
}

// Every is FirstOf.
func (p Pattern) Every(n int, f func(Pattern) Pattern) Pattern { return p.FirstOf(n, f) }

// LastOf applies f on cycles where cycle mod n == n-1.
func (p Pattern) LastOf(n int, f func(Pattern) Pattern) Pattern {
	if n <= 0 {
		return p
	}
	pats := make([]Pattern, n)
	for i := 0; i < n-1; i++ {
		pats[i] = p
	}
	pats[n-1] = f(p)
	return slowcatPrime(pats)
}

// Palindrome plays p forwards then backwards on alternate cycles.
func (p Pattern) Palindrome() Pattern {
	return p.LastOf(2, Pattern.Rev)
}

// Iter shifts the pattern start by 1/n each cycle.
func (p Pattern) Iter(n int) Pattern {
	if n <= 0 {
		return p
	}
	pats := make([]Pattern, n)
	for i := 0; i < n; i++ {
		pats[i] = p.early(R(int64(i), int64(n)))
	}
	return Slowcat(pats)
}

// Superimpose stacks p with f(p).
func (p Pattern) Superimpose(f func(Pattern) Pattern) Pattern {
	return Stack(p, f(p))
}

// Off stacks p with f applied to a copy delayed by offset.
func (p Pattern) Off(offset any, f func(Pattern) Pattern) Pattern {
	return Stack(p, f(p.Late(offset)))
}
