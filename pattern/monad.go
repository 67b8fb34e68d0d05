package pattern

// WholePolicy chooses the whole of a flattened hap from the outer and inner
// wholes.
type WholePolicy func(outer, inner *TimeSpan) (*TimeSpan, bool)

// IntersectWholes keeps the overlap of both wholes and drops the hap when
// they do not overlap.
func IntersectWholes(outer, inner *TimeSpan) (*TimeSpan, bool) {
	if outer == nil || inner == nil {
		return nil, true
	}
	w, ok := outer.Intersection(*inner)
	if !ok {
		return nil, false
	}
	return &w, true
}

// OuterWholes keeps the outer pattern's wholes.
func OuterWholes(outer, _ *TimeSpan) (*TimeSpan, bool) { return outer, true }

// InnerWholes keeps the inner pattern's wholes.
func InnerWholes(_, inner *TimeSpan) (*TimeSpan, bool) { return inner, true }

// BindWhole flattens the pattern produced by applying f to every value,
// querying each inner pattern over the outer hap's part.
func (p Pattern) BindWhole(choose WholePolicy, f func(any) Pattern) Pattern {
	return New(func(span TimeSpan) []Hap {
		var out []Hap
		for _, outer := range p.Query(span) {
			for _, inner := range f(outer.Value).Query(outer.Part) {
				whole, ok := choose(outer.Whole, inner.Whole)
				if !ok {
					continue
				}
				out = append(out, Hap{Whole: whole, Part: inner.Part, Value: inner.Value})
			}
		}
		return out
	})
}

// Bind flattens with intersecting wholes.
func (p Pattern) Bind(f func(any) Pattern) Pattern { return p.BindWhole(IntersectWholes, f) }

// InnerBind flattens keeping inner wholes.
func (p Pattern) InnerBind(f func(any) Pattern) Pattern { return p.BindWhole(InnerWholes, f) }

// OuterBind flattens keeping outer wholes.
func (p Pattern) OuterBind(f func(any) Pattern) Pattern {
	out := p.BindWhole(OuterWholes, f)
	out.tactus, out.steps = p.tactus, p.steps
	return out
}

// Join flattens a pattern of patterns; plain values are lifted with Pure.
func (p Pattern) Join() Pattern { return p.Bind(Reify) }

// InnerJoin flattens keeping the inner structure.
func (p Pattern) InnerJoin() Pattern { return p.InnerBind(Reify) }

// OuterJoin flattens keeping the outer structure.
func (p Pattern) OuterJoin() Pattern { return p.OuterBind(Reify) }

// SqueezeJoin fits one cycle of each inner pattern into the whole of the
// outer hap carrying it.
func (p Pattern) SqueezeJoin() Pattern {
	return New(func(span TimeSpan) []Hap {
		var out []Hap
		for _, outer := range p.DiscreteOnly().Query(span) {
			inner := Reify(outer.Value).Focus(outer.WholeOrPart())
			for _, h := range inner.Query(outer.Part) {
				var whole *TimeSpan
				if h.Whole != nil && outer.Whole != nil {
					w, ok := h.Whole.Intersection(*outer.Whole)
					if !ok {
						continue
					}
					whole = &w
				}
				part, ok := h.Part.Intersection(outer.Part)
				if !ok {
					continue
				}
				out = append(out, Hap{Whole: whole, Part: part, Value: h.Value})
			}
		}
		return out
	})
}

// patternify resolves a possibly pattern-valued argument, applying f for
// each of its values and inner-joining the results.
func patternify(arg any, f func(v any) Pattern) Pattern {
	if pat, ok := arg.(Pattern); ok {
		return pat.Fmap(func(v any) any { return f(v) }).InnerJoin()
	}
	return f(arg)
}
