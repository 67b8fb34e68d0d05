package pattern

// Structure selects which operand of a binary combination supplies the
// wholes (the rhythmic structure) of the result.
type Structure int

const (
	// StructLeft takes structure from the left pattern.
	StructLeft Structure = iota
	// StructRight takes structure from the right pattern.
	StructRight
	// StructBoth intersects the wholes of both patterns.
	StructBoth
)

func (s Structure) String() string {
	switch s {
	case StructLeft:
		return "left"
	case StructRight:
		return "right"
	case StructBoth:
		return "both"
	}
	return "unknown"
}

// AppLeft combines p and q with structure from p. For each hap of p, q is
// queried over that hap's whole (or part) and the parts are intersected.
func (p Pattern) AppLeft(q Pattern, f func(a, b any) any) Pattern {
	return p.derive(func(span TimeSpan) []Hap {
		var out []Hap
		for _, hl := range p.Query(span) {
			for _, hr := range q.Query(hl.WholeOrPart()) {
				part, ok := hl.Part.Intersection(hr.Part)
				if !ok {
					continue
				}
				out = append(out, Hap{Whole: hl.Whole, Part: part, Value: f(hl.Value, hr.Value)})
			}
		}
		return out
	})
}

// AppRight combines p and q with structure from q.
func (p Pattern) AppRight(q Pattern, f func(a, b any) any) Pattern {
	return q.derive(func(span TimeSpan) []Hap {
		var out []Hap
		for _, hr := range q.Query(span) {
			for _, hl := range p.Query(hr.WholeOrPart()) {
				part, ok := hr.Part.Intersection(hl.Part)
				if !ok {
					continue
				}
				out = append(out, Hap{Whole: hr.Whole, Part: part, Value: f(hl.Value, hr.Value)})
			}
		}
		return out
	})
}

// AppBoth combines p and q where both are active. The result's whole is the
// intersection of both wholes; pairs whose wholes do not overlap yield
// nothing. A continuous operand leaves the result continuous.
func (p Pattern) AppBoth(q Pattern, f func(a, b any) any) Pattern {
	return p.derive(func(span TimeSpan) []Hap {
		left := p.Query(span)
		right := q.Query(span)
		var out []Hap
		for _, hl := range left {
			for _, hr := range right {
				part, ok := hl.Part.Intersection(hr.Part)
				if !ok {
					continue
				}
				var whole *TimeSpan
				if hl.Whole != nil && hr.Whole != nil {
					w, ok := hl.Whole.Intersection(*hr.Whole)
					if !ok {
						continue
					}
					whole = &w
				}
				out = append(out, Hap{Whole: whole, Part: part, Value: f(hl.Value, hr.Value)})
			}
		}
		return out
	})
}

// App dispatches to AppLeft, AppRight or AppBoth.
func (p Pattern) App(how Structure, q Pattern, f func(a, b any) any) Pattern {
	switch how {
	case StructRight:
		return p.AppRight(q, f)
	case StructBoth:
		return p.AppBoth(q, f)
	}
	return p.AppLeft(q, f)
}

// Op combines numeric values of p and other with fn. Non-numeric pairs keep
// the left value unless both are ValueMaps, which are combined key-wise.
func (p Pattern) Op(how Structure, other any, fn func(a, b float64) float64) Pattern {
	return p.App(how, Reify(other), func(a, b any) any { return numOp(a, b, fn) })
}

func numOp(a, b any, fn func(a, b float64) float64) any {
	if ma, ok := a.(ValueMap); ok {
		mb, ok := b.(ValueMap)
		if !ok {
			out := make(ValueMap, len(ma))
			for k, v := range ma {
				out[k] = numOp(v, b, fn)
			}
			return out
		}
		out := ma.Merge(nil)
		for k, vb := range mb {
			if va, ok := ma[k]; ok {
				out[k] = numOp(va, vb, fn)
			} else {
				out[k] = vb
			}
		}
		return out
	}
	fa, okA := ToFloat(a)
	fb, okB := ToFloat(b)
	if !okA || !okB {
		return a
	}
	return fn(fa, fb)
}

// Add adds other's values, structure from p.
func (p Pattern) Add(other any) Pattern {
	return p.Op(StructLeft, other, func(a, b float64) float64 { return a + b })
}

// Sub subtracts other's values, structure from p.
func (p Pattern) Sub(other any) Pattern {
	return p.Op(StructLeft, other, func(a, b float64) float64 { return a - b })
}

// Mul multiplies by other's values, structure from p.
func (p Pattern) Mul(other any) Pattern {
	return p.Op(StructLeft, other, func(a, b float64) float64 { return a * b })
}

// Div divides by other's values, structure from p. Division by zero yields 0.
func (p Pattern) Div(other any) Pattern {
	return p.Op(StructLeft, other, func(a, b float64) float64 {
		if b == 0 {
			return 0
		}
		return a / b
	})
}

// CombineLeft merges values with structure from p; on shared keys the
// values of other win. Plain values are replaced by other's.
func (p Pattern) CombineLeft(other any) Pattern {
	return p.AppLeft(Reify(other), func(a, b any) any { return mergeValues(a, b) })
}

// CombineRight merges values with structure from other; on shared keys the
// values of p win.
func (p Pattern) CombineRight(other any) Pattern {
	return p.AppRight(Reify(other), func(a, b any) any { return mergeValues(b, a) })
}

// mergeValues overlays top onto base.
func mergeValues(base, top any) any {
	mb, okB := base.(ValueMap)
	mt, okT := top.(ValueMap)
	switch {
	case okB && okT:
		return mb.Merge(mt)
	case okT:
		return mt
	}
	return top
}

// Struct imposes the structure of a boolean pattern: p is sampled at every
// truthy hap of bools.
func (p Pattern) Struct(bools any) Pattern {
	kept := p.AppRight(Reify(bools), func(a, b any) any {
		if Truthy(b) {
			return keep{a}
		}
		return drop{}
	})
	return unwrapKept(kept)
}

// Mask silences p wherever bools is falsy, keeping p's structure.
func (p Pattern) Mask(bools any) Pattern {
	kept := p.AppLeft(Reify(bools), func(a, b any) any {
		if Truthy(b) {
			return keep{a}
		}
		return drop{}
	})
	return unwrapKept(kept)
}

type keep struct{ v any }
type drop struct{}

func unwrapKept(p Pattern) Pattern {
	return p.FilterValues(func(v any) bool {
		_, ok := v.(keep)
		return ok
	}).Fmap(func(v any) any { return v.(keep).v })
}

// Segment samples p n times per cycle, turning signals into discrete events.
func (p Pattern) Segment(n any) Pattern {
	return p.Struct(Pure(true).Fast(n))
}

// Range scales values in [0, 1] to [lo, hi].
func (p Pattern) Range(lo, hi float64) Pattern {
	return p.Fmap(func(v any) any {
		f, ok := ToFloat(v)
		if !ok {
			return v
		}
		return f*(hi-lo) + lo
	})
}
