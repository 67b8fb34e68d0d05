package pattern

import "fmt"

// Hap is a value occurring over time. Part is the fragment a query actually
// captured; Whole, when present, is the full logical extent of the event and
// always contains Part. A nil Whole marks a continuous (signal) value.
type Hap struct {
	Whole *TimeSpan
	Part  TimeSpan
	Value any
}

// NewHap builds a discrete hap.
func NewHap(whole, part TimeSpan, value any) Hap {
	w := whole
	return Hap{Whole: &w, Part: part, Value: value}
}

// HasOnset reports whether the hap's part starts where its whole starts.
func (h Hap) HasOnset() bool {
	return h.Whole != nil && h.Whole.Begin.Eq(h.Part.Begin)
}

// IsDiscrete reports whether the hap has a whole.
func (h Hap) IsDiscrete() bool { return h.Whole != nil }

// WholeOrPart returns the whole when present, otherwise the part.
func (h Hap) WholeOrPart() TimeSpan {
	if h.Whole != nil {
		return *h.Whole
	}
	return h.Part
}

// WholeOrPartBegin is the onset time used for sorting and dispatch.
func (h Hap) WholeOrPartBegin() Time { return h.WholeOrPart().Begin }

// WithSpan maps f over both whole and part.
func (h Hap) WithSpan(f func(TimeSpan) TimeSpan) Hap {
	out := Hap{Part: f(h.Part), Value: h.Value}
	if h.Whole != nil {
		w := f(*h.Whole)
		out.Whole = &w
	}
	return out
}

// WithValue maps f over the value.
func (h Hap) WithValue(f func(any) any) Hap {
	return Hap{Whole: h.Whole, Part: h.Part, Value: f(h.Value)}
}

// SpanEqual reports whether two haps cover the same whole and part.
func (h Hap) SpanEqual(o Hap) bool {
	if (h.Whole == nil) != (o.Whole == nil) {
		return false
	}
	if h.Whole != nil && !h.Whole.Equal(*o.Whole) {
		return false
	}
	return h.Part.Equal(o.Part)
}

func (h Hap) String() string {
	if h.Whole == nil {
		return fmt.Sprintf("~%s: %v", h.Part, h.Value)
	}
	return fmt.Sprintf("(%s) %s: %v", h.Whole, h.Part, h.Value)
}
