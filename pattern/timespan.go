package pattern

import "fmt"

// TimeSpan is the half-open interval [Begin, End) of cycle time.
type TimeSpan struct {
	Begin Time
	End   Time
}

// Span builds a TimeSpan. Begin must not be after end.
func Span(begin, end Time) TimeSpan { return TimeSpan{Begin: begin, End: end} }

// Arc is a shorthand for Span(T(b), T(e)) on integer cycles.
func Arc(b, e int64) TimeSpan { return TimeSpan{Begin: T(b), End: T(e)} }

// SpanCycles splits the span at cycle boundaries. The union of the result
// equals the input and no member crosses a cycle boundary. A zero-width span
// is returned as is.
func (s TimeSpan) SpanCycles() []TimeSpan {
	if s.Begin.Eq(s.End) {
		return []TimeSpan{s}
	}
	var spans []TimeSpan
	begin := s.Begin
	endSam := s.End.Sam()
	for s.End.Gt(begin) {
		if begin.Sam().Eq(endSam) {
			spans = append(spans, TimeSpan{Begin: begin, End: s.End})
			break
		}
		next := begin.NextSam()
		spans = append(spans, TimeSpan{Begin: begin, End: next})
		begin = next
	}
	return spans
}

// WithTime applies f to both ends.
func (s TimeSpan) WithTime(f func(Time) Time) TimeSpan {
	return TimeSpan{Begin: f(s.Begin), End: f(s.End)}
}

// Intersection returns the overlap of s and o. A zero-width overlap sitting on
// the trailing edge of a non-zero-width span does not count, so events that
// merely touch a query boundary are not reported twice.
func (s TimeSpan) Intersection(o TimeSpan) (TimeSpan, bool) {
	begin := s.Begin.Max(o.Begin)
	end := s.End.Min(o.End)
	if begin.Gt(end) {
		return TimeSpan{}, false
	}
	if begin.Eq(end) {
		if begin.Eq(s.End) && s.Begin.Lt(s.End) {
			return TimeSpan{}, false
		}
		if begin.Eq(o.End) && o.Begin.Lt(o.End) {
			return TimeSpan{}, false
		}
	}
	return TimeSpan{Begin: begin, End: end}, true
}

// Duration is End - Begin.
func (s TimeSpan) Duration() Time { return s.End.Sub(s.Begin) }

// Midpoint is the centre of the span.
func (s TimeSpan) Midpoint() Time { return s.Begin.Add(s.Duration().Div(T(2))) }

// Equal reports whether both ends match.
func (s TimeSpan) Equal(o TimeSpan) bool { return s.Begin.Eq(o.Begin) && s.End.Eq(o.End) }

func (s TimeSpan) String() string { return fmt.Sprintf("%s → %s", s.Begin, s.End) }
