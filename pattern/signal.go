package pattern

import "math"

// Signal builds a continuous pattern sampling f at the midpoint of each
// queried span. Its haps have no whole.
func Signal(f func(Time) any) Pattern {
	return New(func(span TimeSpan) []Hap {
		return []Hap{{Part: span, Value: f(span.Midpoint())}}
	})
}

// Saw rises from 0 to 1 over each cycle.
func Saw() Pattern {
	return Signal(func(t Time) any { return t.CyclePos().Float() })
}

// Isaw falls from 1 to 0 over each cycle.
func Isaw() Pattern {
	return Signal(func(t Time) any { return 1 - t.CyclePos().Float() })
}

// Sine is a sine wave scaled to [0, 1], one period per cycle.
func Sine() Pattern {
	return Signal(func(t Time) any {
		return (math.Sin(2*math.Pi*t.CyclePos().Float()) + 1) / 2
	})
}

// Cosine is Sine shifted by a quarter cycle.
func Cosine() Pattern { return Sine().early(R(1, 4)) }

// Square is 0 for the first half of each cycle and 1 for the second.
func Square() Pattern {
	return Signal(func(t Time) any {
		if t.CyclePos().Lt(R(1, 2)) {
			return 0.0
		}
		return 1.0
	})
}

// Tri rises from 0 to 1 over the first half cycle and falls back.
func Tri() Pattern {
	return Signal(func(t Time) any {
		pos := t.CyclePos().Float()
		if pos < 0.5 {
			return 2 * pos
		}
		return 2 - 2*pos
	})
}

// Envelope returns the time itself as a continuous value, handy as the input
// of PerlinWith.
func Envelope() Pattern {
	return Signal(func(t Time) any { return t })
}
