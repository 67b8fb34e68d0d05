package pattern

// Bjorklund distributes k onsets as evenly as possible over n steps. Inputs
// are sanitized instead of rejected: negative values are made positive, a k
// above n wraps modulo n and n == 0 gives an empty rhythm.
func Bjorklund(k, n int) []bool {
	if n < 0 {
		n = -n
	}
	if k < 0 {
		k = -k
	}
	if n == 0 {
		return []bool{}
	}
	if k > n {
		k %= n
	}
	if k == 0 {
		return make([]bool, n)
	}

	xs := make([][]bool, k)
	for i := range xs {
		xs[i] = []bool{true}
	}
	ys := make([][]bool, n-k)
	for i := range ys {
		ys[i] = []bool{false}
	}
	i, j := k, n-k
	for min(i, j) > 1 {
		if i > j {
			// the first j onset groups absorb the remainders
			head, tail := xs[:j], xs[j:]
			merged := make([][]bool, j)
			for x := range head {
				merged[x] = concatBools(head[x], ys[x])
			}
			xs, ys = merged, tail
			i, j = j, i-j
		} else {
			head, tail := ys[:i], ys[i:]
			merged := make([][]bool, i)
			for x := range xs {
				merged[x] = concatBools(xs[x], head[x])
			}
			xs, ys = merged, tail
			j = j - i
		}
	}

	out := make([]bool, 0, n)
	for _, g := range xs {
		out = append(out, g...)
	}
	for _, g := range ys {
		out = append(out, g...)
	}
	return out
}

func concatBools(a, b []bool) []bool {
	out := make([]bool, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...)
}

// rotateLeft rotates bits left by r steps (mod len).
func rotateLeft(bits []bool, r int) []bool {
	n := len(bits)
	if n == 0 {
		return bits
	}
	r = ((r % n) + n) % n
	out := make([]bool, 0, n)
	out = append(out, bits[r:]...)
	return append(out, bits[:r]...)
}

func euclidBools(k, n, r int, invert bool) Pattern {
	bits := rotateLeft(Bjorklund(k, n), r)
	if len(bits) == 0 {
		return Silence()
	}
	vals := make([]any, len(bits))
	for i, b := range bits {
		vals[i] = b != invert
	}
	return Fastcat(vals...)
}

func intArg(v any) int {
	f, _ := ToFloat(v)
	return int(f)
}

// Euclid plays p on the k onsets of a Euclidean rhythm over n steps. k and n
// may be patterns.
func (p Pattern) Euclid(k, n any) Pattern { return p.EuclidRot(k, n, 0) }

// EuclidRot is Euclid with the rhythm rotated left by rot steps.
func (p Pattern) EuclidRot(k, n, rot any) Pattern {
	return p.euclid(k, n, rot, false)
}

// EuclidInv plays p on the rests of the rhythm instead of its onsets.
func (p Pattern) EuclidInv(k, n, rot any) Pattern {
	return p.euclid(k, n, rot, true)
}

func (p Pattern) euclid(k, n, rot any, invert bool) Pattern {
	return patternify(k, func(kv any) Pattern {
		return patternify(n, func(nv any) Pattern {
			return patternify(rot, func(rv any) Pattern {
				steps := intArg(nv)
				out := p.Struct(euclidBools(intArg(kv), steps, intArg(rv), invert))
				if steps < 0 {
					steps = -steps
				}
				if steps == 0 {
					return out
				}
				return out.WithTactus(T(int64(steps)))
			})
		})
	})
}
