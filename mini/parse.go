// Package mini compiles mini-notation, the compact text syntax for
// patterns, into pattern.Pattern values.
//
//	"bd*2 [sn cp] <hh oh>"
//	"{bd sn, hh hh hh}%4"
//	"bd(3,8,2) sn? ~ cp@3"
//
// Words become strings, numbers float64 and ~ a rest. Parsing is a single
// recursive descent pass that builds the pattern directly.
package mini

import (
	"fmt"

	"go-cycle/pattern"
)

// ParseError reports a syntax error at a byte offset of the source.
type ParseError struct {
	Offset int
	Msg    string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("mini: offset %d: %s", e.Offset, e.Msg)
}

// Parse compiles src. An empty source is silence.
func Parse(src string) (pattern.Pattern, error) {
	toks, err := lex(src)
	if err != nil {
		return pattern.Silence(), err
	}
	p := &parser{toks: toks}
	pat, err := p.parseGroup(tokEOF, groupSequence)
	if err != nil {
		return pattern.Silence(), err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return pattern.Silence(), p.errorf(tok, "unexpected %s", tok.kind)
	}
	return pat, nil
}

// MustParse is Parse that panics on error.
func MustParse(src string) pattern.Pattern {
	pat, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return pat
}

type parser struct {
	toks []token
	pos  int
	// seed numbers the random operators in order of appearance so that
	// each gets its own stream.
	seed int64
}

type groupKind int

const (
	groupSequence groupKind = iota
	groupAlternate
)

// step is one slot of a sequence.
type step struct {
	pat     pattern.Pattern
	weight  pattern.Time
	literal any
	// isLiteral is set for plain numbers and words.
	isLiteral bool
}

func (s step) value() any {
	if s.isLiteral {
		return s.literal
	}
	return s.pat
}

// sequence is a compiled run of steps with its step count.
type sequence struct {
	pat   pattern.Pattern
	steps pattern.Time
	// single holds the literal of a one-step sequence such as "3".
	single    any
	hasSingle bool
}

func (s sequence) value() any {
	if s.hasSingle {
		return s.single
	}
	return s.pat
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	tok := p.toks[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		return tok, p.errorf(tok, "expected %s, found %s", kind, tok.kind)
	}
	return tok, nil
}

func (p *parser) errorf(tok token, format string, args ...any) error {
	return &ParseError{Offset: tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) nextSeed() pattern.Time {
	s := p.seed
	p.seed++
	return pattern.R(s, 10000)
}

// parseGroup parses comma or pipe separated sequences up to (not including)
// the closing token and combines them according to kind.
func (p *parser) parseGroup(closing tokenKind, kind groupKind) (pattern.Pattern, error) {
	seqs, sep, err := p.parseBranches(closing)
	if err != nil {
		return pattern.Silence(), err
	}
	pats := make([]pattern.Pattern, len(seqs))
	for i, s := range seqs {
		switch kind {
		case groupAlternate:
			// one step per cycle
			if s.steps.IsZero() {
				pats[i] = pattern.Silence()
			} else {
				pats[i] = s.pat.Slow(s.steps)
			}
		default:
			pats[i] = s.pat
		}
	}
	if len(pats) == 1 {
		return pats[0], nil
	}
	if sep == tokPipe {
		xs := make([]any, len(pats))
		for i, pat := range pats {
			xs[i] = pat
		}
		rng := pattern.Rand().Early(p.nextSeed()).Segment(1)
		return pattern.ChooseWith(rng, xs...).InnerJoin(), nil
	}
	return pattern.Stack(pats), nil
}

// parseBranches parses sequences separated by a single kind of separator.
func (p *parser) parseBranches(closing tokenKind) ([]sequence, tokenKind, error) {
	var (
		seqs []sequence
		sep  tokenKind
	)
	for {
		seq, err := p.parseSequence(closing)
		if err != nil {
			return nil, sep, err
		}
		seqs = append(seqs, seq)
		tok := p.peek()
		if tok.kind != tokComma && tok.kind != tokPipe {
			return seqs, sep, nil
		}
		if sep != tokEOF && sep != tok.kind {
			return nil, sep, p.errorf(tok, "cannot mix ',' and '|' in one group")
		}
		sep = tok.kind
		p.next()
	}
}

func isTerminator(kind, closing tokenKind) bool {
	switch kind {
	case tokComma, tokPipe, tokEOF:
		return true
	}
	return kind == closing
}

// parseSequence parses steps until a separator or the closing token. A '.'
// splits the sequence into equally long feet.
func (p *parser) parseSequence(closing tokenKind) (sequence, error) {
	var (
		feet  [][]step
		steps []step
	)
	for !isTerminator(p.peek().kind, closing) {
		tok := p.peek()
		switch tok.kind {
		case tokElongate:
			p.next()
			if len(steps) == 0 {
				return sequence{}, p.errorf(tok, "'_' without a preceding step")
			}
			last := &steps[len(steps)-1]
			last.weight = last.weight.Add(pattern.T(1))
			continue
		case tokBang:
			p.next()
			if len(steps) == 0 {
				return sequence{}, p.errorf(tok, "'!' without a preceding step")
			}
			steps = append(steps, steps[len(steps)-1])
			continue
		case tokDot:
			p.next()
			feet = append(feet, steps)
			steps = nil
			continue
		}
		more, err := p.parseStep()
		if err != nil {
			return sequence{}, err
		}
		steps = append(steps, more...)
	}
	if feet != nil {
		feet = append(feet, steps)
		steps = nil
		for _, foot := range feet {
			seq := buildSequence(foot)
			steps = append(steps, step{pat: seq.pat, weight: pattern.T(1)})
		}
	}
	return buildSequence(steps), nil
}

func buildSequence(steps []step) sequence {
	if len(steps) == 0 {
		return sequence{pat: pattern.Silence(), steps: pattern.T(0)}
	}
	total := pattern.T(0)
	uniform := true
	for _, s := range steps {
		total = total.Add(s.weight)
		if !s.weight.Eq(pattern.T(1)) {
			uniform = false
		}
	}
	if len(steps) == 1 {
		s := steps[0]
		return sequence{pat: s.pat.WithTactus(total), steps: total, single: s.literal, hasSingle: s.isLiteral}
	}
	if uniform {
		vals := make([]any, len(steps))
		for i, s := range steps {
			vals[i] = s.pat
		}
		return sequence{pat: pattern.Fastcat(vals...), steps: total}
	}
	parts := make([]pattern.Weighted, len(steps))
	for i, s := range steps {
		parts[i] = pattern.Weighted{Weight: s.weight, Value: s.pat}
	}
	return sequence{pat: pattern.Timecat(parts...), steps: total}
}

// parseStep parses a term and its modifiers. Replication can turn one step
// into several.
func (p *parser) parseStep() ([]step, error) {
	s, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	copies := 1
	for {
		tok := p.peek()
		switch tok.kind {
		case tokStar, tokSlash:
			p.next()
			factor, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			if tok.kind == tokStar {
				s.pat = s.pat.Fast(factor.value())
			} else {
				s.pat = s.pat.Slow(factor.value())
			}
			s.isLiteral = false
		case tokBang:
			p.next()
			if n := p.peek(); n.kind == tokNumber && !n.spaced {
				p.next()
				if n.num < 1 {
					return nil, p.errorf(n, "replication count must be at least 1")
				}
				copies += int(n.num) - 1
			} else {
				copies++
			}
		case tokAt:
			p.next()
			n, err := p.expect(tokNumber)
			if err != nil {
				return nil, err
			}
			if n.num <= 0 {
				return nil, p.errorf(n, "weight must be positive")
			}
			s.weight = pattern.FromFloat(n.num)
		case tokQuestion:
			p.next()
			prob := 0.5
			if n := p.peek(); n.kind == tokNumber && !n.spaced {
				p.next()
				prob = n.num
			}
			s.pat = s.pat.DegradeByWith(pattern.Rand().Early(p.nextSeed()), prob)
			s.isLiteral = false
		case tokLParen:
			p.next()
			args, _, err := p.parseBranches(tokRParen)
			if err != nil {
				return nil, err
			}
			closeTok, err := p.expect(tokRParen)
			if err != nil {
				return nil, err
			}
			if len(args) < 2 || len(args) > 3 {
				return nil, p.errorf(closeTok, "euclid takes 2 or 3 arguments, got %d", len(args))
			}
			var rot any = 0
			if len(args) == 3 {
				rot = args[2].value()
			}
			s.pat = s.pat.EuclidRot(args[0].value(), args[1].value(), rot)
			s.isLiteral = false
		default:
			out := make([]step, copies)
			for i := range out {
				out[i] = s
			}
			return out, nil
		}
	}
}

func (p *parser) parseTerm() (step, error) {
	tok := p.next()
	one := pattern.T(1)
	switch tok.kind {
	case tokWord:
		return step{pat: pattern.Pure(tok.text), weight: one, literal: tok.text, isLiteral: true}, nil
	case tokNumber:
		return step{pat: pattern.Pure(tok.num), weight: one, literal: tok.num, isLiteral: true}, nil
	case tokRest:
		return step{pat: pattern.Silence(), weight: one}, nil
	case tokLBracket:
		pat, err := p.parseGroup(tokRBracket, groupSequence)
		if err != nil {
			return step{}, err
		}
		if _, err := p.expect(tokRBracket); err != nil {
			return step{}, err
		}
		return step{pat: pat, weight: one}, nil
	case tokLAngle:
		pat, err := p.parseGroup(tokRAngle, groupAlternate)
		if err != nil {
			return step{}, err
		}
		if _, err := p.expect(tokRAngle); err != nil {
			return step{}, err
		}
		return step{pat: pat, weight: one}, nil
	case tokLBrace:
		return p.parsePolymeter()
	}
	return step{}, p.errorf(tok, "unexpected %s", tok.kind)
}

// parsePolymeter parses "{a b, c d e}" with an optional "%steps" suffix.
// Without a suffix the first sequence sets the step count.
func (p *parser) parsePolymeter() (step, error) {
	seqs, sep, err := p.parseBranches(tokRBrace)
	if err != nil {
		return step{}, err
	}
	closeTok, err := p.expect(tokRBrace)
	if err != nil {
		return step{}, err
	}
	if sep == tokPipe {
		return step{}, p.errorf(closeTok, "'|' is not allowed in a polymeter")
	}
	steps := seqs[0].steps
	if p.peek().kind == tokPercent {
		p.next()
		n, err := p.expect(tokNumber)
		if err != nil {
			return step{}, err
		}
		if n.num <= 0 {
			return step{}, p.errorf(n, "polymeter steps must be positive")
		}
		steps = pattern.FromFloat(n.num)
	}
	pats := make([]any, 0, len(seqs))
	for _, s := range seqs {
		if s.steps.IsZero() {
			continue
		}
		pats = append(pats, s.pat.WithTactus(s.steps))
	}
	if len(pats) == 0 || steps.IsZero() {
		return step{pat: pattern.Silence(), weight: pattern.T(1)}, nil
	}
	return step{pat: pattern.Polymeter(steps, pats...), weight: pattern.T(1)}, nil
}
