package mini

import (
	"fmt"
	"strconv"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokNumber
	tokRest      // ~
	tokLBracket  // [
	tokRBracket  // ]
	tokLAngle    // <
	tokRAngle    // >
	tokLBrace    // {
	tokRBrace    // }
	tokLParen    // (
	tokRParen    // )
	tokComma     // ,
	tokPipe      // |
	tokStar      // *
	tokSlash     // /
	tokBang      // !
	tokAt        // @
	tokQuestion  // ?
	tokPercent   // %
	tokElongate  // _
	tokDot       // .
)

var tokenNames = map[tokenKind]string{
	tokEOF:      "end of input",
	tokWord:     "word",
	tokNumber:   "number",
	tokRest:     "'~'",
	tokLBracket: "'['",
	tokRBracket: "']'",
	tokLAngle:   "'<'",
	tokRAngle:   "'>'",
	tokLBrace:   "'{'",
	tokRBrace:   "'}'",
	tokLParen:   "'('",
	tokRParen:   "')'",
	tokComma:    "','",
	tokPipe:     "'|'",
	tokStar:     "'*'",
	tokSlash:    "'/'",
	tokBang:     "'!'",
	tokAt:       "'@'",
	tokQuestion: "'?'",
	tokPercent:  "'%'",
	tokElongate: "'_'",
	tokDot:      "'.'",
}

func (k tokenKind) String() string {
	if s, ok := tokenNames[k]; ok {
		return s
	}
	return fmt.Sprintf("token(%d)", int(k))
}

var punctuation = map[rune]tokenKind{
	'~': tokRest,
	'[': tokLBracket,
	']': tokRBracket,
	'<': tokLAngle,
	'>': tokRAngle,
	'{': tokLBrace,
	'}': tokRBrace,
	'(': tokLParen,
	')': tokRParen,
	',': tokComma,
	'|': tokPipe,
	'*': tokStar,
	'/': tokSlash,
	'!': tokBang,
	'@': tokAt,
	'?': tokQuestion,
	'%': tokPercent,
	'_': tokElongate,
	'.': tokDot,
}

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
	// spaced is set when whitespace precedes the token.
	spaced bool
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '#' || r == ':' || r == '_' || r == '-' || r == '\''
}

func lex(src string) ([]token, error) {
	rs := []rune(src)
	// byte offsets of every rune, for error positions
	offsets := make([]int, len(rs)+1)
	off := 0
	for i, r := range rs {
		offsets[i] = off
		off += len(string(r))
	}
	offsets[len(rs)] = off

	var toks []token
	spaced := true
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			spaced = true
			i++
			continue
		case unicode.IsDigit(r) || (r == '-' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			start := i
			i++
			for i < len(rs) && unicode.IsDigit(rs[i]) {
				i++
			}
			if i+1 < len(rs) && rs[i] == '.' && unicode.IsDigit(rs[i+1]) {
				i++
				for i < len(rs) && unicode.IsDigit(rs[i]) {
					i++
				}
			}
			if i < len(rs) && unicode.IsLetter(rs[i]) {
				// 808bd and friends are words
				for i < len(rs) && isWordRune(rs[i]) {
					i++
				}
				toks = append(toks, token{kind: tokWord, text: string(rs[start:i]), pos: offsets[start], spaced: spaced})
				break
			}
			text := string(rs[start:i])
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &ParseError{Offset: offsets[start], Msg: fmt.Sprintf("bad number %q", text)}
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: f, pos: offsets[start], spaced: spaced})
		case unicode.IsLetter(r):
			start := i
			for i < len(rs) && isWordRune(rs[i]) {
				i++
			}
			toks = append(toks, token{kind: tokWord, text: string(rs[start:i]), pos: offsets[start], spaced: spaced})
		default:
			kind, ok := punctuation[r]
			if !ok {
				return nil, &ParseError{Offset: offsets[i], Msg: fmt.Sprintf("unexpected character %q", r)}
			}
			toks = append(toks, token{kind: kind, text: string(r), pos: offsets[i], spaced: spaced})
			i++
		}
		spaced = false
	}
	toks = append(toks, token{kind: tokEOF, pos: off, spaced: spaced})
	return toks, nil
}
