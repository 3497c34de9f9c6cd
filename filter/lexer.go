package filter

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenIdent
	tokenString
	tokenNumber
	tokenParam
	tokenLParen
	tokenRParen
	tokenComma
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// lexer splits a filter expression into tokens. Identifiers may carry
// slash-separated path segments (customer/email); parameters start with
// an at sign.
type lexer struct {
	input string
	pos   int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
	if l.pos >= len(l.input) {
		return token{kind: tokenEOF, pos: l.pos}, nil
	}
	start := l.pos
	c := l.input[l.pos]
	switch {
	case c == '(':
		l.pos++
		return token{kind: tokenLParen, text: "(", pos: start}, nil
	case c == ')':
		l.pos++
		return token{kind: tokenRParen, text: ")", pos: start}, nil
	case c == ',':
		l.pos++
		return token{kind: tokenComma, text: ",", pos: start}, nil
	case c == '\'':
		return l.readString()
	case c == '@':
		l.pos++
		name := l.readWord(false)
		if name == "" {
			return token{}, fmt.Errorf("expected a parameter name at position %d", start)
		}
		return token{kind: tokenParam, text: name, pos: start}, nil
	case c == '-' || c >= '0' && c <= '9':
		return l.readNumber()
	case isIdentStart(c):
		word := l.readWord(true)
		// datetime'...' and guid'...' literals carry a quoted payload
		if l.pos < len(l.input) && l.input[l.pos] == '\'' {
			lower := strings.ToLower(word)
			if lower == "datetime" || lower == "date" || lower == "guid" {
				payload, err := l.readString()
				if err != nil {
					return token{}, err
				}
				return token{kind: tokenString, text: payload.text, pos: start}, nil
			}
		}
		return token{kind: tokenIdent, text: word, pos: start}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q at position %d", c, start)
}

func (l *lexer) readString() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var b strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '\'' {
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
				b.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return token{kind: tokenString, text: b.String(), pos: start}, nil
		}
		b.WriteByte(c)
		l.pos++
	}
	return token{}, fmt.Errorf("unterminated string starting at position %d", start)
}

func (l *lexer) readNumber() (token, error) {
	start := l.pos
	if l.input[l.pos] == '-' {
		l.pos++
	}
	seenDot := false
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '.' && !seenDot {
			seenDot = true
			l.pos++
			continue
		}
		if c < '0' || c > '9' {
			break
		}
		l.pos++
	}
	text := l.input[start:l.pos]
	if text == "-" {
		return token{}, fmt.Errorf("malformed number at position %d", start)
	}
	return token{kind: tokenNumber, text: text, pos: start}, nil
}

// readWord consumes an identifier; withPath additionally accepts slash
// separated segments so association paths stay one token.
func (l *lexer) readWord(withPath bool) string {
	start := l.pos
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if isIdentPart(c) || (withPath && c == '/' && l.pos+1 < len(l.input) && isIdentStart(l.input[l.pos+1])) {
			l.pos++
			continue
		}
		break
	}
	return l.input[start:l.pos]
}

func isIdentStart(c byte) bool {
	return c == '_' || c == '$' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
