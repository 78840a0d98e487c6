package expr

import (
	"errors"
	"strconv"
	"unicode"
	"unicode/utf8"

	"github.com/danielpatrickdp/potential/internal/fault"
)

// #region tokens
type tokKind int

const (
	tokEOF tokKind = iota
	tokNum
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
)

type token struct {
	kind tokKind
	text string
	num  float64
	pos  int
}

// keywords that would introduce statements or non-arithmetic constructs.
var keywords = map[string]bool{
	"lambda": true, "import": true, "from": true, "def": true, "class": true,
	"for": true, "while": true, "if": true, "else": true, "in": true,
	"is": true, "and": true, "or": true, "not": true, "return": true,
	"yield": true, "with": true, "as": true, "global": true, "del": true,
	"assert": true, "await": true, "async": true, "exec": true, "eval": true,
}

// #endregion tokens

// #region lex
// lex splits src into tokens. It rejects every character that has no place
// in an arithmetic expression.
func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case isDigit(c) || (c == '.' && i+1 < len(src) && isDigit(src[i+1])):
			end := scanNumber(src, i)
			v, err := strconv.ParseFloat(src[i:end], 64)
			if err != nil && !errors.Is(err, strconv.ErrRange) {
				return nil, fault.Expression(src, i, "malformed number "+strconv.Quote(src[i:end]))
			}
			if end < len(src) && isIdentStart(src[end]) {
				return nil, fault.Expression(src, end, "malformed number "+strconv.Quote(src[i:end+1]))
			}
			toks = append(toks, token{kind: tokNum, text: src[i:end], num: v, pos: i})
			i = end
		case isIdentStart(c):
			end := i + 1
			for end < len(src) && isIdentPart(src[end]) {
				end++
			}
			word := src[i:end]
			if keywords[word] {
				return nil, fault.Expression(src, i, "keyword "+strconv.Quote(word)+" is not allowed")
			}
			toks = append(toks, token{kind: tokIdent, text: word, pos: i})
			i = end
		case c == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case c == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case c == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		default:
			op, err := scanOp(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}
	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func scanNumber(src string, i int) int {
	for i < len(src) && isDigit(src[i]) {
		i++
	}
	if i < len(src) && src[i] == '.' {
		i++
		for i < len(src) && isDigit(src[i]) {
			i++
		}
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && isDigit(src[j]) {
			for j < len(src) && isDigit(src[j]) {
				j++
			}
			i = j
		}
	}
	return i
}

func scanOp(src string, i int) (string, error) {
	two := ""
	if i+1 < len(src) {
		two = src[i : i+2]
	}
	switch two {
	case "**", "//", "<=", ">=", "==", "!=":
		return two, nil
	}
	switch c := src[i]; c {
	case '+', '-', '*', '/', '%', '<', '>':
		return string(c), nil
	case '.':
		return "", fault.Expression(src, i, "attribute access is not allowed")
	case '[', ']':
		return "", fault.Expression(src, i, "indexing is not allowed")
	case '=':
		return "", fault.Expression(src, i, "assignment is not allowed")
	case '^':
		return "", fault.Expression(src, i, "operator '^' is not supported, use '**' for powers")
	case '"', '\'':
		return "", fault.Expression(src, i, "string literals are not allowed")
	default:
		r, _ := utf8.DecodeRuneInString(src[i:])
		return "", fault.Expression(src, i, "unexpected character "+strconv.QuoteRune(r))
	}
}

// IsIdentifier reports whether name can be referenced from an expression.
func IsIdentifier(name string) bool {
	if name == "" || !isIdentStart(name[0]) || keywords[name] {
		return false
	}
	for i := 1; i < len(name); i++ {
		if !isIdentPart(name[i]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c < utf8.RuneSelf && unicode.IsLetter(rune(c)))
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }

// #endregion lex
