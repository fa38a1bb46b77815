// Package cssxpath translates CSS selectors, including a few jQuery-style
// extensions that browsers do not support natively, into XPath 1.0
// expressions.
//
// The supported grammar covers type, universal, id, class and attribute
// selectors, the four combinators, selector groups and these pseudo-classes:
//
//	:first-child :last-child :only-child
//	:first-of-type :last-of-type :only-of-type
//	:nth-child() :nth-last-child() :nth-of-type() :nth-last-of-type()
//	:empty :root :checked :disabled :enabled :not() :has()
//
// and the extensions
//
//	:contains("text") :eq(n) :first :last
//
// Pseudo-elements and namespaces are rejected.
package cssxpath

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gorilla/css/scanner"
)

// ErrSyntax is matched by every error returned for a selector that cannot be
// translated.
var ErrSyntax = errors.New("cssxpath: invalid selector")

// SyntaxError describes a selector that cannot be translated.
type SyntaxError struct {
	Selector string
	Msg      string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("cssxpath: %s in %q", e.Msg, e.Selector)
}

// Is reports whether target is ErrSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}

// Translate converts selector into an XPath expression that matches the same
// elements anywhere in the document.
func Translate(selector string) (string, error) {
	return translate(selector, "//")
}

// TranslateRelative converts selector into an XPath expression evaluated
// against a context element, matching its descendants only.
func TranslateRelative(selector string) (string, error) {
	return translate(selector, ".//")
}

// extensions are the pseudo-classes that only this translator understands.
var extensions = map[string]bool{
	"contains": true,
	"eq":       true,
	"first":    true,
	"last":     true,
}

// HasExtensions reports whether selector uses a pseudo-class that is not
// part of standard CSS. Selectors that do not tokenize report false.
func HasExtensions(selector string) bool {
	toks, err := tokenize(selector)
	if err != nil {
		return false
	}
	for i := 0; i+1 < len(toks); i++ {
		if !isChar(toks[i], ":") {
			continue
		}
		next := toks[i+1]
		switch next.Type {
		case scanner.TokenIdent:
			if extensions[strings.ToLower(next.Value)] {
				return true
			}
		case scanner.TokenFunction:
			if extensions[functionName(next.Value)] {
				return true
			}
		}
	}
	return false
}

func translate(selector, prefix string) (string, error) {
	toks, err := tokenize(selector)
	if err != nil {
		return "", err
	}
	p := &parser{sel: selector, toks: toks}
	return p.parseGroup(prefix)
}

func isChar(t *scanner.Token, char string) bool {
	return t.Type == scanner.TokenChar && t.Value == char
}

func tokenize(selector string) ([]*scanner.Token, error) {
	if strings.TrimSpace(selector) == "" {
		return nil, &SyntaxError{Selector: selector, Msg: "empty selector"}
	}
	s := scanner.New(selector)
	var toks []*scanner.Token
	for {
		t := s.Next()
		switch t.Type {
		case scanner.TokenEOF:
			return toks, nil
		case scanner.TokenError:
			return nil, &SyntaxError{Selector: selector, Msg: fmt.Sprintf("unexpected %q", t.Value)}
		case scanner.TokenComment:
			continue
		}
		toks = append(toks, t)
	}
}

func functionName(val string) string {
	return strings.ToLower(strings.TrimSuffix(val, "("))
}

// literal quotes s as an XPath string literal.
func literal(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	args := make([]string, 0, 2*len(parts))
	for i, part := range parts {
		if i > 0 {
			args = append(args, `"'"`)
		}
		if part != "" {
			args = append(args, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}

// unescape resolves CSS backslash escapes in an identifier or the body of a
// string token.
func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		if s[i] == '\n' {
			continue
		}
		j := i
		for j < len(s) && j-i < 6 && isHex(s[j]) {
			j++
		}
		if j == i {
			b.WriteByte(s[i])
			continue
		}
		r, _ := strconv.ParseUint(s[i:j], 16, 32)
		b.WriteRune(rune(r))
		if j < len(s) && s[j] == ' ' {
			j++
		}
		i = j - 1
	}
	return b.String()
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unquote(val string) string {
	if len(val) >= 2 {
		val = val[1 : len(val)-1]
	}
	return unescape(val)
}
