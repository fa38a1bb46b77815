package cssxpath

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gorilla/css/scanner"
)

type parser struct {
	sel  string
	toks []*scanner.Token
	pos  int
}

var eof = &scanner.Token{Type: scanner.TokenEOF}

func (p *parser) peek() *scanner.Token {
	if p.pos >= len(p.toks) {
		return eof
	}
	return p.toks[p.pos]
}

func (p *parser) next() *scanner.Token {
	t := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return t
}

func (p *parser) done() bool {
	return p.pos >= len(p.toks)
}

func (p *parser) skipSpace() bool {
	skipped := false
	for p.peek().Type == scanner.TokenS {
		p.next()
		skipped = true
	}
	return skipped
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &SyntaxError{Selector: p.sel, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) unexpected(t *scanner.Token) error {
	if t.Type == scanner.TokenEOF {
		return p.errorf("unexpected end of selector")
	}
	return p.errorf("unexpected %q", t.Value)
}

// parseGroup parses a comma separated list of selectors.
func (p *parser) parseGroup(prefix string) (string, error) {
	var paths []string
	for {
		p.skipSpace()
		path, err := p.parseSelector(prefix)
		if err != nil {
			return "", err
		}
		paths = append(paths, path)
		p.skipSpace()
		if p.done() {
			break
		}
		if t := p.next(); !isChar(t, ",") {
			return "", p.unexpected(t)
		}
	}
	return strings.Join(paths, " | "), nil
}

// parseSelector parses compound selectors joined by combinators.
func (p *parser) parseSelector(prefix string) (string, error) {
	first, err := p.parseCompound()
	if err != nil {
		return "", err
	}
	path := prefix + first.String()
	path = first.filter(path)

	for {
		spaced := p.skipSpace()
		t := p.peek()
		if t.Type == scanner.TokenEOF || isChar(t, ",") {
			return path, nil
		}
		combinator := " "
		switch {
		case isChar(t, ">"), isChar(t, "+"), isChar(t, "~"):
			combinator = t.Value
			p.next()
			p.skipSpace()
		case !spaced:
			return "", p.unexpected(t)
		}

		s, err := p.parseCompound()
		if err != nil {
			return "", err
		}
		switch combinator {
		case " ":
			path += "//"
		case ">":
			path += "/"
		case "~":
			path += "/following-sibling::"
		case "+":
			path += "/following-sibling::*[1]/self::"
		}
		path = s.filter(path + s.String())
	}
}

// step is one location step: an element name test and its predicates.
type step struct {
	tag   string
	conds []string
	// post holds positional predicates over the whole node-set matched so
	// far, as jQuery applies :eq, :first and :last.
	post []string
}

func (s step) String() string {
	var b strings.Builder
	b.WriteString(s.tag)
	for _, c := range s.conds {
		b.WriteString("[" + c + "]")
	}
	return b.String()
}

// filter applies the positional predicates of s to path.
func (s step) filter(path string) string {
	for _, c := range s.post {
		path = "(" + path + ")[" + c + "]"
	}
	return path
}

// condition renders the step as a boolean expression on the context node,
// for use inside :not().
func (s step) condition() string {
	var parts []string
	if s.tag != "*" {
		parts = append(parts, "self::"+s.tag)
	}
	parts = append(parts, s.conds...)
	if len(parts) == 0 {
		return "true()"
	}
	return strings.Join(parts, " and ")
}

func (p *parser) parseCompound() (step, error) {
	s := step{tag: "*"}
	matched := false

	switch t := p.peek(); {
	case t.Type == scanner.TokenIdent:
		p.next()
		s.tag = strings.ToLower(unescape(t.Value))
		matched = true
	case isChar(t, "*"):
		p.next()
		matched = true
	}

	for {
		t := p.peek()
		switch {
		case t.Type == scanner.TokenHash:
			p.next()
			s.conds = append(s.conds, "@id="+literal(unescape(t.Value[1:])))
		case isChar(t, "."):
			p.next()
			name := p.next()
			if name.Type != scanner.TokenIdent {
				return s, p.unexpected(name)
			}
			s.conds = append(s.conds, fmt.Sprintf("contains(concat(' ', normalize-space(@class), ' '), %s)", literal(" "+unescape(name.Value)+" ")))
		case isChar(t, "["):
			p.next()
			cond, err := p.parseAttribute()
			if err != nil {
				return s, err
			}
			s.conds = append(s.conds, cond)
		case isChar(t, ":"):
			p.next()
			if err := p.parsePseudo(&s); err != nil {
				return s, err
			}
		default:
			if !matched {
				return s, p.unexpected(t)
			}
			return s, nil
		}
		matched = true
	}
}

func (p *parser) parseAttribute() (string, error) {
	p.skipSpace()
	name := p.next()
	if name.Type != scanner.TokenIdent {
		return "", p.unexpected(name)
	}
	attr := "@" + unescape(name.Value)
	p.skipSpace()

	op := p.next()
	if isChar(op, "]") {
		return attr, nil
	}
	if isChar(op, "!") {
		if eq := p.next(); !isChar(eq, "=") {
			return "", p.unexpected(eq)
		}
		op = &scanner.Token{Type: scanner.TokenChar, Value: "!="}
	}
	p.skipSpace()

	v := p.next()
	var value string
	switch v.Type {
	case scanner.TokenString:
		value = unquote(v.Value)
	case scanner.TokenIdent, scanner.TokenNumber, scanner.TokenDimension:
		value = unescape(v.Value)
	default:
		return "", p.unexpected(v)
	}
	p.skipSpace()
	if t := p.peek(); t.Type == scanner.TokenIdent && strings.EqualFold(t.Value, "i") {
		// Case-insensitivity flags are accepted and ignored.
		p.next()
		p.skipSpace()
	}
	if end := p.next(); !isChar(end, "]") {
		return "", p.unexpected(end)
	}

	lit := literal(value)
	switch {
	case isChar(op, "="):
		return attr + "=" + lit, nil
	case isChar(op, "!="):
		return "not(" + attr + "=" + lit + ")", nil
	case op.Type == scanner.TokenIncludes:
		return fmt.Sprintf("contains(concat(' ', normalize-space(%s), ' '), %s)", attr, literal(" "+value+" ")), nil
	case op.Type == scanner.TokenDashMatch:
		return fmt.Sprintf("(%s=%s or starts-with(%s, %s))", attr, lit, attr, literal(value+"-")), nil
	case op.Type == scanner.TokenPrefixMatch:
		return fmt.Sprintf("starts-with(%s, %s)", attr, lit), nil
	case op.Type == scanner.TokenSuffixMatch:
		return fmt.Sprintf("substring(%s, string-length(%s) - string-length(%s) + 1)=%s", attr, attr, lit, lit), nil
	case op.Type == scanner.TokenSubstringMatch:
		return fmt.Sprintf("contains(%s, %s)", attr, lit), nil
	}
	return "", p.unexpected(op)
}

func (p *parser) parsePseudo(s *step) error {
	t := p.next()
	switch t.Type {
	case scanner.TokenIdent:
		return p.pseudoClass(s, strings.ToLower(t.Value))
	case scanner.TokenFunction:
		args, err := p.arguments()
		if err != nil {
			return err
		}
		return p.pseudoFunction(s, functionName(t.Value), args)
	}
	// "::" pseudo-elements and anything else.
	return p.unexpected(t)
}

// arguments collects the tokens up to the parenthesis closing the function
// token just consumed.
func (p *parser) arguments() ([]*scanner.Token, error) {
	depth := 1
	start := p.pos
	for {
		t := p.next()
		switch {
		case t.Type == scanner.TokenEOF:
			return nil, p.errorf("unclosed parenthesis")
		case t.Type == scanner.TokenFunction, isChar(t, "("):
			depth++
		case isChar(t, ")"):
			depth--
			if depth == 0 {
				return p.toks[start : p.pos-1], nil
			}
		}
	}
}

func (p *parser) pseudoClass(s *step, name string) error {
	ofType := "preceding-sibling::" + s.tag
	ofTypeNext := "following-sibling::" + s.tag
	switch name {
	case "first-child":
		s.conds = append(s.conds, "not(preceding-sibling::*)")
	case "last-child":
		s.conds = append(s.conds, "not(following-sibling::*)")
	case "only-child":
		s.conds = append(s.conds, "not(preceding-sibling::*) and not(following-sibling::*)")
	case "first-of-type", "last-of-type", "only-of-type":
		if s.tag == "*" {
			return p.errorf(":%s requires a type selector", name)
		}
		switch name {
		case "first-of-type":
			s.conds = append(s.conds, "not("+ofType+")")
		case "last-of-type":
			s.conds = append(s.conds, "not("+ofTypeNext+")")
		default:
			s.conds = append(s.conds, "not("+ofType+") and not("+ofTypeNext+")")
		}
	case "empty":
		s.conds = append(s.conds, "not(*) and not(normalize-space())")
	case "root":
		s.conds = append(s.conds, "not(parent::*)")
	case "checked":
		s.conds = append(s.conds, "(@checked or @selected)")
	case "disabled":
		s.conds = append(s.conds, "@disabled")
	case "enabled":
		s.conds = append(s.conds, "not(@disabled)")
	case "first":
		s.post = append(s.post, "1")
	case "last":
		s.post = append(s.post, "last()")
	default:
		return p.errorf("unsupported pseudo-class :%s", name)
	}
	return nil
}

func (p *parser) pseudoFunction(s *step, name string, args []*scanner.Token) error {
	switch name {
	case "contains":
		text, err := p.stringArgument(args)
		if err != nil {
			return err
		}
		s.conds = append(s.conds, "contains(string(.), "+literal(text)+")")
	case "eq":
		n, err := strconv.Atoi(rawArgument(args))
		if err != nil || n < 0 {
			return p.errorf("invalid :eq index %q", rawArgument(args))
		}
		s.post = append(s.post, strconv.Itoa(n+1))
	case "nth-child", "nth-last-child", "nth-of-type", "nth-last-of-type":
		a, b, err := parseNth(rawArgument(args))
		if err != nil {
			return p.errorf("invalid :%s argument %q", name, rawArgument(args))
		}
		axis := "preceding-sibling::"
		if strings.Contains(name, "last") {
			axis = "following-sibling::"
		}
		test := "*"
		if strings.HasSuffix(name, "of-type") {
			if s.tag == "*" {
				return p.errorf(":%s requires a type selector", name)
			}
			test = s.tag
		}
		s.conds = append(s.conds, nthCondition("(count("+axis+test+") + 1)", a, b))
	case "not":
		sub := &parser{sel: p.sel, toks: args}
		sub.skipSpace()
		inner, err := sub.parseCompound()
		if err != nil {
			return err
		}
		sub.skipSpace()
		if !sub.done() {
			return sub.unexpected(sub.peek())
		}
		if len(inner.post) > 0 {
			return p.errorf("positional pseudo-classes are not allowed in :not()")
		}
		s.conds = append(s.conds, "not("+inner.condition()+")")
	case "has":
		sub := &parser{sel: p.sel, toks: args}
		sub.skipSpace()
		prefix := ".//"
		if isChar(sub.peek(), ">") {
			sub.next()
			sub.skipSpace()
			prefix = "./"
		}
		path, err := sub.parseGroup(prefix)
		if err != nil {
			return err
		}
		s.conds = append(s.conds, path)
	default:
		return p.errorf("unsupported pseudo-class :%s()", name)
	}
	return nil
}

// stringArgument returns the single string or identifier in args.
func (p *parser) stringArgument(args []*scanner.Token) (string, error) {
	var vals []*scanner.Token
	for _, t := range args {
		if t.Type != scanner.TokenS {
			vals = append(vals, t)
		}
	}
	if len(vals) != 1 {
		return "", p.errorf("expected one argument, got %d", len(vals))
	}
	switch vals[0].Type {
	case scanner.TokenString:
		return unquote(vals[0].Value), nil
	case scanner.TokenIdent, scanner.TokenNumber:
		return unescape(vals[0].Value), nil
	}
	return "", p.unexpected(vals[0])
}

func rawArgument(args []*scanner.Token) string {
	var b strings.Builder
	for _, t := range args {
		if t.Type != scanner.TokenS {
			b.WriteString(t.Value)
		}
	}
	return strings.ToLower(b.String())
}

// parseNth parses the an+b microsyntax.
func parseNth(arg string) (a, b int, err error) {
	switch arg {
	case "odd":
		return 2, 1, nil
	case "even":
		return 2, 0, nil
	case "":
		return 0, 0, fmt.Errorf("empty")
	}
	i := strings.IndexByte(arg, 'n')
	if i < 0 {
		b, err = strconv.Atoi(arg)
		return 0, b, err
	}
	switch coef := arg[:i]; coef {
	case "", "+":
		a = 1
	case "-":
		a = -1
	default:
		if a, err = strconv.Atoi(coef); err != nil {
			return 0, 0, err
		}
	}
	if rest := arg[i+1:]; rest != "" {
		if rest[0] != '+' && rest[0] != '-' {
			return 0, 0, fmt.Errorf("bad offset %q", rest)
		}
		if b, err = strconv.Atoi(rest); err != nil {
			return 0, 0, err
		}
	}
	return a, b, nil
}

// nthCondition matches positions index such that index = a*k + b for some
// k >= 0.
func nthCondition(index string, a, b int) string {
	if a == 0 {
		return fmt.Sprintf("%s = %d", index, b)
	}
	offset := index
	switch {
	case b > 0:
		offset = fmt.Sprintf("(%s - %d)", index, b)
	case b < 0:
		offset = fmt.Sprintf("(%s + %d)", index, -b)
	}
	if a == 1 {
		return fmt.Sprintf("%s >= 0", offset)
	}
	if a == -1 {
		return fmt.Sprintf("%s <= 0", offset)
	}
	return fmt.Sprintf("%s mod %d = 0 and %s div %d >= 0", offset, a, offset, a)
}
