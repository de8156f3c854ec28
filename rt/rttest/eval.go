package rttest

import (
	"fmt"
	"strconv"

	"github.com/yasl-lang/yaslapi-go/rt"
)

// The statement language evaluated here is the minimum a lifecycle test
// needs: assignment, compound assignment, integer/float arithmetic, string
// concatenation, assert, echo, host-function calls and a trailing bare
// expression. Anything else is a syntax error.

type stmt interface{ isStmt() }

type assignStmt struct {
	name     string
	compound bool // += instead of =
	rhs      expr
}

type echoStmt struct{ e expr }
type assertStmt struct{ e expr }
type exprStmt struct{ e expr }

func (assignStmt) isStmt() {}
func (echoStmt) isStmt()   {}
func (assertStmt) isStmt() {}
func (exprStmt) isStmt()   {}

type expr interface{ isExpr() }

type litExpr struct{ v val }
type identExpr struct{ name string }
type binExpr struct {
	op   byte
	l, r expr
}
type callExpr struct {
	name string
	args []expr
}

func (litExpr) isExpr()   {}
func (identExpr) isExpr() {}
func (binExpr) isExpr()   {}
func (callExpr) isExpr()  {}

// Lexer.

type tokKind int

const (
	tEOF tokKind = iota
	tIdent
	tInt
	tFloat
	tStr
	tSym
)

type token struct {
	kind tokKind
	text string
	i    int64
	f    float64
}

type lexer struct {
	src string
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			l.pos++
			continue
		}
		break
	}
	if l.pos >= len(l.src) {
		return token{kind: tEOF}, nil
	}
	c := l.src[l.pos]
	switch {
	case isIdentStart(c):
		start := l.pos
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tIdent, text: l.src[start:l.pos]}, nil
	case c >= '0' && c <= '9':
		start := l.pos
		isFloat := false
		for l.pos < len(l.src) {
			ch := l.src[l.pos]
			if ch >= '0' && ch <= '9' {
				l.pos++
				continue
			}
			if ch == '.' && !isFloat {
				isFloat = true
				l.pos++
				continue
			}
			break
		}
		text := l.src[start:l.pos]
		if isFloat {
			f, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return token{}, fmt.Errorf("bad float literal %q", text)
			}
			return token{kind: tFloat, f: f}, nil
		}
		i, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return token{}, fmt.Errorf("bad int literal %q", text)
		}
		return token{kind: tInt, i: i}, nil
	case c == '\'' || c == '"':
		quote := c
		l.pos++
		start := l.pos
		for l.pos < len(l.src) && l.src[l.pos] != quote {
			l.pos++
		}
		if l.pos >= len(l.src) {
			return token{}, fmt.Errorf("unterminated string literal")
		}
		text := l.src[start:l.pos]
		l.pos++
		return token{kind: tStr, text: text}, nil
	case c == '+' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '=':
		l.pos += 2
		return token{kind: tSym, text: "+="}, nil
	case c == '+' || c == '-' || c == '*' || c == '/' || c == '%' ||
		c == '(' || c == ')' || c == ',' || c == ';' || c == '=':
		l.pos++
		return token{kind: tSym, text: string(c)}, nil
	}
	return token{}, fmt.Errorf("unexpected character %q", c)
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '$'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

// Parser.

type parser struct {
	lex  lexer
	tok  token
	err  error
	prog []stmt
}

func parse(src string) ([]stmt, error) {
	p := &parser{lex: lexer{src: src}}
	p.advance()
	for p.err == nil && p.tok.kind != tEOF {
		st := p.statement()
		if p.err != nil {
			return nil, p.err
		}
		p.prog = append(p.prog, st)
		// Statement separator; optional before EOF.
		if p.tok.kind == tSym && p.tok.text == ";" {
			p.advance()
		} else if p.tok.kind != tEOF {
			return nil, fmt.Errorf("expected ';'")
		}
	}
	return p.prog, p.err
}

func (p *parser) advance() {
	if p.err != nil {
		return
	}
	p.tok, p.err = p.lex.next()
}

func (p *parser) statement() stmt {
	if p.tok.kind == tIdent {
		switch p.tok.text {
		case "echo":
			p.advance()
			return echoStmt{e: p.expression()}
		case "assert":
			p.advance()
			return assertStmt{e: p.expression()}
		}
		// Lookahead for assignment without consuming expression tokens.
		save := *p
		name := p.tok.text
		p.advance()
		if p.tok.kind == tSym && (p.tok.text == "=" || p.tok.text == "+=") {
			compound := p.tok.text == "+="
			p.advance()
			return assignStmt{name: name, compound: compound, rhs: p.expression()}
		}
		*p = save
	}
	return exprStmt{e: p.expression()}
}

func (p *parser) expression() expr {
	e := p.term()
	for p.err == nil && p.tok.kind == tSym && (p.tok.text == "+" || p.tok.text == "-") {
		op := p.tok.text[0]
		p.advance()
		e = binExpr{op: op, l: e, r: p.term()}
	}
	return e
}

func (p *parser) term() expr {
	e := p.factor()
	for p.err == nil && p.tok.kind == tSym &&
		(p.tok.text == "*" || p.tok.text == "/" || p.tok.text == "%") {
		op := p.tok.text[0]
		p.advance()
		e = binExpr{op: op, l: e, r: p.factor()}
	}
	return e
}

func (p *parser) factor() expr {
	switch p.tok.kind {
	case tInt:
		e := litExpr{v: intVal(p.tok.i)}
		p.advance()
		return e
	case tFloat:
		e := litExpr{v: floatVal(p.tok.f)}
		p.advance()
		return e
	case tStr:
		e := litExpr{v: strVal(p.tok.text)}
		p.advance()
		return e
	case tIdent:
		name := p.tok.text
		p.advance()
		switch name {
		case "true":
			return litExpr{v: boolVal(true)}
		case "false":
			return litExpr{v: boolVal(false)}
		case "undef":
			return litExpr{v: undefVal()}
		}
		if p.tok.kind == tSym && p.tok.text == "(" {
			p.advance()
			var args []expr
			for p.err == nil && !(p.tok.kind == tSym && p.tok.text == ")") {
				if len(args) > 0 {
					if p.tok.kind != tSym || p.tok.text != "," {
						p.fail("expected ','")
						return nil
					}
					p.advance()
				}
				args = append(args, p.expression())
			}
			p.advance() // ')'
			return callExpr{name: name, args: args}
		}
		return identExpr{name: name}
	case tSym:
		if p.tok.text == "(" {
			p.advance()
			e := p.expression()
			if p.tok.kind != tSym || p.tok.text != ")" {
				p.fail("expected ')'")
				return nil
			}
			p.advance()
			return e
		}
	}
	p.fail("unexpected token")
	return nil
}

func (p *parser) fail(msg string) {
	if p.err == nil {
		p.err = fmt.Errorf("%s", msg)
	}
}

// Evaluator.

// eval runs the program against the state's globals. It returns the value
// of the final statement if that statement was a bare expression, which is
// what ExecuteREPL surfaces.
func (s *State) eval(prog []stmt) (*val, rt.Code) {
	var last *val
	for i, st := range prog {
		last = nil
		switch st := st.(type) {
		case assignStmt:
			slot, ok := s.globals[st.name]
			if !ok {
				return nil, rt.SyntaxError
			}
			v, code := s.evalExpr(st.rhs)
			if code != rt.Success {
				return nil, code
			}
			if st.compound {
				sum, code := binop('+', *slot, v)
				if code != rt.Success {
					return nil, code
				}
				v = sum
			}
			*slot = v
		case echoStmt:
			v, code := s.evalExpr(st.e)
			if code != rt.Success {
				return nil, code
			}
			fmt.Fprintln(s.eng.output(), formatVal(v))
		case assertStmt:
			v, code := s.evalExpr(st.e)
			if code != rt.Success {
				return nil, code
			}
			if !truthy(v) {
				return nil, rt.AssertError
			}
		case exprStmt:
			v, code := s.evalExpr(st.e)
			if code != rt.Success {
				return nil, code
			}
			if i == len(prog)-1 {
				last = &v
			}
		}
	}
	return last, rt.Success
}

func (s *State) evalExpr(e expr) (val, rt.Code) {
	switch e := e.(type) {
	case litExpr:
		return e.v, rt.Success
	case identExpr:
		slot, ok := s.globals[e.name]
		if !ok {
			return val{}, rt.SyntaxError
		}
		return *slot, rt.Success
	case binExpr:
		l, code := s.evalExpr(e.l)
		if code != rt.Success {
			return val{}, code
		}
		r, code := s.evalExpr(e.r)
		if code != rt.Success {
			return val{}, code
		}
		return binop(e.op, l, r)
	case callExpr:
		return s.evalCall(e)
	}
	return val{}, rt.SyntaxError
}

// evalCall invokes a host function through the stack protocol: the callable
// slot is pushed first, then arguments left to right, so the left-most
// argument sits directly above the function slot and the right-most is on
// top when the callable runs.
func (s *State) evalCall(e callExpr) (val, rt.Code) {
	slot, ok := s.globals[e.name]
	if !ok {
		return val{}, rt.SyntaxError
	}
	fv := *slot
	if fv.tag != rt.TagCFn {
		return val{}, rt.TypeError
	}
	if fv.fn.numArgs >= 0 && fv.fn.numArgs != len(e.args) {
		return val{}, rt.TypeError
	}

	base := len(s.stack)
	s.push(fv)
	for _, a := range e.args {
		v, code := s.evalExpr(a)
		if code != rt.Success {
			s.stack = s.stack[:base]
			return val{}, code
		}
		s.push(v)
	}

	nret := fv.fn.fn(s)
	if nret < 0 {
		s.stack = s.stack[:base]
		return val{}, rt.Error
	}
	if nret > len(s.stack)-base {
		// The callable claimed more results than it left behind.
		s.stack = s.stack[:base]
		return val{}, rt.Error
	}

	results := make([]val, nret)
	copy(results, s.stack[len(s.stack)-nret:])
	s.stack = s.stack[:base]

	out := undefVal()
	if nret > 0 {
		out = results[0]
	}
	return out, rt.Success
}

func binop(op byte, l, r val) (val, rt.Code) {
	if op == '+' && l.tag == rt.TagStr && r.tag == rt.TagStr {
		return strVal(l.s + r.s), rt.Success
	}

	numeric := func(v val) bool { return v.tag == rt.TagInt || v.tag == rt.TagFloat }
	if !numeric(l) || !numeric(r) {
		return val{}, rt.TypeError
	}

	if l.tag == rt.TagInt && r.tag == rt.TagInt {
		switch op {
		case '+':
			return intVal(l.i + r.i), rt.Success
		case '-':
			return intVal(l.i - r.i), rt.Success
		case '*':
			return intVal(l.i * r.i), rt.Success
		case '/':
			if r.i == 0 {
				return val{}, rt.DivideByZeroError
			}
			return intVal(l.i / r.i), rt.Success
		case '%':
			if r.i == 0 {
				return val{}, rt.DivideByZeroError
			}
			return intVal(l.i % r.i), rt.Success
		}
		return val{}, rt.SyntaxError
	}

	lf, rf := toFloat(l), toFloat(r)
	switch op {
	case '+':
		return floatVal(lf + rf), rt.Success
	case '-':
		return floatVal(lf - rf), rt.Success
	case '*':
		return floatVal(lf * rf), rt.Success
	case '/':
		return floatVal(lf / rf), rt.Success
	}
	return val{}, rt.TypeError
}

func toFloat(v val) float64 {
	if v.tag == rt.TagInt {
		return float64(v.i)
	}
	return v.f
}

func truthy(v val) bool {
	switch v.tag {
	case rt.TagBool:
		return v.b
	case rt.TagUndef:
		return false
	}
	return true
}
