// Copyright 2012, Fedor Indutny.

package parse

import (
	"fmt"

	"github.com/indutny/candor/internal/ast"
)

// Parser is a recursive-descent parser with one token of lookahead
// and explicit snapshot/restore for the one construct (the
// `name(params) { body }` statement sugar) that needs more.
type Parser struct {
	lex *Lexer
	cur Token
}

// SyntaxError is a compile-time error, reported with filename, line,
// column, and message via the isolate's error slot. Line/column are
// resolved later from Pos by package isolate; the parser itself
// only knows byte offsets.
type SyntaxError struct {
	Pos     ast.Pos
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Pos, e.Message)
}

// Parse compiles src into a Program AST.
func Parse(src string) (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			if se, ok := r.(*SyntaxError); ok {
				err = se
				return
			}
			panic(r)
		}
	}()
	p := &Parser{lex: NewLexer(src)}
	p.advance()
	body := p.parseStatements(TokEOF)
	return ast.NewProgram(0, body), nil
}

func (p *Parser) advance() {
	t, err := p.lex.Next()
	if err != nil {
		p.fail(ast.Pos(p.lex.offset), "%s", err.Error())
	}
	p.cur = t
}

func (p *Parser) fail(pos ast.Pos, format string, args ...interface{}) {
	panic(&SyntaxError{Pos: pos, Message: fmt.Sprintf(format, args...)})
}

func (p *Parser) expect(t TokenType, what string) Token {
	if p.cur.Type != t {
		p.fail(p.cur.Pos, "expected %s", what)
	}
	tok := p.cur
	p.advance()
	return tok
}

func (p *Parser) at(t TokenType) bool { return p.cur.Type == t }

// snapshot/restore back out of a partially-consumed function-literal
// sugar attempt (`name(...)` that turns out not to be followed by a
// `{`), so the input can be reparsed as an ordinary expression
// statement instead.
type snapshot struct {
	offset int
	cur    Token
}

func (p *Parser) snapshot() snapshot { return snapshot{p.lex.offset, p.cur} }
func (p *Parser) restore(s snapshot) {
	p.lex.offset = s.offset
	p.cur = s.cur
}

// parseStatements reads statements until it sees `end` (TokEOF or
// TokBraceClose).
func (p *Parser) parseStatements(end TokenType) []ast.Node {
	var body []ast.Node
	for !p.at(end) && !p.at(TokEOF) {
		body = append(body, p.parseStatement())
	}
	return body
}

func (p *Parser) parseBlock() []ast.Node {
	p.expect(TokBraceOpen, "'{'")
	body := p.parseStatements(TokBraceClose)
	p.expect(TokBraceClose, "'}'")
	return body
}

// atBlockEnd reports whether the current token closes the enclosing
// block or ends the input; a `return` followed by one of these has no
// value, recognized this way instead of by a dedicated terminator
// token (this grammar has no required `;`).
func (p *Parser) atBlockEnd() bool {
	switch p.cur.Type {
	case TokBraceClose, TokEOF:
		return true
	}
	return false
}

func (p *Parser) parseStatement() ast.Node {
	pos := p.cur.Pos
	switch p.cur.Type {
	case TokIf:
		p.advance()
		p.expect(TokParenOpen, "'('")
		cond := p.parseExpr()
		p.expect(TokParenClose, "')'")
		then := p.parseBlock()
		var els []ast.Node
		if p.at(TokElse) {
			p.advance()
			if p.at(TokIf) {
				els = []ast.Node{p.parseStatement()}
			} else {
				els = p.parseBlock()
			}
		}
		return ast.NewIf(pos, cond, then, els)

	case TokWhile:
		p.advance()
		p.expect(TokParenOpen, "'('")
		cond := p.parseExpr()
		p.expect(TokParenClose, "')'")
		body := p.parseBlock()
		return ast.NewWhile(pos, cond, body)

	case TokBreak:
		p.advance()
		return ast.NewBreak(pos)

	case TokContinue:
		p.advance()
		return ast.NewContinue(pos)

	case TokReturn:
		p.advance()
		var v ast.Node
		if !p.atBlockEnd() {
			v = p.parseExpr()
		}
		return ast.NewReturn(pos, v)

	case TokScope:
		p.advance()
		p.expect(TokBraceOpen, "'{'")
		var names []string
		for !p.at(TokBraceClose) {
			names = append(names, p.expect(TokName, "identifier").Value)
			if p.at(TokComma) {
				p.advance()
			}
		}
		p.expect(TokBraceClose, "'}'")
		return ast.NewScopeDecl(pos, names)

	case TokName:
		// Function-declaration sugar: `name(params) { body }`
		// desugars to `name = (params) { body }`.
		s := p.snapshot()
		name := p.cur.Value
		p.advance()
		if p.at(TokParenOpen) {
			if fn, ok := p.tryFunctionLit(pos, name); ok {
				return ast.NewExprStmt(pos, ast.NewAssign(pos, ast.NewIdent(pos, name), fn))
			}
		}
		p.restore(s)
		expr := p.parseExpr()
		return ast.NewExprStmt(pos, expr)

	default:
		expr := p.parseExpr()
		return ast.NewExprStmt(pos, expr)
	}
}

// tryFunctionLit attempts to parse `(params) { body }` starting at
// the current `(`, where params is a (possibly empty) list of bare
// names optionally ending in `...rest`. It reports ok=false (leaving
// the parser's position unspecified — the caller must have already
// taken a snapshot) if the parenthesized list is not a valid
// parameter list or is not followed by `{`.
func (p *Parser) tryFunctionLit(pos ast.Pos, name string) (fn *ast.FunctionLit, ok bool) {
	defer func() {
		if recover() != nil {
			fn, ok = nil, false
		}
	}()
	p.expect(TokParenOpen, "'('")
	var params []string
	variadic := false
	for !p.at(TokParenClose) {
		if p.at(TokEllipsis) {
			p.advance()
			params = append(params, p.expect(TokName, "identifier").Value)
			variadic = true
			break
		}
		params = append(params, p.expect(TokName, "identifier").Value)
		if p.at(TokComma) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(TokParenClose, "')'")
	if !p.at(TokBraceOpen) {
		return nil, false
	}
	body := p.parseBlock()
	return ast.NewFunctionLit(pos, name, params, body, variadic), true
}
