// Copyright 2012, Fedor Indutny.

package parse

import (
	"github.com/indutny/candor/internal/ast"
)

// Precedence climbing table, roughly C/JS-like, with the logical
// operators at the lowest levels. Assignment is handled by parseExpr.
var binPrec = map[TokenType]int{
	TokLOr:  1,
	TokLAnd: 2,
	TokBOr:  3,
	TokBXor: 4,
	TokBAnd: 5,
	TokEq:   6, TokNe: 6,
	TokLt: 7, TokGt: 7, TokLe: 7, TokGe: 7,
	TokShl: 8, TokShr: 8, TokUShr: 8,
	TokAdd: 9, TokSub: 9,
	TokMul: 10, TokDiv: 10, TokMod: 10,
}

var opText = map[TokenType]string{
	TokLOr: "||", TokLAnd: "&&",
	TokBOr: "|", TokBXor: "^", TokBAnd: "&",
	TokEq: "==", TokNe: "!=",
	TokLt: "<", TokGt: ">", TokLe: "<=", TokGe: ">=",
	TokShl: "<<", TokShr: ">>", TokUShr: ">>>",
	TokAdd: "+", TokSub: "-",
	TokMul: "*", TokDiv: "/", TokMod: "%",
}

// parseExpr parses a full expression, including assignment.
func (p *Parser) parseExpr() ast.Node {
	left := p.parseBinary(1)
	if p.at(TokAssign) {
		pos := p.cur.Pos
		p.advance()
		value := p.parseExpr()
		return ast.NewAssign(pos, left, value)
	}
	return left
}

func (p *Parser) parseBinary(minPrec int) ast.Node {
	left := p.parseUnary()
	for {
		prec, ok := binPrec[p.cur.Type]
		if !ok || prec < minPrec {
			return left
		}
		op := opText[p.cur.Type]
		pos := p.cur.Pos
		p.advance()
		right := p.parseBinary(prec + 1)
		left = ast.NewBinOp(pos, op, left, right)
	}
}

func (p *Parser) parseUnary() ast.Node {
	pos := p.cur.Pos
	switch p.cur.Type {
	case TokNot:
		p.advance()
		return ast.NewUnOp(pos, "!", false, p.parseUnary())
	case TokSub:
		p.advance()
		return ast.NewUnOp(pos, "-", false, p.parseUnary())
	case TokTypeof:
		p.advance()
		return ast.NewUnOp(pos, "typeof", false, p.parseUnary())
	case TokSizeof:
		p.advance()
		return ast.NewUnOp(pos, "sizeof", false, p.parseUnary())
	case TokKeysof:
		p.advance()
		return ast.NewUnOp(pos, "keysof", false, p.parseUnary())
	case TokClone:
		p.advance()
		return ast.NewUnOp(pos, "clone", false, p.parseUnary())
	case TokDelete:
		p.advance()
		return ast.NewUnOp(pos, "delete", false, p.parseUnary())
	case TokInc:
		p.advance()
		return ast.NewUnOp(pos, "++", false, p.parseUnary())
	case TokDec:
		p.advance()
		return ast.NewUnOp(pos, "--", false, p.parseUnary())
	default:
		return p.parsePostfix()
	}
}

func (p *Parser) parsePostfix() ast.Node {
	expr := p.parsePrimary()
	for {
		pos := p.cur.Pos
		switch p.cur.Type {
		case TokDot:
			p.advance()
			name := p.expect(TokName, "property name").Value
			expr = ast.NewMember(pos, expr, name, nil, false)
		case TokArrayOpen:
			p.advance()
			idx := p.parseExpr()
			p.expect(TokArrayClose, "']'")
			expr = ast.NewMember(pos, expr, "", idx, true)
		case TokParenOpen:
			p.advance()
			var args []ast.Node
			for !p.at(TokParenClose) {
				args = append(args, p.parseExpr())
				if p.at(TokComma) {
					p.advance()
				} else {
					break
				}
			}
			p.expect(TokParenClose, "')'")
			expr = ast.NewCall(pos, expr, args)
		case TokInc:
			p.advance()
			expr = ast.NewUnOp(pos, "++", true, expr)
		case TokDec:
			p.advance()
			expr = ast.NewUnOp(pos, "--", true, expr)
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() ast.Node {
	pos := p.cur.Pos
	switch p.cur.Type {
	case TokNumber:
		v := p.cur.Number
		p.advance()
		return ast.NewNumberLit(pos, v)
	case TokString:
		v := p.cur.Value
		p.advance()
		return ast.NewStringLit(pos, v)
	case TokTrue:
		p.advance()
		return ast.NewBoolLit(pos, true)
	case TokFalse:
		p.advance()
		return ast.NewBoolLit(pos, false)
	case TokNil:
		p.advance()
		return ast.NewNilLit(pos)
	case TokName:
		name := p.cur.Value
		p.advance()
		return ast.NewIdent(pos, name)
	case TokBraceOpen:
		return p.parseObjectLit()
	case TokArrayOpen:
		return p.parseArrayLit()
	case TokParenOpen:
		if fn, ok := p.tryFunctionLit(pos, ""); ok {
			return fn
		}
		p.fail(pos, "expected anonymous function literal")
	}
	p.fail(pos, "unexpected token in expression")
	return nil
}

func (p *Parser) parseObjectLit() ast.Node {
	pos := p.cur.Pos
	p.advance() // '{'
	var keys []string
	var values []ast.Node
	for !p.at(TokBraceClose) {
		var key string
		switch p.cur.Type {
		case TokName:
			key = p.cur.Value
		case TokString:
			key = p.cur.Value
		default:
			p.fail(p.cur.Pos, "expected object key")
		}
		p.advance()
		p.expect(TokColon, "':'")
		keys = append(keys, key)
		values = append(values, p.parseExpr())
		if p.at(TokComma) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(TokBraceClose, "'}'")
	return ast.NewObjectLit(pos, keys, values)
}

func (p *Parser) parseArrayLit() ast.Node {
	pos := p.cur.Pos
	p.advance() // '['
	var values []ast.Node
	for !p.at(TokArrayClose) {
		values = append(values, p.parseExpr())
		if p.at(TokComma) {
			p.advance()
		} else {
			break
		}
	}
	p.expect(TokArrayClose, "']'")
	return ast.NewArrayLit(pos, values)
}
