// Package parser implements a recursive-descent, precedence-climbing
// parser producing the AST shapes in pkg/ast.
package parser

import (
	"fmt"

	"arcane/pkg/ast"
	arcaneerrors "arcane/pkg/errors"
	"arcane/pkg/token"
)

// Parser turns a token stream into statements.
type Parser struct {
	tokens  []token.Token
	current int
}

// New returns a Parser over tokens (as produced by lexer.ScanTokens).
func New(tokens []token.Token) *Parser {
	return &Parser{tokens: tokens}
}

// Parse parses a whole program: a sequence of top-level statements.
func (p *Parser) Parse() ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	p.skipNewlines()
	for !p.isAtEnd() {
		stmt, err := p.declaration()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		p.skipNewlines()
	}
	return stmts, nil
}

func (p *Parser) declaration() (ast.Stmt, error) {
	switch {
	case p.check(token.STEL), p.check(token.LAAT):
		p.advance()
		return p.varDeclaration()
	case p.check(token.FUNKSIE):
		p.advance()
		return p.functionDeclaration()
	case p.check(token.TIPE):
		p.advance()
		return p.typeDeclaration()
	case p.check(token.LAAI):
		p.advance()
		return p.loadModule()
	case p.check(token.VERSKAF):
		p.advance()
		name, err := p.consumeIdent("Verwag naam na 'verskaf'.")
		if err != nil {
			return nil, err
		}
		if err := p.consumeNewlineOrEOF(); err != nil {
			return nil, err
		}
		return &ast.Provide{Name: name}, nil
	default:
		return p.statement()
	}
}

func (p *Parser) varDeclaration() (ast.Stmt, error) {
	name, err := p.consumeIdent("Verwag veranderlike naam.")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.ASSIGN, "Verwag '=' na veranderlike naam."); err != nil {
		return nil, err
	}
	init, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.consumeNewlineOrEOF(); err != nil {
		return nil, err
	}
	return &ast.VarDecl{Name: name, Initializer: init}, nil
}

func (p *Parser) functionDeclaration() (ast.Stmt, error) {
	line := p.peek().Line
	name, err := p.consumeIdent("Verwag funksienaam.")
	if err != nil {
		return nil, err
	}
	params, err := p.paramList()
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.consume(token.LBRACE, "Verwag '{' na funksiekop."); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionDecl{Name: name, Params: params, Body: body, Line: line}, nil
}

func (p *Parser) paramList() ([]string, error) {
	if _, err := p.consume(token.LPAREN, "Verwag '(' na funksienaam."); err != nil {
		return nil, err
	}
	var params []string
	if !p.check(token.RPAREN) {
		for {
			name, err := p.consumeIdent("Verwag parameternaam.")
			if err != nil {
				return nil, err
			}
			params = append(params, name)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	if _, err := p.consume(token.RPAREN, "Verwag ')' na parameters."); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *Parser) typeDeclaration() (ast.Stmt, error) {
	name, err := p.consumeIdent("Verwag tipenaam.")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.ASSIGN, "Verwag '=' na tipenaam."); err != nil {
		return nil, err
	}
	var ctors []ast.Constructor
	for {
		ctor, err := p.consumeIdent("Verwag konstruktornaam.")
		if err != nil {
			return nil, err
		}
		arity := 0
		if p.match(token.LPAREN) {
			if !p.check(token.RPAREN) {
				for {
					if _, err := p.consumeIdent("Verwag veldnaam."); err != nil {
						return nil, err
					}
					arity++
					if !p.match(token.COMMA) {
						break
					}
				}
			}
			if _, err := p.consume(token.RPAREN, "Verwag ')' na konstruktorvelde."); err != nil {
				return nil, err
			}
		}
		ctors = append(ctors, ast.Constructor{Name: ctor, Arity: arity})
		if !p.match(token.OF) {
			break
		}
	}
	if err := p.consumeNewlineOrEOF(); err != nil {
		return nil, err
	}
	return &ast.TypeDecl{Name: name, Constructors: ctors}, nil
}

func (p *Parser) loadModule() (ast.Stmt, error) {
	pathTok, err := p.consume(token.STRING, "Verwag modulepad as string.")
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.AS, "Verwag 'as' na modulepad."); err != nil {
		return nil, err
	}
	alias, err := p.consumeIdent("Verwag alias na 'as'.")
	if err != nil {
		return nil, err
	}
	if err := p.consumeNewlineOrEOF(); err != nil {
		return nil, err
	}
	return &ast.LoadModule{Path: pathTok.Str, Alias: alias}, nil
}

func (p *Parser) statement() (ast.Stmt, error) {
	switch {
	case p.check(token.DRUK):
		p.advance()
		return p.printStatement()
	case p.check(token.AS):
		p.advance()
		return p.ifStatement()
	case p.check(token.TERWYL):
		p.advance()
		return p.whileStatement()
	case p.check(token.GEE):
		p.advance()
		return p.returnStatement()
	case p.check(token.LBRACE):
		p.advance()
		stmts, err := p.block()
		if err != nil {
			return nil, err
		}
		return &ast.Block{Stmts: stmts}, nil
	default:
		return p.expressionStatement()
	}
}

func (p *Parser) printStatement() (ast.Stmt, error) {
	if _, err := p.consume(token.LPAREN, "Verwag '(' na 'druk'."); err != nil {
		return nil, err
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RPAREN, "Verwag ')' na uitdrukking."); err != nil {
		return nil, err
	}
	if err := p.consumeNewlineOrEOF(); err != nil {
		return nil, err
	}
	return &ast.PrintStmt{Expr: value}, nil
}

func (p *Parser) ifStatement() (ast.Stmt, error) {
	if _, err := p.consume(token.LPAREN, "Verwag '(' na 'as'."); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RPAREN, "Verwag ')' na voorwaarde."); err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.consume(token.LBRACE, "Verwag '{' na 'as' voorwaarde."); err != nil {
		return nil, err
	}
	thenStmts, err := p.block()
	if err != nil {
		return nil, err
	}
	thenBranch := ast.Stmt(&ast.Block{Stmts: thenStmts})

	save := p.current
	p.skipNewlines()
	var elseBranch ast.Stmt
	if p.check(token.ANDERS) {
		p.advance()
		p.skipNewlines()
		if _, err := p.consume(token.LBRACE, "Verwag '{' na 'anders'."); err != nil {
			return nil, err
		}
		elseStmts, err := p.block()
		if err != nil {
			return nil, err
		}
		elseBranch = &ast.Block{Stmts: elseStmts}
	} else {
		p.current = save
	}

	return &ast.If{Condition: cond, Then: thenBranch, Else: elseBranch}, nil
}

func (p *Parser) whileStatement() (ast.Stmt, error) {
	if _, err := p.consume(token.LPAREN, "Verwag '(' na 'terwyl'."); err != nil {
		return nil, err
	}
	cond, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.RPAREN, "Verwag ')' na voorwaarde."); err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.consume(token.LBRACE, "Verwag '{' na 'terwyl' voorwaarde."); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.While{Condition: cond, Body: &ast.Block{Stmts: body}}, nil
}

func (p *Parser) returnStatement() (ast.Stmt, error) {
	line := p.previous().Line
	if p.check(token.NEWLINE) || p.check(token.RBRACE) || p.isAtEnd() {
		if err := p.consumeNewlineOrEOF(); err != nil {
			return nil, err
		}
		return &ast.Return{Line: line}, nil
	}
	value, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.consumeNewlineOrEOF(); err != nil {
		return nil, err
	}
	return &ast.Return{Value: value, Line: line}, nil
}

func (p *Parser) block() ([]ast.Stmt, error) {
	var stmts []ast.Stmt
	p.skipNewlines()
	for !p.check(token.RBRACE) && !p.isAtEnd() {
		stmt, err := p.declaration()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		p.skipNewlines()
	}
	if _, err := p.consume(token.RBRACE, "Verwag '}' na blok."); err != nil {
		return nil, err
	}
	return stmts, nil
}

func (p *Parser) expressionStatement() (ast.Stmt, error) {
	expr, err := p.expression()
	if err != nil {
		return nil, err
	}
	if err := p.consumeNewlineOrEOF(); err != nil {
		return nil, err
	}
	return &ast.ExprStmt{Expr: expr}, nil
}

// --- Expressions, precedence-climbing (lowest to highest) ---
// assignment -> or -> and -> equality -> comparison -> term -> factor ->
// unary -> call/index/member -> primary

func (p *Parser) expression() (ast.Expr, error) { return p.assignment() }

func (p *Parser) assignment() (ast.Expr, error) {
	expr, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.check(token.ASSIGN) {
		line := p.peek().Line
		p.advance()
		value, err := p.assignment()
		if err != nil {
			return nil, err
		}
		if v, ok := expr.(*ast.Variable); ok {
			return &ast.Assign{Name: v.Name, Value: value, Line: line}, nil
		}
		return nil, &arcaneerrors.ResolutionError{Msg: "Ongeldige toewysing teiken.", Ln: line}
	}
	return expr, nil
}

func (p *Parser) or() (ast.Expr, error) {
	expr, err := p.and()
	if err != nil {
		return nil, err
	}
	for p.check(token.OR_OR) {
		line := p.advance().Line
		right, err := p.and()
		if err != nil {
			return nil, err
		}
		expr = &ast.Binary{Left: expr, Op: ast.OpOr, Right: right, Line: line}
	}
	return expr, nil
}

func (p *Parser) and() (ast.Expr, error) {
	expr, err := p.equality()
	if err != nil {
		return nil, err
	}
	for p.check(token.AND_AND) {
		line := p.advance().Line
		right, err := p.equality()
		if err != nil {
			return nil, err
		}
		expr = &ast.Binary{Left: expr, Op: ast.OpAnd, Right: right, Line: line}
	}
	return expr, nil
}

func (p *Parser) equality() (ast.Expr, error) {
	expr, err := p.comparison()
	if err != nil {
		return nil, err
	}
	for p.check(token.EQ) || p.check(token.NEQ) {
		t := p.advance()
		op := ast.OpEq
		if t.Type == token.NEQ {
			op = ast.OpNeq
		}
		right, err := p.comparison()
		if err != nil {
			return nil, err
		}
		expr = &ast.Binary{Left: expr, Op: op, Right: right, Line: t.Line}
	}
	return expr, nil
}

func (p *Parser) comparison() (ast.Expr, error) {
	expr, err := p.term()
	if err != nil {
		return nil, err
	}
	for p.check(token.LT) || p.check(token.LTE) || p.check(token.GT) || p.check(token.GTE) {
		t := p.advance()
		var op ast.Op
		switch t.Type {
		case token.LT:
			op = ast.OpLt
		case token.LTE:
			op = ast.OpLte
		case token.GT:
			op = ast.OpGt
		default:
			op = ast.OpGte
		}
		right, err := p.term()
		if err != nil {
			return nil, err
		}
		expr = &ast.Binary{Left: expr, Op: op, Right: right, Line: t.Line}
	}
	return expr, nil
}

func (p *Parser) term() (ast.Expr, error) {
	expr, err := p.factor()
	if err != nil {
		return nil, err
	}
	for p.check(token.PLUS) || p.check(token.MINUS) {
		t := p.advance()
		op := ast.OpAdd
		if t.Type == token.MINUS {
			op = ast.OpSub
		}
		right, err := p.factor()
		if err != nil {
			return nil, err
		}
		expr = &ast.Binary{Left: expr, Op: op, Right: right, Line: t.Line}
	}
	return expr, nil
}

func (p *Parser) factor() (ast.Expr, error) {
	expr, err := p.unary()
	if err != nil {
		return nil, err
	}
	for p.check(token.STAR) || p.check(token.SLASH) || p.check(token.PERCENT) {
		t := p.advance()
		var op ast.Op
		switch t.Type {
		case token.STAR:
			op = ast.OpMul
		case token.SLASH:
			op = ast.OpDiv
		default:
			op = ast.OpMod
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		expr = &ast.Binary{Left: expr, Op: op, Right: right, Line: t.Line}
	}
	return expr, nil
}

func (p *Parser) unary() (ast.Expr, error) {
	if p.check(token.BANG) || p.check(token.MINUS) {
		t := p.advance()
		op := ast.OpNot
		if t.Type == token.MINUS {
			op = ast.OpNeg
		}
		right, err := p.unary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Op: op, Right: right, Line: t.Line}, nil
	}
	return p.callOrIndex()
}

func (p *Parser) callOrIndex() (ast.Expr, error) {
	expr, err := p.primary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.check(token.LPAREN):
			line := p.advance().Line
			var args []ast.Expr
			if !p.check(token.RPAREN) {
				for {
					arg, err := p.expression()
					if err != nil {
						return nil, err
					}
					args = append(args, arg)
					if !p.match(token.COMMA) {
						break
					}
				}
			}
			if _, err := p.consume(token.RPAREN, "Verwag ')' na argumente."); err != nil {
				return nil, err
			}
			expr = &ast.Call{Callee: expr, Args: args, Line: line}
		case p.check(token.LBRACKET):
			line := p.advance().Line
			idx, err := p.expression()
			if err != nil {
				return nil, err
			}
			if _, err := p.consume(token.RBRACKET, "Verwag ']' na indeks."); err != nil {
				return nil, err
			}
			expr = &ast.Index{Target: expr, Index: idx, Line: line}
		case p.check(token.DOT):
			line := p.advance().Line
			name, err := p.consumeIdent("Verwag ledenaam na '.'.")
			if err != nil {
				return nil, err
			}
			expr = &ast.Member{Module: expr, Name: name, Line: line}
		default:
			return expr, nil
		}
	}
}

func (p *Parser) primary() (ast.Expr, error) {
	t := p.peek()
	switch t.Type {
	case token.WAAR:
		p.advance()
		return &ast.BoolLit{Value: true, Line: t.Line}, nil
	case token.VALS:
		p.advance()
		return &ast.BoolLit{Value: false, Line: t.Line}, nil
	case token.NIL:
		p.advance()
		return &ast.NilLit{Line: t.Line}, nil
	case token.NUMBER:
		p.advance()
		return &ast.NumberLit{Value: t.Num, Line: t.Line}, nil
	case token.STRING:
		p.advance()
		return &ast.StringLit{Value: t.Str, Line: t.Line}, nil
	case token.IDENT:
		p.advance()
		return &ast.Variable{Name: t.Lexeme, Line: t.Line}, nil
	case token.UNDERSCORE:
		p.advance()
		return &ast.Variable{Name: "_", Line: t.Line}, nil
	case token.LPAREN:
		p.advance()
		inner, err := p.expression()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.RPAREN, "Verwag ')' na uitdrukking."); err != nil {
			return nil, err
		}
		return &ast.Grouping{Inner: inner, Line: t.Line}, nil
	case token.LBRACKET:
		p.advance()
		var elems []ast.Expr
		if !p.check(token.RBRACKET) {
			for {
				e, err := p.expression()
				if err != nil {
					return nil, err
				}
				elems = append(elems, e)
				if !p.match(token.COMMA) {
					break
				}
			}
		}
		if _, err := p.consume(token.RBRACKET, "Verwag ']' na lyselemente."); err != nil {
			return nil, err
		}
		return &ast.ListLit{Elements: elems, Line: t.Line}, nil
	case token.FN:
		return p.lambda()
	case token.PAS:
		return p.match()
	default:
		return nil, &arcaneerrors.SyntaxError{Msg: "Verwag uitdrukking.", Ln: t.Line}
	}
}

func (p *Parser) lambda() (ast.Expr, error) {
	line := p.advance().Line // consume 'fn'
	params, err := p.paramList()
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.consume(token.LBRACE, "Verwag '{' na lambda-kop."); err != nil {
		return nil, err
	}
	body, err := p.block()
	if err != nil {
		return nil, err
	}
	return &ast.FunctionLit{Params: params, Body: body, Line: line}, nil
}

func (p *Parser) match() (ast.Expr, error) {
	line := p.advance().Line // consume 'pas'
	scrutinee, err := p.expression()
	if err != nil {
		return nil, err
	}
	if _, err := p.consume(token.GEVAL, "Verwag 'geval' na pas-uitdrukking."); err != nil {
		return nil, err
	}
	var arms []ast.MatchArm
	for {
		pat, err := p.pattern()
		if err != nil {
			return nil, err
		}
		if _, err := p.consume(token.FATARROW, "Verwag '=>' na patroon."); err != nil {
			return nil, err
		}
		body, err := p.expression()
		if err != nil {
			return nil, err
		}
		arms = append(arms, ast.MatchArm{Pattern: pat, Body: body})
		if !p.check(token.GEVAL) {
			break
		}
		p.advance()
	}
	return &ast.Match{Scrutinee: scrutinee, Arms: arms, Line: line}, nil
}

func (p *Parser) pattern() (ast.Pattern, error) {
	t := p.peek()
	switch t.Type {
	case token.UNDERSCORE:
		p.advance()
		return &ast.WildcardPattern{}, nil
	case token.WAAR:
		p.advance()
		return &ast.LiteralPattern{Value: &ast.BoolLit{Value: true, Line: t.Line}}, nil
	case token.VALS:
		p.advance()
		return &ast.LiteralPattern{Value: &ast.BoolLit{Value: false, Line: t.Line}}, nil
	case token.NIL:
		p.advance()
		return &ast.LiteralPattern{Value: &ast.NilLit{Line: t.Line}}, nil
	case token.NUMBER:
		p.advance()
		return &ast.LiteralPattern{Value: &ast.NumberLit{Value: t.Num, Line: t.Line}}, nil
	case token.STRING:
		p.advance()
		return &ast.LiteralPattern{Value: &ast.StringLit{Value: t.Str, Line: t.Line}}, nil
	case token.IDENT:
		p.advance()
		if p.check(token.LPAREN) {
			p.advance()
			var fields []ast.Pattern
			if !p.check(token.RPAREN) {
				for {
					fp, err := p.pattern()
					if err != nil {
						return nil, err
					}
					fields = append(fields, fp)
					if !p.match(token.COMMA) {
						break
					}
				}
			}
			if _, err := p.consume(token.RPAREN, "Verwag ')' na konstruktorpatroon."); err != nil {
				return nil, err
			}
			return &ast.ConstructorPattern{Name: t.Lexeme, Fields: fields}, nil
		}
		// A capitalized bare identifier names a zero-arity constructor
		// (e.g. `Geen`); lowercase binds the scrutinee to a new name.
		if isUpper(t.Lexeme) {
			return &ast.ConstructorPattern{Name: t.Lexeme}, nil
		}
		return &ast.BindPattern{Name: t.Lexeme}, nil
	default:
		return nil, &arcaneerrors.SyntaxError{Msg: "Verwag patroon.", Ln: t.Line}
	}
}

// --- Token helpers ---

func (p *Parser) peek() token.Token     { return p.tokens[p.current] }
func (p *Parser) previous() token.Token { return p.tokens[p.current-1] }
func (p *Parser) isAtEnd() bool         { return p.peek().Type == token.EOF }

func (p *Parser) advance() token.Token {
	if !p.isAtEnd() {
		p.current++
	}
	return p.previous()
}

func (p *Parser) check(t token.Type) bool {
	if p.isAtEnd() && t != token.EOF {
		return false
	}
	return p.peek().Type == t
}

func (p *Parser) match(t token.Type) bool {
	if p.check(t) {
		p.advance()
		return true
	}
	return false
}

func (p *Parser) consume(t token.Type, msg string) (token.Token, error) {
	if p.check(t) {
		return p.advance(), nil
	}
	return token.Token{}, &arcaneerrors.SyntaxError{Msg: msg, Ln: p.peek().Line}
}

func (p *Parser) consumeIdent(msg string) (string, error) {
	if p.check(token.IDENT) {
		return p.advance().Lexeme, nil
	}
	return "", &arcaneerrors.SyntaxError{Msg: msg, Ln: p.peek().Line}
}

func (p *Parser) consumeNewlineOrEOF() error {
	if p.check(token.NEWLINE) {
		p.advance()
		return nil
	}
	if p.isAtEnd() || p.check(token.RBRACE) {
		return nil
	}
	return &arcaneerrors.SyntaxError{
		Msg: fmt.Sprintf("Verwag nuwe lyn na stelling."),
		Ln:  p.peek().Line,
	}
}

func (p *Parser) skipNewlines() {
	for p.check(token.NEWLINE) {
		p.advance()
	}
}

func isUpper(lexeme string) bool {
	if lexeme == "" {
		return false
	}
	r := []rune(lexeme)[0]
	return r >= 'A' && r <= 'Z'
}
