package internal

import (
	"fmt"
	"strconv"
)

// Parser drives the segmentation automaton and turns every completed statement into one ast.
// It declares variables in the symbol table as it goes, so a declaration is visible to every
// later statement at the same or a deeper level.
type Parser struct {
	currentTokenPos int
	currentTokens   []*Token
	automaton       *Automaton
	symbolTable     *SymbolTable
}

func NewParser(tokens []*Token, symbolTable *SymbolTable) *Parser {
	return &Parser{
		currentTokens: tokens,
		automaton:     NewAutomaton(),
		symbolTable:   symbolTable,
	}
}

func (parser *Parser) stepForward() {
	parser.currentTokenPos++
}

func (parser *Parser) hasRemainTokens() bool {
	return parser.currentTokenPos < len(parser.currentTokens)
}

// Parse returns the next statement, EndAst once every token is consumed or ErrorAst when the
// input cannot be parsed. There is no recovery: after an ErrorAst the caller must stop.
func (parser *Parser) Parse() Ast {
	for parser.hasRemainTokens() {
		token := parser.currentTokens[parser.currentTokenPos]
		parser.stepForward()
		segment, _, err := parser.automaton.Step(token)
		if err != nil {
			return &ErrorAst{Err: err}
		}
		if segment == nil {
			continue
		}
		node, err := parser.parseSegment(segment)
		if err != nil {
			return &ErrorAst{Err: err}
		}
		return node
	}
	if parser.automaton.Pending() > 0 {
		return &ErrorAst{Err: fmt.Errorf("%w: missing ; at end of input", ErrIncompleteStatement)}
	}
	return &EndAst{}
}

func (parser *Parser) parseSegment(segment []*Token) (Ast, error) {
	switch segment[0].Type {
	case VarTP:
		return parser.parseDeclaration(segment)
	case VariableTP:
		return parser.parseAssignment(segment)
	case IfTP, WhileTP:
		return parser.parseCondition(segment)
	case EndIfTP:
		if err := parser.symbolTable.Leave(); err != nil {
			return nil, makeSyntaxError(err, segment, "endif")
		}
		return &EndIfAst{}, nil
	case EndWhileTP:
		if err := parser.symbolTable.Leave(); err != nil {
			return nil, makeSyntaxError(err, segment, "endwhile")
		}
		return &EndWhileAst{}, nil
	case FuncTP:
		return parser.parseFuncDef(segment), nil
	case EndFuncTP:
		return &EndFunctionDefAst{}, nil
	case CallTP:
		return parser.parseFuncCall(segment), nil
	case PrintTP:
		return parser.parsePrint(segment)
	default:
		return nil, makeSyntaxError(ErrMalformedStatement, segment, "unexpected %s", segment[0].Type)
	}
}

// var x;
// var x = expression;
// var x[size];
func (parser *Parser) parseDeclaration(segment []*Token) (Ast, error) {
	if len(segment) < 2 {
		return nil, makeSyntaxError(ErrMalformedStatement, segment, "var without a name")
	}
	name := segment[1].Content
	if len(segment) == 2 {
		parser.symbolTable.Declare(name, ScalarSymbol, 0)
		return &AssignmentAst{Name: name, Expr: &LiteralAst{Value: "0"}}, nil
	}
	switch segment[2].Type {
	case OpenArrayTP:
		if segment[len(segment)-1].Type != CloseArrayTP {
			return nil, makeSyntaxError(ErrMalformedStatement, segment, "array size of %s is not closed", name)
		}
		size, err := parser.parseExpression(segment[3 : len(segment)-1])
		if err != nil {
			return nil, err
		}
		// Only a literal size can be registered. Any other size is accepted but the array
		// stays undeclared.
		if literal, ok := size.(*LiteralAst); ok {
			length, _ := strconv.Atoi(literal.Value)
			parser.symbolTable.Declare(name, ArraySymbol, length)
		}
		return &ArrayDeclarationAst{Name: name, Size: size}, nil
	case AssignmentOperatorTP:
		parser.symbolTable.Declare(name, ScalarSymbol, 0)
		expr, err := parser.parseExpression(segment[3:])
		if err != nil {
			return nil, err
		}
		return &AssignmentAst{Name: name, Expr: expr}, nil
	}
	return nil, makeSyntaxError(ErrMalformedStatement, segment, "unexpected %s after var %s", segment[2].Type, name)
}

// x = expression;
// x[index] = expression;
func (parser *Parser) parseAssignment(segment []*Token) (Ast, error) {
	nameToken := segment[0]
	if len(segment) > 1 && segment[1].Type == AssignmentOperatorTP {
		if symbol, ok := parser.symbolTable.Lookup(nameToken.Content); !ok || symbol.Kind != ScalarSymbol {
			return nil, fmt.Errorf("%w: no variable %s", ErrUnresolvedReference, nameToken.Where())
		}
		expr, err := parser.parseExpression(segment[2:])
		if err != nil {
			return nil, err
		}
		return &AssignmentAst{Name: nameToken.Content, Expr: expr}, nil
	}
	eqIndex := -1
	for i, token := range segment {
		if token.Type == AssignmentOperatorTP {
			eqIndex = i
			break
		}
	}
	if eqIndex < 3 || segment[1].Type != OpenArrayTP || segment[eqIndex-1].Type != CloseArrayTP {
		return nil, makeSyntaxError(ErrMalformedStatement, segment, "expected %s = or %s[index] =",
			nameToken.Content, nameToken.Content)
	}
	if symbol, ok := parser.symbolTable.Lookup(nameToken.Content); !ok || symbol.Kind != ArraySymbol {
		return nil, fmt.Errorf("%w: no array %s", ErrUnresolvedReference, nameToken.Where())
	}
	index, err := parser.parseExpression(segment[2 : eqIndex-1])
	if err != nil {
		return nil, err
	}
	value, err := parser.parseExpression(segment[eqIndex+1:])
	if err != nil {
		return nil, err
	}
	return &ArrayAssignmentAst{Name: nameToken.Content, Index: index, Value: value}, nil
}

// if left CMP right;
// while left CMP right;
func (parser *Parser) parseCondition(segment []*Token) (Ast, error) {
	condition := stripEnclosingBrackets(segment[1:])
	cmpIndex := -1
	for i, token := range condition {
		if token.Type == ComparisonOperatorTP {
			cmpIndex = i
			break
		}
	}
	if cmpIndex < 0 {
		return nil, makeSyntaxError(ErrMalformedStatement, segment, "no comparison operator in condition")
	}
	left, err := parser.parseExpression(condition[:cmpIndex])
	if err != nil {
		return nil, err
	}
	right, err := parser.parseExpression(condition[cmpIndex+1:])
	if err != nil {
		return nil, err
	}
	parser.symbolTable.Enter()
	cmpOp := condition[cmpIndex].Content
	if segment[0].Type == WhileTP {
		return &WhileAst{Left: left, CmpOp: cmpOp, Right: right}, nil
	}
	return &IfAst{Left: left, CmpOp: cmpOp, Right: right}, nil
}

// stripEnclosingBrackets removes one pair of brackets wrapping the whole condition, so that
// "(a < b)" splits into "a" and "b".
func stripEnclosingBrackets(tokens []*Token) []*Token {
	if len(tokens) < 2 || tokens[0].Type != OpenBracketTP || matchingClose(tokens, 0) != len(tokens)-1 {
		return tokens
	}
	return tokens[1 : len(tokens)-1]
}

// func name;
// func name: param, param;
func (parser *Parser) parseFuncDef(segment []*Token) Ast {
	funcDef := &FunctionDefAst{Name: segment[1].Content}
	for _, token := range segment[2:] {
		if token.Type == VariableTP {
			funcDef.Params = append(funcDef.Params, token.Content)
		}
	}
	return funcDef
}

// call name;
// call name: param = value, param = value;
func (parser *Parser) parseFuncCall(segment []*Token) Ast {
	funcCall := &FunctionCallAst{Name: segment[1].Content}
	for i := 3; i+2 < len(segment); i += 4 {
		funcCall.Args = append(funcCall.Args, CallArgAst{Name: segment[i].Content, Value: segment[i+2].Content})
	}
	return funcCall
}

// print expression;
func (parser *Parser) parsePrint(segment []*Token) (Ast, error) {
	expr, err := parser.parseExpression(segment[1:])
	if err != nil {
		return nil, err
	}
	return &PrintAst{Expr: expr}, nil
}
