package internal

import "fmt"

// Expressions are parsed in two steps. convertToRPN reorders the tokens into reverse polish
// order with the shunting-yard algorithm, then parseExpression folds the rpn sequence on an
// operand stack. For example: 2 + 3 * 4
//
//	rpn:    2 3 4 * +
//	tree:       +
//	          /   \
//	         2     *
//	              / \
//	             3   4

var operatorPriority = map[string]int{
	"+": 1,
	"-": 1,
	"*": 2,
	"/": 2,
	"%": 2,
	"^": 3,
}

func convertToRPN(tokens []*Token) ([]*Token, error) {
	result := make([]*Token, 0, len(tokens))
	var operatorStack []*Token
	for _, token := range tokens {
		switch token.Type {
		case IntLiteralTP, VariableTP:
			result = append(result, token)
		case BinaryOperatorTP:
			for len(operatorStack) > 0 {
				top := operatorStack[len(operatorStack)-1]
				if top.Type == OpenBracketTP || operatorPriority[top.Content] < operatorPriority[token.Content] {
					break
				}
				result = append(result, top)
				operatorStack = operatorStack[:len(operatorStack)-1]
			}
			operatorStack = append(operatorStack, token)
		case OpenBracketTP:
			operatorStack = append(operatorStack, token)
		case CloseBracketTP:
			matched := false
			for len(operatorStack) > 0 {
				top := operatorStack[len(operatorStack)-1]
				operatorStack = operatorStack[:len(operatorStack)-1]
				if top.Type == OpenBracketTP {
					matched = true
					break
				}
				result = append(result, top)
			}
			if !matched {
				return nil, fmt.Errorf("%w: unmatched ) near %s", ErrMalformedExpression, token.Where())
			}
		case OpenArrayTP, CloseArrayTP:
			// Subscripts are resolved when the array name is reduced.
		default:
			return nil, fmt.Errorf("%w: unexpected token near %s", ErrMalformedExpression, token.Where())
		}
	}
	for len(operatorStack) > 0 {
		top := operatorStack[len(operatorStack)-1]
		operatorStack = operatorStack[:len(operatorStack)-1]
		if top.Type == OpenBracketTP {
			return nil, fmt.Errorf("%w: unmatched ( near %s", ErrMalformedExpression, top.Where())
		}
		result = append(result, top)
	}
	return result, nil
}

// ParseExpression parses tokens as one expression, returning an ErrorAst on failure.
func (parser *Parser) ParseExpression(tokens []*Token) Ast {
	expr, err := parser.parseExpression(tokens)
	if err != nil {
		return &ErrorAst{Err: err}
	}
	return expr
}

func (parser *Parser) parseExpression(tokens []*Token) (Ast, error) {
	// (arr[i]) reads the same element as arr[i].
	for stripped := stripEnclosingBrackets(tokens); len(stripped) != len(tokens); stripped = stripEnclosingBrackets(tokens) {
		tokens = stripped
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("%w: empty expression", ErrMalformedExpression)
	}
	rpnTokens, err := convertToRPN(tokens)
	if err != nil {
		return nil, err
	}
	var operandStack []Ast
	for _, token := range rpnTokens {
		switch token.Type {
		case IntLiteralTP:
			operandStack = append(operandStack, &LiteralAst{Value: token.Content})
		case VariableTP:
			symbol, ok := parser.symbolTable.Lookup(token.Content)
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrUnresolvedReference, token.Where())
			}
			if symbol.Kind == ArraySymbol {
				return parser.parseArrayIndex(tokens, token)
			}
			operandStack = append(operandStack, &VariableAst{Name: token.Content})
		case BinaryOperatorTP:
			if len(operandStack) < 2 {
				return nil, fmt.Errorf("%w: missing operand for %s", ErrMalformedExpression, token.Where())
			}
			right, left := operandStack[len(operandStack)-1], operandStack[len(operandStack)-2]
			operandStack = operandStack[:len(operandStack)-2]
			operandStack = append(operandStack, &BinaryOpAst{Op: token.Content, Left: left, Right: right})
		}
	}
	if len(operandStack) != 1 {
		return nil, fmt.Errorf("%w: %d operands left near %s", ErrMalformedExpression, len(operandStack),
			tokens[0].Where())
	}
	return operandStack[0], nil
}

// parseArrayIndex parses name[index]. An indexed read is only supported as a whole expression,
// so name must be the first token and the subscript must close at the last one.
func (parser *Parser) parseArrayIndex(tokens []*Token, name *Token) (Ast, error) {
	if tokens[0] != name || len(tokens) < 4 || tokens[1].Type != OpenArrayTP ||
		matchingClose(tokens, 1) != len(tokens)-1 {
		return nil, fmt.Errorf("%w: array %s must be read alone as %s[index]", ErrMalformedExpression,
			name.Where(), name.Content)
	}
	index, err := parser.parseExpression(tokens[2 : len(tokens)-1])
	if err != nil {
		return nil, err
	}
	return &ArrayIndexAst{Name: name.Content, Index: index}, nil
}

// matchingClose returns the position of the bracket closing tokens[open], or -1.
func matchingClose(tokens []*Token, open int) int {
	closeTP := CloseBracketTP
	if tokens[open].Type == OpenArrayTP {
		closeTP = CloseArrayTP
	}
	depth := 0
	for i := open; i < len(tokens); i++ {
		switch tokens[i].Type {
		case tokens[open].Type:
			depth++
		case closeTP:
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
