package internal

import "fmt"

// Idk language has those elements:
// * KeyWord: var, if, endif, while, endwhile, func, endfunc, call, print, return.
// * Symbol: ;, (, ), [, ], =, +, -, *, /, %, ^, <, >, !, ,, :.
// * IntLiteral: 0 - 255.
// * Variable: any other run of characters that are neither space nor symbol.
// Two character comparison operators (==, =!, =<, =>) are assembled after scanning by
// FixComparisonOperators.

type TokenType int

const (
	KeyWordTP            TokenType = iota // return
	VarTP                                 // var
	IfTP                                  // if
	EndIfTP                               // endif
	WhileTP                               // while
	EndWhileTP                            // endwhile
	FuncTP                                // func
	EndFuncTP                             // endfunc
	CallTP                                // call
	PrintTP                               // print
	IntLiteralTP                          // 42
	VariableTP                            // counter
	AssignmentOperatorTP                  // =
	BinaryOperatorTP                      // + - * / % ^
	ComparisonOperatorTP                  // < > == =! =< =>
	NegationOperatorTP                    // !
	SemiColonTP                           // ;
	ColonTP                               // :
	CommaTP                               // ,
	OpenBracketTP                         // (
	CloseBracketTP                        // )
	OpenArrayTP                           // [
	CloseArrayTP                          // ]
	ErrorTP                               // anything the tokenizer could not classify
)

var tokenTypeNames = map[TokenType]string{
	KeyWordTP:            "KeyWord",
	VarTP:                "Var",
	IfTP:                 "If",
	EndIfTP:              "EndIf",
	WhileTP:              "While",
	EndWhileTP:           "EndWhile",
	FuncTP:               "Func",
	EndFuncTP:            "EndFunc",
	CallTP:               "Call",
	PrintTP:              "Print",
	IntLiteralTP:         "IntLiteral",
	VariableTP:           "Variable",
	AssignmentOperatorTP: "AssignmentOperator",
	BinaryOperatorTP:     "BinaryOperator",
	ComparisonOperatorTP: "ComparisonOperator",
	NegationOperatorTP:   "NegationOperator",
	SemiColonTP:          "SemiColon",
	ColonTP:              "Colon",
	CommaTP:              "Comma",
	OpenBracketTP:        "OpenBracket",
	CloseBracketTP:       "CloseBracket",
	OpenArrayTP:          "OpenArray",
	CloseArrayTP:         "CloseArray",
	ErrorTP:              "Error",
}

func (tp TokenType) String() string {
	name, ok := tokenTypeNames[tp]
	if !ok {
		return fmt.Sprintf("TokenType(%d)", int(tp))
	}
	return name
}

// keyWordTokenTPMap is the mapping from keyWord to the corresponding TokenTP.
var keyWordTokenTPMap = map[string]TokenType{
	"return":   KeyWordTP,
	"var":      VarTP,
	"if":       IfTP,
	"endif":    EndIfTP,
	"while":    WhileTP,
	"endwhile": EndWhileTP,
	"func":     FuncTP,
	"endfunc":  EndFuncTP,
	"call":     CallTP,
	"print":    PrintTP,
}

// simpleSymbolTokenTPMap is the mapping from single character symbols to the corresponding TokenTP.
var simpleSymbolTokenTPMap = map[byte]TokenType{
	';': SemiColonTP,
	',': CommaTP,
	':': ColonTP,
	'(': OpenBracketTP,
	')': CloseBracketTP,
	'[': OpenArrayTP,
	']': CloseArrayTP,
	'+': BinaryOperatorTP,
	'-': BinaryOperatorTP,
	'*': BinaryOperatorTP,
	'/': BinaryOperatorTP,
	'%': BinaryOperatorTP,
	'^': BinaryOperatorTP,
	'<': ComparisonOperatorTP,
	'>': ComparisonOperatorTP,
	'=': AssignmentOperatorTP,
	'!': NegationOperatorTP,
}

type Token struct {
	Type     TokenType
	Content  string
	Line     int
	StartPos int
	EndPos   int
}

func (token *Token) String() string {
	if token == nil {
		return "<nil>"
	}
	if token.Content == "" {
		return token.Type.String()
	}
	return fmt.Sprintf("%s(%s)", token.Type, token.Content)
}

// Where describes the token location for error messages.
func (token *Token) Where() string {
	return fmt.Sprintf("%q at line %d, column %d", token.Content, token.Line, token.StartPos+1)
}
