package internal

import (
	"io"
	"io/ioutil"
	"strconv"

	"github.com/xiaobogaga/idk/util"
)

// A simple Tokenizer for idk. It is greedy: a word is every character up to the next space or
// symbol, and only afterwards we decide whether the word is a number, a keyword or a variable.
// When in doubt, a word is a variable.

type Tokenizer struct {
	src         []byte
	currentPos  int
	currentLine int
	lineStart   int
}

func NewTokenizer(src string) *Tokenizer {
	tokenizer := &Tokenizer{}
	tokenizer.Reset(src)
	return tokenizer
}

func (tokenizer *Tokenizer) Reset(src string) {
	tokenizer.src = []byte(src)
	tokenizer.currentPos, tokenizer.currentLine, tokenizer.lineStart = 0, 1, 0
}

// IsDone reports whether every character of the source has been consumed.
func (tokenizer *Tokenizer) IsDone() bool {
	return tokenizer.currentPos >= len(tokenizer.src)
}

// NextToken returns the next token, or nil when only spaces remain.
func (tokenizer *Tokenizer) NextToken() *Token {
	tokenizer.trimSpace()
	if tokenizer.IsDone() {
		return nil
	}
	b := tokenizer.src[tokenizer.currentPos]
	switch {
	case util.IsPunctuation(b):
		return tokenizer.tokenSimpleSymbol()
	case util.IsReserved(b):
		return tokenizer.tokenError()
	default:
		return tokenizer.tokenWord()
	}
}

func (tokenizer *Tokenizer) trimSpace() {
	for !tokenizer.IsDone() && util.IsWhiteSpace(tokenizer.src[tokenizer.currentPos]) {
		if tokenizer.src[tokenizer.currentPos] == '\n' {
			tokenizer.currentLine++
			tokenizer.lineStart = tokenizer.currentPos + 1
		}
		tokenizer.currentPos++
	}
}

func (tokenizer *Tokenizer) makeToken(tp TokenType, startPos int) *Token {
	return &Token{
		Type:     tp,
		Content:  string(tokenizer.src[startPos:tokenizer.currentPos]),
		Line:     tokenizer.currentLine,
		StartPos: startPos - tokenizer.lineStart,
		EndPos:   tokenizer.currentPos - tokenizer.lineStart,
	}
}

func (tokenizer *Tokenizer) tokenSimpleSymbol() *Token {
	startPos := tokenizer.currentPos
	tp := simpleSymbolTokenTPMap[tokenizer.src[startPos]]
	tokenizer.currentPos++
	return tokenizer.makeToken(tp, startPos)
}

func (tokenizer *Tokenizer) tokenError() *Token {
	startPos := tokenizer.currentPos
	tokenizer.currentPos++
	return tokenizer.makeToken(ErrorTP, startPos)
}

func (tokenizer *Tokenizer) tokenWord() *Token {
	startPos := tokenizer.currentPos
	for !tokenizer.IsDone() && !util.IsWordBreak(tokenizer.src[tokenizer.currentPos]) {
		tokenizer.currentPos++
	}
	word := string(tokenizer.src[startPos:tokenizer.currentPos])
	if _, err := strconv.ParseUint(word, 10, 8); err == nil {
		return tokenizer.makeToken(IntLiteralTP, startPos)
	}
	if keyWordTP, isKeyWord := keyWordTokenTPMap[word]; isKeyWord {
		return tokenizer.makeToken(keyWordTP, startPos)
	}
	return tokenizer.makeToken(VariableTP, startPos)
}

// Tokenize reads the whole source and returns its tokens with the comparison operators fixed.
func (tokenizer *Tokenizer) Tokenize(rd io.Reader) ([]*Token, error) {
	src, err := ioutil.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	tokenizer.Reset(string(src))
	var tokens []*Token
	for !tokenizer.IsDone() {
		token := tokenizer.NextToken()
		if token == nil {
			break
		}
		tokens = append(tokens, token)
	}
	return FixComparisonOperators(tokens), nil
}

// FixComparisonOperators merges an assignment operator with the operator right after it,
// so "=" "=" becomes "==", "=" "<" becomes "=<" and "=" "!" becomes "=!".
func FixComparisonOperators(tokens []*Token) []*Token {
	fixed := make([]*Token, 0, len(tokens))
	for i := 0; i < len(tokens); i++ {
		token := tokens[i]
		if token.Type == AssignmentOperatorTP && i+1 < len(tokens) && mergesWithAssignment(tokens[i+1].Type) {
			next := tokens[i+1]
			token = &Token{
				Type:     ComparisonOperatorTP,
				Content:  token.Content + next.Content,
				Line:     token.Line,
				StartPos: token.StartPos,
				EndPos:   next.EndPos,
			}
			i++
		}
		fixed = append(fixed, token)
	}
	return fixed
}

func mergesWithAssignment(tp TokenType) bool {
	return tp == ComparisonOperatorTP || tp == AssignmentOperatorTP || tp == NegationOperatorTP
}
