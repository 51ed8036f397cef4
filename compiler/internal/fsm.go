package internal

// The segmentation automaton cuts the token stream into statements. It is a deterministic
// finite state machine: every (state, token type) pair either has exactly one next state or
// the input is rejected. State 0 waits for a new statement and AcceptState is only reachable
// through a ';'.
//
// Every statement shape owns its own range of states:
//   1  - 9   assignment            x = e;  x[e] = e;
//   10 - 19  var declaration       var x;  var x = e;  var x[e];
//   20 - 29  if / while header     if e CMP e;
//   30 - 39  print                 print e;
//   40       end markers           endif; endwhile; endfunc;
//   50 - 59  function definition   func f: a, b;
//   60 - 69  function call         call f: a = 1, b = c;
// Inside an expression run, "operand" states loop on '(' and "after operand" states loop on ')'.
// A variable operand may be followed by a '[' e ']' subscript, which has its own pair of states.

const (
	InitialState = 0
	AcceptState  = 99
)

type transitionKey struct {
	state int
	tp    TokenType
}

// transitions is never modified after package initialisation.
var transitions = map[transitionKey]int{
	// Assignment: target.
	{0, VariableTP}:           1,
	{1, OpenArrayTP}:          2,
	{1, AssignmentOperatorTP}: 4,
	// Assignment: target subscript.
	{2, OpenBracketTP}:        2,
	{2, IntLiteralTP}:         3,
	{2, VariableTP}:           3,
	{3, CloseBracketTP}:       3,
	{3, BinaryOperatorTP}:     2,
	{3, CloseArrayTP}:         9,
	{9, AssignmentOperatorTP}: 4,
	// Assignment: value.
	{4, OpenBracketTP}:    4,
	{4, IntLiteralTP}:     5,
	{4, VariableTP}:       6,
	{5, CloseBracketTP}:   5,
	{5, BinaryOperatorTP}: 4,
	{5, SemiColonTP}:      AcceptState,
	{6, CloseBracketTP}:   5,
	{6, BinaryOperatorTP}: 4,
	{6, OpenArrayTP}:      7,
	{6, SemiColonTP}:      AcceptState,
	{7, OpenBracketTP}:    7,
	{7, IntLiteralTP}:     8,
	{7, VariableTP}:       8,
	{8, CloseBracketTP}:   8,
	{8, BinaryOperatorTP}: 7,
	{8, CloseArrayTP}:     5,

	// Var declaration.
	{0, VarTP}:                 10,
	{10, VariableTP}:           11,
	{11, SemiColonTP}:          AcceptState,
	{11, AssignmentOperatorTP}: 12,
	{11, OpenArrayTP}:          17,
	// Var declaration: initial value.
	{12, OpenBracketTP}:    12,
	{12, IntLiteralTP}:     13,
	{12, VariableTP}:       14,
	{13, CloseBracketTP}:   13,
	{13, BinaryOperatorTP}: 12,
	{13, SemiColonTP}:      AcceptState,
	{14, CloseBracketTP}:   13,
	{14, BinaryOperatorTP}: 12,
	{14, OpenArrayTP}:      15,
	{14, SemiColonTP}:      AcceptState,
	{15, OpenBracketTP}:    15,
	{15, IntLiteralTP}:     16,
	{15, VariableTP}:       16,
	{16, CloseBracketTP}:   16,
	{16, BinaryOperatorTP}: 15,
	{16, CloseArrayTP}:     13,
	// Var declaration: array size.
	{17, OpenBracketTP}:    17,
	{17, IntLiteralTP}:     18,
	{17, VariableTP}:       18,
	{18, CloseBracketTP}:   18,
	{18, BinaryOperatorTP}: 17,
	{18, CloseArrayTP}:     19,
	{19, SemiColonTP}:      AcceptState,

	// If / while: left hand side.
	{0, IfTP}:                  20,
	{0, WhileTP}:               20,
	{20, OpenBracketTP}:        20,
	{20, IntLiteralTP}:         21,
	{20, VariableTP}:           22,
	{21, CloseBracketTP}:       21,
	{21, BinaryOperatorTP}:     20,
	{21, ComparisonOperatorTP}: 25,
	{22, CloseBracketTP}:       21,
	{22, BinaryOperatorTP}:     20,
	{22, ComparisonOperatorTP}: 25,
	{22, OpenArrayTP}:          23,
	{23, OpenBracketTP}:        23,
	{23, IntLiteralTP}:         24,
	{23, VariableTP}:           24,
	{24, CloseBracketTP}:       24,
	{24, BinaryOperatorTP}:     23,
	{24, CloseArrayTP}:         21,
	// If / while: right hand side.
	{25, OpenBracketTP}:    25,
	{25, IntLiteralTP}:     26,
	{25, VariableTP}:       27,
	{26, CloseBracketTP}:   26,
	{26, BinaryOperatorTP}: 25,
	{26, SemiColonTP}:      AcceptState,
	{27, CloseBracketTP}:   26,
	{27, BinaryOperatorTP}: 25,
	{27, OpenArrayTP}:      28,
	{27, SemiColonTP}:      AcceptState,
	{28, OpenBracketTP}:    28,
	{28, IntLiteralTP}:     29,
	{28, VariableTP}:       29,
	{29, CloseBracketTP}:   29,
	{29, BinaryOperatorTP}: 28,
	{29, CloseArrayTP}:     26,

	// Print.
	{0, PrintTP}:           30,
	{30, OpenBracketTP}:    30,
	{30, IntLiteralTP}:     31,
	{30, VariableTP}:       32,
	{31, CloseBracketTP}:   31,
	{31, BinaryOperatorTP}: 30,
	{31, SemiColonTP}:      AcceptState,
	{32, CloseBracketTP}:   31,
	{32, BinaryOperatorTP}: 30,
	{32, OpenArrayTP}:      33,
	{32, SemiColonTP}:      AcceptState,
	{33, OpenBracketTP}:    33,
	{33, IntLiteralTP}:     34,
	{33, VariableTP}:       34,
	{34, CloseBracketTP}:   34,
	{34, BinaryOperatorTP}: 33,
	{34, CloseArrayTP}:     31,

	// End markers.
	{0, EndIfTP}:      40,
	{0, EndWhileTP}:   40,
	{0, EndFuncTP}:    40,
	{40, SemiColonTP}: AcceptState,

	// Function definition.
	{0, FuncTP}:       50,
	{50, VariableTP}:  51,
	{51, SemiColonTP}: AcceptState,
	{51, ColonTP}:     52,
	{52, VariableTP}:  53,
	{53, CommaTP}:     52,
	{53, SemiColonTP}: AcceptState,

	// Function call.
	{0, CallTP}:                60,
	{60, VariableTP}:           61,
	{61, SemiColonTP}:          AcceptState,
	{61, ColonTP}:              62,
	{62, VariableTP}:           63,
	{63, AssignmentOperatorTP}: 64,
	{64, IntLiteralTP}:         65,
	{64, VariableTP}:           65,
	{65, CommaTP}:              62,
	{65, SemiColonTP}:          AcceptState,
}

// Automaton holds the traversal state of one segmentation run. The transition table itself
// is shared.
type Automaton struct {
	state   int
	segment []*Token
}

func NewAutomaton() *Automaton {
	return &Automaton{state: InitialState}
}

// Step feeds one token. When the token completes a statement, the statement's tokens without
// the terminator are returned together with AcceptState and the automaton is ready for the
// next statement. Otherwise segment is nil and state is the state reached.
func (automaton *Automaton) Step(token *Token) (segment []*Token, state int, err error) {
	next, ok := transitions[transitionKey{automaton.state, token.Type}]
	if !ok {
		return nil, automaton.state, &SegmentationError{
			State:    automaton.state,
			Token:    token,
			Position: len(automaton.segment),
		}
	}
	automaton.state = next
	if next != AcceptState {
		automaton.segment = append(automaton.segment, token)
		return nil, next, nil
	}
	segment = automaton.segment
	automaton.segment, automaton.state = nil, InitialState
	return segment, AcceptState, nil
}

// State returns the current state.
func (automaton *Automaton) State() int {
	return automaton.state
}

// Pending returns how many tokens of an unfinished statement are buffered.
func (automaton *Automaton) Pending() int {
	return len(automaton.segment)
}
