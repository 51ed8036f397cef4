package internal

import (
	"fmt"
	"strings"
)

// In this file, we defined all ast of the idk language. The parser produces one statement ast
// per statement, so if and while come out flat, followed later by an EndIfAst / EndWhileAst.
// Reconstruct moves the statements between a header and its end marker into the header's body.

type Ast interface {
	fmt.Stringer
	ast()
}

type AssignmentAst struct {
	Name string
	Expr Ast
}

type ArrayDeclarationAst struct {
	Name string
	Size Ast
}

type ArrayAssignmentAst struct {
	Name  string
	Index Ast
	Value Ast
}

// ArrayIndexAst reads one element of an array.
type ArrayIndexAst struct {
	Name  string
	Index Ast
}

type BinaryOpAst struct {
	Op    string
	Left  Ast
	Right Ast
}

type IfAst struct {
	Left  Ast
	CmpOp string
	Right Ast
	Body  []Ast
}

type WhileAst struct {
	Left  Ast
	CmpOp string
	Right Ast
	Body  []Ast
}

type EndIfAst struct{}

type EndWhileAst struct{}

type FunctionDefAst struct {
	Name   string
	Params []string
}

type EndFunctionDefAst struct{}

type CallArgAst struct {
	Name  string
	Value string
}

type FunctionCallAst struct {
	Name string
	Args []CallArgAst
}

type PrintAst struct {
	Expr Ast
}

type LiteralAst struct {
	Value string
}

type VariableAst struct {
	Name string
}

type StartAst struct{}

type EndAst struct{}

// ErrorAst is returned instead of a statement when parsing failed. Err says why.
type ErrorAst struct {
	Err error
}

func (*AssignmentAst) ast()       {}
func (*ArrayDeclarationAst) ast() {}
func (*ArrayAssignmentAst) ast()  {}
func (*ArrayIndexAst) ast()       {}
func (*BinaryOpAst) ast()         {}
func (*IfAst) ast()               {}
func (*WhileAst) ast()            {}
func (*EndIfAst) ast()            {}
func (*EndWhileAst) ast()         {}
func (*FunctionDefAst) ast()      {}
func (*EndFunctionDefAst) ast()   {}
func (*FunctionCallAst) ast()     {}
func (*PrintAst) ast()            {}
func (*LiteralAst) ast()          {}
func (*VariableAst) ast()         {}
func (*StartAst) ast()            {}
func (*EndAst) ast()              {}
func (*ErrorAst) ast()            {}

func (a *AssignmentAst) String() string { return fmt.Sprintf("(assign %s %s)", a.Name, a.Expr) }

func (a *ArrayDeclarationAst) String() string {
	return fmt.Sprintf("(array %s %s)", a.Name, a.Size)
}

func (a *ArrayAssignmentAst) String() string {
	return fmt.Sprintf("(assign %s[%s] %s)", a.Name, a.Index, a.Value)
}

func (a *ArrayIndexAst) String() string { return fmt.Sprintf("%s[%s]", a.Name, a.Index) }

func (a *BinaryOpAst) String() string { return fmt.Sprintf("(%s %s %s)", a.Op, a.Left, a.Right) }

func (a *IfAst) String() string {
	return fmt.Sprintf("(if (%s %s %s)%s)", a.CmpOp, a.Left, a.Right, bodyString(a.Body))
}

func (a *WhileAst) String() string {
	return fmt.Sprintf("(while (%s %s %s)%s)", a.CmpOp, a.Left, a.Right, bodyString(a.Body))
}

func (*EndIfAst) String() string    { return "(endif)" }
func (*EndWhileAst) String() string { return "(endwhile)" }

func (a *FunctionDefAst) String() string {
	return fmt.Sprintf("(func %s (%s))", a.Name, strings.Join(a.Params, " "))
}

func (*EndFunctionDefAst) String() string { return "(endfunc)" }

func (a *FunctionCallAst) String() string {
	args := make([]string, 0, len(a.Args))
	for _, arg := range a.Args {
		args = append(args, arg.Name+"="+arg.Value)
	}
	return fmt.Sprintf("(call %s (%s))", a.Name, strings.Join(args, " "))
}

func (a *PrintAst) String() string    { return fmt.Sprintf("(print %s)", a.Expr) }
func (a *LiteralAst) String() string  { return a.Value }
func (a *VariableAst) String() string { return a.Name }
func (*StartAst) String() string      { return "(start)" }
func (*EndAst) String() string        { return "(end)" }

func (a *ErrorAst) String() string {
	if a.Err == nil {
		return "(error)"
	}
	return fmt.Sprintf("(error %q)", a.Err.Error())
}

func bodyString(body []Ast) string {
	var sb strings.Builder
	for _, node := range body {
		sb.WriteString(" ")
		sb.WriteString(node.String())
	}
	return sb.String()
}

// Program is the sequence of top level statements of one compilation.
type Program struct {
	Nodes []Ast
}

func NewProgram() *Program {
	return &Program{Nodes: []Ast{&StartAst{}}}
}

func (program *Program) AddNode(node Ast) {
	program.Nodes = append(program.Nodes, node)
}

// Reconstruct nests the flat statement list in place.
func (program *Program) Reconstruct() error {
	nodes, err := Reconstruct(program.Nodes)
	if err != nil {
		return err
	}
	program.Nodes = nodes
	return nil
}

func (program *Program) String() string {
	lines := make([]string, 0, len(program.Nodes))
	for _, node := range program.Nodes {
		lines = append(lines, node.String())
	}
	return strings.Join(lines, "\n")
}

// Reconstruct returns nodes with every if / while owning the statements up to its matching
// end marker. Nested blocks are rebuilt first, so the result is a proper tree.
func Reconstruct(nodes []Ast) ([]Ast, error) {
	cursor := &astCursor{nodes: nodes}
	return cursor.collectBlock(nil)
}

type astCursor struct {
	nodes []Ast
	pos   int
}

func (cursor *astCursor) next() (Ast, bool) {
	if cursor.pos >= len(cursor.nodes) {
		return nil, false
	}
	node := cursor.nodes[cursor.pos]
	cursor.pos++
	return node, true
}

// collectBlock consumes nodes until the end marker closing header. A nil header collects the
// top level, which ends with the input.
func (cursor *astCursor) collectBlock(header Ast) ([]Ast, error) {
	var content []Ast
	for {
		node, ok := cursor.next()
		if !ok {
			if header != nil {
				return nil, fmt.Errorf("%w: %s has no matching end", ErrUnterminatedBlock, header)
			}
			return content, nil
		}
		switch n := node.(type) {
		case *IfAst:
			body, err := cursor.collectBlock(n)
			if err != nil {
				return nil, err
			}
			content = append(content, &IfAst{Left: n.Left, CmpOp: n.CmpOp, Right: n.Right, Body: body})
		case *WhileAst:
			body, err := cursor.collectBlock(n)
			if err != nil {
				return nil, err
			}
			content = append(content, &WhileAst{Left: n.Left, CmpOp: n.CmpOp, Right: n.Right, Body: body})
		case *EndIfAst, *EndWhileAst:
			if !closes(header, node) {
				return nil, fmt.Errorf("%w: unexpected %s", ErrUnbalancedBlock, node)
			}
			return content, nil
		default:
			content = append(content, node)
		}
	}
}

func closes(header Ast, end Ast) bool {
	switch header.(type) {
	case *IfAst:
		_, ok := end.(*EndIfAst)
		return ok
	case *WhileAst:
		_, ok := end.(*EndWhileAst)
		return ok
	}
	return false
}
