package internal

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// The generated program targets 32 bit linux and talks to the kernel with int 0x80.
// eax always holds the value of the last generated expression and ebx is the scratch
// register of binary operations. Everything else goes through the machine stack.
//
// section .data       one dd per scalar, and the newline used by print
// section .bss        one resd block per array, and the buffer used by print
// section .text       _start, the statements, the exit sequence, then print_eax

const (
	scalarLabelPrefix = "var_"
	arrayLabelPrefix  = "arr_"
	printRoutineLabel = "print_eax"
	elementSize       = 4
)

// jumpIfFalse maps a comparison to the jump taken when the comparison does not hold.
var jumpIfFalse = map[string]string{
	"==": "jne",
	"=!": "je",
	"<":  "jge",
	">":  "jle",
	"=<": "jg",
	"=>": "jl",
}

var binaryOpInstructions = map[string][]string{
	"+": {"add eax, ebx"},
	"-": {"sub eax, ebx"},
	"*": {"imul eax, ebx"},
	"/": {"cdq", "idiv ebx"},
	"%": {"cdq", "idiv ebx", "mov eax, edx"},
}

// printRoutine writes eax in decimal followed by a newline. Digits are produced back to front
// into buffer, which ends with a 0 byte.
var printRoutine = []string{
	printRoutineLabel + ":",
	"push ecx",
	"push edx",
	"push esi",
	"xor esi, esi",
	"mov edi, buffer + 11",
	"mov byte [edi], 0",
	"test eax, eax",
	"jns .convert",
	"neg eax",
	"mov esi, 1",
	".convert:",
	"mov ebx, 10",
	".convert_loop:",
	"dec edi",
	"xor edx, edx",
	"div ebx",
	"add dl, '0'",
	"mov [edi], dl",
	"test eax, eax",
	"jnz .convert_loop",
	"test esi, esi",
	"jz .write",
	"dec edi",
	"mov byte [edi], '-'",
	".write:",
	"mov eax, 4",
	"mov ebx, 1",
	"mov ecx, edi",
	"mov edx, buffer + 11",
	"sub edx, edi",
	"int 0x80",
	"mov eax, 4",
	"mov ebx, 1",
	"mov ecx, newline",
	"mov edx, 1",
	"int 0x80",
	"pop esi",
	"pop edx",
	"pop ecx",
	"ret",
}

var exitSequence = []string{
	"mov eax, 1",
	"xor ebx, ebx",
	"int 0x80",
}

// Assembly is the generated listing, kept by region until it is written out.
type Assembly struct {
	Data        []string
	Bss         []string
	Text        []string
	Routines    []string
	Diagnostics []string
}

func (assembly *Assembly) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.WriteString("section .data\n")
	writeLines(&buf, assembly.Data, "")
	buf.WriteString("\nsection .bss\n")
	writeLines(&buf, assembly.Bss, "")
	buf.WriteString("\nsection .text\nglobal _start\n\n_start:\n")
	writeLines(&buf, assembly.Text, "    ")
	if len(assembly.Routines) > 0 {
		buf.WriteString("\n")
		writeLines(&buf, assembly.Routines, "    ")
	}
	return buf.WriteTo(w)
}

func (assembly *Assembly) String() string {
	var sb strings.Builder
	_, _ = assembly.WriteTo(&sb)
	return sb.String()
}

// Labels are written flush left, everything else indented.
func writeLines(buf *bytes.Buffer, lines []string, indent string) {
	for _, line := range lines {
		if strings.HasSuffix(line, ":") {
			buf.WriteString(line + "\n")
			continue
		}
		buf.WriteString(indent + line + "\n")
	}
}

type CodeGenerator struct {
	symbolTable  *SymbolTable
	assembly     *Assembly
	labelCounter int
	printEmitted bool
}

func NewCodeGenerator(symbolTable *SymbolTable) *CodeGenerator {
	return &CodeGenerator{symbolTable: symbolTable}
}

// Generate lowers a reconstructed program. Function definitions and calls stop the generation
// with an UnsupportedConstructError. Unknown operators are marked in the listing and reported
// as ErrUnknownOperator once the whole program has been walked.
func (generator *CodeGenerator) Generate(nodes []Ast) (*Assembly, error) {
	generator.assembly, generator.labelCounter, generator.printEmitted = &Assembly{}, 0, false
	generator.generateStorage()
	if err := generator.generateStatementsCode(nodes); err != nil {
		return generator.assembly, err
	}
	generator.writeOutput(exitSequence...)
	if len(generator.assembly.Diagnostics) > 0 {
		return generator.assembly, fmt.Errorf("%w: %s", ErrUnknownOperator,
			strings.Join(generator.assembly.Diagnostics, "; "))
	}
	return generator.assembly, nil
}

// generateStorage declares one cell per scalar name and one block per array name. A name
// declared again, e.g. in two sibling blocks, shares one storage location; an array block is
// sized by the longest of its declarations.
func (generator *CodeGenerator) generateStorage() {
	var labels []string
	kinds := map[string]SymbolKind{}
	lengths := map[string]int{}
	for _, entry := range generator.symbolTable.Entries() {
		label := storageLabel(entry.Name, entry.Kind)
		if _, ok := kinds[label]; !ok {
			labels = append(labels, label)
			kinds[label] = entry.Kind
		}
		if entry.Length > lengths[label] {
			lengths[label] = entry.Length
		}
	}
	for _, label := range labels {
		switch kinds[label] {
		case ScalarSymbol:
			generator.assembly.Data = append(generator.assembly.Data, fmt.Sprintf("%s dd 0", label))
		case ArraySymbol:
			generator.assembly.Bss = append(generator.assembly.Bss, fmt.Sprintf("%s resd %d", label, lengths[label]))
		}
	}
	generator.assembly.Data = append(generator.assembly.Data, "newline db 0xA")
	generator.assembly.Bss = append(generator.assembly.Bss, "buffer resb 12")
}

func storageLabel(name string, kind SymbolKind) string {
	if kind == ArraySymbol {
		return arrayLabelPrefix + name
	}
	return scalarLabelPrefix + name
}

func (generator *CodeGenerator) newLabel(base string) string {
	label := fmt.Sprintf("%s_%d", base, generator.labelCounter)
	generator.labelCounter++
	return label
}

func (generator *CodeGenerator) writeOutput(lines ...string) {
	generator.assembly.Text = append(generator.assembly.Text, lines...)
}

func (generator *CodeGenerator) diagnose(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	generator.assembly.Diagnostics = append(generator.assembly.Diagnostics, msg)
	generator.writeOutput("; " + msg)
}

func (generator *CodeGenerator) generateStatementsCode(nodes []Ast) error {
	for _, node := range nodes {
		if err := generator.generateCode(node); err != nil {
			return err
		}
	}
	return nil
}

func (generator *CodeGenerator) generateCode(node Ast) error {
	switch n := node.(type) {
	case *StartAst, *EndAst:
		return nil
	case *AssignmentAst:
		if err := generator.generateCode(n.Expr); err != nil {
			return err
		}
		generator.writeOutput(fmt.Sprintf("mov [%s], eax", storageLabel(n.Name, ScalarSymbol)))
	case *ArrayDeclarationAst:
		// Storage is reserved in .bss, nothing to run.
	case *ArrayAssignmentAst:
		return generator.generateArrayAssignmentCode(n)
	case *ArrayIndexAst:
		if err := generator.generateCode(n.Index); err != nil {
			return err
		}
		generator.writeOutput(
			fmt.Sprintf("lea esi, [%s]", storageLabel(n.Name, ArraySymbol)),
			fmt.Sprintf("mov eax, [esi + eax*%d]", elementSize),
		)
	case *BinaryOpAst:
		return generator.generateBinaryOpCode(n)
	case *LiteralAst:
		// the source reads literals as decimal, the assembler would read a leading 0 as octal.
		value, err := strconv.Atoi(n.Value)
		if err != nil {
			return fmt.Errorf("%w: literal %q", ErrMalformedExpression, n.Value)
		}
		generator.writeOutput(fmt.Sprintf("mov eax, %d", value))
	case *VariableAst:
		generator.writeOutput(fmt.Sprintf("mov eax, [%s]", storageLabel(n.Name, ScalarSymbol)))
	case *IfAst:
		return generator.generateIfCode(n)
	case *WhileAst:
		return generator.generateWhileCode(n)
	case *PrintAst:
		if err := generator.generateCode(n.Expr); err != nil {
			return err
		}
		generator.writeOutput("call " + printRoutineLabel)
		if !generator.printEmitted {
			generator.assembly.Routines = append(generator.assembly.Routines, printRoutine...)
			generator.printEmitted = true
		}
	case *FunctionDefAst, *EndFunctionDefAst, *FunctionCallAst:
		return &UnsupportedConstructError{Node: node}
	case *ErrorAst:
		return fmt.Errorf("error node reached code generation: %w", n.Err)
	default:
		return errors.New(fmt.Sprintf("unexpected %T in reconstructed program: %s", node, node))
	}
	return nil
}

// The index is kept on the stack while the value is generated, since the value may itself
// read an array.
func (generator *CodeGenerator) generateArrayAssignmentCode(n *ArrayAssignmentAst) error {
	if err := generator.generateCode(n.Index); err != nil {
		return err
	}
	generator.writeOutput("push eax")
	if err := generator.generateCode(n.Value); err != nil {
		return err
	}
	generator.writeOutput(
		"pop ecx",
		fmt.Sprintf("lea esi, [%s]", storageLabel(n.Name, ArraySymbol)),
		fmt.Sprintf("mov [esi + ecx*%d], eax", elementSize),
	)
	return nil
}

// right operand first, then left, so that left ends in eax and right in ebx.
func (generator *CodeGenerator) generateBinaryOpCode(n *BinaryOpAst) error {
	if err := generator.generateOperands(n.Left, n.Right); err != nil {
		return err
	}
	instructions, ok := binaryOpInstructions[n.Op]
	if !ok {
		generator.diagnose("unknown binary operator %s", n.Op)
		return nil
	}
	generator.writeOutput(instructions...)
	return nil
}

func (generator *CodeGenerator) generateOperands(left, right Ast) error {
	if err := generator.generateCode(right); err != nil {
		return err
	}
	generator.writeOutput("push eax")
	if err := generator.generateCode(left); err != nil {
		return err
	}
	generator.writeOutput("pop ebx")
	return nil
}

// Evaluates left CMP right and jumps to target when it does not hold.
func (generator *CodeGenerator) generateConditionCode(left Ast, cmpOp string, right Ast, target string) error {
	if err := generator.generateOperands(left, right); err != nil {
		return err
	}
	generator.writeOutput("cmp eax, ebx")
	jump, ok := jumpIfFalse[cmpOp]
	if !ok {
		generator.diagnose("unknown comparison operator %s", cmpOp)
		return nil
	}
	generator.writeOutput(fmt.Sprintf("%s %s", jump, target))
	return nil
}

//	condition, jump to endif_N when false
//	body
//	endif_N:
func (generator *CodeGenerator) generateIfCode(n *IfAst) error {
	endLabel := generator.newLabel("endif")
	if err := generator.generateConditionCode(n.Left, n.CmpOp, n.Right, endLabel); err != nil {
		return err
	}
	if err := generator.generateStatementsCode(n.Body); err != nil {
		return err
	}
	generator.writeOutput(endLabel + ":")
	return nil
}

//	while_start_N:
//	condition, jump to while_end_M when false
//	body
//	jmp while_start_N
//	while_end_M:
func (generator *CodeGenerator) generateWhileCode(n *WhileAst) error {
	startLabel, endLabel := generator.newLabel("while_start"), generator.newLabel("while_end")
	generator.writeOutput(startLabel + ":")
	if err := generator.generateConditionCode(n.Left, n.CmpOp, n.Right, endLabel); err != nil {
		return err
	}
	if err := generator.generateStatementsCode(n.Body); err != nil {
		return err
	}
	generator.writeOutput("jmp "+startLabel, endLabel+":")
	return nil
}
