package assembler

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// A small assembler for the nasm subset produced by the idk compiler. It reads a listing,
// lays out .data and .bss into a flat little endian memory and turns every instruction of
// .text into a Command that Machine can run.
//
// Labels can be used before they are declared, so every operand naming a symbol is remembered
// in symbolLocations and patched once the whole listing has been read. A label starting with
// '.' is local to the last label without a dot, as in nasm.

const (
	dataBaseAddr = 0x100
	stackSize    = 64 * 1024
)

var registerIndex = map[string]int{
	"eax": 0,
	"ebx": 1,
	"ecx": 2,
	"edx": 3,
	"esi": 4,
	"edi": 5,
	"esp": 6,
	"ebp": 7,
}

// byteRegisters are the low bytes of the general purpose registers.
var byteRegisters = map[string]string{
	"al": "eax",
	"bl": "ebx",
	"cl": "ecx",
	"dl": "edx",
}

var labelFormat = regexp.MustCompile(`^[A-Za-z_.$][0-9A-Za-z_.$]*$`)

type OperandType int

const (
	RegisterOperand OperandType = iota
	ImmediateOperand
	MemoryOperand
)

type Operand struct {
	Tp OperandType
	// Register is the full register name, e.g. "edx" for dl.
	Register string
	Byte     bool
	// Value is the immediate, or the displacement of a memory operand. Symbols are added to it
	// once they are resolved.
	Value  int32
	Base   string
	Index  string
	Scale  int32
	Symbol string
}

type Command struct {
	Op              string
	Operands        []Operand
	Line            int
	OriginalContent string
}

func (command Command) String() string {
	return fmt.Sprintf("Command: {Op: %s, Line: %d, OriginalContent: %s}", command.Op, command.Line,
		command.OriginalContent)
}

type symbolLocation struct {
	symbol  string
	line    int
	command int
	operand int
}

type Assembler struct {
	line             int
	section          string
	currentLabel     string
	labelLocationMap map[string]int
	dataLocationMap  map[string]int32
	symbolLocations  []symbolLocation
	commands         []Command
	memory           []byte
}

func CreateAssembler() *Assembler {
	return &Assembler{
		line:             1,
		labelLocationMap: map[string]int{},
		dataLocationMap:  map[string]int32{},
		memory:           make([]byte, dataBaseAddr),
	}
}

// Parse reads the whole listing and returns its commands with every symbol resolved.
func (asm *Assembler) Parse(rd io.Reader) ([]Command, error) {
	scanner := bufio.NewScanner(rd)
	for scanner.Scan() {
		line, hasRemainCharacter := asm.trimLine(scanner.Bytes())
		if hasRemainCharacter {
			if err := asm.transformLine(line); err != nil {
				return nil, err
			}
		}
		asm.line++
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if err := asm.updateSymbolLocations(); err != nil {
		return nil, err
	}
	return asm.commands, nil
}

// trimLine removes spaces and a trailing comment, then reports whether anything is left.
func (asm *Assembler) trimLine(line []byte) ([]byte, bool) {
	inQuote := false
	for i, b := range line {
		if b == '\'' {
			inQuote = !inQuote
		}
		if b == ';' && !inQuote {
			line = line[:i]
			break
		}
	}
	line = bytes.TrimSpace(line)
	return line, len(line) > 0
}

func (asm *Assembler) transformLine(line []byte) error {
	text := string(line)
	fields := strings.Fields(text)
	switch {
	case fields[0] == "section":
		if len(fields) != 2 {
			return asm.makeSyntaxErr("section needs a name")
		}
		asm.section = fields[1]
		return nil
	case fields[0] == "global":
		return nil
	case strings.HasSuffix(text, ":") && len(fields) == 1:
		return asm.transformLabel(strings.TrimSuffix(text, ":"))
	case asm.section == ".data" || asm.section == ".bss":
		return asm.transformData(fields)
	case asm.section == ".text":
		return asm.transformInstruction(text)
	}
	return asm.makeSyntaxErr(fmt.Sprintf("%s outside of any section", text))
}

func (asm *Assembler) qualify(label string) string {
	if strings.HasPrefix(label, ".") {
		return asm.currentLabel + label
	}
	return label
}

func (asm *Assembler) transformLabel(label string) error {
	if !labelFormat.MatchString(label) {
		return asm.makeSyntaxErr("wrong label format")
	}
	if asm.section != ".text" {
		return asm.makeSyntaxErr("code label outside of .text")
	}
	if !strings.HasPrefix(label, ".") {
		asm.currentLabel = label
	}
	label = asm.qualify(label)
	if _, exist := asm.labelLocationMap[label]; exist {
		return asm.makeSyntaxErr("found duplicate label " + label)
	}
	asm.labelLocationMap[label] = len(asm.commands)
	return nil
}

// name dd 1, 2 / name db 0xA / name resd 5 / name resb 12
func (asm *Assembler) transformData(fields []string) error {
	if len(fields) < 3 {
		return asm.makeSyntaxErr("data declaration needs a name, a directive and a value")
	}
	name := fields[0]
	if !labelFormat.MatchString(name) {
		return asm.makeSyntaxErr("wrong data label format")
	}
	if _, exist := asm.dataLocationMap[name]; exist {
		return asm.makeSyntaxErr("found duplicate data label " + name)
	}
	asm.dataLocationMap[name] = int32(len(asm.memory))
	args := strings.Join(fields[2:], "")
	switch fields[1] {
	case "dd", "db":
		for _, raw := range strings.Split(args, ",") {
			value, err := parseNumber(raw)
			if err != nil {
				return asm.makeSyntaxErr(err.Error())
			}
			if fields[1] == "db" {
				asm.memory = append(asm.memory, byte(value))
				continue
			}
			asm.memory = append(asm.memory, byte(value), byte(value>>8), byte(value>>16), byte(value>>24))
		}
	case "resd", "resb":
		count, err := strconv.Atoi(args)
		if err != nil || count < 0 {
			return asm.makeSyntaxErr("wrong reservation size " + args)
		}
		if fields[1] == "resd" {
			count *= 4
		}
		asm.memory = append(asm.memory, make([]byte, count)...)
	default:
		return asm.makeSyntaxErr("unknown data directive " + fields[1])
	}
	return nil
}

func (asm *Assembler) transformInstruction(text string) error {
	op, rest := text, ""
	if i := strings.IndexAny(text, " \t"); i >= 0 {
		op, rest = text[:i], strings.TrimSpace(text[i+1:])
	}
	op = strings.ToLower(op)
	arity, known := instructionArity[op]
	if !known {
		return asm.makeSyntaxErr("unknown instruction " + op)
	}
	command := Command{Op: op, Line: asm.line, OriginalContent: text}
	if rest != "" {
		for _, raw := range strings.Split(rest, ",") {
			operand, err := asm.parseOperand(strings.TrimSpace(raw), len(command.Operands))
			if err != nil {
				return err
			}
			command.Operands = append(command.Operands, operand)
		}
	}
	if len(command.Operands) != arity {
		return asm.makeSyntaxErr(fmt.Sprintf("%s expects %d operands", op, arity))
	}
	asm.commands = append(asm.commands, command)
	return nil
}

func (asm *Assembler) parseOperand(raw string, position int) (Operand, error) {
	operand := Operand{}
	if strings.HasPrefix(raw, "byte ") {
		operand.Byte, raw = true, strings.TrimSpace(raw[len("byte "):])
	} else if strings.HasPrefix(raw, "dword ") {
		raw = strings.TrimSpace(raw[len("dword "):])
	}
	if full, ok := byteRegisters[raw]; ok {
		operand.Tp, operand.Register, operand.Byte = RegisterOperand, full, true
		return operand, nil
	}
	if _, ok := registerIndex[raw]; ok {
		operand.Tp, operand.Register = RegisterOperand, raw
		return operand, nil
	}
	if strings.HasPrefix(raw, "[") && strings.HasSuffix(raw, "]") {
		operand.Tp = MemoryOperand
		return operand, asm.parseTerms(&operand, raw[1:len(raw)-1], position, true)
	}
	operand.Tp = ImmediateOperand
	return operand, asm.parseTerms(&operand, raw, position, false)
}

// parseTerms reads "term + term + ..." where a term is a number, a character, a symbol, or
// inside brackets a register optionally scaled by a number.
func (asm *Assembler) parseTerms(operand *Operand, expr string, position int, memory bool) error {
	for _, term := range strings.Split(expr, "+") {
		term = strings.TrimSpace(term)
		if memory {
			reg, scale, scaled := strings.Cut(term, "*")
			reg = strings.TrimSpace(reg)
			if _, ok := registerIndex[reg]; ok {
				if !scaled && operand.Base == "" {
					operand.Base = reg
					continue
				}
				factor := int64(1)
				if scaled {
					var err error
					if factor, err = parseNumber(scale); err != nil {
						return asm.makeSyntaxErr(err.Error())
					}
				}
				if operand.Index != "" {
					return asm.makeSyntaxErr("too many registers in " + expr)
				}
				operand.Index, operand.Scale = reg, int32(factor)
				continue
			}
		}
		if value, err := parseNumber(term); err == nil {
			operand.Value += int32(value)
			continue
		}
		if !labelFormat.MatchString(term) || operand.Symbol != "" {
			return asm.makeSyntaxErr("wrong operand " + expr)
		}
		operand.Symbol = asm.qualify(term)
		asm.symbolLocations = append(asm.symbolLocations, symbolLocation{
			symbol:  operand.Symbol,
			line:    asm.line,
			command: len(asm.commands),
			operand: position,
		})
	}
	return nil
}

func parseNumber(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) == 3 && raw[0] == '\'' && raw[2] == '\'' {
		return int64(raw[1]), nil
	}
	// nasm reads 010 as ten, only the 0x prefix changes the base.
	digits := strings.TrimPrefix(raw, "-")
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		return strconv.ParseInt(raw, 0, 64)
	}
	return strconv.ParseInt(raw, 10, 64)
}

// updateSymbolLocations patches every symbol operand. Data labels become addresses and code
// labels become command indexes.
func (asm *Assembler) updateSymbolLocations() error {
	for _, location := range asm.symbolLocations {
		operand := &asm.commands[location.command].Operands[location.operand]
		if addr, exist := asm.dataLocationMap[location.symbol]; exist {
			operand.Value += addr
			continue
		}
		if index, exist := asm.labelLocationMap[location.symbol]; exist {
			operand.Value += int32(index)
			continue
		}
		return asm.makeSyntaxErrAtSpecificLine(location.line, "undefined symbol "+location.symbol)
	}
	return nil
}

func (asm *Assembler) makeSyntaxErr(msg string) error {
	return asm.makeSyntaxErrAtSpecificLine(asm.line, msg)
}

func (asm *Assembler) makeSyntaxErrAtSpecificLine(line int, msg string) error {
	return errors.New(fmt.Sprintf("syntax err at line %d: %s", line, msg))
}

func convertCommandsToString(commands []Command) string {
	bf := bytes.Buffer{}
	for _, command := range commands {
		bf.WriteString(fmt.Sprintf("%s\n", command))
	}
	return bf.String()
}
