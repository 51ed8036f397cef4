package assembler

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

var (
	ErrStepLimit      = errors.New("step limit reached")
	ErrSegmentFault   = errors.New("segment fault")
	ErrDivideByZero   = errors.New("divide by zero")
	ErrMissingExit    = errors.New("program ran past its last instruction")
	ErrUnknownSyscall = errors.New("unknown syscall")
	ErrUnknownSymbol  = errors.New("unknown symbol")
)

const DefaultMaxSteps = 1000000

var instructionArity = map[string]int{
	"mov":  2,
	"lea":  2,
	"add":  2,
	"sub":  2,
	"imul": 2,
	"xor":  2,
	"cmp":  2,
	"test": 2,
	"cdq":  0,
	"ret":  0,
	"idiv": 1,
	"div":  1,
	"neg":  1,
	"inc":  1,
	"dec":  1,
	"push": 1,
	"pop":  1,
	"int":  1,
	"call": 1,
	"jmp":  1,
	"je":   1,
	"jz":   1,
	"jne":  1,
	"jnz":  1,
	"jl":   1,
	"jle":  1,
	"jg":   1,
	"jge":  1,
	"jns":  1,
}

type Options struct {
	// MaxSteps bounds the number of executed instructions, DefaultMaxSteps when 0.
	MaxSteps int
}

// Machine runs an assembled listing on a flat 32 bit memory. Only the two linux syscalls used by
// generated programs are available: write (eax = 4) and exit (eax = 1).
type Machine struct {
	commands  []Command
	labels    map[string]int
	data      map[string]int32
	memory    []byte
	registers [8]int32
	ip        int
	zf, sf    bool
	of, cf    bool
	options   Options
}

// Load assembles the listing read from rd.
func Load(rd io.Reader, options Options) (*Machine, error) {
	asm := CreateAssembler()
	commands, err := asm.Parse(rd)
	if err != nil {
		return nil, err
	}
	if options.MaxSteps <= 0 {
		options.MaxSteps = DefaultMaxSteps
	}
	return &Machine{
		commands: commands,
		labels:   asm.labelLocationMap,
		data:     asm.dataLocationMap,
		memory:   append(asm.memory, make([]byte, stackSize)...),
		options:  options,
	}, nil
}

// Run executes from _start, or from the first instruction when there is no _start, until the
// program exits. Everything written to fd 1 or 2 goes to out. The returned int is the exit code.
func (machine *Machine) Run(out io.Writer) (int, error) {
	machine.registers = [8]int32{}
	machine.registers[registerIndex["esp"]] = int32(len(machine.memory))
	machine.ip = machine.labels["_start"]
	for steps := 0; ; steps++ {
		if steps >= machine.options.MaxSteps {
			return 0, fmt.Errorf("%w: %d steps", ErrStepLimit, steps)
		}
		if machine.ip < 0 || machine.ip >= len(machine.commands) {
			return 0, ErrMissingExit
		}
		command := machine.commands[machine.ip]
		machine.ip++
		exited, code, err := machine.execute(command, out)
		if err != nil {
			return 0, fmt.Errorf("line %d: %s: %w", command.Line, command.OriginalContent, err)
		}
		if exited {
			return code, nil
		}
	}
}

// ReadDword returns the index-th 32 bit cell after the data label.
func (machine *Machine) ReadDword(label string, index int) (int32, error) {
	addr, ok := machine.data[label]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownSymbol, label)
	}
	return machine.load(addr+int32(index*4), false)
}

// Listing prints every assembled command, one per line.
func (machine *Machine) Listing() string {
	return convertCommandsToString(machine.commands)
}

func (machine *Machine) register(name string) *int32 {
	return &machine.registers[registerIndex[name]]
}

func (machine *Machine) address(operand Operand) int32 {
	addr := operand.Value
	if operand.Base != "" {
		addr += *machine.register(operand.Base)
	}
	if operand.Index != "" {
		addr += *machine.register(operand.Index) * operand.Scale
	}
	return addr
}

func (machine *Machine) load(addr int32, byteSized bool) (int32, error) {
	size := int32(4)
	if byteSized {
		size = 1
	}
	if addr < 0 || int(addr+size) > len(machine.memory) {
		return 0, fmt.Errorf("%w: read at %#x", ErrSegmentFault, addr)
	}
	if byteSized {
		return int32(machine.memory[addr]), nil
	}
	return int32(binary.LittleEndian.Uint32(machine.memory[addr:])), nil
}

func (machine *Machine) store(addr int32, value int32, byteSized bool) error {
	size := int32(4)
	if byteSized {
		size = 1
	}
	if addr < 0 || int(addr+size) > len(machine.memory) {
		return fmt.Errorf("%w: write at %#x", ErrSegmentFault, addr)
	}
	if byteSized {
		machine.memory[addr] = byte(value)
		return nil
	}
	binary.LittleEndian.PutUint32(machine.memory[addr:], uint32(value))
	return nil
}

// A memory operand takes its size from a byte prefix or from the register it is paired with.
func byteSized(command Command) bool {
	for _, operand := range command.Operands {
		if operand.Byte {
			return true
		}
	}
	return false
}

func (machine *Machine) read(operand Operand, byteSized bool) (int32, error) {
	switch operand.Tp {
	case RegisterOperand:
		value := *machine.register(operand.Register)
		if operand.Byte {
			value &= 0xff
		}
		return value, nil
	case MemoryOperand:
		return machine.load(machine.address(operand), byteSized)
	}
	return operand.Value, nil
}

func (machine *Machine) write(operand Operand, value int32, byteSized bool) error {
	switch operand.Tp {
	case RegisterOperand:
		reg := machine.register(operand.Register)
		if operand.Byte {
			*reg = (*reg &^ 0xff) | (value & 0xff)
			return nil
		}
		*reg = value
		return nil
	case MemoryOperand:
		return machine.store(machine.address(operand), value, byteSized)
	}
	return errors.New("cannot write to an immediate")
}

func (machine *Machine) setResultFlags(result int32) {
	machine.zf, machine.sf = result == 0, result < 0
}

func (machine *Machine) push(value int32) error {
	esp := machine.register("esp")
	*esp -= 4
	return machine.store(*esp, value, false)
}

func (machine *Machine) pop() (int32, error) {
	esp := machine.register("esp")
	value, err := machine.load(*esp, false)
	*esp += 4
	return value, err
}

func (machine *Machine) jumpTaken(op string) bool {
	switch op {
	case "jmp":
		return true
	case "je", "jz":
		return machine.zf
	case "jne", "jnz":
		return !machine.zf
	case "jl":
		return machine.sf != machine.of
	case "jge":
		return machine.sf == machine.of
	case "jg":
		return !machine.zf && machine.sf == machine.of
	case "jle":
		return machine.zf || machine.sf != machine.of
	case "jns":
		return !machine.sf
	}
	return false
}

func (machine *Machine) execute(command Command, out io.Writer) (exited bool, code int, err error) {
	size := byteSized(command)
	var dst, src int32
	switch command.Op {
	case "mov", "add", "sub", "imul", "xor", "cmp", "test":
		if src, err = machine.read(command.Operands[1], size); err != nil {
			return
		}
		if command.Op != "mov" {
			if dst, err = machine.read(command.Operands[0], size); err != nil {
				return
			}
		}
	}

	switch command.Op {
	case "mov":
		err = machine.write(command.Operands[0], src, size)
	case "lea":
		err = machine.write(command.Operands[0], machine.address(command.Operands[1]), false)
	case "add":
		result := dst + src
		machine.of = (dst >= 0) == (src >= 0) && (result >= 0) != (dst >= 0)
		machine.cf = uint32(result) < uint32(dst)
		machine.setResultFlags(result)
		err = machine.write(command.Operands[0], result, size)
	case "sub", "cmp":
		result := dst - src
		machine.of = (dst >= 0) != (src >= 0) && (result >= 0) != (dst >= 0)
		machine.cf = uint32(dst) < uint32(src)
		machine.setResultFlags(result)
		if command.Op == "sub" {
			err = machine.write(command.Operands[0], result, size)
		}
	case "imul":
		wide := int64(dst) * int64(src)
		machine.of = wide != int64(int32(wide))
		machine.cf = machine.of
		err = machine.write(command.Operands[0], int32(wide), size)
	case "xor", "test":
		result := dst ^ src
		if command.Op == "test" {
			result = dst & src
		}
		machine.of, machine.cf = false, false
		machine.setResultFlags(result)
		if command.Op == "xor" {
			err = machine.write(command.Operands[0], result, size)
		}
	case "cdq":
		*machine.register("edx") = *machine.register("eax") >> 31
	case "idiv", "div":
		err = machine.divide(command)
	case "neg", "inc", "dec":
		if dst, err = machine.read(command.Operands[0], size); err != nil {
			return
		}
		result := -dst
		if command.Op == "inc" {
			result = dst + 1
		} else if command.Op == "dec" {
			result = dst - 1
		}
		machine.setResultFlags(result)
		err = machine.write(command.Operands[0], result, size)
	case "push":
		if src, err = machine.read(command.Operands[0], false); err != nil {
			return
		}
		err = machine.push(src)
	case "pop":
		if src, err = machine.pop(); err != nil {
			return
		}
		err = machine.write(command.Operands[0], src, false)
	case "call":
		if err = machine.push(int32(machine.ip)); err != nil {
			return
		}
		machine.ip = int(command.Operands[0].Value)
	case "ret":
		if src, err = machine.pop(); err != nil {
			return
		}
		machine.ip = int(src)
	case "int":
		return machine.syscall(command, out)
	default:
		if machine.jumpTaken(command.Op) {
			machine.ip = int(command.Operands[0].Value)
		}
	}
	return
}

func (machine *Machine) divide(command Command) error {
	divisor, err := machine.read(command.Operands[0], false)
	if err != nil {
		return err
	}
	if divisor == 0 {
		return ErrDivideByZero
	}
	eax, edx := machine.register("eax"), machine.register("edx")
	if command.Op == "div" {
		dividend := uint64(uint32(*edx))<<32 | uint64(uint32(*eax))
		*eax, *edx = int32(uint32(dividend/uint64(uint32(divisor)))), int32(uint32(dividend%uint64(uint32(divisor))))
		return nil
	}
	dividend := int64(*edx)<<32 | int64(uint32(*eax))
	*eax, *edx = int32(dividend/int64(divisor)), int32(dividend%int64(divisor))
	return nil
}

func (machine *Machine) syscall(command Command, out io.Writer) (bool, int, error) {
	if command.Operands[0].Value != 0x80 {
		return false, 0, fmt.Errorf("%w: int %#x", ErrUnknownSyscall, command.Operands[0].Value)
	}
	eax := machine.register("eax")
	switch *eax {
	case 1:
		return true, int(*machine.register("ebx")), nil
	case 4:
		fd, buf, length := *machine.register("ebx"), *machine.register("ecx"), *machine.register("edx")
		if buf < 0 || length < 0 || int(buf)+int(length) > len(machine.memory) {
			return false, 0, fmt.Errorf("%w: write of %d bytes at %#x", ErrSegmentFault, length, buf)
		}
		if fd == 1 || fd == 2 {
			if _, err := out.Write(machine.memory[buf : buf+length]); err != nil {
				return false, 0, err
			}
		}
		*eax = length
		return false, 0, nil
	}
	return false, 0, fmt.Errorf("%w: eax = %d", ErrUnknownSyscall, *eax)
}
