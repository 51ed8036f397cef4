package assembler

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runListing(t *testing.T, listing string, options Options) (*Machine, string, int, error) {
	t.Helper()
	machine, err := Load(strings.NewReader(listing), options)
	require.NoError(t, err)
	var out bytes.Buffer
	code, err := machine.Run(&out)
	return machine, out.String(), code, err
}

func TestRunWriteAndExit(t *testing.T) {
	listing := `section .data
msg db 104, 105, 0xA

section .text
global _start

_start:
    mov eax, 4
    mov ebx, 1
    mov ecx, msg
    mov edx, 3
    int 0x80
    mov eax, 1
    mov ebx, 3
    int 0x80
`
	_, out, code, err := runListing(t, listing, Options{})
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)
	assert.Equal(t, 3, code)
}

func TestArithmetic(t *testing.T) {
	listing := `section .data
var_r dd 0
var_q dd 0

section .text
_start:
    mov eax, -7
    mov ebx, 2
    cdq
    idiv ebx
    mov [var_q], eax
    mov [var_r], edx
    mov eax, 6
    mov ebx, 7
    imul eax, ebx
    sub eax, 2
    neg eax
    mov ecx, 1
    lea esi, [var_r]
    mov [esi + ecx*4], eax
    mov eax, 1
    xor ebx, ebx
    int 0x80
`
	machine, _, code, err := runListing(t, listing, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	r, err := machine.ReadDword("var_r", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), r)
	q, err := machine.ReadDword("var_q", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(-40), q)
}

// Every signed jump is checked against a smaller, an equal and a greater right hand side.
func TestConditionalJumps(t *testing.T) {
	jumps := map[string]func(a, b int32) bool{
		"je":  func(a, b int32) bool { return a == b },
		"jne": func(a, b int32) bool { return a != b },
		"jl":  func(a, b int32) bool { return a < b },
		"jle": func(a, b int32) bool { return a <= b },
		"jg":  func(a, b int32) bool { return a > b },
		"jge": func(a, b int32) bool { return a >= b },
	}
	for jump, holds := range jumps {
		for _, pair := range [][2]int32{{-3, 2}, {2, 2}, {5, -1}} {
			listing := fmt.Sprintf(`section .text
_start:
    mov eax, %d
    mov ebx, %d
    cmp eax, ebx
    %s taken
    mov ebx, 0
    jmp done
taken:
    mov ebx, 1
done:
    mov eax, 1
    int 0x80
`, pair[0], pair[1], jump)
			_, _, code, err := runListing(t, listing, Options{})
			require.NoError(t, err)
			expected := 0
			if holds(pair[0], pair[1]) {
				expected = 1
			}
			assert.Equal(t, expected, code, "%s with %d, %d", jump, pair[0], pair[1])
		}
	}
}

func TestCallAndRet(t *testing.T) {
	listing := `section .text
_start:
    mov eax, 20
    push eax
    call double
    pop ebx
    add ebx, eax
    mov eax, 1
    int 0x80

double:
    add eax, eax
    ret
`
	_, _, code, err := runListing(t, listing, Options{})
	require.NoError(t, err)
	assert.Equal(t, 60, code)
}

func TestRunErrors(t *testing.T) {
	loop := "section .text\n_start:\n    jmp _start\n"
	_, _, _, err := runListing(t, loop, Options{MaxSteps: 100})
	assert.ErrorIs(t, err, ErrStepLimit)

	noExit := "section .text\n_start:\n    mov eax, 0\n"
	_, _, _, err = runListing(t, noExit, Options{})
	assert.ErrorIs(t, err, ErrMissingExit)

	divide := "section .text\n_start:\n    mov ebx, 0\n    cdq\n    idiv ebx\n"
	_, _, _, err = runListing(t, divide, Options{})
	assert.ErrorIs(t, err, ErrDivideByZero)
	assert.Contains(t, err.Error(), "line 5: idiv ebx")

	segv := "section .text\n_start:\n    mov esi, -4\n    mov eax, [esi]\n"
	_, _, _, err = runListing(t, segv, Options{})
	assert.ErrorIs(t, err, ErrSegmentFault)

	syscall := "section .text\n_start:\n    mov eax, 11\n    int 0x80\n"
	_, _, _, err = runListing(t, syscall, Options{})
	assert.ErrorIs(t, err, ErrUnknownSyscall)
}
