package internal

import (
	"bytes"
	"errors"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xiaobogaga/idk/assembler"
)

// execute compiles src and runs the listing, returning the machine for memory inspection and
// everything the program printed.
func execute(t *testing.T, src string) (*assembler.Machine, string) {
	t.Helper()
	result, err := Compile(strings.NewReader(src), Config{})
	require.NoError(t, err)
	machine, err := assembler.Load(strings.NewReader(result.Assembly.String()), assembler.Options{})
	require.NoError(t, err)
	var out bytes.Buffer
	code, err := machine.Run(&out)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	return machine, out.String()
}

func TestCompile_PrintSum(t *testing.T) {
	result, err := Compile(strings.NewReader("var x = 2; var y = 3; print (x + y);"), Config{})
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(result.Assembly.String(), "print_eax:"))

	_, out := execute(t, "var x = 2; var y = 3; print (x + y);")
	assert.Equal(t, "5\n", out)
	_, out = execute(t, "var x = 2; var y = 3; print (x + y); print (x + y); print x;")
	assert.Equal(t, "5\n5\n2\n", out)
}

func TestCompile_Arithmetic(t *testing.T) {
	testData := []struct {
		src string
		out string
	}{
		{"print 2 + 3 * 4;", "14\n"},
		{"print (2 + 3) * 4;", "20\n"},
		{"print 8 - 3 - 2;", "3\n"},
		{"print 100 / 10 / 5;", "2\n"},
		{"print 17 % 5;", "2\n"},
		{"print 0;", "0\n"},
		{"print 3 - 10;", "-7\n"},
		{"print 0 - 7 / 2;", "-3\n"},
		{"var x = 0 - 7; print x % 3;", "-1\n"},
		{"var x = 250; print x * 250 * 250;", "15625000\n"},
		{"print 010;", "10\n"},
		{"print 08;", "8\n"},
		{"print 010 + 007;", "17\n"},
	}
	for _, data := range testData {
		_, out := execute(t, data.src)
		assert.Equal(t, data.out, out, data.src)
	}
}

func TestCompile_Arrays(t *testing.T) {
	machine, out := execute(t, "var arr[5]; arr[2] = 9; var v = arr[2]; print v; print arr[2]; print arr[3];")
	assert.Equal(t, "9\n9\n0\n", out)
	value, err := machine.ReadDword("arr_arr", 2)
	require.NoError(t, err)
	assert.Equal(t, int32(9), value)

	_, out = execute(t, `var sq[10]; var i = 0;
while i < 10; sq[i] = i * i; i = i + 1; endwhile;
print sq[9]; print sq[i - 3];`)
	assert.Equal(t, "81\n49\n", out)

	_, out = execute(t, "var arr[3]; arr[1] = 4; print (arr[1]); var v = (arr[1]); print v; if (arr[1]) > 3; print 1; endif;")
	assert.Equal(t, "4\n4\n1\n", out)
}

// Writing past the first declaration of a redeclared array must not reach the next array.
func TestCompile_RedeclaredArray(t *testing.T) {
	machine, out := execute(t, "var a[2]; var b[3]; var a[5]; a[3] = 7; a[4] = 8; print b[1]; print a[3];")
	assert.Equal(t, "0\n7\n", out)
	for i := 0; i < 3; i++ {
		value, err := machine.ReadDword("arr_b", i)
		require.NoError(t, err)
		assert.Equal(t, int32(0), value)
	}
	value, err := machine.ReadDword("arr_a", 4)
	require.NoError(t, err)
	assert.Equal(t, int32(8), value)
}

func TestCompile_If(t *testing.T) {
	testData := []struct {
		cond string
		out  string
	}{
		{"a < b", "1\n2\n"},
		{"a > b", "2\n"},
		{"a == 1", "1\n2\n"},
		{"a =! 1", "2\n"},
		{"a =< 1", "1\n2\n"},
		{"a => b", "2\n"},
		{"(a + 1) == b", "1\n2\n"},
		{"(a < b)", "1\n2\n"},
	}
	for _, data := range testData {
		src := "var a = 1; var b = 2; if " + data.cond + "; print 1; endif; print 2;"
		_, out := execute(t, src)
		assert.Equal(t, data.out, out, data.cond)
	}
}

func TestCompile_NegativeComparisons(t *testing.T) {
	_, out := execute(t, "var a = 0 - 5; if a < 1; print a; endif; if a > 0; print 1; endif;")
	assert.Equal(t, "-5\n", out)
}

func TestCompile_While(t *testing.T) {
	_, out := execute(t, "var i = 0; var s = 0; while i < 5; s = s + i; i = i + 1; endwhile; print s;")
	assert.Equal(t, "10\n", out)

	// zero iterations.
	_, out = execute(t, "var i = 5; while i < 5; print i; endwhile; print 7;")
	assert.Equal(t, "7\n", out)

	_, out = execute(t, `var i = 3;
while i > 0;
  var j = 0;
  while j < i;
    j = j + 1;
  endwhile;
  print j;
  i = i - 1;
endwhile;`)
	assert.Equal(t, "3\n2\n1\n", out)
}

// A name declared in one block is still usable from a later sibling block.
func TestCompile_SiblingBlocks(t *testing.T) {
	machine, out := execute(t, "var a = 1; if a < 2; var b = 4; endif; if a < 2; b = b + 1; print b; endif;")
	assert.Equal(t, "5\n", out)
	b, err := machine.ReadDword("var_b", 0)
	require.NoError(t, err)
	assert.Equal(t, int32(5), b)
}

func TestCompile_Errors(t *testing.T) {
	testData := []struct {
		src    string
		err    error
		prefix string
	}{
		{"y = 1;", ErrUnresolvedReference, "parse: statement 1:"},
		{"var x = 1; print z;", ErrUnresolvedReference, "parse: statement 2:"},
		{"var x = 1 { 2;", ErrSegmentation, "parse: statement 1:"},
		{"var x = 1; if x < 2; print x;", ErrUnterminatedBlock, "reconstruct:"},
		{"endif;", ErrUnbalancedBlock, "parse: statement 1:"},
		{"func f: a, b;", ErrUnimplemented, "generate:"},
		{"var a = 1; call f: a = 1;", ErrUnimplemented, "generate:"},
		{"print 2 ^ 3;", ErrUnknownOperator, "generate:"},
	}
	for _, data := range testData {
		result, err := Compile(strings.NewReader(data.src), Config{})
		require.Error(t, err, data.src)
		assert.True(t, errors.Is(err, data.err), "%s: %v", data.src, err)
		assert.True(t, strings.HasPrefix(err.Error(), data.prefix), "%s: %v", data.src, err)
		require.NotNil(t, result, data.src)
	}
}

func TestCompile_Verbose(t *testing.T) {
	var buf bytes.Buffer
	cfg := Config{Verbose: true, Logger: log.New(&buf, "idk: ", 0)}
	result, err := Compile(strings.NewReader("var arr[2]; print arr[1];"), cfg)
	require.NoError(t, err)
	assert.Len(t, result.Tokens, 12)
	logs := buf.String()
	assert.Contains(t, logs, "idk: compiler: start tokenizer")
	assert.Contains(t, logs, "compiler: parsed (array arr 2)")
	assert.Contains(t, logs, "Symbol: arr, Type: array[2], Level: 0")

	buf.Reset()
	_, err = Compile(strings.NewReader("print 1;"), Config{Logger: log.New(&buf, "", 0)})
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestCompileFile(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "main.idk")
	require.NoError(t, ioutil.WriteFile(source, []byte("var x = 4; print x * x;"), 0666))
	output := filepath.Join(dir, "assm", "out.asm")

	result, err := CompileFile(source, Config{OutputPath: output})
	require.NoError(t, err)
	listing, err := ioutil.ReadFile(output)
	require.NoError(t, err)
	assert.Equal(t, result.Assembly.String(), string(listing))

	machine, err := assembler.Load(bytes.NewReader(listing), assembler.Options{})
	require.NoError(t, err)
	var out bytes.Buffer
	_, err = machine.Run(&out)
	require.NoError(t, err)
	assert.Equal(t, "16\n", out.String())
}

func TestCompileFile_FailureWritesNothing(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "broken.idk")
	require.NoError(t, ioutil.WriteFile(source, []byte("var x = 1; func f;"), 0666))
	output := filepath.Join(dir, "assm", "out.asm")

	_, err := CompileFile(source, Config{OutputPath: output})
	assert.True(t, errors.Is(err, ErrUnimplemented))
	_, err = os.Stat(output)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Dir(output))
	assert.True(t, os.IsNotExist(err))

	_, err = CompileFile(filepath.Join(dir, "missing.idk"), Config{OutputPath: output})
	assert.True(t, os.IsNotExist(err))
}
