package internal

import (
	"bytes"
	"fmt"
	"io"
	"io/ioutil"
	"log"
	"os"
	"path/filepath"
)

const DefaultOutputPath = "assm/out.asm"

type Config struct {
	OutputPath string
	// Verbose traces tokens, statements and the symbol table through Logger.
	Verbose bool
	Logger  *log.Logger
}

func (cfg Config) logger() *log.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	return log.New(ioutil.Discard, "", 0)
}

func (cfg Config) tracef(format string, args ...interface{}) {
	if cfg.Verbose {
		cfg.logger().Printf(format, args...)
	}
}

type Result struct {
	Tokens      []*Token
	Program     *Program
	SymbolTable *SymbolTable
	Assembly    *Assembly
}

// Compile runs the whole pipeline on one source. Nothing is written: a failed compilation
// returns the partial Result together with the error.
func Compile(rd io.Reader, cfg Config) (*Result, error) {
	result := &Result{SymbolTable: NewSymbolTable(), Program: NewProgram()}
	cfg.tracef("compiler: start tokenizer")
	tokens, err := (&Tokenizer{}).Tokenize(rd)
	if err != nil {
		return result, fmt.Errorf("tokenize: %w", err)
	}
	result.Tokens = tokens
	cfg.tracef("compiler: %d tokens: %v", len(tokens), tokens)

	cfg.tracef("compiler: start parser")
	parser := NewParser(tokens, result.SymbolTable)
	for {
		node := parser.Parse()
		if _, ok := node.(*EndAst); ok {
			break
		}
		result.Program.AddNode(node)
		if errorAst, ok := node.(*ErrorAst); ok {
			return result, fmt.Errorf("parse: statement %d: %w", len(result.Program.Nodes)-1, errorAst.Err)
		}
		cfg.tracef("compiler: parsed %s", node)
	}

	cfg.tracef("compiler: start block reconstruction")
	if err := result.Program.Reconstruct(); err != nil {
		return result, fmt.Errorf("reconstruct: %w", err)
	}
	if cfg.Verbose {
		var buf bytes.Buffer
		result.SymbolTable.Dump(&buf)
		cfg.tracef("compiler: program:\n%s\nsymbol table:\n%s", result.Program, buf.String())
	}

	cfg.tracef("compiler: start generate codes")
	result.Assembly, err = NewCodeGenerator(result.SymbolTable).Generate(result.Program.Nodes)
	if err != nil {
		return result, fmt.Errorf("generate: %w", err)
	}
	return result, nil
}

// CompileFile compiles the file at path and, only when compilation succeeds, saves the
// listing to cfg.OutputPath.
func CompileFile(path string, cfg Config) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	result, err := Compile(f, cfg)
	if err != nil {
		return result, err
	}
	outputPath := cfg.OutputPath
	if outputPath == "" {
		outputPath = DefaultOutputPath
	}
	if err := saveTo(outputPath, result.Assembly); err != nil {
		return result, err
	}
	cfg.tracef("compiler: wrote %s", outputPath)
	return result, nil
}

func saveTo(outputPath string, assembly *Assembly) error {
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return ioutil.WriteFile(outputPath, []byte(assembly.String()), 0666)
}
