package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/xiaobogaga/idk/assembler"
	"github.com/xiaobogaga/idk/compiler/internal"
)

const usageExitCode = 101

var (
	outputPath = flag.String("o", internal.DefaultOutputPath, "the path of the generated nasm listing")
	verbose    = flag.Bool("v", false, "whether trace tokens, statements and the symbol table")
	run        = flag.Bool("run", false, "whether run the generated listing after compiling")
)

var (
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)
	usageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
)

func usage() {
	fmt.Fprintln(os.Stderr, usageStyle.Render("usage: idk [-o out.asm] [-v] [-run] source.idk"))
	flag.PrintDefaults()
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, errorStyle.Render("error:"), err)
	os.Exit(1)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(usageExitCode)
	}
	cfg := internal.Config{
		OutputPath: *outputPath,
		Verbose:    *verbose,
		Logger:     log.New(os.Stderr, "idk: ", 0),
	}
	if cfg.OutputPath == "" {
		cfg.OutputPath = internal.DefaultOutputPath
	}
	if _, err := internal.CompileFile(flag.Arg(0), cfg); err != nil {
		fail(err)
	}
	if !*run {
		fmt.Fprintln(os.Stderr, okStyle.Render("wrote "+cfg.OutputPath))
		return
	}
	f, err := os.Open(cfg.OutputPath)
	if err != nil {
		fail(err)
	}
	machine, err := assembler.Load(f, assembler.Options{})
	f.Close()
	if err != nil {
		fail(err)
	}
	code, err := machine.Run(os.Stdout)
	if err != nil {
		fail(err)
	}
	os.Exit(code)
}
