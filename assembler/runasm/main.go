package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xiaobogaga/idk/assembler"
)

// a simple program accepts a nasm listing generated by the idk compiler, assembles it in memory
// and runs it. The program's output goes to stdout and its exit code becomes ours.

var (
	inputPath = flag.String("i", "./assm/out.asm", "the input nasm listing path")
	maxSteps  = flag.Int("max-steps", assembler.DefaultMaxSteps, "stop after this many instructions")
	verbose   = flag.Bool("v", false, "whether print all assembled commands")
)

func main() {
	flag.Parse()
	f, err := os.Open(*inputPath)
	if err != nil {
		panic(fmt.Sprintf("failed to open file: %s, err: %v", *inputPath, err))
	}
	machine, err := assembler.Load(f, assembler.Options{MaxSteps: *maxSteps})
	f.Close()
	if err != nil {
		panic(fmt.Sprintf("failed to parse file, err: %v", err))
	}
	if *verbose {
		fmt.Fprint(os.Stderr, machine.Listing())
	}
	code, err := machine.Run(os.Stdout)
	if err != nil {
		panic(fmt.Sprintf("failed to run %s, err: %v", *inputPath, err))
	}
	os.Exit(code)
}
