package internal

import (
	"fmt"
	"io"
)

type SymbolKind int

const (
	ScalarSymbol SymbolKind = iota
	ArraySymbol
)

func (kind SymbolKind) String() string {
	if kind == ArraySymbol {
		return "array"
	}
	return "int"
}

type SymbolTableEntry struct {
	Name   string
	Kind   SymbolKind
	Length int // Only used by arrays.
	Level  int
}

// SymbolTable records every declaration of a compilation. Entries are never removed: leaving
// a block only lowers the level, so a name declared in one block stays visible to a later
// sibling block at the same depth.
type SymbolTable struct {
	entries []*SymbolTableEntry
	level   int
}

func NewSymbolTable() *SymbolTable {
	return &SymbolTable{}
}

func (table *SymbolTable) Declare(name string, kind SymbolKind, length int) *SymbolTableEntry {
	if kind == ScalarSymbol {
		length = 0
	}
	entry := &SymbolTableEntry{Name: name, Kind: kind, Length: length, Level: table.level}
	table.entries = append(table.entries, entry)
	return entry
}

// Lookup returns the latest declaration of name visible from the current level, that is any
// declaration made at the current level or an enclosing one.
func (table *SymbolTable) Lookup(name string) (*SymbolTableEntry, bool) {
	for i := len(table.entries) - 1; i >= 0; i-- {
		entry := table.entries[i]
		if entry.Name == name && entry.Level <= table.level {
			return entry, true
		}
	}
	return nil, false
}

func (table *SymbolTable) Enter() {
	table.level++
}

func (table *SymbolTable) Leave() error {
	if table.level == 0 {
		return fmt.Errorf("%w: block end without matching if or while", ErrUnbalancedBlock)
	}
	table.level--
	return nil
}

func (table *SymbolTable) Level() int {
	return table.level
}

func (table *SymbolTable) Entries() []*SymbolTableEntry {
	return table.entries
}

func (table *SymbolTable) Dump(w io.Writer) {
	fmt.Fprintf(w, "Current level: %d\n", table.level)
	for _, entry := range table.entries {
		if entry.Kind == ArraySymbol {
			fmt.Fprintf(w, "Symbol: %s, Type: %s[%d], Level: %d\n", entry.Name, entry.Kind, entry.Length, entry.Level)
			continue
		}
		fmt.Fprintf(w, "Symbol: %s, Type: %s, Level: %d\n", entry.Name, entry.Kind, entry.Level)
	}
}
