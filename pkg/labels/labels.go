// Package labels loads VICE monitor label files (.vs) into a symbol table the
// disassembler can query.
//
// Two kinds of lines are understood:
//
//	al C:0801 .start
//	break c000
//
// The first adds a label, the second a breakpoint address to apply once
// connected to the emulator. Anything else is ignored.
package labels

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Manu343726/vicemon/pkg/utils"
)

const (
	labelPrefix = "al c:"
	breakPrefix = "break "
)

// Address to name symbol table, safe for concurrent use.
type Table struct {
	mu          sync.RWMutex
	byAddress   map[uint16]string
	byName      map[string]uint16
	breakpoints []uint16
}

func New() *Table {
	return &Table{
		byAddress: make(map[uint16]string),
		byName:    make(map[string]uint16),
	}
}

// Reads a label file. Malformed label and break lines are reported with
// their line number.
func Parse(r io.Reader) (*Table, error) {
	t := New()
	scanner := bufio.NewScanner(r)
	lineNumber := 0

	for scanner.Scan() {
		lineNumber++
		line := strings.TrimRight(scanner.Text(), "\r\n\t ")

		if err := t.parseLine(line); err != nil {
			return nil, utils.MakeError(err, "line %d: %q", lineNumber, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return t, nil
}

func Load(path string) (*Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

func (t *Table) parseLine(line string) error {
	lower := strings.ToLower(line)

	switch {
	case strings.HasPrefix(lower, labelPrefix):
		rest := line[len(labelPrefix):]
		address, rest, err := parseAddress(rest)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(rest, ".") || len(rest) < 2 {
			return ErrMissingName
		}
		t.Add(address, rest[1:])

	case strings.HasPrefix(lower, breakPrefix):
		address, _, err := parseAddress(line[len(breakPrefix):])
		if err != nil {
			return err
		}
		t.mu.Lock()
		t.breakpoints = append(t.breakpoints, address)
		t.mu.Unlock()
	}

	return nil
}

// Parses 1 to 4 hex digits followed by a space or the end of s, returning the
// text after the space.
func parseAddress(s string) (uint16, string, error) {
	end, rest := len(s), ""
	if space := strings.IndexByte(s, ' '); space >= 0 {
		end, rest = space, s[space+1:]
	}

	if end < 1 || end > 4 {
		return 0, s, utils.MakeError(ErrInvalidAddress, "%q", s)
	}

	value, err := strconv.ParseUint(s[:end], 16, 16)
	if err != nil {
		return 0, s, utils.MakeError(ErrInvalidAddress, "%q", s[:end])
	}

	return uint16(value), rest, nil
}

// Sets the label of address. A name already used elsewhere moves to the new
// address.
func (t *Table) Add(address uint16, name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if old, exists := t.byAddress[address]; exists {
		delete(t.byName, old)
	}
	if old, exists := t.byName[name]; exists {
		delete(t.byAddress, old)
	}

	t.byAddress[address] = name
	t.byName[name] = address
}

// Label at address. Matches codec.SymbolTable.
func (t *Table) FindLabel(address uint16) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	name, ok := t.byAddress[address]
	return name, ok
}

// Address of the label with the given name
func (t *Table) Lookup(name string) (uint16, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	address, ok := t.byName[strings.TrimPrefix(name, ".")]
	return address, ok
}

// Label names in alphabetical order
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return utils.SortedKeys(t.byName)
}

// Breakpoint addresses in file order
func (t *Table) Breakpoints() []uint16 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return append([]uint16(nil), t.breakpoints...)
}

func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.byAddress)
}

// Calls fn for every label in address order until it returns false
func (t *Table) ForEach(fn func(address uint16, name string) bool) {
	t.mu.RLock()
	addresses := utils.SortedKeys(t.byAddress)
	names := make([]string, len(addresses))
	for i, address := range addresses {
		names[i] = t.byAddress[address]
	}
	t.mu.RUnlock()

	for i, address := range addresses {
		if !fn(address, names[i]) {
			return
		}
	}
}

// Replaces the contents of t with a copy of other's
func (t *Table) Replace(other *Table) {
	other.mu.RLock()
	byAddress := make(map[uint16]string, len(other.byAddress))
	byName := make(map[string]uint16, len(other.byName))
	for address, name := range other.byAddress {
		byAddress[address] = name
		byName[name] = address
	}
	breakpoints := append([]uint16(nil), other.breakpoints...)
	other.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()

	t.byAddress = byAddress
	t.byName = byName
	t.breakpoints = breakpoints
}

// Matches labels whose name starts with prefix, case-insensitive, sorted by
// name. limit <= 0 means no limit.
func (t *Table) FindMatches(prefix string, limit int) []string {
	prefix = strings.ToLower(strings.TrimPrefix(prefix, "."))
	result := []string{}

	for _, name := range t.Names() {
		if limit > 0 && len(result) >= limit {
			break
		}
		if strings.HasPrefix(strings.ToLower(name), prefix) {
			result = append(result, name)
		}
	}

	return result
}
