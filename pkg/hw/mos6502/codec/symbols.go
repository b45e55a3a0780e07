package codec

// Resolves addresses into label names
type SymbolTable interface {
	FindLabel(address uint16) (string, bool)
}

// Adapts a plain function into a SymbolTable
type SymbolFunc func(address uint16) (string, bool)

func (f SymbolFunc) FindLabel(address uint16) (string, bool) {
	return f(address)
}

// Symbol table with a fixed set of labels
type SymbolMap map[uint16]string

func (m SymbolMap) FindLabel(address uint16) (string, bool) {
	label, ok := m[address]
	return label, ok
}

type noSymbols struct{}

func (noSymbols) FindLabel(uint16) (string, bool) {
	return "", false
}
