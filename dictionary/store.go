package dictionary

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
)

// Location identifies the persisted state a dictionary is bound to.
type Location struct {
	Root           string
	ContentVersion int
	VectorsVersion int
}

// Store is a symbol table with one vector row per symbol.
//
// Store is safe for concurrent use. It assumes a single writer per root on
// disk.
type Store struct {
	schema Schema
	width  int
	opts   options

	mu      sync.RWMutex
	ids     map[string]int
	symbols []string
	freq    []int
	vectors *Matrix
	// normalized caches unit-length rows for similarity queries.
	normalized *Matrix

	loc Location
	// savedLen is the symbol count written to the bound content version.
	savedLen int
	// dirty is set by any change since the last Save or Load.
	dirty bool
}

// New returns a dictionary of the given vector width with the schema's
// reserved symbols registered.
func New(schema Schema, width int, opts ...Option) *Store {
	s := newBare(schema, width, opts)
	for _, r := range schema.Reserved {
		s.addSymbol(r, ReservedFrequency)
	}
	return s
}

func newBare(schema Schema, width int, opts []Option) *Store {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		schema: schema,
		width:  width,
		opts:   o,
		ids:    make(map[string]int),
	}
}

// Schema returns the dictionary schema.
func (s *Store) Schema() Schema { return s.schema }

// Width returns the vector width.
func (s *Store) Width() int { return s.width }

// Len returns the number of symbols.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.symbols)
}

// Location returns where the dictionary was last saved or loaded from.
func (s *Store) Location() Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loc
}

// AddSymbol registers sym if unseen and adds count to its frequency.
// Blank symbols are ignored. It returns the symbol's id, or -1 if ignored.
// When vectors exist, a new symbol gets a zero row.
func (s *Store) AddSymbol(sym string, count int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addSymbol(sym, count)
}

func (s *Store) addSymbol(sym string, count int) int {
	if strings.TrimSpace(sym) == "" {
		return -1
	}
	id, ok := s.ids[sym]
	if !ok {
		id = len(s.symbols)
		s.ids[sym] = id
		s.symbols = append(s.symbols, sym)
		s.freq = append(s.freq, 0)
		if s.vectors != nil {
			s.vectors.appendZeroRow()
			s.normalized = nil
		}
	}
	s.freq[id] += count
	s.dirty = true
	return id
}

// AddSymbols adds each symbol with a count of one.
func (s *Store) AddSymbols(syms ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sym := range syms {
		s.addSymbol(sym, 1)
	}
}

// Contains reports whether sym is registered.
func (s *Store) Contains(sym string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.ids[sym]
	return ok
}

// Frequency returns the accumulated count of sym, or 0.
func (s *Store) Frequency(sym string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.ids[sym]; ok {
		return s.freq[id]
	}
	return 0
}

// UnknownID returns the id unknown symbols encode to.
func (s *Store) UnknownID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.ids[s.schema.Unknown]; ok {
		return id
	}
	return -1
}

// PadID returns the id of the padding symbol, or -1 if the schema has none.
func (s *Store) PadID() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id, ok := s.ids[PadSymbol]; ok {
		return id
	}
	return -1
}

// Encode returns the id of sym, or UnknownID if it is not registered.
func (s *Store) Encode(sym string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encode(sym)
}

func (s *Store) encode(sym string) int {
	if id, ok := s.ids[sym]; ok {
		return id
	}
	if id, ok := s.ids[s.schema.Unknown]; ok {
		return id
	}
	return -1
}

// EncodeAll encodes every symbol.
func (s *Store) EncodeAll(syms []string) []int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]int, len(syms))
	for i, sym := range syms {
		out[i] = s.encode(sym)
	}
	return out
}

// Decode returns the symbol with the given id.
func (s *Store) Decode(id int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decode(id)
}

func (s *Store) decode(id int) (string, error) {
	if id < 0 || id >= len(s.symbols) {
		return "", fmt.Errorf("%w: id %d, len %d", ErrIndexOutOfRange, id, len(s.symbols))
	}
	return s.symbols[id], nil
}

// DecodeAll decodes every id, failing on the first invalid one.
func (s *Store) DecodeAll(ids []int) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(ids))
	for i, id := range ids {
		sym, err := s.decode(id)
		if err != nil {
			return nil, err
		}
		out[i] = sym
	}
	return out, nil
}

// Symbols returns all symbols in id order.
func (s *Store) Symbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.symbols)
}

// SensesForToken returns the registered senses "token#n" of token, in id
// order.
func (s *Store) SensesForToken(token string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []string
	for _, sym := range s.symbols {
		if i := strings.LastIndexByte(sym, '#'); i >= 0 && sym[:i] == token {
			out = append(out, sym)
		}
	}
	return out
}

// GenerateRandomVectors fills the matrix with samples drawn uniformly from
// [-0.5/width, 0.5/width). A nil rng uses a randomly seeded source.
func (s *Store) GenerateRandomVectors(rng *rand.Rand) {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := NewMatrix(len(s.symbols), s.width)
	scale := float32(1) / float32(s.width)
	for i := range m.data {
		m.data[i] = (rng.Float32() - 0.5) * scale
	}
	s.vectors = m
	s.normalized = nil
	s.dirty = true
}

// GenerateZeroVectors sets every vector to zero.
func (s *Store) GenerateZeroVectors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = NewMatrix(len(s.symbols), s.width)
	s.normalized = nil
	s.dirty = true
}

// UpdateVectors replaces the matrix. It fails with a *ShapeError, leaving the
// store unchanged, unless m has Len() rows and Width() columns. The store
// takes ownership of m.
func (s *Store) UpdateVectors(m *Matrix) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == nil || m.rows != len(s.symbols) || m.cols != s.width {
		e := &ShapeError{Op: "update vectors", WantRows: len(s.symbols), WantCols: s.width}
		if m != nil {
			e.GotRows, e.GotCols = m.rows, m.cols
		}
		return e
	}
	s.vectors = m
	s.normalized = nil
	s.dirty = true
	return nil
}

// Vectors returns a copy of the matrix, or nil if there are no vectors.
func (s *Store) Vectors() *Matrix {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.vectors == nil {
		return nil
	}
	return s.vectors.Clone()
}

// Vector returns a copy of the vector of sym.
func (s *Store) Vector(sym string) ([]float32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.ids[sym]
	if !ok || s.vectors == nil {
		return nil, false
	}
	return slices.Clone(s.vectors.Row(id)), true
}

// Dirty reports whether symbols, frequencies or vectors changed since the
// store was last saved or loaded.
func (s *Store) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// HasVectors reports whether the matrix is set.
func (s *Store) HasVectors() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vectors != nil
}
