package storage

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/eugenenazirov/gin-bindings/internal/bindings"
)

var (
	// ErrInvalidName indicates a table name outside [A-Za-z0-9_.-]+.
	ErrInvalidName = errors.New("table names must match [A-Za-z0-9_.-]+")
	// ErrTableNotFound indicates no table is stored under the requested name.
	ErrTableNotFound = errors.New("table not found")
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// Storage holds resolved binding tables by name.
type Storage interface {
	Get(name string) (*bindings.Table, error)
	Put(name string, table *bindings.Table) error
	Delete(name string) error
	List() ([]Summary, error)
}

// Summary describes a stored table without exposing its bindings.
type Summary struct {
	Name     string   `json:"name"`
	Bindings int      `json:"bindings"`
	Files    []string `json:"files"`
}

// MemoryStorage keeps tables in-memory and guards access with a RWMutex.
// Tables are immutable, so readers share them without copying.
type MemoryStorage struct {
	mu     sync.RWMutex
	tables map[string]*bindings.Table
}

// NewMemoryStorage returns an empty store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{tables: make(map[string]*bindings.Table)}
}

// ValidateName reports whether name can be used as a table name.
func ValidateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// Get returns the table stored under name.
func (s *MemoryStorage) Get(name string) (*bindings.Table, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	table, ok := s.tables[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	return table, nil
}

// Put stores table under name, replacing any previous table.
func (s *MemoryStorage) Put(name string, table *bindings.Table) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if table == nil {
		return fmt.Errorf("store %s: nil table", name)
	}

	s.mu.Lock()
	s.tables[name] = table
	s.mu.Unlock()

	return nil
}

// Delete removes the table stored under name.
func (s *MemoryStorage) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tables[name]; !ok {
		return fmt.Errorf("%w: %s", ErrTableNotFound, name)
	}
	delete(s.tables, name)
	return nil
}

// List returns a summary of every stored table, sorted by name.
func (s *MemoryStorage) List() ([]Summary, error) {
	s.mu.RLock()
	out := make([]Summary, 0, len(s.tables))
	for name, table := range s.tables {
		out = append(out, Summary{Name: name, Bindings: table.Len(), Files: table.Files()})
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
