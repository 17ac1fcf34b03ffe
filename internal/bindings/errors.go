package bindings

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

var (
	// ErrSyntax is returned when a binding file cannot be parsed.
	ErrSyntax = errors.New("syntax error")
	// ErrUnresolvedMacro is returned when a %name reference has no definition.
	ErrUnresolvedMacro = errors.New("unresolved macro")
	// ErrCyclicMacro is returned when macro references form a cycle.
	ErrCyclicMacro = errors.New("cyclic macro reference")
	// ErrDuplicateBinding is returned when a key is bound more than once.
	ErrDuplicateBinding = errors.New("duplicate binding")
	// ErrCyclicInclude is returned when include directives form a cycle.
	ErrCyclicInclude = errors.New("cyclic include")
	// ErrIncludeNotFound is returned when an included file does not exist.
	ErrIncludeNotFound = errors.New("include not found")
	// ErrIncludeOutsideRoot is returned when a confined loader meets an
	// absolute include or one that climbs out of its directory.
	ErrIncludeOutsideRoot = errors.New("include outside search paths")
	// ErrNotFound is returned when a table has no binding for a key.
	ErrNotFound = errors.New("binding not found")
	// ErrTypeMismatch is returned when a value cannot be converted to the requested type.
	ErrTypeMismatch = errors.New("type mismatch")
	// ErrUnknownParameter is returned by Bind when a bound parameter has no matching field.
	ErrUnknownParameter = errors.New("unknown parameter")
)

// Position locates a token in a binding file. Line and Column are 1-based.
type Position struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column"`
}

func (p Position) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// SyntaxError reports an unparsable construct.
type SyntaxError struct {
	Pos Position
	Msg string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: syntax error: %s", e.Pos, e.Msg)
}

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// UnresolvedMacroError reports a %name without a matching definition.
type UnresolvedMacroError struct {
	Name string
	Pos  Position
	Key  string
}

func (e *UnresolvedMacroError) Error() string {
	return fmt.Sprintf("%s: %s: unresolved macro %%%s", e.Pos, e.Key, e.Name)
}

func (e *UnresolvedMacroError) Is(target error) bool { return target == ErrUnresolvedMacro }

// CyclicMacroError reports a chain of macros that refers back to itself.
type CyclicMacroError struct {
	Chain []string
	Pos   Position
}

func (e *CyclicMacroError) Error() string {
	return fmt.Sprintf("%s: cyclic macro reference: %s", e.Pos, strings.Join(e.Chain, " -> "))
}

func (e *CyclicMacroError) Is(target error) bool { return target == ErrCyclicMacro }

// DuplicateBindingError reports a key bound twice. First is where the key was
// originally bound.
type DuplicateBindingError struct {
	Key    string
	First  Position
	Second Position
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("%s: duplicate binding for %s (first bound at %s)", e.Second, e.Key, e.First)
}

func (e *DuplicateBindingError) Is(target error) bool { return target == ErrDuplicateBinding }

// CyclicIncludeError reports an include chain that returns to a file that is
// still being loaded.
type CyclicIncludeError struct {
	Chain []string
	Pos   Position
}

func (e *CyclicIncludeError) Error() string {
	return fmt.Sprintf("%s: cyclic include: %s", e.Pos, strings.Join(e.Chain, " -> "))
}

func (e *CyclicIncludeError) Is(target error) bool { return target == ErrCyclicInclude }

// IncludeNotFoundError reports an include directive whose file could not be
// located. It matches both ErrIncludeNotFound and fs.ErrNotExist.
type IncludeNotFoundError struct {
	Path  string
	Tried []string
	Pos   Position
}

func (e *IncludeNotFoundError) Error() string {
	return fmt.Sprintf("%s: include %q not found (tried %s)", e.Pos, e.Path, strings.Join(e.Tried, ", "))
}

func (e *IncludeNotFoundError) Is(target error) bool {
	return target == ErrIncludeNotFound || target == fs.ErrNotExist
}

// IncludeOutsideRootError reports an include a confined loader refused to
// read.
type IncludeOutsideRootError struct {
	Path string
	Pos  Position
}

func (e *IncludeOutsideRootError) Error() string {
	return fmt.Sprintf("%s: include %q must be a relative path inside the search paths", e.Pos, e.Path)
}

func (e *IncludeOutsideRootError) Is(target error) bool { return target == ErrIncludeOutsideRoot }

// UnknownParameterError reports a binding that Bind could not map to a field.
type UnknownParameterError struct {
	Key string
	Pos Position
}

func (e *UnknownParameterError) Error() string {
	return fmt.Sprintf("%s: %s does not match any field", e.Pos, e.Key)
}

func (e *UnknownParameterError) Is(target error) bool { return target == ErrUnknownParameter }

// Location extracts the file position carried by a load error, if any.
func Location(err error) (Position, bool) {
	var (
		syntaxErr     *SyntaxError
		unresolvedErr *UnresolvedMacroError
		cyclicErr     *CyclicMacroError
		duplicateErr  *DuplicateBindingError
		includeErr    *CyclicIncludeError
		notFoundErr   *IncludeNotFoundError
		outsideErr    *IncludeOutsideRootError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return syntaxErr.Pos, true
	case errors.As(err, &unresolvedErr):
		return unresolvedErr.Pos, true
	case errors.As(err, &cyclicErr):
		return cyclicErr.Pos, true
	case errors.As(err, &duplicateErr):
		return duplicateErr.Second, true
	case errors.As(err, &includeErr):
		return includeErr.Pos, true
	case errors.As(err, &notFoundErr):
		return notFoundErr.Pos, true
	case errors.As(err, &outsideErr):
		return outsideErr.Pos, true
	}
	return Position{}, false
}
