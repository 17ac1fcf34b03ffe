package bindings

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileSystem is the read access the loader needs. os files are used by
// default; fstest.MapFS and other fs.ReadFileFS values satisfy it too.
type FileSystem interface {
	ReadFile(name string) ([]byte, error)
}

type osFileSystem struct{}

func (osFileSystem) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(name)
}

// Loader reads binding files, expands includes and resolves macros.
type Loader struct {
	fs          FileSystem
	searchPaths []string
	constants   Constants
	logger      *zap.Logger
	confined    bool
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithFileSystem replaces the operating system file access.
func WithFileSystem(fsys FileSystem) LoaderOption {
	return func(l *Loader) {
		l.fs = fsys
	}
}

// WithSearchPaths adds directories that relative includes are looked up in
// after the including file's own directory.
func WithSearchPaths(paths ...string) LoaderOption {
	return func(l *Loader) {
		l.searchPaths = append(l.searchPaths, paths...)
	}
}

// WithConstants registers additional constants for %name references. They
// are merged over DefaultConstants.
func WithConstants(constants Constants) LoaderOption {
	return func(l *Loader) {
		l.constants = l.constants.Merge(constants)
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger *zap.Logger) LoaderOption {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithConfinedIncludes restricts includes to paths below the search paths.
// Absolute paths and paths leaving their directory are rejected before any
// read, and files on the operating system are opened through os.Root so
// symlinks cannot lead outside either. The including file's directory and
// the working directory are not consulted unless they are search paths.
func WithConfinedIncludes() LoaderOption {
	return func(l *Loader) {
		l.confined = true
	}
}

// NewLoader creates a Loader reading from the operating system.
func NewLoader(opts ...LoaderOption) *Loader {
	l := &Loader{
		fs:        osFileSystem{},
		constants: DefaultConstants(),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// loadState tracks one Load call.
type loadState struct {
	stack    []openFile
	loaded   map[string]struct{}
	bindings []Binding
	imports  []Import
	files    []string
}

type openFile struct {
	id   string
	path string
}

// identity names a file for cycle and duplicate detection. Files on the
// operating system are keyed by absolute path so one file reached through
// different relative spellings is still loaded once.
func (l *Loader) identity(path string) string {
	if _, ok := l.fs.(osFileSystem); ok {
		if abs, err := filepath.Abs(path); err == nil {
			return abs
		}
	}
	return filepath.Clean(path)
}

// Load reads the given files in order, expands their includes depth-first at
// the point they appear and resolves the combined bindings into a Table.
func (l *Loader) Load(ctx context.Context, paths ...string) (*Table, error) {
	if len(paths) == 0 {
		return nil, errors.New("no binding files given")
	}

	st := &loadState{loaded: make(map[string]struct{})}
	for _, path := range paths {
		data, err := l.fs.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read binding file %s: %w", path, err)
		}
		if err := l.loadFile(ctx, st, filepath.Clean(path), data, Position{}); err != nil {
			return nil, err
		}
	}
	return l.finish(st)
}

// LoadSource is Load for a single file held in memory. name is used in
// positions and as the base for relative includes.
func (l *Loader) LoadSource(ctx context.Context, name string, src []byte) (*Table, error) {
	st := &loadState{loaded: make(map[string]struct{})}
	if err := l.loadFile(ctx, st, filepath.Clean(name), src, Position{}); err != nil {
		return nil, err
	}
	return l.finish(st)
}

func (l *Loader) finish(st *loadState) (*Table, error) {
	table, err := Resolve(st.bindings, st.imports, l.constants)
	if err != nil {
		return nil, err
	}
	table.withFiles(st.files)
	l.logger.Debug("binding table resolved",
		zap.Strings("files", st.files),
		zap.Int("bindings", table.Len()),
		zap.Int("imports", len(table.Imports())),
	)
	return table, nil
}

func (l *Loader) loadFile(ctx context.Context, st *loadState, path string, data []byte, from Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	id := l.identity(path)
	for i, open := range st.stack {
		if open.id == id {
			chain := make([]string, 0, len(st.stack)-i+1)
			for _, f := range st.stack[i:] {
				chain = append(chain, f.path)
			}
			return &CyclicIncludeError{Chain: append(chain, path), Pos: from}
		}
	}
	if _, done := st.loaded[id]; done {
		l.logger.Debug("binding file already loaded", zap.String("file", path))
		return nil
	}

	file, err := Parse(path, data)
	if err != nil {
		return err
	}

	st.stack = append(st.stack, openFile{id: id, path: path})
	for _, stmt := range file.Order {
		if !stmt.IsInclude {
			st.bindings = append(st.bindings, file.Bindings[stmt.Index])
			continue
		}

		inc := file.Includes[stmt.Index]
		incPath, incData, err := l.findInclude(filepath.Dir(path), inc)
		if err != nil {
			return err
		}
		l.logger.Debug("include resolved",
			zap.String("file", path),
			zap.String("include", inc.Path),
			zap.String("resolved", incPath),
		)
		if err := l.loadFile(ctx, st, incPath, incData, inc.Pos); err != nil {
			return err
		}
	}
	st.stack = st.stack[:len(st.stack)-1]

	st.imports = append(st.imports, file.Imports...)
	st.loaded[id] = struct{}{}
	st.files = append(st.files, path)
	l.logger.Debug("binding file loaded",
		zap.String("file", path),
		zap.Int("bindings", len(file.Bindings)),
		zap.Int("includes", len(file.Includes)),
	)
	return nil
}

// includeCandidate is a file to try for an include directive: rel is read
// below root, or as a plain path when root is empty.
type includeCandidate struct {
	root string
	rel  string
}

func (c includeCandidate) String() string {
	if c.root == "" {
		return c.rel
	}
	return filepath.Join(c.root, c.rel)
}

// findInclude tries the including file's directory, then each search path,
// then the path as written. Confined loaders try only the search paths.
func (l *Loader) findInclude(dir string, inc Include) (string, []byte, error) {
	var candidates []includeCandidate
	switch {
	case l.confined:
		if !filepath.IsLocal(inc.Path) {
			return "", nil, &IncludeOutsideRootError{Path: inc.Path, Pos: inc.Pos}
		}
		candidates = l.confinedCandidates(dir, inc.Path)
	case filepath.IsAbs(inc.Path):
		candidates = []includeCandidate{{rel: filepath.Clean(inc.Path)}}
	default:
		candidates = append(candidates, includeCandidate{rel: filepath.Join(dir, inc.Path)})
		for _, sp := range l.searchPaths {
			candidates = append(candidates, includeCandidate{rel: filepath.Join(sp, inc.Path)})
		}
		candidates = append(candidates, includeCandidate{rel: filepath.Clean(inc.Path)})
	}

	tried := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, candidate := range candidates {
		name := candidate.String()
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		tried = append(tried, name)

		data, err := l.read(candidate)
		if err == nil {
			return name, data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", nil, fmt.Errorf("%s: read include %s: %w", inc.Pos, name, err)
		}
	}
	return "", nil, &IncludeNotFoundError{Path: inc.Path, Tried: tried, Pos: inc.Pos}
}

// confinedCandidates lists rel below every search path, preceded by the
// including file's own directory when that directory lies under a search
// path.
func (l *Loader) confinedCandidates(dir, rel string) []includeCandidate {
	var near, far []includeCandidate
	for _, root := range l.searchPaths {
		if sub, err := filepath.Rel(root, dir); err == nil && filepath.IsLocal(sub) {
			near = append(near, includeCandidate{root: root, rel: filepath.Join(sub, rel)})
		}
		far = append(far, includeCandidate{root: root, rel: rel})
	}
	return append(near, far...)
}

func (l *Loader) read(c includeCandidate) ([]byte, error) {
	if c.root == "" {
		return l.fs.ReadFile(c.rel)
	}
	if _, ok := l.fs.(osFileSystem); !ok {
		return l.fs.ReadFile(c.String())
	}
	f, err := os.OpenInRoot(c.root, c.rel)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
