package application

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/eugenenazirov/gin-bindings/internal/api"
	"github.com/eugenenazirov/gin-bindings/internal/bindings"
	"github.com/eugenenazirov/gin-bindings/internal/config"
	"github.com/eugenenazirov/gin-bindings/internal/storage"
)

// App encapsulates the application dependencies and HTTP server.
type App struct {
	storage storage.Storage
	loader  *bindings.Loader
	handler *api.Handler
	router  http.Handler
	logger  *zap.Logger
	server  *http.Server
}

// New initializes the application from the provided configuration and
// preloads every configured binding file. Any load error is returned.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	store := storage.NewMemoryStorage()
	loaderOptions := []bindings.LoaderOption{
		bindings.WithSearchPaths(cfg.SearchPaths...),
		bindings.WithLogger(logger.Named("bindings")),
	}
	loader := bindings.NewLoader(loaderOptions...)
	// Request bodies may only include files below the configured search paths.
	requestLoader := bindings.NewLoader(append(loaderOptions, bindings.WithConfinedIncludes())...)

	handler := api.NewHandler(store, requestLoader, api.WithMaxBodyBytes(cfg.MaxBodyBytes))
	if err := preload(ctx, loader, store, handler, cfg.BindingFiles, logger); err != nil {
		return nil, err
	}

	apiRouter := api.NewRouter(handler, logger,
		api.WithLogging(cfg.EnableRequestLogging),
		api.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
	)

	return &App{
		storage: store,
		loader:  loader,
		handler: handler,
		router:  apiRouter,
		logger:  logger,
		server:  NewServer(cfg, BuildRootHandler(apiRouter)),
	}, nil
}

// preload loads each binding file into its own table, named after the file
// without its extension.
func preload(ctx context.Context, loader *bindings.Loader, store storage.Storage, handler *api.Handler, files []string, logger *zap.Logger) error {
	seen := make(map[string]string, len(files))
	for _, file := range files {
		name := TableName(file)
		if prev, dup := seen[name]; dup {
			return fmt.Errorf("binding files %s and %s both map to table %q", prev, file, name)
		}
		seen[name] = file

		path, err := resolveProjectPath(file)
		if err != nil {
			return fmt.Errorf("preload %s: %w", file, err)
		}
		table, err := loader.Load(ctx, path)
		if err != nil {
			return fmt.Errorf("preload %s: %w", file, err)
		}
		if err := store.Put(name, table); err != nil {
			return fmt.Errorf("preload %s: %w", file, err)
		}
		handler.MarkUpdated(name)

		logger.Info("binding table loaded",
			zap.String("table", name),
			zap.String("file", path),
			zap.Int("bindings", table.Len()),
			zap.Strings("files", table.Files()),
		)
	}
	return nil
}

// TableName derives a table name from a binding file path.
func TableName(file string) string {
	base := filepath.Base(file)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// BuildRootHandler mounts the API and redirects the bare root to the table list.
func BuildRootHandler(apiHandler http.Handler) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", apiHandler)
	mux.Handle("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/api/tables", http.StatusFound)
	}))
	return mux
}

// NewServer creates and configures an HTTP server from the provided configuration.
func NewServer(cfg config.Config, handler http.Handler) *http.Server {
	addr := cfg.Port
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}

	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

// Start starts the HTTP server in a goroutine and logs the listening address.
func (a *App) Start() error {
	go func() {
		a.logger.Info("server listening", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("server error", zap.Error(err))
		}
	}()
	return nil
}

// Server returns the HTTP server instance for shutdown handling.
func (a *App) Server() *http.Server {
	return a.server
}

// Storage returns the table store, populated with the preloaded files.
func (a *App) Storage() storage.Storage {
	return a.storage
}

// resolveProjectPath returns relative unchanged when it exists from the
// working directory, otherwise looks for it in each parent directory. Absolute
// paths are returned as is. A missing file wraps os.ErrNotExist.
func resolveProjectPath(relative string) (string, error) {
	if filepath.IsAbs(relative) {
		return relative, nil
	}
	if _, err := os.Stat(relative); err == nil {
		return relative, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		candidate := filepath.Join(dir, relative)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("unable to locate %s: %w", relative, os.ErrNotExist)
}
