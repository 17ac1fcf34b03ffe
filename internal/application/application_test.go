package application

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/gin-bindings/internal/bindings"
	"github.com/eugenenazirov/gin-bindings/internal/config"
)

var experimentFile = filepath.Join("..", "bindings", "testdata", "experiment.gin")

func TestNewPreloadsBindingFiles(t *testing.T) {
	cfg := baseTestConfig(":8085")
	cfg.BindingFiles = []string{experimentFile}
	logger := zaptest.NewLogger(t)

	app, err := New(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	table, err := app.Storage().Get("experiment")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if v, _ := table.Float("GrowingNode.activation_limit"); v != 0.5 {
		t.Fatalf("expected activation_limit 0.5, got %v", v)
	}
	if v, ok := table.Get("NetStreamProxyGraph.port"); !ok || !v.Equal(bindings.Int(9009)) {
		t.Fatalf("expected port 9009, got %s", v)
	}
	if app.server == nil || app.router == nil || app.handler == nil || app.loader == nil {
		t.Fatalf("expected server, router, handler and loader to be initialized")
	}
	if app.Server() != app.server {
		t.Fatalf("Server accessor did not return underlying instance")
	}
}

func TestNewServesPreloadedTables(t *testing.T) {
	cfg := baseTestConfig(":0")
	cfg.BindingFiles = []string{experimentFile}

	app, err := New(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/tables/experiment/bindings/GrowingGraph.draw_graph", nil)
	rec := httptest.NewRecorder()
	app.Server().Handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	root := httptest.NewRecorder()
	app.Server().Handler.ServeHTTP(root, httptest.NewRequest(http.MethodGet, "/", nil))
	if root.Code != http.StatusFound || root.Header().Get("Location") != "/api/tables" {
		t.Fatalf("expected redirect to table list, got %d %s", root.Code, root.Header().Get("Location"))
	}

	unknown := httptest.NewRecorder()
	app.Server().Handler.ServeHTTP(unknown, httptest.NewRequest(http.MethodGet, "/favicon.ico", nil))
	if unknown.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", unknown.Code)
	}
}

func TestNewFailsOnBrokenBindingFiles(t *testing.T) {
	tests := []struct {
		name   string
		files  []string
		target error
	}{
		{name: "missing include", files: []string{filepath.Join("..", "bindings", "testdata", "missing_include.gin")}, target: bindings.ErrIncludeNotFound},
		{name: "cyclic include", files: []string{filepath.Join("..", "bindings", "testdata", "cycle_a.gin")}, target: bindings.ErrCyclicInclude},
		{name: "duplicate binding", files: []string{filepath.Join("..", "bindings", "testdata", "duplicate.gin")}, target: bindings.ErrDuplicateBinding},
		{name: "missing file", files: []string{"no-such-file.gin"}, target: fs.ErrNotExist},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := baseTestConfig(":0")
			cfg.BindingFiles = tc.files
			_, err := New(context.Background(), cfg, zaptest.NewLogger(t))
			if !errors.Is(err, tc.target) {
				t.Fatalf("expected %v, got %v", tc.target, err)
			}
		})
	}
}

func TestNewRejectsCollidingTableNames(t *testing.T) {
	dir := t.TempDir()
	other := filepath.Join(dir, "experiment.gin")
	if err := os.WriteFile(other, []byte("a = 1\n"), 0o600); err != nil {
		t.Fatalf("write file: %v", err)
	}

	cfg := baseTestConfig(":0")
	cfg.BindingFiles = []string{experimentFile, other}
	if _, err := New(context.Background(), cfg, zaptest.NewLogger(t)); err == nil {
		t.Fatalf("expected error for two files mapping to the same table")
	}
}

func TestTableName(t *testing.T) {
	cases := map[string]string{
		"configs/experiment.gin": "experiment",
		"base":                   "base",
		"a/b/train.v2.gin":       "train.v2",
	}
	for in, want := range cases {
		if got := TableName(in); got != want {
			t.Fatalf("TableName(%q): expected %q, got %q", in, want, got)
		}
	}
}

func TestNewServerAppliesConfig(t *testing.T) {
	cfg := baseTestConfig("9090")
	handler := http.NewServeMux()

	server := NewServer(cfg, handler)
	if server.Addr != ":9090" {
		t.Fatalf("expected address :9090, got %s", server.Addr)
	}
	if server.Handler != handler {
		t.Fatalf("expected handler to be applied")
	}
	if server.ReadHeaderTimeout != cfg.ReadHeaderTimeout ||
		server.WriteTimeout != cfg.WriteTimeout ||
		server.IdleTimeout != cfg.IdleTimeout {
		t.Fatalf("server timeouts do not match configuration")
	}
}

func TestResolveProjectPathWalksUp(t *testing.T) {
	path, err := resolveProjectPath(filepath.Join("internal", "bindings", "testdata", "base.gin"))
	if err != nil {
		t.Fatalf("resolveProjectPath returned error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected base.gin to exist at %s: %v", path, err)
	}
}

func TestResolveProjectPathUnknownTarget(t *testing.T) {
	_, err := resolveProjectPath("definitely-not-a-real-file")
	if !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected os.ErrNotExist for missing resource, got %v", err)
	}
}

func baseTestConfig(port string) config.Config {
	return config.Config{
		Port:                 port,
		ShutdownGracePeriod:  50 * time.Millisecond,
		ReadHeaderTimeout:    20 * time.Millisecond,
		WriteTimeout:         30 * time.Millisecond,
		IdleTimeout:          40 * time.Millisecond,
		EnableRequestLogging: false,
		MaxBodyBytes:         1 << 16,
		RateLimitRPS:         0,
		RateLimitBurst:       0,
	}
}
