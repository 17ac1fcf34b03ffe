package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCommandLineOverrides(t *testing.T) {
	t.Run("unset flags stay nil", func(t *testing.T) {
		app, overrides := newCommandLine()
		if _, err := app.Parse(nil); err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}

		got := overrides()
		if got.Port != nil || got.LogLevel != nil || got.RateLimitRPS != nil || got.RateLimitBurst != nil {
			t.Fatalf("expected no overrides, got %+v", got)
		}
		if len(got.BindingFiles) != 0 || len(got.SearchPaths) != 0 {
			t.Fatalf("expected no files, got %+v", got)
		}
	})

	t.Run("repeatable flags", func(t *testing.T) {
		app, overrides := newCommandLine()
		args := []string{
			"--config", "server.yaml",
			"--port", "9009",
			"--binding-file", "configs/experiment.gin",
			"--binding-file", "configs/eval.gin",
			"--search-path", "lib",
			"--log-level", "WARNING",
			"--rate-limit-rps", "0",
		}
		if _, err := app.Parse(args); err != nil {
			t.Fatalf("Parse returned error: %v", err)
		}

		got := overrides()
		if got.ConfigFile != "server.yaml" || *got.Port != "9009" || *got.LogLevel != "WARNING" {
			t.Fatalf("unexpected overrides: %+v", got)
		}
		if diff := cmp.Diff([]string{"configs/experiment.gin", "configs/eval.gin"}, got.BindingFiles); diff != "" {
			t.Fatalf("binding files mismatch (-want +got):\n%s", diff)
		}
		if diff := cmp.Diff([]string{"lib"}, got.SearchPaths); diff != "" {
			t.Fatalf("search paths mismatch (-want +got):\n%s", diff)
		}
		if got.RateLimitRPS == nil || *got.RateLimitRPS != 0 {
			t.Fatalf("expected explicit zero rps, got %v", got.RateLimitRPS)
		}
		if got.RateLimitBurst != nil {
			t.Fatalf("expected burst to stay unset, got %v", *got.RateLimitBurst)
		}
	})
}
