// Package config loads runtime settings for the binding server from a YAML
// or .gin file, environment variables and CLI flags, with precedence: CLI
// flags > config file > Environment variables > Defaults. A .gin file binds
// the Server configurable, e.g. `Server.log_level = %DEBUG`. Binding files
// listed here are preloaded into storage when the server starts.
package config
