// Package application wires configuration, the binding loader, table storage,
// the HTTP API and the server together. Binding files named in the
// configuration are loaded before the server starts, so a broken file stops
// startup instead of surfacing on the first request.
package application
