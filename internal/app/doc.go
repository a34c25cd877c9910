// Package app wires the validator together: it loads and binds the catalog,
// picks the platform and confirmer, runs the dispatcher and reports the
// result. It is decoupled from any specific entrypoint like a CLI.
package app
