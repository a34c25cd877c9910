// Package hcl provides the concrete HCL implementation of config.Loader. It
// is responsible for file discovery and parsing, decoding the blocks with
// gohcl and translating them into the cross-referenced config.Catalog.
//
// Attribute expressions may read the process environment as env.NAME, e.g.
// to pick a BDF per machine. A reference to an unset variable is an error.
package hcl
