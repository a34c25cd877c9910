// Package registry holds the categories compiled into the binary and binds
// a loaded catalog to them.
//
// Categories register through Module at startup. Bind then resolves every
// category-specific name in the catalog (configuration type names, private
// fields, case classes and IDs) so the dispatcher never meets an unknown
// name at run time.
package registry
