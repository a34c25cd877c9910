// Package config defines the static, format-agnostic catalog the validator
// runs against: ports, switches, topologies, configurations and test suites,
// along with the Loader interface that concrete formats implement.
//
// The catalog is produced once by a Loader, completed by the registry (which
// resolves category-specific names and private fields) and is then treated
// as read-only by the dispatcher.
package config
