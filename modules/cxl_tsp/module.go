// Package cxl_tsp is the CXL TEE Security Protocol category. Groups open a
// secured SPDM session to the memory device; TSP requests then configure,
// verify and lock its memory encryption.
package cxl_tsp

import (
	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/registry"
)

// Name is the catalog name of the category.
const Name = "cxl_tsp"

// Configuration types.
const (
	TypeDefault bitmask.ConfigurationType = iota
	TypeTEStateChange
	TypeMultiCKID
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the category with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(Table())
}

// Table returns the category definition.
func Table() *category.Table {
	all := bitmask.Of(TypeDefault, TypeTEStateChange, TypeMultiCKID)
	return &category.Table{
		CategoryName: Name,
		Types:        []string{"default", "te-state-change", "multi-ckid"},
		Bitmasks: map[config.TopologyType]bitmask.Bitmap{
			config.TopologySelectiveIDE:        all,
			config.TopologyLinkIDE:             all,
			config.TopologySelectiveAndLinkIDE: all,
		},
		Configs: configFuncs,
		Group: category.GroupFuncs{
			Setup:    setupGroup,
			Teardown: teardownGroup,
		},
		Classes: []category.Class{
			{Name: "GetVersion", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{Run: runGetVersion}}}},
			{Name: "GetCapabilities", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{Run: runGetCapabilities}}}},
			{Name: "SetConfiguration", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{
				Run: runSetConfiguration, ConfigCheckRequired: true,
			}}}},
			{Name: "LockConfiguration", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{
				Setup: setupLockConfiguration, Run: runLockConfiguration, ConfigCheckRequired: true,
			}}}},
		},
		NewPriv: func() any { return &group{} },
	}
}
