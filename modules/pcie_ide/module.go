// Package pcie_ide is the PCIe Integrity and Data Encryption category. It
// programs IDE streams between a root port and an endpoint, optionally
// through switches, and drives the endpoint's IDE_KM responder.
package pcie_ide

import (
	"context"

	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/registry"
	"github.com/vk/teeio-validator/internal/testctx"
)

// Name is the catalog name of the category.
const Name = "pcie_ide"

// Configuration types.
const (
	TypeDefault bitmask.ConfigurationType = iota
	TypeSwitch
	TypeSelectiveForConfig
	TypePartialHeaderEncryption
	TypePCRC
	TypeTEELimitedStream
	TypeAggregation
	TypeFlitModeDisable
)

var typeNames = []string{
	"default",
	"switch",
	"selective-for-config",
	"partial-header-encryption",
	"pcrc",
	"tee-limited-stream",
	"aggregation",
	"flit-mode-disable",
}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Register registers the category with the engine.
func (m *Module) Register(r *registry.Registry) {
	r.Register(Table())
}

// Table returns the category definition.
func Table() *category.Table {
	selective := bitmask.Of(TypeDefault, TypeSwitch, TypeSelectiveForConfig, TypePartialHeaderEncryption,
		TypePCRC, TypeTEELimitedStream, TypeAggregation, TypeFlitModeDisable)
	link := bitmask.Of(TypeDefault, TypeSwitch, TypePartialHeaderEncryption, TypePCRC, TypeAggregation, TypeFlitModeDisable)

	run := func(fn func(context.Context, *testctx.Case) bool) category.CaseFuncs {
		return category.CaseFuncs{Run: fn}
	}
	return &category.Table{
		CategoryName:  Name,
		Types:         typeNames,
		PrivateFields: []string{FieldStreamID, FieldKeySet},
		ParsePrivate:  parsePrivate,
		Bitmasks: map[config.TopologyType]bitmask.Bitmap{
			config.TopologySelectiveIDE:        selective,
			config.TopologyLinkIDE:             link,
			config.TopologySelectiveAndLinkIDE: selective,
		},
		Configs: configFuncs,
		Group: category.GroupFuncs{
			Setup:    setupGroup,
			Teardown: teardownGroup,
		},
		Classes: []category.Class{
			{Name: "Query", Cases: []category.Case{
				{ID: 1, Funcs: run(runQuery)},
				{ID: 2, Funcs: run(runQueryInvalidPort)},
			}},
			{Name: "KeyProg", Cases: []category.Case{
				{ID: 1, Funcs: category.CaseFuncs{Run: runKeyProg, Teardown: stopKeys}},
				{ID: 2, Funcs: run(runKeyProgInvalidKeySet)},
				{ID: 3, Funcs: run(runKeyProgInvalidPort)},
			}},
			{Name: "KSetGo", Cases: []category.Case{
				{ID: 1, Funcs: category.CaseFuncs{Setup: setupProgrammed, Run: runKSetGo, Teardown: stopKeys}},
				{ID: 2, Funcs: category.CaseFuncs{Setup: setupBothKeySets, Run: runKSetGoSwitch, Teardown: stopKeys}},
			}},
			{Name: "KSetStop", Cases: []category.Case{
				{ID: 1, Funcs: category.CaseFuncs{Setup: setupLive, Run: runKSetStop, Teardown: stopKeys}},
				{ID: 2, Funcs: category.CaseFuncs{Setup: setupProgrammed, Run: runKSetStopRepeated, Teardown: stopKeys}},
			}},
			{Name: "Test", Cases: []category.Case{
				{ID: 1, Funcs: category.CaseFuncs{
					Setup: setupLive, Run: runStream, Teardown: stopKeys, ConfigCheckRequired: true,
				}},
			}},
		},
		NewPriv: func() any { return &group{} },
	}
}
