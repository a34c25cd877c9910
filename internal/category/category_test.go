package category

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/testctx"
	"github.com/zclconf/go-cty/cty"
)

func run(context.Context, *testctx.Case) bool { return true }

// stopTable has shape X = selective IDE with legal bits {0 default, 2 ide-stop}.
func stopTable() *Table {
	return &Table{
		CategoryName: "demo",
		Types:        []string{"default", "pcrc", "ide-stop", "aggregation"},
		Bitmasks: map[config.TopologyType]bitmask.Bitmap{
			config.TopologySelectiveIDE: bitmask.Of(0, 2),
			config.TopologyLinkIDE:      bitmask.Of(0, 1, 2, 3),
		},
		Classes: []Class{
			{Name: "Query", Cases: []Case{{ID: 1, Funcs: CaseFuncs{Run: run}}, {ID: 2, Funcs: CaseFuncs{Run: run}}}},
			{Name: "KeyProg", Cases: []Case{{ID: 1, Funcs: CaseFuncs{Run: run}}}},
		},
		NewPriv: func() any { return new(int) },
	}
}

func TestResolve_Example(t *testing.T) {
	got := Resolve(stopTable(), config.TopologySelectiveIDE, bitmask.Of(0, 1, 2, 3))
	assert.Equal(t, bitmask.Of(0, 2), got)
	assert.Equal(t, "{0,2}", got.String())
}

func TestResolve_DefaultFloorAndPurity(t *testing.T) {
	tbl := stopTable()
	for _, shape := range config.TopologyTypes {
		first := Resolve(tbl, shape, 0)
		assert.True(t, first.Has(bitmask.Default), "shape %s", shape)
		assert.Equal(t, first, Resolve(tbl, shape, 0))
	}
	// Shapes without a mask only allow the default variant.
	assert.Equal(t, bitmask.Of(0), Resolve(tbl, config.TopologySelectiveAndLinkIDE, bitmask.Of(1, 2)))
}

func TestTable_Lookups(t *testing.T) {
	tbl := stopTable()
	require.NoError(t, tbl.Validate())

	name, ok := tbl.ConfigurationName(2)
	assert.True(t, ok)
	assert.Equal(t, "ide-stop", name)
	_, ok = tbl.ConfigurationName(9)
	assert.False(t, ok)

	ct, ok := TypeByName(tbl, "aggregation")
	assert.True(t, ok)
	assert.Equal(t, bitmask.ConfigurationType(3), ct)

	cc, ok := tbl.CaseName("Query")
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, cc.IDs)
	assert.True(t, cc.Has(2))
	assert.False(t, cc.Has(3))

	_, ok = tbl.CaseFuncs("Query", 3)
	assert.False(t, ok)
	assert.Equal(t, []string{"Query", "KeyProg"}, tbl.CaseClasses())

	g := tbl.AllocGroupContext()
	assert.Equal(t, testctx.KindGroup, g.Kind())
	assert.IsType(t, new(int), g.Priv)
	assert.Nil(t, g.Topology)
}

func TestTable_NoPrivateFields(t *testing.T) {
	err := stopTable().ParsePrivateField("stream_id", cty.NumberIntVal(1), &config.Configuration{})
	assert.ErrorIs(t, err, ErrNoPrivateFields)
}

func TestTable_Validate(t *testing.T) {
	tbl := stopTable()
	tbl.Types[0] = ""
	tbl.PrivateFields = []string{"mode"}
	tbl.Classes = append(tbl.Classes, Class{Name: "Query", Cases: []Case{{ID: 1}, {ID: 1}}})

	err := tbl.Validate()
	require.Error(t, err)
	for _, want := range []string{
		"default configuration type unnamed",
		"private fields declared without a parser",
		`duplicate case class "Query"`,
		"duplicate case Query.1",
		"case Query.1 has no run hook",
	} {
		assert.Contains(t, err.Error(), want)
	}
}
