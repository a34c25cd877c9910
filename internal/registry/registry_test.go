package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/testctx"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/gocty"
)

func demoTable() *category.Table {
	run := func(context.Context, *testctx.Case) bool { return true }
	return &category.Table{
		CategoryName:  "demo",
		Types:         []string{"default", "pcrc", "ide-stop"},
		PrivateFields: []string{"mode"},
		ParsePrivate: func(key string, v cty.Value, cfg *config.Configuration) error {
			var mode string
			if err := gocty.FromCtyValue(v, &mode); err != nil {
				return err
			}
			if mode != "skid" && mode != "containment" {
				return errors.New("mode must be skid or containment")
			}
			cfg.Private = mode
			return nil
		},
		Classes: []category.Class{{Name: "Query", Cases: []category.Case{{ID: 1, Funcs: category.CaseFuncs{Run: run}}}}},
	}
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	r := New()
	r.Register(demoTable())
	assert.Panics(t, func() { r.Register(demoTable()) })
	assert.Equal(t, []string{"demo"}, r.Names())
}

func TestRegister_PanicsOnMalformedTable(t *testing.T) {
	r := New()
	tbl := demoTable()
	tbl.Classes[0].Cases[0].Funcs.Run = nil
	assert.Panics(t, func() { r.Register(tbl) })
}

func TestBind_ResolvesNamesAndPrivateFields(t *testing.T) {
	// --- Arrange ---
	ctx := ctxlog.Discard(context.Background())
	r := New()
	r.Register(demoTable())
	cfg := &config.Configuration{
		Name: "c0", Category: "demo", TypeNames: []string{"ide-stop"},
		PrivateFields: []config.PrivateField{{Key: "mode", Value: cty.StringVal("skid")}},
	}
	cat := &config.Catalog{
		Configurations: []*config.Configuration{cfg},
		Suites:         []*config.TestSuite{{Name: "s0", Category: "demo", Cases: []config.CaseSelector{{Class: "Query", IDs: []int{1}}}}},
	}

	// --- Act ---
	err := r.Bind(ctx, cat)

	// --- Assert ---
	require.NoError(t, err)
	assert.Equal(t, bitmask.Of(0, 2), cfg.Requested)
	assert.Equal(t, "skid", cfg.Private)
}

func TestBind_CollectsEveryProblem(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	r := New()
	r.Register(demoTable())
	cat := &config.Catalog{
		Configurations: []*config.Configuration{
			{Name: "c0", Category: "demo", TypeNames: []string{"flit"}, PrivateFields: []config.PrivateField{
				{Key: "stream_id", Value: cty.NumberIntVal(1)},
				{Key: "mode", Value: cty.StringVal("fast")},
			}},
			{Name: "c1", Category: "nvme"},
		},
		Suites: []*config.TestSuite{
			{Name: "s0", Category: "demo", Cases: []config.CaseSelector{{Class: "KeyProg"}, {Class: "Query", IDs: []int{1, 4}}}},
		},
	}

	err := r.Bind(ctx, cat)
	require.Error(t, err)
	for _, want := range []string{
		"configuration 'c0': category 'demo' has no configuration type 'flit'",
		"does not accept private field 'stream_id'",
		"private field 'mode': mode must be skid or containment",
		"configuration 'c1': unknown category 'nvme'",
		"category 'demo' has no case class 'KeyProg'",
		"case 'Query.4' is not defined",
	} {
		assert.Contains(t, err.Error(), want)
	}
}
