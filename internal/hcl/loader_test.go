package hcl

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/pcie"
	"github.com/zclconf/go-cty/cty"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return dir
}

const ports = `
port "rp0" {
  role = "root_port"
  bdf  = "0000:00:01.0"
}
port "ep0" {
  role    = "endpoint"
  bdf     = "01:00.0"
  enabled = false
}
port "up" {
  role = "switch_port"
  bdf  = "02:00.0"
}
port "dn" {
  role = "switch_port"
  bdf  = "03:00.0"
}
switch "sw0" {
  ports = ["up", "dn"]
}
`

const suites = `
topology "sel0" {
  type       = "selective_ide"
  connection = "switch"
  root_port  = "rp0"
  lower_port = "ep0"
  hop "sw0" {
    upper = "up"
    lower = "dn"
  }
}
configuration "pcrc" {
  category      = "pcie_ide"
  topology_type = "selective_ide"
  types         = ["default", "pcrc"]
  private {
    stream_id = 3
    key_set   = 1
  }
}
suite "basic" {
  category       = "pcie_ide"
  topologies     = ["sel0"]
  configurations = ["pcrc"]
  case "Query" {}
  case "KeyProg" {
    ids = [1, 2]
  }
}
`

func TestLoader_LoadsCrossFileCatalog(t *testing.T) {
	// --- Arrange ---
	dir := writeFiles(t, map[string]string{
		"b_suites.hcl":      suites,
		"nested/ports.hcl":  ports,
		"nested/README.txt": "not a catalog",
	})
	ctx := ctxlog.Discard(context.Background())

	// --- Act ---
	cat, err := NewLoader().Load(ctx, dir)

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, cat.Ports, 4)
	assert.Equal(t, pcie.BDF{Bus: 1}, cat.Port("ep0").BDF)
	assert.False(t, cat.Port("ep0").Enabled)
	assert.True(t, cat.Port("rp0").Enabled)

	topo := cat.Topology("sel0")
	require.NotNil(t, topo)
	assert.Equal(t, config.TopologySelectiveIDE, topo.Type)
	assert.Equal(t, config.ConnectionSwitch, topo.Connection)
	assert.Same(t, cat.Port("rp0"), topo.Upper, "upper port defaults to root port")
	require.Len(t, topo.Hops, 1)
	assert.Same(t, cat.Port("dn"), topo.Hops[0].Lower)

	cfg := cat.Configuration("pcrc")
	require.NotNil(t, cfg)
	assert.Equal(t, []string{"default", "pcrc"}, cfg.TypeNames)
	require.Len(t, cfg.PrivateFields, 2)
	assert.Equal(t, "stream_id", cfg.PrivateFields[0].Key)
	assert.True(t, cfg.PrivateFields[0].Value.RawEquals(cty.NumberIntVal(3)))
	assert.Equal(t, "key_set", cfg.PrivateFields[1].Key)

	s := cat.Suite("basic")
	require.NotNil(t, s)
	want := []config.CaseSelector{{Class: "Query"}, {Class: "KeyProg", IDs: []int{1, 2}}}
	if diff := cmp.Diff(want, s.Cases); diff != "" {
		t.Errorf("case selectors mismatch (-want +got):\n%s", diff)
	}
	assert.Same(t, cfg, s.Configurations[0])
}

func TestLoader_ReportsEveryProblem(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.hcl": ports + `
port "rp0" {
  role = "root_port"
  bdf  = "00:02.0"
}
topology "t" {
  type       = "mesh"
  root_port  = "rp0"
  lower_port = "nope"
}
suite "s" {
  category       = "spdm"
  topologies     = ["t", "ghost"]
  configurations = ["missing"]
}
`,
	})
	ctx := ctxlog.Discard(context.Background())

	_, err := NewLoader().Load(ctx, dir)

	require.Error(t, err)
	for _, want := range []string{
		`duplicate port "rp0"`,
		`unknown topology type "mesh"`,
		`unknown lower_port "nope"`,
		`unknown topology "ghost"`,
		`unknown configuration "missing"`,
	} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoader_ParseErrors(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	dir := writeFiles(t, map[string]string{"bad.hcl": `port "x" {`})
	_, err := NewLoader().Load(ctx, dir)
	assert.ErrorContains(t, err, "failed to parse HCL file")

	dir = writeFiles(t, map[string]string{"bad.hcl": `widget "x" {}`})
	_, err = NewLoader().Load(ctx, dir)
	assert.ErrorContains(t, err, "failed to decode HCL file")

	_, err = NewLoader().Load(ctx, t.TempDir())
	assert.ErrorContains(t, err, "no .hcl catalog files")
}

func TestLoader_ShippedExampleCatalog(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())

	cat, err := NewLoader().Load(ctx, filepath.Join("..", "..", "examples", "emulated"))

	require.NoError(t, err)
	assert.Len(t, cat.EnabledSuites(), 6)
}

func TestLoader_EnvironmentReferences(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	dir := writeFiles(t, map[string]string{
		"ports.hcl": `
port "rp0" {
  role = "root_port"
  bdf  = env.RP_BDF
}
port "ep0" {
  role = "endpoint"
  bdf  = "01:00.0"
}
topology "sel0" {
  type       = "selective_ide"
  connection = "direct"
  root_port  = "rp0"
  lower_port = "ep0"
}
configuration "c" {
  category      = "pcie_ide"
  topology_type = "selective_ide"
  private {
    stream_id = tonumber(env.STREAM)
  }
}
`,
	})

	l := &Loader{Env: map[string]string{"RP_BDF": "0000:00:05.0"}}
	_, err := l.Load(ctx, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unset environment variables: env.STREAM")

	l.Env["STREAM"] = "7"
	_, err = l.Load(ctx, dir)
	require.Error(t, err, "functions are not in scope")

	dir = writeFiles(t, map[string]string{"ports.hcl": `
port "rp0" {
  role = "root_port"
  bdf  = env.RP_BDF
}`})
	cat, err := l.Load(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, "0000:00:05.0", cat.Port("rp0").BDF.String())
}
