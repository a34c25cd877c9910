package hcl

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/fsutil"
	"github.com/vk/teeio-validator/internal/schema"
)

// Loader is the HCL-specific implementation of the config.Loader interface.
type Loader struct {
	// Env is exposed to catalog expressions as env.NAME.
	Env map[string]string
}

var _ config.Loader = (*Loader)(nil)

// NewLoader creates a new HCL catalog loader that sees the process
// environment.
func NewLoader() *Loader {
	return &Loader{Env: environ()}
}

// Load parses every .hcl file under paths and translates the merged blocks
// into a validated catalog. Blocks may reference blocks from other files.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Catalog, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("HCL loader started.", "path_count", len(paths))

	files, err := fsutil.Collect(paths, ".hcl")
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl catalog files found in %v", paths)
	}
	logger.Debug("Discovered HCL files.", "count", len(files))

	evalCtx := l.evalContext()
	parser := hclparse.NewParser()
	merged := &schema.File{}
	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse HCL file %s: %w", file, diags)
		}
		if unset := l.unsetReferences(hclFile.Body); len(unset) > 0 {
			return nil, fmt.Errorf("HCL file %s refers to unset environment variables: %s", file, strings.Join(unset, ", "))
		}
		var root schema.File
		if diags := gohcl.DecodeBody(hclFile.Body, evalCtx, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode HCL file %s: %w", file, diags)
		}
		merged.Ports = append(merged.Ports, root.Ports...)
		merged.Switches = append(merged.Switches, root.Switches...)
		merged.Topologies = append(merged.Topologies, root.Topologies...)
		merged.Configurations = append(merged.Configurations, root.Configurations...)
		merged.Suites = append(merged.Suites, root.Suites...)
	}

	cat, err := translate(merged, evalCtx)
	if err != nil {
		return nil, err
	}
	if err := cat.Validate(); err != nil {
		return nil, fmt.Errorf("catalog validation failed: %w", err)
	}

	logger.Debug("HCL loading complete.",
		"ports", len(cat.Ports),
		"switches", len(cat.Switches),
		"topologies", len(cat.Topologies),
		"configurations", len(cat.Configurations),
		"suites", len(cat.Suites),
	)
	return cat, nil
}

// problems collects translation errors.
type problems []error

func (p *problems) add(format string, args ...any) {
	*p = append(*p, fmt.Errorf(format, args...))
}

func (p problems) err() error {
	return errors.Join(p...)
}
