package category

import (
	"context"

	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/platform"
	"github.com/vk/teeio-validator/internal/testctx"
)

// OpenPorts is the common first step of a group setup: it opens every port
// of the group's topology into g.Ports. Handles opened before a failure are
// kept so ClosePorts can release them.
func OpenPorts(ctx context.Context, g *testctx.Group) bool {
	ports, err := platform.OpenPorts(ctx, g.Suite.Platform, g.Topology)
	g.Ports = ports
	if err != nil {
		ctxlog.FromContext(ctx).Error("Failed to open topology ports.", "error", err)
		return false
	}
	return true
}

// ClosePorts releases g.Ports. It is safe after a partial or failed
// OpenPorts and when called more than once.
func ClosePorts(ctx context.Context, g *testctx.Group) bool {
	if err := g.Ports.Close(); err != nil {
		ctxlog.FromContext(ctx).Error("Failed to close topology ports.", "error", err)
		return false
	}
	return true
}
