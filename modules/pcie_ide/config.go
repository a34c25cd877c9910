package pcie_ide

import (
	"context"

	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/pcie"
	"github.com/vk/teeio-validator/internal/testctx"
)

func configFuncs(_ config.TopologyType, t bitmask.ConfigurationType) category.ConfigurationFuncs {
	switch t {
	case TypeDefault:
		return streamEnable()
	case TypeSwitch:
		return flowThrough()
	case TypeSelectiveForConfig:
		return streamField(pcie.IDECapSelectiveForConfig, pcie.StreamCtlConfigRequests, pcie.StreamCtlConfigRequests)
	case TypePartialHeaderEncryption:
		return streamField(pcie.IDECapPartialHeaderEncryption, pcie.StreamCtlPartialHeader, pcie.PartialHeaderMode1)
	case TypePCRC:
		return streamField(pcie.IDECapPCRC, pcie.StreamCtlPCRC, pcie.StreamCtlPCRC)
	case TypeTEELimitedStream:
		return streamField(pcie.IDECapTEELimitedStream, pcie.StreamCtlTEELimited, pcie.StreamCtlTEELimited)
	case TypeAggregation:
		return streamField(pcie.IDECapAggregation, pcie.StreamCtlAggregation, pcie.AggregationModeAll)
	}
	// flit-mode-disable needs no register programming on the IDE side.
	return category.ConfigurationFuncs{}
}

// updateEnds read-modify-writes the stream control register of both ends.
func updateEnds(ctx context.Context, priv *group, clear, set uint32) bool {
	for _, ide := range priv.ends() {
		if err := ide.UpdateStreamControl(priv.kind, priv.index, clear, set); err != nil {
			ctxlog.FromContext(ctx).Error("Failed to update stream control.", "kind", priv.kind, "error", err)
			return false
		}
	}
	return true
}

// endsMatch reports whether field of both ends' stream control equals want.
func endsMatch(ctx context.Context, priv *group, field, want uint32) bool {
	for _, ide := range priv.ends() {
		v, err := ide.StreamControl(priv.kind, priv.index)
		if err != nil {
			ctxlog.FromContext(ctx).Error("Failed to read stream control.", "kind", priv.kind, "error", err)
			return false
		}
		if v&field != want {
			ctxlog.FromContext(ctx).Warn("Stream control mismatch.", "field", field, "want", want, "got", v&field)
			return false
		}
	}
	return true
}

func streamEnable() category.ConfigurationFuncs {
	const field = pcie.StreamCtlEnable | pcie.StreamCtlStreamIDMask
	want := func(c *testctx.Config) uint32 {
		return pcie.StreamCtlEnable | pcie.StreamIDField(settingsOf(c.Configuration).Stream())
	}
	return category.ConfigurationFuncs{
		Support: func(_ context.Context, c *testctx.Config) bool {
			return testctx.Private[*group](c.Group).query.Capability&pcie.IDECapIDEKM != 0
		},
		Enable: func(ctx context.Context, c *testctx.Config) bool {
			return updateEnds(ctx, testctx.Private[*group](c.Group), field, want(c))
		},
		Disable: func(ctx context.Context, c *testctx.Config) bool {
			return updateEnds(ctx, testctx.Private[*group](c.Group), field, 0)
		},
		Check: func(ctx context.Context, c *testctx.Config) bool {
			return endsMatch(ctx, testctx.Private[*group](c.Group), field, want(c))
		},
	}
}

// streamField programs value into field on both ends when both advertise
// capability.
func streamField(capability, field, value uint32) category.ConfigurationFuncs {
	return category.ConfigurationFuncs{
		Support: func(_ context.Context, c *testctx.Config) bool {
			priv := testctx.Private[*group](c.Group)
			return priv.root.Supports(capability) && priv.lower.Supports(capability)
		},
		Enable: func(ctx context.Context, c *testctx.Config) bool {
			return updateEnds(ctx, testctx.Private[*group](c.Group), field, value)
		},
		Disable: func(ctx context.Context, c *testctx.Config) bool {
			return updateEnds(ctx, testctx.Private[*group](c.Group), field, 0)
		},
		Check: func(ctx context.Context, c *testctx.Config) bool {
			return endsMatch(ctx, testctx.Private[*group](c.Group), field, value)
		},
	}
}

// flowThrough lets every switch port on the path forward the stream.
func flowThrough() category.ConfigurationFuncs {
	set := func(ctx context.Context, c *testctx.Config, on bool) bool {
		for _, ide := range testctx.Private[*group](c.Group).hops {
			if err := ide.SetFlowThrough(on); err != nil {
				ctxlog.FromContext(ctx).Error("Failed to set flow-through.", "enable", on, "error", err)
				return false
			}
		}
		return true
	}
	return category.ConfigurationFuncs{
		Support: func(_ context.Context, c *testctx.Config) bool {
			priv := testctx.Private[*group](c.Group)
			if len(priv.hops) == 0 {
				return false
			}
			for _, ide := range priv.hops {
				if !ide.Supports(pcie.IDECapFlowThrough) {
					return false
				}
			}
			return true
		},
		Enable:  func(ctx context.Context, c *testctx.Config) bool { return set(ctx, c, true) },
		Disable: func(ctx context.Context, c *testctx.Config) bool { return set(ctx, c, false) },
		Check: func(ctx context.Context, c *testctx.Config) bool {
			for _, ide := range testctx.Private[*group](c.Group).hops {
				if on, err := ide.FlowThrough(); err != nil || !on {
					return false
				}
			}
			return true
		},
	}
}
