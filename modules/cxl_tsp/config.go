package cxl_tsp

import (
	"context"

	"github.com/vk/teeio-validator/internal/bitmask"
	"github.com/vk/teeio-validator/internal/category"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/protocol/tsp"
	"github.com/vk/teeio-validator/internal/testctx"
)

const multiCKIDCount = 4

func configFuncs(_ config.TopologyType, t bitmask.ConfigurationType) category.ConfigurationFuncs {
	switch t {
	case TypeDefault:
		return category.ConfigurationFuncs{
			Enable: func(_ context.Context, c *testctx.Config) bool {
				testctx.Private[*group](c.Group).want = tsp.Configuration{
					Features:  tsp.FeatureEncryption,
					Algorithm: tsp.AlgorithmAESXTS256,
					NumCKIDs:  1,
				}
				return true
			},
			Disable: func(_ context.Context, c *testctx.Config) bool {
				testctx.Private[*group](c.Group).want = tsp.Configuration{}
				return true
			},
			Check: checkDevice(func(want, got *tsp.Configuration) bool {
				return got.Algorithm == want.Algorithm && got.Features&tsp.FeatureEncryption != 0
			}),
		}
	case TypeTEStateChange:
		return category.ConfigurationFuncs{
			Support: func(_ context.Context, c *testctx.Config) bool {
				return testctx.Private[*group](c.Group).caps.Features&tsp.FeatureTEStateChange != 0
			},
			Enable: func(_ context.Context, c *testctx.Config) bool {
				priv := testctx.Private[*group](c.Group)
				priv.want.Features |= tsp.FeatureTEStateChange
				priv.want.TEStateChange = true
				return true
			},
			Disable: func(_ context.Context, c *testctx.Config) bool {
				priv := testctx.Private[*group](c.Group)
				priv.want.Features &^= tsp.FeatureTEStateChange
				priv.want.TEStateChange = false
				return true
			},
			Check: checkDevice(func(_, got *tsp.Configuration) bool { return got.TEStateChange }),
		}
	case TypeMultiCKID:
		return category.ConfigurationFuncs{
			Support: func(_ context.Context, c *testctx.Config) bool {
				caps := testctx.Private[*group](c.Group).caps
				return caps.Features&tsp.FeatureCKIDBased != 0 && caps.MaxCKIDs >= multiCKIDCount
			},
			Enable: func(_ context.Context, c *testctx.Config) bool {
				priv := testctx.Private[*group](c.Group)
				priv.want.Features |= tsp.FeatureCKIDBased
				priv.want.NumCKIDs = multiCKIDCount
				return true
			},
			Disable: func(_ context.Context, c *testctx.Config) bool {
				priv := testctx.Private[*group](c.Group)
				priv.want.Features &^= tsp.FeatureCKIDBased
				priv.want.NumCKIDs = 1
				return true
			},
			Check: checkDevice(func(_, got *tsp.Configuration) bool { return got.NumCKIDs == multiCKIDCount }),
		}
	}
	return category.ConfigurationFuncs{}
}

// checkDevice reads the device configuration back and applies match.
func checkDevice(match func(want, got *tsp.Configuration) bool) func(context.Context, *testctx.Config) bool {
	return func(ctx context.Context, c *testctx.Config) bool {
		priv := testctx.Private[*group](c.Group)
		got, _, err := priv.tsp.GetConfiguration(ctx)
		if err != nil {
			ctxlog.FromContext(ctx).Error("Failed to read TSP configuration.", "error", err)
			return false
		}
		return match(&priv.want, got)
	}
}
