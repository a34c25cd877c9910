package pcie_ide

import (
	"fmt"

	"github.com/vk/teeio-validator/internal/config"
	"github.com/zclconf/go-cty/cty"
	"gopkg.in/launchdarkly/go-sdk-common.v2/ldvalue"
)

// Private configuration fields.
const (
	FieldStreamID = "stream_id"
	FieldKeySet   = "key_set"
)

const defaultStreamID = 1

// Settings are the pcie_ide knobs of one configuration.
type Settings struct {
	StreamID ldvalue.OptionalInt
	KeySet   uint8
}

// Stream returns the configured stream ID, or the default.
func (s *Settings) Stream() uint8 {
	return uint8(s.StreamID.OrElse(defaultStreamID))
}

// settingsOf returns the configuration's settings, or defaults when the
// configuration declared none.
func settingsOf(cfg *config.Configuration) *Settings {
	if s, ok := cfg.Private.(*Settings); ok {
		return s
	}
	return &Settings{}
}

func parsePrivate(key string, value cty.Value, cfg *config.Configuration) error {
	s, ok := cfg.Private.(*Settings)
	if !ok {
		s = &Settings{}
		cfg.Private = s
	}
	var n int
	if err := config.Decode(value, &n); err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	switch key {
	case FieldStreamID:
		if n < 0 || n > 255 {
			return fmt.Errorf("%s: %d out of range 0..255", key, n)
		}
		s.StreamID = ldvalue.NewOptionalInt(n)
	case FieldKeySet:
		if n != 0 && n != 1 {
			return fmt.Errorf("%s: must be 0 or 1, got %d", key, n)
		}
		s.KeySet = uint8(n)
	default:
		return fmt.Errorf("unknown field %q", key)
	}
	return nil
}
