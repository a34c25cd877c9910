package pcie_ide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/zclconf/go-cty/cty"
)

func TestParsePrivate(t *testing.T) {
	cfg := &config.Configuration{}
	assert.Equal(t, uint8(defaultStreamID), settingsOf(cfg).Stream())

	require.NoError(t, parsePrivate(FieldStreamID, cty.NumberIntVal(0), cfg))
	s := settingsOf(cfg)
	assert.True(t, s.StreamID.IsDefined())
	assert.Equal(t, uint8(0), s.Stream())

	assert.ErrorContains(t, parsePrivate(FieldStreamID, cty.NumberIntVal(256), cfg), "out of range")
	assert.ErrorContains(t, parsePrivate(FieldKeySet, cty.NumberIntVal(2), cfg), "0 or 1")
	assert.Error(t, parsePrivate(FieldKeySet, cty.StringVal("one"), cfg))
	assert.Error(t, parsePrivate("mode", cty.NumberIntVal(1), cfg))
}
