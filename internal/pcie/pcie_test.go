package pcie

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/quick"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBDF(t *testing.T) {
	tests := []struct {
		in      string
		want    BDF
		wantErr bool
	}{
		{in: "0000:3a:00.1", want: BDF{Bus: 0x3a, Function: 1}},
		{in: "0001:00:1f.7", want: BDF{Domain: 1, Device: 0x1f, Function: 7}},
		{in: "02:03.0", want: BDF{Bus: 2, Device: 3}},
		{in: "02:20.0", wantErr: true},
		{in: "02:03.8", wantErr: true},
		{in: "garbage", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBDF(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ParseBDF mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// Round-trip BDF formatting and parsing.
func TestBDFStringRoundTrip(t *testing.T) {
	f := func(src BDF) bool {
		src.Device &= 0x1f
		src.Function &= 0x7
		dst, err := ParseBDF(src.String())
		return err == nil && cmp.Equal(src, dst)
	}
	if err := quick.Check(f, nil); err != nil {
		t.Error(err)
	}
}

func TestMem_RejectsUnalignedAccess(t *testing.T) {
	m := NewMem()
	_, err := m.ReadU32(2)
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.ErrorIs(t, m.WriteU32(ConfigSpaceSize, 1), ErrOutOfRange)
}

func TestFindExtCapability(t *testing.T) {
	m := NewMem()
	require.NoError(t, m.WriteU32(0x100, ExtCapHeader(0x0001, 1, 0x140)))
	require.NoError(t, m.WriteU32(0x140, ExtCapHeader(ExtCapIDDOE, 1, 0x180)))
	require.NoError(t, m.WriteU32(0x180, ExtCapHeader(ExtCapIDIDE, 1, 0)))

	off, err := FindExtCapability(m, ExtCapIDIDE)
	require.NoError(t, err)
	assert.Equal(t, 0x180, off)

	_, err = FindExtCapability(m, 0x0023)
	assert.ErrorIs(t, err, ErrCapabilityNotFound)
}

func TestFindExtCapability_RejectsBackwardsPointer(t *testing.T) {
	m := NewMem()
	require.NoError(t, m.WriteU32(0x100, ExtCapHeader(0x0001, 1, 0x040)))
	_, err := FindExtCapability(m, ExtCapIDIDE)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrCapabilityNotFound))
}

func TestIDE_LayoutAndStreamControl(t *testing.T) {
	m := NewMem()
	caps := IDECapIDEKM | IDECapPCRC | IDECapAggregation
	require.NoError(t, InstallIDE(m, 0x200, caps, 2, 3))

	ide, err := OpenIDE(m)
	require.NoError(t, err)
	assert.True(t, ide.Supports(IDECapPCRC|IDECapIDEKM|IDECapLinkStream|IDECapSelectiveStream))
	assert.False(t, ide.Supports(IDECapPartialHeaderEncryption))
	assert.Equal(t, 2, ide.Streams(LinkStream))
	assert.Equal(t, 3, ide.Streams(SelectiveStream))

	require.NoError(t, ide.UpdateStreamControl(SelectiveStream, 2, 0, StreamCtlPCRC|StreamIDField(5)))
	v, err := ide.StreamControl(SelectiveStream, 2)
	require.NoError(t, err)
	assert.Equal(t, StreamCtlPCRC|StreamIDField(5), v)

	// Neighbouring streams are untouched.
	v, err = ide.StreamControl(SelectiveStream, 1)
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, ide.SetStreamState(SelectiveStream, 2, StreamSecure))
	st, err := ide.StreamState(SelectiveStream, 2)
	require.NoError(t, err)
	assert.Equal(t, StreamSecure, st)

	_, err = ide.StreamControl(LinkStream, 2)
	assert.Error(t, err)

	require.NoError(t, ide.SetFlowThrough(true))
	on, err := ide.FlowThrough()
	require.NoError(t, err)
	assert.True(t, on)
	require.NoError(t, ide.SetFlowThrough(false))
	on, err = ide.FlowThrough()
	require.NoError(t, err)
	assert.False(t, on)
}

func TestSysfs_ReadWrite(t *testing.T) {
	root := t.TempDir()
	bdf := BDF{Bus: 1}
	dir := filepath.Join(root, bdf.String())
	require.NoError(t, os.MkdirAll(dir, 0o755))
	data := make([]byte, ConfigSpaceSize)
	binary.LittleEndian.PutUint32(data, 0x12348086)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config"), data, 0o644))

	cs, err := OpenSysfs(root, bdf)
	require.NoError(t, err)

	v, err := cs.ReadU32(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12348086), v)

	require.NoError(t, cs.WriteU32(0x10, 0xdeadbeef))
	v, err = cs.ReadU32(0x10)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xdeadbeef), v)

	require.NoError(t, Close(cs))
	require.NoError(t, cs.Close())
	_, err = cs.ReadU32(0)
	assert.ErrorIs(t, err, os.ErrClosed)
}
