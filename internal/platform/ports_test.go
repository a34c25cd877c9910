package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/teeio-validator/internal/config"
	"github.com/vk/teeio-validator/internal/ctxlog"
	"github.com/vk/teeio-validator/internal/pcie"
)

type closingSpace struct {
	*pcie.Mem
	closed *int
}

func (c closingSpace) Close() error {
	*c.closed++
	return nil
}

type fakePlatform struct {
	Sysfs
	opened  []pcie.BDF
	closed  int
	failBus uint8
}

func (f *fakePlatform) ConfigSpace(bdf pcie.BDF) (pcie.ConfigSpace, error) {
	if f.failBus != 0 && bdf.Bus == f.failBus {
		return nil, errors.New("no such device")
	}
	f.opened = append(f.opened, bdf)
	return closingSpace{Mem: pcie.NewMem(), closed: &f.closed}, nil
}

func switchTopology() *config.Topology {
	rp := &config.Port{Name: "rp", BDF: pcie.BDF{Bus: 0, Device: 1}}
	up := &config.Port{Name: "up", BDF: pcie.BDF{Bus: 1}}
	dn := &config.Port{Name: "dn", BDF: pcie.BDF{Bus: 2}}
	ep := &config.Port{Name: "ep", BDF: pcie.BDF{Bus: 3}}
	sw := &config.Switch{Name: "sw", Ports: []*config.Port{up, dn}}
	return &config.Topology{
		Name: "t", Connection: config.ConnectionSwitch,
		Root: rp, Lower: ep,
		Hops: []*config.SwitchHop{{Switch: sw, Upper: up, Lower: dn}},
	}
}

func TestOpenPorts_SharesRootAndUpper(t *testing.T) {
	// --- Arrange ---
	ctx := ctxlog.Discard(context.Background())
	p := &fakePlatform{}

	// --- Act ---
	ports, err := OpenPorts(ctx, p, switchTopology())

	// --- Assert ---
	require.NoError(t, err)
	assert.Same(t, ports.Root, ports.Upper)
	assert.Len(t, p.opened, 4)
	require.Len(t, ports.Hops, 1)
	assert.Equal(t, "dn", ports.Hops[0].Lower.Port.Name)

	require.NoError(t, ports.Close())
	require.NoError(t, ports.Close())
	assert.Equal(t, 4, p.closed)
}

func TestOpenPorts_PartialFailureStillCloses(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	p := &fakePlatform{failBus: 2}

	ports, err := OpenPorts(ctx, p, switchTopology())
	require.Error(t, err)
	assert.Contains(t, err.Error(), `port "dn"`)
	assert.Len(t, ports.All(), 3)

	require.NoError(t, ports.Close())
	assert.Equal(t, 3, p.closed)

	var nilPorts *Ports
	assert.NoError(t, nilPorts.Close())
}

func TestSysfs_SessionsUnavailable(t *testing.T) {
	s := NewSysfs("")
	assert.Equal(t, pcie.DefaultSysfsRoot, s.Root)
	_, err := s.IDEKM(context.Background(), pcie.BDF{})
	assert.ErrorIs(t, err, ErrNoTransport)
	_, err = s.TDISP(context.Background(), pcie.BDF{})
	assert.ErrorIs(t, err, ErrNoTransport)
}
