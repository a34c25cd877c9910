package emulator

import (
	"context"
	"fmt"

	"github.com/vk/teeio-validator/internal/protocol/tdisp"
)

type tdispResponder struct {
	e *Emulator
	f *function
}

func (r *tdispResponder) GetVersion(context.Context) ([]uint8, error) {
	return []uint8{0x10}, nil
}

func (r *tdispResponder) GetCapabilities(context.Context) (*tdisp.Capabilities, error) {
	return &tdisp.Capabilities{LockFlagsSupported: r.e.opts.TDISPLockFlags, NumReqThisTDI: 1, NumReqAll: 1}, nil
}

func (r *tdispResponder) LockInterface(_ context.Context, _ tdisp.InterfaceID, flags tdisp.LockFlags) (tdisp.Nonce, error) {
	if err := r.e.fail(OpTDISPLock); err != nil {
		return tdisp.Nonce{}, err
	}
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	if r.f.tdiState != tdisp.ConfigUnlocked {
		return tdisp.Nonce{}, fmt.Errorf("lock from %s: %w", r.f.tdiState, tdisp.ErrInvalidState)
	}
	if flags&^r.e.opts.TDISPLockFlags != 0 {
		return tdisp.Nonce{}, fmt.Errorf("tdisp: lock flags %#x not supported", uint16(flags))
	}
	for i := range r.f.nonce {
		r.f.nonce[i]++
	}
	r.f.tdiState = tdisp.ConfigLocked
	return r.f.nonce, nil
}

func (r *tdispResponder) StartInterface(_ context.Context, _ tdisp.InterfaceID, nonce tdisp.Nonce) error {
	if err := r.e.fail(OpTDISPStart); err != nil {
		return err
	}
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	if r.f.tdiState != tdisp.ConfigLocked {
		return fmt.Errorf("start from %s: %w", r.f.tdiState, tdisp.ErrInvalidState)
	}
	if nonce != r.f.nonce {
		r.f.tdiState = tdisp.Error
		return fmt.Errorf("tdisp: start nonce mismatch")
	}
	r.f.tdiState = tdisp.Run
	return nil
}

func (r *tdispResponder) StopInterface(context.Context, tdisp.InterfaceID) error {
	if err := r.e.fail(OpTDISPStop); err != nil {
		return err
	}
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	r.f.tdiState = tdisp.ConfigUnlocked
	return nil
}

func (r *tdispResponder) GetState(context.Context, tdisp.InterfaceID) (tdisp.State, error) {
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	return r.f.tdiState, nil
}
