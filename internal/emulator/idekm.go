package emulator

import (
	"context"
	"fmt"

	"github.com/vk/teeio-validator/internal/pcie"
	"github.com/vk/teeio-validator/internal/protocol/idekm"
)

type ideResponder struct {
	e *Emulator
	f *function
}

func (r *ideResponder) Query(_ context.Context, portIndex uint8) (*idekm.QueryResp, error) {
	if err := r.e.fail(OpQuery); err != nil {
		return nil, err
	}
	if portIndex != 0 {
		return nil, fmt.Errorf("query: port index %d not implemented", portIndex)
	}
	ide, err := pcie.OpenIDE(r.f.space)
	if err != nil {
		return nil, err
	}
	ctl, err := r.f.space.ReadU32(ideCapOffset + 8)
	if err != nil {
		return nil, err
	}
	bdf := r.f.bdf
	return &idekm.QueryResp{
		PortIndex:        portIndex,
		DevFunc:          bdf.Device<<3 | bdf.Function,
		Bus:              bdf.Bus,
		Segment:          uint8(bdf.Domain),
		MaxPortIndex:     0,
		Capability:       ide.Caps(),
		Control:          ctl,
		LinkStreams:      ide.Streams(pcie.LinkStream),
		SelectiveStreams: ide.Streams(pcie.SelectiveStream),
		KeyGeneration:    r.e.opts.KeyGeneration,
	}, nil
}

func validRef(ref idekm.KeyRef) idekm.AckStatus {
	switch {
	case ref.PortIndex != 0:
		return idekm.AckUnsupportedPortIndex
	case ref.KeySet > 1 || ref.Direction > idekm.TX || ref.SubStream > idekm.Completion:
		return idekm.AckUnsupportedValue
	}
	return idekm.AckSuccess
}

func (r *ideResponder) KeyProg(_ context.Context, ref idekm.KeyRef, key idekm.Key) (idekm.AckStatus, error) {
	if err := r.e.fail(OpKeyProg); err != nil {
		return 0, err
	}
	if st := validRef(ref); st != idekm.AckSuccess {
		return st, nil
	}
	r.e.mu.Lock()
	r.f.keys[ref] = key
	r.e.mu.Unlock()
	return idekm.AckSuccess, nil
}

func (r *ideResponder) KSetGo(_ context.Context, ref idekm.KeyRef) (idekm.KeyRef, error) {
	if err := r.e.fail(OpKSetGo); err != nil {
		return idekm.KeyRef{}, err
	}
	if st := validRef(ref); st != idekm.AckSuccess {
		return idekm.KeyRef{}, fmt.Errorf("kset_go %s: %s", ref, st)
	}
	r.e.mu.Lock()
	_, programmed := r.f.keys[ref]
	if programmed {
		// Only one key set of a sub-stream is live at a time.
		other := ref
		other.KeySet ^= 1
		r.f.active[other] = false
		r.f.active[ref] = true
	}
	r.e.mu.Unlock()
	if !programmed {
		return idekm.KeyRef{}, fmt.Errorf("kset_go %s: no key programmed", ref)
	}
	r.e.refresh()
	return ref, nil
}

func (r *ideResponder) KSetStop(_ context.Context, ref idekm.KeyRef) (idekm.KeyRef, error) {
	if err := r.e.fail(OpKSetStop); err != nil {
		return idekm.KeyRef{}, err
	}
	if st := validRef(ref); st != idekm.AckSuccess {
		return idekm.KeyRef{}, fmt.Errorf("kset_stop %s: %s", ref, st)
	}
	r.e.mu.Lock()
	r.f.active[ref] = false
	delete(r.f.keys, ref)
	r.e.mu.Unlock()
	r.e.refresh()
	return ref, nil
}

func (r *ideResponder) GetKey(_ context.Context, ref idekm.KeyRef) (idekm.Key, error) {
	if err := r.e.fail(OpGetKey); err != nil {
		return idekm.Key{}, err
	}
	if !r.e.opts.KeyGeneration {
		return idekm.Key{}, idekm.ErrUnsupported
	}
	if st := validRef(ref); st != idekm.AckSuccess {
		return idekm.Key{}, fmt.Errorf("get_key %s: %s", ref, st)
	}
	// Generated keys are derived from the reference so repeated requests agree.
	var k idekm.Key
	for i := range k.Bytes {
		k.Bytes[i] = byte(i) ^ ref.StreamID ^ ref.KeySet<<4 ^ byte(ref.SubStream)<<6
	}
	k.IV[0] = 0x80 | byte(ref.Direction)
	r.e.mu.Lock()
	r.f.keys[ref] = k
	r.e.mu.Unlock()
	return k, nil
}
