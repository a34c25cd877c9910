package emulator

import (
	"context"
	"fmt"

	"github.com/vk/teeio-validator/internal/protocol/spdm"
	"github.com/vk/teeio-validator/internal/protocol/tsp"
)

type spdmResponder struct {
	e *Emulator
	f *function
}

func (r *spdmResponder) GetVersion(context.Context) ([]spdm.Version, error) {
	return []spdm.Version{spdm.V12, spdm.V13}, nil
}

func (r *spdmResponder) GetCapabilities(_ context.Context, v spdm.Version) (*spdm.Capabilities, error) {
	if v < spdm.V12 {
		return nil, fmt.Errorf("spdm: version %s not offered", v)
	}
	return &spdm.Capabilities{
		CTExponent: 20,
		Flags:      spdm.CapCert | spdm.CapChal | spdm.CapMeas | spdm.CapEncrypt | spdm.CapMAC | spdm.CapKeyEx,
	}, nil
}

func (r *spdmResponder) NegotiateAlgorithms(context.Context) (*spdm.Algorithms, error) {
	return &spdm.Algorithms{
		MeasurementHash: spdm.MeasHashSHA384,
		BaseAsym:        spdm.AsymECDSAP384,
		BaseHash:        spdm.HashSHA384,
		DHE:             spdm.DHESECP384R1,
		AEAD:            spdm.AEADAES256GCM,
		KeySchedule:     spdm.KeyScheduleSPDM,
	}, nil
}

func (r *spdmResponder) StartSession(context.Context) (uint32, error) {
	if err := r.e.fail(OpSPDMSession); err != nil {
		return 0, err
	}
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	r.f.nextSession++
	id := 0xff000000 | r.f.nextSession
	r.f.sessions[id] = true
	return id, nil
}

func (r *spdmResponder) EndSession(_ context.Context, id uint32) error {
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	if !r.f.sessions[id] {
		return fmt.Errorf("spdm: unknown session %#x", id)
	}
	delete(r.f.sessions, id)
	// TSP configuration is bound to the secured session that set it.
	r.f.tspConfig = nil
	r.f.tspState = tsp.StateConfigUnlocked
	return nil
}
