package emulator

import (
	"context"
	"fmt"

	"github.com/vk/teeio-validator/internal/protocol/tsp"
)

type tspResponder struct {
	e *Emulator
	f *function
}

func (r *tspResponder) GetVersion(context.Context) ([]tsp.Version, error) {
	return []tsp.Version{{Major: 1, Minor: 0}}, nil
}

func (r *tspResponder) GetCapabilities(context.Context) (*tsp.Capabilities, error) {
	return &tsp.Capabilities{
		Features:           r.e.opts.TSPFeatures,
		Algorithms:         tsp.AlgorithmAESXTS256,
		MaxCKIDs:           64,
		TEStateGranularity: 4096,
	}, nil
}

func (r *tspResponder) SetConfiguration(_ context.Context, cfg tsp.Configuration) error {
	if err := r.e.fail(OpTSPSetConfig); err != nil {
		return err
	}
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	switch {
	case r.f.tspState == tsp.StateConfigLocked:
		return tsp.ErrLocked
	case cfg.Features&^r.e.opts.TSPFeatures != 0:
		return fmt.Errorf("tsp: features %#x not supported", cfg.Features&^r.e.opts.TSPFeatures)
	case cfg.Algorithm != tsp.AlgorithmAESXTS256:
		return fmt.Errorf("tsp: algorithm %#x not supported", cfg.Algorithm)
	case cfg.NumCKIDs > 64:
		return fmt.Errorf("tsp: %d CKIDs exceed 64", cfg.NumCKIDs)
	}
	c := cfg
	r.f.tspConfig = &c
	return nil
}

func (r *tspResponder) GetConfiguration(context.Context) (*tsp.Configuration, tsp.State, error) {
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	if r.f.tspConfig == nil {
		return &tsp.Configuration{}, r.f.tspState, nil
	}
	c := *r.f.tspConfig
	return &c, r.f.tspState, nil
}

func (r *tspResponder) LockConfiguration(context.Context) error {
	if err := r.e.fail(OpTSPLock); err != nil {
		return err
	}
	r.e.mu.Lock()
	defer r.e.mu.Unlock()
	if r.f.tspConfig == nil {
		return fmt.Errorf("tsp: lock before configuration")
	}
	r.f.tspState = tsp.StateConfigLocked
	return nil
}
