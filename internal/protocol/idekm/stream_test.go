package idekm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is a Session that acknowledges everything and records requests.
type recorder struct {
	programmed []KeyRef
	ack        AckStatus
	echoKeySet uint8
}

func (r *recorder) Query(context.Context, uint8) (*QueryResp, error) { return &QueryResp{}, nil }
func (r *recorder) KeyProg(_ context.Context, ref KeyRef, _ Key) (AckStatus, error) {
	r.programmed = append(r.programmed, ref)
	return r.ack, nil
}
func (r *recorder) KSetGo(_ context.Context, ref KeyRef) (KeyRef, error) {
	ref.KeySet ^= r.echoKeySet
	return ref, nil
}
func (r *recorder) KSetStop(_ context.Context, ref KeyRef) (KeyRef, error) { return ref, nil }
func (r *recorder) GetKey(context.Context, KeyRef) (Key, error)            { return Key{}, ErrUnsupported }

func TestStream_Refs(t *testing.T) {
	refs := Stream{StreamID: 7, KeySet: 1}.Refs()
	require.Len(t, refs, 6)
	assert.Equal(t, KeyRef{StreamID: 7, KeySet: 1, Direction: RX, SubStream: Posted}, refs[0])
	assert.Equal(t, KeyRef{StreamID: 7, KeySet: 1, Direction: TX, SubStream: Completion}, refs[5])
}

func TestProgram_StopsAtFirstNack(t *testing.T) {
	ctx := context.Background()
	r := &recorder{ack: AckUnsupportedValue}

	err := Program(ctx, r, Stream{StreamID: 1}, RandomKeys)

	var ackErr *AckError
	require.True(t, errors.As(err, &ackErr))
	assert.Equal(t, AckUnsupportedValue, ackErr.Status)
	assert.Len(t, r.programmed, 1)
}

func TestGo_ChecksEcho(t *testing.T) {
	ctx := context.Background()
	assert.NoError(t, Go(ctx, &recorder{}, Stream{StreamID: 1}))
	assert.ErrorContains(t, Go(ctx, &recorder{echoKeySet: 1}, Stream{StreamID: 1}), "echoed")
	assert.NoError(t, Stop(ctx, &recorder{}, Stream{StreamID: 1}))
}

func TestRandomKeys_ClearsReservedIVBit(t *testing.T) {
	for i := 0; i < 16; i++ {
		k, err := RandomKeys(KeyRef{})
		require.NoError(t, err)
		assert.Zero(t, k.IV[0]&0x80)
	}
}
