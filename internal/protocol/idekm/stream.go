package idekm

import (
	"context"
	"crypto/rand"
	"fmt"
)

// AckError is a KP_ACK with a status other than success.
type AckError struct {
	Ref    KeyRef
	Status AckStatus
}

func (e *AckError) Error() string {
	return fmt.Sprintf("key_prog %s: %s", e.Ref, e.Status)
}

// Stream addresses every key slot of one stream under one key set.
type Stream struct {
	PortIndex uint8
	StreamID  uint8
	KeySet    uint8
}

// Refs lists the slots of s: RX then TX, each in sub-stream order.
func (s Stream) Refs() []KeyRef {
	refs := make([]KeyRef, 0, 2*len(SubStreams))
	for _, dir := range []Direction{RX, TX} {
		for _, sub := range SubStreams {
			refs = append(refs, KeyRef{PortIndex: s.PortIndex, StreamID: s.StreamID, KeySet: s.KeySet, Direction: dir, SubStream: sub})
		}
	}
	return refs
}

// KeySource produces the key for one slot.
type KeySource func(ref KeyRef) (Key, error)

// RandomKeys draws every key and IV from crypto/rand.
func RandomKeys(KeyRef) (Key, error) {
	var k Key
	if _, err := rand.Read(k.Bytes[:]); err != nil {
		return Key{}, err
	}
	if _, err := rand.Read(k.IV[:]); err != nil {
		return Key{}, err
	}
	// IV bit 63 is reserved and must be clear.
	k.IV[0] &^= 0x80
	return k, nil
}

// Program runs KEY_PROG for every slot of s.
func Program(ctx context.Context, sess Session, s Stream, keys KeySource) error {
	for _, ref := range s.Refs() {
		key, err := keys(ref)
		if err != nil {
			return fmt.Errorf("key for %s: %w", ref, err)
		}
		st, err := sess.KeyProg(ctx, ref, key)
		if err != nil {
			return err
		}
		if st != AckSuccess {
			return &AckError{Ref: ref, Status: st}
		}
	}
	return nil
}

// Go runs K_SET_GO for every slot of s and verifies the echoed references.
func Go(ctx context.Context, sess Session, s Stream) error {
	return each(s, func(ref KeyRef) (KeyRef, error) { return sess.KSetGo(ctx, ref) })
}

// Stop runs K_SET_STOP for every slot of s and verifies the echoed references.
func Stop(ctx context.Context, sess Session, s Stream) error {
	return each(s, func(ref KeyRef) (KeyRef, error) { return sess.KSetStop(ctx, ref) })
}

func each(s Stream, fn func(KeyRef) (KeyRef, error)) error {
	for _, ref := range s.Refs() {
		echo, err := fn(ref)
		if err != nil {
			return err
		}
		if echo != ref {
			return fmt.Errorf("response for %s echoed %s", ref, echo)
		}
	}
	return nil
}
