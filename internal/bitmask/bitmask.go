// Package bitmask models configuration variants as bit positions and
// resolves which of them apply to a topology shape for a given category.
package bitmask

import (
	"fmt"
	"math/bits"
	"strings"
)

// ConfigurationType is the ordinal of a configuration variant. Its meaning
// beyond Default is defined by each category.
type ConfigurationType uint8

// Default is the mandatory baseline variant every category supports.
const Default ConfigurationType = 0

// MaxTypes is the number of distinct configuration types a Bitmap can hold.
const MaxTypes = 32

// Bitmap holds one bit per ConfigurationType ordinal.
type Bitmap uint32

// Bit returns the bitmap with only t set.
func Bit(t ConfigurationType) Bitmap {
	if t >= MaxTypes {
		panic(fmt.Sprintf("bitmask: configuration type %d out of range", t))
	}
	return Bitmap(1) << t
}

// Of returns the bitmap with all of the given types set.
func Of(types ...ConfigurationType) Bitmap {
	var b Bitmap
	for _, t := range types {
		b |= Bit(t)
	}
	return b
}

// Has reports whether t is set.
func (b Bitmap) Has(t ConfigurationType) bool {
	return t < MaxTypes && b&Bit(t) != 0
}

// Types returns the set types in ascending ordinal order.
func (b Bitmap) Types() []ConfigurationType {
	types := make([]ConfigurationType, 0, bits.OnesCount32(uint32(b)))
	for rest := uint32(b); rest != 0; rest &= rest - 1 {
		types = append(types, ConfigurationType(bits.TrailingZeros32(rest)))
	}
	return types
}

// String renders the bitmap as a brace-delimited list of ordinals, e.g. "{0,2}".
func (b Bitmap) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, t := range b.Types() {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, "%d", t)
	}
	sb.WriteByte('}')
	return sb.String()
}

// Resolve computes the applicable bitmap: the requested bits restricted to the
// legal set for a shape, then passed through the category's sanitizer. It has
// no side effects beyond whatever sanitize does to its argument.
func Resolve(requested, legal Bitmap, sanitize func(*Bitmap)) Bitmap {
	resolved := requested & legal
	if sanitize != nil {
		sanitize(&resolved)
	}
	return resolved
}

// ForceDefault is the standard sanitizer: it sets the Default bit.
func ForceDefault(b *Bitmap) {
	*b |= Bit(Default)
}
