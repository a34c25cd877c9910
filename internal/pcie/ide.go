package pcie

import "fmt"

// IDE Capability register bits.
const (
	IDECapLinkStream              uint32 = 1 << 0
	IDECapSelectiveStream         uint32 = 1 << 1
	IDECapFlowThrough             uint32 = 1 << 2
	IDECapPartialHeaderEncryption uint32 = 1 << 3
	IDECapAggregation             uint32 = 1 << 4
	IDECapPCRC                    uint32 = 1 << 5
	IDECapIDEKM                   uint32 = 1 << 6
	IDECapSelectiveForConfig      uint32 = 1 << 7
	IDECapTEELimitedStream        uint32 = 1 << 24
)

// IDE Control register bits.
const (
	IDECtlFlowThroughEnable uint32 = 1 << 2
)

// Link and Selective IDE Stream Control register fields.
const (
	StreamCtlEnable           uint32 = 1 << 0
	StreamCtlCXLContainment   uint32 = 1 << 1
	StreamCtlAggregation      uint32 = 0x3f << 2
	StreamCtlPCRC             uint32 = 1 << 8
	StreamCtlConfigRequests   uint32 = 1 << 9
	StreamCtlPartialHeader    uint32 = 0xf << 10
	StreamCtlTEELimited       uint32 = 1 << 23
	StreamCtlStreamIDMask     uint32 = 0xff << 24
	streamCtlStreamIDShift           = 24
	streamCtlPartialHeaderLow        = 1 << 10
	streamCtlAggregationEvery        = 0x15 << 2
	ideRegBlockLinkStride            = 8
	ideSelectiveFixedRegs            = 5 * 4
	ideAddrBlockSize                 = 3 * 4
	ideLinkBlockStart                = 0x0c
)

// PartialHeaderMode1 is the smallest partial header encryption mode.
const PartialHeaderMode1 = streamCtlPartialHeaderLow

// AggregationModeAll enables two-TLP aggregation for NPR, PR and CPL.
const AggregationModeAll = streamCtlAggregationEvery

// StreamIDField encodes a stream ID into the stream control register.
func StreamIDField(id uint8) uint32 {
	return uint32(id) << streamCtlStreamIDShift
}

// StreamKind selects link or selective stream register blocks.
type StreamKind int

const (
	LinkStream StreamKind = iota
	SelectiveStream
)

func (k StreamKind) String() string {
	if k == LinkStream {
		return "link"
	}
	return "selective"
}

// StreamState is the state field of an IDE stream status register.
type StreamState uint8

const (
	StreamInsecure StreamState = 0
	StreamSecure   StreamState = 2
)

func (s StreamState) String() string {
	switch s {
	case StreamInsecure:
		return "insecure"
	case StreamSecure:
		return "secure"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

// IDE is the IDE extended capability of one function.
type IDE struct {
	cs          ConfigSpace
	base        int
	caps        uint32
	linkStreams int
	selective   []int
}

// OpenIDE locates and decodes the IDE extended capability.
func OpenIDE(cs ConfigSpace) (*IDE, error) {
	base, err := FindExtCapability(cs, ExtCapIDIDE)
	if err != nil {
		return nil, err
	}
	caps, err := cs.ReadU32(base + 4)
	if err != nil {
		return nil, err
	}
	ide := &IDE{cs: cs, base: base, caps: caps}

	offset := base + ideLinkBlockStart
	if caps&IDECapLinkStream != 0 {
		ide.linkStreams = int(caps>>13&0x7) + 1
		offset += ide.linkStreams * ideRegBlockLinkStride
	}
	if caps&IDECapSelectiveStream != 0 {
		n := int(caps>>16&0xff) + 1
		for i := 0; i < n; i++ {
			selCap, err := cs.ReadU32(offset)
			if err != nil {
				return nil, err
			}
			ide.selective = append(ide.selective, offset)
			offset += ideSelectiveFixedRegs + int(selCap&0xf)*ideAddrBlockSize
		}
	}
	return ide, nil
}

// Caps returns the raw IDE Capability register.
func (i *IDE) Caps() uint32 { return i.caps }

// Supports reports whether every bit in mask is set in the capability register.
func (i *IDE) Supports(mask uint32) bool { return i.caps&mask == mask }

// Streams returns how many streams of the kind the function implements.
func (i *IDE) Streams(kind StreamKind) int {
	if kind == LinkStream {
		return i.linkStreams
	}
	return len(i.selective)
}

func (i *IDE) controlOffset(kind StreamKind, index int) (int, error) {
	if index < 0 || index >= i.Streams(kind) {
		return 0, fmt.Errorf("%s IDE stream %d not implemented", kind, index)
	}
	if kind == LinkStream {
		return i.base + ideLinkBlockStart + index*ideRegBlockLinkStride, nil
	}
	return i.selective[index] + 4, nil
}

// StreamControl reads a stream control register.
func (i *IDE) StreamControl(kind StreamKind, index int) (uint32, error) {
	off, err := i.controlOffset(kind, index)
	if err != nil {
		return 0, err
	}
	return i.cs.ReadU32(off)
}

// UpdateStreamControl read-modify-writes a stream control register.
func (i *IDE) UpdateStreamControl(kind StreamKind, index int, clear, set uint32) error {
	off, err := i.controlOffset(kind, index)
	if err != nil {
		return err
	}
	return Update(i.cs, off, clear, set)
}

// StreamState reads the state field of a stream status register.
func (i *IDE) StreamState(kind StreamKind, index int) (StreamState, error) {
	off, err := i.controlOffset(kind, index)
	if err != nil {
		return 0, err
	}
	v, err := i.cs.ReadU32(off + 4)
	if err != nil {
		return 0, err
	}
	return StreamState(v & 0xf), nil
}

// SetStreamState writes the state field of a stream status register. Real
// hardware owns this field; the emulator uses it to mirror key-set transitions.
func (i *IDE) SetStreamState(kind StreamKind, index int, state StreamState) error {
	off, err := i.controlOffset(kind, index)
	if err != nil {
		return err
	}
	return Update(i.cs, off+4, 0xf, uint32(state))
}

// SetFlowThrough toggles Flow-Through IDE Stream Enable in the IDE Control register.
func (i *IDE) SetFlowThrough(enable bool) error {
	if enable {
		return Update(i.cs, i.base+8, 0, IDECtlFlowThroughEnable)
	}
	return Update(i.cs, i.base+8, IDECtlFlowThroughEnable, 0)
}

// FlowThrough reports Flow-Through IDE Stream Enable.
func (i *IDE) FlowThrough() (bool, error) {
	v, err := i.cs.ReadU32(i.base + 8)
	if err != nil {
		return false, err
	}
	return v&IDECtlFlowThroughEnable != 0, nil
}

// InstallIDE writes an IDE extended capability at offset, chained after any
// capability already at 0x100. Stream counts are encoded into caps.
func InstallIDE(cs ConfigSpace, offset int, caps uint32, linkStreams, selectiveStreams int) error {
	caps &^= 0x7<<13 | 0xff<<16
	if linkStreams > 0 {
		caps |= IDECapLinkStream | uint32(linkStreams-1)<<13
	}
	if selectiveStreams > 0 {
		caps |= IDECapSelectiveStream | uint32(selectiveStreams-1)<<16
	}
	if err := linkExtCap(cs, offset); err != nil {
		return err
	}
	if err := cs.WriteU32(offset, ExtCapHeader(ExtCapIDIDE, 1, 0)); err != nil {
		return err
	}
	if err := cs.WriteU32(offset+4, caps); err != nil {
		return err
	}
	// One address association block per selective stream.
	sel := offset + ideLinkBlockStart + linkStreams*ideRegBlockLinkStride
	for s := 0; s < selectiveStreams; s++ {
		if err := cs.WriteU32(sel, 1); err != nil {
			return err
		}
		sel += ideSelectiveFixedRegs + ideAddrBlockSize
	}
	return nil
}

// linkExtCap appends offset to the end of the extended capability list.
func linkExtCap(cs ConfigSpace, offset int) error {
	if offset == extCapStart {
		return nil
	}
	cur := extCapStart
	for {
		hdr, err := cs.ReadU32(cur)
		if err != nil {
			return err
		}
		if hdr == 0 {
			// Empty list: place a null capability at the head to chain from.
			return cs.WriteU32(cur, ExtCapHeader(0, 1, offset))
		}
		next := int(hdr>>20) & 0xffc
		if next == 0 {
			return cs.WriteU32(cur, hdr|uint32(offset&0xffc)<<20)
		}
		cur = next
	}
}
