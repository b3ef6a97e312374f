package node

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"slices"
)

// Page layout (little endian):
//
//	[magic u16][version u8][flags u8][id u32][parent u32][level u16]
//	[blocks u16][dim u16][n u32] entries...
//
// Leaf entry:      [object u64][coords]   coords = d floats for point pages, 2d otherwise
// Directory entry: [child u32][count u64][2d floats]
const (
	pageMagic   uint16 = 0x5854 // "XT"
	pageVersion uint8  = 1

	flagLeaf   uint8 = 1 << 0
	flagPoints uint8 = 1 << 1

	headerSize = 2 + 1 + 1 + 4 + 4 + 2 + 2 + 2 + 4
)

// ErrInvalidPage is returned when a page cannot be decoded.
var ErrInvalidPage = errors.New("invalid page")

// Encode serializes n into its page representation.
func Encode(n *Node) []byte {
	dim := 0
	if len(n.Entries) > 0 {
		dim = n.Entries[0].MBR.Dim()
	}

	var flags uint8
	if n.Leaf {
		flags |= flagLeaf
		if allPoints(n.Entries) {
			flags |= flagPoints
		}
	}

	buf := make([]byte, 0, headerSize+len(n.Entries)*(12+16*dim))
	buf = binary.LittleEndian.AppendUint16(buf, pageMagic)
	buf = append(buf, pageVersion, flags)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(n.ID))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(n.Parent))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(n.Level))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(n.Blocks))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(dim))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(n.Entries)))

	for _, e := range n.Entries {
		if n.Leaf {
			buf = binary.LittleEndian.AppendUint64(buf, e.ObjectID)
			buf = appendFloats(buf, e.MBR.Min)
			if flags&flagPoints == 0 {
				buf = appendFloats(buf, e.MBR.Max)
			}
			continue
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Child))
		buf = binary.LittleEndian.AppendUint64(buf, e.Count)
		buf = appendFloats(buf, e.MBR.Min)
		buf = appendFloats(buf, e.MBR.Max)
	}
	return buf
}

// Decode parses a page produced by Encode.
func Decode(b []byte) (*Node, error) {
	if len(b) < headerSize {
		return nil, fmt.Errorf("%w: short header (%d bytes)", ErrInvalidPage, len(b))
	}
	if m := binary.LittleEndian.Uint16(b); m != pageMagic {
		return nil, fmt.Errorf("%w: bad magic %#x", ErrInvalidPage, m)
	}
	if v := b[2]; v != pageVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidPage, v)
	}
	flags := b[3]
	n := &Node{
		ID:     PageID(binary.LittleEndian.Uint32(b[4:])),
		Parent: PageID(binary.LittleEndian.Uint32(b[8:])),
		Level:  int(binary.LittleEndian.Uint16(b[12:])),
		Blocks: int(binary.LittleEndian.Uint16(b[14:])),
		Leaf:   flags&flagLeaf != 0,
	}
	dim := int(binary.LittleEndian.Uint16(b[16:]))
	count := int(binary.LittleEndian.Uint32(b[18:]))
	points := flags&flagPoints != 0

	entrySize := 12 + 16*dim
	if n.Leaf {
		entrySize = 8 + 16*dim
		if points {
			entrySize = 8 + 8*dim
		}
	}
	body := b[headerSize:]
	if len(body) != count*entrySize {
		return nil, fmt.Errorf("%w: expected %d entry bytes, got %d", ErrInvalidPage, count*entrySize, len(body))
	}

	n.Entries = make([]Entry, count)
	for i := range n.Entries {
		e := &n.Entries[i]
		if n.Leaf {
			e.ObjectID = binary.LittleEndian.Uint64(body)
			e.Child = NoPage
			e.Count = 1
			body = body[8:]
			e.MBR.Min, body = readFloats(body, dim)
			if points {
				e.MBR.Max = append([]float64(nil), e.MBR.Min...)
			} else {
				e.MBR.Max, body = readFloats(body, dim)
			}
			continue
		}
		e.Child = PageID(binary.LittleEndian.Uint32(body))
		e.Count = binary.LittleEndian.Uint64(body[4:])
		body = body[12:]
		e.MBR.Min, body = readFloats(body, dim)
		e.MBR.Max, body = readFloats(body, dim)
	}
	return n, nil
}

func allPoints(entries []Entry) bool {
	for i := range entries {
		if !slices.Equal(entries[i].MBR.Min, entries[i].MBR.Max) {
			return false
		}
	}
	return true
}

func appendFloats(buf []byte, vs []float64) []byte {
	for _, v := range vs {
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return buf
}

func readFloats(b []byte, n int) ([]float64, []byte) {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[8*i:]))
	}
	return out, b[8*n:]
}
