package native

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sort"

	"github.com/vbonduro/exifedit/internal/metadata"
)

const (
	tagExifIFD    uint16 = 0x8769
	tagGPSIFD     uint16 = 0x8825
	tagInteropIFD uint16 = 0xA005

	tagThumbOffset uint16 = 0x0201
	tagThumbLength uint16 = 0x0202

	tagMake     uint16 = 0x010F
	tagModel    uint16 = 0x0110
	tagDateTime uint16 = 0x0132

	tagGPSVersionID    uint16 = 0x0000
	tagGPSLatitudeRef  uint16 = 0x0001
	tagGPSLatitude     uint16 = 0x0002
	tagGPSLongitudeRef uint16 = 0x0003
	tagGPSLongitude    uint16 = 0x0004
)

type fieldType uint16

const (
	typeByte      fieldType = 1
	typeASCII     fieldType = 2
	typeShort     fieldType = 3
	typeLong      fieldType = 4
	typeRational  fieldType = 5
	typeSByte     fieldType = 6
	typeUndefined fieldType = 7
	typeSShort    fieldType = 8
	typeSLong     fieldType = 9
	typeSRational fieldType = 10
	typeFloat     fieldType = 11
	typeDouble    fieldType = 12
	typeIFD       fieldType = 13
)

var typeSizes = map[fieldType]uint64{
	typeByte:      1,
	typeASCII:     1,
	typeShort:     2,
	typeLong:      4,
	typeRational:  8,
	typeSByte:     1,
	typeUndefined: 1,
	typeSShort:    2,
	typeSLong:     4,
	typeSRational: 8,
	typeFloat:     4,
	typeDouble:    8,
	typeIFD:       4,
}

// subIFDTags are the pointer tags whose targets are decoded as child
// directories and re-laid out on encode.
var subIFDTags = map[uint16]bool{
	tagExifIFD:    true,
	tagGPSIFD:     true,
	tagInteropIFD: true,
}

const maxIFDDepth = 4

var errTruncated = errors.New("tiff: truncated data")

// entry holds one IFD field. value is kept in the byte order of the tree.
// A non-zero pinned is the offset value must be written back to.
type entry struct {
	tag    uint16
	typ    fieldType
	count  uint32
	value  []byte
	pinned uint32
}

type ifd struct {
	entries   []entry
	children  map[uint16]*ifd
	next      *ifd
	thumbnail []byte
}

func newIFD() *ifd {
	return &ifd{children: make(map[uint16]*ifd)}
}

func (d *ifd) get(tag uint16) (entry, bool) {
	for _, e := range d.entries {
		if e.tag == tag {
			return e, true
		}
	}
	return entry{}, false
}

func (d *ifd) set(e entry) {
	for i := range d.entries {
		if d.entries[i].tag == e.tag {
			d.entries[i] = e
			return
		}
	}
	d.entries = append(d.entries, e)
}

func (d *ifd) remove(tag uint16) {
	out := d.entries[:0]
	for _, e := range d.entries {
		if e.tag != tag {
			out = append(out, e)
		}
	}
	d.entries = out
}

// child returns the sub-directory behind a pointer tag, creating it when
// create is set.
func (d *ifd) child(tag uint16, create bool) *ifd {
	if c, ok := d.children[tag]; ok {
		return c
	}
	if !create {
		return nil
	}
	c := newIFD()
	d.children[tag] = c
	return c
}

// tiffTree is the decoded structure of an EXIF TIFF block.
type tiffTree struct {
	order binary.ByteOrder
	root  *ifd
}

func newTIFF() *tiffTree {
	return &tiffTree{order: binary.BigEndian, root: newIFD()}
}

func asciiEntry(tag uint16, s string) entry {
	v := append([]byte(s), 0)
	return entry{tag: tag, typ: typeASCII, count: uint32(len(v)), value: v}
}

func (t *tiffTree) rationalEntry(tag uint16, rs []metadata.Rational) entry {
	v := make([]byte, 8*len(rs))
	for i, r := range rs {
		t.order.PutUint32(v[8*i:], r.Num)
		t.order.PutUint32(v[8*i+4:], r.Den)
	}
	return entry{tag: tag, typ: typeRational, count: uint32(len(rs)), value: v}
}

func decodeTIFF(data []byte) (*tiffTree, error) {
	if len(data) < 8 {
		return nil, errTruncated
	}
	var order binary.ByteOrder
	switch string(data[:2]) {
	case "II":
		order = binary.LittleEndian
	case "MM":
		order = binary.BigEndian
	default:
		return nil, fmt.Errorf("tiff: invalid byte order %q", data[:2])
	}
	if order.Uint16(data[2:]) != 42 {
		return nil, fmt.Errorf("tiff: bad magic")
	}

	d := &decoder{data: data, order: order, seen: make(map[uint32]bool)}
	root, err := d.ifd(order.Uint32(data[4:]), 0, 0, true)
	if err != nil {
		return nil, err
	}
	return &tiffTree{order: order, root: root}, nil
}

type decoder struct {
	data  []byte
	order binary.ByteOrder
	seen  map[uint32]bool
}

// ifd decodes the directory at off. parent is the pointer tag that led to
// it, or 0 for the main chain.
func (d *decoder) ifd(off uint32, parent uint16, depth int, chain bool) (*ifd, error) {
	if depth > maxIFDDepth {
		return nil, fmt.Errorf("tiff: directories nested too deeply")
	}
	if d.seen[off] {
		return nil, fmt.Errorf("tiff: directory loop at offset %d", off)
	}
	d.seen[off] = true

	size := uint64(len(d.data))
	if uint64(off)+2 > size {
		return nil, errTruncated
	}
	n := uint64(d.order.Uint16(d.data[off:]))
	end := uint64(off) + 2 + 12*n
	if end+4 > size {
		return nil, errTruncated
	}

	dir := newIFD()
	for i := uint64(0); i < n; i++ {
		p := uint64(off) + 2 + 12*i
		raw := d.data[p : p+12]
		tag := d.order.Uint16(raw)
		typ := fieldType(d.order.Uint16(raw[2:]))
		count := d.order.Uint32(raw[4:])

		if subIFDTags[tag] && count == 1 && (typ == typeLong || typ == typeIFD) {
			c, err := d.ifd(d.order.Uint32(raw[8:]), tag, depth+1, false)
			if err != nil {
				return nil, fmt.Errorf("tiff: sub-directory 0x%04x: %w", tag, err)
			}
			dir.children[tag] = c
			continue
		}

		unit, ok := typeSizes[typ]
		if !ok {
			// Unknown types cannot be relocated safely.
			continue
		}
		length := unit * uint64(count)
		var value []byte
		var pinned uint32
		if length <= 4 {
			value = append([]byte(nil), raw[8:8+length]...)
		} else {
			vo := uint64(d.order.Uint32(raw[8:]))
			if vo+length > size {
				return nil, errTruncated
			}
			value = append([]byte(nil), d.data[vo:vo+length]...)
			// MakerNote and other opaque Exif blobs may hold offsets into
			// the TIFF data, so they go back where they were found.
			if parent == tagExifIFD && typ == typeUndefined {
				pinned = uint32(vo)
			}
		}
		dir.entries = append(dir.entries, entry{tag: tag, typ: typ, count: count, value: value, pinned: pinned})
	}

	d.thumbnail(dir)

	if chain {
		if next := d.order.Uint32(d.data[end:]); next != 0 {
			nd, err := d.ifd(next, parent, depth, true)
			if err != nil {
				return nil, fmt.Errorf("tiff: next directory: %w", err)
			}
			dir.next = nd
		}
	}
	return dir, nil
}

// thumbnail pulls the JPEG thumbnail referenced by dir into memory so it
// survives relocation. A dangling reference is dropped.
func (d *decoder) thumbnail(dir *ifd) {
	offE, okOff := dir.get(tagThumbOffset)
	lenE, okLen := dir.get(tagThumbLength)
	if !okOff || !okLen || len(offE.value) != 4 {
		return
	}
	off := uint64(d.order.Uint32(offE.value))
	var length uint64
	switch len(lenE.value) {
	case 2:
		length = uint64(d.order.Uint16(lenE.value))
	case 4:
		length = uint64(d.order.Uint32(lenE.value))
	}
	if length == 0 || off+length > uint64(len(d.data)) {
		dir.remove(tagThumbOffset)
		dir.remove(tagThumbLength)
		return
	}
	dir.thumbnail = append([]byte(nil), d.data[off:off+length]...)
}

func (t *tiffTree) encode() []byte {
	e := &encoder{order: t.order, buf: make([]byte, 8)}
	if t.order == binary.LittleEndian {
		copy(e.buf, "II")
	} else {
		copy(e.buf, "MM")
	}
	t.order.PutUint16(e.buf[2:], 42)
	e.collectPins(t.root)
	t.order.PutUint32(e.buf[4:], e.ifd(t.root))
	e.writePins()
	return e.buf
}

// pin is a value that keeps its offset from the decoded data.
type pin struct {
	start, end uint32
	value      []byte
}

type encoder struct {
	order binary.ByteOrder
	buf   []byte
	pins  []pin
}

// collectPins records every pinned value in the tree. A pin that overlaps
// the header or an earlier pin is released and laid out like any other
// value.
func (e *encoder) collectPins(dir *ifd) {
	for ; dir != nil; dir = dir.next {
		for i := range dir.entries {
			en := &dir.entries[i]
			if en.pinned == 0 {
				continue
			}
			p := pin{start: en.pinned, end: en.pinned + uint32(len(en.value)), value: en.value}
			if p.start < 8 || p.end < p.start || e.overlapsPin(p.start, p.end) >= 0 {
				en.pinned = 0
				continue
			}
			e.pins = append(e.pins, p)
		}
		tags := make([]uint16, 0, len(dir.children))
		for tag := range dir.children {
			tags = append(tags, tag)
		}
		sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
		for _, tag := range tags {
			e.collectPins(dir.children[tag])
		}
	}
}

// overlapsPin returns the index of a pin intersecting [start, end), or -1.
func (e *encoder) overlapsPin(start, end uint32) int {
	for i, p := range e.pins {
		if start < p.end && p.start < end {
			return i
		}
	}
	return -1
}

// writePins copies pinned values into place, growing the buffer when a pin
// lies past the laid out data.
func (e *encoder) writePins() {
	for _, p := range e.pins {
		if int(p.end) > len(e.buf) {
			e.buf = append(e.buf, make([]byte, int(p.end)-len(e.buf))...)
		}
		copy(e.buf[p.start:p.end], p.value)
	}
}

func (e *encoder) align() {
	if len(e.buf)%2 != 0 {
		e.buf = append(e.buf, 0)
	}
}

// reserve aligns the buffer and pads it past any pin the next n bytes
// would overwrite.
func (e *encoder) reserve(n int) {
	for {
		e.align()
		start := uint32(len(e.buf))
		i := e.overlapsPin(start, start+uint32(n))
		if i < 0 {
			return
		}
		e.buf = append(e.buf, make([]byte, int(e.pins[i].end)-len(e.buf))...)
	}
}

func (e *encoder) appendData(v []byte) uint32 {
	e.reserve(len(v))
	off := uint32(len(e.buf))
	e.buf = append(e.buf, v...)
	return off
}

// ifd writes dir, its out-of-line values, its children, its thumbnail and
// then the next directory in the chain. It returns the offset of dir.
func (e *encoder) ifd(dir *ifd) uint32 {
	entries := make([]entry, 0, len(dir.entries)+len(dir.children))
	entries = append(entries, dir.entries...)
	for tag := range dir.children {
		entries = append(entries, entry{tag: tag, typ: typeLong, count: 1, value: make([]byte, 4)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].tag < entries[j].tag })

	size := 2 + 12*len(entries) + 4
	e.reserve(size)
	start := uint32(len(e.buf))
	e.buf = append(e.buf, make([]byte, size)...)
	e.order.PutUint16(e.buf[start:], uint16(len(entries)))

	type pending struct {
		pos   uint32
		child *ifd
	}
	var children []pending
	var thumbPos uint32

	for i, en := range entries {
		pos := start + 2 + uint32(12*i)
		e.order.PutUint16(e.buf[pos:], en.tag)
		e.order.PutUint16(e.buf[pos+2:], uint16(en.typ))
		e.order.PutUint32(e.buf[pos+4:], en.count)

		if c, ok := dir.children[en.tag]; ok {
			children = append(children, pending{pos: pos + 8, child: c})
			continue
		}
		if en.tag == tagThumbOffset && dir.thumbnail != nil {
			thumbPos = pos + 8
			continue
		}
		if len(en.value) <= 4 {
			copy(e.buf[pos+8:pos+12], en.value)
			continue
		}
		if en.pinned != 0 {
			e.order.PutUint32(e.buf[pos+8:], en.pinned)
			continue
		}
		off := e.appendData(en.value)
		e.order.PutUint32(e.buf[pos+8:], off)
	}

	for _, p := range children {
		off := e.ifd(p.child)
		e.order.PutUint32(e.buf[p.pos:], off)
	}
	if thumbPos != 0 {
		off := e.appendData(dir.thumbnail)
		e.order.PutUint32(e.buf[thumbPos:], off)
	}
	if dir.next != nil {
		off := e.ifd(dir.next)
		e.order.PutUint32(e.buf[start+2+uint32(12*len(entries)):], off)
	}
	return start
}
