package native

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	markerStart = 0xFF
	markerSOI   = 0xD8
	markerEOI   = 0xD9
	markerSOS   = 0xDA
	markerAPP0  = 0xE0
	markerAPP1  = 0xE1
	markerTEM   = 0x01
	markerRST0  = 0xD0
	markerRST7  = 0xD7
)

const maxSegmentPayload = 0xFFFF - 2

var exifHeader = []byte("Exif\x00\x00")

// segment is a marker segment in the JPEG header. start points at the 0xFF
// of the marker and end is exclusive.
type segment struct {
	marker byte
	start  int
	end    int
}

func (s segment) payload(data []byte) []byte {
	return data[s.start+4 : s.end]
}

func isJPEG(data []byte) bool {
	return len(data) >= 4 && data[0] == markerStart && data[1] == markerSOI
}

// scanSegments lists the header segments that precede the first SOS or EOI.
func scanSegments(data []byte) ([]segment, error) {
	if !isJPEG(data) {
		return nil, errors.New("jpeg: missing SOI")
	}
	var segs []segment
	pos := 2
	for pos < len(data) {
		if data[pos] != markerStart {
			return nil, fmt.Errorf("jpeg: expected marker at offset %d", pos)
		}
		for pos < len(data) && data[pos] == markerStart {
			pos++
		}
		if pos >= len(data) {
			break
		}
		marker := data[pos]
		pos++
		if marker == markerSOS || marker == markerEOI {
			return segs, nil
		}
		if marker == markerTEM || (marker >= markerRST0 && marker <= markerRST7) {
			continue
		}
		if pos+2 > len(data) {
			return nil, errors.New("jpeg: truncated marker")
		}
		segLen := int(binary.BigEndian.Uint16(data[pos:]))
		if segLen < 2 || pos+segLen > len(data) {
			return nil, errors.New("jpeg: invalid segment length")
		}
		// Fill bytes before the marker are left outside the segment.
		segs = append(segs, segment{marker: marker, start: pos - 2, end: pos + segLen})
		pos += segLen
	}
	return nil, errors.New("jpeg: no scan data")
}

// findExif returns the first APP1 segment that carries an Exif block.
func findExif(data []byte, segs []segment) (segment, bool) {
	for _, s := range segs {
		if s.marker == markerAPP1 && bytes.HasPrefix(s.payload(data), exifHeader) {
			return s, true
		}
	}
	return segment{}, false
}

func writeAppSegment(out *bytes.Buffer, marker byte, payload []byte) {
	out.WriteByte(markerStart)
	out.WriteByte(marker)
	var l [2]byte
	binary.BigEndian.PutUint16(l[:], uint16(len(payload)+2))
	out.Write(l[:])
	out.Write(payload)
}

// spliceExif returns data with its Exif segment replaced by tiff. Without an
// existing segment a new one is placed after SOI, or after a leading JFIF
// APP0 segment.
func spliceExif(data []byte, segs []segment, tiff []byte) ([]byte, error) {
	payload := make([]byte, 0, len(exifHeader)+len(tiff))
	payload = append(payload, exifHeader...)
	payload = append(payload, tiff...)
	if len(payload) > maxSegmentPayload {
		return nil, fmt.Errorf("jpeg: exif block of %d bytes exceeds segment limit", len(payload))
	}

	from, to := 2, 2
	if s, ok := findExif(data, segs); ok {
		from, to = s.start, s.end
	} else if len(segs) > 0 && segs[0].marker == markerAPP0 {
		from, to = segs[0].end, segs[0].end
	}

	var out bytes.Buffer
	out.Grow(len(data) - (to - from) + len(payload) + 4)
	out.Write(data[:from])
	writeAppSegment(&out, markerAPP1, payload)
	out.Write(data[to:])
	return out.Bytes(), nil
}
