package gmf

import "encoding/binary"

func encodeHeader(h Header) []byte {
	b := make([]byte, headerSize)
	copy(b[0:4], h.Magic[:])
	binary.LittleEndian.PutUint16(b[4:], h.Major)
	binary.LittleEndian.PutUint16(b[6:], h.Minor)
	binary.LittleEndian.PutUint32(b[8:], h.HeaderSize)
	binary.LittleEndian.PutUint32(b[12:], h.SectionCount)
	binary.LittleEndian.PutUint64(b[16:], h.SectionDirOffset)
	binary.LittleEndian.PutUint64(b[24:], h.FileSize)
	binary.LittleEndian.PutUint64(b[32:], h.Flags)
	return b
}

func decodeHeader(b []byte) (Header, bool) {
	if len(b) < headerSize {
		return Header{}, false
	}
	var h Header
	copy(h.Magic[:], b[0:4])
	h.Major = binary.LittleEndian.Uint16(b[4:])
	h.Minor = binary.LittleEndian.Uint16(b[6:])
	h.HeaderSize = binary.LittleEndian.Uint32(b[8:])
	h.SectionCount = binary.LittleEndian.Uint32(b[12:])
	h.SectionDirOffset = binary.LittleEndian.Uint64(b[16:])
	h.FileSize = binary.LittleEndian.Uint64(b[24:])
	h.Flags = binary.LittleEndian.Uint64(b[32:])
	return h, true
}

func encodeSection(s Section) []byte {
	b := make([]byte, sectionSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(s.Type))
	binary.LittleEndian.PutUint32(b[4:], s.Version)
	binary.LittleEndian.PutUint64(b[8:], s.Offset)
	binary.LittleEndian.PutUint64(b[16:], s.Size)
	return b
}

func decodeSection(b []byte) (Section, bool) {
	if len(b) < sectionSize {
		return Section{}, false
	}
	return Section{
		Type:    SectionType(binary.LittleEndian.Uint32(b[0:])),
		Version: binary.LittleEndian.Uint32(b[4:]),
		Offset:  binary.LittleEndian.Uint64(b[8:]),
		Size:    binary.LittleEndian.Uint64(b[16:]),
	}, true
}

func rangesOverlap(a0, a1, b0, b1 uint64) bool {
	// half-open ranges [a0,a1) and [b0,b1)
	return a0 < b1 && b0 < a1
}

func alignUp(n, a uint64) uint64 {
	if r := n % a; r != 0 {
		return n + a - r
	}
	return n
}
