// Package gmf implements the gpuf Model File container.
//
// A GMF file is a single, memory-mappable container holding a decoder model:
// a JSON model description, a JSON vocabulary, a JSON tensor index and one raw
// little-endian tensor payload. It describes structure and data only and never
// implies runtime behaviour.
package gmf

// GMF global constants must never change.
const (
	// Magic is the file magic for all GMF containers, encoded as "GMF\0".
	Magic = "GMF\x00"

	// CurrentMajor changes only on breaking format changes.
	CurrentMajor uint16 = 1

	// CurrentMinor may grow when optional sections are added.
	CurrentMinor uint16 = 0

	// Align is the byte alignment applied to every section start.
	Align = 64
)

const (
	headerSize  = 40
	sectionSize = 24
)

type SectionType uint32

const (
	SectionModelInfo   SectionType = 0x0001
	SectionVocab       SectionType = 0x0002
	SectionTensorIndex SectionType = 0x0003
	SectionTensorData  SectionType = 0x0004
)

func (t SectionType) String() string {
	switch t {
	case SectionModelInfo:
		return "model_info"
	case SectionVocab:
		return "vocab"
	case SectionTensorIndex:
		return "tensor_index"
	case SectionTensorData:
		return "tensor_data"
	default:
		return "unknown"
	}
}

// Header is the fixed-size file header.
type Header struct {
	Magic            [4]byte
	Major            uint16
	Minor            uint16
	HeaderSize       uint32
	SectionCount     uint32
	SectionDirOffset uint64
	FileSize         uint64
	Flags            uint64
}

func (h *Header) Valid() bool {
	return string(h.Magic[:]) == Magic && h.HeaderSize >= headerSize && h.SectionCount > 0
}

func (h *Header) Compatible() bool {
	return h.Major == CurrentMajor
}

// Section is one entry of the section directory.
type Section struct {
	Type    SectionType
	Version uint32
	Offset  uint64
	Size    uint64
}

func (s Section) End() uint64 {
	return s.Offset + s.Size
}
