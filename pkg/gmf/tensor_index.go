package gmf

import (
	"fmt"

	"github.com/goccy/go-json"
)

type DType uint8

const (
	DTypeF32 DType = 0
	DTypeF16 DType = 1
)

// ElemSize returns the byte width of one element, or 0 for unknown types.
func (d DType) ElemSize() int {
	switch d {
	case DTypeF32:
		return 4
	case DTypeF16:
		return 2
	default:
		return 0
	}
}

func (d DType) String() string {
	switch d {
	case DTypeF32:
		return "f32"
	case DTypeF16:
		return "f16"
	default:
		return fmt.Sprintf("dtype(%d)", uint8(d))
	}
}

// TensorEntry describes one tensor. Offset is relative to the start of the
// tensor data section.
type TensorEntry struct {
	Name   string   `json:"name"`
	DType  DType    `json:"dtype"`
	Shape  []uint64 `json:"shape"`
	Offset uint64   `json:"offset"`
	Size   uint64   `json:"size"`
}

// Elements returns the product of the shape dimensions.
func (e TensorEntry) Elements() (uint64, error) {
	if len(e.Shape) == 0 {
		return 0, fmt.Errorf("tensor %s: empty shape", e.Name)
	}
	n := uint64(1)
	for _, d := range e.Shape {
		if d == 0 {
			return 0, fmt.Errorf("tensor %s: zero dimension", e.Name)
		}
		if n > ^uint64(0)/d {
			return 0, fmt.Errorf("tensor %s: shape overflows", e.Name)
		}
		n *= d
	}
	return n, nil
}

type TensorIndex struct {
	Entries []TensorEntry
	byName  map[string]int
}

func ParseTensorIndex(b []byte) (*TensorIndex, error) {
	var entries []TensorEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("%w: tensor index: %v", ErrCorruptFile, err)
	}
	ix := &TensorIndex{Entries: entries, byName: make(map[string]int, len(entries))}
	for i, e := range entries {
		if _, dup := ix.byName[e.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate tensor %q", ErrCorruptFile, e.Name)
		}
		ix.byName[e.Name] = i
	}
	return ix, nil
}

func (ix *TensorIndex) Find(name string) (TensorEntry, bool) {
	if ix == nil {
		return TensorEntry{}, false
	}
	i, ok := ix.byName[name]
	if !ok {
		return TensorEntry{}, false
	}
	return ix.Entries[i], true
}

// TensorPack accumulates tensors into an index and an aligned data blob.
type TensorPack struct {
	entries []TensorEntry
	data    []byte
}

// Add appends a tensor whose raw little-endian payload is raw.
func (p *TensorPack) Add(name string, dtype DType, shape []uint64, raw []byte) error {
	e := TensorEntry{Name: name, DType: dtype, Shape: append([]uint64(nil), shape...)}
	n, err := e.Elements()
	if err != nil {
		return err
	}
	if want := n * uint64(dtype.ElemSize()); want == 0 || want != uint64(len(raw)) {
		return fmt.Errorf("tensor %s: payload is %d bytes, want %d", name, len(raw), want)
	}
	off := alignUp(uint64(len(p.data)), Align)
	if pad := int(off) - len(p.data); pad > 0 {
		p.data = append(p.data, make([]byte, pad)...)
	}
	e.Offset = off
	e.Size = uint64(len(raw))
	p.data = append(p.data, raw...)
	p.entries = append(p.entries, e)
	return nil
}

// WriteTo writes the index and data sections into w.
func (p *TensorPack) WriteTo(w *Writer) error {
	idx, err := json.Marshal(p.entries)
	if err != nil {
		return err
	}
	if err := w.WriteSection(SectionTensorIndex, 1, idx); err != nil {
		return err
	}
	return w.WriteSection(SectionTensorData, 1, p.data)
}
