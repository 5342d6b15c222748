package modelstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/gpunexus/gpuf/pkg/gmf"
)

var ErrTensorNotFound = errors.New("modelstore: tensor not found")

// File is an opened model container with its parsed metadata.
type File struct {
	file     *gmf.File
	index    *gmf.TensorIndex
	dataSect gmf.Section
	info     gmf.ModelInfo
	vocab    gmf.Vocab
}

type TensorInfo struct {
	DType gmf.DType
	Shape []int
}

// Open opens path and parses the model info, vocabulary and tensor index.
// Filesystem errors are returned unwrapped so callers can test them with
// errors.Is(err, fs.ErrNotExist).
func Open(path string) (*File, error) {
	gf, err := gmf.Open(path)
	if err != nil {
		return nil, err
	}
	cleanup := func(err error) (*File, error) {
		_ = gf.Close()
		return nil, err
	}

	infoData, err := gf.SectionData(gmf.SectionModelInfo)
	if err != nil {
		return cleanup(err)
	}
	info, err := gmf.ParseModelInfo(infoData)
	if err != nil {
		return cleanup(err)
	}

	vocabData, err := gf.SectionData(gmf.SectionVocab)
	if err != nil {
		return cleanup(err)
	}
	vocab, err := gmf.ParseVocab(vocabData)
	if err != nil {
		return cleanup(err)
	}

	indexData, err := gf.SectionData(gmf.SectionTensorIndex)
	if err != nil {
		return cleanup(err)
	}
	index, err := gmf.ParseTensorIndex(indexData)
	if err != nil {
		return cleanup(err)
	}

	dataSect, ok := gf.Section(gmf.SectionTensorData)
	if !ok {
		return cleanup(fmt.Errorf("%w: %s", gmf.ErrMissingSection, gmf.SectionTensorData))
	}

	return &File{
		file:     gf,
		index:    index,
		dataSect: dataSect,
		info:     info,
		vocab:    vocab,
	}, nil
}

func (f *File) Close() error {
	if f == nil || f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	f.index = nil
	return err
}

func (f *File) Info() gmf.ModelInfo { return f.info }

func (f *File) Vocab() gmf.Vocab { return f.vocab }

// Mapped reports whether tensor data is served from a file mapping.
func (f *File) Mapped() bool { return f.file.Mapped() }

// Tensors lists every tensor entry in index order.
func (f *File) Tensors() []gmf.TensorEntry {
	if f == nil || f.index == nil {
		return nil
	}
	return f.index.Entries
}

func (f *File) Tensor(name string) (TensorInfo, error) {
	e, ok := f.index.Find(name)
	if !ok {
		return TensorInfo{}, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	shape := make([]int, len(e.Shape))
	for i, d := range e.Shape {
		if d == 0 || d > uint64(math.MaxInt32) {
			return TensorInfo{}, fmt.Errorf("%w: tensor %s has invalid dim %d", gmf.ErrCorruptFile, name, d)
		}
		shape[i] = int(d)
	}
	return TensorInfo{DType: e.DType, Shape: shape}, nil
}

// ReadTensorF32 decodes the named tensor into a fresh float32 slice.
func (f *File) ReadTensorF32(name string) ([]float32, TensorInfo, error) {
	if f == nil || f.file == nil {
		return nil, TensorInfo{}, errors.New("modelstore: file closed")
	}
	info, err := f.Tensor(name)
	if err != nil {
		return nil, TensorInfo{}, err
	}
	e, _ := f.index.Find(name)
	n, err := e.Elements()
	if err != nil {
		return nil, TensorInfo{}, fmt.Errorf("%w: %v", gmf.ErrCorruptFile, err)
	}
	if elem := e.DType.ElemSize(); elem == 0 {
		return nil, TensorInfo{}, fmt.Errorf("%w: tensor %s has unsupported dtype %s", gmf.ErrCorruptFile, name, e.DType)
	} else if n*uint64(elem) != e.Size {
		return nil, TensorInfo{}, fmt.Errorf("%w: tensor %s size %d does not match shape", gmf.ErrCorruptFile, name, e.Size)
	}
	raw, err := f.tensorBytes(e)
	if err != nil {
		return nil, TensorInfo{}, fmt.Errorf("tensor %s: %w", name, err)
	}

	out := make([]float32, n)
	switch e.DType {
	case gmf.DTypeF32:
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		}
	case gmf.DTypeF16:
		for i := range out {
			out[i] = fp16ToF32(binary.LittleEndian.Uint16(raw[i*2:]))
		}
	}
	return out, info, nil
}

func (f *File) tensorBytes(e gmf.TensorEntry) ([]byte, error) {
	end := e.Offset + e.Size
	if end < e.Offset || end > f.dataSect.Size {
		return nil, fmt.Errorf("%w: tensor data out of bounds", gmf.ErrCorruptFile)
	}
	start := f.dataSect.Offset + e.Offset
	return f.file.Data[start : start+e.Size], nil
}

func fp16ToF32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h) & 0x3ff

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal: renormalise
		for frac&0x400 == 0 {
			frac <<= 1
			exp--
		}
		exp++
		frac &= 0x3ff
	case 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | frac<<13)
	}
	return math.Float32frombits(sign | (exp+112)<<23 | frac<<13)
}
