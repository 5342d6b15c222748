package gmf

import (
	"errors"
	"io"
	"os"
	"sort"
	"sync"
)

// Writer builds a GMF file section by section.
//
// The header is reserved up-front and patched during Finalise.
type Writer struct {
	f        *os.File
	sections []Section
	seen     map[SectionType]struct{}
	closed   bool
	flags    uint64

	mu sync.Mutex
}

// NewWriter truncates f and reserves space for the header.
func NewWriter(f *os.File) (*Writer, error) {
	if f == nil {
		return nil, errors.New("gmf: nil file")
	}
	if err := f.Truncate(0); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	w := &Writer{f: f, seen: make(map[SectionType]struct{})}
	if err := w.pad(headerSize); err != nil {
		return nil, err
	}
	return w, nil
}

// WriteSection writes a section payload. Each section type may be written once.
func (w *Writer) WriteSection(typ SectionType, version uint32, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("gmf: writer already finalised")
	}
	if _, ok := w.seen[typ]; ok {
		return errors.New("gmf: duplicate section type")
	}
	if err := w.alignTo(Align); err != nil {
		return err
	}
	off, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if err := writeFull(w.f, data); err != nil {
		return err
	}
	w.sections = append(w.sections, Section{
		Type:    typ,
		Version: version,
		Offset:  uint64(off),
		Size:    uint64(len(data)),
	})
	w.seen[typ] = struct{}{}
	return nil
}

// Finalise writes the section directory and patches the header.
// After Finalise the writer must not be used again.
func (w *Writer) Finalise() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errors.New("gmf: writer already finalised")
	}
	if len(w.sections) == 0 {
		return errors.New("gmf: no sections written")
	}
	w.closed = true

	sort.Slice(w.sections, func(i, j int) bool {
		return w.sections[i].Type < w.sections[j].Type
	})

	if err := w.alignTo(Align); err != nil {
		return err
	}
	dirOff, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	for _, s := range w.sections {
		if err := writeFull(w.f, encodeSection(s)); err != nil {
			return err
		}
	}
	end, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}

	hdr := Header{
		Major:            CurrentMajor,
		Minor:            CurrentMinor,
		HeaderSize:       headerSize,
		SectionCount:     uint32(len(w.sections)),
		SectionDirOffset: uint64(dirOff),
		FileSize:         uint64(end),
		Flags:            w.flags,
	}
	copy(hdr.Magic[:], Magic)
	if _, err := w.f.WriteAt(encodeHeader(hdr), 0); err != nil {
		return err
	}
	return w.f.Sync()
}

func (w *Writer) alignTo(n uint64) error {
	pos, err := w.f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	return w.pad(int(alignUp(uint64(pos), n) - uint64(pos)))
}

func (w *Writer) pad(n int) error {
	if n <= 0 {
		return nil
	}
	return writeFull(w.f, make([]byte, n))
}

func writeFull(f *os.File, p []byte) error {
	for len(p) > 0 {
		n, err := f.Write(p)
		if err != nil {
			return err
		}
		p = p[n:]
	}
	return nil
}
