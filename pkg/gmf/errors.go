package gmf

import "errors"

var (
	ErrInvalidMagic     = errors.New("gmf: invalid magic")
	ErrUnsupportedMajor = errors.New("gmf: unsupported major version")
	ErrCorruptFile      = errors.New("gmf: corrupt file")
	ErrMissingSection   = errors.New("gmf: missing section")
)
