package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/gpunexus/gpuf/internal/backend"
	"github.com/gpunexus/gpuf/internal/inference"
	"github.com/gpunexus/gpuf/internal/kvcache"
	"github.com/gpunexus/gpuf/internal/model"
	"github.com/gpunexus/gpuf/internal/modelstore"
	"github.com/gpunexus/gpuf/internal/tokenizer"
	"github.com/gpunexus/gpuf/pkg/gmf"
)

// Kind classifies engine failures. Every Kind maps to one boundary status.
type Kind int

const (
	KindUnknown Kind = iota
	NotInitialized
	InvalidInput
	FileNotFound
	InvalidFormat
	ResourceExhaustion
	BackendFailure
	Aborted
)

// Status codes returned across the C boundary.
const (
	StatusOK             int32 = 0
	StatusNotInitialized int32 = -1
	StatusInvalidInput   int32 = -2
	StatusFileNotFound   int32 = -3
	StatusInvalidFormat  int32 = -4
	StatusOutOfMemory    int32 = -5
	StatusBackendFailure int32 = -6
	StatusAborted        int32 = -7
)

func (k Kind) String() string {
	switch k {
	case NotInitialized:
		return "NotInitialized"
	case InvalidInput:
		return "InvalidInput"
	case FileNotFound:
		return "FileNotFound"
	case InvalidFormat:
		return "InvalidFormat"
	case ResourceExhaustion:
		return "ResourceExhaustion"
	case BackendFailure:
		return "BackendFailure"
	case Aborted:
		return "Aborted"
	default:
		return "Unknown"
	}
}

// Status maps k to its boundary status code. Unknown kinds report as
// backend failures.
func (k Kind) Status() int32 {
	switch k {
	case NotInitialized:
		return StatusNotInitialized
	case InvalidInput:
		return StatusInvalidInput
	case FileNotFound:
		return StatusFileNotFound
	case InvalidFormat:
		return StatusInvalidFormat
	case ResourceExhaustion:
		return StatusOutOfMemory
	case Aborted:
		return StatusAborted
	default:
		return StatusBackendFailure
	}
}

// StatusName is the symbolic name of a status code.
func StatusName(code int32) string {
	switch code {
	case StatusOK:
		return "OK"
	case StatusNotInitialized:
		return "NOT_INITIALIZED"
	case StatusInvalidInput:
		return "INVALID_INPUT"
	case StatusFileNotFound:
		return "FILE_NOT_FOUND"
	case StatusInvalidFormat:
		return "INVALID_FORMAT"
	case StatusOutOfMemory:
		return "OUT_OF_MEMORY"
	case StatusBackendFailure:
		return "BACKEND_FAILURE"
	case StatusAborted:
		return "ABORTED"
	default:
		return fmt.Sprintf("STATUS(%d)", code)
	}
}

// ErrNotInitialized is returned by operations on a runtime before Init.
var ErrNotInitialized = errors.New("runtime not initialized")

// Error is the error type returned by every exported engine operation.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or a Kind
// inferred from well-known package errors.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return classify(err)
}

// StatusOf maps err to a boundary status; nil is StatusOK.
func StatusOf(err error) int32 {
	if err == nil {
		return StatusOK
	}
	return KindOf(err).Status()
}

func classify(err error) Kind {
	switch {
	case errors.Is(err, ErrNotInitialized):
		return NotInitialized
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return Aborted
	case errors.Is(err, fs.ErrNotExist):
		return FileNotFound
	case errors.Is(err, fs.ErrPermission):
		return InvalidInput
	case errors.Is(err, gmf.ErrInvalidMagic),
		errors.Is(err, gmf.ErrUnsupportedMajor),
		errors.Is(err, gmf.ErrCorruptFile),
		errors.Is(err, gmf.ErrMissingSection),
		errors.Is(err, modelstore.ErrTensorNotFound),
		errors.Is(err, model.ErrInvalidModel):
		return InvalidFormat
	case errors.Is(err, inference.ErrPromptTooLong),
		errors.Is(err, kvcache.ErrContextFull):
		return ResourceExhaustion
	case errors.Is(err, inference.ErrEncode), errors.Is(err, tokenizer.ErrUnknownByte):
		return InvalidInput
	case errors.Is(err, inference.ErrForward):
		return Aborted
	case errors.Is(err, backend.ErrUnavailable):
		return BackendFailure
	default:
		return KindUnknown
	}
}
