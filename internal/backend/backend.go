package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gpunexus/gpuf/internal/tensor"
)

const (
	CPU  = "cpu"
	Auto = "auto"
	// Accel requires some registered accelerator.
	Accel = "accel"
)

var ErrUnavailable = errors.New("backend unavailable")

// Device is one compute execution context. Model layers run their matrix
// products through the device they were assigned to.
type Device interface {
	Name() string
	// Accelerated reports whether layers may be offloaded to this device.
	Accelerated() bool
	MatVec(dst []float32, w *tensor.Mat, x []float32) error
	Close() error
}

// Factory initializes a device. It is called once per Open.
type Factory func() (Device, error)

func Normalize(name string) (string, error) {
	backend := strings.ToLower(strings.TrimSpace(name))
	if backend == "" {
		return Auto, nil
	}
	if backend == CPU || backend == Auto || backend == Accel || Has(backend) {
		return backend, nil
	}
	return "", fmt.Errorf("unknown backend %q (expected one of %s)", backend, Available()+","+Auto+","+Accel)
}

// OffloadLayers returns how many of total layers run on dev when the caller
// requested the given number. Requests above total are clamped; a device
// without acceleration never takes layers.
func OffloadLayers(dev Device, requested uint32, total int) int {
	if dev == nil || !dev.Accelerated() || total <= 0 {
		return 0
	}
	return int(min(uint64(requested), uint64(total)))
}
