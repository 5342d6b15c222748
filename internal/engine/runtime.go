// Package engine owns the runtime lifecycle, model sessions and the error
// taxonomy shared by every outer surface.
package engine

import (
	"strings"
	"sync"

	"github.com/gpunexus/gpuf/internal/backend"
	"github.com/gpunexus/gpuf/internal/logger"
	"github.com/gpunexus/gpuf/internal/version"
)

// Options configures a Runtime.
type Options struct {
	// Backend is "auto" (default), "cpu", "accel" or a registered name.
	Backend string
	Logger  logger.Logger
}

// Runtime is the process-level engine state. It is created uninitialized;
// Init selects and prepares the compute device exactly once.
type Runtime struct {
	opts Options
	log  logger.Logger

	mu          sync.Mutex
	initialized bool
	device      backend.Device
}

func NewRuntime(opts Options) *Runtime {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}
	return &Runtime{opts: opts, log: log.With("component", "runtime")}
}

// Init prepares the backend. Calling it again after a success is a no-op
// that returns nil. A failed Init leaves the runtime uninitialized, so it
// may be retried.
func (r *Runtime) Init() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.initialized {
		r.log.Debug("runtime already initialized")
		return nil
	}

	dev, skipped, err := backend.Open(r.opts.Backend)
	for _, e := range skipped {
		r.log.Warn("accelerator unavailable", "error", e)
	}
	if err != nil {
		return newError(BackendFailure, "init", err)
	}

	r.device = dev
	r.initialized = true
	r.log.Info("runtime initialized",
		"backend", dev.Name(),
		"accelerated", dev.Accelerated(),
		"cpu_features", strings.Join(backend.CPUFeatures(), ","),
		"version", version.String(),
	)
	return nil
}

func (r *Runtime) Initialized() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.initialized
}

// Device returns the selected device, or nil before Init.
func (r *Runtime) Device() backend.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.device
}

// Version is the constant build identifier. It works before Init.
func (r *Runtime) Version() string {
	return Version()
}

func Version() string {
	return version.String()
}

func (r *Runtime) Logger() logger.Logger { return r.log }
