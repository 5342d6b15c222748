package bridge

import (
	"runtime"
	"strings"

	"github.com/goccy/go-json"

	"github.com/gpunexus/gpuf/internal/backend"
	"github.com/gpunexus/gpuf/internal/config"
	"github.com/gpunexus/gpuf/internal/engine"
	"github.com/gpunexus/gpuf/internal/version"
)

// Host states reported by Status.
const (
	StateUninitialized = "uninitialized"
	StateIdle          = "idle"
	StateReady         = "ready"
)

// SystemInfo describes the build and the machine the library runs on.
type SystemInfo struct {
	Version     string   `json:"version"`
	Commit      string   `json:"commit,omitempty"`
	BuildTime   string   `json:"build_time,omitempty"`
	GoVersion   string   `json:"go_version"`
	OS          string   `json:"os"`
	Arch        string   `json:"arch"`
	NumCPU      int      `json:"num_cpu"`
	Backends    []string `json:"backends"`
	CPUFeatures []string `json:"cpu_features"`
	Backend     string   `json:"backend,omitempty"`
	Device      string   `json:"device,omitempty"`
}

// Status is a snapshot of the host: its state, the active session and any
// pending error.
type Status struct {
	State     string              `json:"state"`
	Session   *engine.SessionInfo `json:"session,omitempty"`
	LastError string              `json:"last_error,omitempty"`
}

// SystemInfo works before Init. Device is set once the runtime has picked one.
func (h *Host) SystemInfo() SystemInfo {
	v := version.Resolve()
	info := SystemInfo{
		Version:     v.Version,
		Commit:      v.Commit,
		BuildTime:   v.BuildTime,
		GoVersion:   runtime.Version(),
		OS:          runtime.GOOS,
		Arch:        runtime.GOARCH,
		NumCPU:      runtime.NumCPU(),
		Backends:    strings.Split(backend.Available(), ","),
		CPUFeatures: backend.CPUFeatures(),
		Backend:     h.opts.Backend,
	}
	if info.CPUFeatures == nil {
		info.CPUFeatures = []string{}
	}
	if dev := h.rt.Device(); dev != nil {
		info.Device = dev.Name()
	}
	return info
}

// Status never fails and does not touch the last-error slot.
func (h *Host) Status() Status {
	st := Status{State: StateUninitialized, LastError: h.slot.Get()}
	if !h.rt.Initialized() {
		return st
	}
	st.State = StateIdle
	if sess := h.Session(); sess != nil {
		info := sess.Info()
		st.State = StateReady
		st.Session = &info
	}
	return st
}

// SystemInfoJSON and StatusJSON are the string forms handed across the C
// boundary.
func (h *Host) SystemInfoJSON() string { return marshal(h.SystemInfo()) }

func (h *Host) StatusJSON() string { return marshal(h.Status()) }

// SetModel swaps in the model at path, keeping the context size and GPU
// layers of the active session. Without one the host defaults apply. The
// previous session keeps serving if the new model fails to load.
func (h *Host) SetModel(path string) int32 {
	opts := engine.SessionOptions{
		ContextSize: h.opts.ContextSize,
		GPULayers:   h.opts.GPULayers,
	}
	if opts.ContextSize == 0 {
		opts.ContextSize = config.DefaultContextSize
	}
	if sess := h.Session(); sess != nil {
		info := sess.Info()
		opts.ContextSize = info.ContextSize
		opts.GPULayers = info.GPULayers
	}
	_, err := h.Load(path, opts)
	return engine.StatusOf(err)
}

// Cleanup releases the active session. Calling it with nothing loaded
// succeeds.
func (h *Host) Cleanup() int32 {
	err := h.Close()
	if err != nil {
		err = &engine.Error{Kind: engine.BackendFailure, Op: "cleanup", Err: err}
	}
	return h.record(err)
}

func marshal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}
