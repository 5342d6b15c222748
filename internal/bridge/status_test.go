package bridge

import (
	"slices"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/gpunexus/gpuf/internal/backend"
	"github.com/gpunexus/gpuf/internal/engine"
)

func TestSystemInfo(t *testing.T) {
	t.Parallel()

	h := newHost(t)
	info := h.SystemInfo()
	if info.Device != "" {
		t.Fatalf("device before init = %q", info.Device)
	}
	if !slices.Contains(info.Backends, backend.CPU) {
		t.Fatalf("backends = %v", info.Backends)
	}
	if !strings.HasPrefix(h.Version(), "gpuf "+info.Version) {
		t.Fatalf("version %q does not match %q", info.Version, h.Version())
	}

	h.Init()
	var decoded SystemInfo
	if err := json.Unmarshal([]byte(h.SystemInfoJSON()), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Device == "" || decoded.CPUFeatures == nil {
		t.Fatalf("system info after init = %+v", decoded)
	}
}

func TestStatusLifecycle(t *testing.T) {
	t.Parallel()

	h := newHost(t)
	if st := h.Status(); st.State != StateUninitialized || st.Session != nil {
		t.Fatalf("status before init = %+v", st)
	}
	h.Init()
	if st := h.Status(); st.State != StateIdle {
		t.Fatalf("status after init = %+v", st)
	}

	path := synthModel(t)
	if got := h.LLMInit(path, 128, 0); got != engine.StatusOK {
		t.Fatalf("llm_init = %d (%s)", got, h.LastError())
	}
	var st Status
	if err := json.Unmarshal([]byte(h.StatusJSON()), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.State != StateReady || st.Session == nil || st.Session.ModelPath != path {
		t.Fatalf("status with model = %+v", st)
	}

	h.LLMInit("missing.gmf", 128, 0)
	if st := h.Status(); st.State != StateReady || !strings.Contains(st.LastError, "missing.gmf") {
		t.Fatalf("status after failed load = %+v", st)
	}
}

func TestSetModelKeepsSessionSettings(t *testing.T) {
	t.Parallel()

	h := newHost(t)
	h.Init()
	if got := h.LLMInit(synthModel(t), 96, 0); got != engine.StatusOK {
		t.Fatalf("llm_init = %d (%s)", got, h.LastError())
	}
	first := h.Session().Info()

	next := synthModel(t)
	if got := h.SetModel(next); got != engine.StatusOK {
		t.Fatalf("set model = %d (%s)", got, h.LastError())
	}
	info := h.Session().Info()
	if info.ID == first.ID || info.ModelPath != next || info.ContextSize != 96 {
		t.Fatalf("swapped session = %+v", info)
	}

	if got := h.SetModel("missing.gmf"); got != engine.StatusFileNotFound {
		t.Fatalf("set missing model = %d", got)
	}
	if h.Session().Info().ID != info.ID {
		t.Fatalf("failed swap replaced the session")
	}
}

func TestSetModelWithoutSessionUsesDefaults(t *testing.T) {
	t.Parallel()

	h := NewHost(HostOptions{ContextSize: 80})
	t.Cleanup(func() { _ = h.Close() })
	h.Init()
	if got := h.SetModel(synthModel(t)); got != engine.StatusOK {
		t.Fatalf("set model = %d (%s)", got, h.LastError())
	}
	if got := h.Session().Info().ContextSize; got != 80 {
		t.Fatalf("context size = %d, want 80", got)
	}
}

func TestCleanup(t *testing.T) {
	t.Parallel()

	h := newHost(t)
	if got := h.Cleanup(); got != engine.StatusOK {
		t.Fatalf("cleanup with nothing loaded = %d", got)
	}
	h.Init()
	h.LLMInit(synthModel(t), 64, 0)
	if got := h.Cleanup(); got != engine.StatusOK {
		t.Fatalf("cleanup = %d", got)
	}
	if h.Session() != nil || h.Status().State != StateIdle {
		t.Fatalf("session still active after cleanup")
	}
	if out := h.LLMGenerate("Hello", 2); out != "" || h.LastError() == "" {
		t.Fatalf("generate after cleanup = %q, last error %q", out, h.LastError())
	}
}
