package backend

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/cpu"

	"github.com/gpunexus/gpuf/internal/tensor"
)

type cpuDevice struct{}

// NewCPU returns the host CPU device. It never fails.
func NewCPU() Device {
	return cpuDevice{}
}

func (cpuDevice) Name() string      { return CPU }
func (cpuDevice) Accelerated() bool { return false }
func (cpuDevice) Close() error      { return nil }

func (cpuDevice) MatVec(dst []float32, w *tensor.Mat, x []float32) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cpu matvec: %v", rec)
		}
	}()
	tensor.MatVec(dst, w, x)
	return nil
}

// CPUFeatures lists the SIMD features of the host relevant to the kernels.
func CPUFeatures() []string {
	var out []string
	switch runtime.GOARCH {
	case "amd64", "386":
		for _, f := range []struct {
			name string
			ok   bool
		}{
			{"sse4.2", cpu.X86.HasSSE42},
			{"avx", cpu.X86.HasAVX},
			{"avx2", cpu.X86.HasAVX2},
			{"fma", cpu.X86.HasFMA},
			{"avx512f", cpu.X86.HasAVX512F},
		} {
			if f.ok {
				out = append(out, f.name)
			}
		}
	case "arm64":
		if cpu.ARM64.HasASIMD {
			out = append(out, "asimd")
		}
		if cpu.ARM64.HasFPHP {
			out = append(out, "fphp")
		}
		if cpu.ARM64.HasSVE {
			out = append(out, "sve")
		}
	}
	return out
}
