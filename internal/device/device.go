// Package device describes the compute device training runs on.
package device

import (
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
	"golang.org/x/sys/cpu"
)

// Info identifies a compute device and what it can do.
type Info struct {
	Kind     string   `json:"kind"`
	Name     string   `json:"name"`
	Cores    int      `json:"cores"`
	Features []string `json:"features,omitempty"`
}

func (i Info) String() string {
	var b strings.Builder
	b.WriteString(i.Kind)
	if i.Name != "" {
		b.WriteString(" (")
		b.WriteString(i.Name)
		b.WriteString(")")
	}
	return b.String()
}

// Detect inspects the host CPU.
func Detect() Info {
	info := Info{
		Kind:  "cpu",
		Name:  strings.TrimSpace(cpuid.CPU.BrandName),
		Cores: cpuid.CPU.LogicalCores,
	}
	if info.Cores <= 0 {
		info.Cores = runtime.NumCPU()
	}
	info.Features = simdFeatures()
	return info
}

func simdFeatures() []string {
	var out []string
	switch runtime.GOARCH {
	case "amd64", "386":
		if cpu.X86.HasAVX {
			out = append(out, "avx")
		}
		if cpu.X86.HasAVX2 {
			out = append(out, "avx2")
		}
		if cpu.X86.HasFMA {
			out = append(out, "fma")
		}
		if cpu.X86.HasAVX512F {
			out = append(out, "avx512f")
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
	if cpuid.CPU.Supports(cpuid.AVX512F, cpuid.AVX512DQ) {
		out = append(out, "avx512dq")
	}
	return out
}

// DefaultWorkers returns the worker count to use when the configuration
// asks for automatic parallelism.
func DefaultWorkers() int {
	n := cpuid.CPU.LogicalCores
	if n <= 0 {
		n = runtime.NumCPU()
	}
	return n
}
