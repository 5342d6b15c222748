package backend

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

// Register makes an accelerator available under name. Registering the same
// name twice replaces the earlier factory.
func Register(name string, f Factory) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" || name == CPU || name == Auto || name == Accel || f == nil {
		panic(fmt.Sprintf("backend: invalid registration %q", name))
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = f
}

// Unregister removes an accelerator registration.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(registry, strings.ToLower(strings.TrimSpace(name)))
}

func Has(name string) bool {
	if name == CPU {
		return true
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[name]
	return ok
}

func accelerators() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Available returns a comma-separated list of available backends.
func Available() string {
	return strings.Join(append([]string{CPU}, accelerators()...), ",")
}

// Open initializes the named backend. Auto picks the first accelerator that
// initializes successfully and falls back to the CPU. Accel does the same
// but fails instead of falling back. The returned error list reports
// accelerators that failed on the way.
func Open(name string) (Device, []error, error) {
	backend, err := Normalize(name)
	if err != nil {
		return nil, nil, err
	}
	switch backend {
	case CPU:
		return NewCPU(), nil, nil
	case Auto, Accel:
		var skipped []error
		for _, accel := range accelerators() {
			dev, err := openAccelerator(accel)
			if err == nil {
				return dev, skipped, nil
			}
			skipped = append(skipped, err)
		}
		if backend == Accel {
			return nil, skipped, fmt.Errorf("%w: no accelerator initialized (registered: %s)", ErrUnavailable, strings.Join(accelerators(), ","))
		}
		return NewCPU(), skipped, nil
	default:
		dev, err := openAccelerator(backend)
		if err != nil {
			return nil, nil, err
		}
		return dev, nil, nil
	}
}

func openAccelerator(name string) (Device, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnavailable, name)
	}
	dev, err := f()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, name, err)
	}
	return dev, nil
}
