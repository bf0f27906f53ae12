// Package dialvm is the composition root: it wires bytecode.Load,
// poolmem.New and vm.New behind three small constructors so a host
// embedding dialVM rarely needs to import the subpackages directly.
//
// Grounded on the teacher's root package, which plays the identical
// role for wazero: NewRuntimeConfig + Runtime.CompileModule +
// Runtime.InstantiateModule compose the engine, decoded code and a
// running instance exactly as NewRuntimeConfig + NewModule + NewPool +
// NewVM do here.
package dialvm

import (
	"github.com/dialscript/dialvm/bytecode"
	"github.com/dialscript/dialvm/platform"
	"github.com/dialscript/dialvm/poolmem"
	"github.com/dialscript/dialvm/vm"
)

// NewModule decodes and integrity-checks a .dsb binary (spec §4.1).
// Exists so callers don't need to import bytecode directly for the
// common case.
func NewModule(data []byte) (*bytecode.Module, error) {
	return bytecode.Load(data)
}

// NewPool constructs a Pool sized by cfg's heap size, or the module's
// own declared metadata.heap_size when cfg is nil (spec §3: "Module
// carries its own heap_size"; most callers should prefer this over
// WithHeapSize).
func NewPool(m *bytecode.Module, cfg *RuntimeConfig) *poolmem.Pool {
	heapSize := m.Metadata.HeapSize
	var opts []poolmem.Option
	if cfg != nil {
		if cfg.heapSize != 0 {
			heapSize = cfg.heapSize
		}
		if cfg.internLimit > 0 {
			opts = append(opts, poolmem.WithInternLimit(cfg.internLimit))
		}
	}
	return poolmem.New(heapSize, opts...)
}

// NewVM wires a decoded Module, its Pool and a Platform facade into a
// running VM, ready for Execute (spec §2). plat may be nil, in which
// case a Noop Platform is used — useful for disassembly-adjacent
// tooling and tests that never expect a native call to do anything.
func NewVM(m *bytecode.Module, pool *poolmem.Pool, plat platform.Platform, cfg *RuntimeConfig) *vm.VM {
	if plat == nil {
		plat = defaultPlatform()
	}
	if cfg == nil {
		cfg = NewRuntimeConfig()
	}
	return vm.New(m, pool, plat, cfg.vmOptions()...)
}
