// Copyright headers intentionally omitted: the teacher repo this
// package is rebuilt from (tetratelabs/wazero) carries none either.
package dialvm

import (
	"github.com/dialscript/dialvm/platform"
	"github.com/dialscript/dialvm/vm"
)

// defaultHeapSize is the heap size NewRuntimeConfig starts from, used
// when a RuntimeConfig omits WithHeapSize. NewPool uses a non-nil
// config's heap size in place of the module's metadata.heap_size, so
// only a nil config makes NewPool use the module's own ceiling.
const defaultHeapSize = 64 * 1024

// RuntimeConfig controls interpreter and pool behavior, with the
// default implementation as NewRuntimeConfig.
//
// Grounded on the teacher's RuntimeConfig: an immutable struct with an
// unexported clone() and With* methods that each return a new value,
// so a shared base config can be specialized per caller without
// aliasing.
type RuntimeConfig struct {
	heapSize                 uint32
	debugInfo                bool
	legacyNativeNameEncoding bool
	internLimit              int
}

// NewRuntimeConfig returns a RuntimeConfig configured for the common
// case: no debug info, a bounded intern table sized for typical MCU
// targets, the spec's direct native-ID CALL_NATIVE encoding.
func NewRuntimeConfig() *RuntimeConfig {
	return &RuntimeConfig{
		heapSize:    defaultHeapSize,
		internLimit: 4096,
	}
}

// clone ensures all fields are copied even as the struct grows.
func (c *RuntimeConfig) clone() *RuntimeConfig {
	ret := *c
	return &ret
}

// WithHeapSize overrides the Pool byte ceiling used when a caller
// constructs a Pool via NewPool instead of trusting the module's own
// metadata.heap_size.
func (c *RuntimeConfig) WithHeapSize(bytes uint32) *RuntimeConfig {
	ret := c.clone()
	ret.heapSize = bytes
	return ret
}

// WithDebugInfo is reserved for future encoder-side configuration; the
// decoder (bytecode.Load) always honors whatever flag bit the binary
// itself carries; kept here because SPEC_FULL.md's ambient config
// surface groups load-time and runtime switches in one place.
func (c *RuntimeConfig) WithDebugInfo(enabled bool) *RuntimeConfig {
	ret := c.clone()
	ret.debugInfo = enabled
	return ret
}

// WithNativeLegacyNameEncoding accepts CALL_NATIVE operands that index
// the constant pool for a dotted native name instead of encoding the
// numeric ID directly (spec §9 Open Question 1).
func (c *RuntimeConfig) WithNativeLegacyNameEncoding() *RuntimeConfig {
	ret := c.clone()
	ret.legacyNativeNameEncoding = true
	return ret
}

// WithInternLimit bounds the number of distinct interned strings a Pool
// built via NewPool will track (SPEC_FULL.md §2's bounded-LRU
// enrichment). A value <= 0 disables the bound, falling back to the
// byte-ceiling-only policy spec §4.2 describes.
func (c *RuntimeConfig) WithInternLimit(n int) *RuntimeConfig {
	ret := c.clone()
	ret.internLimit = n
	return ret
}

func (c *RuntimeConfig) vmOptions() []vm.Option {
	var opts []vm.Option
	if c.legacyNativeNameEncoding {
		opts = append(opts, vm.WithLegacyNativeNameEncoding())
	}
	return opts
}

// defaultPlatform is used by NewVM when no Platform is supplied,
// matching the teacher's pattern of a safe, fully-functional zero
// value rather than requiring every caller to wire one up (spec §9:
// "provide a default no-op/Null implementation").
func defaultPlatform() platform.Platform { return platform.NewNoop() }
