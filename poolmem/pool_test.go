package poolmem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialscript/dialvm/api"
)

func TestAllocStringInterns(t *testing.T) {
	p := New(1 << 20)
	h1, err := p.AllocString("hello")
	require.NoError(t, err)
	h2, err := p.AllocString("hello")
	require.NoError(t, err)
	assert.Equal(t, h1, h2, "two references to the same content produce equal handles")
	assert.Equal(t, "hello", p.String(h1))
}

func TestAllocatedNeverExceedsCeiling(t *testing.T) {
	p := New(200)
	_, err := p.AllocObject("Thing") // 100 bytes
	require.NoError(t, err)
	assert.LessOrEqual(t, p.Allocated(), p.HeapSize())

	_, err = p.AllocObject("Thing2") // would be 200, still fits exactly
	require.NoError(t, err)
	assert.LessOrEqual(t, p.Allocated(), p.HeapSize())

	_, _, err = p.AllocArray(1) // 50+24 = 74, would exceed 200
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorKindOutOfMemory, apiErr.Kind)
	// A failed allocation must not move the counter.
	assert.Equal(t, uint32(200), p.Allocated())
}

func TestReclaimStringsDropsUnreachable(t *testing.T) {
	p := New(1 << 20)
	kept, err := p.AllocString("kept")
	require.NoError(t, err)
	dropped, err := p.AllocString("dropped")
	require.NoError(t, err)

	before := p.Allocated()
	freed := p.ReclaimStrings(map[api.Handle]bool{kept: true})
	assert.Equal(t, 1, freed)
	assert.Less(t, p.Allocated(), before)

	assert.Equal(t, "kept", p.String(kept))
	assert.Equal(t, "", p.String(dropped))

	// Re-interning the same dropped content allocates a fresh handle.
	newHandle, err := p.AllocString("dropped")
	require.NoError(t, err)
	assert.NotEqual(t, dropped, newHandle)
}

func TestObjectFieldOrderPreserved(t *testing.T) {
	p := New(1 << 20)
	_, obj, err := p.AllocObject("Point")
	require.NoError(t, err)
	obj.Set("y", api.Int32(2))
	obj.Set("x", api.Int32(1))
	obj.Set("y", api.Int32(99)) // reassignment keeps original position

	assert.Equal(t, []string{"y", "x"}, obj.FieldNames())
	v, ok := obj.Get("y")
	require.True(t, ok)
	assert.Equal(t, int32(99), v.AsInt32())
}

func TestArrayIndexedAccess(t *testing.T) {
	p := New(1 << 20)
	_, arr, err := p.AllocArray(3)
	require.NoError(t, err)
	assert.Equal(t, 3, arr.Len())

	ok := arr.Set(1, api.Int32(42))
	require.True(t, ok)
	v, ok := arr.Get(1)
	require.True(t, ok)
	assert.Equal(t, int32(42), v.AsInt32())

	assert.False(t, arr.Set(5, api.Null))
}

func TestWithInternLimitEvictsIndexNotContent(t *testing.T) {
	p := New(1<<20, WithInternLimit(1))
	a, err := p.AllocString("a")
	require.NoError(t, err)
	_, err = p.AllocString("b") // evicts "a" from the LRU index
	require.NoError(t, err)

	aAgain, err := p.AllocString("a")
	require.NoError(t, err)
	assert.NotEqual(t, a, aAgain, "evicted content re-allocates a new handle")
	// The original handle's data is still resolvable; eviction only
	// drops the dedup index, not the underlying storage.
	assert.Equal(t, "a", p.String(a))
}
