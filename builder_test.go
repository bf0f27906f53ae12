package dialvm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialscript/dialvm/bytecode"
	"github.com/dialscript/dialvm/vm"
)

func TestNewModuleNewPoolNewVMRoundTrip(t *testing.T) {
	code := []byte{byte(bytecode.OpHalt)}
	raw := (&bytecode.Module{
		Code:        code,
		MainEntryPC: 0,
		Metadata:    bytecode.Metadata{HeapSize: 4096, AppName: "demo"},
	}).Encode()

	m, err := NewModule(raw)
	require.NoError(t, err)
	assert.EqualValues(t, 4096, m.Metadata.HeapSize)

	pool := NewPool(m, nil)
	assert.EqualValues(t, 4096, pool.HeapSize())

	machine := NewVM(m, pool, nil, nil)
	res := machine.Execute(10)
	assert.Equal(t, vm.ResultFinished, res)
}

func TestRuntimeConfigWithHeapSizeOverridesModule(t *testing.T) {
	raw := (&bytecode.Module{
		Code:     []byte{byte(bytecode.OpHalt)},
		Metadata: bytecode.Metadata{HeapSize: 4096},
	}).Encode()
	m, err := NewModule(raw)
	require.NoError(t, err)

	cfg := NewRuntimeConfig().WithHeapSize(1024)
	pool := NewPool(m, cfg)
	assert.EqualValues(t, 1024, pool.HeapSize())
}
