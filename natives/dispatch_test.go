package natives

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialscript/dialvm/api"
	"github.com/dialscript/dialvm/platform"
	"github.com/dialscript/dialvm/poolmem"
)

func TestDispatchUnknownIsSoftNull(t *testing.T) {
	pool := poolmem.New(1 << 20)
	plat := platform.NewNoop()
	v := Dispatch(ID(0xABCD), nil, pool, plat)
	assert.True(t, v.IsNull())
}

func TestDispatchConsoleLog(t *testing.T) {
	pool := poolmem.New(1 << 20)
	plat := platform.NewNoop()
	h, err := pool.AllocString("hello")
	require.NoError(t, err)
	v := Dispatch(ConsoleLog, []api.Value{api.StringHandle(h)}, pool, plat)
	assert.True(t, v.IsNull())
}

func TestDispatchExtraArgsDiscarded(t *testing.T) {
	pool := poolmem.New(1 << 20)
	plat := platform.NewNoop()
	v := Dispatch(SystemGetTime, []api.Value{api.Int32(1), api.Int32(2), api.Int32(3)}, pool, plat)
	assert.Equal(t, api.KindInt32, v.Kind())
}

func TestDispatchMissingArgsPadNull(t *testing.T) {
	pool := poolmem.New(1 << 20)
	plat := platform.NewNoop()
	// DisplayClear wants 1 arg; give none.
	v := Dispatch(DisplayClear, nil, pool, plat)
	assert.True(t, v.IsNull())
}

func TestByNameRoundTrip(t *testing.T) {
	assert.Equal(t, ConsoleLog, ByName("console.log"))
	assert.Equal(t, Unknown, ByName("nonexistent.thing"))
}

func TestEncoderOnTurnRegistersCallback(t *testing.T) {
	pool := poolmem.New(1 << 20)
	plat := platform.NewNoop()
	fn := api.Function(api.FunctionRef{FunctionIndex: 3, ParamCount: 1})
	Dispatch(EncoderOnTurn, []api.Value{fn}, pool, plat)
	assert.True(t, plat.HasCallback("encoder.onTurn"))
}
