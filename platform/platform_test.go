package platform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dialscript/dialvm/api"
)

type fakeVM struct {
	running bool
	invoked []api.Value
	err     error
}

func (f *fakeVM) Running() bool { return f.running }
func (f *fakeVM) InvokeFunction(fn api.Value, args []api.Value) error {
	f.invoked = args
	return f.err
}

func TestInvokeCallbackNotRegistered(t *testing.T) {
	n := NewNoop()
	vm := &fakeVM{running: true}
	n.BindVM(vm)
	assert.False(t, n.InvokeCallback("encoder.onTurn", nil))
}

func TestInvokeCallbackNotRunning(t *testing.T) {
	n := NewNoop()
	vm := &fakeVM{running: false}
	n.BindVM(vm)
	n.EncoderOnTurn(api.Function(api.FunctionRef{FunctionIndex: 1, ParamCount: 1}))
	assert.False(t, n.InvokeCallback("encoder.onTurn", []api.Value{api.Int32(1)}))
}

func TestInvokeCallbackSuccess(t *testing.T) {
	n := NewNoop()
	vm := &fakeVM{running: true}
	n.BindVM(vm)
	n.EncoderOnTurn(api.Function(api.FunctionRef{FunctionIndex: 1, ParamCount: 1}))
	ok := n.InvokeCallback("encoder.onTurn", []api.Value{api.Int32(1)})
	assert.True(t, ok)
	assert.Len(t, vm.invoked, 1)
}

func TestInvokeCallbackPropagatesFailure(t *testing.T) {
	n := NewNoop()
	vm := &fakeVM{running: true, err: errors.New("boom")}
	n.BindVM(vm)
	n.AppOnLoad(api.Function(api.FunctionRef{FunctionIndex: 2}))
	assert.False(t, n.InvokeCallback("app.onLoad", nil))
}

func TestHasCallback(t *testing.T) {
	n := NewNoop()
	assert.False(t, n.HasCallback("timer.tick"))
	n.RegisterCallback("timer.tick", api.Function(api.FunctionRef{}))
	assert.True(t, n.HasCallback("timer.tick"))
}
