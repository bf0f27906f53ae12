package poolmem

import "github.com/dialscript/dialvm/api"

// Array is a contiguous sequence of Values with O(1) indexed access and
// a readable "length" pseudo-field (spec §3; the pseudo-field is
// surfaced by vm's GET_FIELD handling, not here).
type Array struct {
	Items []api.Value
}

func newArray(size int) *Array {
	items := make([]api.Value, size)
	for i := range items {
		items[i] = api.Null
	}
	return &Array{Items: items}
}

func (a *Array) Len() int { return len(a.Items) }

// Get returns Items[i], or ok=false if i is out of range.
func (a *Array) Get(i int) (api.Value, bool) {
	if i < 0 || i >= len(a.Items) {
		return api.Value{}, false
	}
	return a.Items[i], true
}

// Set assigns Items[i], returning ok=false if i is out of range.
func (a *Array) Set(i int, v api.Value) bool {
	if i < 0 || i >= len(a.Items) {
		return false
	}
	a.Items[i] = v
	return true
}
