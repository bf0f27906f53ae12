package bytecode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialscript/dialvm/api"
)

func newTestModule() *Module {
	return &Module{
		Version: Version,
		Flags:   0,
		Metadata: Metadata{
			HeapSize:   1 << 16,
			AppName:    "hello",
			AppVersion: "1.0.0",
			Author:     "dialvm",
			Timestamp:  1700000000,
		},
		Constants:   []string{"Hello, ${0}!"},
		Globals:     []string{"count"},
		Functions:   []FunctionEntry{{Name: "main", EntryPC: 0, ParamCount: 0}},
		MainEntryPC: 0,
		Code:        []byte{byte(OpPushNull), byte(OpHalt)},
	}
}

func TestLoadEncodeRoundTrip(t *testing.T) {
	m := newTestModule()
	blob := m.Encode()

	loaded, err := Load(blob)
	require.NoError(t, err)
	assert.Equal(t, m.Constants, loaded.Constants)
	assert.Equal(t, m.Globals, loaded.Globals)
	assert.Equal(t, m.Functions, loaded.Functions)
	assert.Equal(t, m.Code, loaded.Code)

	// spec §8: serialize(deserialize(B)) == B whenever B passes
	// integrity verification.
	assert.Equal(t, blob, loaded.Encode())
}

func TestLoadBadMagic(t *testing.T) {
	_, err := Load([]byte("XXXX"))
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorKindBadMagic, apiErr.Kind)
}

func TestLoadTruncated(t *testing.T) {
	blob := newTestModule().Encode()
	_, err := Load(blob[:len(blob)-1])
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorKindTruncated, apiErr.Kind)
}

// TestLoadIntegrityMismatch is scenario 6 in spec §8: flip a single byte
// in the code section without recomputing the checksum.
func TestLoadIntegrityMismatch(t *testing.T) {
	m := newTestModule()
	blob := m.Encode()

	// Find the code bytes and flip one, leaving code_checksum stale.
	codeIdx := len(blob) - len(m.Code)
	blob[codeIdx] ^= 0xFF

	_, err := Load(blob)
	require.Error(t, err)
	var apiErr *api.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, api.ErrorKindIntegrityMismatch, apiErr.Kind)
}

func TestDisassemble(t *testing.T) {
	m := newTestModule()
	out := Disassemble(m)
	assert.Contains(t, out, "PUSH_NULL")
	assert.Contains(t, out, "HALT")
}

func TestFunctionLookup(t *testing.T) {
	m := newTestModule()
	idx, entry, ok := m.FunctionByName("main")
	require.True(t, ok)
	assert.Equal(t, uint16(0), idx)
	assert.Equal(t, uint8(0), entry.ParamCount)

	_, _, ok = m.FunctionByName("missing")
	assert.False(t, ok)
}
