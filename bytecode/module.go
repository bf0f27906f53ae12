// Package bytecode decodes and encodes the .dsb wire format (spec §4.1)
// into the immutable Module the interpreter executes, and renders a
// human-readable disassembly.
//
// Grounded on the teacher's binary-decode layering (a standalone decode
// step that produces an immutable, pre-validated in-memory Module before
// any execution engine touches it) and its config/builder style of
// returning typed, sentinel-comparable errors instead of bare strings.
package bytecode

import (
	"fmt"
	"strings"

	"github.com/dialscript/dialvm/api"
)

const (
	// Version is the .dsb wire version this package emits. Bit layout
	// of the flags word is independent of this value; Version exists so
	// future incompatible wire changes have somewhere to land.
	Version uint16 = 1
)

// Metadata holds the fixed, hashed fields of the .dsb metadata block
// (spec §3 Module, §4.1).
type Metadata struct {
	HeapSize      uint32
	AppName       string
	AppVersion    string
	Author        string
	Timestamp     uint32
	MetadataHash  uint32
	CodeChecksum  uint16
}

// FunctionEntry is one row of the function table: name, entry PC and
// declared parameter count (spec §3 Module).
type FunctionEntry struct {
	Name       string
	EntryPC    uint32
	ParamCount uint8
}

// Module is the immutable, verified container produced by Load. Every
// field is read-only after construction; callers that need a mutated
// copy go through Encode and Load again.
type Module struct {
	Version      uint16
	Flags        uint16
	Metadata     Metadata
	Constants    []string
	Globals      []string
	Functions    []FunctionEntry
	MainEntryPC  uint32
	Code         []byte
	// Lines is the optional PC-indexed source-line map; nil when the
	// debug-info flag bit is unset. Lines[pc] == 0 means "no line".
	Lines []uint32
}

// HasDebugInfo reports whether the debug line map is present.
func (m *Module) HasDebugInfo() bool { return m.Flags&flagDebugInfo != 0 }

// FunctionByIndex returns the function-table entry at idx, or ok=false
// if idx is out of range (spec §7 InvalidIndex).
func (m *Module) FunctionByIndex(idx uint16) (FunctionEntry, bool) {
	if int(idx) >= len(m.Functions) {
		return FunctionEntry{}, false
	}
	return m.Functions[idx], true
}

// FunctionByName returns the first function-table entry named name,
// used by NEW_OBJECT to find "ClassName::constructor" (spec §4.3).
func (m *Module) FunctionByName(name string) (idx uint16, entry FunctionEntry, ok bool) {
	for i, f := range m.Functions {
		if f.Name == name {
			return uint16(i), f, true
		}
	}
	return 0, FunctionEntry{}, false
}

// Constant returns constants[idx], or ok=false if out of range.
func (m *Module) Constant(idx uint16) (string, bool) {
	if int(idx) >= len(m.Constants) {
		return "", false
	}
	return m.Constants[idx], true
}

// Global returns the name of global idx, or ok=false if out of range.
func (m *Module) Global(idx uint16) (string, bool) {
	if int(idx) >= len(m.Globals) {
		return "", false
	}
	return m.Globals[idx], true
}

// LineAt returns the source line for pc, or 0 if unknown or absent.
func (m *Module) LineAt(pc int) uint32 {
	if m.Lines == nil || pc < 0 || pc >= len(m.Lines) {
		return 0
	}
	return m.Lines[pc]
}

// Load decodes a .dsb byte sequence into a Module, verifying integrity
// per spec §4.1:
//   - ErrorKindBadMagic if the first four bytes are not "DSBC".
//   - ErrorKindTruncated on any short read.
//   - ErrorKindIntegrityMismatch if metadata_hash or code_checksum do
//     not match the recomputed values.
func Load(data []byte) (*Module, error) {
	if len(data) < 4 || string(data[:4]) != string(magic[:]) {
		return nil, api.NewError(api.ErrorKindBadMagic, "missing DSBC magic")
	}
	r := &reader{buf: data, pos: 4}

	m := &Module{}
	var trunc bool
	if m.Version, trunc = r.u16(); trunc {
		return nil, truncatedErr()
	}
	if m.Flags, trunc = r.u16(); trunc {
		return nil, truncatedErr()
	}

	md := Metadata{}
	if md.HeapSize, trunc = r.u32(); trunc {
		return nil, truncatedErr()
	}
	if md.AppName, trunc = r.lpstring(); trunc {
		return nil, truncatedErr()
	}
	if md.AppVersion, trunc = r.lpstring(); trunc {
		return nil, truncatedErr()
	}
	if md.Author, trunc = r.lpstring(); trunc {
		return nil, truncatedErr()
	}
	if md.Timestamp, trunc = r.u32(); trunc {
		return nil, truncatedErr()
	}
	if md.MetadataHash, trunc = r.u32(); trunc {
		return nil, truncatedErr()
	}
	var codeChecksumU16 uint16
	if codeChecksumU16, trunc = r.u16(); trunc {
		return nil, truncatedErr()
	}
	md.CodeChecksum = codeChecksumU16

	constCount, trunc := r.u32()
	if trunc {
		return nil, truncatedErr()
	}
	m.Constants = make([]string, constCount)
	for i := range m.Constants {
		if m.Constants[i], trunc = r.lpstring(); trunc {
			return nil, truncatedErr()
		}
	}

	globalCount, trunc := r.u32()
	if trunc {
		return nil, truncatedErr()
	}
	m.Globals = make([]string, globalCount)
	for i := range m.Globals {
		if m.Globals[i], trunc = r.lpstring(); trunc {
			return nil, truncatedErr()
		}
	}

	fnCount, trunc := r.u32()
	if trunc {
		return nil, truncatedErr()
	}
	m.Functions = make([]FunctionEntry, fnCount)
	for i := range m.Functions {
		fe := FunctionEntry{}
		if fe.Name, trunc = r.lpstring(); trunc {
			return nil, truncatedErr()
		}
		if fe.EntryPC, trunc = r.u32(); trunc {
			return nil, truncatedErr()
		}
		if fe.ParamCount, trunc = r.u8(); trunc {
			return nil, truncatedErr()
		}
		m.Functions[i] = fe
	}

	if m.MainEntryPC, trunc = r.u32(); trunc {
		return nil, truncatedErr()
	}

	codeLen, trunc := r.u32()
	if trunc {
		return nil, truncatedErr()
	}
	codeBytes, trunc := r.bytes(int(codeLen))
	if trunc {
		return nil, truncatedErr()
	}
	m.Code = append([]byte(nil), codeBytes...)

	if m.Flags&flagDebugInfo != 0 {
		lineCount, trunc := r.u32()
		if trunc {
			return nil, truncatedErr()
		}
		m.Lines = make([]uint32, lineCount)
		for i := range m.Lines {
			if m.Lines[i], trunc = r.u32(); trunc {
				return nil, truncatedErr()
			}
		}
	}

	m.Metadata = md

	if metadataHash(md) != md.MetadataHash {
		return nil, api.NewError(api.ErrorKindIntegrityMismatch, "metadata_hash mismatch")
	}
	if codeChecksum(m.Code) != md.CodeChecksum {
		return nil, api.NewError(api.ErrorKindIntegrityMismatch, "code_checksum mismatch")
	}

	return m, nil
}

func truncatedErr() error {
	return api.NewError(api.ErrorKindTruncated, "short read")
}

// Encode re-writes m exactly, recomputing metadata_hash and
// code_checksum before emit so that deserialize -> serialize ->
// deserialize round-trips to the same bytes whenever the input passed
// integrity verification (spec §8).
func (m *Module) Encode() []byte {
	md := m.Metadata
	md.MetadataHash = metadataHash(md)
	md.CodeChecksum = codeChecksum(m.Code)

	w := &writer{}
	w.raw(magic[:])
	w.u16(m.Version)
	w.u16(m.Flags)

	w.u32(md.HeapSize)
	w.lpstring(md.AppName)
	w.lpstring(md.AppVersion)
	w.lpstring(md.Author)
	w.u32(md.Timestamp)
	w.u32(md.MetadataHash)
	w.u16(md.CodeChecksum)

	w.u32(uint32(len(m.Constants)))
	for _, c := range m.Constants {
		w.lpstring(c)
	}

	w.u32(uint32(len(m.Globals)))
	for _, g := range m.Globals {
		w.lpstring(g)
	}

	w.u32(uint32(len(m.Functions)))
	for _, f := range m.Functions {
		w.lpstring(f.Name)
		w.u32(f.EntryPC)
		w.u8(f.ParamCount)
	}

	w.u32(m.MainEntryPC)
	w.u32(uint32(len(m.Code)))
	w.raw(m.Code)

	if m.Flags&flagDebugInfo != 0 {
		w.u32(uint32(len(m.Lines)))
		for _, l := range m.Lines {
			w.u32(l)
		}
	}

	return w.buf
}

// Disassemble renders one line per instruction: PC, mnemonic, decoded
// operand, and (when debug info is present) source line. This is the
// "human-readable disassembly" spec §4.1 requires of the Bytecode
// Module but leaves unformatted; the concrete layout is a SPEC_FULL.md
// supplement (see SPEC_FULL.md §3.1).
func Disassemble(m *Module) string {
	var b strings.Builder
	pc := 0
	for pc < len(m.Code) {
		op := Op(m.Code[pc])
		opStart := pc
		pc++
		size := OperandSize(op)
		var operand string
		if pc+size <= len(m.Code) {
			operand = decodeOperand(op, m.Code[pc:pc+size])
		} else {
			operand = "<truncated>"
		}
		pc += size

		fmt.Fprintf(&b, "%6d  %-16s %s", opStart, op, operand)
		if m.HasDebugInfo() {
			if line := m.LineAt(opStart); line != 0 {
				fmt.Fprintf(&b, "  ; line %d", line)
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func decodeOperand(op Op, b []byte) string {
	switch op {
	case OpPushI8:
		return fmt.Sprintf("%d", int8(b[0]))
	case OpPushI16:
		return fmt.Sprintf("%d", int16(le16(b)))
	case OpPushI32:
		return fmt.Sprintf("%d", int32(le32(b)))
	case OpPushF32:
		return fmt.Sprintf("%#x", le32(b))
	case OpPushStr, OpLoadGlobal, OpStoreGlobal, OpCallMethod, OpLoadFunction:
		return fmt.Sprintf("#%d", le16(b))
	case OpLoadLocal, OpStoreLocal, OpTemplateFormat:
		return fmt.Sprintf("%d", b[0])
	case OpJump, OpJumpIf, OpJumpIfNot, OpTry:
		return fmt.Sprintf("%+d", int32(le32(b)))
	case OpCall, OpCallNative:
		idx := le16(b[0:2])
		argc := b[2]
		return fmt.Sprintf("#%d argc=%d", idx, argc)
	case OpCallIndirect:
		return fmt.Sprintf("argc=%d", b[0])
	case OpGetField, OpSetField, OpNewObject:
		return fmt.Sprintf("#%d", le16(b))
	default:
		return ""
	}
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}
