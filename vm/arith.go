package vm

import (
	"math"
	"strconv"
	"strings"

	"github.com/dialscript/dialvm/api"
)

// toF32 widens a numeric Value to float32 for mixed Int32/Float32
// arithmetic (spec §4.2: "if either operand is Float32, the result is
// Float32").
func toF32(v api.Value) float32 {
	if v.Kind() == api.KindFloat32 {
		return v.AsFloat32()
	}
	return float32(v.AsInt32())
}

// execArith implements SUB/MUL: non-numeric operands yield Null (spec
// §4.2 "other arithmetic on non-numeric values yields Null"), otherwise
// Int32 arithmetic unless either side is Float32. ADD has its own
// execAdd, since it additionally string-coerces.
func (vm *VM) execArith(iop func(a, b int32) int32, fop func(a, b float32) float32) {
	b, ok := vm.pop()
	if !ok {
		return
	}
	a, ok := vm.pop()
	if !ok {
		return
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		vm.push(api.Null)
		return
	}
	if a.Kind() == api.KindFloat32 || b.Kind() == api.KindFloat32 {
		vm.push(api.Float32(fop(toF32(a), toF32(b))))
		return
	}
	vm.push(api.Int32(iop(a.AsInt32(), b.AsInt32())))
}

// execAdd implements ADD: unlike SUB/MUL, a String operand does not
// fall through to the generic "non-numeric yields Null" rule. Spec
// §4.2: "ADD additionally performs string concatenation when either
// side is String (other side converted via to_string)."
func (vm *VM) execAdd() {
	b, ok := vm.pop()
	if !ok {
		return
	}
	a, ok := vm.pop()
	if !ok {
		return
	}
	if a.Kind() == api.KindString || b.Kind() == api.KindString {
		h, ok := vm.allocStringWithReclaim(vm.toStr(a) + vm.toStr(b))
		if !ok {
			return
		}
		vm.push(api.StringHandle(h))
		return
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		vm.push(api.Null)
		return
	}
	if a.Kind() == api.KindFloat32 || b.Kind() == api.KindFloat32 {
		vm.push(api.Float32(toF32(a) + toF32(b)))
		return
	}
	vm.push(api.Int32(a.AsInt32() + b.AsInt32()))
}

// execDiv special-cases integer division by zero as fatal
// (ErrorKindDivideByZero); Float32 division by zero follows IEEE-754
// and simply produces +/-Inf or NaN, matching spec §9's resolution that
// only the integer path needs a hard stop.
func (vm *VM) execDiv() {
	b, ok := vm.pop()
	if !ok {
		return
	}
	a, ok := vm.pop()
	if !ok {
		return
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		vm.push(api.Null)
		return
	}
	if a.Kind() == api.KindFloat32 || b.Kind() == api.KindFloat32 {
		vm.push(api.Float32(toF32(a) / toF32(b)))
		return
	}
	if b.AsInt32() == 0 {
		vm.setError(api.ErrorKindDivideByZero, "integer division by zero")
		return
	}
	vm.push(api.Int32(a.AsInt32() / b.AsInt32()))
}

func (vm *VM) execMod() {
	b, ok := vm.pop()
	if !ok {
		return
	}
	a, ok := vm.pop()
	if !ok {
		return
	}
	if !a.IsNumeric() || !b.IsNumeric() {
		vm.push(api.Null)
		return
	}
	if a.Kind() == api.KindFloat32 || b.Kind() == api.KindFloat32 {
		vm.push(api.Float32(float32(math.Mod(float64(toF32(a)), float64(toF32(b))))))
		return
	}
	if b.AsInt32() == 0 {
		vm.setError(api.ErrorKindDivideByZero, "integer modulo by zero")
		return
	}
	vm.push(api.Int32(a.AsInt32() % b.AsInt32()))
}

func (vm *VM) execNeg() {
	a, ok := vm.pop()
	if !ok {
		return
	}
	if !a.IsNumeric() {
		vm.push(api.Null)
		return
	}
	if a.Kind() == api.KindFloat32 {
		vm.push(api.Float32(-a.AsFloat32()))
		return
	}
	vm.push(api.Int32(-a.AsInt32()))
}

// execCompare implements LT/LE/GT/GE: non-numeric operands compare as
// false rather than raising (spec §4.2 Compare's ok=false contract).
func (vm *VM) execCompare(pred func(cmp int) bool) {
	b, ok := vm.pop()
	if !ok {
		return
	}
	a, ok := vm.pop()
	if !ok {
		return
	}
	cmp, comparable := api.Compare(a, b)
	if !comparable {
		vm.push(api.Bool(false))
		return
	}
	vm.push(api.Bool(pred(cmp)))
}

// execStrConcat implements STR_CONCAT: both operands render through
// to_string() and the result is interned fresh (spec §4.2).
func (vm *VM) execStrConcat() {
	b, ok := vm.pop()
	if !ok {
		return
	}
	a, ok := vm.pop()
	if !ok {
		return
	}
	h, ok := vm.allocStringWithReclaim(vm.toStr(a) + vm.toStr(b))
	if !ok {
		return
	}
	vm.push(api.StringHandle(h))
}

// execTemplateFormat implements TEMPLATE_FORMAT: the template string
// sits below its argc substitution values on the stack (both pushed by
// the compiler before the instruction). Each "${N}" placeholder is
// replaced by to_string(args[N]); a placeholder with a non-numeric or
// out-of-range N is malformed and is preserved verbatim (spec §4.2,
// §8 scenario 5: `"Hello, ${0}! You are ${1}."` -> `"Hello, <name>!
// You are 30."`).
func (vm *VM) execTemplateFormat(argc int) {
	args, ok := vm.popN(argc)
	if !ok {
		return
	}
	tmplVal, ok := vm.pop()
	if !ok {
		return
	}
	tmpl := vm.toStr(tmplVal)

	var b strings.Builder
	for i := 0; i < len(tmpl); {
		if tmpl[i] != '$' || i+1 >= len(tmpl) || tmpl[i+1] != '{' {
			b.WriteByte(tmpl[i])
			i++
			continue
		}
		end := strings.IndexByte(tmpl[i+2:], '}')
		if end < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		digits := tmpl[i+2 : i+2+end]
		placeholder := tmpl[i : i+2+end+1]
		n, err := strconv.Atoi(digits)
		if err != nil || n < 0 || n >= len(args) {
			b.WriteString(placeholder)
		} else {
			b.WriteString(vm.toStr(args[n]))
		}
		i += len(placeholder)
	}

	h, ok := vm.allocStringWithReclaim(b.String())
	if !ok {
		return
	}
	vm.push(api.StringHandle(h))
}
