package visit

import (
	"fmt"

	"github.com/tracekit/tracepoint/pkg/abi"
)

// recorder records every visitor call as one line, so tests can assert
// exact call sequences.
type recorder struct {
	calls []string
	// translate, when set, is used for ResolveAddress.
	translate func(addr uint64) uint64
}

func (r *recorder) add(format string, args ...any) {
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

func (r *recorder) BeforeEvent(d *abi.EventDescription) {
	r.add("before-event %s:%s", d.Provider, d.Name)
}
func (r *recorder) AfterEvent(d *abi.EventDescription) {
	r.add("after-event %s:%s", d.Provider, d.Name)
}
func (r *recorder) BeforeStaticFields(n int)   { r.add("before-static-fields %d", n) }
func (r *recorder) AfterStaticFields()         { r.add("after-static-fields") }
func (r *recorder) BeforeVariadicFields(n int) { r.add("before-variadic-fields %d", n) }
func (r *recorder) AfterVariadicFields()       { r.add("after-variadic-fields") }
func (r *recorder) BeforeField(name string)    { r.add("before-field %s", name) }
func (r *recorder) AfterField(name string)     { r.add("after-field %s", name) }

func (r *recorder) Null()           { r.add("null") }
func (r *recorder) Bool(v bool)     { r.add("bool %t", v) }
func (r *recorder) Byte(v byte)     { r.add("byte %d", v) }
func (r *recorder) Float(v float64) { r.add("float %g", v) }
func (r *recorder) Str(v string)    { r.add("string %s", v) }

func (r *recorder) Integer(v IntegerValue) {
	if v.Signed {
		r.add("integer %d", v.Int64())
	} else {
		r.add("integer %d", v.Uint64())
	}
}

func (r *recorder) BeforeStruct(n int) { r.add("before-struct %d", n) }
func (r *recorder) AfterStruct()       { r.add("after-struct") }
func (r *recorder) BeforeArray(n int)  { r.add("before-array %d", n) }
func (r *recorder) AfterArray()        { r.add("after-array") }
func (r *recorder) BeforeVLA(n int)    { r.add("before-vla %d", n) }
func (r *recorder) AfterVLA()          { r.add("after-vla") }
func (r *recorder) BeforeVLAVisitor()  { r.add("before-vla-visitor") }
func (r *recorder) AfterVLAVisitor()   { r.add("after-vla-visitor") }
func (r *recorder) BeforeElem(i int)   { r.add("before-elem %d", i) }
func (r *recorder) AfterElem(i int)    { r.add("after-elem %d", i) }

func (r *recorder) BeforeVariant() { r.add("before-variant") }
func (r *recorder) VariantSelector(v IntegerValue) {
	if v.Signed {
		r.add("selector %d", v.Int64())
	} else {
		r.add("selector %d", v.Uint64())
	}
}
func (r *recorder) AfterVariant() { r.add("after-variant") }

func (r *recorder) BeforeOptional(present bool) { r.add("before-optional %t", present) }
func (r *recorder) AfterOptional(present bool)  { r.add("after-optional %t", present) }

func (r *recorder) BeforeEnum(labels []string)       { r.add("before-enum %v", labels) }
func (r *recorder) AfterEnum()                       { r.add("after-enum") }
func (r *recorder) BeforeEnumBitmap(labels []string) { r.add("before-enum-bitmap %v", labels) }
func (r *recorder) AfterEnumBitmap()                 { r.add("after-enum-bitmap") }

func (r *recorder) ResolveAddress(addr uint64) uint64 {
	if r.translate != nil {
		return r.translate(addr)
	}
	return addr
}
