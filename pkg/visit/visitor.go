// Package visit implements the traversal engine: recursive-descent walkers,
// one per representation, that pair a type descriptor with an argument or a
// memory location and emit a sequence of calls to a Visitor. Renderers and
// external readers depend only on the Visitor contract.
package visit

import (
	"github.com/tracekit/tracepoint/pkg/abi"
)

// IntegerValue is a decoded integer leaf: the raw bits (sign-extended to 64
// bits for signed values) plus the declared size and signedness.
type IntegerValue struct {
	Bits   uint64
	Size   uint16
	Signed bool
}

// Int64 returns the value as a signed integer.
func (v IntegerValue) Int64() int64 { return int64(v.Bits) }

// Uint64 returns the value as an unsigned integer.
func (v IntegerValue) Uint64() uint64 { return v.Bits }

// Visitor receives the decoded structure of an event or value as a sequence
// of before/after/leaf calls. All three representations normalize their
// scalars before the leaf call, so leaves are representation-independent.
//
// Length arguments report the number of children about to be visited; -1
// means the length is not known up front (lazily-produced structs).
type Visitor interface {
	BeforeEvent(desc *abi.EventDescription)
	AfterEvent(desc *abi.EventDescription)
	BeforeStaticFields(n int)
	AfterStaticFields()
	BeforeVariadicFields(n int)
	AfterVariadicFields()
	BeforeField(name string)
	AfterField(name string)

	Null()
	Bool(v bool)
	Byte(v byte)
	Integer(v IntegerValue)
	Float(v float64)
	Str(s string)

	BeforeStruct(n int)
	AfterStruct()
	BeforeArray(n int)
	AfterArray()
	BeforeVLA(n int)
	AfterVLA()
	BeforeVLAVisitor()
	AfterVLAVisitor()
	BeforeElem(i int)
	AfterElem(i int)

	BeforeVariant()
	VariantSelector(v IntegerValue)
	AfterVariant()

	BeforeOptional(present bool)
	AfterOptional(present bool)

	// BeforeEnum and BeforeEnumBitmap receive the accumulated labels for
	// the value about to be visited; an empty slice means no mapping
	// matched.
	BeforeEnum(labels []string)
	AfterEnum()
	BeforeEnumBitmap(labels []string)
	AfterEnumBitmap()

	// ResolveAddress translates a stored address into a locally readable
	// one. It is only consulted when the engine runs against a different
	// address space than its own, e.g. a memory-mapped capture; the
	// identity translation is correct otherwise.
	ResolveAddress(addr uint64) uint64
}

// NopVisitor implements Visitor with no-ops. Embed it to implement only the
// hooks a renderer cares about.
type NopVisitor struct{}

func (NopVisitor) BeforeEvent(*abi.EventDescription) {}
func (NopVisitor) AfterEvent(*abi.EventDescription)  {}
func (NopVisitor) BeforeStaticFields(int)            {}
func (NopVisitor) AfterStaticFields()                {}
func (NopVisitor) BeforeVariadicFields(int)          {}
func (NopVisitor) AfterVariadicFields()              {}
func (NopVisitor) BeforeField(string)                {}
func (NopVisitor) AfterField(string)                 {}
func (NopVisitor) Null()                             {}
func (NopVisitor) Bool(bool)                         {}
func (NopVisitor) Byte(byte)                         {}
func (NopVisitor) Integer(IntegerValue)              {}
func (NopVisitor) Float(float64)                     {}
func (NopVisitor) Str(string)                        {}
func (NopVisitor) BeforeStruct(int)                  {}
func (NopVisitor) AfterStruct()                      {}
func (NopVisitor) BeforeArray(int)                   {}
func (NopVisitor) AfterArray()                       {}
func (NopVisitor) BeforeVLA(int)                     {}
func (NopVisitor) AfterVLA()                         {}
func (NopVisitor) BeforeVLAVisitor()                 {}
func (NopVisitor) AfterVLAVisitor()                  {}
func (NopVisitor) BeforeElem(int)                    {}
func (NopVisitor) AfterElem(int)                     {}
func (NopVisitor) BeforeVariant()                    {}
func (NopVisitor) VariantSelector(IntegerValue)      {}
func (NopVisitor) AfterVariant()                     {}
func (NopVisitor) BeforeOptional(bool)               {}
func (NopVisitor) AfterOptional(bool)                {}
func (NopVisitor) BeforeEnum([]string)               {}
func (NopVisitor) AfterEnum()                        {}
func (NopVisitor) BeforeEnumBitmap([]string)         {}
func (NopVisitor) AfterEnumBitmap()                  {}
func (NopVisitor) ResolveAddress(addr uint64) uint64 { return addr }
