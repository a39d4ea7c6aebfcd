package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/tracekit/tracepoint/pkg/abi"
)

// Encoder encodes event descriptions to a writer.
type Encoder struct {
	w             io.Writer    // output writer
	err           error        // sticky error
	buf           bytes.Buffer // scratch buf for one record's payload
	scratch       [8]byte      // scratch buf for fixed-width fields
	headerWritten bool
}

// NewEncoder returns a new encoder that writes to w. The encoder is
// unbuffered; hand it a buffered writer for bulk encoding.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes desc to the encoder's writer or returns an error. Any
// error is sticky: once Encode fails, every later call returns the same
// error.
func (e *Encoder) Encode(desc *abi.EventDescription) error {
	if e.err != nil {
		return e.err
	}

	if !e.headerWritten {
		if _, e.err = e.w.Write(magic); e.err != nil {
			return e.err
		}
		e.headerWritten = true
	}

	// Build the payload first: the record is prefixed with its size so
	// readers can skip unknown record kinds.
	e.buf.Reset()
	e.buf.WriteByte(recordEvent)
	if e.err = putDescription(&e.buf, desc); e.err != nil {
		return e.err
	}

	binary.LittleEndian.PutUint32(e.scratch[:4], uint32(e.buf.Len()))
	if _, e.err = e.w.Write(e.scratch[:4]); e.err != nil {
		return e.err
	}
	_, e.err = e.w.Write(e.buf.Bytes())
	return e.err
}

func putDescription(b *bytes.Buffer, desc *abi.EventDescription) error {
	putU32(b, desc.Version)
	putU32(b, desc.StructSize)
	b.WriteByte(byte(desc.Level))
	putBool(b, desc.Variadic)
	putString(b, desc.Provider)
	putString(b, desc.Name)
	putAttributes(b, desc.Attributes)
	putU32(b, uint32(len(desc.Fields)))
	for _, f := range desc.Fields {
		putString(b, f.Name)
		if err := putType(b, f.Type); err != nil {
			return err
		}
	}
	return nil
}

func putType(b *bytes.Buffer, t *abi.Type) error {
	b.WriteByte(byte(t.Kind))
	putAttributes(b, t.Attributes)

	switch t.Kind {
	case abi.KindNull, abi.KindByte, abi.KindDynamic, abi.KindGatherByte:

	case abi.KindBool, abi.KindGatherBool:
		putU16(b, t.Bool.Size)
		putOrder(b, t.Bool.Order)

	case abi.KindInteger, abi.KindGatherInteger:
		putU16(b, t.Integer.Size)
		putBool(b, t.Integer.Signed)
		putOrder(b, t.Integer.Order)

	case abi.KindFloat, abi.KindGatherFloat:
		putU16(b, t.Float.Size)
		putOrder(b, t.Float.Order)

	case abi.KindString, abi.KindGatherString:
		putU16(b, t.String.UnitSize)
		putOrder(b, t.String.Order)

	case abi.KindStruct, abi.KindGatherStruct:
		putU64(b, t.Struct.Size)
		putU32(b, uint32(len(t.Struct.Fields)))
		for _, f := range t.Struct.Fields {
			putString(b, f.Name)
			if err := putType(b, f.Type); err != nil {
				return err
			}
		}

	case abi.KindArray, abi.KindGatherArray:
		putU32(b, t.Array.Length)
		if err := putType(b, t.Array.Elem); err != nil {
			return err
		}

	case abi.KindVLA, abi.KindGatherVLA:
		if err := putType(b, t.VLA.Elem); err != nil {
			return err
		}
		putBool(b, t.VLA.Length != nil)
		if t.VLA.Length != nil {
			if err := putType(b, t.VLA.Length); err != nil {
				return err
			}
		}

	case abi.KindVariant:
		if err := putType(b, t.Variant.Selector); err != nil {
			return err
		}
		putU32(b, uint32(len(t.Variant.Options)))
		for _, opt := range t.Variant.Options {
			putU64(b, uint64(opt.Begin))
			putU64(b, uint64(opt.End))
			if err := putType(b, opt.Type); err != nil {
				return err
			}
		}

	case abi.KindOptional:
		if err := putType(b, t.Optional.Elem); err != nil {
			return err
		}

	case abi.KindEnum, abi.KindGatherEnum:
		if err := putType(b, t.Enum.Elem); err != nil {
			return err
		}
		putMappings(b, t.Enum.Mappings)

	case abi.KindEnumBitmap:
		if err := putType(b, t.Bitmap.Elem); err != nil {
			return err
		}
		putMappings(b, t.Bitmap.Mappings)

	default:
		return fmt.Errorf("%w: cannot encode %s descriptor", ErrMalformed, t.Kind)
	}

	// A gather enum has no layout of its own; its element carries one.
	if t.Kind.IsGather() && t.Kind != abi.KindGatherEnum {
		putU64(b, t.Gather.Offset)
		b.WriteByte(byte(t.Gather.Access))
		putU16(b, t.Gather.OffsetBits)
		putU16(b, t.Gather.LenBits)
	}
	return nil
}

func putAttributes(b *bytes.Buffer, attrs []abi.Attribute) {
	putU32(b, uint32(len(attrs)))
	for _, a := range attrs {
		putString(b, a.Key)
		b.WriteByte(byte(a.Value.Kind))
		switch a.Value.Kind {
		case abi.AttrBool:
			putBool(b, a.Value.Bool)
		case abi.AttrU64:
			putU64(b, a.Value.U64)
		case abi.AttrS64:
			putU64(b, uint64(a.Value.S64))
		case abi.AttrFloat:
			putU64(b, math.Float64bits(a.Value.Float))
		case abi.AttrString:
			putString(b, a.Value.Str)
		}
	}
}

func putMappings(b *bytes.Buffer, m *abi.EnumMappings) {
	if m == nil {
		putU32(b, 0)
		return
	}
	putU32(b, uint32(len(m.Mappings)))
	for _, mapping := range m.Mappings {
		putU64(b, uint64(mapping.Begin))
		putU64(b, uint64(mapping.End))
		putString(b, mapping.Label)
	}
}

// putOrder writes a concrete byte order. The host placeholder never goes
// on the wire: the reader may live on a different-endianness host.
func putOrder(b *bytes.Buffer, o abi.ByteOrder) {
	b.WriteByte(byte(o.Resolve()))
}

func putBool(b *bytes.Buffer, v bool) {
	if v {
		b.WriteByte(1)
	} else {
		b.WriteByte(0)
	}
}

func putU16(b *bytes.Buffer, v uint16) {
	var s [2]byte
	binary.LittleEndian.PutUint16(s[:], v)
	b.Write(s[:])
}

func putU32(b *bytes.Buffer, v uint32) {
	var s [4]byte
	binary.LittleEndian.PutUint32(s[:], v)
	b.Write(s[:])
}

func putU64(b *bytes.Buffer, v uint64) {
	var s [8]byte
	binary.LittleEndian.PutUint64(s[:], v)
	b.Write(s[:])
}

func putString(b *bytes.Buffer, s string) {
	putU32(b, uint32(len(s)))
	b.WriteString(s)
}
