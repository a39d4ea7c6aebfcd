package wire

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/tracekit/tracepoint/pkg/abi"
)

// Decoder decodes event descriptions from a reader.
type Decoder struct {
	in         *bufio.Reader
	readHeader bool
	buf        []byte // scratch buf for one record's payload
}

// NewDecoder returns a new decoder that reads from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{in: bufio.NewReader(r)}
}

// header reads the stream header and fails if it is not ours.
func (d *Decoder) header() error {
	buf := make([]byte, len(magic))
	if _, err := io.ReadFull(d.in, buf); err != nil {
		return err
	}
	if !bytes.Equal(buf, magic) {
		return fmt.Errorf("%w: %q", ErrBadMagic, string(buf))
	}
	return nil
}

// Decode parses the next event description or returns an error. Records of
// unknown kinds are skipped, so streams written by a newer producer still
// decode. io.EOF marks a clean end of stream.
func (d *Decoder) Decode() (*abi.EventDescription, error) {
	if !d.readHeader {
		if err := d.header(); err != nil {
			return nil, err
		}
		d.readHeader = true
	}

	for {
		var prefix [4]byte
		if _, err := io.ReadFull(d.in, prefix[:]); err != nil {
			if err == io.ErrUnexpectedEOF {
				return nil, fmt.Errorf("%w: truncated size prefix", ErrMalformed)
			}
			return nil, err
		}
		size := binary.LittleEndian.Uint32(prefix[:])
		if size == 0 || size > maxRecordSize {
			return nil, fmt.Errorf("%w: record size %d", ErrMalformed, size)
		}
		if uint32(cap(d.buf)) < size {
			d.buf = make([]byte, size)
		}
		d.buf = d.buf[:size]
		if _, err := io.ReadFull(d.in, d.buf); err != nil {
			return nil, fmt.Errorf("%w: truncated record: %v", ErrMalformed, err)
		}

		if d.buf[0] != recordEvent {
			continue
		}
		r := &record{data: d.buf[1:]}
		desc := r.description()
		if r.err != nil {
			return nil, r.err
		}
		return desc, nil
	}
}

// record is a cursor over one record's payload with a sticky parse error.
// Trailing bytes beyond the fields this version knows are ignored, which
// is how records grow without breaking old readers.
type record struct {
	data []byte
	off  int
	err  error
}

func (r *record) fail(what string) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s at offset %d", ErrMalformed, what, r.off)
	}
}

func (r *record) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || len(r.data)-r.off < n {
		r.fail("truncated field")
		return nil
	}
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *record) u8() byte {
	if b := r.take(1); b != nil {
		return b[0]
	}
	return 0
}

func (r *record) u16() uint16 {
	if b := r.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (r *record) u32() uint32 {
	if b := r.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

func (r *record) u64() uint64 {
	if b := r.take(8); b != nil {
		return binary.LittleEndian.Uint64(b)
	}
	return 0
}

func (r *record) s64() int64 { return int64(r.u64()) }

func (r *record) boolean() bool {
	switch r.u8() {
	case 0:
		return false
	case 1:
		return true
	default:
		r.fail("invalid boolean")
		return false
	}
}

func (r *record) str() string {
	n := r.u32()
	if b := r.take(int(n)); b != nil {
		return string(b)
	}
	return ""
}

func (r *record) order() abi.ByteOrder {
	switch o := abi.ByteOrder(r.u8()); o {
	case abi.LittleEndian, abi.BigEndian:
		return o
	default:
		r.fail("invalid byte order")
		return abi.LittleEndian
	}
}

func (r *record) description() *abi.EventDescription {
	desc := &abi.EventDescription{
		Version:    r.u32(),
		StructSize: r.u32(),
		Level:      abi.Level(r.u8()),
		Variadic:   r.boolean(),
		Provider:   r.str(),
		Name:       r.str(),
		Attributes: r.attributes(),
	}
	n := r.u32()
	for i := uint32(0); i < n && r.err == nil; i++ {
		name := r.str()
		desc.Fields = append(desc.Fields, abi.F(name, r.typ()))
	}
	return desc
}

func (r *record) typ() *abi.Type {
	kind := r.u8()
	if kind > maxKind {
		r.fail("unknown descriptor kind")
	}
	if r.err != nil {
		return nil
	}
	t := &abi.Type{Kind: abi.Kind(kind), Attributes: r.attributes()}

	switch t.Kind {
	case abi.KindNull, abi.KindByte, abi.KindDynamic, abi.KindGatherByte:

	case abi.KindBool, abi.KindGatherBool:
		t.Bool = &abi.BoolType{Size: r.u16(), Order: r.order()}

	case abi.KindInteger, abi.KindGatherInteger:
		t.Integer = &abi.IntegerType{Size: r.u16(), Signed: r.boolean(), Order: r.order()}

	case abi.KindFloat, abi.KindGatherFloat:
		t.Float = &abi.FloatType{Size: r.u16(), Order: r.order()}

	case abi.KindString, abi.KindGatherString:
		t.String = &abi.StringType{UnitSize: r.u16(), Order: r.order()}

	case abi.KindStruct, abi.KindGatherStruct:
		st := &abi.StructType{Size: r.u64()}
		n := r.u32()
		for i := uint32(0); i < n && r.err == nil; i++ {
			name := r.str()
			st.Fields = append(st.Fields, abi.F(name, r.typ()))
		}
		t.Struct = st

	case abi.KindArray, abi.KindGatherArray:
		t.Array = &abi.ArrayType{Length: r.u32(), Elem: r.typ()}

	case abi.KindVLA, abi.KindGatherVLA:
		vt := &abi.VLAType{Elem: r.typ()}
		if r.boolean() {
			vt.Length = r.typ()
		}
		t.VLA = vt

	case abi.KindVariant:
		vt := &abi.VariantType{Selector: r.typ()}
		n := r.u32()
		for i := uint32(0); i < n && r.err == nil; i++ {
			begin, end := r.s64(), r.s64()
			vt.Options = append(vt.Options, abi.VariantOption{Begin: begin, End: end, Type: r.typ()})
		}
		t.Variant = vt

	case abi.KindOptional:
		t.Optional = &abi.OptionalType{Elem: r.typ()}

	case abi.KindEnum, abi.KindGatherEnum:
		t.Enum = &abi.EnumType{Elem: r.typ(), Mappings: r.mappings()}

	case abi.KindEnumBitmap:
		t.Bitmap = &abi.EnumBitmapType{Elem: r.typ(), Mappings: r.mappings()}

	default:
		r.fail("unknown descriptor kind")
	}

	if t.Kind.IsGather() && t.Kind != abi.KindGatherEnum {
		t.Gather = &abi.GatherLayout{
			Offset:     r.u64(),
			Access:     abi.AccessMode(r.u8()),
			OffsetBits: r.u16(),
			LenBits:    r.u16(),
		}
		if t.Gather.Access > abi.ThroughPointer {
			r.fail("invalid access mode")
		}
	}
	if r.err != nil {
		return nil
	}
	return t
}

func (r *record) attributes() []abi.Attribute {
	n := r.u32()
	var attrs []abi.Attribute
	for i := uint32(0); i < n && r.err == nil; i++ {
		a := abi.Attribute{Key: r.str()}
		switch kind := abi.AttrKind(r.u8()); kind {
		case abi.AttrBool:
			a.Value = abi.AttrValue{Kind: kind, Bool: r.boolean()}
		case abi.AttrU64:
			a.Value = abi.AttrValue{Kind: kind, U64: r.u64()}
		case abi.AttrS64:
			a.Value = abi.AttrValue{Kind: kind, S64: r.s64()}
		case abi.AttrFloat:
			a.Value = abi.AttrValue{Kind: kind, Float: math.Float64frombits(r.u64())}
		case abi.AttrString:
			a.Value = abi.AttrValue{Kind: kind, Str: r.str()}
		default:
			r.fail("unknown attribute kind")
		}
		attrs = append(attrs, a)
	}
	return attrs
}

func (r *record) mappings() *abi.EnumMappings {
	n := r.u32()
	m := &abi.EnumMappings{}
	for i := uint32(0); i < n && r.err == nil; i++ {
		begin, end := r.s64(), r.s64()
		m.Mappings = append(m.Mappings, abi.EnumMapping{Begin: begin, End: end, Label: r.str()})
	}
	return m
}
