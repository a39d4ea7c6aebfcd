package visit

import (
	"encoding/binary"
	"math"
	"unicode/utf16"

	"github.com/tracekit/tracepoint/pkg/abi"
)

// Gather decodes a gather descriptor directly out of memory, rooted at the
// given base address. It returns the number of bytes consumed at the base
// position: the pointer size if the descriptor reads through a pointer,
// otherwise the value's natural size, so a containing struct, array or VLA
// can advance its cursor.
func Gather(t *abi.Type, mem abi.Memory, addr uint64, v Visitor, opts ...Option) (uint64, error) {
	w := newWalker(v, opts)
	n, err := w.gather(t, mem, addr)
	return n, sieve(err)
}

// gather dispatches on the gather descriptor kind.
func (w *walker) gather(t *abi.Type, mem abi.Memory, base uint64) (uint64, error) {
	if !t.Kind.IsGather() {
		fatalf("%s descriptor in gather walk", t.Kind)
	}

	switch t.Kind {
	case abi.KindGatherBool:
		size := uint64(t.Bool.Size)
		data, consumed, err := w.gatherRead(t.Gather, mem, base, size)
		if err != nil {
			return 0, err
		}
		bits := extractBits(data, t.Bool.Order, t.Gather.OffsetBits, t.Gather.LenBits, false)
		w.vis.Bool(bits != 0)
		return consumed, nil

	case abi.KindGatherByte:
		data, consumed, err := w.gatherRead(t.Gather, mem, base, 1)
		if err != nil {
			return 0, err
		}
		w.vis.Byte(data[0])
		return consumed, nil

	case abi.KindGatherInteger:
		it := t.Integer
		data, consumed, err := w.gatherRead(t.Gather, mem, base, uint64(it.Size))
		if err != nil {
			return 0, err
		}
		bits := extractBits(data, it.Order, t.Gather.OffsetBits, t.Gather.LenBits, it.Signed)
		w.vis.Integer(IntegerValue{Bits: bits, Size: it.Size, Signed: it.Signed})
		return consumed, nil

	case abi.KindGatherFloat:
		ft := t.Float
		data, consumed, err := w.gatherRead(t.Gather, mem, base, uint64(ft.Size))
		if err != nil {
			return 0, err
		}
		bits := registerView(data, ft.Order)
		switch ft.Size {
		case 4:
			w.vis.Float(float64(math.Float32frombits(uint32(bits))))
		case 8:
			w.vis.Float(math.Float64frombits(bits))
		default:
			fatalf("gather float of size %d", ft.Size)
		}
		return consumed, nil

	case abi.KindGatherString:
		return w.gatherString(t, mem, base)

	case abi.KindGatherStruct:
		st := t.Struct
		eff, ptrConsumed, err := w.gatherBase(t.Gather, mem, base)
		if err != nil {
			return 0, err
		}
		w.vis.BeforeStruct(len(st.Fields))
		for i := range st.Fields {
			f := &st.Fields[i]
			// Field offsets locate each field relative to the struct
			// base; the cursor does not advance between fields.
			w.vis.BeforeField(f.Name)
			_, err := w.gather(f.Type, mem, eff)
			err = sieve(err)
			w.vis.AfterField(f.Name)
			if err != nil {
				return 0, err
			}
		}
		w.vis.AfterStruct()
		if ptrConsumed != 0 {
			return ptrConsumed, nil
		}
		return st.Size, nil

	case abi.KindGatherArray:
		at := t.Array
		if at.Elem.Kind == abi.KindGatherVLA {
			// The element stride of a gather VLA is not statically known,
			// so it cannot nest directly inside another gather sequence.
			fatalf("gather VLA nested in gather array")
		}
		eff, ptrConsumed, err := w.gatherBase(t.Gather, mem, base)
		if err != nil {
			return 0, err
		}
		w.vis.BeforeArray(int(at.Length))
		cursor := eff
		for i := 0; i < int(at.Length); i++ {
			w.vis.BeforeElem(i)
			n, err := w.gather(at.Elem, mem, cursor)
			err = sieve(err)
			w.vis.AfterElem(i)
			if err != nil {
				return 0, err
			}
			cursor += n
		}
		w.vis.AfterArray()
		if ptrConsumed != 0 {
			return ptrConsumed, nil
		}
		return cursor - eff, nil

	case abi.KindGatherVLA:
		vt := t.VLA
		if vt.Elem.Kind == abi.KindGatherVLA {
			fatalf("gather VLA nested in gather VLA")
		}
		if vt.Length == nil {
			fatalf("gather VLA without length descriptor")
		}
		eff, ptrConsumed, err := w.gatherBase(t.Gather, mem, base)
		if err != nil {
			return 0, err
		}
		// The runtime length is read first; the elements follow it
		// contiguously.
		length, lenConsumed, err := w.captureGatherInt(vt.Length, mem, eff)
		if err != nil {
			return 0, err
		}
		n := int(length.Uint64())
		w.vis.BeforeVLA(n)
		cursor := eff + lenConsumed
		for i := 0; i < n; i++ {
			w.vis.BeforeElem(i)
			c, err := w.gather(vt.Elem, mem, cursor)
			err = sieve(err)
			w.vis.AfterElem(i)
			if err != nil {
				return 0, err
			}
			cursor += c
		}
		w.vis.AfterVLA()
		if ptrConsumed != 0 {
			return ptrConsumed, nil
		}
		return cursor - eff, nil

	case abi.KindGatherEnum:
		et := t.Enum
		val, _, err := w.captureGatherInt(et.Elem, mem, base)
		if err != nil {
			return 0, err
		}
		w.vis.BeforeEnum(labels(et.Mappings, val))
		consumed, err := w.gather(et.Elem, mem, base)
		if err := sieve(err); err != nil {
			return 0, err
		}
		w.vis.AfterEnum()
		return consumed, nil

	default:
		fatalf("unhandled gather kind %s", t.Kind)
		return 0, nil
	}
}

// gatherBase computes the effective address of a gather descriptor:
// base + offset, with one more dereference for ThroughPointer. The second
// return is the pointer size when a pointer was consumed at the original
// position, 0 otherwise.
func (w *walker) gatherBase(l *abi.GatherLayout, mem abi.Memory, base uint64) (uint64, uint64, error) {
	eff := base + l.Offset
	if l.Access != abi.ThroughPointer {
		return eff, 0, nil
	}
	raw, err := mem.Bytes(eff, abi.PointerSize)
	if err != nil {
		return 0, 0, err
	}
	// Stored addresses are only meaningful after translation; the visitor
	// resolves them for foreign address spaces.
	ptr := binary.NativeEndian.Uint64(raw)
	return w.vis.ResolveAddress(ptr), abi.PointerSize, nil
}

// gatherRead reads a scalar's storage unit and returns its bytes plus the
// bytes consumed at the base position (the pointer size for ThroughPointer,
// the storage size otherwise).
func (w *walker) gatherRead(l *abi.GatherLayout, mem abi.Memory, base, size uint64) ([]byte, uint64, error) {
	eff, ptrConsumed, err := w.gatherBase(l, mem, base)
	if err != nil {
		return nil, 0, err
	}
	data, err := mem.Bytes(eff, size)
	if err != nil {
		return nil, 0, err
	}
	if ptrConsumed != 0 {
		return data, ptrConsumed, nil
	}
	return data, size, nil
}

// gatherString scans zero-terminated code units out of memory.
func (w *walker) gatherString(t *abi.Type, mem abi.Memory, base uint64) (uint64, error) {
	st := t.String
	unit := uint64(st.UnitSize)
	if unit == 0 {
		unit = 1
	}
	eff, ptrConsumed, err := w.gatherBase(t.Gather, mem, base)
	if err != nil {
		return 0, err
	}

	var units []uint64
	for i := uint64(0); ; i++ {
		data, err := mem.Bytes(eff+i*unit, unit)
		if err != nil {
			return 0, err
		}
		u := registerView(data, st.Order)
		if u == 0 {
			break
		}
		units = append(units, u)
	}

	var s string
	switch unit {
	case 1:
		b := make([]byte, len(units))
		for i, u := range units {
			b[i] = byte(u)
		}
		s = string(b)
	case 2:
		u16 := make([]uint16, len(units))
		for i, u := range units {
			u16[i] = uint16(u)
		}
		s = string(utf16.Decode(u16))
	case 4:
		r := make([]rune, len(units))
		for i, u := range units {
			r[i] = rune(u)
		}
		s = string(r)
	default:
		fatalf("gather string with unit size %d", unit)
	}
	w.vis.Str(s)

	if ptrConsumed != 0 {
		return ptrConsumed, nil
	}
	return (uint64(len(units)) + 1) * unit, nil
}

// registerView returns the value bytes as a little-endian register view,
// reversing first when the declared order is big-endian.
func registerView(data []byte, order abi.ByteOrder) uint64 {
	var buf [8]byte
	switch order.Resolve() {
	case abi.BigEndian:
		for i, b := range data {
			buf[len(data)-1-i] = b
		}
	default:
		copy(buf[:], data)
	}
	return binary.LittleEndian.Uint64(buf[:])
}

// extractBits extracts lenBits bits starting at offsetBits from the
// register view of the stored bytes, sign-extending when signed. A zero
// lenBits means the full storage width.
func extractBits(data []byte, order abi.ByteOrder, offsetBits, lenBits uint16, signed bool) uint64 {
	total := len(data) * 8
	off, length := int(offsetBits), int(lenBits)
	if length == 0 {
		length = total - off
	}
	if length <= 0 || off+length > total {
		fatalf("bit field [%d, %d) exceeds %d bit storage", off, off+length, total)
	}
	v := registerView(data, order) >> off
	if length < 64 {
		v &= 1<<length - 1
		if signed && v>>(length-1)&1 == 1 {
			v |= ^uint64(0) << length
		}
	}
	return v
}
