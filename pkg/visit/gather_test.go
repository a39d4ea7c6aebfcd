package visit

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracekit/tracepoint/pkg/abi"
)

const gatherTestBase = 0x1000

func gatherMem(data []byte) *abi.BufferMemory {
	return &abi.BufferMemory{Base: gatherTestBase, Data: data}
}

func TestGatherInteger(t *testing.T) {
	buf := make([]byte, 12)
	binary.NativeEndian.PutUint32(buf[0:], 0xdeadbeef)
	binary.NativeEndian.PutUint32(buf[4:], 42)
	mem := gatherMem(buf)

	t.Run("Direct", func(t *testing.T) {
		rec := &recorder{}
		consumed, err := Gather(abi.GatherU32(0), mem, gatherTestBase, rec)
		require.NoError(t, err)
		require.Equal(t, uint64(4), consumed)
		require.Equal(t, []string{"integer 3735928559"}, rec.calls)
	})

	t.Run("Offset", func(t *testing.T) {
		rec := &recorder{}
		consumed, err := Gather(abi.GatherU32(4), mem, gatherTestBase, rec)
		require.NoError(t, err)
		require.Equal(t, uint64(4), consumed)
		require.Equal(t, []string{"integer 42"}, rec.calls)
	})

	t.Run("ThroughPointer", func(t *testing.T) {
		// The pointer cell holds the address of the value; the consumed
		// size is the pointer's, not the value's.
		buf := make([]byte, 16)
		binary.NativeEndian.PutUint64(buf[0:], gatherTestBase+12)
		binary.NativeEndian.PutUint32(buf[12:], 7)
		typ := abi.GatherIntegerT(4, false, abi.HostOrder, abi.GatherLayout{
			Access: abi.ThroughPointer,
		})

		rec := &recorder{}
		consumed, err := Gather(typ, gatherMem(buf), gatherTestBase, rec)
		require.NoError(t, err)
		require.Equal(t, uint64(abi.PointerSize), consumed)
		require.Equal(t, []string{"integer 7"}, rec.calls)
	})

	t.Run("ResolveAddress", func(t *testing.T) {
		// The stored pointer belongs to a foreign address space; the
		// visitor translates it before the dereference.
		buf := make([]byte, 16)
		binary.NativeEndian.PutUint64(buf[0:], 0x9000_0000)
		binary.NativeEndian.PutUint32(buf[8:], 99)
		typ := abi.GatherIntegerT(4, false, abi.HostOrder, abi.GatherLayout{
			Access: abi.ThroughPointer,
		})

		var seen uint64
		rec := &recorder{translate: func(addr uint64) uint64 {
			seen = addr
			return gatherTestBase + 8
		}}
		consumed, err := Gather(typ, gatherMem(buf), gatherTestBase, rec)
		require.NoError(t, err)
		require.Equal(t, uint64(abi.PointerSize), consumed)
		require.Equal(t, uint64(0x9000_0000), seen)
		require.Equal(t, []string{"integer 99"}, rec.calls)
	})
}

func TestGatherBitField(t *testing.T) {
	// Storage bits 0b0101_0000: the field at [4, 7) holds 0b101.
	buf := []byte{0x50, 0, 0, 0}
	mem := gatherMem(buf)
	layout := abi.GatherLayout{OffsetBits: 4, LenBits: 3}

	t.Run("Unsigned", func(t *testing.T) {
		rec := &recorder{}
		consumed, err := Gather(abi.GatherIntegerT(4, false, abi.LittleEndian, layout), mem, gatherTestBase, rec)
		require.NoError(t, err)
		require.Equal(t, uint64(4), consumed)
		require.Equal(t, []string{"integer 5"}, rec.calls)
	})

	t.Run("SignExtended", func(t *testing.T) {
		// 0b101 as a 3-bit two's complement value is -3.
		rec := &recorder{}
		_, err := Gather(abi.GatherIntegerT(4, true, abi.LittleEndian, layout), mem, gatherTestBase, rec)
		require.NoError(t, err)
		require.Equal(t, []string{"integer -3"}, rec.calls)
	})

	t.Run("Bool", func(t *testing.T) {
		rec := &recorder{}
		_, err := Gather(abi.GatherBoolT(4, abi.GatherLayout{OffsetBits: 6, LenBits: 1}), mem, gatherTestBase, rec)
		require.NoError(t, err)
		require.Equal(t, []string{"bool true"}, rec.calls)
	})

	t.Run("ExceedsStorage", func(t *testing.T) {
		typ := abi.GatherIntegerT(4, false, abi.LittleEndian, abi.GatherLayout{OffsetBits: 30, LenBits: 8})
		require.PanicsWithError(t,
			"abi contract: bit field [30, 38) exceeds 32 bit storage",
			func() { Gather(typ, mem, gatherTestBase, &recorder{}) })
	})

	t.Run("OffsetBeyondStorage", func(t *testing.T) {
		// A full-width field whose offset already exceeds the storage,
		// as a malformed wire-decoded descriptor could declare.
		typ := abi.GatherIntegerT(4, false, abi.LittleEndian, abi.GatherLayout{OffsetBits: 40})
		require.PanicsWithError(t,
			"abi contract: bit field [40, 32) exceeds 32 bit storage",
			func() { Gather(typ, mem, gatherTestBase, &recorder{}) })
	})
}

func TestGatherByteOrder(t *testing.T) {
	mem := gatherMem([]byte{0x12, 0x34})

	t.Run("LittleEndian", func(t *testing.T) {
		rec := &recorder{}
		_, err := Gather(abi.GatherIntegerT(2, false, abi.LittleEndian, abi.GatherLayout{}), mem, gatherTestBase, rec)
		require.NoError(t, err)
		require.Equal(t, []string{"integer 13330"}, rec.calls)
	})

	t.Run("BigEndian", func(t *testing.T) {
		rec := &recorder{}
		_, err := Gather(abi.GatherIntegerT(2, false, abi.BigEndian, abi.GatherLayout{}), mem, gatherTestBase, rec)
		require.NoError(t, err)
		require.Equal(t, []string{"integer 4660"}, rec.calls)
	})
}

func TestGatherStruct(t *testing.T) {
	// struct { u32 a; /* 4 bytes padding */ s64 b; } laid out over 16 bytes.
	buf := make([]byte, 16)
	b := int64(-9)
	binary.NativeEndian.PutUint32(buf[0:], 7)
	binary.NativeEndian.PutUint64(buf[8:], uint64(b))
	typ := abi.GatherStructOf(16, abi.GatherLayout{},
		abi.F("a", abi.GatherU32(0)),
		abi.F("b", abi.GatherS64(8)),
	)

	rec := &recorder{}
	consumed, err := Gather(typ, gatherMem(buf), gatherTestBase, rec)
	require.NoError(t, err)
	require.Equal(t, uint64(16), consumed)
	require.Equal(t, []string{
		"before-struct 2",
		"before-field a", "integer 7", "after-field a",
		"before-field b", "integer -9", "after-field b",
		"after-struct",
	}, rec.calls)
}

func TestGatherArray(t *testing.T) {
	buf := make([]byte, 12)
	for i, v := range []uint32{10, 20, 30} {
		binary.NativeEndian.PutUint32(buf[i*4:], v)
	}
	typ := abi.GatherArrayOf(abi.GatherU32(0), 3, abi.GatherLayout{})

	rec := &recorder{}
	consumed, err := Gather(typ, gatherMem(buf), gatherTestBase, rec)
	require.NoError(t, err)
	require.Equal(t, uint64(12), consumed)
	require.Equal(t, []string{
		"before-array 3",
		"before-elem 0", "integer 10", "after-elem 0",
		"before-elem 1", "integer 20", "after-elem 1",
		"before-elem 2", "integer 30", "after-elem 2",
		"after-array",
	}, rec.calls)
}

func TestGatherVLA(t *testing.T) {
	// A u8 length prefix followed by that many contiguous u32 elements.
	buf := make([]byte, 9)
	buf[0] = 2
	binary.NativeEndian.PutUint32(buf[1:], 100)
	binary.NativeEndian.PutUint32(buf[5:], 200)
	typ := abi.GatherVLAOf(abi.GatherU32(0), abi.GatherU8(0), abi.GatherLayout{})

	rec := &recorder{}
	consumed, err := Gather(typ, gatherMem(buf), gatherTestBase, rec)
	require.NoError(t, err)
	require.Equal(t, uint64(9), consumed)
	require.Equal(t, []string{
		"before-vla 2",
		"before-elem 0", "integer 100", "after-elem 0",
		"before-elem 1", "integer 200", "after-elem 1",
		"after-vla",
	}, rec.calls)
}

func TestGatherVLANesting(t *testing.T) {
	vla := abi.GatherVLAOf(abi.GatherU32(0), abi.GatherU8(0), abi.GatherLayout{})
	mem := gatherMem(make([]byte, 64))

	t.Run("InArray", func(t *testing.T) {
		typ := abi.GatherArrayOf(vla, 2, abi.GatherLayout{})
		require.PanicsWithError(t,
			"abi contract: gather VLA nested in gather array",
			func() { Gather(typ, mem, gatherTestBase, &recorder{}) })
	})

	t.Run("InVLA", func(t *testing.T) {
		typ := abi.GatherVLAOf(vla, abi.GatherU8(0), abi.GatherLayout{})
		require.PanicsWithError(t,
			"abi contract: gather VLA nested in gather VLA",
			func() { Gather(typ, mem, gatherTestBase, &recorder{}) })
	})
}

func TestGatherString(t *testing.T) {
	t.Run("Direct", func(t *testing.T) {
		mem := gatherMem([]byte("hi\x00"))
		rec := &recorder{}
		consumed, err := Gather(abi.GatherStringT(abi.GatherLayout{}), mem, gatherTestBase, rec)
		require.NoError(t, err)
		// The terminator counts toward the consumed size.
		require.Equal(t, uint64(3), consumed)
		require.Equal(t, []string{"string hi"}, rec.calls)
	})

	t.Run("ThroughPointer", func(t *testing.T) {
		buf := make([]byte, 16)
		binary.NativeEndian.PutUint64(buf[0:], gatherTestBase+8)
		copy(buf[8:], "ok\x00")
		typ := abi.GatherStringT(abi.GatherLayout{Access: abi.ThroughPointer})

		rec := &recorder{}
		consumed, err := Gather(typ, gatherMem(buf), gatherTestBase, rec)
		require.NoError(t, err)
		require.Equal(t, uint64(abi.PointerSize), consumed)
		require.Equal(t, []string{"string ok"}, rec.calls)
	})
}

func TestGatherEnum(t *testing.T) {
	m := abi.Mappings(
		abi.MapValue(1, "running"),
		abi.MapRange(2, 5, "stopped"),
	)
	buf := make([]byte, 4)
	binary.NativeEndian.PutUint32(buf, 3)
	typ := abi.GatherEnumOf(abi.GatherU32(0), m)

	rec := &recorder{}
	consumed, err := Gather(typ, gatherMem(buf), gatherTestBase, rec)
	require.NoError(t, err)
	require.Equal(t, uint64(4), consumed)
	require.Equal(t, []string{
		"before-enum [stopped]",
		"integer 3",
		"after-enum",
	}, rec.calls)
}

func TestGatherOutOfBounds(t *testing.T) {
	mem := gatherMem([]byte{1, 2})
	_, err := Gather(abi.GatherU32(0), mem, gatherTestBase, &recorder{})
	require.Error(t, err)
}
