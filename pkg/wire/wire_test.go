package wire

import (
	"bytes"
	"encoding/binary"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tracekit/tracepoint/pkg/abi"
)

// testDescriptions covers every descriptor kind the stream can carry.
// Byte orders are explicit: the host placeholder is resolved on encode and
// would not round-trip verbatim.
func testDescriptions() []*abi.EventDescription {
	states := abi.Mappings(
		abi.MapValue(0, "stopped"),
		abi.MapRange(1, 5, "running"),
	)
	variant := abi.VariantOf(
		abi.IntegerT(4, false, abi.LittleEndian),
		abi.Case(0, 10, abi.IntegerT(8, true, abi.LittleEndian)),
		abi.Case(11, 20, abi.NullT()),
	)
	gatherStruct := abi.GatherStructOf(16, abi.GatherLayout{Access: abi.ThroughPointer},
		abi.F("x", abi.GatherIntegerT(4, false, abi.LittleEndian, abi.GatherLayout{Offset: 0})),
		abi.F("flags", abi.GatherIntegerT(4, false, abi.BigEndian, abi.GatherLayout{
			Offset: 4, OffsetBits: 3, LenBits: 5,
		})),
	)

	return []*abi.EventDescription{
		abi.NewEventDescription("net", "packet", abi.LevelInfo, []abi.Field{
			abi.F("proto", abi.EnumOf(abi.IntegerT(4, false, abi.LittleEndian), states)),
			abi.F("len", abi.IntegerT(8, false, abi.BigEndian)),
			abi.F("host", &abi.Type{Kind: abi.KindString, String: &abi.StringType{UnitSize: 1, Order: abi.LittleEndian}}),
			abi.F("payload", abi.VLAOf(abi.ByteT())),
		}, abi.WithAttributes(abi.StringAttr("subsystem", "network"), abi.U64Attr("mtu", 1500))),

		abi.NewEventDescription("sched", "switch", abi.LevelDebug, []abi.Field{
			abi.F("prev", gatherStruct),
			abi.F("state", variant),
			abi.F("mask", abi.BitmapOf(abi.ArrayOf(abi.ByteT(), 4), states)),
			abi.F("prio", abi.OptionalOf(abi.IntegerT(2, true, abi.LittleEndian))),
			abi.F("pad", abi.NullT()),
			abi.F("vals", abi.GatherVLAOf(
				abi.GatherIntegerT(4, false, abi.LittleEndian, abi.GatherLayout{}),
				abi.GatherIntegerT(1, false, abi.LittleEndian, abi.GatherLayout{}),
				abi.GatherLayout{Offset: 8},
			)),
		}),

		abi.NewEventDescription("log", "message", abi.LevelError, []abi.Field{
			abi.F("level", abi.GatherEnumOf(
				abi.GatherIntegerT(4, true, abi.LittleEndian, abi.GatherLayout{}), states)),
			abi.F("ok", &abi.Type{Kind: abi.KindBool, Bool: &abi.BoolType{Size: 1, Order: abi.LittleEndian}}),
			abi.F("load", &abi.Type{Kind: abi.KindFloat, Float: &abi.FloatType{Size: 8, Order: abi.LittleEndian}}),
			abi.F("extra", abi.DynamicT()),
		}, abi.WithVariadic()),
	}
}

// TestEncodeDecode round-trips every descriptor kind and checks the
// decoded descriptions match the originals exactly.
func TestEncodeDecode(t *testing.T) {
	descs := testDescriptions()

	var stream bytes.Buffer
	enc := NewEncoder(&stream)
	for _, desc := range descs {
		require.NoError(t, enc.Encode(desc))
	}

	dec := NewDecoder(bytes.NewReader(stream.Bytes()))
	for _, want := range descs {
		got, err := dec.Decode()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := dec.Decode()
	require.Equal(t, io.EOF, err)
}

func TestDecodeBadMagic(t *testing.T) {
	dec := NewDecoder(bytes.NewReader([]byte("not a tracepoint")))
	_, err := dec.Decode()
	require.ErrorIs(t, err, ErrBadMagic)
}

func TestDecodeTruncated(t *testing.T) {
	var stream bytes.Buffer
	enc := NewEncoder(&stream)
	require.NoError(t, enc.Encode(testDescriptions()[0]))

	// Every proper prefix of the stream beyond the magic fails cleanly.
	for n := len(magic) + 1; n < stream.Len(); n++ {
		dec := NewDecoder(bytes.NewReader(stream.Bytes()[:n]))
		_, err := dec.Decode()
		require.Error(t, err, "prefix of %d bytes", n)
	}
}

// TestDecodeSkipsUnknownRecords checks forward compatibility: record kinds
// from a newer stream version are skipped, not failed on.
func TestDecodeSkipsUnknownRecords(t *testing.T) {
	var stream bytes.Buffer
	enc := NewEncoder(&stream)
	desc := testDescriptions()[0]
	require.NoError(t, enc.Encode(desc))

	// Splice an unknown record between the magic and the event record.
	unknown := []byte{99, 1, 2, 3}
	var spliced bytes.Buffer
	spliced.Write(stream.Bytes()[:len(magic)])
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], uint32(len(unknown)))
	spliced.Write(prefix[:])
	spliced.Write(unknown)
	spliced.Write(stream.Bytes()[len(magic):])

	dec := NewDecoder(bytes.NewReader(spliced.Bytes()))
	got, err := dec.Decode()
	require.NoError(t, err)
	require.Equal(t, desc, got)
}

func TestDecodeOversizedRecord(t *testing.T) {
	var stream bytes.Buffer
	stream.Write(magic)
	var prefix [4]byte
	binary.LittleEndian.PutUint32(prefix[:], maxRecordSize+1)
	stream.Write(prefix[:])

	dec := NewDecoder(bytes.NewReader(stream.Bytes()))
	_, err := dec.Decode()
	require.ErrorIs(t, err, ErrMalformed)
}

// TestStickyError checks that an encoder failure keeps failing.
func TestStickyError(t *testing.T) {
	enc := NewEncoder(failWriter{})
	desc := testDescriptions()[0]
	err := enc.Encode(desc)
	require.Error(t, err)
	require.Equal(t, err, enc.Encode(desc))
}

type failWriter struct{}

func (failWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }
