// Package wire serializes event descriptions in a binary-stable form, so
// an external reader can decode captured data without linking the
// application that produced it.
//
// The stream starts with a 16 byte magic header. Every record is prefixed
// with a little-endian u32 payload size, so a reader can skip record kinds
// it does not know. All multi-byte fields are little-endian fixed width;
// the host byte order of scalar descriptors is resolved to a concrete
// order on encode, since the reader may run on a different-endianness
// host. New shapes are added only behind new kind tags, never by widening
// an existing record.
package wire

import (
	"errors"

	"github.com/tracekit/tracepoint/pkg/abi"
)

// magic is the stream header. The trailing digit is the stream format
// version.
var magic = func() []byte {
	m := make([]byte, 16)
	copy(m, "tracepoint 1")
	return m
}()

// Record kinds. A decoder skips kinds it does not recognize.
const (
	recordEvent byte = 1
)

// maxRecordSize bounds one record's payload, so a corrupt size prefix
// cannot force a huge allocation.
const maxRecordSize = 1 << 20

// maxKind is the highest descriptor kind tag this stream version emits.
const maxKind = byte(abi.KindGatherEnum)

var (
	// ErrBadMagic reports a stream that does not start with the header.
	ErrBadMagic = errors.New("wire: bad magic")
	// ErrMalformed reports a record that cannot be parsed.
	ErrMalformed = errors.New("wire: malformed record")
)
