package abi

import (
	"encoding/binary"
	"fmt"
)

// NativeOrder is the concrete byte order of this host.
var NativeOrder = func() ByteOrder {
	var b [2]byte
	binary.NativeEndian.PutUint16(b[:], 1)
	if b[0] == 1 {
		return LittleEndian
	}
	return BigEndian
}()

// Resolve replaces HostOrder with the concrete order of this host.
func (o ByteOrder) Resolve() ByteOrder {
	if o == HostOrder {
		return NativeOrder
	}
	return o
}

// Memory is the single primitive through which gather descriptors read
// application memory: n bytes at a validated address from a bounds-known
// base. Everything above it (bit extraction, byte-order handling, struct
// and array iteration) operates on byte slices it already owns.
type Memory interface {
	// Bytes returns n bytes starting at addr, or an error if the range is
	// not readable.
	Bytes(addr, n uint64) ([]byte, error)
}

// BufferMemory exposes a byte slice as a Memory. Base is the address of
// Data[0]; reads outside [Base, Base+len(Data)) fail.
type BufferMemory struct {
	Base uint64
	Data []byte
}

// Bytes implements Memory.
func (m *BufferMemory) Bytes(addr, n uint64) ([]byte, error) {
	if addr < m.Base {
		return nil, fmt.Errorf("read of %d bytes at %#x before base %#x", n, addr, m.Base)
	}
	off := addr - m.Base
	if off > uint64(len(m.Data)) || n > uint64(len(m.Data))-off {
		return nil, fmt.Errorf("read of %d bytes at %#x past end of %d byte buffer", n, addr, len(m.Data))
	}
	return m.Data[off : off+n], nil
}
