package proto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Version8Bit is the fixed 4-byte version encoding used by the handshake
// frame: a 16-bit build number followed by one-byte minor and major
// components.
type Version8Bit struct {
	Build uint16
	Minor byte
	Major byte
}

func (v Version8Bit) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}

func (v Version8Bit) bytes() [4]byte {
	var b [4]byte
	binary.LittleEndian.PutUint16(b[0:2], v.Build)
	b[2] = v.Minor
	b[3] = v.Major
	return b
}

func decodeVersion8Bit(b []byte) Version8Bit {
	return Version8Bit{
		Build: binary.LittleEndian.Uint16(b[0:2]),
		Minor: b[2],
		Major: b[3],
	}
}

// ServerVersion is the version this server advertises as both its current
// and minimum supported client version.
var ServerVersion = Version8Bit{Major: 2, Minor: 0, Build: 0}

// VersionFrameSize is the total size of the handshake frame, including its
// own 4-byte size header.
const VersionFrameSize = 12

// WriteVersionFrame writes the fixed 12-byte handshake frame: a 4-byte
// little-endian payload size (always 8), the current version, and the
// minimum version. Unlike every other frame on the wire, this carries no
// outer length-prefixed tagged-object envelope — it is sent unsolicited,
// server to client, immediately after accept.
func WriteVersionFrame(w io.Writer, current, minimum Version8Bit) error {
	var buf [VersionFrameSize]byte
	binary.LittleEndian.PutUint32(buf[0:4], 8)
	cb := current.bytes()
	copy(buf[4:8], cb[:])
	mb := minimum.bytes()
	copy(buf[8:12], mb[:])
	_, err := w.Write(buf[:])
	return err
}

// ParseVersionFrame decodes a 12-byte handshake frame previously written by
// WriteVersionFrame. The server never depends on interpreting a client-sent
// version frame for anything beyond logging, so a malformed frame is simply
// reported as an error.
func ParseVersionFrame(buf []byte) (current, minimum Version8Bit, err error) {
	if len(buf) != VersionFrameSize {
		return Version8Bit{}, Version8Bit{}, fmt.Errorf("proto: version frame must be %d bytes, got %d", VersionFrameSize, len(buf))
	}
	size := binary.LittleEndian.Uint32(buf[0:4])
	if size != 8 {
		return Version8Bit{}, Version8Bit{}, fmt.Errorf("proto: version frame declares size %d, want 8", size)
	}
	current = decodeVersion8Bit(buf[4:8])
	minimum = decodeVersion8Bit(buf[8:12])
	return current, minimum, nil
}
