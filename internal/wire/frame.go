package wire

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// FrameBuffer accumulates bytes read from a connection and slices out
// whole length-prefixed frames as they become available. It is owned by a
// single reader goroutine — nothing here is safe for concurrent use.
type FrameBuffer struct {
	buf       []byte
	maxPacket int
}

// NewFrameBuffer returns an empty buffer that rejects any frame whose
// declared length exceeds maxPacket.
func NewFrameBuffer(maxPacket int) *FrameBuffer {
	return &FrameBuffer{maxPacket: maxPacket}
}

// Append adds newly read bytes to the buffer.
func (f *FrameBuffer) Append(p []byte) {
	f.buf = append(f.buf, p...)
}

// Next returns the payload of the next complete frame (everything after
// the 4-byte length prefix) and removes it from the buffer. ok is false
// when there isn't a full frame buffered yet — the caller should read more
// bytes and try again. A declared length exceeding maxPacket is a fatal
// framing error: the length prefix itself cannot be trusted, so the
// caller should terminate the connection rather than try to resync.
func (f *FrameBuffer) Next() (payload []byte, ok bool, err error) {
	if len(f.buf) < 4 {
		return nil, false, nil
	}
	length := binary.LittleEndian.Uint32(f.buf[0:4])
	if f.maxPacket > 0 && int(length) > f.maxPacket {
		return nil, false, fmt.Errorf("wire: frame length %d exceeds max packet size %d", length, f.maxPacket)
	}
	total := 4 + int(length)
	if len(f.buf) < total {
		return nil, false, nil
	}
	payload = make([]byte, length)
	copy(payload, f.buf[4:total])
	f.buf = f.buf[total:]
	return payload, true, nil
}

// WriteFrame serializes obj as a tagged object and writes it with its
// 4-byte little-endian length prefix — the outer framing every
// non-handshake message uses.
func WriteFrame(reg *ClassRegistry, obj Encodable) ([]byte, error) {
	var body bytes.Buffer
	c := NewCodec(&body, &body)
	if err := WriteObject(c, reg, obj); err != nil {
		return nil, err
	}

	out := make([]byte, 4+body.Len())
	binary.LittleEndian.PutUint32(out[0:4], uint32(body.Len()))
	copy(out[4:], body.Bytes())
	return out, nil
}

// DecodeFramePayload decodes a single frame's payload (as returned by
// FrameBuffer.Next) into a tagged object.
func DecodeFramePayload(reg *ClassRegistry, payload []byte) (obj Decodable, classID int16, err error) {
	c := NewCodec(bytes.NewReader(payload), nil)
	return ReadObject(c, reg)
}
