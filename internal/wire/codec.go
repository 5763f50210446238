// Package wire implements the little-endian, length-prefixed, class-ID
// tagged object codec used by every frame on the BrassMonkey registry
// protocol's TCP channel.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Codec reads and writes the primitive and composite encodings shared by
// every message type. A Codec wraps a single connection's byte stream and
// is not safe for concurrent use — each session owns exactly one reader
// and one writer side, never both at once from different goroutines.
type Codec struct {
	r *bufio.Reader
	w io.Writer
}

// NewCodec wraps r and w for primitive and object reads/writes.
func NewCodec(r io.Reader, w io.Writer) *Codec {
	return &Codec{r: bufio.NewReader(r), w: w}
}

func (c *Codec) ReadByte() (byte, error) {
	return c.r.ReadByte()
}

func (c *Codec) ReadBool() (bool, error) {
	b, err := c.r.ReadByte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (c *Codec) ReadInt8() (int8, error) {
	b, err := c.r.ReadByte()
	return int8(b), err
}

func (c *Codec) ReadInt16() (int16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(c.r, buf[:]); err != nil {
		return 0, err
	}
	return int16(binary.LittleEndian.Uint16(buf[:])), nil
}

func (c *Codec) ReadUint16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(c.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf[:]), nil
}

func (c *Codec) ReadInt32() (int32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.r, buf[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(buf[:])), nil
}

func (c *Codec) ReadUint32() (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(c.r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(buf[:]), nil
}

func (c *Codec) ReadFloat32() (float32, error) {
	bits, err := c.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

func (c *Codec) ReadFloat64() (float64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(c.r, buf[:]); err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(buf[:])), nil
}

// ReadUTF reads a two-byte unsigned length prefix followed by that many
// bytes of UTF-8 text.
func (c *Codec) ReadUTF() (string, error) {
	n, err := c.ReadUint16()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(c.r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (c *Codec) WriteByte(b byte) error {
	_, err := c.w.Write([]byte{b})
	return err
}

func (c *Codec) WriteBool(v bool) error {
	if v {
		return c.WriteByte(1)
	}
	return c.WriteByte(0)
}

func (c *Codec) WriteInt8(v int8) error {
	return c.WriteByte(byte(v))
}

func (c *Codec) WriteInt16(v int16) error {
	return c.WriteUint16(uint16(v))
}

func (c *Codec) WriteUint16(v uint16) error {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	_, err := c.w.Write(buf[:])
	return err
}

func (c *Codec) WriteInt32(v int32) error {
	return c.WriteUint32(uint32(v))
}

func (c *Codec) WriteUint32(v uint32) error {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, err := c.w.Write(buf[:])
	return err
}

func (c *Codec) WriteFloat32(v float32) error {
	return c.WriteUint32(math.Float32bits(v))
}

func (c *Codec) WriteFloat64(v float64) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
	_, err := c.w.Write(buf[:])
	return err
}

// WriteUTF writes the UTF-8 byte length of s as an int16 followed by its
// bytes. An empty string writes a zero length with no payload.
func (c *Codec) WriteUTF(s string) error {
	b := []byte(s)
	if len(b) > math.MaxInt16 {
		return fmt.Errorf("wire: UTF string too long: %d bytes", len(b))
	}
	if err := c.WriteUint16(uint16(len(b))); err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}
	_, err := c.w.Write(b)
	return err
}

// Encodable is implemented by every message type that can be carried as a
// tagged object on the wire.
type Encodable interface {
	Encode(c *Codec) error
}

// Decodable is implemented by every message type that can be read back from
// a tagged object on the wire. Decode is called on a zero-valued instance.
type Decodable interface {
	Decode(c *Codec) error
}

// ReadObject reads a tagged object per the wire contract: a UTF tag (""
// for null, "@" for object), an int16 class ID, and — unless the result is
// null — the class's decoded payload. An unregistered class ID decodes to
// (nil, classID, nil): the caller should log a warning and continue, not treat
// this as a fatal error.
func ReadObject(c *Codec, reg *ClassRegistry) (obj Decodable, classID int16, err error) {
	tag, err := c.ReadUTF()
	if err != nil {
		return nil, 0, err
	}
	if len(tag) > 1 {
		return nil, 0, fmt.Errorf("wire: illegal tagged-object tag %q", tag)
	}

	classID, err = c.ReadInt16()
	if err != nil {
		return nil, 0, err
	}

	if tag == "" && classID == 0 {
		return nil, 0, nil
	}

	inst, ok := reg.New(classID)
	if !ok {
		return nil, classID, nil
	}
	if err := inst.Decode(c); err != nil {
		return nil, classID, fmt.Errorf("wire: decode class %d: %w", classID, err)
	}
	return inst, classID, nil
}

// WriteObject writes obj as a tagged object. A nil obj writes the null
// encoding (tag "", class 0). A non-nil obj must be registered in reg
// under some class ID, or WriteObject fails.
func WriteObject(c *Codec, reg *ClassRegistry, obj Encodable) error {
	if obj == nil {
		if err := c.WriteUTF(""); err != nil {
			return err
		}
		return c.WriteInt16(0)
	}

	id, ok := reg.PreferredID(obj)
	if !ok {
		return fmt.Errorf("wire: type %T is not registered", obj)
	}
	if err := c.WriteUTF("@"); err != nil {
		return err
	}
	if err := c.WriteInt16(id); err != nil {
		return err
	}
	return obj.Encode(c)
}
