package proto

import (
	"fmt"

	"github.com/brassmonkey/registryd/internal/wire"
)

// Parameter is a single typed value carried by an Invoke. Encoding is one
// of the ASCII codes below; Value holds the corresponding Go type.
//
//	i int32   I uint32   s int16   S uint16
//	f float32 d float64   B bool    * string   @ tagged object
type Parameter struct {
	Encoding byte
	Value    interface{}
}

func (p *Parameter) Encode(c *wire.Codec) error {
	if err := c.WriteUTF(string(p.Encoding)); err != nil {
		return err
	}
	return encodeValue(c, p.Encoding, p.Value)
}

func (p *Parameter) Decode(c *wire.Codec) error {
	tag, err := c.ReadUTF()
	if err != nil {
		return err
	}
	if len(tag) != 1 {
		return fmt.Errorf("proto: Parameter.Decode: illegal encoding tag %q", tag)
	}
	p.Encoding = tag[0]
	v, err := decodeValue(c, p.Encoding)
	if err != nil {
		return err
	}
	p.Value = v
	return nil
}

// encodeValue writes value using the primitive/object writer selected by
// encoding. Shared by Parameter and Array, whose per-element wire shape is
// identical: an encoding tag followed by the value itself.
func encodeValue(c *wire.Codec, encoding byte, value interface{}) error {
	switch encoding {
	case 'i':
		return c.WriteInt32(toInt32(value))
	case 'I':
		return c.WriteUint32(toUint32(value))
	case 's':
		return c.WriteInt16(toInt16(value))
	case 'S':
		return c.WriteUint16(toUint16(value))
	case 'f':
		return c.WriteFloat32(toFloat32(value))
	case 'd':
		return c.WriteFloat64(toFloat64(value))
	case 'B':
		b, _ := value.(bool)
		return c.WriteBool(b)
	case '*':
		s, _ := value.(string)
		return c.WriteUTF(s)
	case '@':
		enc, _ := value.(wire.Encodable)
		return wire.WriteObject(c, Registry, enc)
	default:
		return fmt.Errorf("proto: unknown encoding %q", encoding)
	}
}

// decodeValue reads back a value previously written by encodeValue.
func decodeValue(c *wire.Codec, encoding byte) (interface{}, error) {
	switch encoding {
	case 'i':
		return c.ReadInt32()
	case 'I':
		return c.ReadUint32()
	case 's':
		return c.ReadInt16()
	case 'S':
		return c.ReadUint16()
	case 'f':
		return c.ReadFloat32()
	case 'd':
		return c.ReadFloat64()
	case 'B':
		return c.ReadBool()
	case '*':
		return c.ReadUTF()
	case '@':
		obj, _, err := wire.ReadObject(c, Registry)
		if err != nil {
			return nil, err
		}
		return obj, nil
	default:
		return nil, fmt.Errorf("proto: unknown encoding %q", encoding)
	}
}

// inferEncoding chooses the wire encoding for a native Go value per the
// Array serialization rules: unsigned-range integers prefer I over i,
// floats are f, booleans B, strings *, and anything implementing
// wire.Encodable is @.
func inferEncoding(v interface{}) (byte, error) {
	switch n := v.(type) {
	case bool:
		return 'B', nil
	case string:
		return '*', nil
	case float32, float64:
		return 'f', nil
	case int, int8, int16, int32, int64:
		iv := toInt64(n)
		if iv >= 0 && iv <= int64(^uint32(0)) {
			return 'I', nil
		}
		return 'i', nil
	case uint, uint8, uint16, uint32, uint64:
		return 'I', nil
	default:
		if _, ok := v.(wire.Encodable); ok {
			return '@', nil
		}
		return 0, fmt.Errorf("proto: no encoding for array element of type %T", v)
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	default:
		return 0
	}
}

func toInt32(v interface{}) int32 {
	switch n := v.(type) {
	case int32:
		return n
	case int:
		return int32(n)
	case int64:
		return int32(n)
	default:
		return 0
	}
}

func toUint32(v interface{}) uint32 {
	switch n := v.(type) {
	case uint32:
		return n
	case int, int8, int16, int32, int64:
		return uint32(toInt64(n))
	case uint:
		return uint32(n)
	case uint8:
		return uint32(n)
	case uint16:
		return uint32(n)
	case uint64:
		return uint32(n)
	default:
		return 0
	}
}

func toInt16(v interface{}) int16 {
	switch n := v.(type) {
	case int16:
		return n
	case int:
		return int16(n)
	default:
		return 0
	}
}

func toUint16(v interface{}) uint16 {
	switch n := v.(type) {
	case uint16:
		return n
	case int:
		return uint16(n)
	default:
		return 0
	}
}

func toFloat32(v interface{}) float32 {
	switch n := v.(type) {
	case float32:
		return n
	case float64:
		return float32(n)
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case float32:
		return float64(n)
	default:
		return 0
	}
}
