package proto

import (
	"fmt"

	"github.com/brassmonkey/registryd/internal/wire"
)

// Array is a heterogeneous sequence of native values, each serialized as
// an inferred encoding tag followed by its value (see inferEncoding).
// Used by the registry to hand back device lists as a single onList
// invoke parameter.
type Array struct {
	Values []interface{}
}

func (a *Array) Encode(c *wire.Codec) error {
	if err := c.WriteInt16(int16(len(a.Values))); err != nil {
		return err
	}
	for _, v := range a.Values {
		enc, err := inferEncoding(v)
		if err != nil {
			return err
		}
		if err := c.WriteUTF(string(enc)); err != nil {
			return err
		}
		if err := encodeValue(c, enc, v); err != nil {
			return err
		}
	}
	return nil
}

func (a *Array) Decode(c *wire.Codec) error {
	n, err := c.ReadInt16()
	if err != nil {
		return err
	}
	a.Values = make([]interface{}, 0, n)
	for i := int16(0); i < n; i++ {
		tag, err := c.ReadUTF()
		if err != nil {
			return err
		}
		if len(tag) != 1 {
			return fmt.Errorf("proto: Array.Decode: illegal encoding tag %q", tag)
		}
		v, err := decodeValue(c, tag[0])
		if err != nil {
			return err
		}
		a.Values = append(a.Values, v)
	}
	return nil
}
