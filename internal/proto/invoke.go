package proto

import "github.com/brassmonkey/registryd/internal/wire"

// Invoke is a remote call: a method name, an optional return method, and
// an ordered list of typed parameters.
type Invoke struct {
	ID           int32
	Method       string
	ReturnMethod string
	Params       []*Parameter
}

func (i *Invoke) Encode(c *wire.Codec) error {
	if err := c.WriteInt32(i.ID); err != nil {
		return err
	}
	if err := c.WriteUTF(i.Method); err != nil {
		return err
	}
	if err := c.WriteUTF(i.ReturnMethod); err != nil {
		return err
	}
	if err := c.WriteInt32(int32(len(i.Params))); err != nil {
		return err
	}
	for _, p := range i.Params {
		if err := wire.WriteObject(c, Registry, p); err != nil {
			return err
		}
	}
	return nil
}

func (i *Invoke) Decode(c *wire.Codec) error {
	var err error
	if i.ID, err = c.ReadInt32(); err != nil {
		return err
	}
	if i.Method, err = c.ReadUTF(); err != nil {
		return err
	}
	if i.ReturnMethod, err = c.ReadUTF(); err != nil {
		return err
	}
	n, err := c.ReadInt32()
	if err != nil {
		return err
	}
	i.Params = make([]*Parameter, 0, n)
	for k := int32(0); k < n; k++ {
		obj, _, err := wire.ReadObject(c, Registry)
		if err != nil {
			return err
		}
		if p, ok := obj.(*Parameter); ok {
			i.Params = append(i.Params, p)
		} else {
			i.Params = append(i.Params, nil)
		}
	}
	return nil
}

// ParamString returns a single UTF-string parameter.
func ParamString(s string) *Parameter { return Param('*', s) }

// ParamBool returns a single boolean parameter.
func ParamBool(b bool) *Parameter { return Param('B', b) }

// ParamObject returns a single tagged-object parameter.
func ParamObject(v wire.Encodable) *Parameter { return Param('@', v) }

// Param builds a Parameter for one of the primitive encodings
// (i, I, s, S, f, d, B, *, @). Passing an unsupported encoding byte is a
// programmer error and panics; the encoding table is closed.
func Param(encoding byte, value interface{}) *Parameter {
	switch encoding {
	case 'i', 'I', 's', 'S', 'f', 'd', 'B', '*', '@':
		return &Parameter{Encoding: encoding, Value: value}
	default:
		panic("proto: unsupported parameter encoding " + string(encoding))
	}
}
