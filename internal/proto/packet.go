package proto

import "github.com/brassmonkey/registryd/internal/wire"

// Packet is the outer framing envelope carried by every non-handshake
// frame: identity/timing metadata plus an optional typed message.
type Packet struct {
	Channel    int32
	Sequence   int32
	Timestamp  float64
	RTT        float64
	Type       PacketType
	DeviceType DeviceType
	DeviceID   string
	DeviceName string
	Message    wire.Encodable // nil if absent
}

func (p *Packet) Encode(c *wire.Codec) error {
	if err := c.WriteInt32(p.Channel); err != nil {
		return err
	}
	if err := c.WriteInt32(p.Sequence); err != nil {
		return err
	}
	if err := c.WriteFloat64(p.Timestamp); err != nil {
		return err
	}
	if err := c.WriteFloat64(p.RTT); err != nil {
		return err
	}
	if err := c.WriteInt32(int32(p.Type)); err != nil {
		return err
	}
	if err := c.WriteInt32(int32(p.DeviceType)); err != nil {
		return err
	}
	if err := c.WriteUTF(p.DeviceID); err != nil {
		return err
	}
	if err := c.WriteUTF(p.DeviceName); err != nil {
		return err
	}
	hasMessage := p.Message != nil
	if err := c.WriteBool(hasMessage); err != nil {
		return err
	}
	if hasMessage {
		return wire.WriteObject(c, Registry, p.Message)
	}
	return nil
}

func (p *Packet) Decode(c *wire.Codec) error {
	var err error
	if p.Channel, err = c.ReadInt32(); err != nil {
		return err
	}
	if p.Sequence, err = c.ReadInt32(); err != nil {
		return err
	}
	if p.Timestamp, err = c.ReadFloat64(); err != nil {
		return err
	}
	if p.RTT, err = c.ReadFloat64(); err != nil {
		return err
	}
	pt, err := c.ReadInt32()
	if err != nil {
		return err
	}
	p.Type = PacketType(pt)
	dt, err := c.ReadInt32()
	if err != nil {
		return err
	}
	p.DeviceType = DeviceType(dt)
	if p.DeviceID, err = c.ReadUTF(); err != nil {
		return err
	}
	if p.DeviceName, err = c.ReadUTF(); err != nil {
		return err
	}
	hasMessage, err := c.ReadBool()
	if err != nil {
		return err
	}
	p.Message = nil
	if hasMessage {
		obj, _, err := wire.ReadObject(c, Registry)
		if err != nil {
			return err
		}
		if enc, ok := obj.(wire.Encodable); ok {
			p.Message = enc
		}
	}
	return nil
}
