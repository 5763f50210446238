package proto

import "github.com/brassmonkey/registryd/internal/wire"

// Ping carries a device's identity and address. The server's own PING reply
// (relay.Engine.HandlePing) carries a Device, not a Ping.
type Ping struct {
	DeviceID string
	Address  *DeviceAddress
}

func (p *Ping) Encode(c *wire.Codec) error {
	if err := c.WriteUTF(p.DeviceID); err != nil {
		return err
	}
	return wire.WriteObject(c, Registry, p.Address)
}

func (p *Ping) Decode(c *wire.Codec) error {
	id, err := c.ReadUTF()
	if err != nil {
		return err
	}
	obj, _, err := wire.ReadObject(c, Registry)
	if err != nil {
		return err
	}
	p.DeviceID = id
	p.Address, _ = obj.(*DeviceAddress)
	return nil
}

// ByteChunk is one slice of a larger byte set transferred across several
// frames: which set it belongs to, where in the set this chunk starts, the
// set's total size, and the chunk's own bytes. Declared in the original
// protocol's class-ID table but never exercised by any call path in this
// server; the wire format is preserved for decode compatibility with
// legacy clients that might still send it.
type ByteChunk struct {
	SetID     string
	StartByte int32
	TotalSize int32
	Data      []byte
}

func (b *ByteChunk) Encode(c *wire.Codec) error {
	if err := c.WriteUTF(b.SetID); err != nil {
		return err
	}
	if err := c.WriteInt32(b.StartByte); err != nil {
		return err
	}
	if err := c.WriteInt32(int32(len(b.Data))); err != nil {
		return err
	}
	if err := c.WriteInt32(b.TotalSize); err != nil {
		return err
	}
	for _, by := range b.Data {
		if err := c.WriteByte(by); err != nil {
			return err
		}
	}
	return nil
}

func (b *ByteChunk) Decode(c *wire.Codec) error {
	setID, err := c.ReadUTF()
	if err != nil {
		return err
	}
	startByte, err := c.ReadInt32()
	if err != nil {
		return err
	}
	chunkSize, err := c.ReadInt32()
	if err != nil {
		return err
	}
	totalSize, err := c.ReadInt32()
	if err != nil {
		return err
	}
	data := make([]byte, chunkSize)
	for i := range data {
		by, err := c.ReadByte()
		if err != nil {
			return err
		}
		data[i] = by
	}
	b.SetID = setID
	b.StartByte = startByte
	b.TotalSize = totalSize
	b.Data = data
	return nil
}
