// Package proto implements the message-type contracts carried over the
// wire codec in package wire: Packet, Invoke, Parameter, Array, Device,
// DeviceAddress, RegistryInfo, Ping, and the fixed-size version handshake.
package proto

import "github.com/brassmonkey/registryd/internal/wire"

// DeviceType identifies the kind of participant on the wire.
type DeviceType int32

const (
	DeviceAny     DeviceType = 0
	DeviceUnity   DeviceType = 1
	DeviceIPhone  DeviceType = 2
	DeviceFlash   DeviceType = 3
	DeviceAndroid DeviceType = 4
	DeviceNative  DeviceType = 5
	DevicePalm    DeviceType = 6
	DeviceServer  DeviceType = 7
)

// IsGame reports whether t identifies a game host (as opposed to a
// controller). Games are exempt from slot-capacity checks and see every
// connected device; controllers see only games.
func (t DeviceType) IsGame() bool {
	return t == DeviceFlash || t == DeviceUnity
}

func (t DeviceType) String() string {
	switch t {
	case DeviceAny:
		return "ANY"
	case DeviceUnity:
		return "UNITY"
	case DeviceIPhone:
		return "IPHONE"
	case DeviceFlash:
		return "FLASH"
	case DeviceAndroid:
		return "ANDROID"
	case DeviceNative:
		return "NATIVE"
	case DevicePalm:
		return "PALM"
	case DeviceServer:
		return "SERVER"
	default:
		return "UNKNOWN"
	}
}

// PacketType identifies the purpose of a Packet envelope.
type PacketType int32

const (
	PacketData      PacketType = 0
	PacketPing      PacketType = 1
	PacketAck       PacketType = 2
	PacketEcho      PacketType = 3
	PacketAnalysis  PacketType = 4
	PacketKeepAlive PacketType = 5
)

// ClassID values. Seven distinct IDs alias to Device on decode; only the
// first registered (ClassIDDevice) is ever chosen on encode. See
// Registry in classids.go.
const (
	ClassIDPacket        int16 = 0
	ClassIDDeviceAddress int16 = 1
	ClassIDParameter     int16 = 3
	ClassIDInvoke        int16 = 4
	ClassIDDevice        int16 = 7
	ClassIDDeviceAlias2  int16 = 8
	ClassIDDeviceAlias3  int16 = 10
	ClassIDDeviceAlias4  int16 = 15
	ClassIDDeviceAlias5  int16 = 16
	ClassIDDeviceAlias6  int16 = 17
	ClassIDDeviceAlias7  int16 = 18
	ClassIDPing          int16 = 11
	ClassIDByteChunk     int16 = 14
	ClassIDRegistryInfo  int16 = 19
	ClassIDArray         int16 = 21
)

// Device is a participant's identity: its id, display name, device type,
// and (when known) network address. The wire format is shared by every
// class-ID alias in the ClassIDDevice family — "FlashDevice" in the
// original protocol is this same struct, decoded from a different ID.
type Device struct {
	Type    DeviceType
	ID      string
	Name    string
	Address *DeviceAddress
}

// NewFlashDevice returns a Device defaulted to the FLASH type, matching the
// original protocol's FlashDevice default constructor.
func NewFlashDevice(id, name string) *Device {
	return &Device{Type: DeviceFlash, ID: id, Name: name}
}

func (d *Device) Encode(c *wire.Codec) error {
	if err := c.WriteInt32(int32(d.Type)); err != nil {
		return err
	}
	if err := c.WriteUTF(d.ID); err != nil {
		return err
	}
	return c.WriteUTF(d.Name)
}

func (d *Device) Decode(c *wire.Codec) error {
	t, err := c.ReadInt32()
	if err != nil {
		return err
	}
	id, err := c.ReadUTF()
	if err != nil {
		return err
	}
	name, err := c.ReadUTF()
	if err != nil {
		return err
	}
	d.Type = DeviceType(t)
	d.ID = id
	d.Name = name
	return nil
}

// Clone returns a deep copy of d, including its Address if present.
func (d *Device) Clone() *Device {
	if d == nil {
		return nil
	}
	cp := *d
	if d.Address != nil {
		a := *d.Address
		cp.Address = &a
	}
	return &cp
}

// DeviceAddress is a host/port pair. The wire format writes the port
// twice — older clients expect the duplicate, so it stays.
type DeviceAddress struct {
	Host string
	Port int32
}

func (a *DeviceAddress) Encode(c *wire.Codec) error {
	if err := c.WriteUTF(a.Host); err != nil {
		return err
	}
	if err := c.WriteInt32(a.Port); err != nil {
		return err
	}
	return c.WriteInt32(a.Port)
}

func (a *DeviceAddress) Decode(c *wire.Codec) error {
	host, err := c.ReadUTF()
	if err != nil {
		return err
	}
	if _, err := c.ReadInt32(); err != nil { // discarded first copy of the port
		return err
	}
	port, err := c.ReadInt32()
	if err != nil {
		return err
	}
	a.Host = host
	a.Port = port
	return nil
}
