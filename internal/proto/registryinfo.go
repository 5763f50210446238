package proto

import (
	"fmt"

	"github.com/brassmonkey/registryd/internal/wire"
)

// RegistryInfo is a device's membership record, exchanged during
// registration and carried in relay targets and list responses.
//
// Invariant: SlotID > 0 implies CurrentClients/MaxClients are present on
// the wire; SlotID == 0 omits them entirely.
type RegistryInfo struct {
	Device         *Device
	Address        *DeviceAddress
	AppID          string
	SlotID         int16
	CurrentClients int16
	MaxClients     int16
}

// Encode requires a non-null Address — the original protocol fails the
// encode rather than emit a malformed record, and so do we.
func (r *RegistryInfo) Encode(c *wire.Codec) error {
	if r.Address == nil {
		return fmt.Errorf("proto: RegistryInfo.Encode: nil address")
	}

	if err := wire.WriteObject(c, Registry, r.Device); err != nil {
		return err
	}
	if err := wire.WriteObject(c, Registry, r.Address); err != nil {
		return err
	}
	if err := c.WriteUTF(r.AppID); err != nil {
		return err
	}
	if err := c.WriteInt16(r.SlotID); err != nil {
		return err
	}
	if r.SlotID > 0 {
		if err := c.WriteInt16(r.CurrentClients); err != nil {
			return err
		}
		if err := c.WriteInt16(r.MaxClients); err != nil {
			return err
		}
	}
	return nil
}

// Decode binds device.Address = address explicitly rather than relying on
// any reference embedded in the serialized form — this breaks the
// RegistryInfo <-> Device cyclic reference at decode time.
func (r *RegistryInfo) Decode(c *wire.Codec) error {
	deviceObj, _, err := wire.ReadObject(c, Registry)
	if err != nil {
		return err
	}
	device, _ := deviceObj.(*Device)

	addrObj, _, err := wire.ReadObject(c, Registry)
	if err != nil {
		return err
	}
	addr, _ := addrObj.(*DeviceAddress)

	if device != nil {
		device.Address = addr
	}

	appID, err := c.ReadUTF()
	if err != nil {
		return err
	}
	slotID, err := c.ReadInt16()
	if err != nil {
		return err
	}

	r.Device = device
	r.Address = addr
	r.AppID = appID
	r.SlotID = slotID

	if slotID > 0 {
		cur, err := c.ReadInt16()
		if err != nil {
			return err
		}
		max, err := c.ReadInt16()
		if err != nil {
			return err
		}
		r.CurrentClients = cur
		r.MaxClients = max
	}
	return nil
}

// Clone returns a deep copy of r, including its Device and Address.
func (r *RegistryInfo) Clone() *RegistryInfo {
	if r == nil {
		return nil
	}
	cp := *r
	cp.Device = r.Device.Clone()
	if r.Address != nil {
		a := *r.Address
		cp.Address = &a
	}
	return &cp
}
