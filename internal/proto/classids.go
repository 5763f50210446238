package proto

import "github.com/brassmonkey/registryd/internal/wire"

// Registry is the process-wide class-ID table. It is built once in init
// and never mutated afterward, so every session goroutine can read it
// lock-free.
var Registry = wire.NewClassRegistry()

func init() {
	Registry.Register(ClassIDPacket, &Packet{}, func() wire.Decodable { return &Packet{} })
	Registry.Register(ClassIDDeviceAddress, &DeviceAddress{}, func() wire.Decodable { return &DeviceAddress{} })
	Registry.Register(ClassIDParameter, &Parameter{}, func() wire.Decodable { return &Parameter{} })
	Registry.Register(ClassIDInvoke, &Invoke{}, func() wire.Decodable { return &Invoke{} })

	// Seven historical IDs all deserialize into Device; only the first
	// registered (ClassIDDevice) is ever chosen when encoding.
	for _, id := range []int16{
		ClassIDDevice,
		ClassIDDeviceAlias2,
		ClassIDDeviceAlias3,
		ClassIDDeviceAlias4,
		ClassIDDeviceAlias5,
		ClassIDDeviceAlias6,
		ClassIDDeviceAlias7,
	} {
		Registry.Register(id, &Device{}, func() wire.Decodable { return &Device{} })
	}

	Registry.Register(ClassIDPing, &Ping{}, func() wire.Decodable { return &Ping{} })
	Registry.Register(ClassIDByteChunk, &ByteChunk{}, func() wire.Decodable { return &ByteChunk{} })
	Registry.Register(ClassIDRegistryInfo, &RegistryInfo{}, func() wire.Decodable { return &RegistryInfo{} })
	Registry.Register(ClassIDArray, &Array{}, func() wire.Decodable { return &Array{} })
}
