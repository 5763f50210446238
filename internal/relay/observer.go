package relay

import (
	"crypto/rand"
	"strings"

	"github.com/brassmonkey/registryd/internal/proto"
)

// Observer is notified, fire-and-forget, of registry mutations. Engine
// never waits on an Observer: implementations (internal/telemetry,
// internal/audit) own their own goroutine and queue.
type Observer interface {
	OnRegister(info *proto.RegistryInfo)
	OnRelay(senderDeviceID, targetDeviceID string)
	OnDisconnect(deviceID string)
}

const serverDeviceIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const serverDeviceIDLength = 69

// GenerateServerDeviceID returns a random 69-character lowercase
// alphanumeric device ID, chosen once at startup to identify this server
// instance in registration responses and ping replies.
func GenerateServerDeviceID() string {
	b := make([]byte, serverDeviceIDLength)
	buf := make([]byte, serverDeviceIDLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to a
		// fixed-but-distinguishable id rather than panicking at startup.
		return strings.Repeat("0", serverDeviceIDLength)
	}
	for i, v := range buf {
		b[i] = serverDeviceIDAlphabet[int(v)%len(serverDeviceIDAlphabet)]
	}
	return string(b)
}
