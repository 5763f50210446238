package session_test

import (
	"net"
	"testing"
	"time"

	"github.com/brassmonkey/registryd/internal/proto"
	"github.com/brassmonkey/registryd/internal/session"
	"github.com/brassmonkey/registryd/internal/wire"
)

// stubDispatcher records every call made against it, for assertions.
type stubDispatcher struct {
	invokes      chan *proto.Invoke
	pings        chan struct{}
	disconnected chan struct{}
}

func newStubDispatcher() *stubDispatcher {
	return &stubDispatcher{
		invokes:      make(chan *proto.Invoke, 16),
		pings:        make(chan struct{}, 16),
		disconnected: make(chan struct{}, 1),
	}
}

func (d *stubDispatcher) Dispatch(s *session.Session, invoke *proto.Invoke) { d.invokes <- invoke }
func (d *stubDispatcher) HandlePing(s *session.Session)                     { d.pings <- struct{}{} }
func (d *stubDispatcher) OnDisconnect(s *session.Session) {
	select {
	case d.disconnected <- struct{}{}:
	default:
	}
}

func TestSessionHandshakeSendsVersionFrame(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	d := newStubDispatcher()
	s := session.New(server, d, session.Options{})
	go s.Run()
	defer s.Close()

	buf := make([]byte, proto.VersionFrameSize)
	client.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(client, buf); err != nil {
		t.Fatalf("expected a version handshake frame: %v", err)
	}
	cur, min, err := proto.ParseVersionFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	if cur != proto.ServerVersion || min != proto.ServerVersion {
		t.Fatalf("got current=%v minimum=%v, want %v", cur, min, proto.ServerVersion)
	}
}

func TestSessionDispatchesInvokeFrame(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	d := newStubDispatcher()
	s := session.New(server, d, session.Options{})
	go s.Run()
	defer s.Close()

	drainVersionFrame(t, client)

	inv := &proto.Invoke{ID: 7, Method: "registry.list"}
	frame, err := wire.WriteFrame(proto.Registry, inv)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Write(frame); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-d.invokes:
		if got.Method != "registry.list" || got.ID != 7 {
			t.Fatalf("got %#v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the dispatcher to receive the invoke")
	}
}

// Clients never send a bare top-level Invoke: every method call arrives as
// a DATA Packet wrapping one. This drives that path end to end through a
// real receive loop.
func TestSessionDispatchesPacketWrappedInvoke(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	d := newStubDispatcher()
	s := session.New(server, d, session.Options{})
	go s.Run()
	defer s.Close()

	drainVersionFrame(t, client)

	pkt := &proto.Packet{
		Type:       proto.PacketData,
		DeviceType: proto.DeviceAndroid,
		DeviceID:   "c1",
		Message: &proto.Invoke{
			ID:           3,
			Method:       "registry.register",
			ReturnMethod: "onRegister",
			Params: []*proto.Parameter{proto.ParamObject(&proto.RegistryInfo{
				Device:  &proto.Device{Type: proto.DeviceAndroid, ID: "c1", Name: "Phone"},
				Address: &proto.DeviceAddress{Host: "10.0.0.2", Port: 7001},
			})},
		},
	}
	frame, err := wire.WriteFrame(proto.Registry, pkt)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Write(frame); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-d.invokes:
		if got.Method != "registry.register" || got.ID != 3 {
			t.Fatalf("got %#v", got)
		}
		info, ok := got.Params[0].Value.(*proto.RegistryInfo)
		if !ok || info.Device.ID != "c1" {
			t.Fatalf("param not preserved through the envelope: %#v", got.Params[0])
		}
	case <-time.After(time.Second):
		t.Fatal("expected the dispatcher to receive the packet-wrapped invoke")
	}
}

func TestSessionHandlesPingFrame(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	d := newStubDispatcher()
	s := session.New(server, d, session.Options{})
	go s.Run()
	defer s.Close()

	drainVersionFrame(t, client)

	pkt := &proto.Packet{Type: proto.PacketPing}
	frame, err := wire.WriteFrame(proto.Registry, pkt)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := client.Write(frame); err != nil {
		t.Fatal(err)
	}

	select {
	case <-d.pings:
	case <-time.After(time.Second):
		t.Fatal("expected the dispatcher to receive a ping")
	}
}

func TestSessionIgnoresEightAndTwelveBytePayloads(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	d := newStubDispatcher()
	s := session.New(server, d, session.Options{})
	go s.Run()
	defer s.Close()

	drainVersionFrame(t, client)

	for _, size := range []int{8, proto.VersionFrameSize} {
		payload := make([]byte, size)
		frame := lengthPrefix(payload)
		if _, err := client.Write(frame); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case inv := <-d.invokes:
		t.Fatalf("8- and 12-byte payloads must be ignored as keepalives, got %#v", inv)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSessionCloseIsIdempotentAndNotifiesOnce(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	d := newStubDispatcher()
	s := session.New(server, d, session.Options{})

	s.Close()
	s.Close()

	select {
	case <-d.disconnected:
	default:
		t.Fatal("expected OnDisconnect to be called")
	}
	if s.State() != session.StateClosed {
		t.Fatalf("State() = %v, want StateClosed", s.State())
	}
}

func TestSessionSetIdentityAndPairedSlot(t *testing.T) {
	server, _ := net.Pipe()
	defer server.Close()

	d := newStubDispatcher()
	s := session.New(server, d, session.Options{})

	info := &proto.RegistryInfo{Device: &proto.Device{ID: "g1"}}
	s.SetIdentity("g1", "Shooter", 3, info)

	if s.DeviceID() != "g1" || s.DeviceName() != "Shooter" || s.SlotID() != 3 {
		t.Fatalf("identity not recorded: id=%q name=%q slot=%d", s.DeviceID(), s.DeviceName(), s.SlotID())
	}
	if s.ClientInfo() != info {
		t.Fatal("ClientInfo() should return the stored pointer")
	}

	if s.PairedSlot() != 0 {
		t.Fatalf("PairedSlot() = %d, want 0 before any relay", s.PairedSlot())
	}
	s.SetPairedSlot(3)
	if s.PairedSlot() != 3 {
		t.Fatalf("PairedSlot() = %d, want 3", s.PairedSlot())
	}
}

func drainVersionFrame(t *testing.T, conn net.Conn) {
	t.Helper()
	buf := make([]byte, proto.VersionFrameSize)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, err := readFull(conn, buf); err != nil {
		t.Fatalf("expected the version handshake frame: %v", err)
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func lengthPrefix(payload []byte) []byte {
	out := make([]byte, 4+len(payload))
	out[0] = byte(len(payload))
	out[1] = byte(len(payload) >> 8)
	out[2] = byte(len(payload) >> 16)
	out[3] = byte(len(payload) >> 24)
	copy(out[4:], payload)
	return out
}
