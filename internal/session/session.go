// Package session implements the per-connection state machine: handshake,
// receive-loop framing, dispatch, and send, over the length-prefixed
// tagged-object wire protocol in package wire.
package session

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brassmonkey/registryd/internal/obslog"
	"github.com/brassmonkey/registryd/internal/proto"
	"github.com/brassmonkey/registryd/internal/wire"
)

// State is a session's position in the ACCEPTED -> HANDSHAKING -> ACTIVE
// -> CLOSING -> CLOSED state machine.
type State int32

const (
	StateAccepted State = iota
	StateHandshaking
	StateActive
	StateClosing
	StateClosed
)

// DefaultReadTimeout is the steady-state socket read deadline when no
// socket_timeout is configured. The deadline is renewed before every read;
// a read that receives no bytes within it is treated the same as an EOF:
// the connection is torn down.
const DefaultReadTimeout = 30 * time.Second

// handshakePeekTimeout bounds the "attempt a non-blocking read" step of
// the handshake: long enough to catch a client that raced ahead and sent
// its own version frame first, short enough not to stall a client that
// (as is normal) sends nothing until it hears from us.
const handshakePeekTimeout = 20 * time.Millisecond

// Dispatcher receives parsed application messages from a Session's
// receive loop. Implementations (see package relay) own the registry and
// decide what each method call or ping does.
type Dispatcher interface {
	Dispatch(s *Session, invoke *proto.Invoke)
	HandlePing(s *Session)
	OnDisconnect(s *Session)
}

// Session is one accepted TCP connection and its protocol state.
type Session struct {
	conn        net.Conn
	Addr        string // "host:port", the session table key
	dispatcher  Dispatcher
	maxPacket   int
	bufferSize  int
	readTimeout time.Duration

	state atomic.Int32

	writeMu sync.Mutex

	identMu    sync.RWMutex
	deviceID   string
	deviceName string
	slotID     int16
	clientInfo *proto.RegistryInfo
	pairedSlot int16

	closeOnce sync.Once

	framesIn    atomic.Uint64
	framesOut   atomic.Uint64
	connectedAt time.Time
}

// Options tunes a Session's resource limits. The zero value picks a
// sensible default for every field.
type Options struct {
	MaxPacket   int           // largest accepted frame payload; <= 0 means unlimited
	BufferSize  int           // per-read scratch buffer; <= 0 picks 4096
	ReadTimeout time.Duration // steady-state read deadline; <= 0 picks DefaultReadTimeout
}

// New wraps an accepted connection. Call Run to drive its lifecycle.
func New(conn net.Conn, dispatcher Dispatcher, opts Options) *Session {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 4096
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}
	return &Session{
		conn:        conn,
		Addr:        conn.RemoteAddr().String(),
		dispatcher:  dispatcher,
		maxPacket:   opts.MaxPacket,
		bufferSize:  opts.BufferSize,
		readTimeout: opts.ReadTimeout,
		connectedAt: time.Now(),
	}
}

// State returns the session's current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// DeviceID, DeviceName, SlotID, and ClientInfo are accessed by both this
// session's own receive loop and, occasionally, the relay engine cleaning
// up after disconnect — guarded by identMu since those are different
// goroutines.
func (s *Session) DeviceID() string {
	s.identMu.RLock()
	defer s.identMu.RUnlock()
	return s.deviceID
}

func (s *Session) DeviceName() string {
	s.identMu.RLock()
	defer s.identMu.RUnlock()
	return s.deviceName
}

func (s *Session) SlotID() int16 {
	s.identMu.RLock()
	defer s.identMu.RUnlock()
	return s.slotID
}

func (s *Session) ClientInfo() *proto.RegistryInfo {
	s.identMu.RLock()
	defer s.identMu.RUnlock()
	return s.clientInfo
}

// SetIdentity records the device identity learned from registry.register.
func (s *Session) SetIdentity(deviceID, deviceName string, slotID int16, info *proto.RegistryInfo) {
	s.identMu.Lock()
	defer s.identMu.Unlock()
	s.deviceID = deviceID
	s.deviceName = deviceName
	s.slotID = slotID
	s.clientInfo = info
}

// SetClientInfo updates only the cached client_info (used by
// registry.update, which does not change identity).
func (s *Session) SetClientInfo(info *proto.RegistryInfo) {
	s.identMu.Lock()
	defer s.identMu.Unlock()
	s.clientInfo = info
}

// PairedSlot returns the slot ID this (controller) session last
// successfully relayed to. A controller already paired to a slot is exempt
// from that slot's capacity check on subsequent relays.
func (s *Session) PairedSlot() int16 {
	s.identMu.RLock()
	defer s.identMu.RUnlock()
	return s.pairedSlot
}

// SetPairedSlot records the slot ID a relay was just forwarded to.
func (s *Session) SetPairedSlot(slot int16) {
	s.identMu.Lock()
	defer s.identMu.Unlock()
	s.pairedSlot = slot
}

// Send frames and writes obj to the connection. Safe for concurrent use —
// writers (this session's own dispatch, or another session's relay) share
// writeMu so the socket never interleaves two frames.
func (s *Session) Send(obj wire.Encodable) error {
	frame, err := wire.WriteFrame(proto.Registry, obj)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err = s.conn.Write(frame)
	if err == nil {
		s.framesOut.Add(1)
	}
	return err
}

// Run drives the session from handshake through the receive loop until
// the connection ends, then performs disconnect cleanup exactly once.
func (s *Session) Run() {
	defer s.Close()

	if !s.handshake() {
		return
	}

	s.setState(StateActive)
	s.receiveLoop()
}

// handshake performs the ACCEPTED -> HANDSHAKING -> ACTIVE transition.
func (s *Session) handshake() bool {
	s.setState(StateHandshaking)

	s.conn.SetReadDeadline(time.Now().Add(handshakePeekTimeout))
	peek := make([]byte, proto.VersionFrameSize)
	n, err := s.conn.Read(peek)
	if err != nil {
		if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
			obslog.Global().Warn("session", "%s: handshake peek read error: %v", s.Addr, err)
			s.setState(StateClosed)
			return false
		}
		// Timeout: client hasn't spoken yet, which is normal.
	} else if n > 0 {
		if cur, min, verr := proto.ParseVersionFrame(peek[:n]); verr == nil {
			obslog.Global().Debug("session", "%s: client sent version frame first (current=%s min=%s)", s.Addr, cur, min)
		} else {
			obslog.Global().Debug("session", "%s: %d bytes from client before handshake reply", s.Addr, n)
		}
	}

	s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	if err := proto.WriteVersionFrame(s.conn, proto.ServerVersion, proto.ServerVersion); err != nil {
		obslog.Global().Warn("session", "%s: handshake write error: %v", s.Addr, err)
		s.setState(StateClosed)
		return false
	}
	return true
}

// receiveLoop reads bytes into a growing frame buffer, parses whole
// frames, and dispatches each one. An 8- or 12-byte payload is a benign
// keepalive or mirrored version frame and is ignored outright.
func (s *Session) receiveLoop() {
	fb := wire.NewFrameBuffer(s.maxPacket)
	buf := make([]byte, s.bufferSize)

	for {
		s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		n, err := s.conn.Read(buf)
		if n > 0 {
			fb.Append(buf[:n])
		}
		if err != nil {
			return
		}

		for {
			payload, ok, ferr := fb.Next()
			if ferr != nil {
				obslog.Global().Error("session", "%s: fatal framing error: %v", s.Addr, ferr)
				return
			}
			if !ok {
				break
			}
			s.framesIn.Add(1)
			if len(payload) == 8 || len(payload) == proto.VersionFrameSize {
				continue
			}
			s.handleFrame(payload)
		}
	}
}

func (s *Session) handleFrame(payload []byte) {
	obj, classID, err := wire.DecodeFramePayload(proto.Registry, payload)
	if err != nil {
		obslog.Global().Error("session", "%s: decode error (class %d): %v", s.Addr, classID, err)
		return
	}
	if obj == nil {
		return
	}

	switch v := obj.(type) {
	case *proto.Packet:
		if v.Type == proto.PacketPing {
			s.dispatcher.HandlePing(s)
			return
		}
		// Clients carry every method call as a DATA Packet wrapping an
		// Invoke; unwrap and route on the method.
		if inv, ok := v.Message.(*proto.Invoke); ok {
			s.dispatcher.Dispatch(s, inv)
		}
	case *proto.Invoke:
		// Tolerated for bare invokes, though clients always wrap them in a
		// Packet envelope.
		s.dispatcher.Dispatch(s, v)
	default:
		obslog.Global().Debug("session", "%s: ignored top-level frame of type %T", s.Addr, v)
	}
}

// Close tears the connection down and runs disconnect cleanup exactly
// once, regardless of whether it's triggered by EOF, timeout, a fatal
// decode error, or an explicit server shutdown.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.setState(StateClosing)
		s.conn.Close()
		s.dispatcher.OnDisconnect(s)
		s.setState(StateClosed)
		obslog.Global().Debug("session", "%s: closed after %s (%d frames in, %d out)",
			s.Addr, time.Since(s.connectedAt).Round(time.Millisecond), s.framesIn.Load(), s.framesOut.Load())
	})
}
