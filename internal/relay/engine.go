// Package relay implements the method dispatch table and point-to-point
// forwarding: registry.register, registry.list, registry.relay,
// registry.update, and the PING keepalive
// reply. Engine is the session.Dispatcher every accepted connection reports
// to, and owns the registry, the slot allocator, and the session
// directories needed to find a relay target by device ID.
package relay

import (
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/brassmonkey/registryd/internal/obslog"
	"github.com/brassmonkey/registryd/internal/proto"
	"github.com/brassmonkey/registryd/internal/registry"
	"github.com/brassmonkey/registryd/internal/session"
)

// Engine is the server-global relay/registry engine. It implements
// session.Dispatcher.
type Engine struct {
	reg   *registry.Registry
	slots *registry.SlotAllocator

	mu         sync.RWMutex
	byAddr     map[string]*session.Session
	byDeviceID map[string]*session.Session

	serverDeviceID string
	serverHost     string
	serverPort     int32

	obsMu     sync.Mutex
	observers []Observer
}

// New returns an Engine advertising serverDeviceID at host:port as its own
// identity in registration responses and ping replies.
func New(reg *registry.Registry, slots *registry.SlotAllocator, serverDeviceID, host string, port int32) *Engine {
	return &Engine{
		reg:            reg,
		slots:          slots,
		byAddr:         make(map[string]*session.Session),
		byDeviceID:     make(map[string]*session.Session),
		serverDeviceID: serverDeviceID,
		serverHost:     host,
		serverPort:     port,
	}
}

// AddObserver registers a fire-and-forget sink (telemetry, audit) notified
// of registry mutations. Observers must not block the caller.
func (e *Engine) AddObserver(o Observer) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, o)
}

func (e *Engine) notify(fn func(Observer)) {
	e.obsMu.Lock()
	obs := make([]Observer, len(e.observers))
	copy(obs, e.observers)
	e.obsMu.Unlock()
	for _, o := range obs {
		fn(o)
	}
}

// AddSession registers s in the address-keyed session directory. Called by
// the acceptor right after accept, before the session's handshake runs.
func (e *Engine) AddSession(s *session.Session) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.byAddr[s.Addr] = s
}

// CloseAll closes every live session, unblocking any read in progress.
// Called during server shutdown.
func (e *Engine) CloseAll() {
	e.mu.RLock()
	sessions := make([]*session.Session, 0, len(e.byAddr))
	for _, s := range e.byAddr {
		sessions = append(sessions, s)
	}
	e.mu.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}

// SessionCount reports the number of live sessions (used by the acceptor
// to enforce max_connections).
func (e *Engine) SessionCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.byAddr)
}

// Dispatch implements session.Dispatcher.
func (e *Engine) Dispatch(s *session.Session, invoke *proto.Invoke) {
	switch invoke.Method {
	case "registry.register":
		e.handleRegister(s, invoke)
	case "registry.list":
		e.handleList(s, invoke)
	case "registry.relay":
		e.handleRelay(s, invoke)
	case "registry.update":
		e.handleUpdate(s, invoke)
	default:
		obslog.Global().Warn("relay", "%s: unknown method %q, ignoring", s.Addr, invoke.Method)
	}
}

// HandlePing implements session.Dispatcher.
func (e *Engine) HandlePing(s *session.Session) {
	pkt := &proto.Packet{
		Type:       proto.PacketPing,
		DeviceType: proto.DeviceServer,
		DeviceID:   e.serverDeviceID,
		DeviceName: "Registry",
		Timestamp:  nowMillis(),
		Message: &proto.Device{
			Type:    proto.DeviceServer,
			ID:      e.serverDeviceID,
			Name:    "Registry",
			Address: &proto.DeviceAddress{Host: e.serverHost, Port: e.serverPort},
		},
	}
	if err := s.Send(pkt); err != nil {
		obslog.Global().Warn("relay", "%s: ping reply failed: %v", s.Addr, err)
	}
}

// OnDisconnect implements session.Dispatcher. Idempotent cleanup is
// guaranteed by Session.Close's sync.Once — this is called at most once
// per session.
func (e *Engine) OnDisconnect(s *session.Session) {
	deviceID := s.DeviceID()
	slot := s.SlotID()

	// Only the session currently bound to deviceID may unregister it — a
	// replaced session (same device re-registered from a new connection)
	// must not tear down its successor's record on the way out.
	e.mu.Lock()
	delete(e.byAddr, s.Addr)
	owned := false
	if deviceID != "" {
		if cur, ok := e.byDeviceID[deviceID]; ok && cur == s {
			delete(e.byDeviceID, deviceID)
			owned = true
		}
	}
	e.mu.Unlock()

	if owned {
		e.reg.Unregister(deviceID)
	}
	if slot > 0 {
		e.slots.Free(slot)
	}

	if owned {
		e.broadcastList(nil)
		e.notify(func(o Observer) { o.OnDisconnect(deviceID) })
	}
}

// handleRegister implements registry.register: slot allocation for games,
// registry insertion, the onRegister/onHostConnected responses, and the
// list fan-out.
func (e *Engine) handleRegister(s *session.Session, invoke *proto.Invoke) {
	info := firstParamRegistryInfo(invoke)
	if info == nil || info.Device == nil {
		obslog.Global().Warn("relay", "%s: registry.register missing RegistryInfo", s.Addr)
		return
	}

	if info.Address == nil {
		info.Address = fallbackAddress(s.Addr)
	}

	var slot int16
	if info.Device.Type.IsGame() {
		slot = e.slots.Allocate()
		if info.MaxClients == 0 {
			info.MaxClients = 1
		}
	}
	info.SlotID = slot

	e.reg.Register(info)
	s.SetIdentity(info.Device.ID, info.Device.Name, slot, info.Clone())

	e.mu.Lock()
	e.byDeviceID[info.Device.ID] = s
	e.mu.Unlock()

	returnMethod := invoke.ReturnMethod
	if returnMethod == "" {
		returnMethod = "onRegister"
	}
	serverInfo := &proto.RegistryInfo{
		Device:  &proto.Device{Type: proto.DeviceServer, ID: e.serverDeviceID, Name: "Registry"},
		Address: &proto.DeviceAddress{Host: e.serverHost, Port: e.serverPort},
		AppID:   "Registry",
		SlotID:  0,
	}
	resp := &proto.Invoke{ID: invoke.ID, Method: returnMethod, Params: []*proto.Parameter{proto.ParamObject(serverInfo)}}
	e.sendInvoke(s, resp)

	if info.Device.Type.IsGame() {
		hostConnected := &proto.Invoke{ID: invoke.ID, Method: "onHostConnected", Params: []*proto.Parameter{proto.ParamObject(info.Clone())}}
		e.sendInvoke(s, hostConnected)
	}

	e.sendList(s)
	e.broadcastList(s)
	e.notify(func(o Observer) { o.OnRegister(info) })
}

// handleList implements registry.list.
func (e *Engine) handleList(s *session.Session, invoke *proto.Invoke) {
	e.sendList(s)
}

// handleRelay implements registry.relay: find the target's live session by
// device ID, enforce slot capacity for controller senders, and forward the
// payload wrapped in a Packet carrying the sender's identity.
func (e *Engine) handleRelay(s *session.Session, invoke *proto.Invoke) {
	if len(invoke.Params) < 2 {
		obslog.Global().Warn("relay", "%s: registry.relay missing params", s.Addr)
		return
	}
	target, _ := invoke.Params[0].Value.(*proto.RegistryInfo)
	payload, _ := invoke.Params[1].Value.(*proto.Invoke)
	if target == nil || target.Device == nil || payload == nil {
		obslog.Global().Warn("relay", "%s: registry.relay malformed target/payload", s.Addr)
		return
	}

	targetDeviceID := target.Device.ID
	e.mu.RLock()
	targetSession := e.byDeviceID[targetDeviceID]
	e.mu.RUnlock()
	if targetSession == nil {
		obslog.Global().Warn("relay", "%s: registry.relay target %q not connected", s.Addr, targetDeviceID)
		return
	}

	senderInfo := s.ClientInfo()
	senderIsGame := senderInfo != nil && senderInfo.Device != nil && senderInfo.Device.Type.IsGame()

	targetInfo, _ := e.reg.Get(targetDeviceID)
	if !senderIsGame && targetInfo != nil && targetInfo.SlotID > 0 {
		maxClients := targetInfo.MaxClients
		if maxClients == 0 {
			maxClients = 1
		}
		if targetInfo.CurrentClients >= maxClients {
			paired := s.PairedSlot() == targetInfo.SlotID
			if !paired {
				obslog.Global().Warn("relay", "%s: relay to %q dropped, slot %d full", s.Addr, targetDeviceID, targetInfo.SlotID)
				return
			}
		}
		s.SetPairedSlot(targetInfo.SlotID)
	}

	senderDeviceID := s.DeviceID()
	senderDeviceName := s.DeviceName()
	senderDeviceType := proto.DeviceAny
	if senderInfo != nil && senderInfo.Device != nil {
		senderDeviceType = senderInfo.Device.Type
	}

	pkt := &proto.Packet{
		Sequence:   payload.ID,
		Timestamp:  nowMillis(),
		Type:       proto.PacketData,
		DeviceType: senderDeviceType,
		DeviceID:   senderDeviceID,
		DeviceName: senderDeviceName,
		Message:    payload,
	}
	if err := targetSession.Send(pkt); err != nil {
		obslog.Global().Warn("relay", "relay to %q failed: %v", targetDeviceID, err)
		return
	}
	e.notify(func(o Observer) { o.OnRelay(senderDeviceID, targetDeviceID) })
}

// handleUpdate implements registry.update.
func (e *Engine) handleUpdate(s *session.Session, invoke *proto.Invoke) {
	deviceID := s.DeviceID()
	if deviceID == "" {
		obslog.Global().Warn("relay", "%s: registry.update before registry.register", s.Addr)
		return
	}
	info := firstParamRegistryInfo(invoke)

	var upd registry.CapacityUpdate
	if info != nil && info.SlotID > 0 {
		slot, cur, max := info.SlotID, info.CurrentClients, info.MaxClients
		upd.SlotID = &slot
		upd.CurrentClients = &cur
		upd.MaxClients = &max
	}
	e.reg.Update(deviceID, upd)

	if latest, ok := e.reg.Get(deviceID); ok {
		s.SetClientInfo(latest)
	}

	e.broadcastList(nil)

	returnMethod := invoke.ReturnMethod
	if returnMethod == "" {
		returnMethod = "onRegister"
	}
	resp := &proto.Invoke{ID: invoke.ID, Method: returnMethod, Params: []*proto.Parameter{proto.ParamBool(true)}}
	e.sendInvoke(s, resp)
}

// sendList sends a filtered onList Invoke to s alone. The viewer's role is
// taken from its own registered device type; an unregistered session is
// treated as a controller (the conservative, narrower view).
func (e *Engine) sendList(s *session.Session) {
	viewerIsGame := false
	if info := s.ClientInfo(); info != nil && info.Device != nil {
		viewerIsGame = info.Device.Type.IsGame()
	}

	devices := e.reg.ListFiltered(viewerIsGame)
	values := make([]interface{}, len(devices))
	for i, d := range devices {
		values[i] = d
	}
	arr := &proto.Array{Values: values}
	inv := &proto.Invoke{ID: 2, Method: "onList", Params: []*proto.Parameter{proto.ParamObject(arr)}}
	e.sendInvoke(s, inv)
}

// broadcastList pushes an onList update to every connected session except
// exclude (pass nil to include everyone). Not atomic: a session added or
// removed mid-broadcast may or may not see the update.
func (e *Engine) broadcastList(exclude *session.Session) {
	e.mu.RLock()
	targets := make([]*session.Session, 0, len(e.byAddr))
	for _, sess := range e.byAddr {
		if sess != exclude {
			targets = append(targets, sess)
		}
	}
	e.mu.RUnlock()

	for _, sess := range targets {
		e.sendList(sess)
	}
}

// sendInvoke wraps inv in the standard response envelope: a Packet whose
// sequence mirrors the invoke's own id and whose identity fields describe
// the server.
func (e *Engine) sendInvoke(s *session.Session, inv *proto.Invoke) {
	pkt := &proto.Packet{
		Sequence:   inv.ID,
		Timestamp:  nowMillis(),
		Type:       proto.PacketData,
		DeviceType: proto.DeviceServer,
		DeviceID:   e.serverDeviceID,
		DeviceName: "Registry",
		Message:    inv,
	}
	if err := s.Send(pkt); err != nil {
		obslog.Global().Warn("relay", "%s: send %q failed: %v", s.Addr, inv.Method, err)
	}
}

func firstParamRegistryInfo(invoke *proto.Invoke) *proto.RegistryInfo {
	if len(invoke.Params) == 0 || invoke.Params[0] == nil {
		return nil
	}
	info, _ := invoke.Params[0].Value.(*proto.RegistryInfo)
	return info
}

// fallbackAddress derives a DeviceAddress from a session's "host:port" peer
// address when the client's own RegistryInfo omitted one. This is a
// pragmatic addition beyond the literal wire contract: RegistryInfo.Encode
// requires a non-nil Address, and a registering client is not guaranteed to
// supply its own reachable address.
func fallbackAddress(addr string) *proto.DeviceAddress {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return &proto.DeviceAddress{Host: addr}
	}
	port, _ := strconv.Atoi(portStr)
	return &proto.DeviceAddress{Host: host, Port: int32(port)}
}

func nowMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}
