// Package acceptor implements the TCP accept loop: bind 0.0.0.0:8088,
// accept with a short timeout so shutdown and cleanup are never blocked,
// enforce max_connections, and spawn one goroutine per accepted session.
package acceptor

import (
	"net"
	"sync"
	"time"

	"github.com/brassmonkey/registryd/internal/config"
	"github.com/brassmonkey/registryd/internal/obslog"
	"github.com/brassmonkey/registryd/internal/relay"
	"github.com/brassmonkey/registryd/internal/session"
)

// acceptTimeout bounds each Accept call so the loop can observe shutdown
// without a dedicated wakeup mechanism.
const acceptTimeout = 500 * time.Millisecond

// Acceptor owns the listening socket and the set of live sessions.
type Acceptor struct {
	engine         *relay.Engine
	maxConnections int
	sessionOpts    session.Options

	listener *net.TCPListener

	wg       sync.WaitGroup
	stopping chan struct{}
	stopOnce sync.Once
}

// New returns an Acceptor that will dispatch accepted sessions to engine.
func New(engine *relay.Engine, cfg *config.Config) *Acceptor {
	return &Acceptor{
		engine:         engine,
		maxConnections: cfg.MaxConnections,
		sessionOpts: session.Options{
			MaxPacket:   cfg.MaxPacketSize,
			BufferSize:  cfg.BufferSize,
			ReadTimeout: time.Duration(cfg.SocketTimeout * float64(time.Second)),
		},
		stopping: make(chan struct{}),
	}
}

// Run binds the listener and serves until Stop is called. It returns an
// error only when binding fails; any other Accept error is logged and the
// loop continues. It blocks until the accept loop exits.
func (a *Acceptor) Run() error {
	addr := &net.TCPAddr{IP: net.ParseIP(config.TCPHost), Port: config.TCPPort}
	ln, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return err
	}
	a.listener = ln
	obslog.Global().Info("acceptor", "listening on %s:%d", config.TCPHost, config.TCPPort)

	for {
		select {
		case <-a.stopping:
			a.waitSessions(2 * time.Second)
			return nil
		default:
		}

		a.listener.SetDeadline(time.Now().Add(acceptTimeout))
		conn, err := a.listener.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			select {
			case <-a.stopping:
				a.waitSessions(2 * time.Second)
				return nil
			default:
				obslog.Global().Error("acceptor", "accept error: %v", err)
				continue
			}
		}

		if a.engine.SessionCount() >= a.maxConnections {
			obslog.Global().Warn("acceptor", "rejecting %s: max_connections (%d) reached", conn.RemoteAddr(), a.maxConnections)
			conn.Close()
			continue
		}

		a.wg.Add(1)
		go a.serve(conn)
	}
}

func (a *Acceptor) serve(conn net.Conn) {
	defer a.wg.Done()

	opts := a.sessionOpts
	if opts.MaxPacket <= 0 {
		opts.MaxPacket = 1 << 20
	}
	s := session.New(conn, a.engine, opts)
	a.engine.AddSession(s)
	obslog.Global().Debug("acceptor", "accepted %s", s.Addr)
	s.Run()
}

// waitSessions blocks until every session goroutine has exited, or until
// d elapses. A session stuck past the deadline is abandoned — its socket
// is already closed, so it will exit on its own once the read returns.
func (a *Acceptor) waitSessions(d time.Duration) {
	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d):
		obslog.Global().Warn("acceptor", "timed out waiting for sessions to exit, abandoning")
	}
}

// Stop closes the listener so any in-flight Accept unblocks, closes every
// live session socket so blocked reads unblock, and signals the loop to
// exit. The loop waits briefly for session goroutines before returning.
func (a *Acceptor) Stop() {
	a.stopOnce.Do(func() {
		close(a.stopping)
		if a.listener != nil {
			a.listener.Close()
		}
		a.engine.CloseAll()
	})
}
