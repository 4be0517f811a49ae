package quic

import (
	"crypto/rand"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/goburrow/quic/transport"
)

// localCIDLength is the fixed length this endpoint uses for every
// connection ID it issues. Short-header packets carry no explicit CID
// length, so demultiplexing an incoming datagram onto the right
// connection before decryption requires agreeing on one in advance.
const localCIDLength = 16

// maxDatagramSize is the largest UDP payload this endpoint will ever
// read or write, matching the QUIC maximum packet size.
const maxDatagramSize = 65527

// pollInterval bounds how long the service loop blocks in ReadFrom
// before re-checking every connection's idle/loss-recovery timers.
const pollInterval = 25 * time.Millisecond

// Conn is the application-facing handle to one QUIC connection, handed
// to a Handler alongside the events that occurred on it.
type Conn interface {
	// Stream returns the identified stream, creating it if it is a
	// locally-initiated stream that does not exist yet, or nil if the
	// peer has not opened it.
	Stream(id uint64) *transport.Stream
	RemoteAddr() net.Addr
	Close(errCode uint64, reason string) error
}

// Handler is notified of connection and stream events as an endpoint's
// service loop processes them.
type Handler interface {
	Serve(c Conn, events []transport.Event)
}

// remoteConn pairs a transport.Conn with the socket-level state
// (address, scid, a correlation id for operational logs) the frozen
// transport package has no concept of.
type remoteConn struct {
	addr   net.Addr
	socket net.PacketConn // Which of the endpoint's sockets to send replies on; nil means the main one.
	scid   []byte
	conn   *transport.Conn
	id     uuid.UUID

	accepted bool
	events   []transport.Event // Reused scratch buffer for Conn.Events.

	// extraCIDs holds every connection ID registered for this Conn beyond
	// scid (NEW_CONNECTION_ID replenishment, preferred_address), so they
	// can all be unregistered together when the connection closes.
	extraCIDs [][]byte
}

func newRemoteConn(scid []byte, addr net.Addr, conn *transport.Conn) *remoteConn {
	return &remoteConn{
		scid: scid,
		addr: addr,
		conn: conn,
		id:   uuid.New(),
	}
}

func (c *remoteConn) Stream(id uint64) *transport.Stream {
	st, err := c.conn.Stream(id)
	if err != nil {
		return nil
	}
	return st
}

func (c *remoteConn) RemoteAddr() net.Addr { return c.addr }

func (c *remoteConn) Close(errCode uint64, reason string) error {
	c.conn.Close(true, errCode, reason)
	return nil
}

// acceptFunc constructs a new server-side connection for a previously
// unseen destination connection ID. Left nil on a Client, which never
// accepts inbound connections.
type acceptFunc func(dcid []byte, addr net.Addr, data []byte) *remoteConn

// endpoint is the socket and event-loop machinery shared by Client and
// Server: read datagrams, demultiplex them onto the right
// transport.Conn, flush its outgoing packets, and drive every
// connection's timers on a schedule rather than only in reaction to
// incoming data.
type endpoint struct {
	socket    net.PacketConn
	altSocket net.PacketConn // Optional second socket for a server preferred address (spec §4.8).
	config    *transport.Config

	handler Handler
	accept  acceptFunc

	qlog logger
	log  *logrus.Entry

	mu    sync.Mutex
	conns map[string]*remoteConn

	// tokens remembers each server address's last NEW_TOKEN value
	// (transport.EventNewToken), keyed by net.Addr.String(), so a
	// future Connect to the same address can skip address validation
	// (spec §4.10). Server-side (Client is the only caller of Connect)
	// leaves this unused.
	tokens map[string][]byte

	closing chan struct{}
	closed  chan struct{}
}

// statelessResetKeyLen is the size of the static secret every Conn on
// one endpoint shares for deriving stateless reset tokens (spec §4.10).
// It never leaves the process, so its size only needs to resist
// brute-force recovery of the secret itself.
const statelessResetKeyLen = 32

func newEndpoint(config *transport.Config, name string) *endpoint {
	if config == nil {
		config = &transport.Config{}
	}
	if len(config.StatelessResetKey) == 0 {
		key := make([]byte, statelessResetKeyLen)
		if _, err := rand.Read(key); err == nil {
			config.StatelessResetKey = key
		}
	}
	return &endpoint{
		config:  config,
		conns:   make(map[string]*remoteConn),
		tokens:  make(map[string][]byte),
		closing: make(chan struct{}),
		closed:  make(chan struct{}),
		log:     logrus.WithField("component", name),
	}
}

func (e *endpoint) setHandler(h Handler) {
	e.handler = h
}

func (e *endpoint) setLogger(level int, w io.Writer) {
	e.qlog.level = logLevel(level)
	e.qlog.setWriter(w)
}

func (e *endpoint) listenAndServe(addr string) error {
	socket, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	e.socket = socket
	e.log.WithField("addr", socket.LocalAddr()).Info("listening")
	go e.serve()
	return nil
}

// token returns the remembered NEW_TOKEN value for addr, if any.
func (e *endpoint) token(addr string) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tokens[addr]
}

func (e *endpoint) localAddr() net.Addr {
	if e.socket == nil {
		return nil
	}
	return e.socket.LocalAddr()
}

func (e *endpoint) close() error {
	select {
	case <-e.closing:
		// Already closing.
	default:
		close(e.closing)
	}
	if e.socket != nil {
		e.socket.Close()
	}
	if e.altSocket != nil {
		e.altSocket.Close()
	}
	<-e.closed
	return nil
}

func (e *endpoint) serve() {
	defer close(e.closed)
	e.serveOn(e.socket)
}

// serveAlt runs the same read/dispatch loop as serve but against a
// second socket (a server's preferred address, spec §4.8). It does not
// own e.closed: serve's goroutine is always the one whose exit signals
// the endpoint is fully stopped.
func (e *endpoint) serveAlt(socket net.PacketConn) {
	e.serveOn(socket)
}

func (e *endpoint) serveOn(socket net.PacketConn) {
	buf := make([]byte, maxDatagramSize)
	for {
		select {
		case <-e.closing:
			return
		default:
		}
		socket.SetReadDeadline(time.Now().Add(pollInterval))
		n, addr, err := socket.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				e.checkTimeouts()
				continue
			}
			select {
			case <-e.closing:
				return
			default:
				e.log.WithError(err).Error("read failed")
				return
			}
		}
		e.handleDatagram(buf[:n], addr, socket)
		e.checkTimeouts()
	}
}

func (e *endpoint) handleDatagram(data []byte, addr net.Addr, socket net.PacketConn) {
	dcid, err := transport.DecodeConnectionID(data, localCIDLength)
	if err != nil {
		e.log.WithError(err).Debug("dropped undecodable packet")
		return
	}
	e.mu.Lock()
	rc := e.conns[string(dcid)]
	e.mu.Unlock()
	if rc == nil {
		if !transport.IsLongHeader(data) {
			// A short header packet for a CID this endpoint has no Conn
			// for, typically a stray packet for a connection that is
			// already gone. Every such packet, a stateless reset from the
			// peer included, is answered with our own stateless reset so
			// the peer stops retransmitting into it (spec §4.10).
			e.sendStatelessReset(dcid, data, addr, socket)
			return
		}
		if e.accept == nil {
			e.log.WithField("cid", fmt.Sprintf("%x", dcid)).Debug("dropped packet for unknown connection")
			return
		}
		if version, vdcid, vscid, err := transport.DecodeLongHeaderVersion(data); err == nil && !transport.VersionSupported(version) {
			e.sendVersionNegotiation(vscid, vdcid, addr, socket)
			return
		}
		rc = e.accept(dcid, addr, data)
		if rc == nil {
			return
		}
		rc.socket = socket
		e.mu.Lock()
		e.conns[string(rc.scid)] = rc
		e.mu.Unlock()
		e.qlog.attachLogger(rc)
		e.log.WithFields(logrus.Fields{"cid": fmt.Sprintf("%x", rc.scid), "addr": addr, "trace": rc.id}).Info("accepted connection")
	}
	if !transport.IsLongHeader(data) && transport.IsStatelessReset(data, rc.conn.KnownResetTokens()) {
		// The peer has reset this connection; there is no Conn state left
		// on its side to answer anything back to, so treat it exactly
		// like an unannounced close (spec §4.10).
		rc.conn.Close(false, transport.NoError, "stateless reset")
		e.dispatch(rc)
		return
	}
	migrated := rc.addr != nil && rc.addr.String() != addr.String()
	if !migrated {
		rc.addr = addr
		rc.socket = socket
	}
	if _, err := rc.conn.Write(data); err != nil {
		e.log.WithError(err).WithField("cid", fmt.Sprintf("%x", rc.scid)).Debug("connection error")
		rc.conn.Close(false, walkErrorCode(err), err.Error())
	} else if migrated {
		e.handleMigration(rc, addr, socket)
	}
	e.flush(rc)
	e.dispatch(rc)
}

// handleMigration applies spec §4.8's migration policy once Write has
// told us whether the packet just processed qualifies. addr and socket
// describe where the datagram actually arrived from, which may or may
// not become rc's new send address.
func (e *endpoint) handleMigration(rc *remoteConn, addr net.Addr, socket net.PacketConn) {
	switch {
	case rc.conn.MigrationCandidate() && !rc.conn.MigrationEligible():
		// Rule 1: a non-probing packet from a new address arrived before
		// the handshake was confirmed, or migration was disabled for this
		// peer. Neither is tolerable reordering noise.
		e.log.WithField("cid", fmt.Sprintf("%x", rc.scid)).Debug("rejecting migration")
		rc.conn.Close(false, transport.InvalidMigration, "migration not allowed")
	case rc.conn.MigrationEligible():
		// Rule 2/3: highest-numbered non-probing packet so far, and
		// policy allows it; start probing the new path before trusting it
		// as the send address.
		rc.addr = addr
		rc.socket = socket
		if err := rc.conn.ProbePath(); err != nil {
			e.log.WithError(err).Debug("failed to start path probe")
		}
	default:
		// Probing-only packet, or reordered behind an already-seen
		// non-probing packet: keep sending to the existing address.
	}
}

// sendStatelessReset answers a datagram addressed to a connection ID
// this endpoint holds no Conn for. The token is re-derived from
// Config.StatelessResetKey rather than looked up, which is what makes
// this possible without retaining any state for the connection it once
// belonged to (spec §4.10).
func (e *endpoint) sendStatelessReset(dcid, data []byte, addr net.Addr, socket net.PacketConn) {
	if len(e.config.StatelessResetKey) == 0 {
		return
	}
	token := transport.StatelessResetToken(e.config.StatelessResetKey, dcid)
	reset := transport.BuildStatelessReset(token, len(data))
	if reset == nil {
		return
	}
	if _, err := socket.WriteTo(reset, addr); err != nil {
		e.log.WithError(err).Debug("failed to send stateless reset")
	}
}

// sendVersionNegotiation answers a long-header packet naming a version
// this module does not speak (spec §4.2). dcid/scid are already
// swapped relative to the triggering packet, per RFC 9000 §17.2.1.
func (e *endpoint) sendVersionNegotiation(dcid, scid []byte, addr net.Addr, socket net.PacketConn) {
	vn, err := transport.EncodeVersionNegotiation(dcid, scid, []uint32{transport.Version, transport.GreaseVersion})
	if err != nil {
		e.log.WithError(err).Debug("failed to build version negotiation packet")
		return
	}
	if _, err := socket.WriteTo(vn, addr); err != nil {
		e.log.WithError(err).Debug("failed to send version negotiation packet")
	}
}

// walkErrorCode extracts the transport error code from err if it is a
// *transport.Error, defaulting to InternalError otherwise.
func walkErrorCode(err error) uint64 {
	if te, ok := err.(*transport.Error); ok {
		return te.Code
	}
	return transport.InternalError
}

func (e *endpoint) flush(rc *remoteConn) {
	socket := rc.socket
	if socket == nil {
		socket = e.socket
	}
	buf := make([]byte, maxDatagramSize)
	for {
		n, err := rc.conn.Read(buf)
		if err != nil || n == 0 {
			if err != nil {
				e.log.WithError(err).Debug("read for send failed")
			}
			return
		}
		if _, err := socket.WriteTo(buf[:n], rc.addr); err != nil {
			e.log.WithError(err).Debug("write failed")
			return
		}
	}
}

func (e *endpoint) dispatch(rc *remoteConn) {
	rc.events = rc.conn.Events(rc.events[:0])
	if !rc.accepted && rc.conn.IsEstablished() {
		rc.accepted = true
		rc.events = append(rc.events, transport.Event{Type: EventConnAccept})
	}
	for _, ev := range rc.events {
		switch ev.Type {
		case transport.EventNewToken:
			if rc.addr != nil && len(ev.Token) > 0 {
				e.mu.Lock()
				e.tokens[rc.addr.String()] = ev.Token
				e.mu.Unlock()
			}
		case transport.EventLocalCIDIssued:
			if len(ev.CID) > 0 {
				e.mu.Lock()
				e.conns[string(ev.CID)] = rc
				e.mu.Unlock()
				rc.extraCIDs = append(rc.extraCIDs, ev.CID)
			}
		}
	}
	if pa := rc.conn.TakePreferredAddress(); pa != nil {
		// The server advertised a second address; switch to it and start
		// validating the new path (spec §4.8).
		if addr := preferredNetAddr(pa); addr != nil {
			rc.addr = addr
			if err := rc.conn.ProbePath(); err != nil {
				e.log.WithError(err).Debug("failed to start path probe")
			}
			e.log.WithFields(logrus.Fields{"cid": fmt.Sprintf("%x", rc.scid), "addr": addr}).Debug("migrating to server preferred address")
		}
	}
	if e.handler != nil && len(rc.events) > 0 {
		e.handler.Serve(rc, rc.events)
	}
	if rc.conn.IsClosed() {
		e.mu.Lock()
		delete(e.conns, string(rc.scid))
		for _, cid := range rc.extraCIDs {
			delete(e.conns, string(cid))
		}
		e.mu.Unlock()
		if e.handler != nil {
			e.handler.Serve(rc, []transport.Event{{Type: EventConnClose}})
		}
	}
}

// preferredNetAddr builds the net.Addr a server's preferred_address
// transport parameter describes, preferring its IPv4 form.
func preferredNetAddr(pa *transport.PreferredAddress) net.Addr {
	if pa.IPv4Port != 0 {
		ip := make(net.IP, 4)
		copy(ip, pa.IPv4[:])
		return &net.UDPAddr{IP: ip, Port: int(pa.IPv4Port)}
	}
	if pa.IPv6Port != 0 {
		ip := make(net.IP, 16)
		copy(ip, pa.IPv6[:])
		return &net.UDPAddr{IP: ip, Port: int(pa.IPv6Port)}
	}
	return nil
}

// checkTimeouts walks every live connection, drives its timeout
// processing, flushes anything that produces (a probe or a close), and
// reaps connections that are now fully closed.
func (e *endpoint) checkTimeouts() {
	e.mu.Lock()
	seen := make(map[*remoteConn]bool, len(e.conns))
	conns := make([]*remoteConn, 0, len(e.conns))
	for _, rc := range e.conns {
		// A Conn can be indexed under more than one CID (scid plus any
		// extraCIDs), but its timers must only ever be driven once per tick.
		if !seen[rc] {
			seen[rc] = true
			conns = append(conns, rc)
		}
	}
	e.mu.Unlock()
	for _, rc := range conns {
		rc.conn.OnTimeout()
		e.flush(rc)
		e.dispatch(rc)
	}
}
