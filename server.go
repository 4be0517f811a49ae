package quic

import (
	"crypto/rand"
	"fmt"
	"io"
	"net"

	"github.com/goburrow/quic/transport"
)

// Server is a QUIC endpoint that accepts inbound connections.
type Server struct {
	endpoint
}

// NewServer creates a server endpoint that accepts connections using
// config. config.TLS must carry a server certificate.
func NewServer(config *transport.Config) *Server {
	s := &Server{}
	s.endpoint = *newEndpoint(config, "server")
	s.accept = s.acceptConn
	return s
}

func (s *Server) SetHandler(h Handler) {
	s.setHandler(h)
}

func (s *Server) SetLogger(level int, w io.Writer) {
	s.setLogger(level, w)
}

// ListenAndServe opens the UDP socket the server accepts connections on.
func (s *Server) ListenAndServe(addr string) error {
	return s.listenAndServe(addr)
}

func (s *Server) LocalAddr() net.Addr {
	return s.localAddr()
}

func (s *Server) Close() error {
	return s.close()
}

// ListenPreferredAddress opens a second UDP socket at addr and
// advertises it to every future connection via the preferred_address
// transport parameter (spec §4.8). A client that validates the new
// path gets its replies from this socket instead of the main one.
func (s *Server) ListenPreferredAddress(addr string) error {
	socket, err := net.ListenPacket("udp", addr)
	if err != nil {
		return err
	}
	udpAddr, ok := socket.LocalAddr().(*net.UDPAddr)
	if !ok {
		socket.Close()
		return fmt.Errorf("quic: preferred address socket is not udp: %T", socket.LocalAddr())
	}
	pa := &transport.PreferredAddress{}
	if ip4 := udpAddr.IP.To4(); ip4 != nil {
		copy(pa.IPv4[:], ip4)
		pa.IPv4Port = uint16(udpAddr.Port)
	} else {
		copy(pa.IPv6[:], udpAddr.IP.To16())
		pa.IPv6Port = uint16(udpAddr.Port)
	}
	s.config.PreferredAddress = pa
	s.altSocket = socket
	s.log.WithField("addr", udpAddr).Info("listening on preferred address")
	go s.serveAlt(socket)
	return nil
}

// acceptConn is the endpoint's acceptFunc: it only opens a connection
// for an unrecognized CID that begins a long-header packet, since only
// Initial can start a connection — 0-RTT packets are processed (spec
// §4.9) but always target a Conn that a prior Initial already created,
// so an unrecognized CID on a 0-RTT packet means the connection is
// gone, not that one should be started. handleDatagram never calls this
// for a short-header packet, but the guard stays as the function's own
// contract in case that changes.
func (s *Server) acceptConn(dcid []byte, addr net.Addr, data []byte) *remoteConn {
	if !transport.IsLongHeader(data) {
		return nil
	}
	scid := make([]byte, localCIDLength)
	if _, err := rand.Read(scid); err != nil {
		s.log.WithError(err).Error("failed to generate scid")
		return nil
	}
	conn, err := transport.Accept(scid, nil, s.config)
	if err != nil {
		s.log.WithError(err).Error("failed to accept connection")
		return nil
	}
	return newRemoteConn(scid, addr, conn)
}
