package quic

import (
	"crypto/rand"
	"io"
	"net"

	"github.com/goburrow/quic/transport"
)

// Client is a QUIC endpoint that dials outbound connections.
type Client struct {
	endpoint
}

// NewClient creates a client endpoint using config for every connection
// it originates.
func NewClient(config *transport.Config) *Client {
	c := &Client{}
	c.endpoint = *newEndpoint(config, "client")
	return c
}

func (c *Client) SetHandler(h Handler) {
	c.setHandler(h)
}

func (c *Client) SetLogger(level int, w io.Writer) {
	c.setLogger(level, w)
}

// ListenAndServe opens the local UDP socket the client sends and
// receives on. addr may be empty to let the kernel pick an ephemeral
// port.
func (c *Client) ListenAndServe(addr string) error {
	return c.listenAndServe(addr)
}

func (c *Client) LocalAddr() net.Addr {
	return c.localAddr()
}

// Connect dials a new connection to addr.
func (c *Client) Connect(addr string) error {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return err
	}
	scid := make([]byte, localCIDLength)
	if _, err := rand.Read(scid); err != nil {
		return err
	}
	cfg := c.config
	if tok := c.token(raddr.String()); len(tok) > 0 {
		// A prior connection to this address handed us a NEW_TOKEN; present
		// it so the server can skip address validation (spec §4.10). The
		// shared config is never mutated in place.
		cfgCopy := *c.config
		cfgCopy.Token = tok
		cfg = &cfgCopy
	}
	conn, err := transport.Connect(scid, cfg)
	if err != nil {
		return err
	}
	rc := newRemoteConn(scid, raddr, conn)
	c.mu.Lock()
	c.conns[string(scid)] = rc
	c.mu.Unlock()
	c.qlog.attachLogger(rc)
	c.flush(rc)
	c.dispatch(rc)
	return nil
}

func (c *Client) Close() error {
	return c.close()
}
