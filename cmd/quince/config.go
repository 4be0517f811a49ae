package main

import (
	"crypto/tls"
	"time"

	"github.com/goburrow/quic/transport"
)

// newConfig builds the transport.Config shared by the client and
// server commands. Per-command code fills in the TLS identity
// (ServerName/InsecureSkipVerify for the client, Certificates for the
// server) before passing it to quic.NewClient/NewServer.
func newConfig() *transport.Config {
	config := &transport.Config{
		TLS: &tls.Config{
			NextProtos: []string{"quince"},
			MinVersion: tls.VersionTLS13,
		},
	}
	config.Params = transport.Parameters{
		MaxIdleTimeout:                 30 * time.Second,
		MaxUDPPayloadSize:              1452,
		InitialMaxData:                 10 << 20,
		InitialMaxStreamDataBidiLocal:  1 << 20,
		InitialMaxStreamDataBidiRemote: 1 << 20,
		InitialMaxStreamDataUni:        1 << 20,
		InitialMaxStreamsBidi:          100,
		InitialMaxStreamsUni:           100,
		ActiveConnectionIDLimit:        transport.DefaultActiveConnectionIDLimit,
	}
	return config
}
