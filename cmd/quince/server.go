package main

import (
	"crypto/tls"
	"log"
	"os"

	"github.com/goburrow/quic"
	"github.com/goburrow/quic/transport"
)

func runServer(listenAddr, certFile, keyFile string, logLevel int) error {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return err
	}
	config := newConfig()
	config.TLS.Certificates = []tls.Certificate{cert}
	handler := &serverHandler{}
	server := quic.NewServer(config)
	server.SetHandler(handler)
	server.SetLogger(logLevel, os.Stdout)
	if err := server.ListenAndServe(listenAddr); err != nil {
		return err
	}
	log.Printf("listening on %s", server.LocalAddr())
	select {}
}

// serverHandler echoes everything it receives back on the same stream.
type serverHandler struct{}

func (s *serverHandler) Serve(c quic.Conn, events []transport.Event) {
	for _, e := range events {
		switch e.Type {
		case quic.EventConnAccept:
			log.Printf("%s connected", c.RemoteAddr())
		case transport.EventStream:
			st := c.Stream(e.StreamID)
			if st == nil {
				continue
			}
			buf := make([]byte, 4096)
			n, _ := st.Read(buf)
			if n > 0 {
				st.Write(buf[:n])
			}
		case quic.EventConnClose:
			log.Printf("%s disconnected", c.RemoteAddr())
		}
	}
}
