package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "quince",
		Short: "quince is a minimal QUIC client and server",
	}
	root.AddCommand(newClientCommand())
	root.AddCommand(newServerCommand())
	return root
}

func newClientCommand() *cobra.Command {
	var listenAddr string
	var insecure bool
	var data string
	var logLevel int
	cmd := &cobra.Command{
		Use:   "client <address>",
		Short: "connect to a QUIC server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClient(listenAddr, args[0], data, insecure, logLevel)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&listenAddr, "listen", "0.0.0.0:0", "listen on the given IP:port")
	flags.BoolVar(&insecure, "insecure", false, "skip verifying server certificate")
	flags.StringVar(&data, "data", "GET /\r\n", "data to send on stream 4")
	flags.IntVar(&logLevel, "v", 2, "log verbose: 0=off 1=error 2=info 3=debug 4=trace")
	return cmd
}

func newServerCommand() *cobra.Command {
	var listenAddr string
	var certFile string
	var keyFile string
	var logLevel int
	cmd := &cobra.Command{
		Use:   "server",
		Short: "accept QUIC connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(listenAddr, certFile, keyFile, logLevel)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&listenAddr, "listen", "0.0.0.0:4433", "listen on the given IP:port")
	flags.StringVar(&certFile, "cert", "", "TLS certificate file")
	flags.StringVar(&keyFile, "key", "", "TLS private key file")
	flags.IntVar(&logLevel, "v", 2, "log verbose: 0=off 1=error 2=info 3=debug 4=trace")
	cmd.MarkFlagRequired("cert")
	cmd.MarkFlagRequired("key")
	return cmd
}
