package main

import (
	"context"
	"fmt"
	"net"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dhawanitbhatnagar/chatbot-app/pkg/channels"
	"github.com/dhawanitbhatnagar/chatbot-app/pkg/logger"
)

func newServeCommand() *cobra.Command {
	var (
		host   string
		port   int
		showQR bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat widget to a browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap(bootstrapOptions{})
			if err != nil {
				return err
			}
			defer rt.close()

			webCfg := rt.cfg.WebChat
			if cmd.Flags().Changed("host") {
				webCfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				webCfg.Port = port
			}

			ch := channels.NewWebChatChannel(webCfg, rt.session.GetOrCreate(), rt.client)

			g, ctx := errgroup.WithContext(cmd.Context())
			if err := ch.Start(ctx); err != nil {
				return err
			}

			url := "http://" + browsableAddr(ch.Addr())
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Chat widget running at %s\n", url)
			if showQR {
				qrterminal.GenerateHalfBlock(url, qrterminal.L, out)
			}

			g.Go(func() error {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				logger.InfoCF("cli", "Shutting down web widget", nil)
				return ch.Stop(shutdownCtx)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (default from config)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default from config)")
	cmd.Flags().BoolVar(&showQR, "qr", false, "print the widget URL as a QR code")
	return cmd
}

// browsableAddr swaps a wildcard listen host for one a browser can open.
func browsableAddr(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsUnspecified() {
		if out := outboundIP(); out != "" {
			host = out
		} else {
			host = "localhost"
		}
	}
	return net.JoinHostPort(host, port)
}

// outboundIP is the local address used for outgoing traffic, handy for the QR code.
func outboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return ""
	}
	defer conn.Close()
	if a, ok := conn.LocalAddr().(*net.UDPAddr); ok {
		return a.IP.String()
	}
	return ""
}
