// Command httpcored is a demo server exercising httpcore end to end: it
// loads httpServer.* configuration via viper, builds a zap-backed logger,
// and serves a small echo handler that reads the request body to a
// correlation-tagged trailer.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/streamcore/httpcore"
	"github.com/streamcore/httpcore/internal/config"
	"github.com/streamcore/httpcore/stream"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		bindHost   string
		bindPort   int
	)

	cmd := &cobra.Command{
		Use:   "httpcored",
		Short: "Run the httpcore demo server",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := config.Default()
			if configPath != "" {
				v.SetConfigFile(configPath)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config: %w", err)
				}
			}
			if cmd.Flags().Changed("bind-host") {
				v.Set("httpServer.bindTarget.host", bindHost)
			}
			if cmd.Flags().Changed("bind-port") {
				v.Set("httpServer.bindTarget.port", bindPort)
			}

			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("loading httpServer config: %w", err)
			}

			zlog, err := zap.NewProduction()
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer zlog.Sync() //nolint:errcheck

			logger := httpcore.NewZapLogger(zlog)

			srv, err := httpcore.NewServer(cfg, echoHandler)
			if err != nil {
				return err
			}
			srv.Logger = logger

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.ListenAndServe(ctx) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML/JSON/TOML config file")
	cmd.Flags().StringVar(&bindHost, "bind-host", "", "override httpServer.bindTarget.host")
	cmd.Flags().IntVar(&bindPort, "bind-port", 0, "override httpServer.bindTarget.port")

	return cmd
}

// echoHandler reads the request body, keeping at most its first 1 MiB,
// then replies with the kept bytes and attaches trailers reporting how
// many bytes were echoed and the connection ID.
func echoHandler(head httpcore.RequestHead, ctx httpcore.RequestContext, reader *httpcore.RequestConcludingReader, sender *httpcore.ResponseSender) error {
	var body []byte
	_, err := reader.ConsumeAndConclude(func(r stream.Reader[byte]) error {
		return r.Collect(1<<20, func(s stream.Span[byte]) error {
			body = append([]byte(nil), s...)
			return nil
		})
	})
	if err != nil {
		return err
	}

	respHeader := httpcore.Header{"Content-Type": []string{"application/octet-stream"}}
	writer, err := sender.Send(httpcore.ResponseHead{StatusCode: 200, Header: respHeader})
	if err != nil {
		return err
	}
	return writer.WriteAndConclude(stream.Span[byte](body), httpcore.Header{
		"X-Echo-Bytes": []string{fmt.Sprintf("%d", len(body))},
		"X-Conn-Id":    []string{ctx.ConnID},
	})
}
