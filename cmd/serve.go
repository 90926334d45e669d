package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/foomo/linkgraph-mcp/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func newCmdServe() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the linkGraph and listPages MCP tools",
		Long: heredoc.Doc(`
			Without --http the MCP server talks over stdio.

			With --http it serves streamable HTTP MCP on --endpoint, SSE streams
			below it (<endpoint>/sse, <endpoint>/sse/graph) and Prometheus metrics
			on /metrics. HTTP callers may send their own token in the
			X-Notion-Token header.
		`),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if appCfg.HTTP.Addr != "" {
				return serveHTTP(ctx, appCfg, logger)
			}
			return serveStdio(appCfg, logger)
		},
	}

	cmd.Flags().String("http", "", "HTTP server address (e.g. ':8080')")
	cmd.Flags().String("endpoint", "/mcp", "MCP endpoint path")
	cobra.CheckErr(errors.Join(
		viper.BindPFlag("http.addr", cmd.Flags().Lookup("http")),
		viper.BindPFlag("http.endpoint", cmd.Flags().Lookup("endpoint")),
	))
	return cmd
}

func serveStdio(cfg *Config, logger *zap.Logger) error {
	s := mcp.NewServer(cfg.newService(logger, nil), cfg.Credentials())
	logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s)
}

func serveHTTP(ctx context.Context, cfg *Config, logger *zap.Logger) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	svc := cfg.newService(logger, reg)
	s := mcp.NewServer(svc, cfg.Credentials())
	handler := mcp.NewMcpHTTPSSEServer(logger.Named("sse"), s, svc, cfg.Credentials(), cfg.HTTP.Endpoint, nil, reg)
	defer handler.GetSSEServer().Close()

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting MCP server", zap.String("addr", cfg.HTTP.Addr), zap.String("endpoint", cfg.HTTP.Endpoint))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to serve http: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down MCP server")
		// SSE streams only end once their clients are released.
		handler.GetSSEServer().Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}
