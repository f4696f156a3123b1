// The mcp command serves the digest read model over the Model Context
// Protocol on stdio, so agent clients can pull the latest digest and
// individual papers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/Xecades/ArxivDigest-Reimagined/internal/adapters/mcp"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/bootstrap"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/config"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/observability/logging"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "mcp: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	// Stdout carries the protocol; all logging must stay on stderr.
	logger := logging.NewTextLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.WithoutQueue())
	if err != nil {
		return err
	}
	defer app.Close()

	server := mcpadapter.NewServer(app.Digest, version, logger)
	return server.ServeStdio(ctx)
}
