// The digest command runs one full pipeline pass inline: fetch the
// day's listing, filter it through the three stages and write the
// export artifacts. Intended for cron and manual runs without the
// API/worker pair.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Xecades/ArxivDigest-Reimagined/internal/bootstrap"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/config"
	"github.com/Xecades/ArxivDigest-Reimagined/internal/observability/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "digest: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.NewTextLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.WithoutQueue())
	if err != nil {
		return err
	}
	defer app.Close()

	run, err := app.Digest.Execute(ctx)
	if err != nil {
		return err
	}
	logger.Info("digest_written", "run_id", run.ID, "dir", cfg.Export.Dir)
	return nil
}
