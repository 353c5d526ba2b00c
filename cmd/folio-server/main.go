// Command folio-server runs the portfolio ledger REST API together with
// its background job processors and scheduled maintenance.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bobmcallan/folio/internal/app"
	"github.com/bobmcallan/folio/internal/common"
	"github.com/bobmcallan/folio/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "folio-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	a, err := app.NewApp(os.Getenv("FOLIO_CONFIG"))
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer a.Close()

	srv := server.NewServer(a)
	// Bind before printing the banner so a busy port fails fast.
	if err := srv.Listen(); err != nil {
		return err
	}

	common.PrintBanner(a.Config, a.Logger)
	a.Start()

	a.Logger.Info().
		Str("addr", srv.Addr()).
		Bool("jobs", a.Config.Jobs.Enabled).
		Strs("schedules", a.Scheduler.Tasks()).
		Msg("Server ready")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = srv.Run(ctx)
	common.PrintShutdownBanner(a.Logger)
	if err != nil {
		a.Logger.Error().Err(err).Msg("HTTP server stopped with error")
		return err
	}
	a.Logger.Info().Msg("Server stopped")
	return nil
}
