// Package cmd defines and implements the CLI commands for the linkcrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/api"
	"github.com/JakeFAU/linkcrawler/internal/app"
)

const shutdownTimeout = 10 * time.Second

// newCrawlCmd creates and configures the 'crawl' subcommand.
func newCrawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawls the configured sites and checks every link",
		Long: `Runs a breadth-first crawl from the configured links. Each round checks
every pending URL concurrently, then collects the outbound links of internal
HTML pages for the next round. The crawl ends when a round discovers nothing
new.`,
		Example: `  linkcrawler crawl --link https://example.com/
  linkcrawler crawl --config crawl.yaml --concurrency 16 --status-addr :8080`,

		Annotations: map[string]string{needsAppAnnotation: "true"},
		RunE:        runCrawlCommand,
	}
	cmd.Flags().StringSlice("link", nil, "seed URL to crawl (repeatable)")
	cmd.Flags().Int("concurrency", 0, "number of URLs checked in parallel")
	cmd.Flags().String("status-addr", "", "address for the status server, e.g. :8080 (disabled when empty)")
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, _ []string) (err error) {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if cerr := appInstance.Close(closeCtx); cerr != nil {
			logger.Warn("Failed to close application services", zap.Error(cerr))
			if err == nil {
				err = cerr
			}
		}
	}()

	engine, err := appInstance.NewEngine()
	if err != nil {
		return fmt.Errorf("build crawler: %w", err)
	}

	stopServer := startStatusServer(cmd.Context(), appInstance, appInstance.Started, logger)
	defer stopServer()

	if err := engine.Run(cmd.Context()); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Crawl interrupted", zap.Int("checked", len(engine.Checked())))
		}
		return fmt.Errorf("run crawler: %w", err)
	}

	logger.Info("Crawl command finished.",
		zap.String("run_id", engine.RunID().String()),
		zap.Int("rounds", engine.Rounds()),
		zap.Int("checked", len(engine.Checked())),
		zap.Int("edges", len(engine.SiteMap())),
		zap.Int("cached", appInstance.Pages().Stored()),
	)
	return nil
}

// startStatusServer runs the status server in the background when an address
// is configured. The returned func stops it and waits for it to exit.
func startStatusServer(ctx context.Context, a *app.App, ready api.ReadinessFunc, logger *zap.Logger) func() {
	addr := a.Config().Server.Addr
	if addr == "" {
		return func() {}
	}
	srvCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	srv := api.NewServer(a.Snapshots(), ready, logger.Named("api"))
	go func() {
		defer close(done)
		if err := srv.ListenAndServe(srvCtx, addr); err != nil {
			logger.Error("Status server failed", zap.Error(err))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
