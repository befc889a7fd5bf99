package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/linkcrawler/internal/app"
	"github.com/JakeFAU/linkcrawler/internal/config"
	"github.com/JakeFAU/linkcrawler/internal/logging"
	"github.com/JakeFAU/linkcrawler/internal/metrics"
)

// version is stamped at build time with -ldflags "-X .../cmd.version=...".
var version = "dev"

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// needsAppAnnotation marks commands that run against the application services.
// Help and completion commands skip service initialization.
const needsAppAnnotation = "linkcrawler/needs-app"

// newApp is the application factory. It's a variable so tests can point the
// services at a private Prometheus registry.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.NewApp(ctx, cfg, logger, prometheus.DefaultRegisterer)
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "linkcrawler",
		Short: "Crawls a website and reports the status of every link it finds.",
		Long: `linkcrawler walks a site breadth-first from one or more seed URLs, checks
every link it finds (internal and external), and writes a crawl log, a URL
status table and a site map. Only pages on the seed hosts are followed.`,
		SilenceUsage: true,

		// Loads configuration, installs the global logger and builds the
		// application services before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[needsAppAnnotation] != "true" {
				return nil
			}
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			metrics.SetBuildInfo(version)

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				logger.Error("Failed to initialize application services", zap.Error(err))
				_ = logging.Sync(logger)
				return fmt.Errorf("initialize application services: %w", err)
			}

			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./linkcrawler.yaml or $HOME/.linkcrawler/linkcrawler.yaml)")
	cmd.PersistentFlags().Bool("dev", false, "use the development logger")

	cmd.AddCommand(newCrawlCmd())

	return cmd
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the crawl.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			zap.L().Error("Command execution failed", zap.Error(err))
		}
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
