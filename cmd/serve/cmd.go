// Package serve builds the collaborators, binds the HTTP façade, and
// runs until SIGINT/SIGTERM, the way the teacher's cmd/run wires
// configs, installs a signal handler, and waits for a clean stop. Per
// spec §6 the agent has a single flat CLI surface (no subcommands), so
// AddFlags and Run are mounted directly on the root command rather than
// on a cobra subcommand of their own.
package serve

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/combust-labs/smartmob-agent/configs"
	"github.com/combust-labs/smartmob-agent/pkg/envprovision"
	"github.com/combust-labs/smartmob-agent/pkg/fetcher"
	"github.com/combust-labs/smartmob-agent/pkg/httpapi"
	"github.com/combust-labs/smartmob-agent/pkg/pipeline"
	"github.com/combust-labs/smartmob-agent/pkg/registry"
	"github.com/combust-labs/smartmob-agent/pkg/supervisor"
	"github.com/combust-labs/smartmob-agent/pkg/utils"
	"github.com/combust-labs/smartmob-agent/pkg/workspace"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"golang.org/x/sync/semaphore"
)

// shutdownGracePeriod is how long the HTTP server drains inflight
// connections on SIGINT/SIGTERM (spec §5).
const shutdownGracePeriod = 1 * time.Second

// extractWorkerPoolSize bounds concurrent archive extractions (spec §4.3, §5).
const extractWorkerPoolSize = 4

var (
	workspaceConfig = configs.NewWorkspaceConfig()
	serverConfig    = configs.NewServerConfig()
	logConfig       = configs.NewLogginConfig()
)

// AddFlags mounts every configs.*Config.FlagSet() this command needs
// onto cmd's own flag set.
func AddFlags(cmd *cobra.Command) {
	cmd.Flags().AddFlagSet(workspaceConfig.FlagSet())
	cmd.Flags().AddFlagSet(serverConfig.FlagSet())
	cmd.Flags().AddFlagSet(logConfig.FlagSet())
}

// Run is the root command's cobra.Command.Run: validate configuration,
// wire the agent's collaborators, bind the HTTP façade, and block until
// a shutdown signal.
func Run(cobraCommand *cobra.Command, _ []string) {
	cleanup := utils.NewDefers()
	defer cleanup.CallAll()

	rootLogger := logConfig.NewLogger("smartmob-agent")

	validatingConfigs := []configs.ValidatingConfig{
		workspaceConfig,
		serverConfig,
		logConfig,
	}
	for _, validatingConfig := range validatingConfigs {
		if err := validatingConfig.Validate(); err != nil {
			rootLogger.Error("configuration is invalid", "reason", err)
			os.Exit(1)
		}
	}

	sink, sinkErr := logConfig.NewSink()
	if sinkErr != nil {
		rootLogger.Error("failed building logging sink", "reason", sinkErr)
		os.Exit(1)
	}
	cleanup.Add(func() {
		if err := sink.Close(); err != nil {
			rootLogger.Warn("failed closing logging sink", "reason", err)
		}
	})

	ws := workspace.New(workspaceConfig.Root)
	if err := ws.Ensure(); err != nil {
		// Fatal per spec §4.1: missing workspace directories abort bootstrap.
		rootLogger.Error("failed creating workspace directories", "reason", err)
		os.Exit(1)
	}

	reg := registry.New(rootLogger.Named("registry"))
	pl := pipeline.New(pipeline.Deps{
		Fetcher:     fetcher.New(nil),
		Provisioner: envprovision.New(envprovision.DefaultTool),
		Supervisor:  supervisor.New(rootLogger.Named("supervisor")),
		Accept:      fetcher.DefaultAccept,
		ExtractSem:  semaphore.NewWeighted(extractWorkerPoolSize),
		Logger:      rootLogger.Named("pipeline"),
	})

	apiServer := httpapi.NewServer(reg, ws, pl, sink, rootLogger.Named("httpapi"))

	httpServer := &http.Server{
		Addr:    serverConfig.Addr(),
		Handler: apiServer.Handler(),
	}

	chanServeErr := make(chan error, 1)
	go func() {
		sink.Info("bind", "addr", serverConfig.Addr())
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			chanServeErr <- err
			return
		}
		chanServeErr <- nil
	}()

	chanStopped := installSignalHandlers(rootLogger)

	select {
	case err := <-chanServeErr:
		if err != nil {
			rootLogger.Error("HTTP server failed", "reason", err)
			os.Exit(1)
		}
	case <-chanStopped:
		rootLogger.Info("caught shutdown signal, draining connections")
		shutdownErrs := &multierror.Error{}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownGracePeriod)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			shutdownErrs = multierror.Append(shutdownErrs, err)
		}
		if err := <-chanServeErr; err != nil {
			shutdownErrs = multierror.Append(shutdownErrs, err)
		}
		if err := shutdownErrs.ErrorOrNil(); err != nil {
			rootLogger.Error("errors during shutdown", "reason", err)
		}
	}

	rootLogger.Info("smartmob-agent is stopped")
}

// installSignalHandlers mirrors the teacher's cmd/run pattern: a
// goroutine owns signal.Notify and forwards a single notification on
// the returned channel.
func installSignalHandlers(logger hclog.Logger) chan struct{} {
	chanStopped := make(chan struct{}, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt, syscall.SIGTERM)
		<-c
		logger.Info("caught SIGINT/SIGTERM, requesting clean shutdown")
		chanStopped <- struct{}{}
	}()
	return chanStopped
}
