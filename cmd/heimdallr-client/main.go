package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"

	"github.com/danmuck/heimdallr-client/internal/config"
	"github.com/danmuck/heimdallr-client/internal/launcher"
	"github.com/danmuck/heimdallr-client/internal/lock"
	"github.com/danmuck/heimdallr-client/internal/locator"
	"github.com/danmuck/heimdallr-client/internal/logging"
	"github.com/danmuck/heimdallr-client/internal/observability"
	"github.com/danmuck/heimdallr-client/internal/registry"
	"github.com/danmuck/heimdallr-client/internal/resolver"
	"github.com/danmuck/heimdallr-client/internal/rpc"
	"github.com/danmuck/heimdallr-client/internal/tools"
	"github.com/danmuck/heimdallr-client/internal/uri"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
)

const errorTitle = "Heimdallr Error"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

// execute runs the command tree and returns the process exit status.
func execute(ctx context.Context, args []string) int {
	code := resolver.ExitOK
	root := newRootCommand(&code)
	if args == nil {
		args = []string{}
	}
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "heimdallr-client: %v\n", err)
		if code == resolver.ExitOK {
			code = resolver.ExitCode(err)
		}
	}
	return code
}

func newRootCommand(code *int) *cobra.Command {
	root := &cobra.Command{
		Use:   "heimdallr-client <reference>",
		Short: "Open an ida:// or disas:// reference in a running or freshly launched IDA",
		Long: `Resolve a reference to a live IDA RPC endpoint and jump to its offset.

The reference may arrive split across several arguments by a desktop URL
handler; the arguments are joined before parsing.`,
		Example: strings.TrimSpace(`
heimdallr-client "ida://sample.i64?hash=0123abcd&offset=0x401000&view=pseudo"
heimdallr-client list
heimdallr-client init`),
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			*code = resolveReference(cmd.Context(), strings.Join(args, ""))
			return nil
		},
	}
	root.AddCommand(newListCommand(), newInitCommand())
	return root
}

// resolveReference is the URL handler path. Every failure is shown to the
// desktop user before the exit code is returned.
func resolveReference(ctx context.Context, reference string) int {
	runner := tools.ExecRunner{}
	platform := launcher.ForOS(runtime.GOOS, runner)
	fail := func(err error) int {
		log.Error().Err(err).Msg("heimdallr-client failed")
		if notifyErr := platform.Notify(errorTitle, err.Error()); notifyErr != nil {
			log.Error().Err(notifyErr).Msg("notify failed")
		}
		return resolver.ExitCode(err)
	}

	paths, err := config.ResolvePaths(runtime.GOOS, os.Getenv)
	if err != nil {
		logging.ConfigureRuntime(nil)
		return fail(err)
	}
	if err := paths.Ensure(); err != nil {
		logging.ConfigureRuntime(nil)
		return fail(err)
	}
	logFile, err := os.Create(paths.LogPath())
	if err != nil {
		logging.ConfigureRuntime(nil)
		log.Warn().Err(err).Str("path", paths.LogPath()).Msg("client log unavailable")
	} else {
		defer logFile.Close()
		logging.ConfigureRuntime(logFile)
	}
	log.Debug().Str("config_dir", paths.ConfigDir).Str("user_dir", paths.UserDir).Msg("paths resolved")

	cfg, err := loadClientConfig(paths)
	if err != nil {
		return fail(err)
	}
	logging.SetLevel(cfg.LogLevel)

	metrics := observability.NewMetrics()
	defer func() {
		if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
			log.Warn().Err(err).Msg("metrics textfile")
		}
	}()

	log.Info().Str("reference", reference).Msg("resolving reference")
	req, err := uri.Parse(reference)
	if err != nil {
		return fail(err)
	}

	coordinator := resolver.New(resolver.Options{
		Lock:     lock.New(cfg.LockOptions()),
		Registry: registry.New(cfg.RegistryDir()),
		Locator:  locator.New(cfg.LocatorOptions(runner)),
		Platform: platform,
		Caller: rpc.NewClient(cfg.RPCTimeout,
			grpc.WithChainUnaryInterceptor(observability.UnaryClientInterceptor(log.Logger, metrics))),
		App:                cfg.Settings.IDALocation,
		Wait:               cfg.WaitOptions(),
		MaxEndpointRetries: cfg.MaxEndpointRetries,
		Metrics:            metrics,
	})
	res, err := coordinator.Resolve(ctx, resolver.Request{
		Ref:    req.Ref,
		Target: rpc.Target{View: req.View, Offset: req.Offset, Size: req.Size},
	})
	if err != nil {
		return fail(err)
	}
	log.Info().
		Str("address", res.Endpoint.Address).
		Bool("launched", res.Launched).
		Int("attempts", res.Attempts).
		Msg("reference resolved")
	return resolver.ExitOK
}
