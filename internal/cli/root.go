// Package cli implements the synde command line interface.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/syndelabs/synde/internal/api"
	"github.com/syndelabs/synde/internal/config"
	"github.com/syndelabs/synde/internal/logging"
	"github.com/syndelabs/synde/internal/notify"
	"github.com/syndelabs/synde/internal/state"
	"github.com/syndelabs/synde/internal/stream"
	"github.com/syndelabs/synde/internal/workflow"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Global flags, applied on top of the config file.
var (
	serverFlag  string
	tokenFlag   string
	configFlag  string
	verboseFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "synde",
	Short: "Terminal client for the SynDe protein design assistant",
	Long: `Synde is a chat client for the SynDe workflow service. A message spawns a
long-running protein design workflow on the server; synde follows its
progress over the live event stream and renders the result in the
terminal. Finished structure models can be saved as PDB files for an
external viewer.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("synde version {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&serverFlag, "server", "", "Server base URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Bearer token (overrides config)")
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Config file (default ~/.synde/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// cmdContext returns the command's context, which is unset when a run
// function is called outside Execute.
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// ExitError asks main to exit with a specific code. The send command uses
// it to map terminal workflow states to exit codes.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// loadSettings loads the config file and layers the global flags on top.
// It also sets the process log level.
func loadSettings() (*config.Config, error) {
	cfg, err := config.Load(configFlag)
	if err != nil {
		return nil, err
	}

	if serverFlag != "" {
		cfg.Server.URL = serverFlag
	}
	if tokenFlag != "" {
		cfg.Server.AuthToken = tokenFlag
	}

	if verboseFlag {
		logging.SetLevel(logging.LevelDebug)
	} else {
		logging.SetLevel(logging.ParseLevel(cfg.LogLevel))
	}

	return cfg, nil
}

func newAPIClient(cfg *config.Config) *api.Client {
	var opts []api.Option
	if cfg.Server.AuthToken != "" {
		opts = append(opts, api.WithAuthToken(cfg.Server.AuthToken))
	}
	return api.NewClient(cfg.Server.URL, opts...)
}

// newRegistry builds the subscription registry: stream transport, reconnect
// policy, and failure notifiers, all from config.
func newRegistry(cfg *config.Config) *workflow.Registry {
	var streamOpts []stream.ClientOption
	if cfg.Server.AuthToken != "" {
		streamOpts = append(streamOpts, stream.WithAuthToken(cfg.Server.AuthToken))
	}
	transport := stream.NewClient(cfg.Server.URL, streamOpts...)

	opts := []workflow.RegistryOption{
		workflow.WithBackoff(workflow.Backoff{
			Base:        time.Duration(cfg.Stream.BaseDelayMS) * time.Millisecond,
			MaxAttempts: cfg.Stream.MaxReconnectAttempts,
		}),
	}
	if cfg.Stream.IdleTimeoutMS > 0 {
		opts = append(opts, workflow.WithIdleTimeout(time.Duration(cfg.Stream.IdleTimeoutMS)*time.Millisecond))
	}
	if n := notifierFromConfig(cfg); n != nil {
		opts = append(opts, workflow.WithNotifier(n))
	}
	if notifySuccessFlag {
		opts = append(opts, workflow.WithSuccessNotifications())
	}
	return workflow.NewRegistry(transport, opts...)
}

// notifierFromConfig assembles the configured notifiers, or nil when all
// are disabled.
func notifierFromConfig(cfg *config.Config) notify.Notifier {
	var ns []notify.Notifier
	if cfg.Notify.Bell {
		ns = append(ns, notify.NewBell(os.Stdout))
	}
	if cfg.Notify.Desktop {
		ns = append(ns, notify.NewDesktop())
	}
	if cfg.Notify.WebhookURL != "" {
		ns = append(ns, notify.NewWebhook(cfg.Notify.WebhookURL, cfg.Notify.WebhookFormat))
	}

	switch len(ns) {
	case 0:
		return nil
	case 1:
		return ns[0]
	}
	return notify.NewMulti(ns...)
}

// openStateStore opens the session store under the configured state
// directory.
func openStateStore(cfg *config.Config) (*state.Store, error) {
	dir, err := cfg.StateDirPath()
	if err != nil {
		return nil, err
	}
	return state.NewStore(dir), nil
}
