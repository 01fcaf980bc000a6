// Package cmd defines and implements the CLI commands for the dynhandlers executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/dynamic-handlers/internal/app"
	"github.com/JakeFAU/dynamic-handlers/internal/client"
	"github.com/JakeFAU/dynamic-handlers/internal/config"
	"github.com/JakeFAU/dynamic-handlers/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close(ctx context.Context) error
	GetLogger() *zap.Logger
	NewClient(out io.Writer) *client.WorkerClient
	MetricSummary() ([]app.MetricValue, error)
	WorkerTypes() []string
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(cfgFile string) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}
	a, err := app.NewApp(cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	return appAdapter{a}, nil
}

type appAdapter struct {
	*app.App
}

func (a appAdapter) WorkerTypes() []string {
	return a.GetRegistry().Names()
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "dynhandlers",
		Short: "Bind event handlers to workers resolved by name at runtime.",
		Long: `dynhandlers resolves a worker type by its registered name, subscribes a
progress handler to the worker's event by name, runs the work method and
unsubscribes the handler afterwards. Progress lines are written to stdout;
logs go to stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Build the application once flags are parsed and hand it to subcommands.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return appInstance.Close(cmd.Context())
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment overrides use the "+config.EnvPrefix+"_ prefix")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newTypesCmd())

	return cmd
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point.
func Execute() {
	root := newRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		if client.IsLookupError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
