package cmd

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newRunCmd creates the 'run' subcommand, which performs one worker run.
func newRunCmd() *cobra.Command {
	var showMetrics bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the configured worker once",
		Long: `Resolves the configured worker type, binds the client's progress handler
to the worker's event, invokes the work method and unbinds the handler.
Each progress notification is printed as "Progress: <message>".`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			logger := appInstance.GetLogger()

			runErr := appInstance.NewClient(cmd.OutOrStdout()).RunWorker(cmd.Context())

			// Drain run events now: post-run hooks are skipped when RunE fails,
			// and metrics are only complete once the hub has drained.
			if err := appInstance.Close(cmd.Context()); err != nil {
				logger.Warn("close after run", zap.Error(err))
			}
			if !showMetrics {
				return runErr
			}
			summary, err := appInstance.MetricSummary()
			if err != nil {
				logger.Warn("metrics summary unavailable", zap.Error(err))
				return runErr
			}
			for _, mv := range summary {
				logger.Info("metric", zap.String("name", mv.Key), zap.Float64("value", mv.Value))
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&showMetrics, "metrics", false, "log a summary of run metrics after the run")
	return cmd
}
