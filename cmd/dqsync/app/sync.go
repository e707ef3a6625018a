package app

import (
	"github.com/spf13/cobra"

	"github.com/agentstation/dqsync/pkg/reconciler"
)

// NewSyncCommand creates the sync command.
func (a *App) NewSyncCommand() *cobra.Command {
	var metricsFile string
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile quality checks into the catalog",
		Long: `Sync runs one full reconciliation and prints the run summary.

Per-dataset failures are recorded in the summary and do not change the
exit status. Configuration and connectivity failures exit with status 1.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.context(cmd.Context())
			svc, err := a.services(ctx)
			if err != nil {
				return err
			}

			engine, err := reconciler.New(svc.source, svc.catalog, svc.cfg.Engine(),
				reconciler.WithPolicy(svc.cfg.RetryPolicy()),
				reconciler.WithCollector(svc.collector),
			)
			if err != nil {
				return err
			}

			summary, runErr := engine.Run(ctx)
			if metricsFile != "" {
				if runErr != nil {
					svc.collector.Finish()
				}
				if err := svc.recorder.WriteTextfile(metricsFile); err != nil {
					a.logger.Warn().Err(err).Str("path", metricsFile).Msg("Failed to write metrics file")
				}
			}
			if runErr != nil {
				return runErr
			}
			return a.write(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile")
	return cmd
}
