package app

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/agentstation/dqsync/internal/collibra"
	"github.com/agentstation/dqsync/pkg/errors"
)

// MetadataReport is printed by the metadata-sync command.
type MetadataReport struct {
	DatabaseID          string   `json:"database_id" yaml:"database_id"`
	SchemaConnectionIDs []string `json:"schema_connection_ids" yaml:"schema_connection_ids"`
	Status              string   `json:"status" yaml:"status"`
	JobID               string   `json:"job_id,omitempty" yaml:"job_id,omitempty"`
	JobStatus           string   `json:"job_status,omitempty" yaml:"job_status,omitempty"`
	Message             string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// NewMetadataSyncCommand creates the metadata-sync command.
func (a *App) NewMetadataSyncCommand() *cobra.Command {
	var (
		databaseID  string
		schemaIDs   []string
		connections []string
		wait        bool
		wo          collibra.WaitOptions
	)
	cmd := &cobra.Command{
		Use:   "metadata-sync",
		Short: "Trigger a catalog metadata sync of a database",
		Long: `Metadata-sync starts the catalog's metadata synchronization of a database
asset, optionally limited to some schemas. Schemas are given either as
schema connection ids or as schema asset ids, which are resolved through
the database connection. A sync that is already running is not an error.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if databaseID == "" {
				return errors.NewValidationError("database", databaseID, "is required")
			}
			ctx := a.context(cmd.Context())
			svc, err := a.services(ctx)
			if err != nil {
				return err
			}

			ids := append([]string(nil), connections...)
			if len(schemaIDs) > 0 {
				resolved, err := svc.catalog.SchemaConnectionIDs(ctx, databaseID, schemaIDs)
				if err != nil {
					return err
				}
				ids = append(ids, resolved...)
			}

			result, err := svc.catalog.TriggerMetadataSync(ctx, databaseID, ids)
			if err != nil {
				return err
			}
			report := MetadataReport{
				DatabaseID:          result.DatabaseID,
				SchemaConnectionIDs: result.SchemaConnectionIDs,
				Status:              result.Status,
				JobID:               result.JobID,
				Message:             result.Message,
			}
			if wait && result.JobID != "" {
				job, err := svc.catalog.WaitForJob(ctx, result.JobID, wo)
				if job != nil {
					report.JobStatus = job.Status
				}
				if err != nil {
					_ = a.write(cmd.OutOrStdout(), report)
					return err
				}
			}
			return a.write(cmd.OutOrStdout(), report)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&databaseID, "database", "", "catalog database asset id")
	flags.StringSliceVar(&schemaIDs, "schema", nil, "schema asset id to limit the sync to (repeatable)")
	flags.StringSliceVar(&connections, "schema-connection", nil, "schema connection id to limit the sync to (repeatable)")
	flags.BoolVar(&wait, "wait", false, "wait for the sync job to finish")
	flags.DurationVar(&wo.PollInterval, "poll-interval", 10*time.Second, "job status poll interval with --wait")
	flags.DurationVar(&wo.MaxWait, "max-wait", time.Hour, "maximum time to wait with --wait")
	return cmd
}
