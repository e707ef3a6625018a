package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/agentstation/dqsync/internal/collibra"
	"github.com/agentstation/dqsync/internal/soda"
	"github.com/agentstation/dqsync/pkg/constants"
	"github.com/agentstation/dqsync/pkg/errors"
	"github.com/agentstation/dqsync/pkg/retry"
)

// ConnectionReport is printed by the check command.
type ConnectionReport struct {
	Organisation   string `json:"organisation" yaml:"organisation"`
	CatalogVersion string `json:"catalog_version" yaml:"catalog_version"`
	CatalogBuild   string `json:"catalog_build,omitempty" yaml:"catalog_build,omitempty"`
}

// NewCheckCommand creates the check command.
func (a *App) NewCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Test both service connections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := a.context(cmd.Context())
			svc, err := a.services(ctx)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(ctx, constants.ConnectionTestTimeout)
			defer cancel()

			policy := svc.cfg.RetryPolicy()
			org, err := retry.Value(ctx, policy, "test soda connection", svc.source.TestConnection)
			if err != nil {
				return errors.WrapResource("connect", "service", soda.ServiceName, err)
			}
			info, err := retry.Value(ctx, policy, "test collibra connection", svc.catalog.ApplicationInfo)
			if err != nil {
				return errors.WrapResource("connect", "service", collibra.ServiceName, err)
			}
			return a.write(cmd.OutOrStdout(), ConnectionReport{
				Organisation:   org.Name,
				CatalogVersion: info.Version.FullVersion,
				CatalogBuild:   info.BuildNumber,
			})
		},
	}
}
