package cli

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"edupath-service/internal/app"
	"edupath-service/internal/config"
	"edupath-service/internal/infra/postgres"
)

// NewReconcileCmd recomputes best-score aggregates from the attempt ledger
// and reports drift. With --repair, drifted aggregates are overwritten.
func NewReconcileCmd(configPath *string) *cobra.Command {
	var repair bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Check best-score aggregates against the attempt ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if cfg.Postgres.URL == "" {
				return fmt.Errorf("postgres url not configured")
			}

			sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
			db := bun.NewDB(sqldb, pgdialect.New())
			defer db.Close()

			reconciler := app.NewReconciler(postgres.NewStore(db))
			drifts, err := reconciler.ReconcileAll(cmd.Context(), repair)
			if err != nil {
				return err
			}
			if len(drifts) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "aggregates consistent with the attempt ledger")
				return nil
			}
			for _, d := range drifts {
				fmt.Fprintf(cmd.OutOrStdout(), "user %s: %s stored=%d derived=%d\n", d.UserID, d.Field, d.Stored, d.Derived)
			}
			if repair {
				fmt.Fprintf(cmd.OutOrStdout(), "repaired %d drifted field(s)\n", len(drifts))
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%d drifted field(s); run with --repair to fix\n", len(drifts))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&repair, "repair", false, "overwrite drifted aggregates with ledger-derived values")
	return cmd
}
