package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-changingroom-backend/internal/services"
)

func newJanitorCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "janitor",
		Short: "Run background housekeeping by hand",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Purge old baskets and idempotency records, report stale sessions",
		Args:  cobra.NoArgs,
		RunE: withDB(e, func(cmd *cobra.Command, args []string) error {
			j := &services.Janitor{
				DB:          e.db,
				Baskets:     e.room.Baskets,
				BasketGrace: e.cfg.BasketGracePeriod,
				StaleAfter:  e.cfg.StaleSessionAfter,
			}
			rep := j.Sweep(commandContext(cmd))
			fmt.Fprintf(cmd.OutOrStdout(), "baskets purged: %d\nidempotency records purged: %d\nstale sessions: %d\n",
				rep.BasketsPurged, rep.IdempotencyPurged, rep.StaleSessionsFound)
			return nil
		}),
	})
	return cmd
}
