package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newBasketsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "baskets",
		Aliases: []string{"basket"},
		Short:   "Inspect and clean up purchase baskets",
	}
	cmd.AddCommand(newBasketsListCmd(e), newBasketsPurgeCmd(e))
	return cmd
}

func newBasketsListCmd(e *env) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List active baskets, oldest first",
		Args:    cobra.NoArgs,
		RunE: withDB(e, func(cmd *cobra.Command, args []string) error {
			actor, err := e.actorFor()
			if err != nil {
				return err
			}
			list, _, err := e.room.Baskets.ListActive(commandContext(cmd), actor, 1, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No active baskets.")
				return nil
			}
			for _, b := range list {
				barcodes := make([]string, 0, len(b.Items))
				for _, it := range b.Items {
					barcodes = append(barcodes, it.Barcode)
				}
				fmt.Fprintf(out, "#%-5d %-36s %s\n", b.BasketNumber, b.SessionID, strings.Join(barcodes, ","))
			}
			return nil
		}),
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func newBasketsPurgeCmd(e *env) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Remove transferred baskets older than the grace period",
		Args:  cobra.NoArgs,
		RunE: withDB(e, func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("older-than") {
				olderThan = e.cfg.BasketGracePeriod
			}
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			n, err := e.room.Baskets.PurgeTransferred(commandContext(cmd), olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d baskets\n", n)
			return nil
		}),
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "grace period, defaults to BASKET_GRACE_PERIOD")
	return cmd
}
