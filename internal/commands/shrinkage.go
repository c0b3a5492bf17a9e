package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/services"
	"github.com/tbourn/go-changingroom-backend/internal/utils"
)

func newShrinkageCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "shrinkage",
		Short: "Review the loss log",
	}
	cmd.AddCommand(newShrinkageListCmd(e), newShrinkageRecoverCmd(e))
	return cmd
}

func newShrinkageListCmd(e *env) *cobra.Command {
	var (
		period  string
		barcode string
		lost    bool
		limit   int
	)
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List shrinkage entries, newest first",
		Args:    cobra.NoArgs,
		RunE: withDB(e, func(cmd *cobra.Command, args []string) error {
			actor, err := e.actorFor()
			if err != nil {
				return err
			}
			f := services.ShrinkageFilter{Barcode: strings.TrimSpace(barcode)}
			if lost {
				f.Status = domain.ShrinkageLost
			}
			from, to, err := utils.PeriodRange(period, time.Now().UTC())
			if err != nil {
				return err
			}
			if !from.IsZero() {
				f.From, f.To = &from, &to
			}
			list, total, err := e.room.Shrinkage.List(commandContext(cmd), actor, f, 1, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No shrinkage recorded.")
				return nil
			}
			fmt.Fprintf(out, "%-36s %-20s %-10s %-25s  %s\n", "ID", "BARCODE", "STATUS", "LOST", "NOTES")
			fmt.Fprintln(out, strings.Repeat("-", 110))
			for _, s := range list {
				notes := s.Notes
				if len(notes) > 40 {
					notes = notes[:37] + "..."
				}
				fmt.Fprintf(out, "%-36s %-20s %-10s %-25s  %s\n",
					s.ID, s.Barcode, s.Status, s.LostAt.Format(time.RFC3339), notes)
			}
			fmt.Fprintf(out, "%d of %d\n", len(list), total)
			return nil
		}),
	}
	cmd.Flags().StringVar(&period, "period", "", "today|yesterday|7days|30days")
	cmd.Flags().StringVar(&barcode, "barcode", "", "only entries for this barcode")
	cmd.Flags().BoolVar(&lost, "lost", false, "only entries still lost")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func newShrinkageRecoverCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "recover <entry-id>",
		Short: "Mark a lost garment as recovered",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(e, func(cmd *cobra.Command, args []string) error {
			actor, err := e.actorFor()
			if err != nil {
				return err
			}
			entry, err := e.room.Shrinkage.Recover(commandContext(cmd), actor, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "recovered %s (%s)\n", entry.ID, entry.Barcode)
			return nil
		}),
	}
}
