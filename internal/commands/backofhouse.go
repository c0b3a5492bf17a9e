package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tbourn/go-changingroom-backend/internal/domain"
	"github.com/tbourn/go-changingroom-backend/internal/services"
)

func newBackOfHouseCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "boh",
		Aliases: []string{"back-of-house"},
		Short:   "Work the back-of-house restock queue",
	}
	cmd.AddCommand(newBackOfHouseListCmd(e), newBackOfHouseReturnCmd(e))
	return cmd
}

func newBackOfHouseListCmd(e *env) *cobra.Command {
	var (
		all     bool
		urgency string
		limit   int
	)
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List garments awaiting return to the floor",
		Args:    cobra.NoArgs,
		RunE: withDB(e, func(cmd *cobra.Command, args []string) error {
			actor, err := e.actorFor()
			if err != nil {
				return err
			}
			f := services.BackOfHouseFilter{Status: domain.BackOfHouseAwaiting}
			if all {
				f.Status = ""
			}
			if urgency != "" {
				u, ok := domain.ParseUrgency(urgency)
				if !ok {
					return fmt.Errorf("unknown urgency %q", urgency)
				}
				f.Urgency = u
			}
			list, total, err := e.room.BackOfHouse.List(commandContext(cmd), actor, f, 1, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "Queue is empty.")
				return nil
			}
			fmt.Fprintf(out, "%-36s %-20s %-16s %-9s %5s  %s\n", "ID", "BARCODE", "STATUS", "URGENCY", "WAIT", "RECEIVED")
			fmt.Fprintln(out, strings.Repeat("-", 110))
			for _, v := range list {
				fmt.Fprintf(out, "%-36s %-20s %-16s %-9s %4dm  %s\n",
					v.ID, v.Barcode, v.Status, v.Urgency, v.WaitMinutes, v.ReceivedAt.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "%d of %d\n", len(list), total)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "include returned entries")
	cmd.Flags().StringVar(&urgency, "urgency", "", "normal|warning|critical")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func newBackOfHouseReturnCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "return <entry-id>",
		Short: "Mark a queued garment as returned to the floor",
		Args:  cobra.ExactArgs(1),
		RunE: withDB(e, func(cmd *cobra.Command, args []string) error {
			actor, err := e.actorFor()
			if err != nil {
				return err
			}
			entry, err := e.room.BackOfHouse.MarkReturned(commandContext(cmd), actor, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "returned %s (%s)\n", entry.ID, entry.Barcode)
			return nil
		}),
	}
}
