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

func newSessionsCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   "Inspect and remove changing room sessions",
	}
	cmd.AddCommand(newSessionsListCmd(e), newSessionsDeleteCmd(e))
	return cmd
}

func newSessionsListCmd(e *env) *cobra.Command {
	var (
		status string
		tag    string
		period string
		limit  int
	)
	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   "List sessions, newest first",
		Args:    cobra.NoArgs,
		RunE: withDB(e, func(cmd *cobra.Command, args []string) error {
			actor, err := e.actorFor()
			if err != nil {
				return err
			}
			f := services.SessionFilter{Tag: strings.TrimSpace(tag)}
			for _, s := range strings.Split(status, ",") {
				switch s = strings.TrimSpace(s); s {
				case "":
				case "open":
					f.Statuses = append(f.Statuses, domain.OpenSessionStatuses...)
				default:
					f.Statuses = append(f.Statuses, domain.SessionStatus(s))
				}
			}
			from, to, err := utils.PeriodRange(period, time.Now().UTC())
			if err != nil {
				return err
			}
			if !from.IsZero() {
				f.From, f.To = &from, &to
			}

			list, total, err := e.room.Sessions.List(commandContext(cmd), actor, f, 1, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No sessions found.")
				return nil
			}
			fmt.Fprintf(out, "%-36s %-8s %-12s %4s %4s %4s %4s  %s\n", "ID", "TAG", "STATUS", "IN", "BUY", "RST", "LOST", "ENTERED")
			fmt.Fprintln(out, strings.Repeat("-", 100))
			for _, s := range list {
				fmt.Fprintf(out, "%-36s %-8s %-12s %4d %4d %4d %4d  %s\n",
					s.ID, s.Tag, s.Status, s.TotalItemsIn, s.ItemsPurchased, s.ItemsRestocked, s.ItemsLost,
					s.EntryTime.Format(time.RFC3339))
			}
			fmt.Fprintf(out, "%d of %d\n", len(list), total)
			return nil
		}),
	}
	cmd.Flags().StringVar(&status, "status", "", "comma-separated statuses (in_progress,exiting,complete,flagged,open)")
	cmd.Flags().StringVar(&tag, "tag", "", "only sessions for this tag")
	cmd.Flags().StringVar(&period, "period", "", "today|yesterday|7days|30days")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows")
	return cmd
}

func newSessionsDeleteCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <session-id>",
		Aliases: []string{"delete"},
		Short:   "Delete an erroneous session and its items",
		Args:    cobra.ExactArgs(1),
		RunE: withDB(e, func(cmd *cobra.Command, args []string) error {
			actor, err := e.actorFor()
			if err != nil {
				return err
			}
			if err := e.room.Sessions.Delete(commandContext(cmd), actor, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted session %s\n", args[0])
			return nil
		}),
	}
}
