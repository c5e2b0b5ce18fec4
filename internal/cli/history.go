package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/driftless/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded deploy decisions",
		Long: `Show the deploy decisions recorded in the ledger for the service's stack,
newest first.

Example:
  driftless history --limit 5
  driftless history --stage prod --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, rootOpts, sessionNeeds{}, func(ctx context.Context, s *session) error {
				return runHistory(ctx, s, opts)
			})
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "number of deploys to show (0 for all)")

	return cmd
}

func runHistory(ctx context.Context, s *session, opts *HistoryOptions) error {
	deploys, err := s.ledger.History(ctx, s.service.StackName(), opts.Limit)
	if err != nil {
		return err
	}
	if deploys == nil {
		deploys = []store.Deploy{}
	}

	return s.formatter.Emit(deploys, func(w io.Writer) {
		if len(deploys) == 0 {
			fmt.Fprintf(w, "No deploys recorded for %s\n", s.service.StackName())
			return
		}
		for _, d := range deploys {
			fmt.Fprintf(w, "%s  %-7s  %-17s  %s\n",
				d.StartedAt.Format(time.RFC3339), d.Decision, d.Reason, d.ID)
		}
	})
}
