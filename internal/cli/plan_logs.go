package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/driftless/internal/logsub"
)

// LogPlan lists the subscription filters a deploy would delete.
type LogPlan struct {
	Stack     string            `json:"stack"`
	Deletions []logsub.Deletion `json:"deletions"`
}

// NewPlanLogsCommand creates the plan-logs command.
func NewPlanLogsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan-logs",
		Short: "List the subscription filters a deploy would delete",
		Long: `Read the subscription filters of every log group the service subscribes
to and list the ones this stack owns but no longer declares. Nothing is
deleted. Fails when a log group would exceed the filter limit.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, rootOpts, sessionNeeds{cloud: true}, runPlanLogs)
		},
	}
	return cmd
}

func runPlanLogs(ctx context.Context, s *session) error {
	plan, err := s.pipeline.PlanLogs(ctx, s.service)
	if err != nil {
		return err
	}
	result := LogPlan{Stack: s.service.StackName(), Deletions: plan.Deletions}
	if result.Deletions == nil {
		result.Deletions = []logsub.Deletion{}
	}

	return s.formatter.Emit(result, func(w io.Writer) {
		if plan.Empty() {
			fmt.Fprintf(w, "No subscription filters to delete for %s\n", result.Stack)
			return
		}
		fmt.Fprintf(w, "%s would delete %s:\n", result.Stack, plural(len(result.Deletions), "subscription filter"))
		for _, d := range result.Deletions {
			fmt.Fprintf(w, "  %s %s\n", d.LogGroupName, d.FilterName)
		}
	})
}
