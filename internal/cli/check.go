package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/driftless/internal/pipeline"
)

// CheckResult is the outcome of a necessity check.
type CheckResult struct {
	Stack     string `json:"stack"`
	Skip      bool   `json:"skip"`
	Reason    string `json:"reason"`
	Detail    string `json:"detail,omitempty"`
	Directory string `json:"directory,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report whether a deploy is needed",
		Long: `Compare the packaged service with the last deployment and report whether
deploying it would change anything. Nothing is uploaded, deleted or recorded.

Example:
  driftless check --stage prod
  driftless check --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, rootOpts, sessionNeeds{cloud: true}, runCheck)
		},
	}
	return cmd
}

func runCheck(ctx context.Context, s *session) error {
	bundle, err := s.bundle()
	if err != nil {
		return err
	}
	report, err := s.pipeline.Check(ctx, s.service, bundle, s.options())
	if err != nil {
		return err
	}
	return outputCheck(s.formatter, checkResult(report))
}

func checkResult(r *pipeline.Report) CheckResult {
	return CheckResult{
		Stack:     r.Stack,
		Skip:      r.Decision.Skip,
		Reason:    string(r.Decision.Reason),
		Detail:    r.Decision.Detail,
		Directory: r.Decision.Directory,
	}
}

func outputCheck(formatter *OutputFormatter, result CheckResult) error {
	if result.Directory != "" {
		formatter.VerboseLog("Compared with %s", result.Directory)
	}
	return formatter.Emit(result, func(w io.Writer) {
		fmt.Fprintf(w, "%s %s: %s\n",
			bool2word(result.Skip, "skip", "deploy"), result.Stack, describeReason(result))
	})
}

func describeReason(r CheckResult) string {
	if r.Detail == "" {
		return r.Reason
	}
	return fmt.Sprintf("%s (%s)", r.Reason, r.Detail)
}
