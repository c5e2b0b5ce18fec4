package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/driftless/internal/logsub"
	"github.com/roach88/driftless/internal/pipeline"
)

// DeployOptions holds flags for the deploy command.
type DeployOptions struct {
	*RootOptions
	EnforceHashUpdate bool
}

// DeployResult summarizes a deploy.
type DeployResult struct {
	DeployID  string            `json:"deploy_id"`
	Stack     string            `json:"stack"`
	Bucket    string            `json:"bucket,omitempty"`
	Directory string            `json:"directory,omitempty"`
	Skip      bool              `json:"skip"`
	Reason    string            `json:"reason"`
	Detail    string            `json:"detail,omitempty"`
	Applied   string            `json:"applied,omitempty"`
	Deleted   []logsub.Deletion `json:"deleted_filters,omitempty"`
	Versions  []VersionHash     `json:"versions,omitempty"`
}

// NewDeployCommand creates the deploy command.
func NewDeployCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeployOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the service unless nothing changed",
		Long: `Deploy the packaged service. The deploy is skipped when the code and the
compiled template match the last deployment and every function is at least as
new as its artifact. Otherwise stale log subscription filters are deleted, the
artifacts are uploaded to a new deployment folder and the stack is updated.

Example:
  driftless deploy --stage prod
  driftless deploy --force`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, rootOpts, sessionNeeds{cloud: true}, func(ctx context.Context, s *session) error {
				return runDeploy(ctx, s, opts)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.EnforceHashUpdate, "enforce-hash-update", false, "change every function version hash once")

	return cmd
}

func runDeploy(ctx context.Context, s *session, opts *DeployOptions) error {
	bundle, err := s.bundle()
	if err != nil {
		return err
	}
	popts := s.options()
	popts.EnforceHashUpdate = opts.EnforceHashUpdate

	report, err := s.pipeline.Deploy(ctx, s.service, bundle, popts)
	if err != nil {
		if report != nil {
			s.formatter.VerboseLog("Deploy %s failed after decision %s", report.DeployID, report.Decision.Reason)
		}
		return err
	}
	return outputDeploy(s.formatter, deployResult(report))
}

func deployResult(r *pipeline.Report) DeployResult {
	return DeployResult{
		DeployID:  r.DeployID.String(),
		Stack:     r.Stack,
		Bucket:    r.Bucket,
		Directory: r.Directory,
		Skip:      r.Decision.Skip,
		Reason:    string(r.Decision.Reason),
		Detail:    r.Decision.Detail,
		Applied:   string(r.Applied),
		Deleted:   r.Filters.Deleted,
		Versions:  versionHashes(r.Versions),
	}
}

func outputDeploy(formatter *OutputFormatter, result DeployResult) error {
	return formatter.Emit(result, func(w io.Writer) {
		writeDeploy(w, result)
	})
}

func writeDeploy(w io.Writer, result DeployResult) {
	if result.Skip {
		fmt.Fprintf(w, "Skipped %s: %s\n", result.Stack, result.Reason)
		return
	}
	reason := result.Reason
	if result.Detail != "" {
		reason += " (" + result.Detail + ")"
	}
	fmt.Fprintf(w, "Deployed %s: %s, stack %s\n", result.Stack, reason, result.Applied)
	fmt.Fprintf(w, "  folder: s3://%s/%s\n", result.Bucket, result.Directory)
	if len(result.Deleted) > 0 {
		fmt.Fprintf(w, "  deleted %s:\n", plural(len(result.Deleted), "subscription filter"))
		for _, d := range result.Deleted {
			fmt.Fprintf(w, "    %s %s\n", d.LogGroupName, d.FilterName)
		}
	}
	for _, v := range result.Versions {
		if v.NeedsNewVersion {
			fmt.Fprintf(w, "  new version: %s\n", v.Function)
		}
	}
}
