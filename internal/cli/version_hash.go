package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/driftless/internal/template"
)

// VersionHashOptions holds flags for the version-hash command.
type VersionHashOptions struct {
	*RootOptions
	EnforceHashUpdate bool
}

// VersionHash is one function's version hash and whether it needs a new
// published version.
type VersionHash struct {
	Function        string `json:"function"`
	LogicalID       string `json:"logical_id"`
	Hash            string `json:"hash"`
	Previous        string `json:"previous,omitempty"`
	NeedsNewVersion bool   `json:"needs_new_version"`
}

// NewVersionHashCommand creates the version-hash command.
func NewVersionHashCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VersionHashOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "version-hash",
		Short: "Print every function's version hash",
		Long: `Compute the version hash of every function from its code, configuration
and layers, and compare it with the hash recorded at the last deploy. Only the
ledger is read.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, rootOpts, sessionNeeds{}, func(ctx context.Context, s *session) error {
				return runVersionHash(ctx, s, opts)
			})
		},
	}

	cmd.Flags().BoolVar(&opts.EnforceHashUpdate, "enforce-hash-update", false, "change every function version hash once")

	return cmd
}

func runVersionHash(ctx context.Context, s *session, opts *VersionHashOptions) error {
	bundle, err := s.bundle()
	if err != nil {
		return err
	}
	popts := s.options()
	popts.EnforceHashUpdate = opts.EnforceHashUpdate

	versions, err := s.pipeline.VersionHashes(ctx, s.service, bundle, popts)
	if err != nil {
		return err
	}
	hashes := versionHashes(versions)

	return s.formatter.Emit(hashes, func(w io.Writer) {
		for _, v := range hashes {
			fmt.Fprintf(w, "%s %s %s\n",
				v.Function, v.Hash, bool2word(v.NeedsNewVersion, "new-version", "unchanged"))
		}
	})
}

func versionHashes(versions []template.Version) []VersionHash {
	out := make([]VersionHash, len(versions))
	for i, v := range versions {
		out[i] = VersionHash{
			Function:        v.Function,
			LogicalID:       v.LogicalID,
			Hash:            v.Current.String(),
			Previous:        v.Previous.String(),
			NeedsNewVersion: v.NeedsNewVersion,
		}
	}
	return out
}
