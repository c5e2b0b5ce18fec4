package version

import "github.com/opencontainers/go-digest"

// Decision says whether the compiler must emit a new version resource.
type Decision struct {
	NeedsNewVersion bool
	Current         digest.Digest
	Previous        digest.Digest
}

// Decide compares the current hash to the last deployed one. An empty
// lastDeployed means no version was ever recorded.
func Decide(current, lastDeployed digest.Digest) Decision {
	return Decision{
		NeedsNewVersion: lastDeployed == "" || current != lastDeployed,
		Current:         current,
		Previous:        lastDeployed,
	}
}
