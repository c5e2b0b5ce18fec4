package logsub

import "github.com/roach88/driftless/internal/cfn"

// MaxFiltersPerLogGroup is the provider ceiling on subscription filters.
const MaxFiltersPerLogGroup = 2

// DesiredFilter is a subscription filter the compiled template declares.
type DesiredFilter struct {
	// LogicalID is the template resource of the filter.
	LogicalID string
	// Function is the service function key the filter delivers to.
	Function      string
	LogGroupName  string
	FilterPattern string
	// FilterName is the physical name prefix the provider generates,
	// "<stack>-<logicalID>-" followed by a random suffix.
	FilterName  string
	Destination cfn.Value
}

// ObservedFilter is a subscription filter reported by the provider.
type ObservedFilter struct {
	LogGroupName   string
	FilterName     string
	FilterPattern  string
	DestinationARN string
}

// Deletion removes one observed filter.
type Deletion struct {
	LogGroupName string `json:"logGroupName"`
	FilterName   string `json:"filterName"`
}

// Plan is the set of deletions computed by ReconcileLogSubscriptions.
type Plan struct {
	Deletions []Deletion `json:"deletions"`
}

// Empty reports whether the plan deletes nothing.
func (p Plan) Empty() bool {
	return len(p.Deletions) == 0
}
