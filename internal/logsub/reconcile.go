package logsub

import (
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// ReconcileLogSubscriptions computes the deletions that bring observed
// filters in line with the desired ones.
//
// The limit check runs first over every desired log group: desired filters
// plus observed filters the stack does not own must fit the provider
// ceiling, or the call fails before any deletion is planned. Owned filters
// whose name matches no desired filter of their log group are then deleted;
// foreign filters are never deleted. Deletions are sorted by log group and
// filter name.
func ReconcileLogSubscriptions(desired []DesiredFilter, observedByLogGroup map[string][]ObservedFilter, owner Owner) (Plan, error) {
	grouped := GroupByLogGroup(desired)

	for _, group := range sortedKeys(grouped) {
		foreign := 0
		for _, f := range observedByLogGroup[group] {
			if !owner.Owns(f) {
				foreign++
			}
		}
		if len(grouped[group])+foreign > MaxFiltersPerLogGroup {
			return Plan{}, limitExceeded(group, len(grouped[group]), foreign)
		}
	}

	plan := Plan{Deletions: []Deletion{}}
	for _, group := range sortedKeys(observedByLogGroup) {
		prefixes := mapset.NewThreadUnsafeSet[string]()
		for _, d := range grouped[group] {
			prefixes.Add(d.FilterName)
		}
		for _, f := range observedByLogGroup[group] {
			if !owner.Owns(f) {
				continue
			}
			if matchesAny(f.FilterName, prefixes) {
				continue
			}
			logGroup := f.LogGroupName
			if logGroup == "" {
				logGroup = group
			}
			plan.Deletions = append(plan.Deletions, Deletion{LogGroupName: logGroup, FilterName: f.FilterName})
		}
	}

	sortDeletions(plan.Deletions)
	return plan, nil
}

func matchesAny(name string, prefixes mapset.Set[string]) bool {
	for _, p := range prefixes.ToSlice() {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
