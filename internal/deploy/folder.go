package deploy

import (
	"sort"
	"strconv"
	"strings"
)

// MostRecentDeployment picks the newest deployment folder directly under
// prefix and returns its name with the objects it holds. Folder names start
// with the epoch milliseconds of the deploy and compare numerically; names
// without that prefix rank below them and compare lexicographically. ok is
// false when no object sits in a folder under prefix.
func MostRecentDeployment(objects []ArtifactDescriptor, prefix string) (dir string, inDir []ArtifactDescriptor, ok bool) {
	base := strings.TrimSuffix(prefix, "/") + "/"

	byDir := make(map[string][]ArtifactDescriptor)
	for _, obj := range objects {
		rest, found := strings.CutPrefix(obj.Key, base)
		if !found {
			continue
		}
		folder, _, nested := strings.Cut(rest, "/")
		if !nested || folder == "" {
			continue
		}
		byDir[folder] = append(byDir[folder], obj)
	}
	if len(byDir) == 0 {
		return "", nil, false
	}

	dirs := make([]string, 0, len(byDir))
	for d := range byDir {
		dirs = append(dirs, d)
	}
	sort.Slice(dirs, func(i, j int) bool { return folderLess(dirs[i], dirs[j]) })

	dir = dirs[len(dirs)-1]
	inDir = byDir[dir]
	sort.Slice(inDir, func(i, j int) bool { return inDir[i].Key < inDir[j].Key })
	return dir, inDir, true
}

func folderLess(a, b string) bool {
	na, okA := folderEpoch(a)
	nb, okB := folderEpoch(b)
	switch {
	case okA && okB && na != nb:
		return na < nb
	case okA != okB:
		return okB
	default:
		return a < b
	}
}

func folderEpoch(name string) (int64, bool) {
	head, _, _ := strings.Cut(name, "-")
	n, err := strconv.ParseInt(head, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
