package split

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/jackzampolin/medsum/internal/pipeline"
)

// FilePrefix is the base name shared by every sub-document.
const FilePrefix = "split_"

var indexPattern = regexp.MustCompile(`_(\d+)\.pdf$`)

// FileName returns the sub-document name for a 1-based index.
func FileName(index int) string {
	return fmt.Sprintf("%s%d.pdf", FilePrefix, index)
}

// IndexOf extracts the numeric index embedded in a sub-document path.
func IndexOf(path string) (int, bool) {
	m := indexPattern.FindStringSubmatch(strings.ToLower(filepath.Base(path)))
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

// SortByIndex sorts paths by their embedded numeric index, so split_2 sorts
// before split_10. Paths without an index sort last, alphabetically.
func SortByIndex(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.SliceStable(sorted, func(i, j int) bool {
		ni, okI := IndexOf(sorted[i])
		nj, okJ := IndexOf(sorted[j])
		switch {
		case okI && okJ:
			return ni < nj
		case okI != okJ:
			return okI
		default:
			return sorted[i] < sorted[j]
		}
	})
	return sorted
}

// Discover lists the sub-documents already present in dir in index order.
func Discover(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, pipeline.NewIOError("read", dir, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), FilePrefix) {
			continue
		}
		if _, ok := IndexOf(e.Name()); ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return SortByIndex(paths), nil
}
