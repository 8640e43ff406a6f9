// Package ingest discovers case PDFs in an inbox directory and hands each
// one to the pipeline.
package ingest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var numberSuffix = regexp.MustCompile(`(?i)[-_ ](\d+)\.pdf$`)

// IsPDF reports whether path has a .pdf extension.
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Scan lists the PDFs directly inside dir, ordered by numeric suffix.
func Scan(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && IsPDF(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	return sortPDFsByNumber(paths), nil
}

// Inspect returns the page count of the PDF at path. It fails for files that
// are not (yet) complete PDFs.
func Inspect(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if n == 0 {
		return 0, fmt.Errorf("%s has no pages", path)
	}
	return n, nil
}

// sortPDFsByNumber sorts PDF paths by their numeric suffix.
// e.g., ["case-2.pdf", "case-1.pdf", "case_10.pdf"] -> ["case-1.pdf", "case-2.pdf", "case_10.pdf"]
func sortPDFsByNumber(paths []string) []string {
	sorted := make([]string, len(paths))
	copy(sorted, paths)

	sort.SliceStable(sorted, func(i, j int) bool {
		mi := numberSuffix.FindStringSubmatch(sorted[i])
		mj := numberSuffix.FindStringSubmatch(sorted[j])

		if len(mi) > 1 && len(mj) > 1 {
			ni, _ := strconv.Atoi(mi[1])
			nj, _ := strconv.Atoi(mj[1])
			if ni != nj {
				return ni < nj
			}
			return sorted[i] < sorted[j]
		}

		// Files without numbers come first
		if len(mi) > 1 {
			return false
		}
		if len(mj) > 1 {
			return true
		}

		return sorted[i] < sorted[j]
	})

	return sorted
}
