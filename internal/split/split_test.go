package split

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/jackzampolin/medsum/internal/pipeline"
	"github.com/jackzampolin/medsum/internal/testutil"
)

func TestRanges(t *testing.T) {
	tests := []struct {
		name  string
		total int
		per   int
		want  [][2]int
	}{
		{"remainder", 32, 15, [][2]int{{1, 15}, {16, 30}, {31, 32}}},
		{"exact", 30, 15, [][2]int{{1, 15}, {16, 30}}},
		{"fewer than per", 4, 15, [][2]int{{1, 4}}},
		{"one per split", 3, 1, [][2]int{{1, 1}, {2, 2}, {3, 3}}},
		{"empty", 0, 15, nil},
		{"invalid per", 10, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Ranges(tt.total, tt.per); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Ranges(%d, %d) = %v, want %v", tt.total, tt.per, got, tt.want)
			}
		})
	}
}

func pageWidths(t *testing.T, path string) []float64 {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	dims, err := api.PageDims(f, nil)
	if err != nil {
		t.Fatalf("PageDims(%s): %v", path, err)
	}
	widths := make([]float64, len(dims))
	for i, d := range dims {
		widths[i] = d.Width
	}
	return widths
}

func TestSplitter_Split(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "case.pdf")
	testutil.WritePDF(t, src, 32)
	out := filepath.Join(dir, "work")

	s := New(15, testutil.Logger(t))
	units, err := s.Split(context.Background(), src, out)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	wantPages := []int{15, 15, 2}
	if len(units) != len(wantPages) {
		t.Fatalf("got %d sub-units, want %d", len(units), len(wantPages))
	}

	page := 1
	for i, u := range units {
		if u.Index != i+1 {
			t.Errorf("unit %d Index = %d", i, u.Index)
		}
		if filepath.Base(u.Path) != FileName(i+1) {
			t.Errorf("unit %d Path = %s", i, u.Path)
		}
		if u.Pages() != wantPages[i] {
			t.Errorf("unit %d Pages() = %d, want %d", i, u.Pages(), wantPages[i])
		}
		for _, w := range pageWidths(t, u.Path) {
			if w != testutil.PageWidth(page) {
				t.Errorf("unit %d: page width %v, want source page %d", u.Index, w, page)
			}
			page++
		}
	}
	if page != 33 {
		t.Errorf("covered %d pages, want 32", page-1)
	}
}

func TestSplitter_SplitReplacesPreviousOutput(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "work")
	stale := filepath.Join(out, FileName(9))
	if err := os.MkdirAll(out, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	src := filepath.Join(dir, "case.pdf")
	testutil.WritePDF(t, src, 5)
	s := New(2, testutil.Logger(t))

	for run := 0; run < 2; run++ {
		if _, err := s.Split(context.Background(), src, out); err != nil {
			t.Fatalf("run %d: Split() error = %v", run, err)
		}
		paths, err := Discover(out)
		if err != nil {
			t.Fatalf("Discover() error = %v", err)
		}
		want := []string{
			filepath.Join(out, "split_1.pdf"),
			filepath.Join(out, "split_2.pdf"),
			filepath.Join(out, "split_3.pdf"),
		}
		if !reflect.DeepEqual(paths, want) {
			t.Errorf("run %d: files = %v, want %v", run, paths, want)
		}
	}
}

func TestSplitter_SplitErrors(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing source", func(t *testing.T) {
		_, err := New(15, nil).Split(context.Background(), filepath.Join(dir, "nope.pdf"), filepath.Join(dir, "out"))
		var ioErr *pipeline.IOError
		if !errors.As(err, &ioErr) || ioErr.Op != "open" {
			t.Fatalf("error = %v, want IOError(open)", err)
		}
	})

	t.Run("not a pdf", func(t *testing.T) {
		src := filepath.Join(dir, "garbage.pdf")
		if err := os.WriteFile(src, []byte("this is not a pdf"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := New(15, nil).Split(context.Background(), src, filepath.Join(dir, "out"))
		var ioErr *pipeline.IOError
		if !errors.As(err, &ioErr) || ioErr.Op != "parse" {
			t.Fatalf("error = %v, want IOError(parse)", err)
		}
	})

	t.Run("invalid pages per split", func(t *testing.T) {
		_, err := New(0, nil).Split(context.Background(), "x.pdf", dir)
		if !errors.Is(err, ErrInvalidPagesPerSplit) {
			t.Fatalf("error = %v, want ErrInvalidPagesPerSplit", err)
		}
	})

	t.Run("cancelled", func(t *testing.T) {
		src := filepath.Join(dir, "ok.pdf")
		testutil.WritePDF(t, src, 3)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if _, err := New(1, nil).Split(ctx, src, filepath.Join(dir, "cancelled")); !errors.Is(err, context.Canceled) {
			t.Fatalf("error = %v, want context.Canceled", err)
		}
	})
}

func TestClearDir(t *testing.T) {
	if err := ClearDir(""); err == nil {
		t.Error("expected error for empty path")
	}
	if err := ClearDir("/"); err == nil {
		t.Error("expected error for filesystem root")
	}

	dir := filepath.Join(t.TempDir(), "fresh")
	if err := ClearDir(dir); err != nil {
		t.Fatalf("ClearDir(missing) error = %v", err)
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestNaming(t *testing.T) {
	if got := FileName(3); got != "split_3.pdf" {
		t.Errorf("FileName(3) = %q", got)
	}

	if n, ok := IndexOf("/tmp/work/split_12.pdf"); !ok || n != 12 {
		t.Errorf("IndexOf = %d, %v", n, ok)
	}
	if _, ok := IndexOf("notes.txt"); ok {
		t.Error("IndexOf(notes.txt) should not match")
	}

	got := SortByIndex([]string{"split_10.pdf", "readme.pdf", "split_2.pdf", "split_1.pdf"})
	want := []string{"split_1.pdf", "split_2.pdf", "split_10.pdf", "readme.pdf"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SortByIndex() = %v, want %v", got, want)
	}
}
