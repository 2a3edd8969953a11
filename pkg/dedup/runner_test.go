package dedup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sdejongh/toolbelt/pkg/compare"
	"github.com/sdejongh/toolbelt/pkg/models"
	"github.com/sdejongh/toolbelt/pkg/output"
	"github.com/sdejongh/toolbelt/pkg/storage"
)

// TestHelper provides an old/new directory pair for runner tests
type TestHelper struct {
	t      *testing.T
	oldDir string
	newDir string
}

// NewTestHelper creates a new test helper with temporary directories
func NewTestHelper(t *testing.T) *TestHelper {
	t.Helper()
	root := t.TempDir()
	h := &TestHelper{t: t, oldDir: filepath.Join(root, "old"), newDir: filepath.Join(root, "new")}
	for _, d := range []string{h.oldDir, h.newDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			t.Fatalf("failed to create %s: %v", d, err)
		}
	}
	return h
}

// CreateOld creates a file under the old directory
func (h *TestHelper) CreateOld(rel, content string) {
	h.t.Helper()
	h.write(filepath.Join(h.oldDir, rel), content)
}

// CreateNew creates a file under the new directory
func (h *TestHelper) CreateNew(rel, content string) {
	h.t.Helper()
	h.write(filepath.Join(h.newDir, rel), content)
}

// CreateBoth creates the same file in both directories
func (h *TestHelper) CreateBoth(rel, content string) {
	h.t.Helper()
	h.CreateOld(rel, content)
	h.CreateNew(rel, content)
}

func (h *TestHelper) write(path, content string) {
	h.t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		h.t.Fatalf("failed to create parent of %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		h.t.Fatalf("failed to write %s: %v", path, err)
	}
}

// OldExists reports whether rel exists under the old directory
func (h *TestHelper) OldExists(rel string) bool {
	_, err := os.Stat(filepath.Join(h.oldDir, rel))
	return err == nil
}

// Backends opens both directories
func (h *TestHelper) Backends() (*storage.Local, *storage.Local) {
	h.t.Helper()
	src, err := storage.NewLocal(h.oldDir)
	if err != nil {
		h.t.Fatalf("NewLocal(old) failed: %v", err)
	}
	ref, err := storage.NewLocal(h.newDir)
	if err != nil {
		h.t.Fatalf("NewLocal(new) failed: %v", err)
	}
	return src, ref
}

// Run executes a runner with the sampled comparator and a silent formatter
func (h *TestHelper) Run(opts Options) *models.Summary {
	h.t.Helper()
	src, ref := h.Backends()
	return h.RunWith(src, ref, newComparator(h.t), opts)
}

// RunWith executes a runner over the given backends and comparator
func (h *TestHelper) RunWith(src, ref storage.Backend, cmp compare.Comparator, opts Options) *models.Summary {
	h.t.Helper()
	if opts.Output == nil {
		opts.Output = &bytes.Buffer{}
	}
	runner := NewRunner(src, ref, cmp, output.NewJSONFormatter(), nil, opts)
	summary, err := runner.Run(context.Background())
	if err != nil {
		h.t.Fatalf("Run failed: %v", err)
	}
	return summary
}

func newComparator(t *testing.T) compare.Comparator {
	t.Helper()
	cmp, err := compare.New(compare.MethodSampled, compare.DefaultOptions())
	if err != nil {
		t.Fatalf("compare.New failed: %v", err)
	}
	return cmp
}

func assertCounts(t *testing.T, s *models.Summary, want map[models.Status]int) {
	t.Helper()
	total := 0
	for _, status := range models.Statuses {
		total += s.Count(status)
		if got := s.Count(status); got != want[status] {
			t.Errorf("count[%s] = %d, want %d", status, got, want[status])
		}
	}
	if total != s.Total {
		t.Errorf("counts sum to %d, Total = %d", total, s.Total)
	}
}

// ============== Worked Example ==============

func TestRunDryRun(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateBoth("a.txt", "hello")
	h.CreateOld("b.txt", "only in old")

	summary := h.Run(DefaultOptions())

	assertCounts(t, summary, map[models.Status]int{
		models.StatusIdentical:      1,
		models.StatusNotInReference: 1,
	})
	if !summary.DryRun {
		t.Error("summary should be a dry run")
	}
	if summary.DirsRemoved != 0 {
		t.Errorf("DirsRemoved = %d, want 0", summary.DirsRemoved)
	}
	if !h.OldExists("a.txt") || !h.OldExists("b.txt") {
		t.Error("dry run must not remove files")
	}
}

func TestRunDelete(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateBoth("a.txt", "hello")
	h.CreateOld("b.txt", "only in old")

	opts := DefaultOptions()
	opts.Delete = true
	summary := h.Run(opts)

	assertCounts(t, summary, map[models.Status]int{
		models.StatusDeleted:        1,
		models.StatusNotInReference: 1,
	})
	if h.OldExists("a.txt") {
		t.Error("a.txt should have been removed")
	}
	if !h.OldExists("b.txt") {
		t.Error("b.txt must be kept")
	}
	if summary.BytesReclaimed != int64(len("hello")) {
		t.Errorf("BytesReclaimed = %d, want 5", summary.BytesReclaimed)
	}
	if _, err := os.Stat(filepath.Join(h.newDir, "a.txt")); err != nil {
		t.Error("reference files must never be touched")
	}
}

// ============== Outcome Kinds ==============

func TestRunDiffers(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateOld("size.txt", "abc")
	h.CreateNew("size.txt", "abcd")
	h.CreateOld("content.txt", "abcd")
	h.CreateNew("content.txt", "abce")

	opts := DefaultOptions()
	opts.Delete = true
	summary := h.Run(opts)

	assertCounts(t, summary, map[models.Status]int{models.StatusDiffers: 2})
	if !h.OldExists("size.txt") || !h.OldExists("content.txt") {
		t.Error("differing files must be kept")
	}
	if len(summary.Problems) != 2 {
		t.Errorf("Problems = %d, want 2", len(summary.Problems))
	}
}

func TestRunEmptySource(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateNew("a.txt", "x")

	summary := h.Run(DefaultOptions())
	if summary.Total != 0 {
		t.Errorf("Total = %d, want 0", summary.Total)
	}
	if summary.Status != models.RunSuccess {
		t.Errorf("Status = %s, want success", summary.Status)
	}
}

func TestRunSkipsSymlinkedDirectories(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateBoth(filepath.Join("real", "a.txt"), "same")
	for _, dir := range []string{h.oldDir, h.newDir} {
		if err := os.Symlink(filepath.Join(dir, "real"), filepath.Join(dir, "link")); err != nil {
			t.Skipf("symlinks not supported: %v", err)
		}
	}

	summary := h.Run(DefaultOptions())

	if summary.Total != 1 {
		t.Errorf("Total = %d, want 1 (link to a directory is not a file)", summary.Total)
	}
	assertCounts(t, summary, map[models.Status]int{models.StatusIdentical: 1})
	if len(summary.Problems) != 0 {
		t.Errorf("Problems = %+v, want none", summary.Problems)
	}
}

func TestRunDeleteWithNoFilesSkipsCleanup(t *testing.T) {
	h := NewTestHelper(t)
	if err := os.MkdirAll(filepath.Join(h.oldDir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	src, ref := h.Backends()
	opts := DefaultOptions()
	opts.Delete = true
	opts.Output = &out
	runner := NewRunner(src, ref, newComparator(t), output.NewHumanFormatter(), nil, opts)
	summary, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if summary.DirsRemoved != 0 {
		t.Errorf("DirsRemoved = %d, want 0", summary.DirsRemoved)
	}
	if !h.OldExists("empty") {
		t.Error("cleanup must not run when no file was scanned")
	}
	text := out.String()
	if !strings.Contains(text, "No files to process.") {
		t.Errorf("output missing empty notice:\n%s", text)
	}
	if strings.Contains(text, "Cleaning empty directories") {
		t.Errorf("output should not announce cleanup:\n%s", text)
	}
}

func TestRunCountsSumToTotal(t *testing.T) {
	h := NewTestHelper(t)
	for i := 0; i < 40; i++ {
		rel := filepath.Join(fmt.Sprintf("d%d", i%5), fmt.Sprintf("f%d.txt", i))
		switch i % 3 {
		case 0:
			h.CreateBoth(rel, "same")
		case 1:
			h.CreateOld(rel, "old")
			h.CreateNew(rel, "new")
		default:
			h.CreateOld(rel, "orphan")
		}
	}

	opts := DefaultOptions()
	opts.Workers = 3
	summary := h.Run(opts)

	if summary.Total != 40 {
		t.Errorf("Total = %d, want 40", summary.Total)
	}
	assertCounts(t, summary, map[models.Status]int{
		models.StatusIdentical:      14,
		models.StatusDiffers:        13,
		models.StatusNotInReference: 13,
	})
}

// ============== Cleanup ==============

func TestRunDeletePrunesEmptyDirs(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateBoth(filepath.Join("x", "y", "a.txt"), "dup")
	h.CreateOld(filepath.Join("keep", "b.txt"), "mine")
	if err := os.MkdirAll(filepath.Join(h.oldDir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	opts := DefaultOptions()
	opts.Delete = true
	summary := h.Run(opts)

	if summary.DirsRemoved != 3 {
		t.Errorf("DirsRemoved = %d, want 3 (x/y, x, empty)", summary.DirsRemoved)
	}
	if h.OldExists("x") || h.OldExists("empty") {
		t.Error("empty directories should be removed")
	}
	if !h.OldExists(filepath.Join("keep", "b.txt")) {
		t.Error("non-empty directory must be kept")
	}
	if _, err := os.Stat(h.oldDir); err != nil {
		t.Error("old root must be kept")
	}
	if _, err := os.Stat(filepath.Join(h.newDir, "x", "y")); err != nil {
		t.Error("reference directories must never be pruned")
	}
}

func TestRunDryRunKeepsEmptyDirs(t *testing.T) {
	h := NewTestHelper(t)
	if err := os.MkdirAll(filepath.Join(h.oldDir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	h.Run(DefaultOptions())
	if !h.OldExists("empty") {
		t.Error("dry run must not prune directories")
	}
}

// ============== Failure Isolation ==============

// failingRemove refuses to remove one path
type failingRemove struct {
	*storage.Local
	path string
}

func (f *failingRemove) Remove(ctx context.Context, path string) error {
	if path == f.path {
		return errors.New("read-only file system")
	}
	return f.Local.Remove(ctx, path)
}

func TestRunDeleteFailureBecomesError(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateBoth("locked.txt", "same")
	h.CreateBoth("free.txt", "same")

	src, ref := h.Backends()
	opts := DefaultOptions()
	opts.Delete = true
	summary := h.RunWith(&failingRemove{Local: src, path: "locked.txt"}, ref, newComparator(t), opts)

	assertCounts(t, summary, map[models.Status]int{
		models.StatusDeleted: 1,
		models.StatusError:   1,
	})
	if !h.OldExists("locked.txt") {
		t.Error("locked.txt should still exist")
	}
	if summary.Status != models.RunPartial {
		t.Errorf("Status = %s, want partial", summary.Status)
	}
	p := summary.Problems[0]
	if p.RelativePath != "locked.txt" || p.Error == "" {
		t.Errorf("unexpected problem: %+v", p)
	}
}

// stubComparator returns a fixed verdict, failing for one path
type stubComparator struct {
	failPath string
	delay    time.Duration

	inFlight atomic.Int32
	maxSeen  atomic.Int32
}

func (c *stubComparator) Compare(ctx context.Context, source, reference storage.Backend, path string) (*compare.Comparison, error) {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		seen := c.maxSeen.Load()
		if n <= seen || c.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	time.Sleep(c.delay)

	if path == c.failPath {
		return nil, errors.New("input/output error")
	}
	return &compare.Comparison{Verdict: compare.Identical}, nil
}

func (c *stubComparator) Name() string { return "stub" }

func TestRunComparatorErrorDoesNotCancelSiblings(t *testing.T) {
	h := NewTestHelper(t)
	for i := 0; i < 10; i++ {
		h.CreateOld(fmt.Sprintf("f%d.txt", i), "x")
	}

	src, ref := h.Backends()
	summary := h.RunWith(src, ref, &stubComparator{failPath: "f3.txt"}, DefaultOptions())

	assertCounts(t, summary, map[models.Status]int{
		models.StatusIdentical: 9,
		models.StatusError:     1,
	})
	if summary.Problems[0].Error != "input/output error" {
		t.Errorf("Error = %q", summary.Problems[0].Error)
	}
}

func TestRunRespectsWorkerLimit(t *testing.T) {
	h := NewTestHelper(t)
	for i := 0; i < 20; i++ {
		h.CreateOld(fmt.Sprintf("f%02d.txt", i), "x")
	}

	cmp := &stubComparator{delay: 5 * time.Millisecond}
	src, ref := h.Backends()
	opts := DefaultOptions()
	opts.Workers = 3
	summary := h.RunWith(src, ref, cmp, opts)

	if summary.Total != 20 {
		t.Errorf("Total = %d, want 20", summary.Total)
	}
	if got := cmp.maxSeen.Load(); got > 3 {
		t.Errorf("max concurrent comparisons = %d, want <= 3", got)
	}
}

// ============== Scan ==============

func TestScanExcludes(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateOld("keep.txt", "x")
	h.CreateOld("skip.tmp", "x")
	h.CreateOld(filepath.Join(".git", "HEAD"), "x")

	src, ref := h.Backends()
	opts := DefaultOptions()
	opts.Exclude = []string{"*.tmp", ".git/"}
	runner := NewRunner(src, ref, newComparator(t), nil, nil, opts)

	tasks, err := runner.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].RelativePath != "keep.txt" {
		t.Fatalf("tasks = %+v, want only keep.txt", tasks)
	}
	task := tasks[0]
	if task.Size != 1 {
		t.Errorf("Size = %d, want 1", task.Size)
	}
	if task.Delete {
		t.Error("dry run tasks must not carry the delete flag")
	}
}

func TestRunCancelledBeforeStart(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateBoth("a.txt", "same")

	src, ref := h.Backends()
	opts := DefaultOptions()
	opts.Delete = true
	opts.Output = &bytes.Buffer{}
	runner := NewRunner(src, ref, newComparator(t), output.NewJSONFormatter(), nil, opts)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := runner.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Run error = %v, want context.Canceled", err)
	}
	if !h.OldExists("a.txt") {
		t.Error("cancelled run must not remove files")
	}
}

func TestRunJSONOutput(t *testing.T) {
	h := NewTestHelper(t)
	h.CreateBoth("a.txt", "same")
	h.CreateOld("b.txt", "orphan")

	var buf bytes.Buffer
	opts := DefaultOptions()
	opts.Output = &buf
	summary := h.Run(opts)

	var report output.JSONReport
	if err := json.Unmarshal(buf.Bytes(), &report); err != nil {
		t.Fatalf("invalid JSON output: %v\n%s", err, buf.String())
	}
	if report.RunID != summary.RunID {
		t.Errorf("run_id = %s, want %s", report.RunID, summary.RunID)
	}
	if report.Counts.Identical != 1 || report.Counts.NotInReference != 1 {
		t.Errorf("unexpected counts: %+v", report.Counts)
	}
	if report.Method != compare.MethodSampled || report.Workers != DefaultWorkers {
		t.Errorf("method/workers = %s/%d", report.Method, report.Workers)
	}
}

// ============== ParallelMap ==============

func TestParallelMapPreservesOrder(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	results, err := ParallelMap(context.Background(), items, 7, func(ctx context.Context, n int) int {
		return n * n
	})
	if err != nil {
		t.Fatalf("ParallelMap failed: %v", err)
	}
	for i, r := range results {
		if r != i*i {
			t.Fatalf("results[%d] = %d, want %d", i, r, i*i)
		}
	}
}

func TestParallelMapLimit(t *testing.T) {
	var inFlight, maxSeen int32
	var mu sync.Mutex

	items := make([]int, 30)
	ParallelMap(context.Background(), items, 4, func(ctx context.Context, _ int) struct{} {
		mu.Lock()
		inFlight++
		if inFlight > maxSeen {
			maxSeen = inFlight
		}
		mu.Unlock()

		time.Sleep(2 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return struct{}{}
	})

	if maxSeen > 4 {
		t.Errorf("max in flight = %d, want <= 4", maxSeen)
	}
}

func TestParallelMapStopsDispatchOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var started atomic.Int32
	items := make([]int, 50)
	_, err := ParallelMap(ctx, items, 1, func(ctx context.Context, _ int) bool {
		if started.Add(1) == 3 {
			cancel()
		}
		return true
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if got := started.Load(); got >= 50 {
		t.Errorf("started = %d, dispatch should stop after cancel", got)
	}
}

func TestParallelMapEmpty(t *testing.T) {
	results, err := ParallelMap(context.Background(), []string{}, 0, func(ctx context.Context, s string) int {
		return len(s)
	})
	if err != nil || len(results) != 0 {
		t.Errorf("ParallelMap(empty) = %v, %v", results, err)
	}
}
