package gitrepo

import (
	"errors"
	"strings"
	"testing"
	"time"
)

// fakeRunner returns canned output per git subcommand and records every
// invocation.
type fakeRunner struct {
	outputs map[string]string
	errs    map[string]error
	calls   [][]string
}

func (f *fakeRunner) Run(dir string, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	key := args[0]
	if err, ok := f.errs[key]; ok {
		return "", err
	}
	return f.outputs[key], nil
}

func newFakeRepo(outputs map[string]string) (*Repo, *fakeRunner) {
	r := &fakeRunner{outputs: outputs, errs: map[string]error{}}
	return NewWithRunner("/repo", r), r
}

func TestIsWorkTree(t *testing.T) {
	repo, _ := newFakeRepo(map[string]string{"rev-parse": "true"})
	if !repo.IsWorkTree() {
		t.Error("expected work tree")
	}

	repo, _ = newFakeRepo(map[string]string{"rev-parse": "false"})
	if repo.IsWorkTree() {
		t.Error("expected not a work tree")
	}

	repo, runner := newFakeRepo(nil)
	runner.errs["rev-parse"] = errors.New("fatal: not a git repository")
	if repo.IsWorkTree() {
		t.Error("expected not a work tree on git failure")
	}
}

func TestHasCommitToday(t *testing.T) {
	now := time.Date(2024, 1, 10, 18, 0, 0, 0, time.Local)

	repo, runner := newFakeRepo(map[string]string{"log": "abc123\ndef456"})
	if !repo.HasCommitToday(now) {
		t.Error("expected commit today")
	}
	last := runner.calls[len(runner.calls)-1]
	if last[1] != "--since" || last[2] != "2024-01-10 00:00:00" {
		t.Errorf("unexpected log args: %v", last)
	}

	repo, _ = newFakeRepo(map[string]string{"log": ""})
	if repo.HasCommitToday(now) {
		t.Error("expected no commit today")
	}

	repo, runner = newFakeRepo(nil)
	runner.errs["log"] = errors.New("boom")
	if repo.HasCommitToday(now) {
		t.Error("git failure should report no commit")
	}
}

func TestChangedFileCount(t *testing.T) {
	tests := []struct {
		out  string
		want int
	}{
		{"", 0},
		{" M a.go", 1},
		{" M a.go\n?? b.go\n\n M c.go", 3},
	}
	for _, tt := range tests {
		repo, _ := newFakeRepo(map[string]string{"status": tt.out})
		if got := repo.ChangedFileCount(); got != tt.want {
			t.Errorf("ChangedFileCount(%q) = %d, want %d", tt.out, got, tt.want)
		}
	}
}

func TestTrackedFileCount(t *testing.T) {
	repo, _ := newFakeRepo(map[string]string{"ls-files": "a.go\nb.go\nc.md"})
	if got := repo.TrackedFileCount(); got != 3 {
		t.Errorf("TrackedFileCount = %d, want 3", got)
	}
}

func TestLastCommitSubject(t *testing.T) {
	repo, _ := newFakeRepo(map[string]string{"log": "feat: add parser"})
	if got := repo.LastCommitSubject(); got != "feat: add parser" {
		t.Errorf("LastCommitSubject = %q", got)
	}

	repo, runner := newFakeRepo(nil)
	runner.errs["log"] = errors.New("no commits yet")
	if got := repo.LastCommitSubject(); got != "-" {
		t.Errorf("LastCommitSubject on failure = %q, want -", got)
	}
}

func TestCurrentBranch(t *testing.T) {
	repo, _ := newFakeRepo(map[string]string{"branch": "main"})
	if got := repo.CurrentBranch(); got != "main" {
		t.Errorf("CurrentBranch = %q, want main", got)
	}
}

func TestCurrentBranch_Fallback(t *testing.T) {
	// branch --show-current empty, rev-parse has an answer
	repo, _ := newFakeRepo(map[string]string{"branch": "", "rev-parse": "feature/x"})
	if got := repo.CurrentBranch(); got != "feature/x" {
		t.Errorf("CurrentBranch = %q, want feature/x", got)
	}

	// detached HEAD reports no branch
	repo, _ = newFakeRepo(map[string]string{"branch": "", "rev-parse": "HEAD"})
	if got := repo.CurrentBranch(); got != "" {
		t.Errorf("CurrentBranch = %q, want empty on detached HEAD", got)
	}
}

func TestMutations(t *testing.T) {
	repo, runner := newFakeRepo(map[string]string{})

	if err := repo.Add("heartbeat.md", ".streakkeeper/state.json"); err != nil {
		t.Fatalf("Add error: %v", err)
	}
	if err := repo.Commit("chore(streak): keep streak 2024-01-10"); err != nil {
		t.Fatalf("Commit error: %v", err)
	}
	if err := repo.Push("origin", "main"); err != nil {
		t.Fatalf("Push error: %v", err)
	}

	want := [][]string{
		{"add", "heartbeat.md", ".streakkeeper/state.json"},
		{"commit", "-m", "chore(streak): keep streak 2024-01-10"},
		{"push", "origin", "main"},
	}
	if len(runner.calls) != len(want) {
		t.Fatalf("calls = %d, want %d", len(runner.calls), len(want))
	}
	for i := range want {
		if strings.Join(runner.calls[i], " ") != strings.Join(want[i], " ") {
			t.Errorf("call %d = %v, want %v", i, runner.calls[i], want[i])
		}
	}
}

func TestMutation_ErrorSurfacesVerbatim(t *testing.T) {
	repo, runner := newFakeRepo(nil)
	runner.errs["push"] = errors.New("remote: permission denied")

	err := repo.Push("origin", "main")
	if err == nil || err.Error() != "remote: permission denied" {
		t.Errorf("Push error = %v, want verbatim diagnostic", err)
	}
}
