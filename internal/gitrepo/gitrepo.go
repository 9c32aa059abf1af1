// Package gitrepo shells out to the git binary for everything the
// streak engine needs to know or do about the tracked repository.
package gitrepo

import (
	"bytes"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes a git command in a directory and returns its trimmed
// stdout. Implementations surface git's own diagnostic text on failure.
type Runner interface {
	Run(dir string, args ...string) (string, error)
}

type execRunner struct{}

func (execRunner) Run(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		if msg == "" {
			msg = fmt.Sprintf("git %s: %v", strings.Join(args, " "), err)
		}
		return "", errors.New(msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

type Repo struct {
	dir    string
	runner Runner
}

func New(dir string) *Repo {
	return &Repo{dir: dir, runner: execRunner{}}
}

// NewWithRunner creates a Repo with a custom runner (for testing).
func NewWithRunner(dir string, r Runner) *Repo {
	return &Repo{dir: dir, runner: r}
}

// IsWorkTree reports whether the directory is inside a git work tree.
func (r *Repo) IsWorkTree() bool {
	out, err := r.runner.Run(r.dir, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// HasCommitToday reports whether any commit landed since local midnight.
func (r *Repo) HasCommitToday(now time.Time) bool {
	since := now.Format("2006-01-02") + " 00:00:00"
	out, err := r.runner.Run(r.dir, "log", "--since", since, "--pretty=format:%H")
	if err != nil {
		return false
	}
	return strings.TrimSpace(out) != ""
}

// ChangedFileCount counts the dirty entries in porcelain status.
func (r *Repo) ChangedFileCount() int {
	out, err := r.runner.Run(r.dir, "status", "--porcelain")
	if err != nil {
		return 0
	}
	return countNonBlankLines(out)
}

// TrackedFileCount counts the files known to the index.
func (r *Repo) TrackedFileCount() int {
	out, err := r.runner.Run(r.dir, "ls-files")
	if err != nil {
		return 0
	}
	return countNonBlankLines(out)
}

// LastCommitSubject returns the subject of HEAD, or "-" when there is
// no commit yet.
func (r *Repo) LastCommitSubject() string {
	out, err := r.runner.Run(r.dir, "log", "-1", "--pretty=%s")
	if err != nil || out == "" {
		return "-"
	}
	return out
}

// CurrentBranch returns the checked-out branch name, or "" when it
// cannot be determined (detached HEAD, unborn repo).
func (r *Repo) CurrentBranch() string {
	if out, err := r.runner.Run(r.dir, "branch", "--show-current"); err == nil && out != "" {
		return out
	}
	out, err := r.runner.Run(r.dir, "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || out == "HEAD" {
		return ""
	}
	return out
}

func (r *Repo) Add(paths ...string) error {
	args := append([]string{"add"}, paths...)
	_, err := r.runner.Run(r.dir, args...)
	return err
}

func (r *Repo) Commit(message string) error {
	_, err := r.runner.Run(r.dir, "commit", "-m", message)
	return err
}

func (r *Repo) Push(remote, branch string) error {
	_, err := r.runner.Run(r.dir, "push", remote, branch)
	return err
}

func countNonBlankLines(out string) int {
	n := 0
	for _, line := range strings.Split(out, "\n") {
		if strings.TrimSpace(line) != "" {
			n++
		}
	}
	return n
}
