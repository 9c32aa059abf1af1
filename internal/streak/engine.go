// Package streak decides when a protective commit is due and performs
// it against the tracked repository.
package streak

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tunaylabs/streakkeeper/internal/config"
)

// Gateway is the repository surface the engine depends on.
type Gateway interface {
	IsWorkTree() bool
	HasCommitToday(now time.Time) bool
	ChangedFileCount() int
	TrackedFileCount() int
	LastCommitSubject() string
	CurrentBranch() string
	Add(paths ...string) error
	Commit(message string) error
	Push(remote, branch string) error
}

// Outcome classifies what an engine action did.
type Outcome int

const (
	// Done means an artifact was written, committed and pushed.
	Done Outcome = iota
	// SkippedBusy means busy mode was inactive and force was off.
	SkippedBusy
	// SkippedAlready means a protective commit already ran today.
	SkippedAlready
	// SkippedCommitExists means a real commit already covered the day.
	SkippedCommitExists
	// DryRun means the plan was computed but nothing was executed.
	DryRun
)

// Result carries the outcome plus the human-readable report shown on
// whichever surface invoked the action.
type Result struct {
	Outcome Outcome
	Message string
}

func (r Result) Skipped() bool {
	return r.Outcome == SkippedBusy || r.Outcome == SkippedAlready
}

type ProtectOptions struct {
	Force   bool
	DryRun  bool
	Note    string
	Message string
}

type SnapshotOptions struct {
	DryRun  bool
	NoPush  bool
	Note    string
	Message string
}

type Engine struct {
	repo  Gateway
	store *config.Store
	root  string
	now   func() time.Time
}

func NewEngine(repo Gateway, store *config.Store, root string) *Engine {
	return &Engine{repo: repo, store: store, root: root, now: time.Now}
}

// SetClock overrides the engine clock (for testing).
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// stateRelPath is the state document path as staged into the commit,
// relative to the repository root.
func stateRelPath() string {
	return filepath.Join(config.AppDirName, "state.json")
}

// resolveBranch picks the configured branch override, falling back to
// the currently checked-out branch.
func (e *Engine) resolveBranch(cfg *config.Config) string {
	if cfg.Streak.Branch != "" {
		return cfg.Streak.Branch
	}
	return e.repo.CurrentBranch()
}

// Protect appends a heartbeat line and commits it, unless busy mode is
// inactive or a protective commit already ran today. The heartbeat
// append and state write happen before the commit; a failing push
// therefore leaves them in place.
func (e *Engine) Protect(cfg *config.Config, st *config.State, opts ProtectOptions) (Result, error) {
	now := e.now()
	today := now.Format(config.DateLayout)

	if !opts.Force && !cfg.Streak.BusyActive(now) {
		until, ok := cfg.Streak.BusyUntilDate()
		if !ok {
			return Result{SkippedBusy, "Skip: busy mode is not active."}, nil
		}
		return Result{SkippedBusy, fmt.Sprintf("Skip: busy mode expired (%s).", until.Format(config.DateLayout))}, nil
	}

	if !opts.Force && st.LastCommitDate == today {
		return Result{SkippedAlready, "Skip: streak commit already made today."}, nil
	}

	note := opts.Note
	if note == "" {
		note = cfg.Streak.BusyNote
	}
	line := fmt.Sprintf("- %s | %s\n", now.Format("2006-01-02T15:04:05"), note)

	message := opts.Message
	if message == "" {
		message = fmt.Sprintf("%s: keep streak %s", cfg.Streak.CommitPrefix, today)
	}

	branch := e.resolveBranch(cfg)
	if branch == "" {
		if opts.DryRun {
			branch = "<undetermined>"
		} else {
			return Result{}, fmt.Errorf("no branch could be determined; set streak.branch in config or create the first commit")
		}
	}

	if opts.DryRun {
		msg := fmt.Sprintf("Dry run: would append to %s.\nDry run: commit message: %s\nDry run: push target: %s %s",
			cfg.Streak.HeartbeatFile, message, cfg.Streak.Remote, branch)
		return Result{DryRun, msg}, nil
	}

	heartbeat := filepath.Join(e.root, cfg.Streak.HeartbeatFile)
	if err := appendFile(heartbeat, line); err != nil {
		return Result{}, fmt.Errorf("append heartbeat: %w", err)
	}

	st.LastCommitDate = today
	if err := e.store.SaveState(st); err != nil {
		return Result{}, fmt.Errorf("save state: %w", err)
	}

	if err := e.repo.Add(cfg.Streak.HeartbeatFile, stateRelPath()); err != nil {
		return Result{}, err
	}
	if err := e.repo.Commit(message); err != nil {
		return Result{}, err
	}
	if err := e.repo.Push(cfg.Streak.Remote, branch); err != nil {
		return Result{}, err
	}

	return Result{Done, fmt.Sprintf("Commit and push done (%s).", today)}, nil
}

// Snapshot appends a dated maintenance section and commits it. It is
// intentionally repeatable: neither busy mode nor the once-per-day gate
// applies.
func (e *Engine) Snapshot(cfg *config.Config, opts SnapshotOptions) (Result, error) {
	now := e.now()
	today := now.Format(config.DateLayout)

	branch := e.resolveBranch(cfg)
	snapshotBranch := branch
	if snapshotBranch == "" {
		snapshotBranch = "unknown"
	}

	note := opts.Note
	if note == "" {
		note = "Daily maintenance snapshot"
	}

	section := strings.Join([]string{
		fmt.Sprintf("## %s", now.Format("2006-01-02T15:04:05")),
		fmt.Sprintf("- note: %s", note),
		fmt.Sprintf("- branch: %s", snapshotBranch),
		fmt.Sprintf("- tracked_files: %d", e.repo.TrackedFileCount()),
		fmt.Sprintf("- changed_files_before: %d", e.repo.ChangedFileCount()),
		fmt.Sprintf("- had_commit_today_before: %v", e.repo.HasCommitToday(now)),
		fmt.Sprintf("- previous_last_commit: %s", e.repo.LastCommitSubject()),
		"",
	}, "\n")

	message := opts.Message
	if message == "" {
		message = fmt.Sprintf("%s: repo snapshot %s", cfg.Streak.MaintenancePrefix, today)
	}

	if branch == "" {
		if opts.DryRun {
			branch = "<undetermined>"
		} else {
			return Result{}, fmt.Errorf("no branch could be determined; set streak.branch in config or create the first commit")
		}
	}

	if opts.DryRun {
		msg := fmt.Sprintf("Dry run: would append to %s.\nDry run: commit message: %s\nDry run: push target: %s %s",
			cfg.Streak.MaintenanceFile, message, cfg.Streak.Remote, branch)
		return Result{DryRun, msg}, nil
	}

	maintenance := filepath.Join(e.root, cfg.Streak.MaintenanceFile)
	if err := appendFile(maintenance, section); err != nil {
		return Result{}, fmt.Errorf("append maintenance log: %w", err)
	}

	if err := e.repo.Add(cfg.Streak.MaintenanceFile); err != nil {
		return Result{}, err
	}
	if err := e.repo.Commit(message); err != nil {
		return Result{}, err
	}
	if opts.NoPush {
		return Result{Done, fmt.Sprintf("Maintenance commit done (%s), push skipped.", today)}, nil
	}
	if err := e.repo.Push(cfg.Streak.Remote, branch); err != nil {
		return Result{}, err
	}

	return Result{Done, fmt.Sprintf("Maintenance commit and push done (%s).", today)}, nil
}

// ProtectOrSnapshot guarantees some protective artifact for the day:
// no-op when a commit already landed, otherwise a busy-mode tick,
// otherwise a maintenance snapshot.
func (e *Engine) ProtectOrSnapshot(cfg *config.Config, st *config.State, note string) (Result, error) {
	now := e.now()
	if e.repo.HasCommitToday(now) {
		return Result{SkippedCommitExists, "Skip: a commit already landed today."}, nil
	}

	res, err := e.Protect(cfg, st, ProtectOptions{Note: note})
	if err != nil {
		return Result{}, err
	}
	if !res.Skipped() {
		return res, nil
	}

	return e.Snapshot(cfg, SnapshotOptions{Note: note})
}

func appendFile(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}
