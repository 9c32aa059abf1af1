package bot

import (
	"time"

	"github.com/tunaylabs/streakkeeper/internal/config"
)

// CommitChecker is the single repository fact the reminder needs.
type CommitChecker interface {
	HasCommitToday(now time.Time) bool
}

// Reminder is the once-per-day due-date latch. It never fires twice on
// the same calendar day; the dispatcher records the latch date after a
// successful send.
type Reminder struct {
	repo CommitChecker
}

func NewReminder(repo CommitChecker) *Reminder {
	return &Reminder{repo: repo}
}

// IsDue reports whether the daily warning should be sent right now:
// reminders enabled, configured time-of-day passed, not already sent
// today, and no commit since local midnight.
func (r *Reminder) IsDue(cfg *config.Config, st *config.State, now time.Time) bool {
	if !cfg.Bot.ReminderEnabled {
		return false
	}
	if now.Hour()*60+now.Minute() < cfg.Bot.ReminderHour*60+cfg.Bot.ReminderMinute {
		return false
	}
	if st.LastReminderDate == now.Format(config.DateLayout) {
		return false
	}
	return !r.repo.HasCommitToday(now)
}
