package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultBusyNote          = "Busy mode"
	DefaultHeartbeatFile     = "streak-heartbeat.md"
	DefaultMaintenanceFile   = ".streakkeeper/project-maintenance.md"
	DefaultRemote            = "origin"
	DefaultCommitPrefix      = "chore(streak)"
	DefaultMaintenancePrefix = "chore(maintenance)"
	DefaultReminderHour      = 21
	DefaultReminderMinute    = 30
	DefaultPollTimeout       = 20
	DefaultReminderText      = "No commit in this repo today. Your streak may be at risk."
	DefaultAutoProtectSpec   = "30 23 * * *"

	// DateLayout is the calendar-date format used everywhere a date is
	// persisted or compared.
	DateLayout = "2006-01-02"

	AppDirName = ".streakkeeper"
)

type Config struct {
	Streak      StreakConfig      `json:"streak"`
	Bot         BotConfig         `json:"bot"`
	AutoProtect AutoProtectConfig `json:"autoProtect"`
}

type StreakConfig struct {
	BusyUntil         string `json:"busyUntil,omitempty"`
	BusyNote          string `json:"busyNote"`
	HeartbeatFile     string `json:"heartbeatFile"`
	MaintenanceFile   string `json:"maintenanceFile"`
	Remote            string `json:"remote"`
	Branch            string `json:"branch,omitempty"`
	CommitPrefix      string `json:"commitPrefix"`
	MaintenancePrefix string `json:"maintenancePrefix"`
}

type BotConfig struct {
	Token               string `json:"token"`
	AllowedChatID       string `json:"allowedChatId"`
	AutoBindChatOnStart bool   `json:"autoBindChatOnStart"`
	ReminderHour        int    `json:"reminderHour"`
	ReminderMinute      int    `json:"reminderMinute"`
	ReminderEnabled     bool   `json:"reminderEnabled"`
	ReminderText        string `json:"reminderText"`
	PollTimeoutSeconds  int    `json:"pollTimeoutSeconds"`
}

type AutoProtectConfig struct {
	Enabled bool   `json:"enabled"`
	Spec    string `json:"spec,omitempty"`
}

// State is the mutable runtime document. LastUpdateID is the highest
// processed transport offset and never decreases across restarts.
type State struct {
	LastUpdateID     int64  `json:"lastUpdateId"`
	LastReminderDate string `json:"lastReminderDate,omitempty"`
	LastCommitDate   string `json:"lastCommitDate,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Streak: StreakConfig{
			BusyNote:          DefaultBusyNote,
			HeartbeatFile:     DefaultHeartbeatFile,
			MaintenanceFile:   DefaultMaintenanceFile,
			Remote:            DefaultRemote,
			CommitPrefix:      DefaultCommitPrefix,
			MaintenancePrefix: DefaultMaintenancePrefix,
		},
		Bot: BotConfig{
			AutoBindChatOnStart: true,
			ReminderHour:        DefaultReminderHour,
			ReminderMinute:      DefaultReminderMinute,
			ReminderEnabled:     true,
			ReminderText:        DefaultReminderText,
			PollTimeoutSeconds:  DefaultPollTimeout,
		},
		AutoProtect: AutoProtectConfig{
			Spec: DefaultAutoProtectSpec,
		},
	}
}

func DefaultState() *State {
	return &State{}
}

// Store reads and writes the two JSON documents under <root>/.streakkeeper.
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) AppDir() string {
	return filepath.Join(s.root, AppDirName)
}

func (s *Store) ConfigPath() string {
	return filepath.Join(s.AppDir(), "config.json")
}

func (s *Store) StatePath() string {
	return filepath.Join(s.AppDir(), "state.json")
}

// LoadConfig merges the persisted document over the defaults; unknown
// keys are ignored and missing keys keep their default value. The
// TELEGRAM_BOT_TOKEN and TELEGRAM_ALLOWED_CHAT_ID environment variables
// take precedence over the persisted values.
func (s *Store) LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(s.ConfigPath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Bot.Token = token
	}
	if chat := os.Getenv("TELEGRAM_ALLOWED_CHAT_ID"); chat != "" {
		cfg.Bot.AllowedChatID = chat
	}

	if cfg.Streak.HeartbeatFile == "" {
		cfg.Streak.HeartbeatFile = DefaultHeartbeatFile
	}
	if cfg.Streak.MaintenanceFile == "" {
		cfg.Streak.MaintenanceFile = DefaultMaintenanceFile
	}
	if cfg.Streak.Remote == "" {
		cfg.Streak.Remote = DefaultRemote
	}
	if cfg.Bot.PollTimeoutSeconds <= 0 {
		cfg.Bot.PollTimeoutSeconds = DefaultPollTimeout
	}
	if cfg.Bot.ReminderText == "" {
		cfg.Bot.ReminderText = DefaultReminderText
	}
	if cfg.AutoProtect.Spec == "" {
		cfg.AutoProtect.Spec = DefaultAutoProtectSpec
	}

	return cfg, nil
}

func (s *Store) SaveConfig(cfg *Config) error {
	return s.writeJSON(s.ConfigPath(), cfg)
}

func (s *Store) LoadState() (*State, error) {
	st := DefaultState()

	data, err := os.ReadFile(s.StatePath())
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read state: %w", err)
		}
		return st, nil
	}
	if err := json.Unmarshal(data, st); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	return st, nil
}

func (s *Store) SaveState(st *State) error {
	return s.writeJSON(s.StatePath(), st)
}

func (s *Store) writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create app dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// BusyUntilDate parses the configured busy window end.
func (c *StreakConfig) BusyUntilDate() (time.Time, bool) {
	if c.BusyUntil == "" {
		return time.Time{}, false
	}
	until, err := time.ParseInLocation(DateLayout, c.BusyUntil, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return until, true
}

// BusyActive reports whether the busy window covers the given day.
func (c *StreakConfig) BusyActive(now time.Time) bool {
	until, ok := c.BusyUntilDate()
	if !ok {
		return false
	}
	return now.Format(DateLayout) <= until.Format(DateLayout)
}

// BusyUntil computes the window end for an N-day busy period starting
// today. A one-day window ends today.
func BusyUntil(now time.Time, days int) time.Time {
	if days < 1 {
		days = 1
	}
	return now.AddDate(0, 0, days-1)
}
