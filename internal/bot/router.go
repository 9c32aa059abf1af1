package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tunaylabs/streakkeeper/internal/config"
	"github.com/tunaylabs/streakkeeper/internal/streak"
)

// Command is the closed set of chat commands.
type Command int

const (
	CmdUnknown Command = iota
	CmdStart
	CmdHelp
	CmdStatus
	CmdBusy
	CmdOff
	CmdTick
	CmdMaintain
	CmdSetReminder
	CmdReminderOn
	CmdReminderOff
	CmdChatID
	CmdPanel
)

var commandNames = map[Command]string{
	CmdUnknown:     "unknown",
	CmdStart:       "start",
	CmdHelp:        "help",
	CmdStatus:      "status",
	CmdBusy:        "busy",
	CmdOff:         "off",
	CmdTick:        "tick",
	CmdMaintain:    "maintain",
	CmdSetReminder: "setreminder",
	CmdReminderOn:  "reminderon",
	CmdReminderOff: "reminderoff",
	CmdChatID:      "chatid",
	CmdPanel:       "panel",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// commandAliases maps every accepted spelling (localized, shorthand,
// with or without the leading slash) onto its canonical command.
var commandAliases = map[string]Command{
	"/start": CmdStart,

	"/help":     CmdHelp,
	"/yardim":   CmdHelp,
	"/komutlar": CmdHelp,
	"help":      CmdHelp,
	"yardim":    CmdHelp,
	"komutlar":  CmdHelp,

	"/status": CmdStatus,
	"/durum":  CmdStatus,
	"status":  CmdStatus,
	"durum":   CmdStatus,

	"/busy":   CmdBusy,
	"/mesgul": CmdBusy,
	"busy":    CmdBusy,
	"mesgul":  CmdBusy,

	"/off":   CmdOff,
	"/kapat": CmdOff,
	"off":    CmdOff,
	"kapat":  CmdOff,

	"/tick": CmdTick,
	"tick":  CmdTick,

	"/maintain": CmdMaintain,
	"/bakim":    CmdMaintain,
	"maintain":  CmdMaintain,
	"bakim":     CmdMaintain,

	"/setreminder": CmdSetReminder,
	"/hatirlat":    CmdSetReminder,
	"setreminder":  CmdSetReminder,
	"hatirlat":     CmdSetReminder,

	"/reminderon":  CmdReminderOn,
	"reminderon":   CmdReminderOn,
	"/reminderoff": CmdReminderOff,
	"reminderoff":  CmdReminderOff,

	"/chatid": CmdChatID,
	"chatid":  CmdChatID,

	"/panel": CmdPanel,
	"panel":  CmdPanel,
}

// Action is the closed set of inline-button actions.
type Action int

const (
	ActUnknown Action = iota
	ActStatus
	ActTick
	ActMaintain
	ActBusy1
	ActBusy3
	ActOff
	ActReminderOn
	ActReminderOff
	ActReminderDefault
	ActRefresh
)

var callbackActions = map[string]Action{
	"status":      ActStatus,
	"tick":        ActTick,
	"maintain":    ActMaintain,
	"busy1":       ActBusy1,
	"busy3":       ActBusy3,
	"off":         ActOff,
	"rem_on":      ActReminderOn,
	"rem_off":     ActReminderOff,
	"rem_default": ActReminderDefault,
	"refresh":     ActRefresh,
}

const helpText = `Streak Bot Help

Purpose:
- Warn you near the end of the day when no commit landed
- Run maintenance commands over chat

Commands:
/help (or /yardim)
  Show this menu.

/status (or /durum)
  Show today's commit state and repo status.

/busy <days> [note] (or /mesgul)
  Enable streak protection for N days.
  Example: /busy 2 Heavy meeting week

/off (or /kapat)
  Disable busy mode.

/tick [note]
  Run today's streak commit if one is due.

/maintain [note] (or /bakim)
  Commit and push a small maintenance snapshot.

/setreminder HH:MM (or /hatirlat)
  Set the daily warning time (24h format).
  Example: /setreminder 22:15

/reminderon /reminderoff
  Toggle the daily warning.

/panel
  Show the button control panel.

/chatid
  Show this chat's id.

Note:
- The bot only accepts commands from the bound chat.
- The chat that sends /start first is bound automatically.`

// Normalize parses raw message text into a command and its argument
// tokens. ok is false for blank input. Unrecognized first tokens
// resolve to CmdUnknown and later produce the fallback reply.
func Normalize(raw string) (cmd Command, args []string, ok bool) {
	fields := strings.Fields(strings.TrimSpace(raw))
	if len(fields) == 0 {
		return CmdUnknown, nil, false
	}
	head, _, _ := strings.Cut(fields[0], "@")
	head = strings.ToLower(head)

	cmd, known := commandAliases[head]
	if !known {
		cmd = CmdUnknown
	}
	return cmd, fields[1:], true
}

// Router executes chat commands and button actions against the engine
// and the persisted documents. Dispatch never fails: invalid input
// becomes a usage reply.
type Router struct {
	store  *config.Store
	repo   streak.Gateway
	engine *streak.Engine
	now    func() time.Time
}

func NewRouter(store *config.Store, repo streak.Gateway, engine *streak.Engine) *Router {
	return &Router{store: store, repo: repo, engine: engine, now: time.Now}
}

// SetClock overrides the router clock (for testing).
func (r *Router) SetClock(now func() time.Time) {
	r.now = now
}

func (r *Router) Dispatch(cmd Command, args []string, cfg *config.Config, st *config.State, chatID string) string {
	switch cmd {
	case CmdStart, CmdHelp:
		return helpText

	case CmdStatus:
		return r.statusText(cfg, st)

	case CmdBusy:
		if len(args) == 0 {
			return "Usage: /busy <days> [note]"
		}
		days, err := strconv.Atoi(args[0])
		if err != nil {
			return "Usage: /busy <days> [note]"
		}
		note := strings.TrimSpace(strings.Join(args[1:], " "))
		return r.setBusy(cfg, days, note)

	case CmdOff:
		cfg.Streak.BusyUntil = ""
		if err := r.store.SaveConfig(cfg); err != nil {
			return "Error: " + err.Error()
		}
		return "Busy mode disabled."

	case CmdTick:
		note := strings.TrimSpace(strings.Join(args, " "))
		res, err := r.engine.Protect(cfg, st, streak.ProtectOptions{Note: note})
		if err != nil {
			return "Error: " + err.Error()
		}
		return res.Message

	case CmdMaintain:
		note := strings.TrimSpace(strings.Join(args, " "))
		res, err := r.engine.Snapshot(cfg, streak.SnapshotOptions{Note: note})
		if err != nil {
			return "Error: " + err.Error()
		}
		return res.Message

	case CmdSetReminder:
		return r.setReminder(cfg, args)

	case CmdReminderOn:
		cfg.Bot.ReminderEnabled = true
		if err := r.store.SaveConfig(cfg); err != nil {
			return "Error: " + err.Error()
		}
		return fmt.Sprintf("Daily reminder enabled (%02d:%02d).", cfg.Bot.ReminderHour, cfg.Bot.ReminderMinute)

	case CmdReminderOff:
		cfg.Bot.ReminderEnabled = false
		if err := r.store.SaveConfig(cfg); err != nil {
			return "Error: " + err.Error()
		}
		return "Daily reminder disabled."

	case CmdChatID:
		return fmt.Sprintf("This chat's id: %s", chatID)

	case CmdPanel:
		return "Control panel:"

	default:
		return "Unknown command. Send /help to see all commands."
	}
}

// DispatchAction executes an inline-button action. The returned text is
// sent as a regular message after the callback is acknowledged.
func (r *Router) DispatchAction(act Action, cfg *config.Config, st *config.State, chatID string) string {
	switch act {
	case ActStatus:
		return r.statusText(cfg, st)

	case ActTick:
		res, err := r.engine.ProtectOrSnapshot(cfg, st, "")
		if err != nil {
			return "Error: " + err.Error()
		}
		return res.Message

	case ActMaintain:
		res, err := r.engine.Snapshot(cfg, streak.SnapshotOptions{})
		if err != nil {
			return "Error: " + err.Error()
		}
		return res.Message

	case ActBusy1:
		return r.setBusy(cfg, 1, "")

	case ActBusy3:
		return r.setBusy(cfg, 3, "")

	case ActOff:
		return r.Dispatch(CmdOff, nil, cfg, st, chatID)

	case ActReminderOn:
		return r.Dispatch(CmdReminderOn, nil, cfg, st, chatID)

	case ActReminderOff:
		return r.Dispatch(CmdReminderOff, nil, cfg, st, chatID)

	case ActReminderDefault:
		cfg.Bot.ReminderHour = config.DefaultReminderHour
		cfg.Bot.ReminderMinute = config.DefaultReminderMinute
		cfg.Bot.ReminderEnabled = true
		if err := r.store.SaveConfig(cfg); err != nil {
			return "Error: " + err.Error()
		}
		return fmt.Sprintf("Reminder reset to %02d:%02d.", cfg.Bot.ReminderHour, cfg.Bot.ReminderMinute)

	case ActRefresh:
		return "Control panel:"

	default:
		return ""
	}
}

// PanelKeyboard is the fixed inline keyboard for the control panel.
func PanelKeyboard() [][]Button {
	return [][]Button{
		{{Label: "Status", Data: "status"}, {Label: "Tick", Data: "tick"}, {Label: "Maintain", Data: "maintain"}},
		{{Label: "Busy 1d", Data: "busy1"}, {Label: "Busy 3d", Data: "busy3"}, {Label: "Busy off", Data: "off"}},
		{{Label: "Reminder on", Data: "rem_on"}, {Label: "Reminder off", Data: "rem_off"}},
		{{Label: "Reminder 21:30", Data: "rem_default"}, {Label: "Refresh", Data: "refresh"}},
	}
}

func (r *Router) setBusy(cfg *config.Config, days int, note string) string {
	until := config.BusyUntil(r.now(), days)
	cfg.Streak.BusyUntil = until.Format(config.DateLayout)
	if note != "" {
		cfg.Streak.BusyNote = note
	}
	if err := r.store.SaveConfig(cfg); err != nil {
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("Busy mode active until %s.", cfg.Streak.BusyUntil)
}

func (r *Router) setReminder(cfg *config.Config, args []string) string {
	const usage = "Usage: /setreminder HH:MM (example: /setreminder 22:15)"
	if len(args) != 1 {
		return usage
	}
	hh, mm, found := strings.Cut(args[0], ":")
	if !found || !digitsOnly(hh) || !digitsOnly(mm) {
		return "Invalid time format."
	}
	h, errH := strconv.Atoi(hh)
	m, errM := strconv.Atoi(mm)
	if errH != nil || errM != nil || h > 23 || m > 59 {
		return "Invalid time format."
	}
	cfg.Bot.ReminderHour = h
	cfg.Bot.ReminderMinute = m
	cfg.Bot.ReminderEnabled = true
	if err := r.store.SaveConfig(cfg); err != nil {
		return "Error: " + err.Error()
	}
	return fmt.Sprintf("Reminder time set to %02d:%02d.", h, m)
}

// digitsOnly rejects signs and whitespace that strconv.Atoi would let
// through.
func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (r *Router) statusText(cfg *config.Config, st *config.State) string {
	now := r.now()
	branch := r.repo.CurrentBranch()
	if branch == "" {
		branch = "unknown"
	}

	commitToday := "no"
	if r.repo.HasCommitToday(now) {
		commitToday = "yes"
	}

	busyUntil := cfg.Streak.BusyUntil
	if busyUntil == "" {
		busyUntil = "-"
	}
	busyNote := cfg.Streak.BusyNote
	if busyNote == "" {
		busyNote = "-"
	}
	lastTick := st.LastCommitDate
	if lastTick == "" {
		lastTick = "-"
	}

	return strings.Join([]string{
		"Streak Bot Status",
		"- Branch: " + branch,
		"- Commit today: " + commitToday,
		fmt.Sprintf("- Changed files: %d", r.repo.ChangedFileCount()),
		"- Busy until: " + busyUntil,
		"- Busy note: " + busyNote,
		"- Last tick commit: " + lastTick,
	}, "\n")
}
