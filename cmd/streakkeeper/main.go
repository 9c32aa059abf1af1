package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/tunaylabs/streakkeeper/internal/bot"
	"github.com/tunaylabs/streakkeeper/internal/config"
	"github.com/tunaylabs/streakkeeper/internal/gitrepo"
	"github.com/tunaylabs/streakkeeper/internal/schedule"
	"github.com/tunaylabs/streakkeeper/internal/streak"
)

var rootCmd = &cobra.Command{
	Use:   "streakkeeper",
	Short: "streakkeeper - keep a visible daily activity record in a git repo",
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the config and state documents",
	RunE:  runInit,
}

var busyCmd = &cobra.Command{
	Use:   "busy",
	Short: "Enable busy mode for N days",
	RunE:  runBusy,
}

var offCmd = &cobra.Command{
	Use:   "off",
	Short: "Disable busy mode",
	RunE:  runOff,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show streak status",
	RunE:  runStatus,
}

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Make today's streak commit if one is due",
	RunE:  runTick,
}

var maintainCmd = &cobra.Command{
	Use:   "maintain",
	Short: "Commit a small maintenance snapshot",
	RunE:  runMaintain,
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram remote-control gateway",
	RunE:  runBot,
}

var (
	busyDays     int
	busyNote     string
	tickForce    bool
	tickDryRun   bool
	tickNote     string
	tickMessage  string
	maintDryRun  bool
	maintNoPush  bool
	maintNote    string
	maintMessage string
)

func init() {
	busyCmd.Flags().IntVar(&busyDays, "days", 1, "How many days busy mode stays on")
	busyCmd.Flags().StringVar(&busyNote, "note", "", "Note for heartbeat lines")

	tickCmd.Flags().BoolVar(&tickForce, "force", false, "Run even when busy mode is off")
	tickCmd.Flags().BoolVar(&tickDryRun, "dry-run", false, "Show the plan without touching git")
	tickCmd.Flags().StringVar(&tickNote, "note", "", "Heartbeat note for this run")
	tickCmd.Flags().StringVar(&tickMessage, "message", "", "Custom commit message")

	maintainCmd.Flags().BoolVar(&maintDryRun, "dry-run", false, "Show the plan without touching git")
	maintainCmd.Flags().BoolVar(&maintNoPush, "no-push", false, "Commit locally only")
	maintainCmd.Flags().StringVar(&maintNote, "note", "", "Maintenance note")
	maintainCmd.Flags().StringVar(&maintMessage, "message", "", "Custom commit message")

	rootCmd.AddCommand(initCmd, busyCmd, offCmd, statusCmd, tickCmd, maintainCmd, botCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openRepo locates the working directory and verifies it is a git work
// tree. Every subcommand operates on the repo the tool is invoked in.
func openRepo() (string, *gitrepo.Repo, error) {
	root, err := os.Getwd()
	if err != nil {
		return "", nil, fmt.Errorf("resolve working directory: %w", err)
	}
	repo := gitrepo.New(root)
	if !repo.IsWorkTree() {
		return "", nil, fmt.Errorf("this directory is not a git repository")
	}
	return root, repo, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	root, _, err := openRepo()
	if err != nil {
		return err
	}
	store := config.NewStore(root)

	if _, err := os.Stat(store.ConfigPath()); err == nil {
		fmt.Printf("Config already exists: %s\n", store.ConfigPath())
		return nil
	}
	if err := store.SaveConfig(config.DefaultConfig()); err != nil {
		return err
	}
	if err := store.SaveState(config.DefaultState()); err != nil {
		return err
	}
	fmt.Printf("Created: %s\n", store.ConfigPath())
	fmt.Printf("Created: %s\n", store.StatePath())
	return nil
}

func runBusy(cmd *cobra.Command, args []string) error {
	root, _, err := openRepo()
	if err != nil {
		return err
	}
	store := config.NewStore(root)
	cfg, err := store.LoadConfig()
	if err != nil {
		return err
	}

	until := config.BusyUntil(time.Now(), busyDays)
	cfg.Streak.BusyUntil = until.Format(config.DateLayout)
	if busyNote != "" {
		cfg.Streak.BusyNote = busyNote
	}
	if err := store.SaveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("Busy mode active until %s.\n", cfg.Streak.BusyUntil)
	return nil
}

func runOff(cmd *cobra.Command, args []string) error {
	root, _, err := openRepo()
	if err != nil {
		return err
	}
	store := config.NewStore(root)
	cfg, err := store.LoadConfig()
	if err != nil {
		return err
	}

	cfg.Streak.BusyUntil = ""
	if err := store.SaveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("Busy mode disabled.")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	root, _, err := openRepo()
	if err != nil {
		return err
	}
	store := config.NewStore(root)
	cfg, err := store.LoadConfig()
	if err != nil {
		return err
	}
	st, err := store.LoadState()
	if err != nil {
		return err
	}

	mode := "INACTIVE"
	if cfg.Streak.BusyActive(time.Now()) {
		mode = "ACTIVE"
	}
	fmt.Printf("Busy mode: %s\n", mode)
	fmt.Printf("Busy until: %s\n", orDash(cfg.Streak.BusyUntil))
	fmt.Printf("Busy note: %s\n", orDash(cfg.Streak.BusyNote))
	fmt.Printf("Heartbeat file: %s\n", cfg.Streak.HeartbeatFile)
	fmt.Printf("Last tick commit: %s\n", orDash(st.LastCommitDate))
	return nil
}

func runTick(cmd *cobra.Command, args []string) error {
	root, repo, err := openRepo()
	if err != nil {
		return err
	}
	store := config.NewStore(root)
	cfg, err := store.LoadConfig()
	if err != nil {
		return err
	}
	st, err := store.LoadState()
	if err != nil {
		return err
	}

	engine := streak.NewEngine(repo, store, root)
	res, err := engine.Protect(cfg, st, streak.ProtectOptions{
		Force:   tickForce,
		DryRun:  tickDryRun,
		Note:    tickNote,
		Message: tickMessage,
	})
	if err != nil {
		return err
	}
	fmt.Println(res.Message)
	return nil
}

func runMaintain(cmd *cobra.Command, args []string) error {
	root, repo, err := openRepo()
	if err != nil {
		return err
	}
	store := config.NewStore(root)
	cfg, err := store.LoadConfig()
	if err != nil {
		return err
	}

	engine := streak.NewEngine(repo, store, root)
	res, err := engine.Snapshot(cfg, streak.SnapshotOptions{
		DryRun:  maintDryRun,
		NoPush:  maintNoPush,
		Note:    maintNote,
		Message: maintMessage,
	})
	if err != nil {
		return err
	}
	fmt.Println(res.Message)
	return nil
}

func runBot(cmd *cobra.Command, args []string) error {
	root, repo, err := openRepo()
	if err != nil {
		return err
	}
	store := config.NewStore(root)
	cfg, err := store.LoadConfig()
	if err != nil {
		return err
	}
	st, err := store.LoadState()
	if err != nil {
		return err
	}

	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token required: set TELEGRAM_BOT_TOKEN or bot.token in %s", store.ConfigPath())
	}

	transport, err := bot.NewTelegram(cfg.Bot.Token)
	if err != nil {
		return err
	}

	engine := streak.NewEngine(repo, store, root)
	router := bot.NewRouter(store, repo, engine)
	gate := bot.NewGate(store)
	reminder := bot.NewReminder(repo)
	dispatcher := bot.NewDispatcher(store, transport, router, gate, reminder, cfg, st)

	if cfg.AutoProtect.Enabled {
		// The cron goroutine only marks the job due; the dispatcher
		// loop runs it, so cfg and st stay single-goroutine.
		svc := schedule.NewService(cfg.AutoProtect.Spec)
		svc.Trigger = dispatcher.ScheduleProtect
		if err := svc.Start(); err != nil {
			return err
		}
		defer svc.Stop()
	}

	signal.Notify(dispatcher.Signals(), syscall.SIGINT, syscall.SIGTERM)
	return dispatcher.Run()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
