package bot

import (
	"log"
	"strings"

	"github.com/tunaylabs/streakkeeper/internal/config"
)

// Gate enforces the single-conversation binding. The first /start seen
// while no chat is bound claims the binding (when auto-bind is on);
// after that only the bound chat is ever allowed, and no command path
// un-binds it.
type Gate struct {
	store *config.Store
}

func NewGate(store *config.Store) *Gate {
	return &Gate{store: store}
}

// Authorize reports whether the chat may run the command, and whether
// it was bound by this very call. A binding is persisted before the
// triggering command executes, so a crash right after binding does not
// lose it.
func (g *Gate) Authorize(cfg *config.Config, chatID string, cmd Command) (allowed, justBound bool, err error) {
	bound := strings.TrimSpace(cfg.Bot.AllowedChatID)

	if bound == "" {
		if !cfg.Bot.AutoBindChatOnStart || cmd != CmdStart {
			return false, false, nil
		}
		cfg.Bot.AllowedChatID = chatID
		if err := g.store.SaveConfig(cfg); err != nil {
			cfg.Bot.AllowedChatID = ""
			return false, false, err
		}
		log.Printf("[bot] allowed chat auto-bound: %s", chatID)
		return true, true, nil
	}

	return chatID == bound, false, nil
}
