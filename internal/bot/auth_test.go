package bot

import (
	"testing"

	"github.com/tunaylabs/streakkeeper/internal/config"
)

func TestAuthorize_AutoBindOnStart(t *testing.T) {
	store := config.NewStore(t.TempDir())
	gate := NewGate(store)
	cfg := config.DefaultConfig()

	allowed, justBound, err := gate.Authorize(cfg, "1001", CmdStart)
	if err != nil {
		t.Fatalf("Authorize error: %v", err)
	}
	if !allowed || !justBound {
		t.Errorf("allowed=%v justBound=%v, want true/true", allowed, justBound)
	}
	if cfg.Bot.AllowedChatID != "1001" {
		t.Errorf("allowedChatId = %q, want 1001", cfg.Bot.AllowedChatID)
	}

	// The binding is persisted synchronously.
	t.Setenv("TELEGRAM_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_ALLOWED_CHAT_ID", "")
	persisted, err := store.LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if persisted.Bot.AllowedChatID != "1001" {
		t.Errorf("persisted allowedChatId = %q, want 1001", persisted.Bot.AllowedChatID)
	}
}

func TestAuthorize_UnboundRejectsNonStart(t *testing.T) {
	gate := NewGate(config.NewStore(t.TempDir()))
	cfg := config.DefaultConfig()

	allowed, justBound, err := gate.Authorize(cfg, "1001", CmdStatus)
	if err != nil {
		t.Fatalf("Authorize error: %v", err)
	}
	if allowed || justBound {
		t.Error("non-start command must not bind or pass while unbound")
	}
	if cfg.Bot.AllowedChatID != "" {
		t.Error("binding must not change")
	}
}

func TestAuthorize_AutoBindDisabled(t *testing.T) {
	gate := NewGate(config.NewStore(t.TempDir()))
	cfg := config.DefaultConfig()
	cfg.Bot.AutoBindChatOnStart = false

	allowed, justBound, err := gate.Authorize(cfg, "1001", CmdStart)
	if err != nil {
		t.Fatalf("Authorize error: %v", err)
	}
	if allowed || justBound {
		t.Error("start must not bind when auto-bind is off")
	}
}

func TestAuthorize_BindingIsPermanent(t *testing.T) {
	store := config.NewStore(t.TempDir())
	gate := NewGate(store)
	cfg := config.DefaultConfig()

	if _, _, err := gate.Authorize(cfg, "1001", CmdStart); err != nil {
		t.Fatal(err)
	}

	// Repeated /start from another chat is rejected and never rebinds.
	for i := 0; i < 3; i++ {
		allowed, justBound, err := gate.Authorize(cfg, "2002", CmdStart)
		if err != nil {
			t.Fatalf("Authorize error: %v", err)
		}
		if allowed || justBound {
			t.Error("foreign chat must be rejected after binding")
		}
	}
	if cfg.Bot.AllowedChatID != "1001" {
		t.Errorf("binding changed to %q", cfg.Bot.AllowedChatID)
	}

	// The bound chat stays allowed for every command.
	allowed, justBound, err := gate.Authorize(cfg, "1001", CmdTick)
	if err != nil {
		t.Fatal(err)
	}
	if !allowed || justBound {
		t.Errorf("bound chat: allowed=%v justBound=%v, want true/false", allowed, justBound)
	}
}

func TestAuthorize_PreconfiguredChat(t *testing.T) {
	gate := NewGate(config.NewStore(t.TempDir()))
	cfg := config.DefaultConfig()
	cfg.Bot.AllowedChatID = "42"

	if allowed, _, _ := gate.Authorize(cfg, "42", CmdStatus); !allowed {
		t.Error("configured chat should be allowed")
	}
	if allowed, _, _ := gate.Authorize(cfg, "43", CmdStatus); allowed {
		t.Error("other chats should be rejected")
	}
}
