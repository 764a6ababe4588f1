package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mvanwyk/entrada/internal/bridge"
	"github.com/mvanwyk/entrada/internal/browser"
	"github.com/mvanwyk/entrada/internal/commands"
	"github.com/mvanwyk/entrada/internal/config"
	"github.com/mvanwyk/entrada/internal/creds"
	. "github.com/mvanwyk/entrada/internal/logging"
	"github.com/mvanwyk/entrada/internal/ocr"
	"github.com/mvanwyk/entrada/internal/portal"
	"github.com/mvanwyk/entrada/internal/session"
	"github.com/mvanwyk/entrada/internal/telegram"
)

const version = "0.1.0"

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("entrada %s\n", version)
		return
	}

	level := LevelInfo
	if os.Getenv("ENTRADA_DEBUG") != "" {
		level = LevelDebug
	}
	Init(&Config{Level: level})

	L_info("entrada %s starting", version)

	cfg, err := config.Load()
	if err != nil {
		L_fatal("failed to load config: %v", err)
	}

	profile, err := portal.LoadProfile(cfg.ProfilePath)
	if err != nil {
		L_fatal("failed to load portal profile: %v", err)
	}
	if profile.URL == "" {
		L_fatal("no portal url configured (set ENTRADA_URL or a profile file)")
	}

	recognizer, err := ocr.NewRecognizer(cfg.OCR)
	if err != nil {
		L_fatal("failed to set up ocr: %v", err)
	}

	bot, err := telegram.New(&cfg.Telegram)
	if err != nil {
		L_fatal("failed to create telegram bot: %v", err)
	}

	gate := session.NewGate()
	registry := session.NewRegistry(browser.NewLauncher(cfg.Browser).NewPage)
	br := bridge.New(bot)
	store := creds.NewStore(cfg.CredsPath)
	orch := portal.NewOrchestrator(profile, br, store, recognizer, time.Duration(cfg.InputWait))
	handler := commands.NewHandler(gate, registry, br, orch)

	bot.Attach(handler, br)
	bot.Start()

	L_info("entrada ready", "portal", profile.URL)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	L_info("shutting down")
	bot.Stop()
	registry.CloseAll()
}
