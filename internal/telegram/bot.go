// Package telegram provides the Telegram chat adapter for entrada. It
// routes lifecycle commands to the command handler and inbound text to
// the human-input bridge, and implements the bridge's Transport.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"github.com/mvanwyk/entrada/internal/bridge"
	"github.com/mvanwyk/entrada/internal/commands"
	"github.com/mvanwyk/entrada/internal/config"
	. "github.com/mvanwyk/entrada/internal/logging"
)

const busyText = "⚠️ A session operation is already active. Please wait for it to complete or use /logout to reset."

// Bot is the Telegram adapter.
type Bot struct {
	bot     *tele.Bot
	config  *config.TelegramConfig
	handler *commands.Handler
	bridge  *bridge.Bridge
}

// New creates the Telegram bot. Attach must be called before Start.
func New(cfg *config.TelegramConfig) (*Bot, error) {
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("telegram bot token not configured")
	}

	pref := tele.Settings{
		Token:  cfg.BotToken,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	L_debug("telegram: bot created", "username", b.Me.Username, "id", b.Me.ID)

	return &Bot{bot: b, config: cfg}, nil
}

// Attach wires the command handler and bridge and registers the message
// handlers. Separate from New because the bridge is built on top of the
// bot's transport.
func (b *Bot) Attach(h *commands.Handler, br *bridge.Bridge) {
	b.handler = h
	b.bridge = br
	b.setupHandlers()
}

func (b *Bot) setupHandlers() {
	b.bot.Handle("/start", func(c tele.Context) error {
		userID := c.Chat().ID
		if !b.allowed(c.Sender().ID) {
			return nil
		}
		// Lifecycle commands block for their full duration; each runs on
		// its own goroutine so polling keeps serving other users.
		go func() {
			if err := b.handler.Start(userID); err != nil {
				b.commandError(userID, err)
				return
			}
			b.send(userID, "👋 Welcome! I'm ready to help you. Use /login to begin.")
		}()
		return nil
	})

	b.bot.Handle("/login", func(c tele.Context) error {
		userID := c.Chat().ID
		if !b.allowed(c.Sender().ID) {
			return nil
		}
		go func() {
			if err := b.handler.Login(context.Background(), userID); err != nil {
				b.commandError(userID, err)
			}
		}()
		return nil
	})

	b.bot.Handle("/operations", func(c tele.Context) error {
		userID := c.Chat().ID
		if !b.allowed(c.Sender().ID) {
			return nil
		}
		go func() {
			if err := b.handler.Operate(userID); err != nil {
				b.commandError(userID, err)
			}
		}()
		return nil
	})

	b.bot.Handle("/logout", func(c tele.Context) error {
		userID := c.Chat().ID
		if !b.allowed(c.Sender().ID) {
			return nil
		}
		b.handler.Logout(userID)
		return c.Send("👋 Logged out successfully.")
	})

	// Free-form text only matters while a command is waiting on input
	b.bot.Handle(tele.OnText, func(c tele.Context) error {
		userID := c.Chat().ID
		if !b.allowed(c.Sender().ID) {
			L_debug("telegram: ignoring message from unknown user", "user", c.Sender().ID)
			return nil
		}
		if b.bridge.Deliver(userID, c.Text()) {
			return c.Send("✅ Input received!")
		}
		return nil
	})
}

// commandError reports a rejected or failed command. Detailed failure
// status has already been pushed by the command itself.
func (b *Bot) commandError(userID int64, err error) {
	if errors.Is(err, commands.ErrBusy) {
		b.send(userID, busyText)
		return
	}
	L_error("telegram: command failed", "user", userID, "error", err)
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.SendText(chatID, text); err != nil {
		L_warn("telegram: send failed", "chatID", chatID, "error", err)
	}
}

// allowed checks the optional user allowlist. An empty list admits
// everyone.
func (b *Bot) allowed(senderID int64) bool {
	if len(b.config.AllowedUsers) == 0 {
		return true
	}
	for _, id := range b.config.AllowedUsers {
		if id == senderID {
			return true
		}
	}
	return false
}

// Start starts the bot polling
func (b *Bot) Start() {
	L_info("starting telegram bot", "username", b.bot.Me.Username)
	go b.bot.Start()
}

// Stop stops the bot
func (b *Bot) Stop() {
	L_info("stopping telegram bot")
	b.bot.Stop()
}

// SendText sends a plain text message and returns its ID so the bridge
// can replace status lines. Implements bridge.Transport.
func (b *Bot) SendText(chatID int64, text string) (int, error) {
	msg, err := b.bot.Send(&tele.Chat{ID: chatID}, text)
	if err != nil {
		return 0, fmt.Errorf("failed to send text: %w", err)
	}
	return msg.ID, nil
}

// SendImage sends a photo from disk with a caption. Implements
// bridge.Transport.
func (b *Bot) SendImage(chatID int64, path string, caption string) error {
	photo := &tele.Photo{File: tele.FromDisk(path), Caption: caption}
	if _, err := b.bot.Send(&tele.Chat{ID: chatID}, photo); err != nil {
		return fmt.Errorf("failed to send photo: %w", err)
	}
	return nil
}

// DeleteMessage removes a previously sent message. Implements
// bridge.Transport.
func (b *Bot) DeleteMessage(chatID int64, messageID int) error {
	msg := &tele.Message{ID: messageID, Chat: &tele.Chat{ID: chatID}}
	if err := b.bot.Delete(msg); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}
