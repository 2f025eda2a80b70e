// Package telegram implements the Telegram platform adapter on top of
// telebot. Recipients are numeric chat IDs or @channel usernames.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	"massmsg/internal/platform"
)

const Name = "telegram"

// SenderData is the platform-specific sender record:
//
//	{"token": "123456:ABC-..."}
type SenderData struct {
	Token string `json:"token"`
}

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Name() string { return Name }

func (a *Adapter) BuildSender(data any) (platform.ClientUser, error) {
	var sd SenderData
	if err := platform.DecodeData(data, &sd); err != nil {
		return nil, err
	}
	if strings.TrimSpace(sd.Token) == "" {
		return nil, errors.New("telegram sender: token is required")
	}
	// NewBot calls getMe, so an invalid token fails here, before any send.
	b, err := tele.NewBot(tele.Settings{Token: sd.Token})
	if err != nil {
		return nil, fmt.Errorf("telegram sender: %w", err)
	}
	return &clientUser{user: user{id: b.Me.Username}, bot: b}, nil
}

func (a *Adapter) BuildRecipient(data any) (platform.User, error) {
	switch v := data.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, errors.New("telegram recipient: empty chat id")
		}
		return user{id: v}, nil
	case float64:
		// Bare JSON numbers arrive as float64.
		return user{id: strconv.FormatInt(int64(v), 10)}, nil
	default:
		var rd struct {
			ChatID int64 `json:"chat_id"`
		}
		if err := platform.DecodeData(data, &rd); err != nil {
			return nil, err
		}
		if rd.ChatID == 0 {
			return nil, errors.New("telegram recipient: chat_id is required")
		}
		return user{id: strconv.FormatInt(rd.ChatID, 10)}, nil
	}
}

type user struct {
	id string
}

func (u user) ID() string { return u.id }

// chat adapts a chat id / @username string to telebot's Recipient.
type chat string

func (c chat) Recipient() string { return string(c) }

type clientUser struct {
	user
	bot *tele.Bot
}

func (c *clientUser) Send(ctx context.Context, to platform.User, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// telebot is not context-aware; bound the call so one unresponsive
	// chat cannot stall the batch.
	done := make(chan error, 1)
	go func() {
		_, err := c.bot.Send(chat(to.ID()), content)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("telegram send to %s: %w", to.ID(), err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is a no-op: the bot handle has no long-poll running and holds no
// persistent connection of its own.
func (c *clientUser) Close() error { return nil }
