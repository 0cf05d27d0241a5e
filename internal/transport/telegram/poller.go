package telegram

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/heartpipes/clubbot/internal/conversation"
	"github.com/heartpipes/clubbot/internal/model"
	"github.com/heartpipes/clubbot/internal/repository"
)

// Poller long-polls Telegram for updates and drives the conversation
// engine. Updates are processed one at a time, which keeps every user's
// dialogue strictly ordered; different users' updates interleave in arrival
// order.
type Poller struct {
	client *Client
	engine *conversation.Engine
	users  repository.UserRepository
	logger *slog.Logger
}

func NewPoller(client *Client, engine *conversation.Engine, users repository.UserRepository, logger *slog.Logger) *Poller {
	return &Poller{
		client: client,
		engine: engine,
		users:  users,
		logger: logger,
	}
}

// Run blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := p.client.bot.GetUpdatesChan(cfg)
	defer p.client.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			p.handle(ctx, update)
		}
	}
}

func (p *Poller) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	// Track the identity on every contact; broadcasts to "everyone" read
	// from this table. A store hiccup here must not block the reply.
	user := &model.User{
		ID:        chatID,
		FirstName: msg.From.FirstName,
		Username:  msg.From.UserName,
	}
	if err := p.users.UpsertUser(ctx, user); err != nil {
		p.logger.Error("upserting user failed",
			slog.Int64("chat", chatID),
			slog.String("error", err.Error()),
		)
	}

	in := toInput(msg)
	for _, out := range p.engine.HandleUpdate(ctx, chatID, in) {
		if err := p.client.Send(ctx, chatID, out); err != nil {
			p.logger.Error("reply failed",
				slog.Int64("chat", chatID),
				slog.String("error", err.Error()),
			)
		}
	}
}

func toInput(msg *tgbotapi.Message) conversation.Input {
	in := conversation.Input{FirstName: msg.From.FirstName}

	switch {
	case msg.IsCommand():
		in.Kind = conversation.KindCommand
		in.Command = msg.Command()
		in.Text = msg.CommandArguments()
	case len(msg.Photo) > 0:
		in.Kind = conversation.KindPhoto
		// Telegram sends several sizes; the last one is the largest.
		in.PhotoFileID = msg.Photo[len(msg.Photo)-1].FileID
		in.Caption = msg.Caption
	default:
		in.Kind = conversation.KindText
		in.Text = msg.Text
	}
	return in
}
