package gateway

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/rahul/herodotus/pkg/config"
)

const telegramLimit = 4096

// telegramBot is the subset of *tgbotapi.BotAPI the gateway uses.
type telegramBot interface {
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	StopReceivingUpdates()
}

type TelegramGateway struct {
	bot telegramBot
	responder
}

func NewTelegram(token string, runner Runner, settings config.Settings, logger *zap.Logger) (*TelegramGateway, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	g := newTelegram(bot, runner, settings, logger)
	g.logger.Info("telegram authorized", zap.String("account", bot.Self.UserName))
	return g, nil
}

func newTelegram(bot telegramBot, runner Runner, settings config.Settings, logger *zap.Logger) *TelegramGateway {
	return &TelegramGateway{bot: bot, responder: newResponder(runner, settings, logger)}
}

func (tg *TelegramGateway) Name() string { return "telegram" }

func (tg *TelegramGateway) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := tg.bot.GetUpdatesChan(u)
	defer tg.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			tg.handle(ctx, update.Message)
		}
	}
}

func (tg *TelegramGateway) handle(ctx context.Context, msg *tgbotapi.Message) {
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	user := ""
	if msg.From != nil {
		user = msg.From.UserName
	}
	tg.logger.Debug("telegram message", zap.String("chat", chatID), zap.String("user", user))

	response := tg.reply(ctx, tg.Name(), chatID, msg.Text)
	if response == "" {
		return
	}
	if err := tg.send(msg.Chat.ID, response, ""); err != nil {
		tg.logger.Warn("telegram send failed", zap.String("chat", chatID), zap.Error(err))
	}
}

// Send delivers text to a chat as Markdown.
func (tg *TelegramGateway) Send(chatID string, text string) error {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid chat ID: %s", chatID)
	}
	return tg.send(id, text, tgbotapi.ModeMarkdown)
}

func (tg *TelegramGateway) send(id int64, text, mode string) error {
	for _, part := range split(text, telegramLimit) {
		msg := tgbotapi.NewMessage(id, part)
		msg.ParseMode = mode
		if _, err := tg.bot.Send(msg); err != nil {
			return err
		}
	}
	return nil
}
