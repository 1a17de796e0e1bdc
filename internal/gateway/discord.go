package gateway

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/rahul/herodotus/pkg/config"
)

const discordLimit = 2000

type channelSender interface {
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

type DiscordGateway struct {
	session *discordgo.Session
	sender  channelSender
	responder
}

func NewDiscord(token string, runner Runner, settings config.Settings, logger *zap.Logger) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentGuildMessages | discordgo.IntentDirectMessages | discordgo.IntentMessageContent
	return &DiscordGateway{session: s, sender: s, responder: newResponder(runner, settings, logger)}, nil
}

func (d *DiscordGateway) Name() string { return "discord" }

// Start opens the websocket and answers messages until ctx is cancelled.
func (d *DiscordGateway) Start(ctx context.Context) error {
	remove := d.session.AddHandler(func(s *discordgo.Session, m *discordgo.MessageCreate) {
		selfID := ""
		if s.State != nil && s.State.User != nil {
			selfID = s.State.User.ID
		}
		d.handle(ctx, selfID, m)
	})
	defer remove()

	if err := d.session.Open(); err != nil {
		return err
	}
	d.logger.Info("discord connected")

	<-ctx.Done()
	return d.session.Close()
}

func (d *DiscordGateway) handle(ctx context.Context, selfID string, m *discordgo.MessageCreate) {
	if m.Message == nil || m.Author == nil || m.Author.Bot || m.Author.ID == selfID {
		return
	}
	d.logger.Debug("discord message", zap.String("channel", m.ChannelID), zap.String("user", m.Author.Username))

	response := d.reply(ctx, d.Name(), m.ChannelID, m.Content)
	if response == "" {
		return
	}
	if err := d.Send(m.ChannelID, response); err != nil {
		d.logger.Warn("discord send failed", zap.String("channel", m.ChannelID), zap.Error(err))
	}
}

func (d *DiscordGateway) Send(channelID string, text string) error {
	for _, part := range split(text, discordLimit) {
		if _, err := d.sender.ChannelMessageSend(channelID, part); err != nil {
			return err
		}
	}
	return nil
}
