package gateway

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/pkg/config"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type call struct {
	task     string
	settings config.Settings
}

type fakeRunner struct {
	mu     sync.Mutex
	calls  []call
	answer string
	err    error
}

func (f *fakeRunner) Process(_ context.Context, task string, settings config.Settings) (*agent.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call{task: task, settings: settings})
	if f.err != nil {
		return nil, f.err
	}
	return &agent.Outcome{Output: f.answer}, nil
}

func (f *fakeRunner) recorded() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

type fakeBot struct {
	updates chan tgbotapi.Update
	mu      sync.Mutex
	sent    []tgbotapi.MessageConfig
	stopped bool
}

func (b *fakeBot) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return b.updates }

func (b *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (b *fakeBot) StopReceivingUpdates() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopped = true
}

func (b *fakeBot) messages() []tgbotapi.MessageConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]tgbotapi.MessageConfig(nil), b.sent...)
}

func telegramUpdate(chat int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		Chat: &tgbotapi.Chat{ID: chat},
		From: &tgbotapi.User{UserName: "herodotus"},
		Text: text,
	}}
}

func TestTelegram_AnswersWithChatSession(t *testing.T) {
	runner := &fakeRunner{answer: "Xerxes crossed the Hellespont."}
	bot := &fakeBot{updates: make(chan tgbotapi.Update, 3)}
	defaults := config.Settings{Agents: config.AgentToggles{Reasoning: true}}
	tg := newTelegram(bot, runner, defaults, nil)

	bot.updates <- tgbotapi.Update{}
	bot.updates <- telegramUpdate(42, "Who bridged the Hellespont?")
	bot.updates <- telegramUpdate(42, "   ")
	close(bot.updates)

	require.NoError(t, tg.Start(context.Background()))

	calls := runner.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "Who bridged the Hellespont?", calls[0].task)
	assert.Equal(t, "42", calls[0].settings.Session)
	assert.True(t, calls[0].settings.Agents.Reasoning)

	sent := bot.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, int64(42), sent[0].ChatID)
	assert.Equal(t, "Xerxes crossed the Hellespont.", sent[0].Text)
	assert.True(t, bot.stopped)
}

func TestTelegram_FailureRepliesGently(t *testing.T) {
	runner := &fakeRunner{err: errors.New("no provider")}
	bot := &fakeBot{updates: make(chan tgbotapi.Update, 1)}
	tg := newTelegram(bot, runner, config.Settings{}, nil)

	bot.updates <- telegramUpdate(7, "hello")
	close(bot.updates)
	require.NoError(t, tg.Start(context.Background()))

	sent := bot.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, troubleReply, sent[0].Text)
}

func TestTelegram_StopsOnCancel(t *testing.T) {
	bot := &fakeBot{updates: make(chan tgbotapi.Update)}
	tg := newTelegram(bot, &fakeRunner{}, config.Settings{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tg.Start(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestTelegram_Send(t *testing.T) {
	bot := &fakeBot{}
	tg := newTelegram(bot, &fakeRunner{}, config.Settings{}, nil)

	assert.Error(t, tg.Send("not-a-chat", "hi"))
	require.NoError(t, tg.Send("99", "*alert*"))
	sent := bot.messages()
	require.Len(t, sent, 1)
	assert.Equal(t, tgbotapi.ModeMarkdown, sent[0].ParseMode)
}

type fakeSender struct {
	sent map[string][]string
}

func (f *fakeSender) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.sent == nil {
		f.sent = map[string][]string{}
	}
	f.sent[channelID] = append(f.sent[channelID], content)
	return &discordgo.Message{}, nil
}

func discordMessage(author *discordgo.User, channel, text string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{ChannelID: channel, Content: text, Author: author}}
}

func TestDiscord_Handle(t *testing.T) {
	runner := &fakeRunner{answer: strings.Repeat("a", discordLimit+10)}
	sender := &fakeSender{}
	d := &DiscordGateway{sender: sender, responder: newResponder(runner, config.Settings{}, nil)}
	ctx := context.Background()

	d.handle(ctx, "self", discordMessage(&discordgo.User{ID: "self"}, "c1", "ignored"))
	d.handle(ctx, "self", discordMessage(&discordgo.User{ID: "b", Bot: true}, "c1", "ignored"))
	d.handle(ctx, "self", discordMessage(&discordgo.User{ID: "u1", Username: "thucydides"}, "c1", "tell me about Salamis"))

	calls := runner.recorded()
	require.Len(t, calls, 1)
	assert.Equal(t, "c1", calls[0].settings.Session)
	require.Len(t, sender.sent["c1"], 2)
	assert.Len(t, sender.sent["c1"][0], discordLimit)
}

func TestSplit(t *testing.T) {
	assert.Nil(t, split("", 10))
	assert.Equal(t, []string{"short"}, split("short", 10))
	assert.Equal(t, []string{"line one", "line two"}, split("line one\nline two", 12))
	assert.Equal(t, []string{"abcd", "efgh", "ij"}, split("abcdefghij", 4))

	for _, part := range split("ééééé", 3) {
		assert.Equal(t, "é", part)
	}
}

func TestFromConfig_NoneEnabled(t *testing.T) {
	cfg := config.Default()
	cfg.Gateways = map[string]config.GatewayConfig{"telegram": {Token: "t", Enabled: false}}
	gws, err := FromConfig(cfg, &fakeRunner{}, nil)
	require.NoError(t, err)
	assert.Empty(t, gws)
}
