// Package gateway connects chat platforms to the pipeline. Every incoming
// message is run as a task and the memory session is the chat it came from.
package gateway

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/rahul/herodotus/internal/agent"
	"github.com/rahul/herodotus/pkg/config"
)

const troubleReply = "I'm having trouble thinking right now..."

// Runner is the part of the service a gateway drives.
type Runner interface {
	Process(ctx context.Context, task string, settings config.Settings) (*agent.Outcome, error)
}

// Messenger defines the interface for communication gateways (Telegram, Discord, etc.)
type Messenger interface {
	Name() string
	// Start listens for messages until ctx is cancelled.
	Start(ctx context.Context) error
	// Send sends a message to a specific chat
	Send(chatID string, text string) error
}

// responder turns a chat message into a reply.
type responder struct {
	runner   Runner
	settings config.Settings
	logger   *zap.Logger
}

func newResponder(runner Runner, settings config.Settings, logger *zap.Logger) responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return responder{runner: runner, settings: settings, logger: logger}
}

func (r responder) reply(ctx context.Context, platform, chatID, text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	settings := r.settings
	settings.Session = chatID

	out, err := r.runner.Process(ctx, text, settings)
	if err != nil {
		r.logger.Warn("gateway task failed",
			zap.String("gateway", platform),
			zap.String("chat", chatID),
			zap.Error(err),
		)
		return troubleReply
	}
	if strings.TrimSpace(out.Output) == "" {
		return "(no answer)"
	}
	return out.Output
}

// split breaks text into pieces of at most limit bytes, preferring line
// boundaries and never cutting a rune.
func split(text string, limit int) []string {
	var parts []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		parts = append(parts, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		parts = append(parts, text)
	}
	return parts
}

// FromConfig builds every enabled gateway.
func FromConfig(cfg *config.Config, runner Runner, logger *zap.Logger) ([]Messenger, error) {
	var out []Messenger
	if gw, ok := cfg.GetGatewayConfig("telegram"); ok {
		tg, err := NewTelegram(gw.Token, runner, cfg.Defaults, logger)
		if err != nil {
			return nil, fmt.Errorf("telegram: %w", err)
		}
		out = append(out, tg)
	}
	if gw, ok := cfg.GetGatewayConfig("discord"); ok {
		dc, err := NewDiscord(gw.Token, runner, cfg.Defaults, logger)
		if err != nil {
			return nil, fmt.Errorf("discord: %w", err)
		}
		out = append(out, dc)
	}
	return out, nil
}
