package observability

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypePlan        EventType = "plan"
	EventTypeStep        EventType = "step"
	EventTypeLLM         EventType = "llm"
	EventTypeToolCall    EventType = "tool_call"
	EventTypeToolResult  EventType = "tool_result"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeCombine     EventType = "combine"
	EventTypeEvaluation  EventType = "evaluation"
	EventTypeHeartbeat   EventType = "heartbeat"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	Session   string    `json:"session,omitempty"`
	Unit      string    `json:"unit,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Options configures NewLogger.
type Options struct {
	Level  string // debug, info, warn, error
	Format string // console or json
	LLMLog string // path of the jsonl transcript; empty disables it
}

// Logger emits structured events through zap and keeps a rotated jsonl
// transcript of model calls.
type Logger struct {
	z          *zap.Logger
	mu         sync.Mutex
	llmLogPath string
	maxSize    int64
}

func NewLogger(opts Options) (*Logger, error) {
	level, err := zapcore.ParseLevel(opts.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}

	var cfg zap.Config
	if opts.Format == "json" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.DisableStacktrace = true
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}

	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{
		z:          z,
		llmLogPath: opts.LLMLog,
		maxSize:    10 * 1024 * 1024, // 10MB
	}, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{z: zap.NewNop()}
}

// Zap exposes the underlying logger for components that log free-form.
func (l *Logger) Zap() *zap.Logger {
	return l.z
}

func (l *Logger) Sync() {
	_ = l.z.Sync()
}

// Log emits a structured event.
func (l *Logger) Log(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	l.z.Info(string(evt.Type),
		zap.String("session", evt.Session),
		zap.String("unit", evt.Unit),
		zap.Any("data", evt.Data),
	)

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		data, err := json.Marshal(evt)
		if err != nil {
			l.z.Warn("failed to marshal llm event", zap.Error(err))
			return
		}
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		l.z.Warn("failed to create log directory", zap.Error(err))
		return
	}

	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		l.z.Warn("failed to open log file", zap.Error(err))
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		l.z.Warn("failed to write to log file", zap.Error(err))
	}
}

// rotateLogs keeps exactly one previous transcript.
func (l *Logger) rotateLogs() {
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

func (l *Logger) LogPlan(session string, steps any, fallback bool) {
	l.Log(Event{
		Type:    EventTypePlan,
		Session: session,
		Data: map[string]any{
			"steps":    steps,
			"fallback": fallback,
		},
	})
}

func (l *Logger) LogStep(session, unit string, index int, status string) {
	l.Log(Event{
		Type:    EventTypeStep,
		Session: session,
		Unit:    unit,
		Data: map[string]any{
			"index":  index,
			"status": status,
		},
	})
}

func (l *Logger) LogToolCall(unit, tool, args string) {
	l.Log(Event{
		Type: EventTypeToolCall,
		Unit: unit,
		Data: map[string]string{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogToolResult(unit, tool, result string) {
	l.Log(Event{
		Type: EventTypeToolResult,
		Unit: unit,
		Data: map[string]string{
			"tool":   tool,
			"result": result,
		},
	})
}

func (l *Logger) LogPolicy(unit, tool, effect, reason string) {
	l.Log(Event{
		Type: EventTypePolicyCheck,
		Unit: unit,
		Data: map[string]string{
			"tool":   tool,
			"effect": effect,
			"reason": reason,
		},
	})
}

func (l *Logger) LogLLM(unit, system, user, response string) {
	l.Log(Event{
		Type: EventTypeLLM,
		Unit: unit,
		Data: map[string]any{
			"system":   system,
			"user":     user,
			"response": response,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}
