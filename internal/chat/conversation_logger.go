package chat

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
)

// ConversationLogger records chat traffic for later review.
type ConversationLogger interface {
	Log(event ConversationLogEvent)
	Close() error
}

// ConversationLogConfig controls the NDJSON conversation log.
type ConversationLogConfig struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	QueueSize     int
}

// ConversationLogEvent is one NDJSON line.
type ConversationLogEvent struct {
	Timestamp  string         `json:"timestamp"`
	UserID     string         `json:"user_id,omitempty"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

type noopConversationLogger struct{}

func (noopConversationLogger) Log(ConversationLogEvent) {}
func (noopConversationLogger) Close() error             { return nil }

type fileConversationLogger struct {
	cfg    ConversationLogConfig
	logger *slog.Logger
	queue  chan ConversationLogEvent
	done   chan struct{}

	closeOnce sync.Once
	mu        sync.Mutex
	closed    bool
}

// NewConversationLogger starts a background writer. A disabled config yields
// a logger that discards everything.
func NewConversationLogger(cfg ConversationLogConfig, logger *slog.Logger) (ConversationLogger, error) {
	if !cfg.Enabled {
		return noopConversationLogger{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}
	if cfg.GlobalEnabled {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o750); err != nil {
			return nil, fmt.Errorf("create global conversation log dir: %w", err)
		}
	}

	l := &fileConversationLogger{
		cfg:    cfg,
		logger: logger,
		queue:  make(chan ConversationLogEvent, cfg.QueueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Log enqueues event. When the queue is full the event is dropped.
func (l *fileConversationLogger) Log(event ConversationLogEvent) {
	if event.Content == "" {
		event.Content = cleanForReadability(event.ContentRaw)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- event:
	default:
		l.logger.Warn("conversation log queue full, dropping event",
			"session_id", event.SessionID,
			"event_type", event.EventType,
		)
	}
}

// Close drains the queue and stops the writer.
func (l *fileConversationLogger) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
		<-l.done
	})
	return nil
}

func (l *fileConversationLogger) run() {
	defer close(l.done)
	for event := range l.queue {
		line, err := json.Marshal(event)
		if err != nil {
			l.logger.Warn("failed to encode conversation event", "error", err)
			continue
		}
		line = append(line, '\n')

		path := filepath.Join(l.cfg.Dir, safePathPart(event.UserID, "anonymous"), safePathPart(event.SessionID, "default")+".ndjson")
		if err := appendLine(path, line); err != nil {
			l.logger.Warn("failed to write conversation event", "session_id", event.SessionID, "error", err)
		}
		if l.cfg.GlobalEnabled {
			if err := appendLine(l.cfg.GlobalPath, line); err != nil {
				l.logger.Warn("failed to write global conversation event", "error", err)
			}
		}
	}
}

func appendLine(path string, line []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

var unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func safePathPart(s, fallback string) string {
	s = unsafePathChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return fallback
	}
	return s
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[A-Za-z]`)

// cleanForReadability strips terminal escapes and collapses whitespace.
func cleanForReadability(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	return strings.Join(strings.Fields(s), " ")
}
