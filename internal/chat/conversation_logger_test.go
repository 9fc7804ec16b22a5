package chat

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestConversationLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	defer func() { _ = logger.Close() }()

	event := ConversationLogEvent{
		UserID:     "user-1",
		SessionID:  "sess-1",
		Channel:    "chat_http",
		Direction:  "inbound",
		EventType:  "chat_user_message",
		ContentRaw: "I feel \x1b[1mreally\x1b[0m low today",
	}
	logger.Log(event)

	path := filepath.Join(dir, "user-1", "sess-1.ndjson")
	line := waitForLogLine(t, path)
	var got ConversationLogEvent
	if err := json.Unmarshal([]byte(line), &got); err != nil {
		t.Fatalf("failed to unmarshal log line: %v", err)
	}
	if got.ContentRaw != "I feel \x1b[1mreally\x1b[0m low today" {
		t.Fatalf("unexpected ContentRaw: %q", got.ContentRaw)
	}
	if got.Content != "I feel really low today" {
		t.Fatalf("unexpected cleaned content: %q", got.Content)
	}
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	raw := "\x1b[31merror\x1b[0m plain"
	clean := cleanForReadability(raw)
	if strings.Contains(clean, "\x1b[31m") {
		t.Fatalf("expected ANSI sequence to be stripped: %q", clean)
	}
	if !strings.Contains(clean, "error plain") {
		t.Fatalf("expected readable text to remain: %q", clean)
	}
}

func TestConversationLoggerDisabledIsNoop(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{Dir: dir}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	logger.Log(ConversationLogEvent{SessionID: "s", ContentRaw: "x"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Fatalf("expected no files, got %d", len(entries))
	}
}

func TestConversationLoggerSanitizesPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	global := filepath.Join(dir, "all", "all.ndjson")
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:       true,
		Dir:           dir,
		GlobalEnabled: true,
		GlobalPath:    global,
		QueueSize:     4,
	}, slog.Default())
	if err != nil {
		t.Fatalf("NewConversationLogger failed: %v", err)
	}
	logger.Log(ConversationLogEvent{SessionID: "../escape", ContentRaw: "hello"})
	if err := logger.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// Logging after close is ignored.
	logger.Log(ConversationLogEvent{SessionID: "late", ContentRaw: "ignored"})

	if _, err := os.Stat(filepath.Join(dir, "anonymous", "_escape.ndjson")); err != nil {
		t.Fatalf("expected sanitized session file: %v", err)
	}
	data, err := os.ReadFile(global)
	if err != nil || !strings.Contains(string(data), "hello") {
		t.Fatalf("expected global log line, got %q (%v)", data, err)
	}
}

func waitForLogLine(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		data, err := os.ReadFile(path)
		if err == nil && len(data) > 0 {
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			if len(lines) > 0 {
				return lines[len(lines)-1]
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for log file %s", path)
	return ""
}
