package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"ytsummarizer/internal/bus"
	"ytsummarizer/internal/domain"
	"ytsummarizer/internal/session"
)

type apiCall struct {
	method string
	values map[string]string
}

type fakeTelegram struct {
	mu    sync.Mutex
	calls []apiCall
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	method := path.Base(r.URL.Path)

	if err := r.ParseMultipartForm(1 << 20); err != nil {
		_ = r.ParseForm()
	}

	values := make(map[string]string)
	for k, v := range r.Form {
		values[k] = strings.Join(v, ",")
	}

	f.mu.Lock()
	f.calls = append(f.calls, apiCall{method: method, values: values})
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")

	switch method {
	case "sendMessage", "editMessageText":
		_, _ = fmt.Fprintf(w,
			`{"ok":true,"result":{"message_id":100,"date":0,"chat":{"id":%s,"type":"private"},"text":"ok"}}`,
			values["chat_id"])
	default:
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}
}

func (f *fakeTelegram) byMethod(method string) []apiCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []apiCall
	for _, c := range f.calls {
		if c.method == method {
			out = append(out, c)
		}
	}

	return out
}

type memoryStore struct {
	mu       sync.Mutex
	settings map[int64]domain.ProviderSettings
}

func newMemoryStore() *memoryStore {
	return &memoryStore{settings: make(map[int64]domain.ProviderSettings)}
}

func (m *memoryStore) ProviderSettings(_ context.Context, userID int64) (domain.ProviderSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.settings[userID]
	if !ok {
		return domain.ProviderSettings{UserID: userID}, nil
	}

	return s, nil
}

func (m *memoryStore) UpsertProviderSettings(_ context.Context, s domain.ProviderSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.settings[s.UserID]; ok && s.APIKey == "" && old.Provider == s.Provider {
		s.APIKey = old.APIKey
	}
	m.settings[s.UserID] = s

	return nil
}

func (m *memoryStore) ClearProviderSettings(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.settings, userID)

	return nil
}

type stubTransport struct {
	text string
	err  error
}

func (s stubTransport) Send(context.Context, string) (domain.Transcript, error) {
	return domain.Transcript{Method: domain.MethodStructuredJSON, Text: s.text}, s.err
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(_ context.Context, _ domain.ProviderSettings, transcript string) (string, error) {
	return "## Overview\nAbout " + transcript + ".", nil
}

func newTestBot(t *testing.T, store *memoryStore, transport session.Transport) (*Bot, *fakeTelegram) {
	t.Helper()

	fake := &fakeTelegram{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := session.NewManager(session.Config{}, transport, store, stubSummarizer{}, log)

	b, err := New("123:test", store, manager, []int64{1}, log,
		bot.WithServerURL(srv.URL),
		bot.WithSkipGetMe(),
	)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	t.Cleanup(b.Stop)

	return b, fake
}

func textUpdate(userID int64, messageID int, text string) *models.Update {
	return &models.Update{
		Message: &models.Message{
			ID:   messageID,
			From: &models.User{ID: userID},
			Chat: models.Chat{ID: userID, Type: models.ChatTypePrivate},
			Text: text,
		},
	}
}

func TestKeyCommandStoresKeyAndDeletesMessage(t *testing.T) {
	store := newMemoryStore()
	store.settings[1] = domain.ProviderSettings{UserID: 1, Provider: domain.ProviderAnthropic}

	b, fake := newTestBot(t, store, stubTransport{})

	b.handleUpdate(context.Background(), nil, textUpdate(1, 42, "/key sk-ant-secret-value"))

	got, _ := store.ProviderSettings(context.Background(), 1)
	if got.APIKey != "sk-ant-secret-value" {
		t.Fatalf("expected key to be stored, got %+v", got)
	}

	deletes := fake.byMethod("deleteMessage")
	if len(deletes) != 1 || deletes[0].values["message_id"] != "42" {
		t.Fatalf("expected key message to be deleted, got %+v", deletes)
	}

	sends := fake.byMethod("sendMessage")
	if len(sends) != 1 {
		t.Fatalf("expected one confirmation, got %d", len(sends))
	}

	if strings.Contains(sends[0].values["text"], "secret") {
		t.Fatalf("confirmation leaks the key: %q", sends[0].values["text"])
	}
}

func TestLinkIsSummarized(t *testing.T) {
	store := newMemoryStore()
	store.settings[1] = domain.ProviderSettings{UserID: 1, Provider: domain.ProviderAnthropic, APIKey: "k"}

	b, fake := newTestBot(t, store, stubTransport{text: "cats"})

	b.handleUpdate(context.Background(), nil, textUpdate(1, 1, "look https://youtu.be/dQw4w9WgXcQ please"))

	sends := fake.byMethod("sendMessage")
	if len(sends) != 1 {
		t.Fatalf("expected one summary message, got %d", len(sends))
	}

	text := sends[0].values["text"]
	if !strings.Contains(text, "*Overview*") || !strings.Contains(text, "About cats\\.") {
		t.Fatalf("unexpected summary message %q", text)
	}

	if !strings.Contains(text, "watch?v=dQw4w9WgXcQ") {
		t.Fatalf("expected watch link in %q", text)
	}

	if got := b.sessions.Session(1).Current(); got != "dQw4w9WgXcQ" {
		t.Fatalf("expected session to track the video, got %q", got)
	}
}

func TestSummarizeWithoutSettings(t *testing.T) {
	b, fake := newTestBot(t, newMemoryStore(), stubTransport{text: "cats"})

	b.handleUpdate(context.Background(), nil, textUpdate(1, 1, "https://www.youtube.com/watch?v=dQw4w9WgXcQ"))

	sends := fake.byMethod("sendMessage")
	if len(sends) != 1 || sends[0].values["text"] != notConfiguredText {
		t.Fatalf("expected not configured notice, got %+v", sends)
	}
}

func TestDisallowedUserIsIgnored(t *testing.T) {
	b, fake := newTestBot(t, newMemoryStore(), stubTransport{})

	b.handleUpdate(context.Background(), nil, textUpdate(2, 1, "/start"))

	time.Sleep(20 * time.Millisecond)

	if n := len(fake.byMethod("sendMessage")); n != 0 {
		t.Fatalf("expected no replies to disallowed user, got %d", n)
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in, command, args string
	}{
		{"/start", "/start", ""},
		{"/Key  sk-1 ", "/key", "sk-1"},
		{"/summarize@yt_bot https://youtu.be/x", "/summarize", "https://youtu.be/x"},
		{"hello /start", "", "hello /start"},
	}

	for _, test := range tests {
		command, args := parseCommand(strings.TrimSpace(test.in))
		if command != test.command || args != test.args {
			t.Errorf("parseCommand(%q) = %q, %q; want %q, %q", test.in, command, args, test.command, test.args)
		}
	}
}

func TestFindVideoID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"watch this https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=1s", "dQw4w9WgXcQ"},
		{"youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ"},
		{"https://example.com then https://youtube.com/shorts/abcdefghijk", "abcdefghijk"},
		{"hello_world", ""},
		{"no links here", ""},
	}

	for _, test := range tests {
		got, ok := findVideoID(test.in)
		if got != test.want || ok != (test.want != "") {
			t.Errorf("findVideoID(%q) = %q, %v; want %q", test.in, got, ok, test.want)
		}
	}
}

func TestSplitMessage(t *testing.T) {
	if parts := splitMessage("short", 10); len(parts) != 1 || parts[0] != "short" {
		t.Fatalf("unexpected parts %q", parts)
	}

	parts := splitMessage("line one\nline two\nline three", 18)
	want := []string{"line one\nline two", "line three"}
	if len(parts) != len(want) {
		t.Fatalf("unexpected parts %q", parts)
	}
	for i := range want {
		if parts[i] != want[i] {
			t.Fatalf("part %d = %q, want %q", i, parts[i], want[i])
		}
	}

	long := strings.Repeat("ж", 25)
	parts = splitMessage(long, 10)
	if len(parts) != 3 || parts[2] != strings.Repeat("ж", 5) {
		t.Fatalf("unexpected hard split %q", parts)
	}

	parts = splitMessage("abcdefghi\\.xyz", 10)
	if parts[0] != "abcdefghi" || parts[1] != "\\.xyz" {
		t.Fatalf("expected escape to stay intact, got %q", parts)
	}
}

func TestMaskKey(t *testing.T) {
	tests := map[string]string{
		"":                 "not set",
		"short":            "••••",
		"sk-1234567890abc": "••••0abc",
	}

	for in, want := range tests {
		if got := maskKey(in); got != want {
			t.Errorf("maskKey(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFailureText(t *testing.T) {
	if got := failureText(fmt.Errorf("wrap: %w", session.ErrNotConfigured)); got != notConfiguredText {
		t.Fatalf("unexpected text %q", got)
	}

	if got := failureText(fmt.Errorf("get transcript: %w", bus.ErrTimeout)); got != timeoutText {
		t.Fatalf("unexpected text %q", got)
	}

	if got := failureText(errors.New("API error (529): overloaded.")); got != "❌ API error \\(529\\): overloaded\\." {
		t.Fatalf("unexpected text %q", got)
	}
}
