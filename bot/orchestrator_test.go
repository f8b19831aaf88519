package bot

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/0xliangjiang/discord-bot-private/config"
	"github.com/0xliangjiang/discord-bot-private/llm"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeLLM struct {
	text  string
	calls int64
}

func (f *fakeLLM) Chat(ctx context.Context, req llm.Request) (llm.Result, error) {
	atomic.AddInt64(&f.calls, 1)
	return llm.Result{Text: f.text}, nil
}

type sentMessage struct {
	Content   string `json:"content"`
	Reference *struct {
		MessageID string `json:"message_id"`
	} `json:"message_reference"`
}

// fakeDiscord serves the three endpoints the worker touches.
type fakeDiscord struct {
	messages []byte
	fetches  int64
	sent     chan sentMessage
}

func (f *fakeDiscord) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"self","username":"me_bot"}`))
	})
	mux.HandleFunc("/channels/c1/messages", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var msg sentMessage
			_ = json.NewDecoder(r.Body).Decode(&msg)
			f.sent <- msg
			_, _ = w.Write([]byte(`{"id":"new"}`))
			return
		}
		atomic.AddInt64(&f.fetches, 1)
		_, _ = w.Write(f.messages)
	})
	return mux
}

func testSettings(t *testing.T, baseURL string) config.Settings {
	t.Helper()
	return config.Settings{
		AIAPIKey:       "sk-test",
		AIModel:        "test-model",
		ReplyLanguage:  "English",
		MessageLimit:   5,
		ReplyDelayMin:  1,
		ReplyDelayMax:  1,
		MaxWorkers:     2,
		KeywordFile:    filepath.Join(t.TempDir(), "keywords.json"),
		StateDir:       t.TempDir(),
		DiscordBaseURL: baseURL,
	}
}

func TestNewOrchestratorInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := NewOrchestrator(config.Config{}, &fakeLLM{}, testLogger())
	if err == nil {
		t.Fatal("NewOrchestrator() error = nil for empty config")
	}
}

func TestNewOrchestratorBadKeywordFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "rules.json")
	if err := os.WriteFile(path, []byte(`{"rules": {"bogus_match": {"responses": {"a": ["b"]}}}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		Settings: config.Settings{AIAPIKey: "sk", KeywordFile: path},
		Accounts: []config.Account{{Name: "a", Token: "t", ChannelID: "c1"}},
	}
	if _, err := NewOrchestrator(cfg, &fakeLLM{}, testLogger()); err == nil {
		t.Fatal("NewOrchestrator() error = nil for malformed rule file")
	}
}

func TestOrchestratorSendsKeywordReply(t *testing.T) {
	t.Parallel()

	fd := &fakeDiscord{
		messages: []byte(`[{"id":"m1","author":{"id":"u1","username":"alice"},"content":"gg","timestamp":"2025-06-01T12:00:00Z"}]`),
		sent:     make(chan sentMessage, 8),
	}
	srv := httptest.NewServer(fd.handler())
	defer srv.Close()

	settings := testSettings(t, srv.URL)
	if err := os.WriteFile(settings.KeywordFile, []byte(`{
  "settings": {"random_response": false},
  "rules": {"exact_match": {"responses": {"gg": ["wp"]}}}
}`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := config.Config{
		Settings: settings,
		Accounts: []config.Account{{Name: "acct1", Token: "tok", ChannelID: "c1"}},
	}
	client := &fakeLLM{text: "never used"}
	orch, err := NewOrchestrator(cfg, client, testLogger())
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()

	select {
	case msg := <-fd.sent:
		if msg.Content != "wp" {
			t.Errorf("sent content = %q, want wp", msg.Content)
		}
		if msg.Reference == nil || msg.Reference.MessageID != "m1" {
			t.Errorf("keyword reply not threaded: %+v", msg.Reference)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no message sent")
	}
	if atomic.LoadInt64(&client.calls) != 0 {
		t.Errorf("llm calls = %d, want 0 on keyword hit", client.calls)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not drain after cancel")
	}
	if atomic.LoadInt64(&fd.fetches) == 0 {
		t.Fatal("worker never fetched messages")
	}
}

func TestOrchestratorStopsQuietChannel(t *testing.T) {
	t.Parallel()

	fd := &fakeDiscord{messages: []byte(`[]`), sent: make(chan sentMessage, 1)}
	srv := httptest.NewServer(fd.handler())
	defer srv.Close()

	settings := testSettings(t, srv.URL)
	cfg := config.Config{
		Settings: settings,
		Accounts: []config.Account{{Name: "acct1", Token: "tok", ChannelID: "c1"}},
	}
	orch, err := NewOrchestrator(cfg, &fakeLLM{}, testLogger())
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := orch.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if atomic.LoadInt64(&fd.fetches) == 0 {
		t.Fatal("worker never fetched messages")
	}
	select {
	case msg := <-fd.sent:
		t.Fatalf("unexpected send: %+v", msg)
	default:
	}
}
