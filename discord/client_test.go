package discord

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestMessages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method = %s, want GET", r.Method)
		}
		if r.URL.Path != "/channels/c1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %s, want 5", got)
		}
		if got := r.Header.Get("Authorization"); got != "tok123" {
			t.Errorf("Authorization = %q, want raw token", got)
		}
		_, _ = w.Write([]byte(`[
			{"id":"m2","author":{"id":"u1","username":"alice"},"content":"newest"},
			{"id":"m1","author":{"id":"u2","username":"bob","bot":true},"content":"older"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "tok123")
	msgs, err := c.Messages(context.Background(), "c1", 5)
	if err != nil {
		t.Fatalf("Messages() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len(msgs) = %d, want 2", len(msgs))
	}
	if msgs[0].ID != "m2" || msgs[0].Author.Username != "alice" {
		t.Fatalf("msgs[0] = %+v", msgs[0])
	}
	if !msgs[1].Author.Bot {
		t.Fatal("msgs[1].Author.Bot = false, want true")
	}
}

func TestSendReferenceReply(t *testing.T) {
	t.Parallel()

	var got sendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"new"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "tok")
	if err := c.Send(context.Background(), "c1", "hello", "m7"); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if got.Content != "hello" {
		t.Fatalf("content = %q", got.Content)
	}
	if got.Reference == nil || got.Reference.MessageID != "m7" || got.Reference.ChannelID != "c1" {
		t.Fatalf("reference = %+v", got.Reference)
	}
}

func TestSendPlainMessageOmitsReference(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var raw map[string]any
		if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if _, ok := raw["message_reference"]; ok {
			t.Error("message_reference present on plain send")
		}
		_, _ = w.Write([]byte(`{"id":"new"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "tok")
	if err := c.Send(context.Background(), "c1", "hello", ""); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
}

func TestMe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/users/@me" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(`{"id":"self","username":"me_bot"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "tok")
	me, err := c.Me(context.Background())
	if err != nil {
		t.Fatalf("Me() error = %v", err)
	}
	if me.ID != "self" || me.Username != "me_bot" {
		t.Fatalf("Me() = %+v", me)
	}
}

func TestRequestError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"code":50001,"message":"Missing Access"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.Client(), srv.URL, "tok")
	_, err := c.Messages(context.Background(), "c1", 5)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("error = %T, want *RequestError", err)
	}
	if reqErr.StatusCode != http.StatusForbidden || reqErr.Code != 50001 {
		t.Fatalf("RequestError = %+v", reqErr)
	}
	if reqErr.Error() != "discord http 403: Missing Access" {
		t.Fatalf("Error() = %q", reqErr.Error())
	}
}

func TestParseTimestamp(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{"2025-06-01T12:30:00.123456+00:00", time.Date(2025, 6, 1, 12, 30, 0, 123456000, time.UTC), true},
		{"2025-06-01T12:30:00Z", time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC), true},
		{"2025-06-01T12:30:00.500", time.Date(2025, 6, 1, 12, 30, 0, 500000000, time.UTC), true},
		{"2025-06-01 12:30:00", time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC), true},
		{"", time.Time{}, false},
		{"yesterday", time.Time{}, false},
	}
	for _, tc := range cases {
		got, err := ParseTimestamp(tc.raw)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseTimestamp(%q) error = %v, ok = %v", tc.raw, err, tc.ok)
		}
		if tc.ok && !got.Equal(tc.want) {
			t.Fatalf("ParseTimestamp(%q) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
