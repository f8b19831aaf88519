// Package discord is a minimal REST client for the message endpoints the
// account workers poll. Each account carries its own token, so one Client
// is constructed per account.
package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://discord.com/api/v10"

type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

func NewClient(httpClient *http.Client, baseURL, token string) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// Me resolves the identity behind the token. Workers use it to recognize
// their own messages in fetched batches.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var out User
	if err := c.do(ctx, http.MethodGet, "/users/@me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Messages fetches up to limit recent messages, newest first.
func (c *Client) Messages(ctx context.Context, channelID string, limit int) ([]Message, error) {
	if limit < 1 {
		limit = 1
	}
	path := fmt.Sprintf("/channels/%s/messages?limit=%d", url.PathEscape(channelID), limit)
	var out []Message
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Message fetches a single message by id, used to resolve the author of a
// referenced message that fell outside the polled batch.
func (c *Client) Message(ctx context.Context, channelID, messageID string) (*Message, error) {
	path := fmt.Sprintf("/channels/%s/messages/%s", url.PathEscape(channelID), url.PathEscape(messageID))
	var out Message
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Send posts content to the channel. A non-empty replyToID turns the post
// into a reference reply threaded under that message.
func (c *Client) Send(ctx context.Context, channelID, content, replyToID string) error {
	body := sendMessageRequest{Content: content}
	if strings.TrimSpace(replyToID) != "" {
		body.Reference = &MessageReference{
			ChannelID: channelID,
			MessageID: replyToID,
		}
	}
	path := fmt.Sprintf("/channels/%s/messages", url.PathEscape(channelID))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiErrorBody
		_ = json.Unmarshal(raw, &apiErr)
		return &RequestError{
			StatusCode: resp.StatusCode,
			Code:       apiErr.Code,
			Message:    apiErr.Message,
			Body:       strings.TrimSpace(string(raw)),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("discord decode %s: %w", path, err)
	}
	return nil
}
