// Package llm defines the narrow completion-client contract the reply
// generator consumes. Providers live under providers/.
package llm

import (
	"context"
	"time"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Request struct {
	Model    string
	Messages []Message
}

type Result struct {
	Text     string
	Usage    Usage
	Duration time.Duration
}

type Client interface {
	Chat(ctx context.Context, req Request) (Result, error)
}
