package reply

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/0xliangjiang/discord-bot-private/history"
	"github.com/0xliangjiang/discord-bot-private/keyword"
	"github.com/0xliangjiang/discord-bot-private/llm"
)

const (
	maxAttempts       = 3
	maxReplyRunes     = 30
	completionTimeout = 15 * time.Second
)

// selfPrefixes are the self-referential openers the model tends to emit
// when primed with a transcript that labels its own lines "me:".
var selfPrefixes = []string{"me:", "Me:", "我:", "我："}

type GeneratorOptions struct {
	Matcher       *keyword.Matcher
	Client        llm.Client
	Store         *history.Store
	Model         string
	Language      string
	WhitelistMode bool
	// CustomTemplate, when non-empty and enabled, replaces the built-in
	// whitelist prompt. Supports {language} and {history_context}.
	CustomTemplate    string
	UseCustomTemplate bool
	Logger            *slog.Logger
}

type Generator struct {
	matcher           *keyword.Matcher
	client            llm.Client
	store             *history.Store
	model             string
	language          string
	whitelistMode     bool
	customTemplate    string
	useCustomTemplate bool
	logger            *slog.Logger
}

// Reply carries the generated text. Keyword hits are flagged so the
// worker sends them as reference replies without touching the AI path.
type Reply struct {
	Text    string
	Keyword bool
}

func NewGenerator(opts GeneratorOptions) *Generator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		matcher:           opts.Matcher,
		client:            opts.Client,
		store:             opts.Store,
		model:             opts.Model,
		language:          opts.Language,
		whitelistMode:     opts.WhitelistMode,
		customTemplate:    opts.CustomTemplate,
		useCustomTemplate: opts.UseCustomTemplate,
		logger:            logger,
	}
}

// Generate tries keyword rules first, then falls back to the completion
// endpoint with bounded retries. Exhausting retries yields an empty
// reply, never an error; the worker simply skips the cycle.
func (g *Generator) Generate(ctx context.Context, texts []string, targetUserID string) Reply {
	if len(texts) == 0 {
		return Reply{}
	}

	if text, ok := g.keywordReply(texts, targetUserID); ok {
		if g.whitelistMode && targetUserID != "" {
			g.store.AddBotReply(targetUserID, text)
		}
		g.logger.Info("reply_keyword_hit", "user_id", targetUserID)
		return Reply{Text: text, Keyword: true}
	}
	if g.matcher != nil && g.matcher.Enabled() && !g.matcher.FallbackToAI() {
		return Reply{}
	}

	prompt := g.buildPrompt(texts, targetUserID)
	text, ok := g.complete(ctx, prompt)
	if !ok {
		return Reply{}
	}
	if g.whitelistMode && targetUserID != "" {
		g.store.AddBotReply(targetUserID, text)
	}
	return Reply{Text: text}
}

// keywordReply matches against the target's latest stored message in
// whitelist mode, or the batch's newest message otherwise.
func (g *Generator) keywordReply(texts []string, targetUserID string) (string, bool) {
	if g.matcher == nil {
		return "", false
	}
	source := texts[len(texts)-1]
	if g.whitelistMode && targetUserID != "" {
		stored, ok := g.store.LatestUserText(targetUserID)
		if !ok {
			return "", false
		}
		source = stored
	}
	return g.matcher.Match(source)
}

func (g *Generator) buildPrompt(texts []string, targetUserID string) string {
	latest := texts[len(texts)-1]

	if !g.whitelistMode {
		return builtinPlainPrompt + latest
	}

	historyContext := g.store.ContextFor(targetUserID)
	base := builtinWhitelistPrompt
	if g.useCustomTemplate && strings.TrimSpace(g.customTemplate) != "" {
		base = g.customTemplate
	}
	base = renderTemplate(base, g.language, historyContext)

	// Up to two prior batch messages set the scene for the newest one.
	var scene string
	if len(texts) > 1 {
		start := len(texts) - 3
		if start < 0 {
			start = 0
		}
		scene = "Context:\n" + strings.Join(texts[start:len(texts)-1], "\n") + "\n\n"
	}
	return base + scene + latest
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, bool) {
	req := llm.Request{
		Model:    g.model,
		Messages: []llm.Message{{Role: "user", Content: prompt}},
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if ctx.Err() != nil {
			return "", false
		}
		reqCtx, cancel := context.WithTimeout(ctx, completionTimeout)
		res, err := g.client.Chat(reqCtx, req)
		cancel()
		if err != nil {
			g.logger.Warn("reply_completion_error", "attempt", attempt, "error", err.Error())
			continue
		}

		text := cleanReply(res.Text)
		if text == "" {
			g.logger.Warn("reply_completion_empty", "attempt", attempt)
			continue
		}
		if utf8.RuneCountInString(text) > maxReplyRunes {
			g.logger.Warn("reply_completion_too_long", "attempt", attempt, "runes", utf8.RuneCountInString(text))
			continue
		}
		g.logger.Info("reply_completion_ok", "attempt", attempt, "total_tokens", res.Usage.TotalTokens)
		return text, true
	}

	g.logger.Warn("reply_completion_exhausted", "attempts", maxAttempts)
	return "", false
}

// cleanReply strips a leading self-referential prefix and keeps only the
// first line.
func cleanReply(text string) string {
	text = strings.TrimSpace(text)
	for _, prefix := range selfPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimSpace(strings.TrimPrefix(text, prefix))
			break
		}
	}
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}
