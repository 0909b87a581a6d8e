package renderer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"macropulse/internal/domain"
)

const systemPrompt = `You are a macro market commentator writing short social media posts.

Rules:
1. Write in the requested language only.
2. One post, no hashtag spam (two hashtags maximum), no emojis beyond one.
3. Lead with the composite macro score and what drove it.
4. Mention at most three of the supplied figures, rounded sensibly.
5. Neutral tone: no urgency words, no predictions stated as certainty.
6. Stay under the requested character limit.

Output the post text only, no quotes, no preamble.`

var languageNames = map[string]string{
	"JA": "Japanese",
	"EN": "English",
	"DE": "German",
	"FR": "French",
	"ES": "Spanish",
	"ZH": "Chinese",
}

// Config holds renderer configuration.
type Config struct {
	APIKey         string
	Model          string
	Timeout        time.Duration
	MaxOutputChars int
}

// OpenAI renders post text from a snapshot via chat completion.
type OpenAI struct {
	client   *openai.Client
	model    openai.ChatModel
	maxChars int
	logger   *slog.Logger
}

func NewOpenAI(cfg Config, logger *slog.Logger) *OpenAI {
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(cfg.Timeout),
	)
	return &OpenAI{
		client:   &client,
		model:    openai.ChatModel(cfg.Model),
		maxChars: cfg.MaxOutputChars,
		logger:   logger.With("component", "renderer"),
	}
}

// Render produces the post text for one language. An empty completion is
// an error; the caller treats it as a render failure for that language.
func (r *OpenAI) Render(ctx context.Context, snapshot *domain.Snapshot, language string) (string, error) {
	resp, err := r.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: r.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(r.userPrompt(snapshot, language)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai API error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from openai")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}

	if runes := []rune(text); len(runes) > r.maxChars {
		r.logger.Warn("completion over limit, truncating",
			"language", language,
			"length", len(runes),
			"limit", r.maxChars,
		)
		text = string(runes[:r.maxChars])
	}

	return text, nil
}

func (r *OpenAI) userPrompt(snapshot *domain.Snapshot, language string) string {
	name, ok := languageNames[language]
	if !ok {
		name = language
	}

	return fmt.Sprintf(
		`Language: %s
Character limit: %d
Composite macro score: %.1f (range -100 risk-off to +100 risk-on)
Nikkei 225: %.2f
S&P 500 future: %.2f
USD/JPY: %.2f
US 10Y yield: %.2f
VIX: %.2f
Gold: %.2f
Data as of: %s`,
		name,
		r.maxChars,
		snapshot.Score,
		snapshot.Nikkei225,
		snapshot.SP500Future,
		snapshot.USDJPY,
		snapshot.US10Y,
		snapshot.VIX,
		snapshot.Gold,
		snapshot.FetchedAt.Format(time.RFC3339),
	)
}
