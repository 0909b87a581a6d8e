package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const telegramAPIBase = "https://api.telegram.org"

// Telegram sends posts through the Bot API. Replies chain via
// reply_to_message_id, so cross-language posts in one cycle thread under
// the first successful one.
type Telegram struct {
	httpClient *http.Client
	baseURL    string
	token      string
	chatID     string
	logger     *slog.Logger
}

type TelegramConfig struct {
	Token   string
	ChatID  string
	BaseURL string // overridable for tests
	Timeout time.Duration
}

func NewTelegram(cfg TelegramConfig, logger *slog.Logger) *Telegram {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = telegramAPIBase
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Telegram{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      cfg.Token,
		chatID:     cfg.ChatID,
		logger:     logger.With("transport", "telegram"),
	}
}

func (t *Telegram) Name() string {
	return "telegram"
}

// Send posts text (with an optional photo) and returns the message ID.
func (t *Telegram) Send(ctx context.Context, text, imagePath, replyTo string) (string, error) {
	if imagePath != "" {
		return t.sendPhoto(ctx, text, imagePath, replyTo)
	}
	return t.sendMessage(ctx, text, replyTo)
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

func (t *Telegram) sendMessage(ctx context.Context, text, replyTo string) (string, error) {
	payload := map[string]any{
		"chat_id": t.chatID,
		"text":    text,
	}
	if id, err := strconv.ParseInt(replyTo, 10, 64); err == nil && replyTo != "" {
		payload["reply_to_message_id"] = id
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendMessage"), bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return t.execute(req)
}

func (t *Telegram) sendPhoto(ctx context.Context, text, imagePath, replyTo string) (string, error) {
	file, err := os.Open(imagePath)
	if err != nil {
		return "", fmt.Errorf("open image: %w", err)
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	_ = writer.WriteField("chat_id", t.chatID)
	_ = writer.WriteField("caption", text)
	if replyTo != "" {
		_ = writer.WriteField("reply_to_message_id", replyTo)
	}

	part, err := writer.CreateFormFile("photo", filepath.Base(imagePath))
	if err != nil {
		return "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("copy image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.methodURL("sendPhoto"), &buf)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return t.execute(req)
}

func (t *Telegram) execute(req *http.Request) (string, error) {
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	var tgResp telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tgResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if !tgResp.OK {
		return "", fmt.Errorf("telegram API error: %s", tgResp.Description)
	}

	messageID := strconv.FormatInt(tgResp.Result.MessageID, 10)
	t.logger.Debug("message sent", "message_id", messageID)
	return messageID, nil
}

func (t *Telegram) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.token, method)
}
